// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package alpha is the boundary to the client chain collaborator (§2, §6):
// on the first LiveCommittee it supplies the validator set, stake
// weights, and genesis frontier; it re-emits on change. The core only
// consumes this interface — alpha's own business logic is out of scope.
package alpha

import (
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/validator"
)

// Snapshot is what alpha hands the core whenever the underlying chain
// state it tracks changes.
type Snapshot struct {
	Validators      []validator.Validator
	GenesisFrontier []cell.OutPoint
}

// Collaborator is the interface the core depends on; the alpha chain's
// own execution semantics are an external concern.
type Collaborator interface {
	// Bootstrapped reports whether alpha has produced its first snapshot
	// yet (§4.2's "Safe bootstrap" gate).
	Bootstrapped() bool
	// Current returns the most recently published snapshot.
	Current() Snapshot
	// Subscribe registers fn to be called with every new snapshot,
	// including the first.
	Subscribe(fn func(Snapshot))
}

// Static is a fixed-snapshot Collaborator, suitable for a single-genesis
// network or for tests that do not exercise alpha's own update path.
type Static struct {
	snapshot Snapshot
}

// NewStatic returns a Collaborator that always reports snapshot and is
// immediately bootstrapped.
func NewStatic(snapshot Snapshot) *Static {
	return &Static{snapshot: snapshot}
}

func (s *Static) Bootstrapped() bool   { return true }
func (s *Static) Current() Snapshot    { return s.snapshot }
func (s *Static) Subscribe(fn func(Snapshot)) {
	fn(s.snapshot)
}
