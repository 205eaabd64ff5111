// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validator tracks the network's validator set and the committee
// snapshots derived from it: LiveCommittee (the peers Ice decides Live,
// published when their weight reaches the 2f+1 quorum) and FaultyCommittee
// (the peers still decided Live when that weight falls back below quorum),
// each an immutable, epoch-tagged view per §5.
package validator

import (
	"errors"
	"sync"

	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/utils"
)

// ErrUnknownValidator is returned when an operation names a peer absent
// from the set.
var ErrUnknownValidator = errors.New("validator: unknown validator")

// Validator is one network participant's stake-weighted identity.
type Validator struct {
	NodeID peerid.ID
	Weight uint64
}

// Set is a mutable, thread-safe registry of validators and their weights.
// Callers take immutable snapshots of it (via LiveCommittee/FaultyCommittee
// construction) rather than reading it directly during consensus.
type Set struct {
	mu         sync.RWMutex
	validators map[peerid.ID]uint64
}

// NewSet returns an empty validator set.
func NewSet() *Set {
	return &Set{validators: make(map[peerid.ID]uint64)}
}

// Add registers a validator with the given stake weight, replacing any
// existing weight for that peer.
func (s *Set) Add(id peerid.ID, weight uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validators[id] = weight
}

// Remove deregisters a validator entirely (e.g. on stake withdrawal).
func (s *Set) Remove(id peerid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.validators, id)
}

// Weight returns a validator's stake weight, or (0, false) if unknown.
func (s *Set) Weight(id peerid.ID) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.validators[id]
	return w, ok
}

// TotalWeight returns the sum of all registered validators' weights.
func (s *Set) TotalWeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, w := range s.validators {
		total += w
	}
	return total
}

// List returns all validators, sorted by NodeID for deterministic
// iteration (sampling must be reproducible given the same PRNG seed).
func (s *Set) List() []Validator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Validator, 0, len(s.validators))
	for id, w := range s.validators {
		out = append(out, Validator{NodeID: id, Weight: w})
	}
	utils.Sort(out, func(i, j int) bool {
		return out[i].NodeID.Compare(out[j].NodeID) < 0
	})
	return out
}

// Len returns the number of registered validators.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.validators)
}

// Committee is an immutable, epoch-tagged snapshot of a subset of the
// validator set: LiveCommittee (§4.1) holds peers Ice currently considers
// responsive, FaultyCommittee holds peers it considers down. Both are
// produced by taking a Set snapshot at the moment Ice's verdict changes and
// are never mutated afterward — stale readers simply hold an old epoch.
type Committee struct {
	Epoch      uint64
	Members    []Validator
	TotalStake uint64
}

// NewCommittee builds an immutable committee snapshot from a member list,
// tagging it with epoch. The member slice is copied so later mutation of
// the caller's slice cannot leak into the snapshot.
func NewCommittee(epoch uint64, members []Validator) Committee {
	cp := make([]Validator, len(members))
	copy(cp, members)
	utils.Sort(cp, func(i, j int) bool {
		return cp[i].NodeID.Compare(cp[j].NodeID) < 0
	})
	var total uint64
	for _, v := range cp {
		total += v.Weight
	}
	return Committee{Epoch: epoch, Members: cp, TotalStake: total}
}

// Contains reports whether id is a member of the committee.
func (c Committee) Contains(id peerid.ID) bool {
	for _, v := range c.Members {
		if v.NodeID == id {
			return true
		}
	}
	return false
}

// Len returns the number of members in the committee.
func (c Committee) Len() int {
	return len(c.Members)
}

// QuorumWeight returns the minimum stake weight a set of responses must
// carry to clear the 2f+1 Byzantine quorum over this committee, per §3's
// "LiveCommittee" definition (f faulty out of 3f+1).
func (c Committee) QuorumWeight() uint64 {
	f := c.TotalStake / 3
	return 2*f + 1
}
