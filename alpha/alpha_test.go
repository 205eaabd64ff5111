// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package alpha

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/validator"
)

func TestStaticIsImmediatelyBootstrapped(t *testing.T) {
	require := require.New(t)

	snap := Snapshot{
		Validators:      []validator.Validator{{NodeID: peerid.FromSPKI([]byte("v")), Weight: 1}},
		GenesisFrontier: []cell.OutPoint{{Source: cell.Empty, Index: 0}},
	}
	s := NewStatic(snap)
	require.True(s.Bootstrapped())
	require.Equal(snap, s.Current())
}

func TestSubscribeReceivesCurrentSnapshotImmediately(t *testing.T) {
	require := require.New(t)

	snap := Snapshot{Validators: []validator.Validator{{NodeID: peerid.Empty, Weight: 5}}}
	s := NewStatic(snap)

	var received Snapshot
	s.Subscribe(func(got Snapshot) { received = got })
	require.Equal(snap, received)
}
