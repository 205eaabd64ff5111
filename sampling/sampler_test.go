// Copyright (C) 2019-2024, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sampling

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/validator"
)

func committeeOf(n int) (validator.Committee, []peerid.ID) {
	members := make([]validator.Validator, n)
	ids := make([]peerid.ID, n)
	for i := 0; i < n; i++ {
		id := peerid.FromSPKI([]byte{byte(i)})
		ids[i] = id
		members[i] = validator.Validator{NodeID: id, Weight: uint64(i + 1)}
	}
	return validator.NewCommittee(1, members), ids
}

func TestSampleExcludesSelfAndIsDistinct(t *testing.T) {
	require := require.New(t)

	committee, ids := committeeOf(10)
	self := ids[0]

	s := NewSampler(42)
	sample, err := s.Sample(committee, self, 5)
	require.NoError(err)
	require.Len(sample, 5)

	seen := make(map[peerid.ID]bool)
	for _, p := range sample {
		require.NotEqual(self, p)
		require.False(seen[p], "duplicate peer in sample")
		seen[p] = true
	}
}

func TestSampleReturnsErrNotEnoughPeers(t *testing.T) {
	require := require.New(t)

	committee, ids := committeeOf(3)
	self := ids[0]

	s := NewSampler(1)
	sample, err := s.Sample(committee, self, 5)
	require.ErrorIs(err, ErrNotEnoughPeers)
	require.Len(sample, 2)
}

func TestWeightedSampleIsDistinctAndExcludesSelf(t *testing.T) {
	require := require.New(t)

	committee, ids := committeeOf(10)
	self := ids[0]

	s := NewSampler(7)
	sample, err := s.WeightedSample(committee, self, 5)
	require.NoError(err)
	require.Len(sample, 5)

	seen := make(map[peerid.ID]bool)
	for _, p := range sample {
		require.NotEqual(self, p)
		require.False(seen[p])
		seen[p] = true
	}
}

func TestWeightedSampleSkipsZeroWeight(t *testing.T) {
	require := require.New(t)

	a := peerid.FromSPKI([]byte("a"))
	b := peerid.FromSPKI([]byte("b"))
	committee := validator.NewCommittee(1, []validator.Validator{
		{NodeID: a, Weight: 0},
		{NodeID: b, Weight: 5},
	})

	s := NewSampler(3)
	sample, err := s.WeightedSample(committee, peerid.Empty, 1)
	require.NoError(err)
	require.Equal([]peerid.ID{b}, sample)
}
