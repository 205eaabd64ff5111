// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/sampling"
	"github.com/thecore-network/thecore/validator"
)

type alwaysYesBlockTransport struct{}

func (alwaysYesBlockTransport) QueryBlock(ctx context.Context, peers []peerid.ID, b *block.Block) (map[peerid.ID]bool, error) {
	out := make(map[peerid.ID]bool, len(peers))
	for _, p := range peers {
		out[p] = true
	}
	return out, nil
}

type alwaysNoBlockTransport struct{}

func (alwaysNoBlockTransport) QueryBlock(ctx context.Context, peers []peerid.ID, b *block.Block) (map[peerid.ID]bool, error) {
	out := make(map[peerid.ID]bool, len(peers))
	for _, p := range peers {
		out[p] = false
	}
	return out, nil
}

func testCommittee(t *testing.T, n int) (validator.Committee, peerid.ID) {
	t.Helper()
	self := peerid.FromSPKI([]byte("self"))
	members := []validator.Validator{{NodeID: self, Weight: 1}}
	for i := 0; i < n; i++ {
		members = append(members, validator.Validator{NodeID: peerid.FromSPKI([]byte{byte(i)}), Weight: 1})
	}
	return validator.NewCommittee(1, members), self
}

func TestEngineRunRoundAcceptsAfterBetaRounds(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 2, AlphaPreference: 1, Beta1: 2, Beta2: 100, ConcurrentRepolls: 1, MaxOutstandingItems: 10, QueryTimeout: 1}
	sink := &recordingFinalSink{}
	chain := NewChain(params, alwaysClear{}, allAccepted{}, sink, nil)

	b := makeBlock(t, 0, block.Empty, []byte{0x01})
	require.NoError(chain.OnReceive(b, nil, nil))

	committee, self := testCommittee(t, 3)
	e := NewEngine(chain, sampling.NewSampler(1), alwaysYesBlockTransport{}, self, params)
	e.SetCommittee(committee)

	for i := 0; i < 3; i++ {
		require.NoError(e.RunRound(context.Background()))
	}
	require.Len(sink.final, 1)
	require.Equal(b.Id(), sink.final[0].Id())
}

func TestEngineRunRoundFailureTriggersReissue(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 2, AlphaPreference: 2, Beta1: 5, Beta2: 10, ConcurrentRepolls: 1, MaxOutstandingItems: 10, QueryTimeout: 1}
	chain := NewChain(params, alwaysClear{}, allAccepted{}, nil, nil)

	b := makeBlock(t, 0, block.Empty, []byte{0x01})
	require.NoError(chain.OnReceive(b, nil, nil))

	committee, self := testCommittee(t, 3)
	e := NewEngine(chain, sampling.NewSampler(1), alwaysNoBlockTransport{}, self, params)
	e.SetCommittee(committee)

	var reissued []cell.Id
	e.OnReissue(func(cells []cell.Id) { reissued = append(reissued, cells...) })

	require.NoError(e.RunRound(context.Background()))
	require.NotEmpty(reissued)
}
