// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sleet

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/sampling"
)

type acceptAllAncestry struct{}

func (acceptAllAncestry) IsAcceptedInput(op cell.OutPoint) bool { return op.Source == cell.Empty }

type recordingSink struct {
	accepted []*cell.Cell
}

func (s *recordingSink) OnCellAccepted(c *cell.Cell) { s.accepted = append(s.accepted, c) }

func makeCell(t *testing.T, source cell.Id, index uint32, salt byte) *cell.Cell {
	t.Helper()
	require := require.New(t)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	owner := peerid.FromSPKI([]byte{salt})
	outputs := []cell.Output{{Capacity: 10, Owner: owner}}
	inputs := []cell.Input{{OutPoint: cell.OutPoint{Source: source, Index: index}, PubKey: pub}}

	unsigned, err := cell.New(inputs, outputs)
	require.NoError(err)
	inputs[0].Signature = ed25519.Sign(priv, unsigned.SigningBytes())
	signed, err := cell.New(inputs, outputs)
	require.NoError(err)
	return signed
}

func TestOnReceiveRejectsUnknownAncestor(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 1, Beta2: 2, ConcurrentRepolls: 1, MaxOutstandingItems: 10, QueryTimeout: 1}
	dag := NewDAG(params, nil, nil, nil)

	c := makeCell(t, cell.Id{0xAB}, 0, 1)
	err := dag.OnReceive(c, nil)
	require.ErrorIs(err, ErrUnknownAncestor)
}

func TestOnReceiveIsIdempotent(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 1, Beta2: 2, ConcurrentRepolls: 1, MaxOutstandingItems: 10, QueryTimeout: 1}
	dag := NewDAG(params, acceptAllAncestry{}, nil, nil)

	c := makeCell(t, cell.Empty, 0, 1)
	require.NoError(dag.OnReceive(c, nil))
	require.NoError(dag.OnReceive(c, nil), "re-delivery must be a no-op")
}

func TestConflictingCellsShareConflictSet(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 2, Beta2: 4, ConcurrentRepolls: 2, MaxOutstandingItems: 10, QueryTimeout: 1}
	dag := NewDAG(params, acceptAllAncestry{}, nil, nil)

	t1 := makeCell(t, cell.Empty, 0, 1)
	t2 := makeCell(t, cell.Empty, 0, 2)
	require.NoError(dag.OnReceive(t1, nil))
	require.NoError(dag.OnReceive(t2, nil))

	key := t1.Inputs[0].OutPoint.Key()
	cs := dag.conflicts[key]
	require.NotNil(cs)
	require.Len(cs.members, 2)
	require.NotEqual(cell.Empty, cs.pref)
}

func TestAcceptanceEarlyCommitmentUncontested(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 2, Beta2: 100, ConcurrentRepolls: 1, MaxOutstandingItems: 10, QueryTimeout: 1}
	sink := &recordingSink{}
	dag := NewDAG(params, acceptAllAncestry{}, sink, nil)

	c := makeCell(t, cell.Empty, 0, 1)
	require.NoError(dag.OnReceive(c, nil))

	dag.OnQuerySuccess(c.Id())
	require.Equal(Queried, dag.Status(c.Id()))
	dag.OnQuerySuccess(c.Id())

	require.Equal(Accepted, dag.Status(c.Id()))
	require.Len(sink.accepted, 1)
	require.Equal(c.Id(), sink.accepted[0].Id())
}

func TestQueryFailureResetsCountAndReissues(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 5, Beta2: 10, ConcurrentRepolls: 2, MaxOutstandingItems: 10, QueryTimeout: 1}
	dag := NewDAG(params, acceptAllAncestry{}, nil, nil)

	t1 := makeCell(t, cell.Empty, 0, 1)
	t2 := makeCell(t, cell.Empty, 0, 2)
	require.NoError(dag.OnReceive(t1, nil))
	require.NoError(dag.OnReceive(t2, nil))

	dag.OnQuerySuccess(t1.Id())
	key := t1.Inputs[0].OutPoint.Key()
	require.Equal(1, dag.conflicts[key].cnt)

	reissued := dag.OnQueryFailure(t1.Id())
	require.Equal(0, dag.conflicts[key].cnt)
	require.Contains(reissued, t1.Id())
	require.Equal(Unqueried, dag.Status(t1.Id()))
}

func TestAcceptanceRejectsConflictingSiblings(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 2, Beta2: 2, ConcurrentRepolls: 2, MaxOutstandingItems: 10, QueryTimeout: 1}
	dag := NewDAG(params, acceptAllAncestry{}, nil, nil)

	t1 := makeCell(t, cell.Empty, 0, 1)
	t2 := makeCell(t, cell.Empty, 0, 2)
	require.NoError(dag.OnReceive(t1, nil))
	require.NoError(dag.OnReceive(t2, nil))

	key := t1.Inputs[0].OutPoint.Key()
	pref := dag.conflicts[key].pref
	loser := t1.Id()
	if pref == t1.Id() {
		loser = t2.Id()
	}

	dag.OnQuerySuccess(pref)
	dag.OnQuerySuccess(pref)
	require.Equal(Accepted, dag.Status(pref))

	require.Equal(Rejected, dag.Status(loser))
	acceptedLoser, resolvedLoser := dag.Resolved(loser)
	require.True(resolvedLoser)
	require.False(acceptedLoser)

	acceptedWinner, resolvedWinner := dag.Resolved(pref)
	require.True(resolvedWinner)
	require.True(acceptedWinner)
}

func TestResolvedUnknownCell(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 2, Beta2: 4, ConcurrentRepolls: 1, MaxOutstandingItems: 10, QueryTimeout: 1}
	dag := NewDAG(params, acceptAllAncestry{}, nil, nil)

	accepted, resolved := dag.Resolved(cell.Id{0xFF})
	require.False(accepted)
	require.False(resolved)
}

func TestRejectedCellIsNeverReissued(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 2, Beta2: 2, ConcurrentRepolls: 2, MaxOutstandingItems: 10, QueryTimeout: 1}
	dag := NewDAG(params, acceptAllAncestry{}, nil, nil)

	t1 := makeCell(t, cell.Empty, 0, 1)
	t2 := makeCell(t, cell.Empty, 0, 2)
	require.NoError(dag.OnReceive(t1, nil))
	require.NoError(dag.OnReceive(t2, nil))

	key := t1.Inputs[0].OutPoint.Key()
	pref := dag.conflicts[key].pref
	loser := t1.Id()
	if pref == t1.Id() {
		loser = t2.Id()
	}

	dag.OnQuerySuccess(pref)
	dag.OnQuerySuccess(pref)
	require.Equal(Rejected, dag.Status(loser))

	reissued := dag.OnQueryFailure(pref)
	require.NotContains(reissued, loser)
	require.Equal(Rejected, dag.Status(loser))
}

func TestIsStronglyPreferred(t *testing.T) {
	require := require.New(t)

	params := sampling.Parameters{K: 1, AlphaPreference: 1, Beta1: 5, Beta2: 10, ConcurrentRepolls: 2, MaxOutstandingItems: 10, QueryTimeout: 1}
	dag := NewDAG(params, acceptAllAncestry{}, nil, nil)

	t1 := makeCell(t, cell.Empty, 0, 1)
	t2 := makeCell(t, cell.Empty, 0, 2)
	require.NoError(dag.OnReceive(t1, nil))
	require.NoError(dag.OnReceive(t2, nil))

	key := t1.Inputs[0].OutPoint.Key()
	pref := dag.conflicts[key].pref
	other := t1.Id()
	if pref == t1.Id() {
		other = t2.Id()
	}

	require.True(dag.IsStronglyPreferred(pref))
	require.False(dag.IsStronglyPreferred(other))
}
