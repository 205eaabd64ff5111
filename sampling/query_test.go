// Copyright (C) 2019-2024, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sampling

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/peerid"
)

func TestQuerySucceedsAtAlphaQuorum(t *testing.T) {
	require := require.New(t)

	a := peerid.FromSPKI([]byte("a"))
	b := peerid.FromSPKI([]byte("b"))
	c := peerid.FromSPKI([]byte("c"))

	q := NewQuery([]peerid.ID{a, b, c}, 2, 1)
	q.Record(a, true)
	q.Record(b, true)
	q.Record(c, false)

	require.True(q.Done())
	require.True(q.Succeeded())
}

func TestQueryNonResponseCountsAsNo(t *testing.T) {
	require := require.New(t)

	a := peerid.FromSPKI([]byte("a"))
	b := peerid.FromSPKI([]byte("b"))

	q := NewQuery([]peerid.ID{a, b}, 2, 1)
	q.Record(a, true)
	require.False(q.Done())

	q.TimeoutRemaining()
	require.True(q.Done())
	require.False(q.Succeeded())
}

func TestCancelledQueryNeverSucceeds(t *testing.T) {
	require := require.New(t)

	a := peerid.FromSPKI([]byte("a"))
	q := NewQuery([]peerid.ID{a}, 1, 1)
	q.Cancel()
	q.Record(a, true)

	require.True(q.Cancelled())
	require.False(q.Succeeded())
}

func TestQueryIgnoresResponsesFromUnsampledPeers(t *testing.T) {
	require := require.New(t)

	a := peerid.FromSPKI([]byte("a"))
	stranger := peerid.FromSPKI([]byte("stranger"))

	q := NewQuery([]peerid.ID{a}, 1, 1)
	q.Record(stranger, true)
	require.False(q.Done())

	q.Record(a, true)
	require.True(q.Done())
	require.True(q.Succeeded())
}
