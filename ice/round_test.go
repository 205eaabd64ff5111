// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ice

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/validator"
)

type fakePingTransport struct {
	outcomes map[peerid.ID][]Decision
	err      error

	lastTo      peerid.ID
	lastQueries []peerid.ID
}

func (f *fakePingTransport) Ping(ctx context.Context, to peerid.ID, queries []peerid.ID) ([]Decision, error) {
	f.lastTo = to
	f.lastQueries = queries
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Decision, len(queries))
	for i, q := range queries {
		out[i] = f.outcomes[q]
	}
	return out, nil
}

func TestRoundNeverQueriesPingTargetAboutItself(t *testing.T) {
	require := require.New(t)

	self := peerid.FromSPKI([]byte("self"))
	a := peerid.FromSPKI([]byte("a"))
	b := peerid.FromSPKI([]byte("b"))

	set := validator.NewSet()
	set.Add(self, 1)
	set.Add(a, 1)
	set.Add(b, 1)

	e := New(Config{Self: self, KIce: 3, Beta1: 1, Weightless: true, Set: set})
	transport := &fakePingTransport{outcomes: map[peerid.ID][]Decision{a: {Live}, b: {Live}}}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		e.Round(context.Background(), transport, rng)
		require.NotContains(transport.lastQueries, transport.lastTo)
		require.NotContains(transport.lastQueries, self)
	}
}

func TestRoundTimeoutReportsFaultyForQueriedSubjects(t *testing.T) {
	require := require.New(t)

	self := peerid.FromSPKI([]byte("self"))
	a := peerid.FromSPKI([]byte("a"))
	b := peerid.FromSPKI([]byte("b"))

	set := validator.NewSet()
	set.Add(self, 1)
	set.Add(a, 1)
	set.Add(b, 1)

	e := New(Config{Self: self, KIce: 3, Beta1: 1, Weightless: true, Set: set})
	transport := &fakePingTransport{err: errors.New("timeout")}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		e.Round(context.Background(), transport, rng)
	}
	// Across enough rounds, whichever peer is queried (i.e. not the
	// current Ping target) accumulates Faulty outcomes from timeouts.
	require.True(e.Decision(a) == Faulty || e.Decision(b) == Faulty)
}

func TestRoundNoOpWithNoCandidates(t *testing.T) {
	self := peerid.FromSPKI([]byte("self"))
	set := validator.NewSet()
	set.Add(self, 1)

	e := New(Config{Self: self, KIce: 3, Beta1: 1, Weightless: true, Set: set})
	transport := &fakePingTransport{}
	rng := rand.New(rand.NewSource(1))

	require.NotPanics(t, func() { e.Round(context.Background(), transport, rng) })
}
