// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ice

import (
	"context"
	"math/rand"
	"time"

	"github.com/thecore-network/thecore/peerid"
)

// PingTransport abstracts sending a Ping to one peer and getting back its
// Pong, or a timeout (§6's Ping/Pong round trip).
type PingTransport interface {
	Ping(ctx context.Context, to peerid.ID, queries []peerid.ID) (outcomes []Decision, err error)
}

// Round runs one iteration of §4.2's "Round": pick a peer v uniformly at
// random from the current view, send it a Ping asking about up to kIce
// subjects, and fold the Pong (or a timeout) into the reservoirs. A
// transport error or timeout is reported as a single Faulty outcome for
// every subject queried, never against v itself (§4.2's "Failure
// semantics"); Ice never retries a single Ping.
func (e *Engine) Round(ctx context.Context, transport PingTransport, rng *rand.Rand) {
	e.mu.Lock()
	view := e.set.List()
	e.mu.Unlock()

	var candidates []peerid.ID
	for _, v := range view {
		if v.NodeID != e.self {
			candidates = append(candidates, v.NodeID)
		}
	}
	if len(candidates) == 0 {
		return
	}
	target := candidates[rng.Intn(len(candidates))]

	subjects := e.subjectsToQuery(candidates, target)
	if len(subjects) == 0 {
		return
	}

	outcomes, err := transport.Ping(ctx, target, subjects)
	if err != nil {
		faulty := make([]Decision, len(subjects))
		for i := range faulty {
			faulty[i] = Faulty
		}
		e.ObservePong(subjects, faulty)
		return
	}
	if e.uptime != nil {
		e.uptime.Observe(target, time.Now())
	}
	e.ObservePong(subjects, outcomes)
}

// subjectsToQuery picks up to kIce candidates (excluding the peer being
// pinged) to ask target's opinion about.
func (e *Engine) subjectsToQuery(candidates []peerid.ID, target peerid.ID) []peerid.ID {
	out := make([]peerid.ID, 0, e.kIce)
	for _, c := range candidates {
		if c == target {
			continue
		}
		out = append(out, c)
		if len(out) >= e.kIce {
			break
		}
	}
	return out
}
