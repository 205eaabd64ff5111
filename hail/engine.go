// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hail

import (
	"context"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/sampling"
	"github.com/thecore-network/thecore/validator"
)

// QueryTransport abstracts "ask these peers whether this block is
// strongly preferred" — the p2p collaborator's QueryBlock/QueryBlockAck
// round trip (§6, §4.4.4). Mirrors sleet.QueryTransport's shape.
type QueryTransport interface {
	QueryBlock(ctx context.Context, peers []peerid.ID, b *block.Block) (responses map[peerid.ID]bool, err error)
}

// Engine drives Hail's message loop (§4.4.4, §5): it samples peers for
// each height with an outstanding, unresolved block and applies the
// response through the Chain, identically in structure to sleet.Engine
// but keyed by height instead of by cell.
type Engine struct {
	chain     *Chain
	sampler   *sampling.Sampler
	transport QueryTransport
	self      peerid.ID
	params    sampling.Parameters

	committee validator.Committee

	// onReissue is invoked with the cell ids OnQueryFailure asks to be
	// reissued to Sleet, implementing §4.5's healing coupling.
	onReissue func(cells []cell.Id)
}

// NewEngine constructs a Hail engine over an existing Chain.
func NewEngine(chain *Chain, sampler *sampling.Sampler, transport QueryTransport, self peerid.ID, params sampling.Parameters) *Engine {
	return &Engine{chain: chain, sampler: sampler, transport: transport, self: self, params: params}
}

// SetCommittee installs the LiveCommittee an engine samples against,
// mirroring sleet.Engine.SetCommittee.
func (e *Engine) SetCommittee(c validator.Committee) {
	e.committee = c
}

// unresolvedHeights returns, for every height whose preferred block is not
// yet accepted, that preferred block's id; other members of the height's
// conflict set are not returned. The order follows map iteration and is
// not sorted by height.
func (e *Engine) unresolvedHeights() []block.Id {
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	var out []block.Id
	for _, hs := range e.chain.heights {
		if hs.pref == block.Empty {
			continue
		}
		if v, ok := e.chain.blocks[hs.pref]; ok && !v.accepted {
			out = append(out, hs.pref)
		}
	}
	return out
}

// RunRound executes one iteration of §4.4.4's main loop: for every height
// with an outstanding preferred block, sample peers, score the response
// against alpha, and apply success or failure to the Chain.
func (e *Engine) RunRound(ctx context.Context) error {
	for _, id := range e.unresolvedHeights() {
		b, ok := e.chain.Get(id)
		if !ok {
			continue
		}
		if err := e.queryOne(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) queryOne(ctx context.Context, b *block.Block) error {
	peers, err := e.sampler.WeightedSample(e.committee, e.self, e.params.K)
	if err != nil && len(peers) == 0 {
		return nil
	}

	q := sampling.NewQuery(peers, e.params.AlphaPreference, e.committee.Epoch)
	responses, transportErr := e.transport.QueryBlock(ctx, peers, b)
	if transportErr == nil {
		for peer, yes := range responses {
			q.Record(peer, yes)
		}
	}
	q.TimeoutRemaining()

	if q.Succeeded() {
		e.chain.OnQuerySuccess(b.Id())
		return nil
	}

	cells := e.chain.OnQueryFailure(b.Id())
	if e.onReissue != nil && len(cells) > 0 {
		e.onReissue(cells)
	}
	return nil
}

// OnReissue registers fn to be called with the cell ids OnQueryFailure
// asks Sleet to reconsider, implementing §4.5's "Sleet↔Hail coupling"
// healing path. The caller typically wires fn to mark those cells
// unqueried in the sleet.DAG.
func (e *Engine) OnReissue(fn func(cells []cell.Id)) {
	e.onReissue = fn
}
