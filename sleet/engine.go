// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sleet

import (
	"context"

	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/sampling"
	"github.com/thecore-network/thecore/validator"
)

// QueryTransport abstracts "ask these peers whether this cell is strongly
// preferred" — the p2p collaborator's QueryTx/QueryTxAck round trip
// (§6). It returns each responding peer's answer keyed by PeerId, or an
// error; the engine treats a transport error as every peer timing out.
type QueryTransport interface {
	QueryCell(ctx context.Context, peers []peerid.ID, c *cell.Cell) (responses map[peerid.ID]bool, err error)
}

// Engine drives Sleet's message loop (§4.3.2, §5): it samples peers for
// each unqueried cell, applies the response via the DAG, and republishes
// reissued cells for a future round.
type Engine struct {
	dag       *DAG
	sampler   *sampling.Sampler
	transport QueryTransport
	self      peerid.ID
	params    sampling.Parameters

	committee validator.Committee
}

// NewEngine constructs a Sleet engine over an existing DAG.
func NewEngine(dag *DAG, sampler *sampling.Sampler, transport QueryTransport, self peerid.ID, params sampling.Parameters) *Engine {
	return &Engine{dag: dag, sampler: sampler, transport: transport, self: self, params: params}
}

// SetCommittee installs the LiveCommittee an engine samples against;
// called whenever Ice publishes a new snapshot. It cancels nothing: each
// query runs to completion inside RunRound under the committee current
// when it was issued.
func (e *Engine) SetCommittee(c validator.Committee) {
	e.committee = c
}

// Submit feeds a newly received cell into the DAG (§4.3.1).
func (e *Engine) Submit(c *cell.Cell, parents []cell.Id) error {
	return e.dag.OnReceive(c, parents)
}

// RunRound executes one iteration of §4.3.2's main loop over up to
// concurrentRepolls unqueried cells: sample, score the response against
// alpha, and apply success or failure to the DAG.
func (e *Engine) RunRound(ctx context.Context) error {
	candidates := e.dag.Unqueried(e.params.ConcurrentRepolls)
	for _, id := range candidates {
		c, ok := e.dag.Get(id)
		if !ok {
			continue
		}
		if err := e.queryOne(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) queryOne(ctx context.Context, c *cell.Cell) error {
	peers, err := e.sampler.WeightedSample(e.committee, e.self, e.params.K)
	if err != nil && len(peers) == 0 {
		return nil
	}

	q := sampling.NewQuery(peers, e.params.AlphaPreference, e.committee.Epoch)
	responses, transportErr := e.transport.QueryCell(ctx, peers, c)
	if transportErr == nil {
		for peer, yes := range responses {
			q.Record(peer, yes)
		}
	}
	q.TimeoutRemaining()

	if q.Succeeded() {
		e.dag.OnQuerySuccess(c.Id())
	} else {
		e.dag.OnQueryFailure(c.Id())
	}
	return nil
}
