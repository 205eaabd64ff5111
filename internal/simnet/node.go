// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simnet

import (
	"crypto/ed25519"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/hail"
	"github.com/thecore-network/thecore/ice"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/sampling"
	"github.com/thecore-network/thecore/sleet"
	"github.com/thecore-network/thecore/validator"
	"github.com/thecore-network/thecore/vrf"
)

// genesisAncestry treats a spend of the zero OutPoint.Source as always
// already settled, mirroring cmd/thecore's storageAncestry without
// needing a pebble-backed store for scenario tests.
type genesisAncestry struct{}

func (genesisAncestry) IsAcceptedInput(op cell.OutPoint) bool {
	return op.Source == cell.Empty
}

// hailSortition checks a producer's VRF proof and stake-scaled
// eligibility against the shared validator set, identical in shape to
// cmd/thecore's sortitionVerifier.
type hailSortition struct {
	set      *validator.Set
	constant float64
}

func (h *hailSortition) Verify(height block.Height, parentSeed, producerPubKey, proof, output []byte) (bool, error) {
	pub := ed25519.PublicKey(producerPubKey)
	if err := vrf.Verify(pub, uint64(height), parentSeed, proof, output); err != nil {
		return false, nil
	}
	producer := peerid.FromSPKI(producerPubKey)
	weight, ok := h.set.Weight(producer)
	if !ok {
		return false, nil
	}
	return hail.Eligible(output, weight, h.set.TotalWeight(), h.constant), nil
}

// noopBus discards committee publications; scenario tests that care about
// liveness read ice.Engine.Decision directly instead of subscribing.
type noopBus struct{}

func (noopBus) PublishLive(validator.Committee)   {}
func (noopBus) PublishFaulty(validator.Committee) {}

// NewNode wires one participant's Ice, Sleet, and Hail engines over a
// shared Transport, identically in shape to cmd/thecore.newEngines but
// without persistence or a real dispatcher.
func NewNode(self peerid.ID, set *validator.Set, params sampling.Parameters, net *Network, sortitionConstant float64, seed int64) *Node {
	transport := NewTransport(self, net)

	iceEngine := ice.New(ice.Config{
		Self:  self,
		KIce:  params.K,
		Beta1: params.Beta1,
		Set:   set,
		Bus:   noopBus{},
	})

	dag := sleet.NewDAG(params, genesisAncestry{}, nil, nil)
	sleetEngine := sleet.NewEngine(dag, sampling.NewSampler(seed), transport, self, params)

	chain := hail.NewChain(params, &hailSortition{set: set, constant: sortitionConstant}, dag, nil, nil)
	hailEngine := hail.NewEngine(chain, sampling.NewSampler(seed+1), transport, self, params)
	hailEngine.OnReissue(func(cells []cell.Id) {
		for _, id := range cells {
			dag.OnQueryFailure(id)
		}
	})

	committee := validator.NewCommittee(0, set.List())
	sleetEngine.SetCommittee(committee)
	hailEngine.SetCommittee(committee)

	node := &Node{ID: self, DAG: dag, Sleet: sleetEngine, Chain: chain, Hail: hailEngine, Ice: iceEngine}
	net.AddNode(node)
	return node
}
