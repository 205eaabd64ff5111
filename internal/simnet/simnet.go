// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package simnet is an in-memory network harness for driving the three
// consensus engines (ice, sleet, hail) across several simulated nodes
// without a real socket, used by the end-to-end scenario tests. It
// routes each query directly into the target node's engine rather than
// encoding wire frames, and can introduce message drops or partitions
// between specific node pairs.
package simnet

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/hail"
	"github.com/thecore-network/thecore/ice"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/sleet"
)

// errUnreachable is returned by Transport.Ping when the target peer is
// dropped or partitioned away; the caller (ice.Engine.Round) folds this
// into a Faulty outcome for every queried subject.
var errUnreachable = errors.New("simnet: peer unreachable")

// Node bundles one simulated participant's engines.
type Node struct {
	ID    peerid.ID
	DAG   *sleet.DAG
	Sleet *sleet.Engine
	Chain *hail.Chain
	Hail  *hail.Engine
	Ice   *ice.Engine
}

// Network is an in-memory cluster: message delivery is a direct call
// into the target node's engine, optionally dropped or cut off by a
// partition, mirroring the teacher's testutils.Network but routing
// consensus calls instead of raw byte messages.
type Network struct {
	mu         sync.RWMutex
	nodes      map[peerid.ID]*Node
	partitions [][]peerid.ID
	dropRate   float64
	rng        *rand.Rand
}

// New constructs an empty network. seed makes drop decisions
// reproducible across test runs.
func New(seed int64) *Network {
	return &Network{
		nodes: make(map[peerid.ID]*Node),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// AddNode registers a simulated participant.
func (n *Network) AddNode(node *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[node.ID] = node
}

// Node returns a registered participant by id.
func (n *Network) Node(id peerid.ID) (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	node, ok := n.nodes[id]
	return node, ok
}

// Nodes returns every registered participant, in insertion-independent
// but stable order for deterministic scenario tests.
func (n *Network) Nodes() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out
}

// SetDropRate sets the probability (0.0-1.0) that any single query
// delivery is dropped, simulating packet loss for S6-style scenarios.
func (n *Network) SetDropRate(rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropRate = rate
}

// Partition splits the network into disjoint groups; nodes in different
// groups cannot reach each other until Heal is called (S3-style
// scenarios).
func (n *Network) Partition(groups ...[]peerid.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitions = groups
}

// Heal removes all partitions.
func (n *Network) Heal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitions = nil
}

func (n *Network) reachable(from, to peerid.ID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dropRate > 0 && n.rng.Float64() < n.dropRate {
		return false
	}
	if len(n.partitions) == 0 {
		return true
	}
	fromGroup, toGroup := -1, -1
	for i, group := range n.partitions {
		for _, id := range group {
			if id == from {
				fromGroup = i
			}
			if id == to {
				toGroup = i
			}
		}
	}
	return fromGroup == -1 || toGroup == -1 || fromGroup == toGroup
}

// GossipCell delivers a cell (and the Ids of its DAG parents) to every
// registered node except the origin, subject to drop/partition rules,
// mirroring §4.5's "gap-fill" path a real node takes via GetCell when it
// references a cell it has not seen (S4).
func (n *Network) GossipCell(from peerid.ID, c *cell.Cell, parents []cell.Id) {
	for _, node := range n.Nodes() {
		if node.ID == from || !n.reachable(from, node.ID) {
			continue
		}
		_ = node.DAG.OnReceive(c, parents)
	}
}

// GossipBlock delivers a block to every registered node except the
// origin, subject to drop/partition rules.
func (n *Network) GossipBlock(from peerid.ID, b *block.Block, parentSeed, producerPubKey []byte) {
	for _, node := range n.Nodes() {
		if node.ID == from || !n.reachable(from, node.ID) {
			continue
		}
		_ = node.Chain.OnReceive(b, parentSeed, producerPubKey)
	}
}

// Transport implements sleet.QueryTransport, hail.QueryTransport, and
// ice.PingTransport for one node's outbound queries, routed through the
// network's reachability rules straight into peers' engines.
type Transport struct {
	self peerid.ID
	net  *Network
}

// NewTransport builds the query transport a node's three engines share.
func NewTransport(self peerid.ID, net *Network) *Transport {
	return &Transport{self: self, net: net}
}

// QueryCell implements sleet.QueryTransport.
func (t *Transport) QueryCell(_ context.Context, peers []peerid.ID, c *cell.Cell) (map[peerid.ID]bool, error) {
	out := make(map[peerid.ID]bool, len(peers))
	for _, p := range peers {
		if !t.net.reachable(t.self, p) {
			continue
		}
		peer, ok := t.net.Node(p)
		if !ok {
			continue
		}
		if _, ok := peer.DAG.Get(c.Id()); !ok {
			continue
		}
		out[p] = peer.DAG.IsStronglyPreferred(c.Id())
	}
	return out, nil
}

// QueryBlock implements hail.QueryTransport.
func (t *Transport) QueryBlock(_ context.Context, peers []peerid.ID, b *block.Block) (map[peerid.ID]bool, error) {
	out := make(map[peerid.ID]bool, len(peers))
	for _, p := range peers {
		if !t.net.reachable(t.self, p) {
			continue
		}
		peer, ok := t.net.Node(p)
		if !ok {
			continue
		}
		if _, ok := peer.Chain.Get(b.Id()); !ok {
			continue
		}
		accepted, resolved := peer.Chain.AcceptedAt(b.Height)
		if resolved && accepted == b.Id() {
			out[p] = true
			continue
		}
		// A block not yet at the accepted frontier for its height is
		// still a candidate; its responder counts it preferred unless a
		// different block has already won the height. Unlike QueryCell,
		// this does not consult the peer's Chain.IsStronglyPreferred, so
		// the peer's current pref at the height is not taken into account.
		out[p] = !resolved || accepted == b.Id()
	}
	return out, nil
}

// Ping implements ice.PingTransport: it asks "to" for its live/faulty
// verdict on each subject by consulting the respondent's own Ice engine.
func (t *Transport) Ping(_ context.Context, to peerid.ID, queries []peerid.ID) ([]ice.Decision, error) {
	if !t.net.reachable(t.self, to) {
		return nil, errUnreachable
	}
	peer, ok := t.net.Node(to)
	if !ok {
		return nil, errUnreachable
	}
	out := make([]ice.Decision, len(queries))
	for i, subject := range queries {
		if subject == to {
			out[i] = ice.Live
			continue
		}
		out[i] = peer.Ice.Decision(subject)
	}
	return out, nil
}
