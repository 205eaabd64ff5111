// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hail implements Snowman-style per-height block consensus
// augmented with VRF-based leader sortition (§4.4): blocks at a height
// compete in a single conflict set, preference follows the lowest VRF
// output, and acceptance follows the same two-condition rule as Sleet.
package hail

import (
	"errors"
	"sync"

	"github.com/luxfi/log"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/sampling"
	"github.com/thecore-network/thecore/set"
	"github.com/thecore-network/thecore/vrf"
)

var (
	// ErrUnknownParent is returned when a block's declared parent is not
	// yet known locally.
	ErrUnknownParent = errors.New("hail: parent block is unknown")
	// ErrSortitionFailed is returned when a block's VRF proof does not
	// verify or does not clear the sortition threshold.
	ErrSortitionFailed = errors.New("hail: VRF sortition check failed")
	// ErrCellsNotReady is returned by OnReceive when the block references
	// cells Sleet has not yet accepted or rejected; the caller should
	// hold the block per §4.5 until Sleet resolves them or the stall
	// timeout elapses.
	ErrCellsNotReady = errors.New("hail: referenced cells not yet resolved")
	// ErrCellRejected is returned when a block references a cell Sleet
	// has resolved as rejected: the block can never become valid.
	ErrCellRejected = errors.New("hail: block references a rejected cell")
)

// SortitionVerifier checks a producer's VRF proof against the validator
// set and stake weights known at a height (§4.4.1, §4.4.3).
type SortitionVerifier interface {
	// Verify checks the proof/output pair and reports whether the
	// producer cleared the sortition threshold for height.
	Verify(height block.Height, parentSeed []byte, producerPubKey, proof, output []byte) (cleared bool, err error)
}

// CellResolver answers whether every cell a block references has already
// been resolved (accepted or rejected) by Sleet (§4.5's gating).
type CellResolver interface {
	Resolved(id cell.Id) (accepted bool, resolved bool)
}

// FinalSink receives blocks as Hail finalizes them.
type FinalSink interface {
	OnBlockFinal(b *block.Block)
}

// heightSet is the per-height conflict set P_h (§4.4).
type heightSet struct {
	members set.Set[block.Id]
	pref    block.Id
	last    block.Id
	cnt     int
}

type blockVertex struct {
	block    *block.Block
	chit     int
	accepted bool
}

// Chain is the DAG of blocks keyed by Id, with per-height conflict sets.
type Chain struct {
	mu sync.Mutex

	blocks  map[block.Id]*blockVertex
	heights map[block.Height]*heightSet

	params     sampling.Parameters
	sortition  SortitionVerifier
	cells      CellResolver
	sink       FinalSink
	log        log.Logger
	lastAccept block.Height
	acceptedAt map[block.Height]block.Id
}

// NewChain constructs an empty Hail chain.
func NewChain(params sampling.Parameters, sortition SortitionVerifier, cells CellResolver, sink FinalSink, logger log.Logger) *Chain {
	return &Chain{
		blocks:     make(map[block.Id]*blockVertex),
		heights:    make(map[block.Height]*heightSet),
		params:     params,
		sortition:  sortition,
		cells:      cells,
		sink:       sink,
		log:        logger,
		acceptedAt: make(map[block.Height]block.Id),
	}
}

// Get returns the block for id, if known.
func (c *Chain) Get(id block.Id) (*block.Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.blocks[id]
	if !ok {
		return nil, false
	}
	return v.block, true
}

// AcceptedAt returns the accepted block at height h, if any.
func (c *Chain) AcceptedAt(h block.Height) (block.Id, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.acceptedAt[h]
	return id, ok
}

// IsStronglyPreferred mirrors sleet.DAG.IsStronglyPreferred for blocks:
// true iff every ancestor of id (including id) is currently the pref of
// its height's conflict set. An unknown id has no ancestry registered
// and so is vacuously true; callers answering a QueryBlock responder
// should first run id through OnReceive if it is not yet known.
func (c *Chain) IsStronglyPreferred(id block.Id) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ancestor := range c.ancestryLocked(id) {
		av, ok := c.blocks[ancestor]
		if !ok {
			continue
		}
		hs := c.heights[av.block.Height]
		if hs == nil {
			continue
		}
		if hs.pref != block.Empty && hs.pref != ancestor {
			return false
		}
	}
	return true
}

// OnReceive implements §4.4.3: validate VRF sortition, require the parent
// be known, require every referenced cell be resolved, then insert into
// P_h and update pref on size >= 2.
func (c *Chain) OnReceive(b *block.Block, parentSeed, producerPubKey []byte) error {
	cleared, err := c.sortition.Verify(b.Height, parentSeed, producerPubKey, b.VRFProof, b.VRFOutput)
	if err != nil || !cleared {
		return ErrSortitionFailed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := b.Id()
	if _, exists := c.blocks[id]; exists {
		return nil
	}

	if b.Height > 0 {
		if _, ok := c.blocks[b.Parent]; !ok {
			return ErrUnknownParent
		}
	}

	for _, cid := range b.Cells {
		accepted, resolved := c.cells.Resolved(cid)
		if !resolved {
			return ErrCellsNotReady
		}
		if !accepted {
			return ErrCellRejected
		}
	}

	c.blocks[id] = &blockVertex{block: b}

	hs, ok := c.heights[b.Height]
	if !ok {
		hs = &heightSet{members: set.Set[block.Id]{}}
		c.heights[b.Height] = hs
	}
	hs.members.Add(id)

	if hs.members.Len() >= 2 && hs.cnt == 0 {
		hs.pref = lowestByVRF(c.blocks, hs.members)
		hs.last = hs.pref
	} else if hs.members.Len() == 1 {
		hs.pref = id
		hs.last = id
	}

	return nil
}

// lowestByVRF picks the member with the lowest VRF output, falling back
// to the lowest BlockId on ties (§4.4.3's tie-break order).
func lowestByVRF(blocks map[block.Id]*blockVertex, members set.Set[block.Id]) block.Id {
	var best block.Id
	first := true
	for id := range members {
		if first {
			best = id
			first = false
			continue
		}
		if compareVRF(blocks[id].block, blocks[best].block) < 0 {
			best = id
		}
	}
	return best
}

func compareVRF(a, b *block.Block) int {
	n := len(a.VRFOutput)
	if len(b.VRFOutput) < n {
		n = len(b.VRFOutput)
	}
	for i := 0; i < n; i++ {
		if a.VRFOutput[i] != b.VRFOutput[i] {
			if a.VRFOutput[i] < b.VRFOutput[i] {
				return -1
			}
			return 1
		}
	}
	return a.Id().Compare(b.Id())
}

// ancestryLocked returns the chain of parents from id back to genesis,
// including id, per §4.4.4's "a block's ancestry is the chain of its
// parents".
func (c *Chain) ancestryLocked(id block.Id) []block.Id {
	out := []block.Id{id}
	cur := id
	for {
		v, ok := c.blocks[cur]
		if !ok || v.block.Height == 0 {
			break
		}
		out = append(out, v.block.Parent)
		cur = v.block.Parent
	}
	return out
}

// OnQuerySuccess implements the success branch of §4.4.4.
func (c *Chain) OnQuerySuccess(id block.Id) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.blocks[id]; ok {
		v.chit = 1
	}

	for _, ancestor := range c.ancestryLocked(id) {
		av, ok := c.blocks[ancestor]
		if !ok {
			continue
		}
		hs := c.heights[av.block.Height]
		if hs == nil {
			continue
		}
		if ancestor != hs.last {
			hs.last = ancestor
			hs.cnt = 1
		} else {
			hs.cnt++
		}
	}

	c.tryAcceptLocked(id)
}

// OnQueryFailure implements §4.4.4's failure branch: reset cnt for every
// height up to id and signal which cells to reissue back to Sleet so the
// frontier can heal (§4.4.4, §4.5).
func (c *Chain) OnQueryFailure(id block.Id) []cell.Id {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cellsToReissue []cell.Id
	for _, ancestor := range c.ancestryLocked(id) {
		av, ok := c.blocks[ancestor]
		if !ok {
			continue
		}
		if hs := c.heights[av.block.Height]; hs != nil {
			hs.cnt = 0
		}
		cellsToReissue = append(cellsToReissue, av.block.Cells...)
	}
	return cellsToReissue
}

func (c *Chain) tryAcceptLocked(id block.Id) {
	v, ok := c.blocks[id]
	if !ok || v.accepted {
		return
	}
	hs := c.heights[v.block.Height]
	if hs == nil {
		return
	}

	uncontested := hs.members.Len() == 1
	allAncestorsAccepted := true
	for _, ancestor := range c.ancestryLocked(id) {
		if ancestor == id {
			continue
		}
		if av, ok := c.blocks[ancestor]; ok && !av.accepted {
			allAncestorsAccepted = false
			break
		}
	}

	earlyCommit := allAncestorsAccepted && uncontested && hs.cnt >= c.params.Beta1
	final := hs.cnt >= c.params.Beta2

	if earlyCommit || final {
		v.accepted = true
		c.acceptedAt[v.block.Height] = id
		if c.sink != nil {
			c.sink.OnBlockFinal(v.block)
		}
		if c.log != nil {
			c.log.Info("block accepted", "height", uint64(v.block.Height), "block", id.String())
		}
	}
}

// Eligible reports whether output clears the sortition threshold for a
// validator holding weight out of totalWeight (thin wrapper over the vrf
// package so callers need only this one entry point).
func Eligible(output []byte, weight, totalWeight uint64, sortitionConstant float64) bool {
	return vrf.WinsSortition(output, weight, totalWeight, sortitionConstant)
}
