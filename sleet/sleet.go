// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sleet implements Avalanche-style DAG consensus over cells
// (§4.3): cells reference parent cells and spend prior outputs; conflict
// sets are keyed per spent input; acceptance follows from a
// conviction-weighted preference that must hold for a confidence streak.
package sleet

import (
	"errors"
	"sort"
	"sync"

	"github.com/luxfi/log"

	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/sampling"
	"github.com/thecore-network/thecore/set"
)

// Status is a cell's lifecycle stage within the DAG (§3's "Lifecycles").
type Status int

const (
	Unqueried Status = iota
	Queried
	Accepted
	Rejected
)

var (
	// ErrUnknownAncestor is returned when a cell spends an input that is
	// neither in the DAG nor the alpha frontier.
	ErrUnknownAncestor = errors.New("sleet: referenced input is unknown")
	// ErrAlreadyPresent is returned by OnReceive for a cell already in
	// the DAG; re-delivery is a no-op per testable property #5.
	ErrAlreadyPresent = errors.New("sleet: cell already present")
)

// AncestorChecker answers whether an input not found in the local DAG is
// nonetheless already settled in the alpha frontier (i.e. a spend of
// genesis or otherwise externally finalized state).
type AncestorChecker interface {
	IsAcceptedInput(op cell.OutPoint) bool
}

// FrontierSink receives cells as Sleet finalizes them, in topological
// order, for Hail to consume (§4.3.3, §4.5).
type FrontierSink interface {
	OnCellAccepted(c *cell.Cell)
}

// conflictSet tracks the competing cells spending one UTXO input, and the
// (pref, last, cnt) triple §3 defines for it.
type conflictSet struct {
	members set.Set[cell.Id]
	pref    cell.Id
	last    cell.Id
	cnt     int
}

// vertex is one DAG node: the cell itself, its parent edge set, its chit,
// and bookkeeping needed for conviction and acceptance.
type vertex struct {
	cell     *cell.Cell
	parents  []cell.Id
	children []cell.Id
	chit     int
	status   Status
}

// DAG is the arena of received cells, indexed by Id; conflict sets hold
// indices into it rather than owning references (§9's arena strategy).
type DAG struct {
	mu        sync.Mutex
	vertices  map[cell.Id]*vertex
	conflicts map[string]*conflictSet

	params   sampling.Parameters
	ancestry AncestorChecker
	sink     FrontierSink
	log      log.Logger

	accepted []cell.Id
}

// NewDAG constructs an empty DAG engine.
func NewDAG(params sampling.Parameters, ancestry AncestorChecker, sink FrontierSink, logger log.Logger) *DAG {
	return &DAG{
		vertices:  make(map[cell.Id]*vertex),
		conflicts: make(map[string]*conflictSet),
		params:    params,
		ancestry:  ancestry,
		sink:      sink,
		log:       logger,
	}
}

// Get returns the cell for id, if known.
func (d *DAG) Get(id cell.Id) (*cell.Cell, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.vertices[id]
	if !ok {
		return nil, false
	}
	return v.cell, true
}

// Status returns the lifecycle stage of id, or Unqueried if unknown (a
// cell must be inserted via OnReceive before it has meaningful status).
func (d *DAG) Status(id cell.Id) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.vertices[id]
	if !ok {
		return Unqueried
	}
	return v.status
}

// OnReceive implements §4.3.1: validate, insert into the DAG, register
// against every input's conflict set, and mark the cell unqueried.
// Re-delivery of an already-present cell is a no-op (property #5).
func (d *DAG) OnReceive(c *cell.Cell, parents []cell.Id) error {
	if err := c.Verify(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := c.Id()
	if _, exists := d.vertices[id]; exists {
		return nil
	}

	for _, op := range c.Inputs {
		if !d.inputExistsLocked(op.OutPoint) {
			return ErrUnknownAncestor
		}
	}

	v := &vertex{cell: c, parents: parents, status: Unqueried}
	d.vertices[id] = v
	for _, p := range parents {
		if pv, ok := d.vertices[p]; ok {
			pv.children = append(pv.children, id)
		}
	}

	for _, key := range c.InputKeys() {
		cs, ok := d.conflicts[key]
		if !ok {
			cs = &conflictSet{members: set.Set[cell.Id]{}}
			d.conflicts[key] = cs
		}
		cs.members.Add(id)
		if cs.members.Len() >= 2 && cs.pref == cell.Empty {
			cs.pref = lowestID(cs.members)
			cs.last = cs.pref
			cs.cnt = 0
		}
	}

	return nil
}

func (d *DAG) inputExistsLocked(op cell.OutPoint) bool {
	if _, ok := d.vertices[op.Source]; ok {
		return true
	}
	if d.ancestry != nil && d.ancestry.IsAcceptedInput(op) {
		return true
	}
	return false
}

func lowestID(members set.Set[cell.Id]) cell.Id {
	var min cell.Id
	first := true
	for id := range members {
		if first || id.Compare(min) < 0 {
			min = id
			first = false
		}
	}
	return min
}

// ancestorsOfLocked returns every ancestor of id, including id itself, in no
// particular order; used to walk T' →* T_genesis per §4.3.2.
func (d *DAG) ancestorsOfLocked(id cell.Id) []cell.Id {
	seen := set.Of(id)
	stack := []cell.Id{id}
	out := []cell.Id{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		v, ok := d.vertices[cur]
		if !ok {
			continue
		}
		for _, p := range v.parents {
			if seen.Contains(p) {
				continue
			}
			seen.Add(p)
			out = append(out, p)
			stack = append(stack, p)
		}
	}
	return out
}

// convictionLocked sums chits over every descendant of id, including id itself.
func (d *DAG) convictionLocked(id cell.Id) int {
	seen := set.Set[cell.Id]{}
	var walk func(cell.Id) int
	walk = func(cur cell.Id) int {
		if seen.Contains(cur) {
			return 0
		}
		seen.Add(cur)
		v, ok := d.vertices[cur]
		if !ok {
			return 0
		}
		total := v.chit
		for _, ch := range v.children {
			total += walk(ch)
		}
		return total
	}
	return walk(id)
}

// keysOfLocked returns the conflict-set keys a cell id participates in.
func (d *DAG) keysOfLocked(id cell.Id) []string {
	v, ok := d.vertices[id]
	if !ok {
		return nil
	}
	return v.cell.InputKeys()
}

// OnQuerySuccess implements the success branch of §4.3.2: set the chit,
// then walk the ancestry recomputing conviction and updating each
// ancestor's conflict sets' (pref, last, cnt).
func (d *DAG) OnQuerySuccess(id cell.Id) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := d.vertices[id]; ok {
		v.chit = 1
		if v.status != Accepted && v.status != Rejected {
			v.status = Queried
		}
	}

	for _, ancestor := range d.ancestorsOfLocked(id) {
		conv := d.convictionLocked(ancestor)
		for _, key := range d.keysOfLocked(ancestor) {
			cs := d.conflicts[key]
			if cs == nil {
				continue
			}
			prefConv := d.convictionLocked(cs.pref)
			if cs.pref == cell.Empty || conv > prefConv {
				cs.pref = ancestor
			}
			if ancestor != cs.last {
				cs.last = ancestor
				cs.cnt = 1
			} else {
				cs.cnt++
			}
		}
	}

	d.tryAcceptLocked(id)
}

// OnQueryFailure implements the failure branch of §4.3.2: reset cnt to 0
// in every conflict set touched by id's ancestry and reissue (mark
// unqueried) every cell in those conflict sets so confidence can recover.
func (d *DAG) OnQueryFailure(id cell.Id) []cell.Id {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := d.vertices[id]; ok && v.status != Accepted && v.status != Rejected {
		v.status = Queried
	}

	var reissued []cell.Id
	for _, ancestor := range d.ancestorsOfLocked(id) {
		for _, key := range d.keysOfLocked(ancestor) {
			cs := d.conflicts[key]
			if cs == nil {
				continue
			}
			cs.cnt = 0
			for member := range cs.members {
				if v, ok := d.vertices[member]; ok && v.status != Accepted && v.status != Rejected {
					v.status = Unqueried
					reissued = append(reissued, member)
				}
			}
		}
	}
	return reissued
}

// tryAcceptLocked implements §4.3.3's two acceptance conditions.
func (d *DAG) tryAcceptLocked(id cell.Id) {
	v, ok := d.vertices[id]
	if !ok || v.status == Accepted {
		return
	}

	uncontested := true
	var minCnt = -1
	for _, key := range d.keysOfLocked(id) {
		cs := d.conflicts[key]
		if cs == nil {
			continue
		}
		if cs.members.Len() != 1 {
			uncontested = false
		}
		if minCnt == -1 || cs.cnt < minCnt {
			minCnt = cs.cnt
		}
	}
	if minCnt == -1 {
		minCnt = 0
	}

	allAncestorsAccepted := true
	for _, ancestor := range d.ancestorsOfLocked(id) {
		if ancestor == id {
			continue
		}
		if a, ok := d.vertices[ancestor]; ok && a.status != Accepted {
			allAncestorsAccepted = false
			break
		}
	}

	earlyCommit := allAncestorsAccepted && uncontested && minCnt >= d.params.Beta1
	final := minCnt >= d.params.Beta2

	if earlyCommit || final {
		d.acceptLocked(id)
	}
}

func (d *DAG) acceptLocked(id cell.Id) {
	v, ok := d.vertices[id]
	if !ok || v.status == Accepted {
		return
	}
	v.status = Accepted
	d.accepted = append(d.accepted, id)
	if d.sink != nil {
		d.sink.OnCellAccepted(v.cell)
	}
	if d.log != nil {
		d.log.Info("cell accepted", "cell", id.String())
	}

	// §4.3.3: "An accepted cell's conflicts are implicitly rejected"; the
	// no-two-accepted-cells-share-an-input invariant means every other
	// member of each of id's conflict sets can never become accepted.
	for _, key := range v.cell.InputKeys() {
		cs := d.conflicts[key]
		if cs == nil {
			continue
		}
		for member := range cs.members {
			if member == id {
				continue
			}
			if mv, ok := d.vertices[member]; ok && mv.status != Accepted {
				mv.status = Rejected
			}
		}
	}
}

// Unqueried returns up to limit cell Ids not yet terminal, for the main
// loop to pick from (§4.3.2's "Select any unqueried T"). A cell already
// queried once (status Queried) is still eligible: reaching Beta1/Beta2
// requires a consecutive-success streak built up over many rounds, not a
// single query, so the round loop must keep repolling it until it is
// Accepted, Rejected, or reset back to Unqueried by a conflict set's
// OnQueryFailure.
func (d *DAG) Unqueried(limit int) []cell.Id {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []cell.Id
	ids := make([]cell.Id, 0, len(d.vertices))
	for id := range d.vertices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	for _, id := range ids {
		switch d.vertices[id].status {
		case Accepted, Rejected:
			continue
		}
		if d.outpreferredLocked(id) {
			continue
		}
		out = append(out, id)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// outpreferredLocked reports whether id has lost the preference in at
// least one of its conflict sets to a different, already-established
// member. A losing cell's own "is T strongly preferred" query always
// comes back no once a conflict set has settled on another pref, so
// repeatedly repolling it only drives §4.3.2's failure branch, which
// resets cnt to 0 for the whole conflict set and sabotages the winner's
// progress. Hail's unresolvedHeights already samples only a height's
// current pref for the same reason; this mirrors that choice for Sleet
// so a conflict set's non-preferred members are parked (never repolled)
// until acceptance resolves them to Rejected, rather than polled every
// round alongside the preference.
func (d *DAG) outpreferredLocked(id cell.Id) bool {
	for _, key := range d.keysOfLocked(id) {
		cs := d.conflicts[key]
		if cs == nil {
			continue
		}
		if cs.pref != cell.Empty && cs.pref != id {
			return true
		}
	}
	return false
}

// Resolved reports whether id has reached a terminal status, and if so
// whether that status is Accepted. It lets Hail implement §4.5's gate
// ("if an incoming block references a cell not yet accepted by Sleet,
// Hail holds processing...") without reaching into the DAG's internals.
func (d *DAG) Resolved(id cell.Id) (accepted bool, resolved bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.vertices[id]
	if !ok {
		return false, false
	}
	switch v.status {
	case Accepted:
		return true, true
	case Rejected:
		return false, true
	default:
		return false, false
	}
}

// Frontier returns the accepted cells in the order they were finalized.
func (d *DAG) Frontier() []cell.Id {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]cell.Id, len(d.accepted))
	copy(out, d.accepted)
	return out
}

// IsStronglyPreferred implements §4.3.5's responder rule: true iff every
// ancestor of id (including id) is currently the pref of every conflict
// set it belongs to. An unknown id is first run through OnReceive-style
// synchronous insertion by the caller before calling this.
func (d *DAG) IsStronglyPreferred(id cell.Id) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ancestor := range d.ancestorsOfLocked(id) {
		for _, key := range d.keysOfLocked(ancestor) {
			cs := d.conflicts[key]
			if cs == nil {
				continue
			}
			if cs.pref != cell.Empty && cs.pref != ancestor {
				return false
			}
		}
	}
	return true
}
