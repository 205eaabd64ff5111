// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ice implements reservoir-sampling peer-liveness consensus (§4.2):
// each node maintains a bounded reservoir of recently reported outcomes per
// candidate peer, promotes a tentative majority into a decision after a
// consecutive-agreement streak, and publishes LiveCommittee/FaultyCommittee
// snapshots as the set of Live peers crosses the weighted quorum.
package ice

import (
	"sync"

	"github.com/luxfi/log"

	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/utils/bag"
	"github.com/thecore-network/thecore/validator"
)

// Decision is a peer's current liveness verdict.
type Decision int

const (
	Unknown Decision = iota
	Live
	Faulty
)

func (d Decision) String() string {
	switch d {
	case Live:
		return "live"
	case Faulty:
		return "faulty"
	default:
		return "unknown"
	}
}

// reservoir is a fixed-capacity ring buffer of the most recent outcomes
// reported about one candidate peer.
type reservoir struct {
	outcomes []Decision
	cap      int
	next     int
	full     bool
}

func newReservoir(capacity int) *reservoir {
	return &reservoir{outcomes: make([]Decision, capacity), cap: capacity}
}

func (r *reservoir) observe(d Decision) {
	r.outcomes[r.next] = d
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.full = true
	}
}

// majority returns the tentative outcome once the reservoir is full, and
// whether it is ready to be consulted at all.
func (r *reservoir) majority() (Decision, bool) {
	if !r.full {
		return Unknown, false
	}
	votes := bag.Of(r.outcomes...)
	if votes.Count(Live) > votes.Count(Faulty) {
		return Live, true
	}
	return Faulty, true
}

// peerState tracks one candidate's reservoir, current decision, and the
// streak of consecutive tentative-majority agreements.
type peerState struct {
	res      *reservoir
	decision Decision
	streak   int
	lastMaj  Decision
}

// CommitteeBus receives committee snapshots published whenever the live
// weight crosses the 2f+1/f thresholds (§4.2's "Output"). Implementations
// typically fan these out to Sleet and Hail.
type CommitteeBus interface {
	PublishLive(c validator.Committee)
	PublishFaulty(c validator.Committee)
}

// Engine runs Ice's reservoir-sampling rounds for one node. Per §5, each
// engine serializes its own state: every exported method takes e.mu, and
// the engine is driven by a single message loop.
type Engine struct {
	mu sync.Mutex

	self       peerid.ID
	kIce       int
	beta1      int
	weightless bool

	set    *validator.Set
	state  map[peerid.ID]*peerState
	uptime *validator.UptimeTracker

	epoch   uint64
	liveIDs map[peerid.ID]struct{}
	bus     CommitteeBus
	log     log.Logger
}

// Config bundles the fixed parameters an Ice engine needs at construction.
type Config struct {
	Self       peerid.ID
	KIce       int
	Beta1      int
	Weightless bool
	Set        *validator.Set
	Bus        CommitteeBus
	Log        log.Logger
}

// New constructs an Ice engine over the given validator set.
func New(cfg Config) *Engine {
	return &Engine{
		self:       cfg.Self,
		kIce:       cfg.KIce,
		beta1:      cfg.Beta1,
		weightless: cfg.Weightless,
		set:        cfg.Set,
		state:      make(map[peerid.ID]*peerState),
		uptime:     validator.NewUptimeTracker(),
		liveIDs:    make(map[peerid.ID]struct{}),
		bus:        cfg.Bus,
		log:        cfg.Log,
	}
}

// SetBootstrapped flips the engine out of weightless bootstrap mode, per
// §4.2's "Safe bootstrap": after the alpha chain reports a validator set,
// decisions are weighted by stake rather than flat-whitelist.
func (e *Engine) SetBootstrapped(bootstrapped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weightless = !bootstrapped
}

func (e *Engine) stateFor(p peerid.ID) *peerState {
	s, ok := e.state[p]
	if !ok {
		s = &peerState{res: newReservoir(e.kIce)}
		e.state[p] = s
	}
	return s
}

// ObservePong records the outcome vector returned by a Pong, one entry per
// subject PeerId queried in the corresponding Ping. A timed-out Ping is
// reported the same way by the caller passing Faulty for every subject
// (§4.2's "Failure semantics": a timeout is a single Faulty outcome per
// subject, never against the respondent itself).
func (e *Engine) ObservePong(subjects []peerid.ID, outcomes []Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(subjects)
	if len(outcomes) < n {
		n = len(outcomes)
	}
	for i := 0; i < n; i++ {
		e.observeLocked(subjects[i], outcomes[i])
	}
	e.recomputeCommitteeLocked()
}

func (e *Engine) observeLocked(subject peerid.ID, outcome Decision) {
	st := e.stateFor(subject)
	st.res.observe(outcome)

	maj, ready := st.res.majority()
	if !ready {
		return
	}
	if maj == st.lastMaj {
		st.streak++
	} else {
		st.lastMaj = maj
		st.streak = 1
	}

	beta := e.beta1
	if !e.weightless && maj == Faulty {
		if _, isValidator := e.set.Weight(subject); isValidator {
			beta = beta * 2
		}
	}

	if st.streak >= beta && st.decision != maj {
		st.decision = maj
		if e.log != nil {
			e.log.Info("ice decision", "peer", subject.String(), "decision", maj.String())
		}
	}
}

// Uptime exposes the tracker recording when each peer was last seen
// responsive, populated as a side effect of Round's successful Pings.
func (e *Engine) Uptime() *validator.UptimeTracker {
	return e.uptime
}

// Decision returns the current liveness verdict for p.
func (e *Engine) Decision(p peerid.ID) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.state[p]
	if !ok {
		return Unknown
	}
	return st.decision
}

// recomputeCommitteeLocked checks whether the set of Live peers crosses
// the 2f+1/f weighted thresholds and, if so, publishes a new committee
// snapshot under a freshly incremented epoch.
func (e *Engine) recomputeCommitteeLocked() {
	var liveMembers []validator.Validator
	var liveWeight uint64
	for id, st := range e.state {
		if st.decision != Live {
			continue
		}
		w, ok := e.set.Weight(id)
		if !ok {
			w = 1 // weightless bootstrap: flat participation
		}
		liveMembers = append(liveMembers, validator.Validator{NodeID: id, Weight: w})
		liveWeight += w
	}

	total := e.set.TotalWeight()
	if total == 0 {
		total = uint64(len(e.state))
	}
	f := total / 3
	quorum := 2*f + 1

	_, wasLive := e.liveIDs[e.self]
	nowLive := liveWeight >= quorum

	if nowLive && !wasLive {
		e.epoch++
		committee := validator.NewCommittee(e.epoch, liveMembers)
		e.liveIDs = make(map[peerid.ID]struct{}, len(liveMembers))
		for _, m := range liveMembers {
			e.liveIDs[m.NodeID] = struct{}{}
		}
		e.liveIDs[e.self] = struct{}{}
		if e.bus != nil {
			e.bus.PublishLive(committee)
		}
	} else if !nowLive && wasLive {
		e.epoch++
		committee := validator.NewCommittee(e.epoch, liveMembers)
		e.liveIDs = make(map[peerid.ID]struct{})
		if e.bus != nil {
			e.bus.PublishFaulty(committee)
		}
	}
}

// Epoch returns the most recently published committee epoch.
func (e *Engine) Epoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}
