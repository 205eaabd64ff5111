// Copyright (C) 2019-2024, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sampling

import (
	"sync"

	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/utils/bag"
)

// Query tracks one in-flight sampling round over a fixed set of peers: it
// tallies yes/no responses as they arrive and resolves once every peer has
// either responded or timed out. Non-responses count as "no" per §4.1.
type Query struct {
	mu        sync.Mutex
	peers     map[peerid.ID]struct{}
	responded map[peerid.ID]bool
	alpha     int
	epoch     uint64
	cancelled bool
}

// NewQuery starts a query against the given peer set, requiring alpha
// "yes" responses to succeed. epoch pins the LiveCommittee epoch this
// query was issued under, so a caller can compare it with a newer
// committee's epoch and Cancel a stale query.
func NewQuery(peers []peerid.ID, alpha int, epoch uint64) *Query {
	set := make(map[peerid.ID]struct{}, len(peers))
	for _, p := range peers {
		set[p] = struct{}{}
	}
	return &Query{
		peers:     set,
		responded: make(map[peerid.ID]bool),
		alpha:     alpha,
		epoch:     epoch,
	}
}

// Epoch returns the LiveCommittee epoch this query was issued under.
func (q *Query) Epoch() uint64 {
	return q.epoch
}

// Record registers a response from peer. Responses from peers outside the
// sampled set, or received after cancellation, are ignored: a cancelled
// query must never update chit/cnt (§4.1).
func (q *Query) Record(peer peerid.ID, yes bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelled {
		return
	}
	if _, sampled := q.peers[peer]; !sampled {
		return
	}
	q.responded[peer] = yes
}

// Cancel marks the query cancelled; subsequent Record calls are no-ops and
// Succeeded reports false. Done is unaffected by cancellation.
func (q *Query) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = true
}

// Cancelled reports whether Cancel has been called.
func (q *Query) Cancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}

// Done reports whether every sampled peer has responded (treating
// unresponsive peers as resolved once the caller applies its timeout by
// calling TimeoutRemaining, below).
func (q *Query) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.responded) >= len(q.peers)
}

// TimeoutRemaining treats every peer that has not yet responded as a "no",
// per §4.1's non-response handling, and marks the query fully resolved.
func (q *Query) TimeoutRemaining() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p := range q.peers {
		if _, ok := q.responded[p]; !ok {
			q.responded[p] = false
		}
	}
}

// Succeeded reports whether the query cleared its alpha quorum. It is only
// meaningful once Done (or TimeoutRemaining) has been observed, and never
// true for a cancelled query.
func (q *Query) Succeeded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelled {
		return false
	}
	votes := bag.New[peerid.ID]()
	for p, v := range q.responded {
		if v {
			votes.Add(p)
		}
	}
	return votes.Len() >= q.alpha
}
