// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validator

import (
	"sync"
	"time"

	"github.com/thecore-network/thecore/peerid"
)

// UptimeTracker records how recently each validator has been seen
// responsive, independently of stake weight. Ice fills it from successful
// Pings; Ice's Live/Faulty verdicts come from its reservoirs and do not
// read this tracker.
type UptimeTracker struct {
	mu       sync.RWMutex
	lastSeen map[peerid.ID]time.Time
}

// NewUptimeTracker returns an empty tracker.
func NewUptimeTracker() *UptimeTracker {
	return &UptimeTracker{lastSeen: make(map[peerid.ID]time.Time)}
}

// Observe records that id responded at t.
func (u *UptimeTracker) Observe(id peerid.ID, t time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if prev, ok := u.lastSeen[id]; !ok || t.After(prev) {
		u.lastSeen[id] = t
	}
}

// LastSeen returns the last observed time for id, or the zero time if
// never observed.
func (u *UptimeTracker) LastSeen(id peerid.ID) time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastSeen[id]
}

// IsStale reports whether id has not been observed within window of now,
// including the case where it has never been observed.
func (u *UptimeTracker) IsStale(id peerid.ID, now time.Time, window time.Duration) bool {
	seen := u.LastSeen(id)
	if seen.IsZero() {
		return true
	}
	return now.Sub(seen) > window
}
