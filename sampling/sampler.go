// Copyright (C) 2019-2024, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sampling

import (
	"errors"
	"math/rand"

	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/validator"
)

// ErrNotEnoughPeers is returned when fewer than k distinct peers are
// available to sample from.
var ErrNotEnoughPeers = errors.New("sampling: not enough peers to draw a sample")

// Sampler draws a uniform-without-replacement sample of k peers from a
// committee, excluding self. Weighted callers (Sleet, Hail) use
// WeightedSample instead, which biases draws by stake while still
// guaranteeing each peer appears at most once.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a Sampler seeded from seed. Tests pass a fixed seed
// for reproducibility; production wiring (cmd/thecore) seeds from the
// current time.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample draws up to k distinct peers uniformly at random from committee,
// excluding self. If committee has fewer than k eligible members, it
// returns all of them and ErrNotEnoughPeers so the caller can decide
// whether a degraded sample is acceptable (e.g. during bootstrap).
func (s *Sampler) Sample(committee validator.Committee, self peerid.ID, k int) ([]peerid.ID, error) {
	eligible := make([]peerid.ID, 0, len(committee.Members))
	for _, v := range committee.Members {
		if v.NodeID != self {
			eligible = append(eligible, v.NodeID)
		}
	}

	s.rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})

	if len(eligible) < k {
		return eligible, ErrNotEnoughPeers
	}
	return eligible[:k], nil
}

// WeightedSample draws up to k distinct peers from committee, excluding
// self, with probability proportional to stake weight and without
// replacement (a drawn peer is removed from the pool before the next
// draw, per §4.1's "each peer appears at most once" requirement).
func (s *Sampler) WeightedSample(committee validator.Committee, self peerid.ID, k int) ([]peerid.ID, error) {
	type entry struct {
		id     peerid.ID
		weight uint64
	}
	pool := make([]entry, 0, len(committee.Members))
	var total uint64
	for _, v := range committee.Members {
		if v.NodeID == self || v.Weight == 0 {
			continue
		}
		pool = append(pool, entry{id: v.NodeID, weight: v.Weight})
		total += v.Weight
	}

	out := make([]peerid.ID, 0, k)
	for len(out) < k && len(pool) > 0 {
		pick := uint64(s.rng.Int63n(int64(total))) + 1
		var cumulative uint64
		idx := -1
		for i, e := range pool {
			cumulative += e.weight
			if pick <= cumulative {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = len(pool) - 1
		}
		out = append(out, pool[idx].id)
		total -= pool[idx].weight
		pool = append(pool[:idx], pool[idx+1:]...)
	}

	if len(out) < k {
		return out, ErrNotEnoughPeers
	}
	return out, nil
}
