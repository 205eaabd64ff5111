// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the per-engine Prometheus gauges and counters
// implied by §2's "approximate implementation budget" assuming an
// observable system: chit/acceptance rates for Sleet and Hail, and
// committee size for Ice.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ice holds the counters and gauges published by the ice.Engine.
type Ice struct {
	LiveCommitteeSize   prometheus.Gauge
	FaultyCommitteeSize prometheus.Gauge
	Epoch               prometheus.Gauge
	Decisions           prometheus.Counter
}

// NewIce constructs and registers Ice's metrics under registerer.
func NewIce(registerer prometheus.Registerer) (*Ice, error) {
	m := &Ice{
		LiveCommitteeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ice_live_committee_size",
			Help: "Number of peers in the current LiveCommittee",
		}),
		FaultyCommitteeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ice_faulty_committee_size",
			Help: "Number of peers in the current FaultyCommittee",
		}),
		Epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ice_epoch",
			Help: "Current LiveCommittee/FaultyCommittee epoch",
		}),
		Decisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ice_decisions_total",
			Help: "Number of peer liveness decisions made (Live or Faulty)",
		}),
	}
	for _, c := range []prometheus.Collector{m.LiveCommitteeSize, m.FaultyCommitteeSize, m.Epoch, m.Decisions} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Sleet holds the counters and gauges published by the sleet.DAG/Engine.
type Sleet struct {
	UnqueriedCells  prometheus.Gauge
	AcceptedCells   prometheus.Counter
	ConflictSets    prometheus.Gauge
	QuerySuccesses  prometheus.Counter
	QueryFailures   prometheus.Counter
	Reissues        prometheus.Counter
}

// NewSleet constructs and registers Sleet's metrics under registerer.
func NewSleet(registerer prometheus.Registerer) (*Sleet, error) {
	m := &Sleet{
		UnqueriedCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sleet_unqueried_cells",
			Help: "Number of cells awaiting their next sampling query",
		}),
		AcceptedCells: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleet_accepted_cells_total",
			Help: "Number of cells that reached acceptance",
		}),
		ConflictSets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sleet_conflict_sets",
			Help: "Number of live conflict sets (one per contested UTXO input)",
		}),
		QuerySuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleet_query_successes_total",
			Help: "Number of sampling queries that reached alpha quorum",
		}),
		QueryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleet_query_failures_total",
			Help: "Number of sampling queries that failed to reach alpha quorum",
		}),
		Reissues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleet_reissues_total",
			Help: "Number of cells reissued (marked unqueried again) after a failed query",
		}),
	}
	for _, c := range []prometheus.Collector{m.UnqueriedCells, m.AcceptedCells, m.ConflictSets, m.QuerySuccesses, m.QueryFailures, m.Reissues} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hail holds the counters and gauges published by the hail.Chain.
type Hail struct {
	Height          prometheus.Gauge
	AcceptedBlocks  prometheus.Counter
	ConflictHeights prometheus.Gauge
	SortitionWins   prometheus.Counter
}

// NewHail constructs and registers Hail's metrics under registerer.
func NewHail(registerer prometheus.Registerer) (*Hail, error) {
	m := &Hail{
		Height: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hail_height",
			Help: "Highest height with an accepted block",
		}),
		AcceptedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hail_accepted_blocks_total",
			Help: "Number of blocks that reached acceptance",
		}),
		ConflictHeights: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hail_conflict_heights",
			Help: "Number of heights with more than one competing block",
		}),
		SortitionWins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hail_sortition_wins_total",
			Help: "Number of heights at which this node was VRF-eligible to produce",
		}),
	}
	for _, c := range []prometheus.Collector{m.Height, m.AcceptedBlocks, m.ConflictHeights, m.SortitionWins} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
