// Copyright (C) 2019-2024, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sampling implements the uniform/weighted-without-replacement
// query primitive shared by Ice, Sleet, and Hail: draw k distinct peers,
// gather yes/no responses under a timeout, and declare success at an alpha
// quorum.
package sampling

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidK                 = errors.New("invalid K value")
	ErrInvalidAlpha             = errors.New("invalid alpha values")
	ErrInvalidBeta              = errors.New("invalid beta value")
	ErrInvalidConcurrentRepolls = errors.New("invalid concurrent repolls")
	ErrInvalidMaxOutstanding    = errors.New("invalid max outstanding queries")
)

// Parameters defines the shared consensus parameters described in §4.1:
// sample size k, quorum threshold alpha, and the two acceptance streaks
// (beta1 for early commitment, beta2 for the final safety threshold).
type Parameters struct {
	// K is the sample size per query round.
	K int `json:"k" yaml:"k"`

	// AlphaPreference is the quorum threshold a query must clear to count
	// as successful (alpha <= k).
	AlphaPreference int `json:"alphaPreference" yaml:"alphaPreference"`

	// Beta1 is the early-commitment streak: consecutive successes
	// required before a singleton conflict set may accept early.
	Beta1 int `json:"beta1" yaml:"beta1"`

	// Beta2 is the safety streak: consecutive successes required for
	// final acceptance regardless of conflict-set size.
	Beta2 int `json:"beta2" yaml:"beta2"`

	// ConcurrentRepolls bounds how many cells Sleet's RunRound queries per
	// round; those queries are issued one after another.
	ConcurrentRepolls int `json:"concurrentRepolls" yaml:"concurrentRepolls"`

	// MaxOutstandingItems must be positive to pass Verify; no engine
	// consults it, and no backpressure is applied on its account.
	MaxOutstandingItems int `json:"maxOutstandingItems" yaml:"maxOutstandingItems"`

	// QueryTimeout is the interval at which cmd/thecore ticks the engines'
	// rounds. Non-responses count as "no" (§4.1); the per-request deadline
	// in cmd/thecore's transports is a fixed 2s, not this value.
	QueryTimeout time.Duration `json:"queryTimeout" yaml:"queryTimeout"`
}

// Verify checks that the parameters are internally consistent.
func (p Parameters) Verify() error {
	if p.K <= 0 {
		return fmt.Errorf("%w: k=%d", ErrInvalidK, p.K)
	}
	if p.AlphaPreference <= 0 || p.AlphaPreference > p.K {
		return fmt.Errorf("%w: alphaPreference=%d, k=%d", ErrInvalidAlpha, p.AlphaPreference, p.K)
	}
	if p.Beta1 <= 0 {
		return fmt.Errorf("%w: beta1=%d", ErrInvalidBeta, p.Beta1)
	}
	if p.Beta2 < p.Beta1 {
		return fmt.Errorf("%w: beta2=%d must be >= beta1=%d", ErrInvalidBeta, p.Beta2, p.Beta1)
	}
	if p.ConcurrentRepolls <= 0 {
		return fmt.Errorf("%w: concurrentRepolls=%d", ErrInvalidConcurrentRepolls, p.ConcurrentRepolls)
	}
	if p.MaxOutstandingItems <= 0 {
		return fmt.Errorf("%w: maxOutstandingItems=%d", ErrInvalidMaxOutstanding, p.MaxOutstandingItems)
	}
	if p.QueryTimeout <= 0 {
		return fmt.Errorf("sampling: queryTimeout must be positive, got %s", p.QueryTimeout)
	}
	return nil
}

// DefaultParameters returns the parameters used by a fresh node absent
// operator overrides.
func DefaultParameters() Parameters {
	return Parameters{
		K:                   20,
		AlphaPreference:     15,
		Beta1:               11,
		Beta2:               20,
		ConcurrentRepolls:   4,
		MaxOutstandingItems: 1024,
		QueryTimeout:        2 * time.Second,
	}
}
