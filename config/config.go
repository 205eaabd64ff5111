// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config assembles and validates the node's startup configuration
// from the CLI surface described in §6: the listen address, the node's
// ed25519 keypair, bootstrap peers, optional TLS material, and the shared
// sampling parameters (k, alphaPreference, beta1, beta2) Ice/Sleet/Hail
// all draw from.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/thecore-network/thecore/keypair"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/sampling"
	"github.com/thecore-network/thecore/utils/constants"
)

var (
	ErrMissingAddr     = errors.New("config: --addr is required")
	ErrMissingKeypair  = errors.New("config: --keypair is required")
	ErrTLSMissingCert  = errors.New("config: --use-tls requires --cert-path and --key-path")
	ErrNoBootstrapPeer = errors.New("config: at least one --bootstrap peer is required for a non-genesis node")
)

// Config is the fully-parsed, validated node configuration (§6's CLI
// surface plus the sampling parameters every engine consumes).
type Config struct {
	// Addr is the node's listen address (--addr host:port), required.
	Addr string

	// Keypair is the node's ed25519 message-signing keypair, derived from
	// --keypair hex64.
	Keypair keypair.Keypair

	// IDOverride optionally overrides the PeerId derived from the TLS
	// certificate (--id).
	IDOverride string

	// Bootstrap lists the peers to dial on startup (--bootstrap,
	// repeatable). Required unless Genesis is set.
	Bootstrap []peerid.NodeAddress

	// Genesis marks this node as the first member of a new network
	// (--genesis): when no validator set is stored yet, it starts with a
	// validator set containing only itself, and needs no --bootstrap peer.
	Genesis bool

	// UseTLS, CertPath, and KeyPath configure the transport collaborator
	// (§6); framing is identical with or without TLS.
	UseTLS   bool
	CertPath string
	KeyPath  string

	// DataDir is where the storage collaborator opens its database.
	DataDir string

	// NetworkID selects which genesis/parameter set this node belongs to
	// (mainnet/testnet/local); carried in the Version handshake (§6) so
	// peers on different networks refuse each other immediately.
	NetworkID uint32

	// Params are the shared sampling parameters (§4.1) Ice, Sleet, and
	// Hail all sample with.
	Params sampling.Parameters

	// KIce and Beta1Ice are Ice's own reservoir size and promotion streak
	// (§4.2), distinct from Sleet/Hail's Params.K/Beta1 because Ice runs
	// weightless during bootstrap and samples peers, not validators.
	KIce     int
	Beta1Ice int

	// SortitionConstant is the expected number of VRF sortition winners
	// per height (vrf.WinsSortition), independent of validator count; it
	// does not scale with N by itself (§4.4.1; the exact exponent is an
	// Open Question — see DESIGN.md).
	SortitionConstant float64

	// CellStallTimeout bounds how long Hail holds a block whose cells
	// Sleet has not yet resolved before treating it as invalid (§4.5).
	CellStallTimeout time.Duration
}

// Default returns the configuration a fresh node uses absent operator
// overrides, mirroring sampling.DefaultParameters.
func Default() Config {
	return Config{
		Params:            sampling.DefaultParameters(),
		KIce:              20,
		Beta1Ice:          11,
		SortitionConstant: 1.0,
		CellStallTimeout:  10 * time.Second,
		DataDir:           "./data",
		NetworkID:         constants.LocalID,
	}
}

// NetworkName returns the human-readable name of c.NetworkID ("mainnet",
// "testnet", "local", or "unknown" for an unrecognized id).
func (c Config) NetworkName() string {
	return constants.NetworkName(c.NetworkID)
}

// Validate checks that cfg is internally consistent and ready to start a
// node, per §6's required/optional flag rules.
func (c Config) Validate() error {
	if c.Addr == "" {
		return ErrMissingAddr
	}
	if len(c.Keypair.Public) == 0 {
		return ErrMissingKeypair
	}
	if c.UseTLS && (c.CertPath == "" || c.KeyPath == "") {
		return ErrTLSMissingCert
	}
	if !c.Genesis && len(c.Bootstrap) == 0 {
		return ErrNoBootstrapPeer
	}
	if err := c.Params.Verify(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.KIce <= 0 {
		return fmt.Errorf("config: kIce must be positive, got %d", c.KIce)
	}
	if c.Beta1Ice <= 0 {
		return fmt.Errorf("config: beta1Ice must be positive, got %d", c.Beta1Ice)
	}
	if c.SortitionConstant <= 0 {
		return fmt.Errorf("config: sortitionConstant must be positive, got %f", c.SortitionConstant)
	}
	if c.CellStallTimeout <= 0 {
		return fmt.Errorf("config: cellStallTimeout must be positive, got %s", c.CellStallTimeout)
	}
	return nil
}

// Self derives this node's PeerId: the --id override if set, otherwise
// blake3(keypair public key) as a stand-in for the TLS SPKI hash used in
// production (the real TLS certificate is supplied by the transport
// collaborator and is out of this package's scope).
func (c Config) Self() (peerid.ID, error) {
	if c.IDOverride != "" {
		return peerid.Parse(c.IDOverride)
	}
	return peerid.FromSPKI(c.Keypair.Public), nil
}
