// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keypair implements the node's message-signing keypair. Per §3 this
// is ed25519 signing material independent of the TLS certificate identity
// used to derive a peer's PeerId.
package keypair

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidHex is returned when a hex-encoded secret key has the wrong
// length (the CLI's --keypair hex64 flag, per §6, encodes an ed25519 seed).
var ErrInvalidHex = errors.New("keypair: invalid hex secret key")

// Keypair holds an ed25519 signing key and its derived public key.
type Keypair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Generate creates a fresh random keypair.
func Generate() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return Keypair{}, fmt.Errorf("keypair: generate: %w", err)
	}
	return Keypair{Public: pub, private: priv}, nil
}

// FromHexSeed parses the CLI's --keypair hex64 flag: 32 raw seed bytes,
// hex-encoded (64 hex characters), and derives the full keypair from it.
func FromHexSeed(hexSeed string) (Keypair, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("%w: want %d hex bytes", ErrInvalidHex, ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return Keypair{Public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// Sign signs msg with the node's private key.
func (k Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// Verify checks a signature produced by the holder of pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
