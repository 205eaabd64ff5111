// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vrf implements the leader-sortition primitive used by the chain
// engine (§4.4.1). Each validator locally evaluates a verifiable function
// of (height, parent) under its node keypair; a validator is an eligible
// leader at that height iff its output falls under a stake-weighted
// threshold. Because ed25519 signatures are deterministic and
// unforgeable without the private key, and the output is derived by
// hashing the signature rather than the message, this gives the
// "unpredictable until proven, verifiable once proven" property a true
// VRF provides, without requiring a dedicated curve.
package vrf

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"math"

	"github.com/zeebo/blake3"
)

// OutputSize is the width in bytes of a VRF output.
const OutputSize = 32

// ErrInvalidProof is returned by Verify when the proof does not validate
// against the claimed output.
var ErrInvalidProof = errors.New("vrf: invalid proof")

// seedMessage builds the message a proof is computed over: height and
// parent block id, so every validator evaluates the same seed at a given
// height and the result changes every height even under a static parent.
func seedMessage(height uint64, parent []byte) []byte {
	msg := make([]byte, 8+len(parent))
	binary.BigEndian.PutUint64(msg[:8], height)
	copy(msg[8:], parent)
	return msg
}

// Prove evaluates the VRF for (height, parent) under priv, returning the
// proof (an ed25519 signature) and the derived pseudorandom output.
func Prove(priv ed25519.PrivateKey, height uint64, parent []byte) (proof, output []byte) {
	msg := seedMessage(height, parent)
	proof = ed25519.Sign(priv, msg)
	sum := blake3.Sum256(proof)
	output = sum[:]
	return proof, output
}

// Verify checks that proof is a valid signature over (height, parent) under
// pub, and that output is the hash of proof. A verifier never needs the
// prover's private key to confirm the pair.
func Verify(pub ed25519.PublicKey, height uint64, parent, proof, output []byte) error {
	msg := seedMessage(height, parent)
	if !ed25519.Verify(pub, msg, proof) {
		return ErrInvalidProof
	}
	sum := blake3.Sum256(proof)
	if len(output) != OutputSize || !equal(sum[:], output) {
		return ErrInvalidProof
	}
	return nil
}

func equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WinsSortition reports whether output wins leader eligibility for a
// validator holding weight out of totalWeight stake, per the constant
// ratio configured for the network. It treats output as a big-endian
// fraction of the output space and compares it against the validator's
// stake-proportional share, scaled by SortitionConstant so that, in
// expectation, roughly SortitionConstant leaders are eligible per height
// regardless of validator-set size.
func WinsSortition(output []byte, weight, totalWeight uint64, sortitionConstant float64) bool {
	if totalWeight == 0 || len(output) < 8 {
		return false
	}
	v := binary.BigEndian.Uint64(output[:8])
	// Normalize v to [0, 1).
	p := float64(v) / float64(^uint64(0))
	// Probability this validator wins, proportional to its stake share
	// and scaled so the expected number of winners per height is
	// sortitionConstant.
	share := float64(weight) / float64(totalWeight)
	threshold := 1 - math.Pow(1-share, sortitionConstant)
	return p < threshold
}
