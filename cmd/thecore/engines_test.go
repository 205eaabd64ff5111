// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/storage"
	"github.com/thecore-network/thecore/validator"
	"github.com/thecore-network/thecore/vrf"
)

func TestStorageAncestryAcceptsGenesisSpend(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	a := &storageAncestry{store: store}
	require.True(t, a.IsAcceptedInput(cell.OutPoint{Source: cell.Empty, Index: 0}))
}

func TestStorageAncestryAcceptsPersistedCell(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	store, err := storage.Open(dir)
	require.NoError(err)
	defer store.Close()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	owner := peerid.FromSPKI([]byte("owner"))
	outputs := []cell.Output{{Capacity: 1, Owner: owner}}
	inputs := []cell.Input{{OutPoint: cell.OutPoint{Source: cell.Empty, Index: 0}, PubKey: pub}}
	unsigned, err := cell.New(inputs, outputs)
	require.NoError(err)
	inputs[0].Signature = ed25519.Sign(priv, unsigned.SigningBytes())
	c, err := cell.New(inputs, outputs)
	require.NoError(err)
	require.NoError(store.PutAcceptedCell(c))

	a := &storageAncestry{store: store}
	require.True(a.IsAcceptedInput(cell.OutPoint{Source: c.Id(), Index: 0}))
	require.False(a.IsAcceptedInput(cell.OutPoint{Source: cell.Id{0xEE}, Index: 0}))
}

func TestSortitionVerifierRejectsUnknownProducer(t *testing.T) {
	set := validator.NewSet()
	v := &sortitionVerifier{set: set, constant: 1.0}

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	proof, output := vrf.Prove(priv, 1, nil)

	cleared, err := v.Verify(block.Height(1), nil, pub, proof, output)
	require.NoError(t, err)
	require.False(t, cleared, "a producer absent from the validator set can never clear sortition")
}

func TestSortitionVerifierRejectsBadProof(t *testing.T) {
	set := validator.NewSet()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	self := peerid.FromSPKI(pub)
	set.Add(self, 1)

	v := &sortitionVerifier{set: set, constant: 1.0}
	cleared, err := v.Verify(block.Height(1), nil, pub, []byte("not-a-signature"), make([]byte, vrf.OutputSize))
	require.NoError(t, err)
	require.False(t, cleared)
}

