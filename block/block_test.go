// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/keypair"
	"github.com/thecore-network/thecore/peerid"
)

func testBlock(t *testing.T, height Height, parent Id) *Block {
	t.Helper()
	require := require.New(t)

	kp, err := keypair.Generate()
	require.NoError(err)

	producer := peerid.FromSPKI([]byte("producer-cert"))
	cells := []cell.Id{cell.Id(producer)}

	unsigned, err := New(height, parent, cells, producer, []byte("proof"), []byte("output"), nil)
	require.NoError(err)
	sig := kp.Sign(unsigned.SigningBytes())

	signed, err := New(height, parent, cells, producer, []byte("proof"), []byte("output"), sig)
	require.NoError(err)
	return signed
}

func TestNewRejectsNoCells(t *testing.T) {
	_, err := New(1, Empty, nil, peerid.Empty, nil, nil, nil)
	require.ErrorIs(t, err, ErrNoCells)
}

func TestIdIsDeterministic(t *testing.T) {
	require := require.New(t)

	b1 := testBlock(t, 1, Empty)
	b2, err := New(b1.Height, b1.Parent, b1.Cells, b1.Producer, b1.VRFProof, b1.VRFOutput, b1.Signature)
	require.NoError(err)
	require.Equal(b1.Id(), b2.Id())
}

func TestEncodeDecodeRoundTripIsIdentity(t *testing.T) {
	require := require.New(t)

	b := testBlock(t, 7, Empty)
	encoded := b.Encode()

	decoded, err := Decode(encoded)
	require.NoError(err)
	require.Equal(b.Id(), decoded.Id())
	require.Equal(encoded, decoded.Encode())
}

func TestGenesisDeclaresEmptyParent(t *testing.T) {
	require := require.New(t)

	b := testBlock(t, 0, Empty)
	require.Equal(Empty, b.Parent)
}
