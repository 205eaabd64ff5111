// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cell

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/peerid"
)

func testCell(t *testing.T) *Cell {
	t.Helper()
	require := require.New(t)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	owner := peerid.FromSPKI([]byte("owner-cert"))
	outputs := []Output{{Capacity: 100, Owner: owner, Data: []byte("memo")}}
	inputs := []Input{{
		OutPoint: OutPoint{Source: Empty, Index: 0},
		PubKey:   pub,
	}}

	unsigned, err := New(inputs, outputs)
	require.NoError(err)

	sig := ed25519.Sign(priv, unsigned.SigningBytes())
	inputs[0].Signature = sig

	signed, err := New(inputs, outputs)
	require.NoError(err)
	return signed
}

func TestNewRejectsEmptyInputsOutputs(t *testing.T) {
	require := require.New(t)

	_, err := New(nil, []Output{{Capacity: 1}})
	require.ErrorIs(err, ErrNoInputs)

	_, err = New([]Input{{}}, nil)
	require.ErrorIs(err, ErrNoOutputs)
}

func TestIdIsDeterministic(t *testing.T) {
	require := require.New(t)

	c1 := testCell(t)
	c2, err := New(c1.Inputs, c1.Outputs)
	require.NoError(err)
	require.Equal(c1.Id(), c2.Id())
}

func TestEncodeDecodeRoundTripIsIdentity(t *testing.T) {
	require := require.New(t)

	c := testCell(t)
	encoded := c.Encode()

	decoded, err := Decode(encoded)
	require.NoError(err)
	require.Equal(c.Id(), decoded.Id())
	require.Equal(encoded, decoded.Encode())
}

func TestVerifyDetectsTamperedSignature(t *testing.T) {
	require := require.New(t)

	c := testCell(t)
	require.NoError(c.Verify())

	c.Inputs[0].Signature[0] ^= 0xFF
	require.Error(c.Verify())
}

func TestInputKeysMatchOutPointKey(t *testing.T) {
	require := require.New(t)

	c := testCell(t)
	keys := c.InputKeys()
	require.Len(keys, 1)
	require.Equal(c.Inputs[0].OutPoint.Key(), keys[0])
}
