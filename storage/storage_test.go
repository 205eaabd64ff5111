// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/keypair"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/validator"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	require := require.New(t)
	s, err := Open(t.TempDir())
	require.NoError(err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetAcceptedCell(t *testing.T) {
	require := require.New(t)
	s := openTestStore(t)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	owner := peerid.FromSPKI([]byte("owner"))
	inputs := []cell.Input{{OutPoint: cell.OutPoint{Source: cell.Empty, Index: 0}, PubKey: pub}}
	outputs := []cell.Output{{Capacity: 5, Owner: owner}}
	unsigned, err := cell.New(inputs, outputs)
	require.NoError(err)
	inputs[0].Signature = ed25519.Sign(priv, unsigned.SigningBytes())
	c, err := cell.New(inputs, outputs)
	require.NoError(err)

	require.NoError(s.PutAcceptedCell(c))
	got, err := s.GetAcceptedCell(c.Id())
	require.NoError(err)
	require.Equal(c.Id(), got.Id())
}

func TestGetAcceptedCellNotFound(t *testing.T) {
	require := require.New(t)
	s := openTestStore(t)

	_, err := s.GetAcceptedCell(cell.Id{0x01})
	require.ErrorIs(err, ErrNotFound)
}

func TestPutGetAcceptedBlock(t *testing.T) {
	require := require.New(t)
	s := openTestStore(t)

	kp, err := keypair.Generate()
	require.NoError(err)
	producer := peerid.FromSPKI([]byte("producer"))
	cells := []cell.Id{cell.Id(producer)}
	unsigned, err := block.New(1, block.Empty, cells, producer, []byte("proof"), []byte("output"), nil)
	require.NoError(err)
	sig := kp.Sign(unsigned.SigningBytes())
	b, err := block.New(1, block.Empty, cells, producer, []byte("proof"), []byte("output"), sig)
	require.NoError(err)

	require.NoError(s.PutAcceptedBlock(b))
	got, err := s.GetAcceptedBlock(b.Id())
	require.NoError(err)
	require.Equal(b.Id(), got.Id())
}

func TestPutGetFrontier(t *testing.T) {
	require := require.New(t)
	s := openTestStore(t)

	frontier := []cell.Id{{0x01}, {0x02}, {0x03}}
	require.NoError(s.PutFrontier(frontier))

	got, err := s.GetFrontier()
	require.NoError(err)
	require.Equal(frontier, got)
}

func TestGetFrontierEmptyWhenUnset(t *testing.T) {
	require := require.New(t)
	s := openTestStore(t)

	got, err := s.GetFrontier()
	require.NoError(err)
	require.Empty(got)
}

func TestPutGetValidatorSet(t *testing.T) {
	require := require.New(t)
	s := openTestStore(t)

	set := validator.NewSet()
	set.Add(peerid.FromSPKI([]byte("n0")), 10)
	set.Add(peerid.FromSPKI([]byte("n1")), 20)

	require.NoError(s.PutValidatorSet(set))
	got, err := s.GetValidatorSet()
	require.NoError(err)
	require.Equal(set.List(), got.List())
}

func TestGetValidatorSetEmptyWhenUnset(t *testing.T) {
	require := require.New(t)
	s := openTestStore(t)

	got, err := s.GetValidatorSet()
	require.NoError(err)
	require.Zero(got.Len())
}
