// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage persists the state §6 requires survive a restart: the
// last accepted frontier, every accepted block and its finalized cells,
// and the current validator set snapshot. Unaccepted DAG state stays
// in-memory only and is reconstructed via gossip (§6).
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/validator"
)

// Key prefixes separate the three persisted namespaces within one pebble
// database, avoiding key collisions between cells, blocks, and metadata.
var (
	prefixCell     = []byte("c/")
	prefixBlock    = []byte("b/")
	keyFrontier    = []byte("meta/frontier")
	keyValidatorSet = []byte("meta/validators")
)

// ErrNotFound is returned when a lookup key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Store persists accepted consensus state in a pebble key/value database.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func cellKey(id cell.Id) []byte {
	return append(append([]byte{}, prefixCell...), id[:]...)
}

func blockKey(id block.Id) []byte {
	raw := make([]byte, len(prefixBlock)+len(id))
	copy(raw, prefixBlock)
	copy(raw[len(prefixBlock):], id[:])
	return raw
}

// PutAcceptedCell persists an accepted cell's canonical encoding, keyed
// by its content address.
func (s *Store) PutAcceptedCell(c *cell.Cell) error {
	return s.db.Set(cellKey(c.Id()), c.Encode(), pebble.Sync)
}

// GetAcceptedCell retrieves a previously persisted cell by Id.
func (s *Store) GetAcceptedCell(id cell.Id) (*cell.Cell, error) {
	data, closer, err := s.db.Get(cellKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	buf := make([]byte, len(data))
	copy(buf, data)
	return cell.Decode(buf)
}

// PutAcceptedBlock persists an accepted block's canonical encoding.
func (s *Store) PutAcceptedBlock(b *block.Block) error {
	return s.db.Set(blockKey(b.Id()), b.Encode(), pebble.Sync)
}

// GetAcceptedBlock retrieves a previously persisted block by Id.
func (s *Store) GetAcceptedBlock(id block.Id) (*block.Block, error) {
	data, closer, err := s.db.Get(blockKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	buf := make([]byte, len(data))
	copy(buf, data)
	return block.Decode(buf)
}

// PutFrontier persists the ordered accepted-cell frontier as of the most
// recent Sleet acceptance.
func (s *Store) PutFrontier(frontier []cell.Id) error {
	buf := make([]byte, 0, len(frontier)*32)
	for _, id := range frontier {
		buf = append(buf, id[:]...)
	}
	return s.db.Set(keyFrontier, buf, pebble.Sync)
}

// GetFrontier retrieves the persisted accepted-cell frontier.
func (s *Store) GetFrontier() ([]cell.Id, error) {
	data, closer, err := s.db.Get(keyFrontier)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	n := len(data) / 32
	out := make([]cell.Id, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], data[i*32:(i+1)*32])
	}
	return out, nil
}

// PutValidatorSet persists the current validator set snapshot (§6): each
// validator's PeerId (32 bytes) followed by its stake weight (8 bytes,
// big-endian), concatenated in List() order.
func (s *Store) PutValidatorSet(set *validator.Set) error {
	members := set.List()
	buf := make([]byte, 0, len(members)*40)
	for _, v := range members {
		buf = append(buf, v.NodeID.Bytes()...)
		buf = binary.BigEndian.AppendUint64(buf, v.Weight)
	}
	return s.db.Set(keyValidatorSet, buf, pebble.Sync)
}

// GetValidatorSet rebuilds the validator set from its persisted snapshot,
// returning an empty set if none was ever persisted.
func (s *Store) GetValidatorSet() (*validator.Set, error) {
	data, closer, err := s.db.Get(keyValidatorSet)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return validator.NewSet(), nil
		}
		return nil, err
	}
	defer closer.Close()

	set := validator.NewSet()
	const recordLen = 32 + 8
	for i := 0; i+recordLen <= len(data); i += recordLen {
		id, err := peerid.FromBytes(data[i : i+32])
		if err != nil {
			return nil, err
		}
		weight := binary.BigEndian.Uint64(data[i+32 : i+recordLen])
		set.Add(id, weight)
	}
	return set, nil
}
