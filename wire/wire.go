// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire defines the peer-to-peer message types of §6: a framed,
// length-prefixed, symmetric request/response protocol identical under
// TLS and plain transport. Each type here is the payload carried inside
// one frame. Framing (WriteFrame/ReadFrame) lives in codec.go; envelopes
// are sent unsigned.
package wire

import (
	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
)

// Tag identifies a message's payload type on the wire.
type Tag byte

const (
	TagVersion Tag = iota + 1
	TagVersionAck
	TagPing
	TagPong
	TagQueryTx
	TagQueryTxAck
	TagQueryBlock
	TagQueryBlockAck
	TagGetCell
	TagGetCellAck
	TagGetBlock
	TagGetBlockAck
	TagGossip
)

// Outcome mirrors ice.Decision on the wire without importing the ice
// package, keeping wire a leaf dependency.
type Outcome byte

const (
	OutcomeUnknown Outcome = iota
	OutcomeLive
	OutcomeFaulty
)

// Version is the handshake message sent on connection establishment.
type Version struct {
	PeerID          peerid.ID
	NetworkID       uint32
	SoftwareVersion string
	Epoch           uint64
}

// VersionAck acknowledges a Version handshake.
type VersionAck struct {
	PeerID    peerid.ID
	NetworkID uint32
	Epoch     uint64
}

// Ping asks the recipient to report its current opinion of up to k_ice
// subject peers (§4.2, §6).
type Ping struct {
	Queries []peerid.ID
}

// Pong answers a Ping with one outcome per queried subject, in order.
type Pong struct {
	Outcomes []Outcome
}

// QueryTx asks whether a cell is strongly preferred (§4.3.5).
type QueryTx struct {
	Cell *cell.Cell
}

// QueryTxAck answers a QueryTx.
type QueryTxAck struct {
	StronglyPreferred bool
}

// QueryBlock asks whether a block is strongly preferred.
type QueryBlock struct {
	Block *block.Block
}

// QueryBlockAck answers a QueryBlock.
type QueryBlockAck struct {
	StronglyPreferred bool
}

// GetCell requests a cell by Id for gap-filling (§4.5, S4).
type GetCell struct {
	ID cell.Id
}

// GetCellAck replies with the cell, if known.
type GetCellAck struct {
	Cell  *cell.Cell
	Found bool
}

// GetBlock requests a block by Id for gap-filling.
type GetBlock struct {
	ID block.Id
}

// GetBlockAck replies with the block, if known.
type GetBlockAck struct {
	Block *block.Block
	Found bool
}

// Gossip propagates unsolicited cells and blocks.
type Gossip struct {
	Cells  []*cell.Cell
	Blocks []*block.Block
}
