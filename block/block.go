// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package block implements the per-height unit of the Snowman-style chain
// engine: a Block names its parent, the cells it finalizes, and the VRF
// proof that won its producer the right to propose at that height.
package block

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/zeebo/blake3"

	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/utils/wrappers"
)

// Id identifies a Block by the blake3 hash of its canonical encoding.
type Id ids.ID

// Empty is the zero Id; also the declared parent of the genesis block.
var Empty Id

func (id Id) String() string {
	return ids.ID(id).String()
}

// Compare gives a total order over Ids, used to break leader ties
// deterministically in §4.4.3.
func (id Id) Compare(other Id) int {
	return ids.ID(id).Compare(ids.ID(other))
}

// Height is a block's distance from genesis; genesis is height 0.
type Height uint64

// ErrNoCells is returned by New when a block finalizes nothing.
var ErrNoCells = errors.New("block: must finalize at least one cell")

// Block is the atomic, content-addressed unit of the chain engine.
// Producer is the peer whose VRF proof won leader sortition for Height, and
// Signature authorizes the block under Producer's node keypair.
type Block struct {
	id Id

	Height    Height
	Parent    Id
	Cells     []cell.Id
	Producer  peerid.ID
	VRFProof  []byte
	VRFOutput []byte
	Signature []byte
}

// New constructs a Block and derives its content-addressed Id. Signature
// and VRFProof/VRFOutput must already be populated by the caller; New does
// not sign or prove anything itself.
func New(height Height, parent Id, cells []cell.Id, producer peerid.ID, vrfProof, vrfOutput, signature []byte) (*Block, error) {
	if len(cells) == 0 {
		return nil, ErrNoCells
	}
	b := &Block{
		Height:    height,
		Parent:    parent,
		Cells:     cells,
		Producer:  producer,
		VRFProof:  vrfProof,
		VRFOutput: vrfOutput,
		Signature: signature,
	}
	b.id = Id(blake3.Sum256(b.Encode()))
	return b, nil
}

// Id returns the block's content address.
func (b *Block) Id() Id {
	return b.id
}

// SigningBytes is the message a producer's node keypair signs and a
// verifier checks Signature against: everything but the signature itself.
func (b *Block) SigningBytes() []byte {
	p := wrappers.NewPacker(256)
	p.PackLong(uint64(b.Height))
	p.PackFixedBytes(ids.ID(b.Parent).Bytes())
	p.PackInt(uint32(len(b.Cells)))
	for _, c := range b.Cells {
		p.PackFixedBytes(ids.ID(c).Bytes())
	}
	p.PackFixedBytes(b.Producer.Bytes())
	p.PackBytesWithLength(b.VRFProof)
	p.PackBytesWithLength(b.VRFOutput)
	return p.Bytes
}

// Encode returns the canonical byte encoding of the block, including its
// signature. Decode(Encode(b)) reconstructs an equal block.
func (b *Block) Encode() []byte {
	p := wrappers.NewPacker(256)
	p.PackBytes(b.SigningBytes())
	p.PackBytesWithLength(b.Signature)
	return p.Bytes
}

// MarshalJSON encodes the block as its canonical byte encoding, base64'd
// inside a JSON string, so a round trip over the wire recomputes Id on
// decode instead of leaving it at its zero value: the unexported id
// field carries no JSON tag and would otherwise be silently dropped.
func (b *Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(b.Encode()))
}

// UnmarshalJSON reverses MarshalJSON via Decode, which recomputes Id
// from the decoded fields rather than trusting a transmitted value.
func (b *Block) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("block: unmarshal: %w", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		return err
	}
	*b = *decoded
	return nil
}

// Decode reconstructs a Block from bytes produced by Encode, recomputing
// and caching its Id from the decoded fields.
func Decode(raw []byte) (*Block, error) {
	u := wrappers.NewUnpacker(raw)

	height := Height(u.UnpackLong())
	parentBytes := u.UnpackFixedBytes(32)
	var parent Id
	if parentBytes != nil {
		copy(parent[:], parentBytes)
	}

	numCells := u.UnpackInt()
	cells := make([]cell.Id, numCells)
	for i := range cells {
		cb := u.UnpackFixedBytes(32)
		if cb != nil {
			copy(cells[i][:], cb)
		}
	}

	producerBytes := u.UnpackFixedBytes(32)
	var producer peerid.ID
	if producerBytes != nil {
		id, err := peerid.FromBytes(producerBytes)
		if err != nil {
			return nil, err
		}
		producer = id
	}

	vrfProof := u.UnpackBytesWithLength()
	vrfOutput := u.UnpackBytesWithLength()
	signature := u.UnpackBytesWithLength()

	if u.Err != nil {
		return nil, fmt.Errorf("block: decode: %w", u.Err)
	}

	b := &Block{
		Height:    height,
		Parent:    parent,
		Cells:     cells,
		Producer:  producer,
		VRFProof:  vrfProof,
		VRFOutput: vrfOutput,
		Signature: signature,
	}
	b.id = Id(blake3.Sum256(b.Encode()))
	return b, nil
}
