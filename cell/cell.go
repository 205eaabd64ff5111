// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cell implements the UTXO-style transaction unit consumed by the
// DAG consensus engine: a Cell spends prior outputs and produces new ones,
// is content-addressed by the canonical encoding of its fields, and is
// immutable once constructed.
package cell

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/zeebo/blake3"

	"github.com/thecore-network/thecore/peerid"
	safemath "github.com/thecore-network/thecore/utils/math"
	"github.com/thecore-network/thecore/utils/wrappers"
)

// Id identifies a Cell by the blake3 hash of its canonical encoding.
type Id ids.ID

// Empty is the zero Id.
var Empty Id

// String renders the Id the way ids.ID.String does. PeerId.String uses
// base58 instead, so the two render differently in log lines.
func (id Id) String() string {
	return ids.ID(id).String()
}

// Compare gives a total order over Ids, used to break ties deterministically
// when ranking conflicting cells.
func (id Id) Compare(other Id) int {
	return ids.ID(id).Compare(ids.ID(other))
}

var (
	// ErrNoInputs is returned by New when a cell spends nothing.
	ErrNoInputs = errors.New("cell: must have at least one input")
	// ErrNoOutputs is returned by New when a cell produces nothing.
	ErrNoOutputs = errors.New("cell: must have at least one output")
)

// OutPoint references a single output of a previously accepted cell.
type OutPoint struct {
	Source Id
	Index  uint32
}

// Input spends one prior output. PubKey is the spender's public key and
// Signature authorizes the spend over the cell's signing bytes; both travel
// with the cell so any peer can verify it without a side channel.
type Input struct {
	OutPoint  OutPoint
	PubKey    ed25519.PublicKey
	Signature []byte
}

// key returns the string used to index the conflict set this input belongs
// to: two cells conflict iff they share an Input.OutPoint.
func (in Input) key() string {
	return string(in.OutPoint.Source[:]) + fmt.Sprintf(":%d", in.OutPoint.Index)
}

// Key is the exported form of the conflict-set key for an OutPoint, used by
// the DAG engine to group cells that spend the same output.
func (op OutPoint) Key() string {
	return string(op.Source[:]) + fmt.Sprintf(":%d", op.Index)
}

// Output assigns capacity to an owner. Data is an optional application
// payload (e.g. a contract call); it is opaque to consensus.
type Output struct {
	Capacity uint64
	Owner    peerid.ID
	Data     []byte
}

// Cell is the atomic, content-addressed unit of the DAG engine. Once
// constructed via New, its fields must not be mutated: Id is derived from
// them and any change would silently desync it from its own identity.
type Cell struct {
	id      Id
	Inputs  []Input
	Outputs []Output
}

// New constructs a Cell from inputs and outputs, deriving and caching its
// content-addressed Id. Inputs must already carry their authorizing
// signatures; New does not sign them.
func New(inputs []Input, outputs []Output) (*Cell, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}
	c := &Cell{Inputs: inputs, Outputs: outputs}
	c.id = Id(blake3.Sum256(c.SigningBytes()))
	return c, nil
}

// Id returns the cell's content address.
func (c *Cell) Id() Id {
	return c.id
}

// InputKeys returns the conflict-set key for every input, in order.
func (c *Cell) InputKeys() []string {
	keys := make([]string, len(c.Inputs))
	for i, in := range c.Inputs {
		keys[i] = in.key()
	}
	return keys
}

// SigningBytes is the canonical encoding consumed both for the content
// address and for the bytes an Input.Signature authorizes. It covers every
// field except the per-input signatures themselves, which cannot be part
// of the bytes they sign; a signature can therefore change without
// changing Id.
func (c *Cell) SigningBytes() []byte {
	p := wrappers.NewPacker(256)
	p.PackInt(uint32(len(c.Inputs)))
	for _, in := range c.Inputs {
		p.PackFixedBytes(in.OutPoint.Source[:])
		p.PackInt(in.OutPoint.Index)
		p.PackBytesWithLength(in.PubKey)
	}
	p.PackInt(uint32(len(c.Outputs)))
	for _, out := range c.Outputs {
		p.PackLong(out.Capacity)
		p.PackFixedBytes(out.Owner.Bytes())
		p.PackBytesWithLength(out.Data)
	}
	return p.Bytes
}

// Encode returns the canonical byte encoding of the cell, including its
// per-input signatures. Decode(Encode(c)) reconstructs an equal cell.
func (c *Cell) Encode() []byte {
	p := wrappers.NewPacker(256)
	p.PackInt(uint32(len(c.Inputs)))
	for _, in := range c.Inputs {
		p.PackFixedBytes(in.OutPoint.Source[:])
		p.PackInt(in.OutPoint.Index)
		p.PackBytesWithLength(in.PubKey)
		p.PackBytesWithLength(in.Signature)
	}
	p.PackInt(uint32(len(c.Outputs)))
	for _, out := range c.Outputs {
		p.PackLong(out.Capacity)
		p.PackFixedBytes(out.Owner.Bytes())
		p.PackBytesWithLength(out.Data)
	}
	return p.Bytes
}

// MarshalJSON encodes the cell as its canonical byte encoding, base64'd
// inside a JSON string, so a round trip over the wire (§6's JSON
// envelope payload) recomputes Id on decode instead of leaving it at
// its zero value: the unexported id field carries no JSON tag and would
// otherwise be silently dropped.
func (c *Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(c.Encode()))
}

// UnmarshalJSON reverses MarshalJSON via Decode, which recomputes Id
// from the decoded fields rather than trusting a transmitted value.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("cell: unmarshal: %w", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

// Decode reconstructs a Cell from bytes produced by Encode, recomputing and
// caching its Id from the decoded fields.
func Decode(b []byte) (*Cell, error) {
	u := wrappers.NewUnpacker(b)

	numInputs := u.UnpackInt()
	inputs := make([]Input, numInputs)
	for i := range inputs {
		src := u.UnpackFixedBytes(32)
		var source Id
		if src != nil {
			copy(source[:], src)
		}
		index := u.UnpackInt()
		pub := u.UnpackBytesWithLength()
		sig := u.UnpackBytesWithLength()
		inputs[i] = Input{
			OutPoint:  OutPoint{Source: source, Index: index},
			PubKey:    ed25519.PublicKey(pub),
			Signature: sig,
		}
	}

	numOutputs := u.UnpackInt()
	outputs := make([]Output, numOutputs)
	for i := range outputs {
		capacity := u.UnpackLong()
		ownerBytes := u.UnpackFixedBytes(32)
		var owner peerid.ID
		if ownerBytes != nil {
			id, err := peerid.FromBytes(ownerBytes)
			if err != nil {
				return nil, err
			}
			owner = id
		}
		data := u.UnpackBytesWithLength()
		outputs[i] = Output{Capacity: capacity, Owner: owner, Data: data}
	}

	if u.Err != nil {
		return nil, fmt.Errorf("cell: decode: %w", u.Err)
	}

	c := &Cell{Inputs: inputs, Outputs: outputs}
	c.id = Id(blake3.Sum256(c.SigningBytes()))
	return c, nil
}

// Verify checks that every input's signature authorizes this cell's signing
// bytes under its stated public key, and that the total output capacity is
// well-formed (§4.3.1: "capacity is non-negative, outputs are well-formed").
// Capacity is unsigned so non-negativity is automatic; Verify additionally
// rejects a total that would overflow uint64, which a naive sum would
// silently wrap.
func (c *Cell) Verify() error {
	msg := c.SigningBytes()
	for i, in := range c.Inputs {
		if len(in.PubKey) != ed25519.PublicKeySize {
			return fmt.Errorf("cell: input %d: bad public key length", i)
		}
		if !ed25519.Verify(in.PubKey, msg, in.Signature) {
			return fmt.Errorf("cell: input %d: invalid signature", i)
		}
	}
	var total uint64
	for i, out := range c.Outputs {
		sum, err := safemath.Add64(total, out.Capacity)
		if err != nil {
			return fmt.Errorf("cell: output %d: total capacity overflows: %w", i, err)
		}
		total = sum
	}
	return nil
}
