// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package peerid derives and renders the node identity defined in §6 of the
// core spec: PeerId = base58(blake3(TLS cert SPKI)).
package peerid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/ids"
	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// ErrWrongLength is returned when raw bytes don't match an ids.ID's width.
var ErrWrongLength = errors.New("peerid: wrong byte length")

// ID is a PeerId: the blake3 hash of a peer's TLS certificate SPKI. It
// doubles as the key used to look up a peer's validator entry.
type ID ids.ID

// Empty is the zero PeerId.
var Empty ID

// FromSPKI derives a PeerId from a certificate's SubjectPublicKeyInfo bytes.
func FromSPKI(spki []byte) ID {
	h := blake3.Sum256(spki)
	return ID(h)
}

// FromBytes wraps a raw 32-byte value as a PeerId without hashing it again;
// used when decoding a PeerId already carried on the wire.
func FromBytes(b []byte) (ID, error) {
	if len(b) != len(ID{}) {
		return Empty, ErrWrongLength
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// Bytes returns the raw 32 bytes of the PeerId.
func (id ID) Bytes() []byte {
	return id[:]
}

// Compare provides a total order over PeerIds, used to list validators
// in a deterministic order. Hail's §4.4.3 tie-break compares BlockIds,
// not PeerIds.
func (id ID) Compare(other ID) int {
	return ids.ID(id).Compare(ids.ID(other))
}

// String renders the PeerId in base58, per §6 ("Node identity").
func (id ID) String() string {
	return base58.Encode(id[:])
}

// Hex renders the PeerId as a hex string, useful for log correlation with
// the certificate fingerprint.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Parse decodes a base58-rendered PeerId back into an ID.
func Parse(s string) (ID, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Empty, err
	}
	return FromBytes(b)
}

// NodeAddress binds a PeerId to a network endpoint, as required for the
// CLI's repeatable --bootstrap PeerId@host:port entries (§6).
type NodeAddress struct {
	ID       ID
	Endpoint string // host:port
}

// String renders a NodeAddress in the same "PeerId@host:port" form
// --bootstrap accepts.
func (a NodeAddress) String() string {
	return a.ID.String() + "@" + a.Endpoint
}

// ParseNodeAddress parses a "PeerId@host:port" string, the format of one
// --bootstrap flag value.
func ParseNodeAddress(s string) (NodeAddress, error) {
	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return NodeAddress{}, fmt.Errorf("peerid: malformed node address %q, want PeerId@host:port", s)
	}
	id, err := Parse(s[:at])
	if err != nil {
		return NodeAddress{}, fmt.Errorf("peerid: malformed node address %q: %w", s, err)
	}
	endpoint := s[at+1:]
	if endpoint == "" {
		return NodeAddress{}, fmt.Errorf("peerid: malformed node address %q, missing endpoint", s)
	}
	return NodeAddress{ID: id, Endpoint: endpoint}, nil
}
