// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// CodecVersion is the envelope format version; bumped on breaking wire
// changes so peers can reject what they cannot parse instead of
// misinterpreting it.
const CodecVersion uint16 = 1

// ErrUnsupportedVersion is returned when decoding an envelope stamped
// with a codec version this build does not understand.
var ErrUnsupportedVersion = errors.New("wire: unsupported codec version")

// MaxFrameSize bounds a single frame's payload, per §7's "inbound queue
// overflow" capacity concern: a peer cannot force unbounded allocation
// with an oversized length prefix.
const MaxFrameSize = 16 << 20

// Envelope is the length-prefixed unit exchanged over the wire: a tag
// identifying the payload type, the JSON-encoded payload, and a Signature
// field for a signature over SignableBytes. No code in this repository
// fills in or checks Signature, so envelopes travel unsigned.
type Envelope struct {
	Version uint16
	Tag     Tag
	// RequestID correlates a response envelope back to the request that
	// triggered it (the p2p collaborator's synchronous query/ack round
	// trip, §6); zero for fire-and-forget tags like Gossip.
	RequestID uint64
	Payload   json.RawMessage
	Signature []byte
}

// Encode marshals v as the payload of an Envelope tagged with tag, ready
// for SignableBytes/signing by the caller.
func Encode(tag Tag, v any) (*Envelope, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return &Envelope{Version: CodecVersion, Tag: tag, Payload: payload}, nil
}

// SignableBytes returns the bytes an Envelope's Signature authorizes:
// version, tag, request id, and payload, but not the signature itself.
func (e *Envelope) SignableBytes() []byte {
	buf := make([]byte, 0, len(e.Payload)+11)
	var vbuf [2]byte
	binary.BigEndian.PutUint16(vbuf[:], e.Version)
	buf = append(buf, vbuf[:]...)
	buf = append(buf, byte(e.Tag))
	var rbuf [8]byte
	binary.BigEndian.PutUint64(rbuf[:], e.RequestID)
	buf = append(buf, rbuf[:]...)
	buf = append(buf, e.Payload...)
	return buf
}

// Decode unmarshals an Envelope's payload into v.
func (e *Envelope) Decode(v any) error {
	if e.Version != CodecVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, e.Version, CodecVersion)
	}
	return json.Unmarshal(e.Payload, v)
}

// WriteFrame writes a length-prefixed JSON encoding of env to w: a
// 4-byte big-endian length followed by that many bytes of JSON. This is
// the "framed length-prefixed" protocol §6 requires, used identically
// whether the underlying stream is TLS or plain (framing is orthogonal
// to transport security).
func WriteFrame(w io.Writer, env *Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds max %d", len(body), MaxFrameSize)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed frame from r and decodes it into an
// Envelope.
func ReadFrame(r io.Reader) (*Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("wire: read frame: %w", err)
	}
	return &env, nil
}
