// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/wire"
)

func TestSendDeliversFrameOverConnection(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	self := peerid.FromSPKI([]byte("self"))
	peer := peerid.FromSPKI([]byte("peer"))

	d := New(self, nil)
	d.AddConn(ctx, peer, client)

	env, err := wire.Encode(wire.TagPing, wire.Ping{Queries: []peerid.ID{peer}})
	require.NoError(err)
	require.NoError(d.Send(peer, PriorityQuery, env))

	done := make(chan struct{})
	go func() {
		read, err := wire.ReadFrame(server)
		require.NoError(err)
		require.Equal(wire.TagPing, read.Tag)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestSendToUnconnectedPeerErrors(t *testing.T) {
	require := require.New(t)

	d := New(peerid.Empty, nil)
	env, err := wire.Encode(wire.TagPing, wire.Ping{})
	require.NoError(err)

	err = d.Send(peerid.FromSPKI([]byte("nobody")), PriorityQuery, env)
	require.ErrorIs(err, ErrNotConnected)
}

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	require := require.New(t)

	d := New(peerid.Empty, nil)
	invoked := false
	d.RegisterHandler(wire.TagPing, func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error) {
		invoked = true
		return nil, nil
	})

	env, err := wire.Encode(wire.TagPing, wire.Ping{})
	require.NoError(err)
	require.NoError(d.Dispatch(peerid.FromSPKI([]byte("a")), env))
	require.True(invoked)
}

func TestRequestCompletesOnMatchingResponse(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	self := peerid.FromSPKI([]byte("self"))
	peer := peerid.FromSPKI([]byte("peer"))

	d := New(self, nil)
	d.AddConn(ctx, peer, client)

	// Drain the peer's outbound frame and echo it back as the response,
	// simulating a peer that answers immediately.
	go func() {
		read, err := wire.ReadFrame(server)
		if err != nil {
			return
		}
		ack, err := wire.Encode(wire.TagPong, wire.Pong{Outcomes: []wire.Outcome{wire.OutcomeLive}})
		if err != nil {
			return
		}
		ack.RequestID = read.RequestID
		d.Dispatch(peer, ack)
	}()

	req, err := wire.Encode(wire.TagPing, wire.Ping{Queries: []peerid.ID{peer}})
	require.NoError(err)

	resp, err := d.Request(ctx, peer, req, time.Second)
	require.NoError(err)
	var pong wire.Pong
	require.NoError(resp.Decode(&pong))
	require.Equal([]wire.Outcome{wire.OutcomeLive}, pong.Outcomes)
}

func TestRequestTimesOutWithNoResponse(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	self := peerid.FromSPKI([]byte("self"))
	peer := peerid.FromSPKI([]byte("peer"))

	d := New(self, nil)
	d.AddConn(ctx, peer, client)
	go io.Copy(io.Discard, server)

	req, err := wire.Encode(wire.TagPing, wire.Ping{})
	require.NoError(err)

	_, err = d.Request(ctx, peer, req, 20*time.Millisecond)
	require.ErrorIs(err, ErrRequestTimeout)
}
