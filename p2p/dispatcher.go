// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package p2p implements the framed request/response transport
// collaborator (§2's "Transport & Dispatcher", §6). It routes inbound
// frames by tag to the engine that owns them and maintains one priority
// outbound queue per peer connection (heartbeat > query > gossip, single
// writer per connection, per §5). Listen serves plain TCP or
// server-authenticated TLS; it does not request client certificates, so
// peers are not mutually authenticated here.
package p2p

import (
	"container/heap"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/utils"
	"github.com/thecore-network/thecore/wire"
)

// Priority orders outbound frames: lower values are sent first.
type Priority int

const (
	PriorityHeartbeat Priority = iota
	PriorityQuery
	PriorityGossip
)

// ErrNotConnected is returned when sending to a peer with no open
// connection.
var ErrNotConnected = errors.New("p2p: peer not connected")

// ErrRequestTimeout is returned by Request when no response arrives
// before its timeout elapses.
var ErrRequestTimeout = errors.New("p2p: request timed out")

// Handler processes one inbound envelope and optionally returns a
// response envelope to send back (request/response tags) or nil (for
// fire-and-forget tags like Gossip).
type Handler func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error)

// outboundItem is one queued frame awaiting a connection's single writer.
type outboundItem struct {
	priority Priority
	seq      uint64
	env      *wire.Envelope
}

// outboundQueue is a priority queue ordered by (priority, seq) so that
// same-priority frames preserve FIFO order.
type outboundQueue []*outboundItem

func (q outboundQueue) Len() int { return len(q) }
func (q outboundQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q outboundQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *outboundQueue) Push(x any)         { *q = append(*q, x.(*outboundItem)) }
func (q *outboundQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// peerConn owns one peer's single writer goroutine and its priority
// outbound queue.
type peerConn struct {
	mu     sync.Mutex
	queue  outboundQueue
	seq    uint64
	notify chan struct{}
	conn   net.Conn
}

func newPeerConn(conn net.Conn) *peerConn {
	return &peerConn{conn: conn, notify: make(chan struct{}, 1)}
}

func (p *peerConn) enqueue(priority Priority, env *wire.Envelope) {
	p.mu.Lock()
	p.seq++
	heap.Push(&p.queue, &outboundItem{priority: priority, seq: p.seq, env: env})
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *peerConn) writeLoop(ctx context.Context, logger log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.notify:
		}
		for {
			p.mu.Lock()
			if p.queue.Len() == 0 {
				p.mu.Unlock()
				break
			}
			item := heap.Pop(&p.queue).(*outboundItem)
			p.mu.Unlock()

			if err := wire.WriteFrame(p.conn, item.env); err != nil {
				if logger != nil {
					logger.Warn("p2p: write failed", "err", err.Error())
				}
				return
			}
		}
	}
}

// Dispatcher routes inbound frames to registered per-tag handlers and
// multiplexes outbound sends through each peer's single-writer queue.
type Dispatcher struct {
	self peerid.ID
	log  log.Logger

	mu       sync.RWMutex
	handlers map[wire.Tag]Handler
	conns    map[peerid.ID]*peerConn

	nextReq *utils.AtomicInt
	reqMu   sync.Mutex
	pending map[uint64]chan *wire.Envelope
}

// New constructs a Dispatcher for the local node identified by self.
func New(self peerid.ID, logger log.Logger) *Dispatcher {
	return &Dispatcher{
		self:     self,
		log:      logger,
		handlers: make(map[wire.Tag]Handler),
		conns:    make(map[peerid.ID]*peerConn),
		nextReq:  utils.NewAtomicInt(0),
		pending:  make(map[uint64]chan *wire.Envelope),
	}
}

// RegisterHandler installs the handler invoked for inbound frames tagged
// tag. Only one handler may be registered per tag.
func (d *Dispatcher) RegisterHandler(tag wire.Tag, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[tag] = h
}

// AddConn registers conn as the transport for peer and starts its single
// writer goroutine. ctx bounds the writer's lifetime.
func (d *Dispatcher) AddConn(ctx context.Context, peer peerid.ID, conn net.Conn) {
	pc := newPeerConn(conn)
	d.mu.Lock()
	d.conns[peer] = pc
	d.mu.Unlock()
	go pc.writeLoop(ctx, d.log)
}

// RemoveConn drops a peer's connection; any queued frames are discarded.
func (d *Dispatcher) RemoveConn(peer peerid.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, peer)
}

// Connected reports whether peer currently has an open connection.
func (d *Dispatcher) Connected(peer peerid.ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.conns[peer]
	return ok
}

// Send enqueues env for delivery to peer at the given priority.
func (d *Dispatcher) Send(peer peerid.ID, priority Priority, env *wire.Envelope) error {
	d.mu.RLock()
	pc, ok := d.conns[peer]
	d.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	pc.enqueue(priority, env)
	return nil
}

// Broadcast enqueues env for delivery to every connected peer.
func (d *Dispatcher) Broadcast(priority Priority, env *wire.Envelope) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, pc := range d.conns {
		pc.enqueue(priority, env)
	}
}

// Dispatch handles one inbound envelope read from peer. If env.RequestID
// names an outstanding Request call, it completes that call instead of
// invoking a handler (the response-envelope side of a Request/Dispatch
// round trip). Otherwise it invokes the handler registered for env.Tag
// and, if it returns a response, enqueues the reply at query priority,
// stamped with the same RequestID so the caller's Request can match it.
func (d *Dispatcher) Dispatch(from peerid.ID, env *wire.Envelope) error {
	if env.RequestID != 0 {
		d.reqMu.Lock()
		ch, ok := d.pending[env.RequestID]
		d.reqMu.Unlock()
		if ok {
			ch <- env
			return nil
		}
	}

	d.mu.RLock()
	h, ok := d.handlers[env.Tag]
	d.mu.RUnlock()
	if !ok {
		return nil
	}
	resp, err := h(from, env)
	if err != nil {
		return err
	}
	if resp != nil {
		resp.RequestID = env.RequestID
		return d.Send(from, PriorityQuery, resp)
	}
	return nil
}

// Request sends env to peer at query priority with a freshly assigned
// RequestID and blocks until a response envelope carrying that RequestID
// arrives via Dispatch, ctx is done, or timeout elapses.
func (d *Dispatcher) Request(ctx context.Context, peer peerid.ID, env *wire.Envelope, timeout time.Duration) (*wire.Envelope, error) {
	id := uint64(d.nextReq.Inc())
	ch := make(chan *wire.Envelope, 1)
	d.reqMu.Lock()
	d.pending[id] = ch
	d.reqMu.Unlock()

	defer func() {
		d.reqMu.Lock()
		delete(d.pending, id)
		d.reqMu.Unlock()
	}()

	env.RequestID = id
	if err := d.Send(peer, PriorityQuery, env); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrRequestTimeout
	}
}

// ListenConfig bundles the TLS server configuration used when --use-tls
// is set (§6's CLI surface); framing is identical with or without TLS,
// only the net.Listener differs.
type ListenConfig struct {
	Addr     string
	UseTLS   bool
	CertPath string
	KeyPath  string
}

// Listen opens a listener per cfg: plain TCP, or TLS if cfg.UseTLS.
func Listen(cfg ListenConfig) (net.Listener, error) {
	if !cfg.UseTLS {
		return net.Listen("tcp", cfg.Addr)
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS13}
	return tls.Listen("tcp", cfg.Addr, tlsCfg)
}
