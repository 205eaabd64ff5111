// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"crypto/ed25519"
	"math/rand"
	"net"
	"time"

	"github.com/luxfi/log"

	"github.com/thecore-network/thecore/block"
	"github.com/thecore-network/thecore/cell"
	"github.com/thecore-network/thecore/config"
	"github.com/thecore-network/thecore/hail"
	"github.com/thecore-network/thecore/ice"
	"github.com/thecore-network/thecore/metrics"
	"github.com/thecore-network/thecore/p2p"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/sampling"
	"github.com/thecore-network/thecore/sleet"
	"github.com/thecore-network/thecore/storage"
	"github.com/thecore-network/thecore/validator"
	"github.com/thecore-network/thecore/vrf"
	"github.com/thecore-network/thecore/wire"
)

// engines bundles the three running consensus engines and the transport
// that drives them, the composition a single node assembles at startup.
type engines struct {
	self      peerid.ID
	networkID uint32
	log       log.Logger

	dispatcher *p2p.Dispatcher

	ice         *ice.Engine
	dag         *sleet.DAG
	sleetEngine *sleet.Engine
	chain       *hail.Chain
	hailEngine  *hail.Engine

	store *storage.Store
	set   *validator.Set
	mb    *metricsBundle
}

func newEngines(cfg config.Config, self peerid.ID, set *validator.Set, store *storage.Store, logger log.Logger, mb *metricsBundle) (*engines, error) {
	e := &engines{self: self, networkID: cfg.NetworkID, log: logger, store: store, set: set, mb: mb}
	e.dispatcher = p2p.New(self, logger)

	e.ice = ice.New(ice.Config{
		Self:       self,
		KIce:       cfg.KIce,
		Beta1:      cfg.Beta1Ice,
		Weightless: cfg.Genesis,
		Set:        set,
		Bus:        e,
		Log:        logger,
	})

	e.dag = sleet.NewDAG(cfg.Params, &storageAncestry{store: store}, &sleetSink{store: store, m: mb.sleet}, logger)
	e.sleetEngine = sleet.NewEngine(e.dag, sampling.NewSampler(time.Now().UnixNano()), &sleetTransport{d: e.dispatcher}, self, cfg.Params)

	e.chain = hail.NewChain(cfg.Params, &sortitionVerifier{set: set, constant: cfg.SortitionConstant}, e.dag, &hailSink{store: store, m: mb.hail}, logger)
	e.hailEngine = hail.NewEngine(e.chain, sampling.NewSampler(time.Now().UnixNano()+1), &hailTransport{d: e.dispatcher}, self, cfg.Params)
	e.hailEngine.OnReissue(func(cells []cell.Id) {
		for _, id := range cells {
			e.dag.OnQueryFailure(id)
			mb.sleet.Reissues.Inc()
		}
	})

	committee := validator.NewCommittee(0, set.List())
	e.sleetEngine.SetCommittee(committee)
	e.hailEngine.SetCommittee(committee)

	e.registerHandlers()
	return e, nil
}

// PublishLive implements ice.CommitteeBus: a fresh LiveCommittee snapshot
// retargets the peers Sleet and Hail sample against.
func (e *engines) PublishLive(c validator.Committee) {
	e.sleetEngine.SetCommittee(c)
	e.hailEngine.SetCommittee(c)
	e.mb.ice.LiveCommitteeSize.Set(float64(c.Len()))
	e.mb.ice.Epoch.Set(float64(c.Epoch))
}

// PublishFaulty implements ice.CommitteeBus.
func (e *engines) PublishFaulty(c validator.Committee) {
	e.mb.ice.FaultyCommitteeSize.Set(float64(c.Len()))
}

func (e *engines) listen(cfg config.Config) (net.Listener, error) {
	return p2p.Listen(p2p.ListenConfig{Addr: cfg.Addr, UseTLS: cfg.UseTLS, CertPath: cfg.CertPath, KeyPath: cfg.KeyPath})
}

// handleConn reads frames off one accepted connection and dispatches
// each to its registered handler until the connection closes.
func (e *engines) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closed:
		}
	}()
	for {
		env, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		// The peer identity for an inbound connection is established by
		// the transport collaborator's TLS handshake (§6); absent that
		// wiring here, frames are dispatched under the zero PeerId,
		// which is sufficient for handlers that read the sender out of
		// the payload itself (Version, Gossip).
		if err := e.dispatcher.Dispatch(peerid.Empty, env); err != nil {
			e.log.Warn("thecore: dispatch failed", "err", err.Error())
			return
		}
	}
}

// dialBootstrap opens an outbound connection to every configured
// bootstrap peer and registers it with the dispatcher.
func (e *engines) dialBootstrap(ctx context.Context, peers []peerid.NodeAddress) {
	for _, addr := range peers {
		conn, err := net.Dial("tcp", addr.Endpoint)
		if err != nil {
			e.log.Warn("thecore: dial bootstrap peer failed", "peer", addr.String(), "err", err.Error())
			continue
		}
		e.dispatcher.AddConn(ctx, addr.ID, conn)
		go e.readLoop(ctx, addr.ID, conn)

		env, err := wire.Encode(wire.TagVersion, wire.Version{PeerID: e.self, NetworkID: e.networkID, Epoch: e.ice.Epoch()})
		if err != nil {
			e.log.Warn("thecore: encoding handshake failed", "err", err.Error())
			continue
		}
		if err := e.dispatcher.Send(addr.ID, p2p.PriorityHeartbeat, env); err != nil {
			e.log.Warn("thecore: sending handshake failed", "peer", addr.String(), "err", err.Error())
		}
	}
}

func (e *engines) readLoop(ctx context.Context, peer peerid.ID, conn net.Conn) {
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closed:
		}
	}()
	for {
		env, err := wire.ReadFrame(conn)
		if err != nil {
			e.dispatcher.RemoveConn(peer)
			return
		}
		if err := e.dispatcher.Dispatch(peer, env); err != nil {
			e.dispatcher.RemoveConn(peer)
			return
		}
	}
}

// runRounds ticks each engine's RunRound/Round at the configured query
// timeout interval until ctx is cancelled (§5's single-threaded,
// message-driven engine loop, approximated here by a periodic tick).
func (e *engines) runRounds(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ice.Round(ctx, &icePingTransport{d: e.dispatcher}, rng)
			if err := e.sleetEngine.RunRound(ctx); err != nil {
				e.log.Warn("thecore: sleet round failed", "err", err.Error())
			}
			if err := e.hailEngine.RunRound(ctx); err != nil {
				e.log.Warn("thecore: hail round failed", "err", err.Error())
			}
		}
	}
}

func (e *engines) registerHandlers() {
	e.dispatcher.RegisterHandler(wire.TagVersion, func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error) {
		var req wire.Version
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		if req.NetworkID != e.networkID {
			// §7's "Protocol violation": reject, don't retry, no ack.
			e.log.Warn("thecore: peer on wrong network", "peer", req.PeerID.String(), "networkID", req.NetworkID)
			return nil, nil
		}
		resp, err := wire.Encode(wire.TagVersionAck, wire.VersionAck{PeerID: e.self, NetworkID: e.networkID, Epoch: e.ice.Epoch()})
		return resp, err
	})
	e.dispatcher.RegisterHandler(wire.TagGetCell, func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error) {
		var req wire.GetCell
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		c, ok := e.dag.Get(req.ID)
		resp, err := wire.Encode(wire.TagGetCellAck, wire.GetCellAck{Cell: c, Found: ok})
		return resp, err
	})
	e.dispatcher.RegisterHandler(wire.TagGetBlock, func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error) {
		var req wire.GetBlock
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		b, ok := e.chain.Get(req.ID)
		resp, err := wire.Encode(wire.TagGetBlockAck, wire.GetBlockAck{Block: b, Found: ok})
		return resp, err
	})
	e.dispatcher.RegisterHandler(wire.TagGossip, func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error) {
		var msg wire.Gossip
		if err := env.Decode(&msg); err != nil {
			return nil, err
		}
		for _, c := range msg.Cells {
			_ = e.sleetEngine.Submit(c, nil)
		}
		return nil, nil
	})
	e.dispatcher.RegisterHandler(wire.TagQueryTx, func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error) {
		var req wire.QueryTx
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		// §4.3.5: "if T is unknown, synchronously run on-receive then
		// answer"; Submit is a no-op (ErrAlreadyPresent aside) once the
		// cell is already in the DAG.
		_ = e.sleetEngine.Submit(req.Cell, nil)
		pref := e.dag.IsStronglyPreferred(req.Cell.Id())
		resp, err := wire.Encode(wire.TagQueryTxAck, wire.QueryTxAck{StronglyPreferred: pref})
		return resp, err
	})
	e.dispatcher.RegisterHandler(wire.TagQueryBlock, func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error) {
		var req wire.QueryBlock
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		pref := e.chain.IsStronglyPreferred(req.Block.Id())
		resp, err := wire.Encode(wire.TagQueryBlockAck, wire.QueryBlockAck{StronglyPreferred: pref})
		return resp, err
	})
	e.dispatcher.RegisterHandler(wire.TagPing, func(from peerid.ID, env *wire.Envelope) (*wire.Envelope, error) {
		var req wire.Ping
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		outcomes := make([]wire.Outcome, len(req.Queries))
		for i, subject := range req.Queries {
			switch e.ice.Decision(subject) {
			case ice.Live:
				outcomes[i] = wire.OutcomeLive
			case ice.Faulty:
				outcomes[i] = wire.OutcomeFaulty
			default:
				outcomes[i] = wire.OutcomeUnknown
			}
		}
		resp, err := wire.Encode(wire.TagPong, wire.Pong{Outcomes: outcomes})
		return resp, err
	})
}

// storageAncestry answers whether a cell's referenced input was already
// finalized: genesis spends (op.Source == cell.Empty) or any previously
// persisted accepted cell (§4.3.1's alpha-frontier boundary).
type storageAncestry struct {
	store *storage.Store
}

func (a *storageAncestry) IsAcceptedInput(op cell.OutPoint) bool {
	if op.Source == cell.Empty {
		return true
	}
	_, err := a.store.GetAcceptedCell(op.Source)
	return err == nil
}

// sleetSink persists every cell Sleet accepts and updates its metrics.
type sleetSink struct {
	store *storage.Store
	m     *metrics.Sleet
}

func (s *sleetSink) OnCellAccepted(c *cell.Cell) {
	_ = s.store.PutAcceptedCell(c)
	s.m.AcceptedCells.Inc()
}

// hailSink persists every block Hail finalizes and updates its metrics.
type hailSink struct {
	store *storage.Store
	m     *metrics.Hail
}

func (h *hailSink) OnBlockFinal(b *block.Block) {
	_ = h.store.PutAcceptedBlock(b)
	h.m.AcceptedBlocks.Inc()
	h.m.Height.Set(float64(b.Height))
}

// sortitionVerifier checks a block producer's VRF proof and stake-scaled
// sortition eligibility against the live validator set (§4.4.1, §4.4.3).
type sortitionVerifier struct {
	set      *validator.Set
	constant float64
}

func (s *sortitionVerifier) Verify(height block.Height, parentSeed, producerPubKey, proof, output []byte) (bool, error) {
	pub := ed25519.PublicKey(producerPubKey)
	if err := vrf.Verify(pub, uint64(height), parentSeed, proof, output); err != nil {
		return false, nil
	}
	producer := peerid.FromSPKI(producerPubKey)
	weight, ok := s.set.Weight(producer)
	if !ok {
		return false, nil
	}
	return hail.Eligible(output, weight, s.set.TotalWeight(), s.constant), nil
}

// sleetTransport adapts the dispatcher's request/response round trip to
// sleet.Engine's QueryTransport.
type sleetTransport struct {
	d *p2p.Dispatcher
}

func (t *sleetTransport) QueryCell(ctx context.Context, peers []peerid.ID, c *cell.Cell) (map[peerid.ID]bool, error) {
	out := make(map[peerid.ID]bool, len(peers))
	for _, peer := range peers {
		req, err := wire.Encode(wire.TagQueryTx, wire.QueryTx{Cell: c})
		if err != nil {
			return out, err
		}
		resp, err := t.d.Request(ctx, peer, req, 2*time.Second)
		if err != nil {
			continue
		}
		var ack wire.QueryTxAck
		if err := resp.Decode(&ack); err == nil {
			out[peer] = ack.StronglyPreferred
		}
	}
	return out, nil
}

// hailTransport adapts the dispatcher's request/response round trip to
// hail.Engine's QueryTransport.
type hailTransport struct {
	d *p2p.Dispatcher
}

func (t *hailTransport) QueryBlock(ctx context.Context, peers []peerid.ID, b *block.Block) (map[peerid.ID]bool, error) {
	out := make(map[peerid.ID]bool, len(peers))
	for _, peer := range peers {
		req, err := wire.Encode(wire.TagQueryBlock, wire.QueryBlock{Block: b})
		if err != nil {
			return out, err
		}
		resp, err := t.d.Request(ctx, peer, req, 2*time.Second)
		if err != nil {
			continue
		}
		var ack wire.QueryBlockAck
		if err := resp.Decode(&ack); err == nil {
			out[peer] = ack.StronglyPreferred
		}
	}
	return out, nil
}

// icePingTransport adapts the dispatcher's request/response round trip
// to ice.Engine's PingTransport.
type icePingTransport struct {
	d *p2p.Dispatcher
}

func (t *icePingTransport) Ping(ctx context.Context, to peerid.ID, queries []peerid.ID) ([]ice.Decision, error) {
	req, err := wire.Encode(wire.TagPing, wire.Ping{Queries: queries})
	if err != nil {
		return nil, err
	}
	resp, err := t.d.Request(ctx, to, req, 2*time.Second)
	if err != nil {
		return nil, err
	}
	var pong wire.Pong
	if err := resp.Decode(&pong); err != nil {
		return nil, err
	}
	out := make([]ice.Decision, len(pong.Outcomes))
	for i, o := range pong.Outcomes {
		switch o {
		case wire.OutcomeLive:
			out[i] = ice.Live
		case wire.OutcomeFaulty:
			out[i] = ice.Faulty
		default:
			out[i] = ice.Unknown
		}
	}
	return out, nil
}
