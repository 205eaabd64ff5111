// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command thecore runs a single consensus node: Ice peer-liveness
// sampling, Sleet cell (UTXO) DAG consensus, and Hail per-height block
// consensus with VRF leader sortition, wired over a framed p2p transport
// (§6) that serves plain TCP or server-authenticated TLS.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/thecore-network/thecore/config"
	"github.com/thecore-network/thecore/keypair"
	"github.com/thecore-network/thecore/metrics"
	"github.com/thecore-network/thecore/peerid"
	"github.com/thecore-network/thecore/storage"
	"github.com/thecore-network/thecore/utils/constants"
	"github.com/thecore-network/thecore/validator"
)

var cli struct {
	addr        string
	keypairHex  string
	bootstrap   []string
	genesis     bool
	useTLS      bool
	certPath    string
	keyPath     string
	idOverride  string
	dataDir     string
	metricsAddr string
	networkID   uint32
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thecore",
		Short: "Run a THE CORE consensus node (Ice, Sleet, Hail)",
		Long: `thecore runs one node of the multi-layer consensus engine: Ice samples
peer liveness by reservoir, Sleet resolves the cell (UTXO) DAG by
Avalanche-style repeated sampling, and Hail finalizes one block per
height by Snowman-style sampling over VRF-sortitioned proposals.`,
		RunE: runNode,
	}

	flags := cmd.Flags()
	flags.StringVar(&cli.addr, "addr", "", "listen address, host:port (required)")
	flags.StringVar(&cli.keypairHex, "keypair", "", "node ed25519 seed, 64 hex characters (required)")
	flags.StringArrayVar(&cli.bootstrap, "bootstrap", nil, "bootstrap peer as PeerId@host:port (repeatable)")
	flags.BoolVar(&cli.genesis, "genesis", false, "start as the first node of a new network")
	flags.BoolVar(&cli.useTLS, "use-tls", false, "require TLS on the listen socket")
	flags.StringVar(&cli.certPath, "cert-path", "", "TLS certificate path (with --use-tls)")
	flags.StringVar(&cli.keyPath, "key-path", "", "TLS key path (with --use-tls)")
	flags.StringVar(&cli.idOverride, "id", "", "override the derived PeerId (base58)")
	flags.StringVar(&cli.dataDir, "data-dir", "./data", "pebble database directory")
	flags.StringVar(&cli.metricsAddr, "metrics-addr", ":9090", "Prometheus /metrics listen address, empty to disable")
	flags.Uint32Var(&cli.networkID, "network-id", constants.LocalID, "network id (mainnet/testnet/local/custom)")

	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "thecore: %v\n", err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Addr = cli.addr
	cfg.Genesis = cli.genesis
	cfg.UseTLS = cli.useTLS
	cfg.CertPath = cli.certPath
	cfg.KeyPath = cli.keyPath
	cfg.IDOverride = cli.idOverride
	cfg.DataDir = cli.dataDir
	cfg.NetworkID = cli.networkID

	if cli.keypairHex == "" {
		return fmt.Errorf("thecore: %w", config.ErrMissingKeypair)
	}
	kp, err := keypair.FromHexSeed(cli.keypairHex)
	if err != nil {
		return fmt.Errorf("thecore: parsing --keypair: %w", err)
	}
	cfg.Keypair = kp

	for _, raw := range cli.bootstrap {
		addr, err := peerid.ParseNodeAddress(raw)
		if err != nil {
			return fmt.Errorf("thecore: parsing --bootstrap: %w", err)
		}
		cfg.Bootstrap = append(cfg.Bootstrap, addr)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("thecore: invalid configuration: %w", err)
	}

	logger := log.NewLogger("thecore")

	n, err := newNode(cfg, logger)
	if err != nil {
		return fmt.Errorf("thecore: init: %w", err)
	}
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("thecore: shutdown signal received")
		cancel()
	}()

	if cli.metricsAddr != "" {
		go n.serveMetrics(cli.metricsAddr)
	}

	return n.Run(ctx)
}

// node bundles one running instance's engines and collaborators,
// mirroring the composition-root shape of the teacher's benchmark node
// (config → storage → engines → transport → run loop).
type node struct {
	cfg    config.Config
	self   peerid.ID
	log    log.Logger
	store  *storage.Store
	set    *validator.Set
	engine *engines

	registry *prometheus.Registry
}

func newNode(cfg config.Config, logger log.Logger) (*node, error) {
	self, err := cfg.Self()
	if err != nil {
		return nil, fmt.Errorf("deriving self PeerId: %w", err)
	}

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	set, err := store.GetValidatorSet()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading validator set: %w", err)
	}
	if cfg.Genesis && set.Len() == 0 {
		set.Add(self, 1)
		if err := store.PutValidatorSet(set); err != nil {
			store.Close()
			return nil, fmt.Errorf("persisting genesis validator set: %w", err)
		}
	}
	for _, addr := range cfg.Bootstrap {
		if _, ok := set.Weight(addr.ID); !ok {
			set.Add(addr.ID, 1)
		}
	}

	registry := prometheus.NewRegistry()
	m, err := newMetricsBundle(registry)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	eng, err := newEngines(cfg, self, set, store, logger, m)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("constructing engines: %w", err)
	}

	return &node{
		cfg:      cfg,
		self:     self,
		log:      logger,
		store:    store,
		set:      set,
		engine:   eng,
		registry: registry,
	}, nil
}

// metricsBundle groups the three engines' registered metric sets.
type metricsBundle struct {
	ice   *metrics.Ice
	sleet *metrics.Sleet
	hail  *metrics.Hail
}

func newMetricsBundle(registerer prometheus.Registerer) (*metricsBundle, error) {
	ice, err := metrics.NewIce(registerer)
	if err != nil {
		return nil, err
	}
	sleet, err := metrics.NewSleet(registerer)
	if err != nil {
		return nil, err
	}
	hail, err := metrics.NewHail(registerer)
	if err != nil {
		return nil, err
	}
	return &metricsBundle{ice: ice, sleet: sleet, hail: hail}, nil
}

// Run starts the listener, the dispatcher read loop, and each engine's
// round ticker, and blocks until ctx is cancelled.
func (n *node) Run(ctx context.Context) error {
	ln, err := n.engine.listen(n.cfg)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", n.cfg.Addr, err)
	}
	n.log.Info("thecore: listening", "addr", n.cfg.Addr, "self", n.self.String(), "network", n.cfg.NetworkName())

	go n.acceptLoop(ctx, ln)
	go n.engine.dialBootstrap(ctx, n.cfg.Bootstrap)
	go n.engine.runRounds(ctx, n.cfg.Params.QueryTimeout)

	<-ctx.Done()
	ln.Close()
	n.log.Info("thecore: stopped")
	return nil
}

func (n *node) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				n.log.Warn("thecore: accept failed", "err", err.Error())
				return
			}
		}
		go n.engine.handleConn(ctx, conn)
	}
}

func (n *node) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		n.log.Warn("thecore: metrics server stopped", "err", err.Error())
	}
}

func (n *node) Close() {
	n.store.Close()
}
