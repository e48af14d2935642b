// Package app wires the Proposer, RSM runtimes, and transports together
// into a runnable node process (spec.md §6's collaborator diagram made
// concrete): Leader Election drives a fresh Proposer per term attempt, the
// Server switchboard fans that term's events out to every registered RSM
// runtime, and agentgrpc/nodegrpc expose the peer-facing and client-facing
// gRPC surfaces respectively.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/election"
	"github.com/adilzhan-satpaeva/rsm-core/internal/kvmachine"
	"github.com/adilzhan-satpaeva/rsm-core/internal/liveness"
	"github.com/adilzhan-satpaeva/rsm-core/internal/observability/metrics"
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
	"github.com/adilzhan-satpaeva/rsm-core/internal/server"
	agentgrpc "github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/agent"
	nodegrpc "github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/node"
)

// Logger is the logging interface App and its helpers depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// App wires a single node process. All dependencies are constructed inside
// New from Config; Run starts every goroutine and blocks until ctx is
// cancelled or a fatal error occurs.
type App struct {
	config Config
	logger *slog.Logger

	local      *agent.JSONStore
	dispatcher *peerDispatcher
	tracker    *liveness.Tracker
	central    *server.Central
	elector    *election.Elector
	node       *Node
	runtimes   map[string]*rsm.Runtime

	registry *prometheus.Registry
}

// New validates cfg and constructs every static component of a node: its
// durable local agent, peer connections, liveness tracker, RSM runtimes,
// and the Elector that will drive term attempts. It does not start any
// goroutines or listeners; call Run for that.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("node_id", cfg.NodeID)

	registry := prometheus.NewRegistry()
	prom, err := metrics.NewPrometheus(registry)
	if err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}

	initial := rsmlog.Config{Voters: cfg.InitialVoters}
	local, err := agent.NewJSONStore(cfg.DataDir, cfg.NodeID, rsmlog.HistoryID(cfg.HistoryID), initial)
	if err != nil {
		return nil, fmt.Errorf("app: open local agent: %w", err)
	}

	peerAddrs, err := cfg.PeerAddrMap()
	if err != nil {
		return nil, err
	}
	peerClients, err := agentgrpc.DialPeers(peerAddrs, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("app: dial peers: %w", err)
	}
	dispatcher := newPeerDispatcher(peerClients)

	livenessOpts := liveness.DefaultOptions()
	if cfg.LivenessInterval > 0 {
		livenessOpts.Interval = cfg.LivenessInterval
	}
	if cfg.LivenessFailureThreshold > 0 {
		livenessOpts.FailureThreshold = cfg.LivenessFailureThreshold
	}
	if cfg.LivenessRecoveryThreshold > 0 {
		livenessOpts.RecoveryThreshold = cfg.LivenessRecoveryThreshold
	}
	tracker := liveness.New(cfg.NodeID, dispatcher.LivePeers(), newProber(rsmlog.HistoryID(cfg.HistoryID), peerClients), livenessOpts, logger)

	central := server.New(logger)

	kvTracer := otel.Tracer("rsm-core/kvmachine")
	rsmTracer := otel.Tracer("rsm-core/rsm")
	runtimes := make(map[string]*rsm.Runtime, len(cfg.RSMNames))
	for _, name := range cfg.RSMNames {
		var mod rsm.Mod
		switch name {
		case "kv":
			mod = kvmachine.New(kvTracer)
		default:
			return nil, fmt.Errorf("app: unknown rsm name %q", name)
		}
		rt := rsm.New(name, cfg.NodeID, local, central.Facade(name), mod, logger, metrics.RsmMetrics{Prometheus: prom}, rsmTracer, rsm.DefaultOptions())
		central.Register(name, rt)
		runtimes[name] = rt
	}

	electionOpts := election.DefaultOptions()
	if cfg.ElectionMinBackoff > 0 {
		electionOpts.MinBackoff = cfg.ElectionMinBackoff
	}
	if cfg.ElectionMaxBackoff > 0 {
		electionOpts.MaxBackoff = cfg.ElectionMaxBackoff
	}
	proposerMetrics := metrics.ProposerMetrics{Prometheus: prom}
	proposerTracer := otel.Tracer("rsm-core/proposer")
	newProposer := func(historyID rsmlog.HistoryID, term rsmlog.Term) *proposer.Proposer {
		p := proposer.New(cfg.NodeID, historyID, term, local, dispatcher, tracker, central, logger, proposerMetrics, proposerTracer, proposer.DefaultOptions())
		central.SetProposer(p)
		return p
	}
	elector := election.New(rsmlog.HistoryID(cfg.HistoryID), cfg.NodeID, rsmlog.Term{}, central, newProposer, electionOpts, logger)

	node := NewNode(central, elector)
	for name, rt := range runtimes {
		node.Register(name, rt)
	}

	return &App{
		config:     cfg,
		logger:     logger,
		local:      local,
		dispatcher: dispatcher,
		tracker:    tracker,
		central:    central,
		elector:    elector,
		node:       node,
		runtimes:   runtimes,
		registry:   registry,
	}, nil
}

// Stop asks every long-running component to wind down; Run returns shortly
// after ctx is cancelled regardless. For the Elector this only keeps it from
// starting another term attempt once its current backoff wait ends.
func (a *App) Stop() {
	a.elector.Stop()
	for _, rt := range a.runtimes {
		rt.Stop()
	}
	a.dispatcher.Close()
}

// Run starts the liveness tracker, the Elector, every RSM runtime, both
// gRPC servers, and the optional pprof/metrics HTTP servers, then blocks
// until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	shutdownTracing, err := a.initTracing(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	peerLis, err := net.Listen("tcp", a.config.PeerGRPCAddr)
	if err != nil {
		return fmt.Errorf("app: listen peer grpc %s: %w", a.config.PeerGRPCAddr, err)
	}
	defer func() { _ = peerLis.Close() }()

	clientLis, err := net.Listen("tcp", a.config.ClientGRPCAddr)
	if err != nil {
		return fmt.Errorf("app: listen client grpc %s: %w", a.config.ClientGRPCAddr, err)
	}
	defer func() { _ = clientLis.Close() }()

	pprofSrv, pprofLis, err := a.pprofServer()
	if err != nil {
		return err
	}
	metricsSrv, metricsLis, err := a.metricsServer()
	if err != nil {
		return err
	}

	a.logger.Info("node starting",
		"peer_grpc_addr", a.config.PeerGRPCAddr,
		"client_grpc_addr", a.config.ClientGRPCAddr,
		"history_id", a.config.HistoryID,
		"rsms", a.config.RSMNames,
	)

	peerServer := grpc.NewServer(agentgrpc.Codec())
	agentgrpc.Register(peerServer, agentgrpc.NewServer(a.local, otel.Tracer("rsm-core/agentgrpc")))
	reflection.Register(peerServer)

	clientServer := grpc.NewServer(nodegrpc.Codec())
	nodegrpc.Register(clientServer, nodegrpc.NewServer(a.node))
	reflection.Register(clientServer)

	errCh := make(chan error, 8)

	go func() { a.tracker.Run(ctx) }()
	go func() { a.elector.Run(ctx) }()
	for name, rt := range a.runtimes {
		name, rt := name, rt
		go func() {
			rt.Run(ctx)
			if err := rt.Err(); err != nil {
				errCh <- fmt.Errorf("rsm %s: %w", name, err)
			}
		}()
	}
	go func() {
		if err := peerServer.Serve(peerLis); err != nil {
			errCh <- fmt.Errorf("peer grpc serve: %w", err)
		}
	}()
	go func() {
		if err := clientServer.Serve(clientLis); err != nil {
			errCh <- fmt.Errorf("client grpc serve: %w", err)
		}
	}()
	if pprofSrv != nil {
		go func() {
			if err := pprofSrv.Serve(pprofLis); err != nil && !errors.Is(err, net.ErrClosed) {
				errCh <- fmt.Errorf("pprof serve: %w", err)
			}
		}()
	}
	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.Serve(metricsLis); err != nil && !errors.Is(err, net.ErrClosed) {
				errCh <- fmt.Errorf("metrics serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.Stop()
		peerServer.GracefulStop()
		clientServer.GracefulStop()
		shutdownHTTPServer(pprofSrv, a, "pprof")
		shutdownHTTPServer(metricsSrv, a, "metrics")
		return nil
	case err := <-errCh:
		peerServer.Stop()
		clientServer.Stop()
		return err
	}
}

// Debug/Info/Warn/Error implement Logger for shutdownHTTPServer.
func (a *App) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *App) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *App) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *App) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
