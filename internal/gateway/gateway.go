// Package gateway exposes the local status HTTP server: health and
// status endpoints, Prometheus metrics, and a websocket feed of
// completed-request events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/engramd/engram/internal/config"
	"github.com/engramd/engram/internal/memory"
	"github.com/engramd/engram/internal/queue"
	"github.com/engramd/engram/internal/session"
)

const shutdownTimeout = 5 * time.Second

// StatsProvider reports aggregate memory store state.
type StatsProvider interface {
	GetStats() memory.Stats
}

// SessionReporter reports current session state.
type SessionReporter interface {
	Snapshot() session.Snapshot
}

// DepthReporter reports the per-directory queue depth.
type DepthReporter interface {
	Depths() map[string]int
}

// Deps carries the gateway's collaborators. Store, Tracker, Queue, and
// Bus may be nil; the corresponding sections degrade to empty.
type Deps struct {
	Store    StatsProvider
	Tracker  SessionReporter
	Queue    DepthReporter
	Bus      *queue.EventBus
	Registry *prometheus.Registry
	Logger   *slog.Logger

	// QueueDir is probed by /health.
	QueueDir string

	// RunnerBinary is reported by /health; empty means misconfigured.
	RunnerBinary string
}

// Gateway is the status HTTP server.
type Gateway struct {
	cfg       config.GatewayConfig
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a gateway from config. Addr must be non-empty; callers
// skip construction entirely when the gateway is disabled.
func New(cfg config.GatewayConfig, deps Deps) (*Gateway, error) {
	if cfg.Addr == "" {
		return nil, errors.New("gateway: addr is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", cfg.Addr); err != nil {
		return nil, fmt.Errorf("gateway: invalid addr %q: %w", cfg.Addr, err)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Gateway{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
	}, nil
}

// Start binds the listen address and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.cfg.Addr,
		Handler:      g.buildRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket feed holds the connection open
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.cfg.Addr)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop drains the server gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
