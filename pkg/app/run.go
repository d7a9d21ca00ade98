// Package app wires the engram daemon: config, memory store, relevance
// engine, queue processor, status gateway, and maintenance scheduler.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/engramd/engram/internal/archive"
	"github.com/engramd/engram/internal/config"
	"github.com/engramd/engram/internal/cron"
	"github.com/engramd/engram/internal/gateway"
	"github.com/engramd/engram/internal/memory"
	"github.com/engramd/engram/internal/queue"
	"github.com/engramd/engram/internal/relevance"
	"github.com/engramd/engram/internal/runner"
	"github.com/engramd/engram/internal/session"
	"github.com/engramd/engram/internal/telemetry"
)

// RunParams configures the main daemon loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the configured data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts the queue processor and its
// supporting services, and blocks until a shutdown signal arrives.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	}))
	slog.SetDefault(logger)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, params.Version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// --- memory and relevance ---
	store := memory.NewStore(dataDir, logger)
	tracker := session.NewTracker(cfg.Session.ID)
	engine := relevance.NewEngine(store, nil, relevance.NewPatternDetector(), logger)

	// --- conversation archive (optional) ---
	var arch *archive.Archive
	if cfg.Archive.Enabled {
		path := cfg.Archive.Path
		if path == "" {
			path = filepath.Join(dataDir, "archive.db")
		}
		arch, err = archive.Open(path)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer func() {
			if err := arch.Close(); err != nil {
				logger.Warn("archive close failed", "error", err)
			}
		}()
		logger.Info("archive enabled", "path", path)
	}

	// --- external tool runner ---
	if cfg.Runner.CredentialEnv != "" {
		if _, ok := os.LookupEnv(cfg.Runner.CredentialEnv); !ok {
			logger.Warn("credential variable not set", "env", cfg.Runner.CredentialEnv)
		}
	}
	tool := runner.NewCLI(runner.Config{
		Binary:    cfg.Runner.Binary,
		Args:      cfg.Runner.Args,
		ModelFlag: cfg.Runner.ModelFlag,
	}, logger)

	// --- queue processor ---
	queueDir := cfg.Queue.Dir
	if queueDir == "" {
		queueDir = filepath.Join(dataDir, "queue")
	}

	registry := prometheus.NewRegistry()
	bus := queue.NewEventBus()

	deps := queue.Deps{
		Engine:  engine,
		Store:   store,
		Tracker: tracker,
		Runner:  tool,
		Bus:     bus,
		Metrics: queue.NewMetrics(registry),
		Logger:  logger,
	}
	if arch != nil {
		deps.Archiver = arch
	}

	proc, err := queue.NewProcessor(queue.Config{
		BaseDir:         queueDir,
		PollInterval:    cfg.Queue.PollInterval.Std(),
		ToolTimeout:     cfg.Queue.ToolTimeout.Std(),
		MaxContextChars: cfg.Queue.MaxContextChars,
		MaxPromptChars:  cfg.Queue.MaxPromptChars,
		MaxContextItems: cfg.Relevance.MaxItems,
		StaleThreshold:  cfg.Queue.StaleThreshold.Std(),
	}, deps)
	if err != nil {
		return err
	}

	// --- status gateway (optional) ---
	if cfg.Gateway.Addr != "" {
		gw, err := gateway.New(cfg.Gateway, gateway.Deps{
			Store:        store,
			Tracker:      tracker,
			Queue:        proc,
			Bus:          bus,
			Registry:     registry,
			Logger:       logger,
			QueueDir:     queueDir,
			RunnerBinary: cfg.Runner.Binary,
		})
		if err != nil {
			return err
		}
		if err := gw.Start(); err != nil {
			return err
		}
		defer func() {
			if err := gw.Stop(context.Background()); err != nil {
				logger.Warn("gateway stop failed", "error", err)
			}
		}()
	}

	// --- maintenance scheduler ---
	scheduler := cron.NewScheduler(logger)
	if cfg.Maintenance.RequeueStale != "off" {
		job := &cron.StaleRequeueJob{
			Processor:    proc,
			Logger:       logger,
			ScheduleExpr: cfg.Maintenance.RequeueStale,
		}
		if err := scheduler.RegisterJob(job); err != nil {
			return err
		}
	}
	if arch != nil && cfg.Maintenance.ArchiveMaintenance != "off" {
		job := &cron.ArchiveMaintenanceJob{
			Archive:      arch,
			Logger:       logger,
			ScheduleExpr: cfg.Maintenance.ArchiveMaintenance,
		}
		if err := scheduler.RegisterJob(job); err != nil {
			return err
		}
	}
	if err := scheduler.RegisterJob(&cron.StatsSnapshotJob{Store: store, Logger: logger}); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Stop(context.Background()); err != nil {
			logger.Warn("scheduler stop failed", "error", err)
		}
	}()

	logger.Info("engram started",
		"version", params.Version,
		"data_dir", dataDir,
		"queue_dir", queueDir,
		"session", cfg.Session.ID,
	)

	// Blocks until the context is cancelled by a signal.
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/engram/engram.yaml →
// ~/.config/engram/engram.yaml → ./engram.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "engram", "engram.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "engram", "engram.yaml"))
	}

	candidates = append(candidates, "engram.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory,
// ~/.engram, matching what the queue's clients expect.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".engram")
}
