// Command jobhunter runs one full discovery pass over the configured job
// sites and keywords. It takes no arguments; configuration comes from an
// optional YAML file (JOBHUNTER_CONFIG or ./config.yaml) and JOBHUNTER_*
// environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mwhitfield/jobhunter/internal/api"
	"github.com/mwhitfield/jobhunter/internal/artifacts"
	"github.com/mwhitfield/jobhunter/internal/browser"
	"github.com/mwhitfield/jobhunter/internal/config"
	"github.com/mwhitfield/jobhunter/internal/hunt"
	"github.com/mwhitfield/jobhunter/internal/logging"
	"github.com/mwhitfield/jobhunter/internal/progress"
	"github.com/mwhitfield/jobhunter/internal/progress/sinks"
	"github.com/mwhitfield/jobhunter/internal/run"
	"github.com/mwhitfield/jobhunter/internal/store/memory"
	"github.com/mwhitfield/jobhunter/internal/store/postgres"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("repository setup failed", zap.Error(err))
		return 1
	}
	defer repo.Close()

	registry := prometheus.NewRegistry()
	sink, shutdownAPI, err := buildSinks(cfg, registry, logger)
	if err != nil {
		logger.Error("progress sink setup failed", zap.Error(err))
		return 1
	}
	defer shutdownAPI()

	var snapshots *artifacts.Store
	if cfg.Artifacts.Enabled {
		snapshots, err = artifacts.New(cfg.Artifacts.Dir)
		if err != nil {
			logger.Error("artifact store setup failed", zap.Error(err))
			return 1
		}
	}

	session, err := browser.NewSession(cfg.Browser, logger)
	if err != nil {
		logger.Error("browser startup failed", zap.Error(err))
		return 1
	}
	defer session.Close()

	orch := run.NewOrchestrator(cfg, repo, session, sink, snapshots, logger)
	if err := orch.Run(ctx); err != nil {
		logger.Error("run failed", zap.String("run_id", orch.RunID().String()), zap.Error(err))
		return 1
	}
	return 0
}

func configPath() string {
	if path := os.Getenv("JOBHUNTER_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// openRepository connects Postgres when a DSN is configured and falls back to
// the seeded in-memory store for dry runs.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (hunt.Repository, error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not set, using in-memory repository; results will not persist")
		return memory.NewSeeded(), nil
	}
	store, err := postgres.NewStore(ctx, postgres.StoreConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// buildSinks assembles the progress fan-out: the snapshot file, structured
// logs, Prometheus gauges, and (when enabled) the read-only HTTP server.
func buildSinks(cfg config.Config, registry *prometheus.Registry, logger *zap.Logger) (progress.Sink, func(), error) {
	fileSink, err := sinks.NewFileSink(cfg.Progress.File)
	if err != nil {
		return nil, nil, err
	}
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, nil, err
	}
	multi := progress.MultiSink{fileSink, sinks.NewLogSink(logger), promSink}

	shutdown := func() {}
	if cfg.Server.Enabled {
		server := api.NewServer(cfg.Server.Port, registry, logger)
		multi = append(multi, server)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("api server stopped", zap.Error(err))
			}
		}()
		shutdown = func() {
			if err := server.Shutdown(context.Background()); err != nil {
				logger.Warn("api shutdown failed", zap.Error(err))
			}
		}
	}
	return multi, shutdown, nil
}
