// Command resilienced runs the urban infrastructure resilience core as
// a standalone HTTP service: ingestion, criticality scoring, cascade
// simulation, and job coordination behind one process.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stratumgrid/resilience-core/internal/api"
	"github.com/stratumgrid/resilience-core/internal/cascade"
	"github.com/stratumgrid/resilience-core/internal/coordinator"
	"github.com/stratumgrid/resilience-core/internal/fanout"
	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/internal/ingest"
	"github.com/stratumgrid/resilience-core/internal/scoring"
	"github.com/stratumgrid/resilience-core/internal/telemetry"
	"github.com/stratumgrid/resilience-core/pkg/config"
	"github.com/stratumgrid/resilience-core/pkg/logger"
)

func main() {
	var configPath string
	var httpAddr string

	flag.StringVar(&configPath, "config", "", "path to a platform config YAML file (optional; built-in defaults are used otherwise)")
	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.Parse()

	cfg := config.DefaultPlatformConfig()
	if configPath != "" {
		loaded, err := config.LoadPlatformConfig(configPath)
		if err != nil {
			logger.Error("failed to load platform config", "path", configPath, "error", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	logger.SetDefault(logger.NewText(cfg.LogLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	shutdownTracing, err := telemetry.Provider(ctx, os.Stderr)
	if err != nil {
		logger.Error("failed to start tracing provider", "error", err)
		stop()
		os.Exit(1)
	}

	stalenessBound, err := cfg.CriticalityStalenessDuration()
	if err != nil {
		logger.Error("invalid criticality_staleness_bound", "error", err)
		stop()
		os.Exit(1)
	}

	store := graph.New()
	bus := fanout.New(0)
	scorer := scoring.NewDefaultScorer(cfg.ScoringWeights())
	scores := scoring.NewCache(scorer, stalenessBound)
	engine := cascade.NewEngine(cfg.CascadeParams(), cfg.ResolvedWorkerPoolSize(), cfg.WorkBudget)
	pipeline := ingest.New(store, bus, cfg.IngestOptions()...)
	coord := coordinator.New(engine, store, scores, bus, cfg.ResolvedWorkerPoolSize(), cfg.CoordinatorQueueCapacity)

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           api.New(pipeline, coord, store, scores).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Component("api").Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Component("api").Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}
}
