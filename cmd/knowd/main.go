// Knowd keeps a semantic search index and a fast-path cache synchronized
// with tenant-owned business records in an external system-of-record, and
// serves priority- and temporal-aware semantic retrieval over them.
//
// Configuration is loaded from ~/.config/knowd/config.yaml and KNOWD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	knowd
//
//	# Configure via environment
//	KNOWD_SERVER_PORT=8600 KNOWD_QDRANT_HOST=qdrant.internal knowd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/cache"
	"github.com/fyrsmithlabs/knowd/internal/config"
	"github.com/fyrsmithlabs/knowd/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/knowd/internal/http"
	"github.com/fyrsmithlabs/knowd/internal/logging"
	"github.com/fyrsmithlabs/knowd/internal/orchestrator"
	"github.com/fyrsmithlabs/knowd/internal/reconcile"
	"github.com/fyrsmithlabs/knowd/internal/retrieval"
	"github.com/fyrsmithlabs/knowd/internal/services"
	"github.com/fyrsmithlabs/knowd/internal/source"
	"github.com/fyrsmithlabs/knowd/internal/telemetry"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/knowd/config.yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("knowd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

// run initializes all dependencies and blocks until the context is
// cancelled:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Connects to infrastructure (Qdrant, Redis, ERP, embeddings)
//  4. Wires the reconciliation engine, orchestrator, and ranker
//  5. Starts the HTTP server
//  6. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Warn("telemetry initialization failed, continuing without it", zap.Error(err))
	} else {
		defer func() {
			if err := tel.Shutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	store, err := vectorstore.NewQdrantStore(cfg.Qdrant, logger.Named("vectorstore"))
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	defer func() { _ = store.Close() }()

	fastCache, err := cache.NewRedisCache(cfg.Redis, logger.Named("cache"))
	if err != nil {
		// The cache is non-authoritative; the daemon runs without it.
		logger.Warn("redis unavailable, running without fast cache", zap.Error(err))
		fastCache = nil
	} else {
		defer func() { _ = fastCache.Close() }()
	}

	embedder, err := embeddings.NewService(cfg.Embeddings, logger.Named("embeddings"))
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	provider, err := source.NewERPClient(cfg.Source)
	if err != nil {
		return fmt.Errorf("creating source client: %w", err)
	}

	var cacheIface cache.FastCache
	if fastCache != nil {
		cacheIface = fastCache
	}

	engine := reconcile.NewEngine(provider, embedder, store, cacheIface, cfg.Sync, logger.Named("reconcile"))
	orch := orchestrator.New(engine, logger.Named("orchestrator"))
	ranker := retrieval.NewRanker(embedder, store, func(ctx context.Context, tenantID string) error {
		orch.SyncTenant(ctx, tenantID)
		return nil
	}, cfg.Retrieval, logger.Named("retrieval"))

	registry := services.NewRegistry(services.Options{
		Orchestrator: orch,
		Ranker:       ranker,
		Source:       provider,
		Embedder:     embedder,
		VectorStore:  store,
		Cache:        cacheIface,
	})

	server, err := httpserver.NewServer(registry, logger.Named("http"), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
