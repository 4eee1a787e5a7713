package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"reactorops/internal/amqp"
	"reactorops/internal/config"
	apphttp "reactorops/internal/http"
	"reactorops/internal/layout"
	applog "reactorops/internal/log"
	"reactorops/internal/registry"
	"reactorops/internal/scheduling"
	"reactorops/internal/storage"
	"reactorops/internal/storage/memory"
)

func main() {
	// Load .env for local development; ignore errors in production.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	var (
		snapshots layout.SnapshotStore
		zoneSrc   layout.ZoneSource
		logStore  scheduling.LogStore
		zoneStore scheduling.ZoneStore
		catStore  registry.CategoryStore
	)

	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository",
				applog.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		snapshots, zoneSrc, logStore, zoneStore, catStore = repo, repo, repo, repo, repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		store := memory.NewWithDefaultZones()
		snapshots, zoneSrc, logStore, zoneStore, catStore = store, store, store, store, store
		logger.Info("Initialized memory backend")
	}

	// The sync publisher is optional: without AMQP, queued tags still reach
	// the ledger through the worker's scheduled reconciliation.
	var pub registry.SyncPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		pub = client
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - category sync relies on worker reconciliation")
	}

	reg := registry.New(catStore, pub)
	mgr := layout.NewManager(snapshots, zoneSrc)
	svc := scheduling.NewService(mgr, logStore, zoneStore, reg)

	srv := apphttp.NewServer(":"+cfg.Port, svc, reg, cfg.CacheSize, cfg.CacheTTL)
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting reactorops server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
