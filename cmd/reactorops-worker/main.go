package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"reactorops/internal/amqp"
	"reactorops/internal/config"
	"reactorops/internal/ledger"
	gledger "reactorops/internal/ledger/google"
	ledgermem "reactorops/internal/ledger/memory"
	applog "reactorops/internal/log"
	"reactorops/internal/storage"
	"reactorops/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting reactorops-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without spreadsheet credentials the worker falls back to an in-memory
	// ledger, which keeps local development runnable end to end.
	var tagWriter ledger.TagWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gledger.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize ledger client", applog.FieldError, err)
			os.Exit(1)
		}
		tagWriter = client
		logger.Info("Ledger client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.LedgerSheetName)
	} else {
		tagWriter = ledgermem.New()
		logger.Info("Ledger disabled - using in-memory ledger")
	}

	syncWorker := worker.NewSyncWorker(repo, tagWriter, cfg.SyncBatchSize, int64(cfg.SyncMaxAttempts))

	// Drain anything left in the queue before consuming new messages.
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", applog.FieldError, err)
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			handler := func(msg *amqp.CategorySyncMessage) error {
				return syncWorker.HandleSyncMessage(ctx, msg)
			}
			if err := amqpClient.ConsumeCategorySync(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on scheduled reconciliation only")
	}

	// Scheduled reconciliation catches tags whose message was lost and
	// gives errored rows another chance.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReconcileSpec, func() {
		if err := syncWorker.Reconcile(ctx); err != nil {
			logger.Error("Scheduled reconciliation failed", applog.FieldError, err)
		}
	}); err != nil {
		logger.Error("Invalid reconcile schedule", applog.FieldError, err, "spec", cfg.ReconcileSpec)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Reconciliation scheduled", "spec", cfg.ReconcileSpec)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for scheduled jobs to finish")
	}

	logger.Info("Worker stopped gracefully")
}
