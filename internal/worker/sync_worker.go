// Package worker drains the category sync queue into the external ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"reactorops/internal/amqp"
	"reactorops/internal/ledger"
	"reactorops/internal/storage"
)

// SyncQueue is the durable queue the worker reconciles against. Satisfied
// by storage.SQLiteRepository.
type SyncQueue interface {
	PendingTagSyncs(ctx context.Context, limit int) ([]storage.TagSync, error)
	MarkTagSynced(ctx context.Context, tag string) error
	MarkTagSyncError(ctx context.Context, tag, message string, maxAttempts int64) error
	RetryFailedTagSyncs(ctx context.Context) (int64, error)
}

// SyncWorker pushes custom category tags from the local queue to the
// external category ledger. AMQP messages trigger the fast path; the
// scheduled reconciliation pass catches anything the messages missed.
type SyncWorker struct {
	queue       SyncQueue
	ledger      ledger.TagWriter
	batchSize   int
	maxAttempts int64
}

func NewSyncWorker(queue SyncQueue, ledger ledger.TagWriter, batchSize int, maxAttempts int64) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &SyncWorker{
		queue:       queue,
		ledger:      ledger,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// HandleSyncMessage processes a single category sync message from AMQP.
// The ledger write is idempotent, so a redelivered message is harmless.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.CategorySyncMessage) error {
	slog.InfoContext(ctx, "Processing category sync message",
		"tags", msg.Tags,
		"sent_at", msg.Timestamp)

	if len(msg.Tags) == 0 {
		return nil
	}

	added, err := w.ledger.UpsertTags(ctx, msg.Tags)
	if err != nil {
		for _, tag := range msg.Tags {
			if markErr := w.queue.MarkTagSyncError(ctx, tag, err.Error(), w.maxAttempts); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "tag", tag, "error", markErr)
			}
		}
		return fmt.Errorf("upsert tags to ledger: %w", err)
	}

	for _, tag := range msg.Tags {
		if err := w.queue.MarkTagSynced(ctx, tag); err != nil {
			slog.ErrorContext(ctx, "Failed to mark tag synced", "tag", tag, "error", err)
		}
	}

	slog.InfoContext(ctx, "Synced category tags to ledger",
		"requested", len(msg.Tags),
		"added", len(added))

	return nil
}

// ProcessPendingTags drains up to one batch of queued tags. This is the
// backup path for tags whose AMQP message was lost.
func (w *SyncWorker) ProcessPendingTags(ctx context.Context) error {
	pending, err := w.queue.PendingTagSyncs(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending tag syncs: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending tag syncs", "count", len(pending))

	tags := make([]string, 0, len(pending))
	for _, p := range pending {
		tags = append(tags, p.Tag)
	}

	added, err := w.ledger.UpsertTags(ctx, tags)
	if err != nil {
		for _, tag := range tags {
			if markErr := w.queue.MarkTagSyncError(ctx, tag, err.Error(), w.maxAttempts); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "tag", tag, "error", markErr)
			}
		}
		return fmt.Errorf("upsert pending tags: %w", err)
	}

	for _, tag := range tags {
		if err := w.queue.MarkTagSynced(ctx, tag); err != nil {
			slog.ErrorContext(ctx, "Failed to mark tag synced", "tag", tag, "error", err)
		}
	}

	slog.InfoContext(ctx, "Pending tag syncs completed",
		"total", len(tags),
		"added", len(added))

	return nil
}

// Reconcile is the scheduled pass: errored rows get another chance, then
// the pending queue is drained.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	retried, err := w.queue.RetryFailedTagSyncs(ctx)
	if err != nil {
		return fmt.Errorf("retry failed tag syncs: %w", err)
	}
	if retried > 0 {
		slog.InfoContext(ctx, "Requeued errored tag syncs", "count", retried)
	}
	return w.ProcessPendingTags(ctx)
}

// StartupSyncCheck drains the queue once at worker startup, recovering
// from missed messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup sync check")
	return w.Reconcile(ctx)
}
