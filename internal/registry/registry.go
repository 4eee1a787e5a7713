// Package registry tracks batch category tags: the closed core set plus
// user-defined custom tags, and the pipeline that propagates new custom tags
// to the external category ledger.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"reactorops/internal/core"
)

// CategoryStore is the local category table. Names are unique: upserting an
// existing tag is a no-op, which is what makes the ledger pipeline
// idempotent end to end.
type CategoryStore interface {
	// UpsertCategories inserts unseen names and returns only the newly
	// created ones.
	UpsertCategories(ctx context.Context, names []string) (created []string, err error)
	ListCategories(ctx context.Context) ([]string, error)
	// EnqueueTagSync records names as pending ledger synchronization.
	EnqueueTagSync(ctx context.Context, names []string) error
}

// SyncPublisher announces newly seen tags to the sync worker.
type SyncPublisher interface {
	PublishCategorySync(ctx context.Context, tags []string) error
}

// Registry resolves batch tags and feeds new custom tags into the ledger
// sync pipeline.
type Registry struct {
	store CategoryStore
	pub   SyncPublisher
}

func New(store CategoryStore, pub SyncPublisher) *Registry {
	return &Registry{store: store, pub: pub}
}

// Resolve classifies a raw tag against the core set. Custom tags are
// accepted as-is with no blocking round-trip.
func (r *Registry) Resolve(tag string) core.Category {
	return core.ResolveCategory(tag)
}

// Categories returns the core set followed by every stored custom tag, for
// form pickers.
func (r *Registry) Categories(ctx context.Context) ([]string, error) {
	out := core.CoreCategories()
	if r.store == nil {
		return out, nil
	}
	stored, err := r.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	for _, name := range stored {
		if !core.IsCoreCategory(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// RecordTags registers the custom tags used by the given logs and queues the
// newly seen ones for ledger sync. Called at save time as a best-effort side
// effect: a failure is returned for logging but must not fail the save.
func (r *Registry) RecordTags(ctx context.Context, logs []core.ResourceLog) error {
	tags := core.CustomTags(logs)
	if len(tags) == 0 || r.store == nil {
		return nil
	}
	created, err := r.store.UpsertCategories(ctx, tags)
	if err != nil {
		return fmt.Errorf("upsert categories: %w", err)
	}
	if len(created) == 0 {
		return nil
	}
	if err := r.store.EnqueueTagSync(ctx, created); err != nil {
		return fmt.Errorf("enqueue tag sync: %w", err)
	}
	slog.InfoContext(ctx, "New category tags recorded",
		"tags", created)

	if r.pub == nil {
		slog.DebugContext(ctx, "No sync publisher configured, tags stay queued")
		return nil
	}
	if err := r.pub.PublishCategorySync(ctx, created); err != nil {
		// The queue row survives; the reconciliation pass picks it up.
		slog.WarnContext(ctx, "Failed to publish category sync message",
			"tags", created, "error", err)
	}
	return nil
}
