// Package storage persists the scheduling state in SQLite: month-keyed
// layout snapshots, resource logs, zones, the local category table and the
// ledger sync queue.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"reactorops/internal/core"

	_ "modernc.org/sqlite"
)

// Tag sync queue states.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// TagSync is one row of the category ledger sync queue.
type TagSync struct {
	ID        int64
	Tag       string
	Status    string
	Attempts  int64
	LastError string
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.adoptLegacyLayout(context.Background()); err != nil {
		slog.Warn("Legacy layout adoption failed", "error", err)
	}
	repo.logCounts(context.Background())
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// logCounts loads the table sizes in parallel for the startup log line.
func (r *SQLiteRepository) logCounts(ctx context.Context) {
	var layouts, logs, zones int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM layouts`).Scan(&layouts)
	})
	g.Go(func() error {
		return r.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM resource_logs`).Scan(&logs)
	})
	g.Go(func() error {
		return r.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM zones`).Scan(&zones)
	})
	if err := g.Wait(); err != nil {
		slog.WarnContext(ctx, "Failed counting stored state", "error", err)
		return
	}
	slog.InfoContext(ctx, "Storage opened",
		"layout_months", layouts, "resource_logs", logs, "zones", zones)
}

// adoptLegacyLayout migrates the pre-month-keyed single layout, if one is
// present from an old deployment, into the current month's snapshot. Runs
// only when no month-keyed snapshot exists yet.
func (r *SQLiteRepository) adoptLegacyLayout(ctx context.Context) error {
	var hasLegacy int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='legacy_layout'`).
		Scan(&hasLegacy)
	if err != nil || hasLegacy == 0 {
		return err
	}
	var stored int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM layouts`).Scan(&stored); err != nil {
		return err
	}
	if stored > 0 {
		return nil
	}
	var resources string
	err = r.db.QueryRowContext(ctx, `SELECT resources FROM legacy_layout LIMIT 1`).Scan(&resources)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	month := core.MonthOf(time.Now())
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO layouts (month, resources) VALUES (?, ?)`, string(month), resources)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Adopted legacy single layout", "month", string(month))
	return nil
}

// GetLayout implements layout.SnapshotStore. A corrupt stored snapshot is
// treated as absent rather than failing the read.
func (r *SQLiteRepository) GetLayout(ctx context.Context, month core.Month) ([]core.Reactor, bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT resources FROM layouts WHERE month = ?`, string(month)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get layout %s: %w", month, err)
	}
	var resources []core.Reactor
	if err := json.Unmarshal([]byte(raw), &resources); err != nil {
		slog.ErrorContext(ctx, "Corrupt layout snapshot, treating as absent",
			"month", string(month), "error", err)
		return nil, false, nil
	}
	return resources, true, nil
}

// PutLayout implements layout.SnapshotStore.
func (r *SQLiteRepository) PutLayout(ctx context.Context, month core.Month, resources []core.Reactor) error {
	raw, err := json.Marshal(resources)
	if err != nil {
		return fmt.Errorf("marshal layout %s: %w", month, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO layouts (month, resources, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(month) DO UPDATE SET resources = excluded.resources, updated_at = CURRENT_TIMESTAMP`,
		string(month), string(raw))
	if err != nil {
		return fmt.Errorf("put layout %s: %w", month, err)
	}
	return nil
}

// LayoutMonths implements layout.SnapshotStore.
func (r *SQLiteRepository) LayoutMonths(ctx context.Context) ([]core.Month, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT month FROM layouts ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("list layout months: %w", err)
	}
	defer rows.Close()

	var out []core.Month
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan layout month: %w", err)
		}
		out = append(out, core.Month(m))
	}
	return out, rows.Err()
}

// LogsForMonth implements scheduling.LogStore. Rows with corrupt batch JSON
// are returned with empty batches so partial data never blocks the view.
func (r *SQLiteRepository) LogsForMonth(ctx context.Context, month core.Month) ([]core.ResourceLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT resource_id, batches, status_override
		FROM resource_logs WHERE month = ?`, string(month))
	if err != nil {
		return nil, fmt.Errorf("logs for %s: %w", month, err)
	}
	defer rows.Close()

	var out []core.ResourceLog
	for rows.Next() {
		var resourceID, batches, override string
		if err := rows.Scan(&resourceID, &batches, &override); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		out = append(out, r.decodeLog(ctx, resourceID, month, batches, override))
	}
	return out, rows.Err()
}

// GetLog implements scheduling.LogStore.
func (r *SQLiteRepository) GetLog(ctx context.Context, month core.Month, resourceID string) (core.ResourceLog, bool, error) {
	var batches, override string
	err := r.db.QueryRowContext(ctx, `
		SELECT batches, status_override FROM resource_logs
		WHERE month = ? AND resource_id = ?`, string(month), resourceID).
		Scan(&batches, &override)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ResourceLog{}, false, nil
	}
	if err != nil {
		return core.ResourceLog{}, false, fmt.Errorf("get log %s/%s: %w", month, resourceID, err)
	}
	return r.decodeLog(ctx, resourceID, month, batches, override), true, nil
}

func (r *SQLiteRepository) decodeLog(ctx context.Context, resourceID string, month core.Month, batches, override string) core.ResourceLog {
	l := core.ResourceLog{
		ResourceID:     resourceID,
		Month:          month,
		StatusOverride: core.Status(override),
	}
	if err := json.Unmarshal([]byte(batches), &l.Batches); err != nil {
		slog.ErrorContext(ctx, "Corrupt batch list, returning empty",
			"month", string(month), "resource_id", resourceID, "error", err)
		l.Batches = nil
	}
	return l
}

// PutLog implements scheduling.LogStore. Only batches and the status
// override are persisted; derived fields are recomputed on read.
func (r *SQLiteRepository) PutLog(ctx context.Context, l core.ResourceLog) error {
	raw, err := json.Marshal(l.Batches)
	if err != nil {
		return fmt.Errorf("marshal batches %s/%s: %w", l.Month, l.ResourceID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO resource_logs (resource_id, month, batches, status_override, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(resource_id, month) DO UPDATE SET
			batches = excluded.batches,
			status_override = excluded.status_override,
			updated_at = CURRENT_TIMESTAMP`,
		l.ResourceID, string(l.Month), string(raw), string(l.StatusOverride))
	if err != nil {
		return fmt.Errorf("put log %s/%s: %w", l.Month, l.ResourceID, err)
	}
	return nil
}

// DeleteLog implements scheduling.LogStore. Deleting a missing log is a
// no-op.
func (r *SQLiteRepository) DeleteLog(ctx context.Context, month core.Month, resourceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM resource_logs WHERE month = ? AND resource_id = ?`,
		string(month), resourceID)
	if err != nil {
		return fmt.Errorf("delete log %s/%s: %w", month, resourceID, err)
	}
	return nil
}

// Zones implements layout.ZoneSource and scheduling.ZoneStore.
func (r *SQLiteRepository) Zones(ctx context.Context) ([]core.Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, row_index FROM zones ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	var out []core.Zone
	for rows.Next() {
		var z core.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.Row); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// AddZone implements scheduling.ZoneStore.
func (r *SQLiteRepository) AddZone(ctx context.Context, z core.Zone) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO zones (id, name, row_index) VALUES (?, ?, ?)`,
		z.ID, z.Name, z.Row)
	if err != nil {
		return fmt.Errorf("add zone %s: %w", z.Name, err)
	}
	return nil
}

// UpsertCategories implements registry.CategoryStore. The UNIQUE constraint
// on name makes re-inserting a known tag a no-op, so only genuinely new
// tags are reported back.
func (r *SQLiteRepository) UpsertCategories(ctx context.Context, names []string) ([]string, error) {
	var created []string
	for _, name := range names {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO categories (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
		if err != nil {
			return created, fmt.Errorf("upsert category %s: %w", name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("rows affected for %s: %w", name, err)
		}
		if n > 0 {
			created = append(created, name)
		}
	}
	return created, nil
}

// ListCategories implements registry.CategoryStore.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// EnqueueTagSync implements registry.CategoryStore. A tag already queued
// (in any state) is left alone; a previously failed tag is reset to pending
// so the reconciliation pass retries it.
func (r *SQLiteRepository) EnqueueTagSync(ctx context.Context, names []string) error {
	for _, name := range names {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO category_sync_queue (tag) VALUES (?)
			ON CONFLICT(tag) DO UPDATE SET
				status = 'pending', updated_at = CURRENT_TIMESTAMP
			WHERE status = 'error'`, name)
		if err != nil {
			return fmt.Errorf("enqueue tag sync %s: %w", name, err)
		}
	}
	return nil
}

// PendingTagSyncs returns queue rows awaiting ledger sync, oldest first.
func (r *SQLiteRepository) PendingTagSyncs(ctx context.Context, limit int) ([]TagSync, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tag, status, attempts, COALESCE(last_error, ''), created_at
		FROM category_sync_queue WHERE status = 'pending'
		ORDER BY id LIMIT ?`, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("pending tag syncs: %w", err)
	}
	defer rows.Close()

	var out []TagSync
	for rows.Next() {
		var t TagSync
		if err := rows.Scan(&t.ID, &t.Tag, &t.Status, &t.Attempts, &t.LastError, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag sync: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkTagSynced records a successful ledger write.
func (r *SQLiteRepository) MarkTagSynced(ctx context.Context, tag string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE category_sync_queue
		SET status = 'synced', updated_at = CURRENT_TIMESTAMP WHERE tag = ?`, tag)
	if err != nil {
		return fmt.Errorf("mark tag synced %s: %w", tag, err)
	}
	return nil
}

// MarkTagSyncError bumps the attempt counter; the row transitions to the
// error state once maxAttempts is reached.
func (r *SQLiteRepository) MarkTagSyncError(ctx context.Context, tag, message string, maxAttempts int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE category_sync_queue
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN 'error' ELSE 'pending' END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE tag = ?`, message, maxAttempts, tag)
	if err != nil {
		return fmt.Errorf("mark tag sync error %s: %w", tag, err)
	}
	return nil
}

// RetryFailedTagSyncs resets every errored row to pending. Used by the
// scheduled reconciliation pass.
func (r *SQLiteRepository) RetryFailedTagSyncs(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE category_sync_queue
		SET status = 'pending', attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE status = 'error'`)
	if err != nil {
		return 0, fmt.Errorf("retry failed tag syncs: %w", err)
	}
	return res.RowsAffected()
}
