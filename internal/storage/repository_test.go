package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reactorops/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLayoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, found, err := repo.GetLayout(ctx, "2025-01")
	require.NoError(t, err)
	assert.False(t, found)

	resources := []core.Reactor{
		{ID: "r1", Name: "1000L Reactor", Capacity: 1000, ZoneID: "zone-a", Pos: core.Position{X: 100, Y: 60}},
		{ID: "r2", Name: "500L Reactor", Capacity: 500, ZoneID: "zone-b", Pos: core.Position{X: 40, Y: 180}},
	}
	require.NoError(t, repo.PutLayout(ctx, "2025-01", resources))
	require.NoError(t, repo.PutLayout(ctx, "2025-03", resources[:1]))

	got, found, err := repo.GetLayout(ctx, "2025-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, resources, got)

	months, err := repo.LayoutMonths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Month{"2025-01", "2025-03"}, months)

	// Upsert replaces the snapshot.
	require.NoError(t, repo.PutLayout(ctx, "2025-01", resources[:1]))
	got, _, err = repo.GetLayout(ctx, "2025-01")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCorruptLayoutTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO layouts (month, resources) VALUES ('2025-01', 'not json')`)
	require.NoError(t, err)

	_, found, err := repo.GetLayout(ctx, "2025-01")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	l := core.ResourceLog{
		ResourceID: "r1",
		Month:      "2025-01",
		Batches: []core.Batch{{
			ID: "b1", Category: "Chemicals", Name: "run-1",
			StartDate: "2025-01-01", EndDate: "2025-01-10",
			Quantity: 2000, UnitPrice: 500_000,
		}},
		StatusOverride: core.StatusMaintenance,
		// Derived values must not survive the round trip.
		UtilizationPct: 99, Status: core.StatusRunning, TotalRevenue: 42,
	}
	require.NoError(t, repo.PutLog(ctx, l))

	got, found, err := repo.GetLog(ctx, "2025-01", "r1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, l.Batches, got.Batches)
	assert.Equal(t, core.StatusMaintenance, got.StatusOverride)
	assert.Zero(t, got.UtilizationPct)
	assert.Zero(t, got.TotalRevenue)
	assert.Empty(t, got.Status)

	logs, err := repo.LogsForMonth(ctx, "2025-01")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	require.NoError(t, repo.DeleteLog(ctx, "2025-01", "r1"))
	_, found, err = repo.GetLog(ctx, "2025-01", "r1")
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting a missing log is a no-op.
	require.NoError(t, repo.DeleteLog(ctx, "2025-01", "r1"))
}

func TestZones(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.AddZone(ctx, core.Zone{ID: "z2", Name: "Hall B", Row: 1}))
	require.NoError(t, repo.AddZone(ctx, core.Zone{ID: "z1", Name: "Hall A", Row: 0}))

	zones, err := repo.Zones(ctx)
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "z1", zones[0].ID, "zones come back ordered by row")
	assert.Equal(t, "z2", zones[1].ID)
}

func TestUpsertCategoriesReportsOnlyNew(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.UpsertCategories(ctx, []string{"Solvents", "Polymers"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Solvents", "Polymers"}, created)

	created, err = repo.UpsertCategories(ctx, []string{"Solvents", "Resins"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Resins"}, created)

	names, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Solvents", "Polymers", "Resins"}, names)
}

func TestTagSyncQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.EnqueueTagSync(ctx, []string{"Solvents", "Polymers"}))
	// Re-enqueueing a pending tag does not duplicate it.
	require.NoError(t, repo.EnqueueTagSync(ctx, []string{"Solvents"}))

	pending, err := repo.PendingTagSyncs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, SyncPending, pending[0].Status)

	require.NoError(t, repo.MarkTagSynced(ctx, "Solvents"))
	pending, err = repo.PendingTagSyncs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Polymers", pending[0].Tag)

	// Two failures against maxAttempts=2 move the row to the error state.
	require.NoError(t, repo.MarkTagSyncError(ctx, "Polymers", "ledger down", 2))
	pending, err = repo.PendingTagSyncs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.EqualValues(t, 1, pending[0].Attempts)

	require.NoError(t, repo.MarkTagSyncError(ctx, "Polymers", "ledger down", 2))
	pending, err = repo.PendingTagSyncs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Reconciliation resets errored rows to pending.
	retried, err := repo.RetryFailedTagSyncs(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, retried)

	pending, err = repo.PendingTagSyncs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Polymers", pending[0].Tag)
	assert.Zero(t, pending[0].Attempts)
}

func TestAdoptLegacyLayout(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx,
		`CREATE TABLE legacy_layout (resources TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO legacy_layout (resources) VALUES ('[{"id":"r1","name":"500L Reactor","capacity":500,"zoneId":"z1","pos":{"x":0,"y":60}}]')`)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	// Reopening picks up the legacy table and seeds the current month.
	repo, err = NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	months, err := repo.LayoutMonths(ctx)
	require.NoError(t, err)
	require.Len(t, months, 1)

	got, found, err := repo.GetLayout(ctx, months[0])
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}
