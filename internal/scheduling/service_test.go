package scheduling

import (
	"context"
	"errors"
	"math"
	"testing"

	"reactorops/internal/core"
	"reactorops/internal/layout"
	"reactorops/internal/registry"
	"reactorops/internal/storage/memory"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.NewWithDefaultZones()
	mgr := layout.NewManager(store, store)
	reg := registry.New(store, nil)
	return NewService(mgr, store, store, reg), store
}

func mustAdd(t *testing.T, s *Service, month core.Month, capacity core.CapacityClass) core.Reactor {
	t.Helper()
	r, err := s.AddResource(context.Background(), month, capacity, 100, 30)
	if err != nil {
		t.Fatalf("add resource: %v", err)
	}
	return r
}

func TestMonthViewEmpty(t *testing.T) {
	s, _ := newTestService()
	v, err := s.MonthView(context.Background(), "2025-01")
	if err != nil {
		t.Fatalf("month view: %v", err)
	}
	if len(v.Resources) != 0 || len(v.Logs) != 0 {
		t.Fatalf("expected empty view, got %+v", v)
	}
	if len(v.Zones) != 2 {
		t.Fatalf("expected seeded zones, got %v", v.Zones)
	}
	if v.Summary.TotalRevenue != 0 {
		t.Fatalf("expected zero revenue, got %v", v.Summary.TotalRevenue)
	}
}

func TestSaveBatchesDerivesLogFields(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService()
	r := mustAdd(t, s, "2025-01", 1000)

	batches := []core.Batch{
		{Category: "Solvents", Name: "run-1", StartDate: "2025-01-01", EndDate: "2025-01-10", Quantity: 2000, UnitPrice: 500_000},
		{Category: core.CategoryChemicals, Name: "run-2", StartDate: "2025-01-08", EndDate: "2025-01-15", Quantity: -4, UnitPrice: 100},
	}
	l, err := s.SaveBatches(ctx, "2025-01", r.ID, batches, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if l.UtilizationPct != 48.4 {
		t.Fatalf("expected 48.4%%, got %v", l.UtilizationPct)
	}
	if l.Status != core.StatusRunning {
		t.Fatalf("expected running, got %s", l.Status)
	}
	if math.Abs(l.TotalRevenue-1) > 1e-9 {
		t.Fatalf("expected revenue 1, got %v", l.TotalRevenue)
	}
	for _, b := range l.Batches {
		if b.ID == "" {
			t.Fatal("batch ids should be assigned on save")
		}
		if b.Quantity < 0 {
			t.Fatal("negative quantity should be clamped")
		}
	}
	// The novel custom tag was queued for ledger sync exactly once.
	if q := store.QueuedTags(); len(q) != 1 || q[0] != "Solvents" {
		t.Fatalf("unexpected sync queue: %v", q)
	}
}

func TestSaveBatchesUnknownResource(t *testing.T) {
	s, _ := newTestService()
	_, err := s.SaveBatches(context.Background(), "2025-01", "ghost", nil, "")
	if !errors.Is(err, core.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestMaintenanceOverride(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	r := mustAdd(t, s, "2025-01", 500)

	l, err := s.SaveBatches(ctx, "2025-01", r.ID, []core.Batch{
		{Name: "run", Category: core.CategoryPharma, StartDate: "2025-01-01", EndDate: "2025-01-31"},
	}, core.StatusMaintenance)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if l.Status != core.StatusMaintenance {
		t.Fatalf("override should win, got %s", l.Status)
	}

	// A non-maintenance override is not stored; status derives instead.
	l, err = s.SaveBatches(ctx, "2025-01", r.ID, nil, core.StatusRunning)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if l.Status != core.StatusIdle {
		t.Fatalf("empty schedule should be idle, got %s", l.Status)
	}
}

func TestMonthViewCopyForwardLeavesPriorMonthIntact(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	r := mustAdd(t, s, "2025-01", 1000)

	// February inherits January's layout.
	feb, err := s.MonthView(ctx, "2025-02")
	if err != nil {
		t.Fatalf("feb view: %v", err)
	}
	if len(feb.Resources) != 1 || feb.Resources[0].ID != r.ID {
		t.Fatalf("expected inherited resource, got %v", feb.Resources)
	}

	// Moving it in February must not touch January's stored position.
	if _, err := s.MoveResource(ctx, "2025-02", r.ID, 400, 150); err != nil {
		t.Fatalf("move: %v", err)
	}
	jan, err := s.MonthView(ctx, "2025-01")
	if err != nil {
		t.Fatalf("jan view: %v", err)
	}
	if jan.Resources[0].Pos.X != 100 || jan.Resources[0].ZoneID != "zone-a" {
		t.Fatalf("january layout changed: %+v", jan.Resources[0])
	}
}

func TestDeleteResourceRemovesFromViewAndAggregation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	r1 := mustAdd(t, s, "2025-01", 1000)
	r2 := mustAdd(t, s, "2025-01", 2000)

	for _, r := range []core.Reactor{r1, r2} {
		if _, err := s.SaveBatches(ctx, "2025-01", r.ID, []core.Batch{
			{Name: "run-" + r.ID, Category: core.CategoryChemicals,
				StartDate: "2025-01-01", EndDate: "2025-01-10",
				Quantity: 1000, UnitPrice: 1_000_000},
		}, ""); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// Freeze February with its own snapshot before deleting in it.
	if _, err := s.MoveResource(ctx, "2025-02", r1.ID, 100, 30); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := s.DeleteResource(ctx, "2025-01", r1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	jan, err := s.MonthView(ctx, "2025-01")
	if err != nil {
		t.Fatalf("jan view: %v", err)
	}
	if len(jan.Resources) != 1 || jan.Resources[0].ID != r2.ID {
		t.Fatalf("resource not removed: %v", jan.Resources)
	}
	// The deleted resource's log is orphaned and excluded from aggregation.
	if math.Abs(jan.Summary.TotalRevenue-1) > 1e-9 {
		t.Fatalf("expected revenue 1 after delete, got %v", jan.Summary.TotalRevenue)
	}

	// February's independent snapshot still has both resources.
	feb, err := s.MonthView(ctx, "2025-02")
	if err != nil {
		t.Fatalf("feb view: %v", err)
	}
	if len(feb.Resources) != 2 {
		t.Fatalf("february snapshot affected by january delete: %v", feb.Resources)
	}
}

func TestMonthViewCategoryRevenueMatchesTotal(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	r := mustAdd(t, s, "2025-01", 1000)

	if _, err := s.SaveBatches(ctx, "2025-01", r.ID, []core.Batch{
		{Name: "a", Category: core.CategoryChemicals, StartDate: "2025-01-01", EndDate: "2025-01-05", Quantity: 100, UnitPrice: 3_000_000},
		{Name: "b", Category: "Solvents", StartDate: "2025-01-06", EndDate: "2025-01-09", Quantity: 70, UnitPrice: 2_000_000},
		{Name: "c", Category: "", StartDate: "bad-date", EndDate: "2025-01-09", Quantity: 10, UnitPrice: 1_000_000},
	}, ""); err != nil {
		t.Fatalf("save: %v", err)
	}

	v, err := s.MonthView(ctx, "2025-01")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	var byCat float64
	for _, ct := range v.Summary.ByCategory {
		byCat += ct.Revenue
	}
	if math.Abs(byCat-v.Summary.TotalRevenue) > 1e-9 {
		t.Fatalf("category sum %v != total %v", byCat, v.Summary.TotalRevenue)
	}
}

func TestMonthViewExcludesOrphanedLogs(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService()
	r := mustAdd(t, s, "2025-01", 1000)

	// A log left behind by a resource that is gone from the snapshot.
	if err := store.PutLog(ctx, core.ResourceLog{
		ResourceID: "ghost",
		Month:      "2025-01",
		Batches: []core.Batch{{Name: "stale", Category: core.CategoryChemicals,
			StartDate: "2025-01-01", EndDate: "2025-01-31",
			Quantity: 9999, UnitPrice: 9_000_000}},
	}); err != nil {
		t.Fatalf("put log: %v", err)
	}

	v, err := s.MonthView(ctx, "2025-01")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(v.Logs) != 1 || v.Logs[0].ResourceID != r.ID {
		t.Fatalf("orphan log leaked into view: %v", v.Logs)
	}
	if v.Summary.TotalRevenue != 0 {
		t.Fatalf("orphan log leaked into aggregation: %v", v.Summary.TotalRevenue)
	}
}

func TestAddZoneAppendsRow(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	z, err := s.AddZone(ctx, "Hall C")
	if err != nil {
		t.Fatalf("add zone: %v", err)
	}
	if z.Row != 2 {
		t.Fatalf("expected next free row 2, got %d", z.Row)
	}
	zones, err := s.Zones(ctx)
	if err != nil {
		t.Fatalf("zones: %v", err)
	}
	if len(zones) != 3 {
		t.Fatalf("expected 3 zones, got %v", zones)
	}
}

func TestMoveOutsideZonesIsRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	r := mustAdd(t, s, "2025-01", 500)

	_, err := s.MoveResource(ctx, "2025-01", r.ID, 100, 5000)
	if !errors.Is(err, core.ErrOutsideZones) {
		t.Fatalf("expected ErrOutsideZones, got %v", err)
	}
	v, _ := s.MonthView(ctx, "2025-01")
	if v.Resources[0].Pos.X != 100 {
		t.Fatalf("rejected drop moved the resource: %+v", v.Resources[0])
	}
}
