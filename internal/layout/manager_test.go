package layout

import (
	"context"
	"errors"
	"testing"

	"reactorops/internal/core"
)

// fakeStore keeps snapshots in a map, mirroring the storage contract.
type fakeStore struct {
	layouts map[core.Month][]core.Reactor
	zones   []core.Zone
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		layouts: map[core.Month][]core.Reactor{},
		zones:   testZones,
	}
}

func (f *fakeStore) GetLayout(_ context.Context, month core.Month) ([]core.Reactor, bool, error) {
	rs, ok := f.layouts[month]
	return rs, ok, nil
}

func (f *fakeStore) PutLayout(_ context.Context, month core.Month, rs []core.Reactor) error {
	f.layouts[month] = rs
	return nil
}

func (f *fakeStore) LayoutMonths(_ context.Context) ([]core.Month, error) {
	var out []core.Month
	for m := range f.layouts {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) Zones(_ context.Context) ([]core.Zone, error) {
	return f.zones, nil
}

func seedReactor(id string, x int) core.Reactor {
	return core.Reactor{
		ID: id, Name: "500L Reactor", Capacity: 500,
		ZoneID: "z0", Pos: core.Position{X: x, Y: 60},
	}
}

func TestLayoutCopyForwardIsIndependent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.layouts["2025-01"] = []core.Reactor{seedReactor("r1", 100)}
	mgr := NewManager(store, store)

	// March has no snapshot: January's is copied forward.
	got, err := mgr.Layout(ctx, "2025-03")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected copied resource, got %v", got)
	}
	// Browsing alone must not materialize a snapshot.
	if _, ok := store.layouts["2025-03"]; ok {
		t.Fatal("read-only access stored a snapshot")
	}

	// Moving the resource in March stores March's own snapshot and leaves
	// January untouched.
	pos, err := mgr.PlaceResource(ctx, "2025-03", "r1", 300, 150)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if pos.X != 300 || pos.Y != 180 {
		t.Fatalf("unexpected snapped position: %+v", pos)
	}
	if store.layouts["2025-01"][0].Pos.X != 100 {
		t.Fatal("prior month's stored positions changed")
	}
	if store.layouts["2025-03"][0].ZoneID != "z1" {
		t.Fatalf("zone not updated: %+v", store.layouts["2025-03"][0])
	}
}

func TestLayoutNoPriorMonth(t *testing.T) {
	mgr := NewManager(newFakeStore(), newFakeStore())
	got, err := mgr.Layout(context.Background(), "2025-01")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty layout, got %v", got)
	}
}

func TestAddResourceSnapsAndNormalizes(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr := NewManager(store, store)

	r, err := mgr.AddResource(ctx, "2025-02", 750, 49, 10)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if r.Capacity != core.DefaultCapacity {
		t.Fatalf("unlisted capacity should normalize, got %d", r.Capacity)
	}
	if r.ID == "" {
		t.Fatal("expected generated id")
	}
	if r.Pos.X != 40 || r.Pos.Y != 60 || r.ZoneID != "z0" {
		t.Fatalf("unexpected placement: %+v", r)
	}
	if len(store.layouts["2025-02"]) != 1 {
		t.Fatal("snapshot not persisted after add")
	}
}

func TestAddResourceOutsideZonesIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr := NewManager(store, store)

	_, err := mgr.AddResource(ctx, "2025-02", 10, 500, 999)
	if !errors.Is(err, core.ErrOutsideZones) {
		t.Fatalf("expected ErrOutsideZones, got %v", err)
	}
	if len(store.layouts) != 0 {
		t.Fatal("rejected drop must not store anything")
	}
}

func TestDeleteResourceScopedToMonth(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.layouts["2025-01"] = []core.Reactor{seedReactor("r1", 100), seedReactor("r2", 200)}
	store.layouts["2025-02"] = []core.Reactor{seedReactor("r1", 100), seedReactor("r2", 200)}
	mgr := NewManager(store, store)

	if err := mgr.DeleteResource(ctx, "2025-02", "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.layouts["2025-02"]) != 1 || store.layouts["2025-02"][0].ID != "r2" {
		t.Fatalf("unexpected February snapshot: %v", store.layouts["2025-02"])
	}
	if len(store.layouts["2025-01"]) != 2 {
		t.Fatal("January snapshot should be unaffected")
	}

	err := mgr.DeleteResource(ctx, "2025-02", "missing")
	if !errors.Is(err, core.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestMoveUnknownResource(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, store)
	_, err := mgr.PlaceResource(context.Background(), "2025-01", "ghost", 10, 10)
	if !errors.Is(err, core.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}
