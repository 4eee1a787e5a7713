package layout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"reactorops/internal/core"
)

// SnapshotStore persists month-keyed layout snapshots.
type SnapshotStore interface {
	// GetLayout returns the stored snapshot for month; found is false when
	// no snapshot has been stored for that month yet.
	GetLayout(ctx context.Context, month core.Month) (resources []core.Reactor, found bool, err error)
	PutLayout(ctx context.Context, month core.Month, resources []core.Reactor) error
	// LayoutMonths lists every month that has a stored snapshot.
	LayoutMonths(ctx context.Context) ([]core.Month, error)
}

// ZoneSource provides the process-wide zone list.
type ZoneSource interface {
	Zones(ctx context.Context) ([]core.Zone, error)
}

// Manager resolves a month's layout with copy-forward defaulting and applies
// placement edits. Every snapshot handed out or stored is an independent
// copy: mutating one month must never reach another month's stored state.
type Manager struct {
	snaps SnapshotStore
	zones ZoneSource
}

func NewManager(snaps SnapshotStore, zones ZoneSource) *Manager {
	return &Manager{snaps: snaps, zones: zones}
}

// Layout returns the resources for month. If the month has no stored
// snapshot the nearest prior month's snapshot is deep-copied as the initial
// state; the copy is not persisted until the first edit, so browsing future
// months does not materialize snapshots. With no prior month the layout is
// empty.
func (m *Manager) Layout(ctx context.Context, month core.Month) ([]core.Reactor, error) {
	resources, found, err := m.snaps.GetLayout(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("get layout %s: %w", month, err)
	}
	if found {
		return core.CloneReactors(resources), nil
	}
	return m.copyForward(ctx, month)
}

func (m *Manager) copyForward(ctx context.Context, month core.Month) ([]core.Reactor, error) {
	months, err := m.snaps.LayoutMonths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list layout months: %w", err)
	}
	prior, ok := NearestPrior(months, month)
	if !ok {
		return nil, nil
	}
	resources, found, err := m.snaps.GetLayout(ctx, prior)
	if err != nil {
		return nil, fmt.Errorf("get prior layout %s: %w", prior, err)
	}
	if !found {
		slog.ErrorContext(ctx, "Layout month listed but snapshot missing",
			"month", string(prior))
		return nil, nil
	}
	slog.DebugContext(ctx, "Layout copied forward",
		"from", string(prior), "to", string(month), "resources", len(resources))
	return core.CloneReactors(resources), nil
}

// SetLayout replaces month's snapshot wholesale.
func (m *Manager) SetLayout(ctx context.Context, month core.Month, resources []core.Reactor) error {
	if err := m.snaps.PutLayout(ctx, month, core.CloneReactors(resources)); err != nil {
		return fmt.Errorf("put layout %s: %w", month, err)
	}
	return nil
}

// PlaceResource moves an existing resource to the zone and grid position
// resolved from a raw pixel drop point. Drops outside every zone band are
// rejected with core.ErrOutsideZones and nothing is stored.
func (m *Manager) PlaceResource(ctx context.Context, month core.Month, resourceID string, px, py int) (core.Position, error) {
	placement, err := m.resolveDrop(ctx, px, py)
	if err != nil {
		return core.Position{}, err
	}
	resources, err := m.Layout(ctx, month)
	if err != nil {
		return core.Position{}, err
	}
	idx := -1
	for i := range resources {
		if resources[i].ID == resourceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.Position{}, fmt.Errorf("%w: %s in %s", core.ErrResourceNotFound, resourceID, month)
	}
	resources[idx].ZoneID = placement.ZoneID
	resources[idx].Pos = placement.Pos
	if err := m.SetLayout(ctx, month, resources); err != nil {
		return core.Position{}, err
	}
	return placement.Pos, nil
}

// AddResource creates a reactor of the given capacity class at a drop point
// and stores it in month's snapshot.
func (m *Manager) AddResource(ctx context.Context, month core.Month, capacity core.CapacityClass, px, py int) (core.Reactor, error) {
	placement, err := m.resolveDrop(ctx, px, py)
	if err != nil {
		return core.Reactor{}, err
	}
	capacity = capacity.Normalize()
	r := core.Reactor{
		ID:       uuid.NewString(),
		Name:     fmt.Sprintf("%dL Reactor", capacity),
		Capacity: capacity,
		ZoneID:   placement.ZoneID,
		Pos:      placement.Pos,
	}
	resources, err := m.Layout(ctx, month)
	if err != nil {
		return core.Reactor{}, err
	}
	resources = append(resources, r)
	if err := m.SetLayout(ctx, month, resources); err != nil {
		return core.Reactor{}, err
	}
	return r, nil
}

// DeleteResource removes a resource from month's snapshot only. Prior
// months that already stored their own snapshot are unaffected.
func (m *Manager) DeleteResource(ctx context.Context, month core.Month, resourceID string) error {
	resources, err := m.Layout(ctx, month)
	if err != nil {
		return err
	}
	kept := resources[:0]
	removed := false
	for _, r := range resources {
		if r.ID == resourceID {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	if !removed {
		return fmt.Errorf("%w: %s in %s", core.ErrResourceNotFound, resourceID, month)
	}
	return m.SetLayout(ctx, month, kept)
}

func (m *Manager) resolveDrop(ctx context.Context, px, py int) (Placement, error) {
	zones, err := m.zones.Zones(ctx)
	if err != nil {
		return Placement{}, fmt.Errorf("list zones: %w", err)
	}
	placement, ok := Snap(zones, px, py)
	if !ok {
		return Placement{}, core.ErrOutsideZones
	}
	return placement, nil
}
