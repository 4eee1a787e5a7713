// Package scheduling is the facade the rest of the application consumes:
// month views assembling resources, their logs and aggregates, plus the edit
// operations that mutate a month's schedule.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"reactorops/internal/core"
	"reactorops/internal/layout"
	"reactorops/internal/registry"
)

// MonthView is the read surface handed to presentation layers.
type MonthView struct {
	Month     core.Month         `json:"month"`
	Resources []core.Reactor     `json:"resources"`
	Zones     []core.Zone        `json:"zones"`
	Logs      []core.ResourceLog `json:"logs"`
	Summary   core.MonthSummary  `json:"summary"`
}

// Service coordinates the layout manager, log store and category registry
// for a given month. Writes are serialized per month key so rapid sequential
// edits cannot lose updates; reads are deduplicated with singleflight.
type Service struct {
	layouts  *layout.Manager
	logs     LogStore
	zones    ZoneStore
	registry *registry.Registry

	mu         sync.Mutex
	monthLocks map[core.Month]*sync.Mutex
	flight     singleflight.Group
}

func NewService(layouts *layout.Manager, logs LogStore, zones ZoneStore, reg *registry.Registry) *Service {
	return &Service{
		layouts:    layouts,
		logs:       logs,
		zones:      zones,
		registry:   reg,
		monthLocks: map[core.Month]*sync.Mutex{},
	}
}

func (s *Service) lockMonth(month core.Month) func() {
	s.mu.Lock()
	l, ok := s.monthLocks[month]
	if !ok {
		l = &sync.Mutex{}
		s.monthLocks[month] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// MonthView assembles the full scheduling view for a month: the layout
// (copy-forward applied), each resource's log with derived utilization,
// status and revenue, and the aggregated summary. Logs whose resource is no
// longer in the month's snapshot are orphans: they are excluded from the
// view and the aggregation, and reported as an invariant violation.
func (s *Service) MonthView(ctx context.Context, month core.Month) (MonthView, error) {
	v, err, _ := s.flight.Do(string(month), func() (any, error) {
		return s.buildMonthView(ctx, month)
	})
	if err != nil {
		return MonthView{}, err
	}
	return v.(MonthView), nil
}

func (s *Service) buildMonthView(ctx context.Context, month core.Month) (MonthView, error) {
	resources, err := s.layouts.Layout(ctx, month)
	if err != nil {
		return MonthView{}, fmt.Errorf("month layout: %w", err)
	}
	zones, err := s.zones.Zones(ctx)
	if err != nil {
		return MonthView{}, fmt.Errorf("zones: %w", err)
	}
	stored, err := s.logs.LogsForMonth(ctx, month)
	if err != nil {
		return MonthView{}, fmt.Errorf("logs for %s: %w", month, err)
	}

	byResource := make(map[string]core.ResourceLog, len(stored))
	for _, l := range stored {
		byResource[l.ResourceID] = l
	}
	names := make(map[string]string, len(resources))
	inLayout := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		names[r.ID] = r.Name
		inLayout[r.ID] = struct{}{}
	}

	for _, l := range stored {
		if _, ok := inLayout[l.ResourceID]; !ok {
			slog.WarnContext(ctx, "Orphaned resource log excluded from month view",
				"month", string(month), "resource_id", l.ResourceID)
		}
	}

	logs := make([]core.ResourceLog, 0, len(resources))
	for _, r := range resources {
		l, ok := byResource[r.ID]
		if !ok {
			l = core.ResourceLog{ResourceID: r.ID, Month: month}
		}
		logs = append(logs, s.derive(ctx, l))
	}

	return MonthView{
		Month:     month,
		Resources: resources,
		Zones:     zones,
		Logs:      logs,
		Summary:   core.AggregateNamed(logs, names),
	}, nil
}

// derive recomputes the display fields from the stored batches. Derived
// fields are never read back from storage as truth.
func (s *Service) derive(ctx context.Context, l core.ResourceLog) core.ResourceLog {
	raw := core.Utilization(l.Batches, l.Month)
	if !core.UtilizationInRange(raw) {
		// A defect, not a user error. Surface it loudly; clamping would
		// hide a merge bug.
		slog.ErrorContext(ctx, "Utilization invariant violated",
			"month", string(l.Month),
			"resource_id", l.ResourceID,
			"utilization_pct", raw)
	}
	l.UtilizationPct = core.Round1(raw)
	l.Status = core.DeriveStatus(l.StatusOverride, raw)
	var revenue float64
	for _, b := range l.Batches {
		revenue += core.BatchRevenue(b)
	}
	l.TotalRevenue = revenue
	return l
}

// MoveResource commits a drag-release of an existing reactor. Drops outside
// every zone band return core.ErrOutsideZones and change nothing.
func (s *Service) MoveResource(ctx context.Context, month core.Month, resourceID string, px, py int) (core.Position, error) {
	defer s.lockMonth(month)()
	return s.layouts.PlaceResource(ctx, month, resourceID, px, py)
}

// AddResource commits a palette drop of a new reactor.
func (s *Service) AddResource(ctx context.Context, month core.Month, capacity core.CapacityClass, px, py int) (core.Reactor, error) {
	defer s.lockMonth(month)()
	return s.layouts.AddResource(ctx, month, capacity, px, py)
}

// DeleteResource removes the reactor from the month's snapshot entirely,
// along with its log for that month. Other months keep their own snapshots
// and logs.
func (s *Service) DeleteResource(ctx context.Context, month core.Month, resourceID string) error {
	defer s.lockMonth(month)()
	if err := s.layouts.DeleteResource(ctx, month, resourceID); err != nil {
		return err
	}
	if err := s.logs.DeleteLog(ctx, month, resourceID); err != nil {
		return fmt.Errorf("delete log %s/%s: %w", month, resourceID, err)
	}
	return nil
}

// SaveBatches persists the full batch list for one (resource, month) pair,
// records any new custom category tags, and returns the log with derived
// fields recomputed. The category sync is best-effort: its failure is logged
// and never fails the save.
func (s *Service) SaveBatches(ctx context.Context, month core.Month, resourceID string, batches []core.Batch, override core.Status) (core.ResourceLog, error) {
	defer s.lockMonth(month)()

	resources, err := s.layouts.Layout(ctx, month)
	if err != nil {
		return core.ResourceLog{}, fmt.Errorf("month layout: %w", err)
	}
	known := false
	for _, r := range resources {
		if r.ID == resourceID {
			known = true
			break
		}
	}
	if !known {
		return core.ResourceLog{}, fmt.Errorf("%w: %s in %s", core.ErrResourceNotFound, resourceID, month)
	}
	// The resource may only exist as an unmaterialized copy-forward view;
	// persist the snapshot so the log never outlives its resource.
	if err := s.layouts.SetLayout(ctx, month, resources); err != nil {
		return core.ResourceLog{}, err
	}

	normalized := make([]core.Batch, 0, len(batches))
	for _, b := range batches {
		b = b.Normalize()
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		normalized = append(normalized, b)
	}
	if override != core.StatusMaintenance {
		// Only an explicit maintenance override is stored; anything else
		// derives from utilization.
		override = ""
	}

	l := core.ResourceLog{
		ResourceID:     resourceID,
		Month:          month,
		Batches:        normalized,
		StatusOverride: override,
	}
	if err := s.logs.PutLog(ctx, l); err != nil {
		return core.ResourceLog{}, fmt.Errorf("put log %s/%s: %w", month, resourceID, err)
	}

	if s.registry != nil {
		if err := s.registry.RecordTags(ctx, []core.ResourceLog{l}); err != nil {
			slog.WarnContext(ctx, "Category sync enqueue failed, save kept",
				"month", string(month), "resource_id", resourceID, "error", err)
		}
	}
	return s.derive(ctx, l), nil
}

// Zones returns the process-wide zone list.
func (s *Service) Zones(ctx context.Context) ([]core.Zone, error) {
	return s.zones.Zones(ctx)
}

// AddZone appends a new lane below the existing ones. Existing resource
// positions never shift.
func (s *Service) AddZone(ctx context.Context, name string) (core.Zone, error) {
	zones, err := s.zones.Zones(ctx)
	if err != nil {
		return core.Zone{}, fmt.Errorf("zones: %w", err)
	}
	row := 0
	for _, z := range zones {
		if z.Row >= row {
			row = z.Row + 1
		}
	}
	z := core.Zone{ID: uuid.NewString(), Name: name, Row: row}
	if err := s.zones.AddZone(ctx, z); err != nil {
		return core.Zone{}, fmt.Errorf("add zone: %w", err)
	}
	return z, nil
}
