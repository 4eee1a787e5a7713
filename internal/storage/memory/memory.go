// Package memory is an in-memory implementation of the scheduling storage
// ports, used as the default backend for local development and in tests.
package memory

import (
	"context"
	"sync"

	"reactorops/internal/core"
)

type logKey struct {
	month      core.Month
	resourceID string
}

type Store struct {
	mu         sync.Mutex
	layouts    map[core.Month][]core.Reactor
	logs       map[logKey]core.ResourceLog
	zones      []core.Zone
	categories []string
	catSet     map[string]struct{}
	queue      []string
}

func New(zones ...core.Zone) *Store {
	return &Store{
		layouts: map[core.Month][]core.Reactor{},
		logs:    map[logKey]core.ResourceLog{},
		zones:   zones,
		catSet:  map[string]struct{}{},
	}
}

// NewWithDefaultZones seeds the two-lane layout used before any zone has
// been configured.
func NewWithDefaultZones() *Store {
	return New(
		core.Zone{ID: "zone-a", Name: "Hall A", Row: 0},
		core.Zone{ID: "zone-b", Name: "Hall B", Row: 1},
	)
}

func (s *Store) GetLayout(_ context.Context, month core.Month) ([]core.Reactor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.layouts[month]
	if !ok {
		return nil, false, nil
	}
	return core.CloneReactors(rs), true, nil
}

func (s *Store) PutLayout(_ context.Context, month core.Month, resources []core.Reactor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts[month] = core.CloneReactors(resources)
	return nil
}

func (s *Store) LayoutMonths(_ context.Context) ([]core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Month, 0, len(s.layouts))
	for m := range s.layouts {
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) LogsForMonth(_ context.Context, month core.Month) ([]core.ResourceLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ResourceLog
	for k, l := range s.logs {
		if k.month != month {
			continue
		}
		l.Batches = core.CloneBatches(l.Batches)
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) GetLog(_ context.Context, month core.Month, resourceID string) (core.ResourceLog, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[logKey{month, resourceID}]
	if !ok {
		return core.ResourceLog{}, false, nil
	}
	l.Batches = core.CloneBatches(l.Batches)
	return l, true, nil
}

func (s *Store) PutLog(_ context.Context, l core.ResourceLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.Batches = core.CloneBatches(l.Batches)
	// Derived fields are never stored.
	l.UtilizationPct = 0
	l.Status = ""
	l.TotalRevenue = 0
	s.logs[logKey{l.Month, l.ResourceID}] = l
	return nil
}

func (s *Store) DeleteLog(_ context.Context, month core.Month, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, logKey{month, resourceID})
	return nil
}

func (s *Store) Zones(_ context.Context) ([]core.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Zone, len(s.zones))
	copy(out, s.zones)
	return out, nil
}

func (s *Store) AddZone(_ context.Context, z core.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = append(s.zones, z)
	return nil
}

func (s *Store) UpsertCategories(_ context.Context, names []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var created []string
	for _, n := range names {
		if _, ok := s.catSet[n]; ok {
			continue
		}
		s.catSet[n] = struct{}{}
		s.categories = append(s.categories, n)
		created = append(created, n)
	}
	return created, nil
}

func (s *Store) ListCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *Store) EnqueueTagSync(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, names...)
	return nil
}

// QueuedTags returns the pending sync queue, for assertions.
func (s *Store) QueuedTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queue))
	copy(out, s.queue)
	return out
}
