package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusRunning     Status = "running"
	StatusMaintenance Status = "maintenance"
	StatusIdle        Status = "idle"
)

// DefaultCapacity is used for reactors whose capacity value is not in the
// known class set.
const DefaultCapacity CapacityClass = 500

var knownCapacities = []CapacityClass{100, 200, 500, 1000, 2000, 3000, 5000}

type (
	// Month is a calendar month key in "YYYY-MM" form. Keys order
	// chronologically under plain string comparison, which the layout
	// copy-forward search relies on.
	Month string

	// Status is the operational state shown for a reactor in a month.
	Status string

	// CapacityClass is the nominal reactor volume in liters.
	CapacityClass int

	Position struct {
		X int `json:"x"`
		Y int `json:"y"`
	}

	// Zone is a named horizontal lane in the layout grid. Zones are
	// process-wide: they are not snapshotted per month.
	Zone struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Row  int    `json:"row"`
	}

	// Reactor is a schedulable production resource. Its identity persists
	// across months when copied forward, but Pos is an independent copy per
	// month's snapshot.
	Reactor struct {
		ID       string        `json:"id"`
		Name     string        `json:"name"`
		Capacity CapacityClass `json:"capacity"`
		ZoneID   string        `json:"zoneId"`
		Pos      Position      `json:"pos"`
	}

	// Batch is one scheduled production run. Dates are kept as raw
	// "YYYY-MM-DD" strings: partially entered or malformed dates are
	// tolerated and simply contribute nothing to utilization.
	Batch struct {
		ID        string  `json:"id"`
		Category  string  `json:"category"`
		Name      string  `json:"name"`
		StartDate string  `json:"startDate"`
		EndDate   string  `json:"endDate"`
		Quantity  float64 `json:"quantity"`
		UnitPrice float64 `json:"unitPrice"`
	}

	// ResourceLog is the schedule of one reactor in one month. Only Batches
	// and StatusOverride are stored; UtilizationPct, Status and TotalRevenue
	// are derived on read and never persisted as the source of truth.
	ResourceLog struct {
		ResourceID     string  `json:"resourceId"`
		Month          Month   `json:"month"`
		Batches        []Batch `json:"batches"`
		StatusOverride Status  `json:"statusOverride,omitempty"`

		UtilizationPct float64 `json:"utilizationPct"`
		Status         Status  `json:"status"`
		TotalRevenue   float64 `json:"totalRevenue"`
	}
)

var (
	ErrInvalidMonth     = errors.New("invalid month key")
	ErrEmptyCategory    = errors.New("empty category tag")
	ErrResourceNotFound = errors.New("resource not found in month snapshot")
	ErrZoneNotFound     = errors.New("zone not found")
	ErrOutsideZones     = errors.New("drop point outside all zone bands")
)

// ParseMonth validates and normalizes a "YYYY-MM" month key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month(t.Format("2006-01")), nil
}

// MonthOf returns the month key containing t.
func MonthOf(t time.Time) Month {
	return Month(t.Format("2006-01"))
}

func (m Month) Valid() bool {
	_, err := time.Parse("2006-01", string(m))
	return err == nil
}

// Bounds returns the first and last calendar day of the month. The zero
// time pair is returned for invalid keys.
func (m Month) Bounds() (time.Time, time.Time) {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}, time.Time{}
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// Days returns the number of calendar days in the month, or 0 for invalid keys.
func (m Month) Days() int {
	first, last := m.Bounds()
	if first.IsZero() {
		return 0
	}
	return last.Day()
}

// ParseDate parses a batch date. ok is false for empty or malformed input;
// callers treat that as zero contribution, never as an error.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Normalize maps unlisted capacity values to the default class.
func (c CapacityClass) Normalize() CapacityClass {
	for _, k := range knownCapacities {
		if c == k {
			return c
		}
	}
	return DefaultCapacity
}

// CapacityClasses returns the known classes in ascending order.
func CapacityClasses() []CapacityClass {
	out := make([]CapacityClass, len(knownCapacities))
	copy(out, knownCapacities)
	return out
}

// DeriveStatus resolves the displayed status for a log. An explicit
// maintenance override always wins; otherwise the status follows utilization.
func DeriveStatus(override Status, utilizationPct float64) Status {
	if override == StatusMaintenance {
		return StatusMaintenance
	}
	if utilizationPct > 0 {
		return StatusRunning
	}
	return StatusIdle
}

// Normalize trims free-text fields and clamps negative numeric input to zero.
// Malformed entry degrades to zero value by policy, it is never rejected.
func (b Batch) Normalize() Batch {
	b.Category = strings.TrimSpace(b.Category)
	b.Name = strings.TrimSpace(b.Name)
	b.StartDate = strings.TrimSpace(b.StartDate)
	b.EndDate = strings.TrimSpace(b.EndDate)
	if b.Quantity < 0 {
		b.Quantity = 0
	}
	if b.UnitPrice < 0 {
		b.UnitPrice = 0
	}
	return b
}

// CloneReactors copies a month snapshot's resource list. Snapshot
// independence across months depends on every hand-off going through a copy.
func CloneReactors(in []Reactor) []Reactor {
	if in == nil {
		return nil
	}
	out := make([]Reactor, len(in))
	copy(out, in)
	return out
}

// CloneBatches copies a log's batch list.
func CloneBatches(in []Batch) []Batch {
	if in == nil {
		return nil
	}
	out := make([]Batch, len(in))
	copy(out, in)
	return out
}
