// Package layout owns the spatial placement of reactors per month: grid
// snapping, zone row resolution, and the month-keyed snapshot lifecycle with
// copy-forward initialization.
package layout

import (
	"reactorops/internal/core"
)

const (
	// GridUnit is the horizontal snapping step in pixels.
	GridUnit = 20
	// RowHeight is the fixed height of a zone's row band in pixels.
	RowHeight = 120
)

// Placement is the result of snapping a raw drop point onto the grid.
type Placement struct {
	ZoneID string
	Pos    core.Position
}

// Snap maps a raw pixel drop point to a zone and a grid-snapped position.
// The target zone is the one whose row band contains py; outside all bands
// the placement is rejected and ok is false. The stored y becomes the
// vertical center of the zone's band and x is rounded to the nearest grid
// unit.
func Snap(zones []core.Zone, px, py int) (Placement, bool) {
	for _, z := range zones {
		top := z.Row * RowHeight
		if py < top || py >= top+RowHeight {
			continue
		}
		return Placement{
			ZoneID: z.ID,
			Pos: core.Position{
				X: snapX(px),
				Y: top + RowHeight/2,
			},
		}, true
	}
	return Placement{}, false
}

func snapX(px int) int {
	if px < 0 {
		px = 0
	}
	return (px + GridUnit/2) / GridUnit * GridUnit
}
