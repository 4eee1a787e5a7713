package scheduling

import (
	"context"

	"reactorops/internal/core"
)

// Ports for the persistence the facade drives. Layout snapshots, resource
// logs and zones are stored under independent keys and evolve independently.
type (
	LogStore interface {
		LogsForMonth(ctx context.Context, month core.Month) ([]core.ResourceLog, error)
		GetLog(ctx context.Context, month core.Month, resourceID string) (log core.ResourceLog, found bool, err error)
		PutLog(ctx context.Context, log core.ResourceLog) error
		DeleteLog(ctx context.Context, month core.Month, resourceID string) error
	}

	ZoneStore interface {
		Zones(ctx context.Context) ([]core.Zone, error)
		AddZone(ctx context.Context, z core.Zone) error
	}
)
