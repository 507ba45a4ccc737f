// Package ingestion acquires per-watch market data: point-in-time snapshots
// from market APIs and scrapes, eBay activity counts, and a live listing
// event feed. Daily history accumulates in a local cache across runs; one
// snapshot per day per watch is enough to build the series the screen
// consumes.
package ingestion

import (
	"context"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// SnapshotSource produces one market snapshot per watch per run day.
type SnapshotSource interface {
	// Snapshot fetches the watch's current market state as an observation
	// dated day. Fields the source cannot provide stay nil.
	Snapshot(ctx context.Context, key domain.EntityKey, day time.Time) (domain.Observation, error)
}

// ActivitySource counts current marketplace activity for a watch.
type ActivitySource interface {
	// ActiveCount returns the number of live marketplace listings matching
	// the watch.
	ActiveCount(ctx context.Context, key domain.EntityKey) (int64, error)
}

// ListingSource captures a point-in-time listing scrape: a same-day
// observation plus one event per sighted listing.
type ListingSource interface {
	Listings(ctx context.Context, key domain.EntityKey, now time.Time) (domain.Observation, []domain.ListingEvent, error)
}
