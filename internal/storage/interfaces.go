package storage

import (
	"context"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// UniverseStore provides access to the tracked watch universe.
type UniverseStore interface {
	// Insert adds a new universe entry. Returns ErrDuplicateKey if
	// (brand, reference) exists.
	Insert(ctx context.Context, w domain.WatchRef) error

	// Upsert adds or replaces a universe entry keyed by (brand, reference).
	Upsert(ctx context.Context, w domain.WatchRef) error

	// List retrieves all entries ordered by (brand, reference).
	List(ctx context.Context) ([]domain.WatchRef, error)
}

// ObservationStore provides access to watch_observations storage.
// One row per (brand, reference, date); re-inserting a day replaces it,
// the latest write wins.
type ObservationStore interface {
	// InsertBulk adds or replaces daily observations.
	InsertBulk(ctx context.Context, observations []domain.Observation) error

	// GetByEntity retrieves one entity's history ordered by date ASC.
	GetByEntity(ctx context.Context, key domain.EntityKey) ([]domain.Observation, error)

	// GetSince retrieves all observations on or after the given day,
	// ordered by (brand, reference, date).
	GetSince(ctx context.Context, since time.Time) ([]domain.Observation, error)

	// GetAll retrieves every observation ordered by (brand, reference, date).
	GetAll(ctx context.Context) ([]domain.Observation, error)
}

// DerivedRowStore provides access to watch_derived storage.
type DerivedRowStore interface {
	// InsertBulk adds or replaces derived rows keyed by (brand, reference, date).
	InsertBulk(ctx context.Context, rows []domain.DerivedRow) error

	// GetByEntity retrieves one entity's derived rows ordered by date ASC.
	GetByEntity(ctx context.Context, key domain.EntityKey) ([]domain.DerivedRow, error)

	// GetAll retrieves every derived row ordered by (brand, reference, date).
	GetAll(ctx context.Context) ([]domain.DerivedRow, error)
}

// HistoryStore persists fetched per-entity daily history between runs so
// repeated screens do not refetch unchanged history from remote sources.
type HistoryStore interface {
	// GetHistory retrieves an entity's cached history ordered by date ASC,
	// along with the time it was last refreshed. Returns ErrNotFound if the
	// entity has never been cached.
	GetHistory(ctx context.Context, key domain.EntityKey) ([]domain.Observation, time.Time, error)

	// PutHistory merges rows into the entity's cached history and marks it
	// refreshed. Rows sharing a date replace the cached row; other cached
	// dates are kept.
	PutHistory(ctx context.Context, key domain.EntityKey, observations []domain.Observation) error

	// Prune removes cached rows dated before cutoff and meta entries left
	// with no rows. Returns the number of history rows removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListingEventStore provides access to listing_events storage.
type ListingEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e domain.ListingEvent) error

	// InsertBulk adds multiple events, silently skipping ones whose event_id
	// already exists, and returns the number actually inserted. Feed
	// reconnects redeliver events; the deterministic event_id dedupes them.
	InsertBulk(ctx context.Context, events []domain.ListingEvent) (int, error)

	// GetByEntitySince retrieves an entity's events observed on or after the
	// given time, ordered by observed_at ASC.
	GetByEntitySince(ctx context.Context, key domain.EntityKey, since time.Time) ([]domain.ListingEvent, error)
}
