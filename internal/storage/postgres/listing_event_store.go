package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// ListingEventStore implements storage.ListingEventStore using PostgreSQL.
type ListingEventStore struct {
	pool *Pool
}

// NewListingEventStore creates a new ListingEventStore.
func NewListingEventStore(pool *Pool) *ListingEventStore {
	return &ListingEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingEventStore = (*ListingEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *ListingEventStore) Insert(ctx context.Context, e domain.ListingEvent) error {
	query := `
		INSERT INTO listing_events (
			event_id, marketplace, brand, reference, listing_id, price, currency, status, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		e.EventID,
		e.Marketplace,
		e.Brand,
		e.Reference,
		e.ListingID,
		e.Price,
		e.Currency,
		string(e.Status),
		e.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert listing event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events, skipping ones whose event_id already
// exists, and returns the number actually inserted. The live feed redelivers
// events after reconnects; ON CONFLICT DO NOTHING absorbs those replays.
func (s *ListingEventStore) InsertBulk(ctx context.Context, events []domain.ListingEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO listing_events (
			event_id, marketplace, brand, reference, listing_id, price, currency, status, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`

	inserted := 0
	for _, e := range events {
		tag, err := tx.Exec(ctx, query,
			e.EventID,
			e.Marketplace,
			e.Brand,
			e.Reference,
			e.ListingID,
			e.Price,
			e.Currency,
			string(e.Status),
			e.ObservedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert listing event in bulk: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// GetByEntitySince retrieves an entity's events observed on or after since,
// ordered by observed_at ASC.
func (s *ListingEventStore) GetByEntitySince(ctx context.Context, key domain.EntityKey, since time.Time) ([]domain.ListingEvent, error) {
	query := `
		SELECT event_id, marketplace, brand, reference, listing_id, price, currency, status, observed_at
		FROM listing_events
		WHERE brand = $1 AND reference = $2 AND observed_at >= $3
		ORDER BY observed_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, key.Brand, key.Reference, since)
	if err != nil {
		return nil, fmt.Errorf("get listing events by entity: %w", err)
	}
	defer rows.Close()

	return scanListingEvents(rows)
}

func scanListingEvents(rows pgx.Rows) ([]domain.ListingEvent, error) {
	var events []domain.ListingEvent
	for rows.Next() {
		var e domain.ListingEvent
		var status string
		err := rows.Scan(
			&e.EventID,
			&e.Marketplace,
			&e.Brand,
			&e.Reference,
			&e.ListingID,
			&e.Price,
			&e.Currency,
			&status,
			&e.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan listing event row: %w", err)
		}
		e.Status = domain.ListingStatus(status)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing event rows: %w", err)
	}
	return events, nil
}
