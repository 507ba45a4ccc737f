package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBulk adds or replaces daily observations. The ReplacingMergeTree
// collapses rows sharing (brand, reference, date) to the latest insert.
func (s *ObservationStore) InsertBulk(ctx context.Context, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO watch_observations (
			date, brand, reference, median_price, listings_active, dom_median, ebay_activity
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range observations {
		err = batch.Append(
			o.Date, o.Brand, o.Reference,
			o.MedianPrice, o.ListingsActive, o.DOMMedian, o.EbayActivity,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByEntity retrieves one entity's history ordered by date ASC.
func (s *ObservationStore) GetByEntity(ctx context.Context, key domain.EntityKey) ([]domain.Observation, error) {
	query := `
		SELECT date, brand, reference, median_price, listings_active, dom_median, ebay_activity
		FROM watch_observations FINAL
		WHERE brand = ? AND reference = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, key.Brand, key.Reference)
	if err != nil {
		return nil, fmt.Errorf("query observations by entity: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetSince retrieves all observations on or after the given day, ordered by
// (brand, reference, date).
func (s *ObservationStore) GetSince(ctx context.Context, since time.Time) ([]domain.Observation, error) {
	query := `
		SELECT date, brand, reference, median_price, listings_active, dom_median, ebay_activity
		FROM watch_observations FINAL
		WHERE date >= ?
		ORDER BY brand ASC, reference ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query observations since: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetAll retrieves every observation ordered by (brand, reference, date).
func (s *ObservationStore) GetAll(ctx context.Context) ([]domain.Observation, error) {
	query := `
		SELECT date, brand, reference, median_price, listings_active, dom_median, ebay_activity
		FROM watch_observations FINAL
		ORDER BY brand ASC, reference ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

func scanObservations(rows driver.Rows) ([]domain.Observation, error) {
	var observations []domain.Observation
	for rows.Next() {
		var o domain.Observation
		err := rows.Scan(
			&o.Date, &o.Brand, &o.Reference,
			&o.MedianPrice, &o.ListingsActive, &o.DOMMedian, &o.EbayActivity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		o.Date = domain.Day(o.Date)
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}
	return observations, nil
}
