package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// dateLayout is the canonical day encoding; string order equals date order.
const dateLayout = "2006-01-02"

var _ storage.HistoryStore = (*DB)(nil)

// GetHistory retrieves an entity's cached history ordered by date ASC, along
// with the time it was last refreshed. Returns storage.ErrNotFound if the
// entity has never been cached. A cached fetch that returned no rows yields
// an empty slice, not ErrNotFound.
func (d *DB) GetHistory(ctx context.Context, key domain.EntityKey) ([]domain.Observation, time.Time, error) {
	var updatedAt string
	err := d.sql.QueryRowContext(ctx,
		"SELECT updated_at FROM history_meta WHERE brand = ? AND reference = ?",
		key.Brand, key.Reference,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, storage.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query history meta: %w", err)
	}
	refreshed, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse history meta updated_at: %w", err)
	}

	rows, err := d.sql.QueryContext(ctx, `
		SELECT date, median_price, listings_active, dom_median, ebay_activity
		FROM history
		WHERE brand = ? AND reference = ?
		ORDER BY date ASC`,
		key.Brand, key.Reference,
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []domain.Observation{}
	for rows.Next() {
		o := domain.Observation{Brand: key.Brand, Reference: key.Reference}
		var date string
		if err := rows.Scan(&date, &o.MedianPrice, &o.ListingsActive, &o.DOMMedian, &o.EbayActivity); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan history row: %w", err)
		}
		if o.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, time.Time{}, fmt.Errorf("parse history date: %w", err)
		}
		history = append(history, o)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate history rows: %w", err)
	}
	return history, refreshed, nil
}

// PutHistory merges rows into the entity's cached history inside one
// transaction and marks the entity refreshed. Rows sharing a date replace
// the cached row; other cached dates are kept. An empty batch still updates
// the refresh time, so "fetched, nothing there" is cached too.
func (d *DB) PutHistory(ctx context.Context, key domain.EntityKey, observations []domain.Observation) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO history
			(brand, reference, date, median_price, listings_active, dom_median, ebay_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range observations {
		_, err := stmt.ExecContext(ctx,
			key.Brand, key.Reference, o.Date.Format(dateLayout),
			o.MedianPrice, o.ListingsActive, o.DOMMedian, o.EbayActivity,
		)
		if err != nil {
			return fmt.Errorf("insert history row: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO history_meta (brand, reference, updated_at) VALUES (?, ?, ?)",
		key.Brand, key.Reference, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("update history meta: %w", err)
	}
	return tx.Commit()
}

// Prune removes cached rows dated before cutoff and meta entries left with
// no rows, bounding cache growth across runs. Returns the number of history
// rows removed.
func (d *DB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM history WHERE date < ?", cutoff.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	removed, _ := res.RowsAffected()

	_, err = d.sql.ExecContext(ctx, `
		DELETE FROM history_meta
		WHERE (brand, reference) NOT IN (SELECT DISTINCT brand, reference FROM history)`)
	if err != nil {
		return removed, fmt.Errorf("prune history meta: %w", err)
	}
	return removed, nil
}
