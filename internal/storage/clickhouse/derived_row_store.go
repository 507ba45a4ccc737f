package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// DerivedRowStore implements storage.DerivedRowStore using ClickHouse.
type DerivedRowStore struct {
	conn *Conn
}

// NewDerivedRowStore creates a new DerivedRowStore.
func NewDerivedRowStore(conn *Conn) *DerivedRowStore {
	return &DerivedRowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DerivedRowStore = (*DerivedRowStore)(nil)

// InsertBulk adds or replaces derived rows keyed by (brand, reference, date).
func (s *DerivedRowStore) InsertBulk(ctx context.Context, rows []domain.DerivedRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO watch_derived (
			date, brand, reference, median_price, listings_active, dom_median, ebay_activity,
			pct_7, pct_14, pct_30, z90, supply_delta_14, dom_delta_14, ebay_mom_30
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.Date, r.Brand, r.Reference,
			r.MedianPrice, r.ListingsActive, r.DOMMedian, r.EbayActivity,
			r.Pct7, r.Pct14, r.Pct30, r.Z90,
			r.SupplyDelta14, r.DOMDelta14, r.EbayMom30,
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

// GetByEntity retrieves one entity's derived rows ordered by date ASC.
func (s *DerivedRowStore) GetByEntity(ctx context.Context, key domain.EntityKey) ([]domain.DerivedRow, error) {
	query := `
		SELECT date, brand, reference, median_price, listings_active, dom_median, ebay_activity,
		       pct_7, pct_14, pct_30, z90, supply_delta_14, dom_delta_14, ebay_mom_30
		FROM watch_derived FINAL
		WHERE brand = ? AND reference = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, key.Brand, key.Reference)
	if err != nil {
		return nil, fmt.Errorf("query derived rows by entity: %w", err)
	}
	defer rows.Close()

	return scanDerivedRows(rows)
}

// GetAll retrieves every derived row ordered by (brand, reference, date).
func (s *DerivedRowStore) GetAll(ctx context.Context) ([]domain.DerivedRow, error) {
	query := `
		SELECT date, brand, reference, median_price, listings_active, dom_median, ebay_activity,
		       pct_7, pct_14, pct_30, z90, supply_delta_14, dom_delta_14, ebay_mom_30
		FROM watch_derived FINAL
		ORDER BY brand ASC, reference ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all derived rows: %w", err)
	}
	defer rows.Close()

	return scanDerivedRows(rows)
}

func scanDerivedRows(rows driver.Rows) ([]domain.DerivedRow, error) {
	var out []domain.DerivedRow
	for rows.Next() {
		var r domain.DerivedRow
		err := rows.Scan(
			&r.Date, &r.Brand, &r.Reference,
			&r.MedianPrice, &r.ListingsActive, &r.DOMMedian, &r.EbayActivity,
			&r.Pct7, &r.Pct14, &r.Pct30, &r.Z90,
			&r.SupplyDelta14, &r.DOMDelta14, &r.EbayMom30,
		)
		if err != nil {
			return nil, fmt.Errorf("scan derived row: %w", err)
		}
		r.Date = domain.Day(r.Date)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate derived rows: %w", err)
	}
	return out, nil
}
