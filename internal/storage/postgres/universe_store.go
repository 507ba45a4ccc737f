package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// UniverseStore implements storage.UniverseStore using PostgreSQL.
type UniverseStore struct {
	pool *Pool
}

// NewUniverseStore creates a new UniverseStore.
func NewUniverseStore(pool *Pool) *UniverseStore {
	return &UniverseStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UniverseStore = (*UniverseStore)(nil)

// Insert adds a new universe entry. Returns ErrDuplicateKey if
// (brand, reference) exists.
func (s *UniverseStore) Insert(ctx context.Context, w domain.WatchRef) error {
	query := `
		INSERT INTO watch_universe (brand, reference, nickname)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, w.Brand, w.Reference, w.Nickname)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert universe entry: %w", err)
	}
	return nil
}

// Upsert adds or replaces a universe entry keyed by (brand, reference).
func (s *UniverseStore) Upsert(ctx context.Context, w domain.WatchRef) error {
	query := `
		INSERT INTO watch_universe (brand, reference, nickname)
		VALUES ($1, $2, $3)
		ON CONFLICT (brand, reference) DO UPDATE SET nickname = EXCLUDED.nickname
	`

	if _, err := s.pool.Exec(ctx, query, w.Brand, w.Reference, w.Nickname); err != nil {
		return fmt.Errorf("upsert universe entry: %w", err)
	}
	return nil
}

// List retrieves all entries ordered by (brand, reference).
func (s *UniverseStore) List(ctx context.Context) ([]domain.WatchRef, error) {
	query := `
		SELECT brand, reference, nickname
		FROM watch_universe
		ORDER BY brand ASC, reference ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list universe: %w", err)
	}
	defer rows.Close()

	return scanWatchRefs(rows)
}

func scanWatchRefs(rows pgx.Rows) ([]domain.WatchRef, error) {
	var refs []domain.WatchRef
	for rows.Next() {
		var ref domain.WatchRef
		if err := rows.Scan(&ref.Brand, &ref.Reference, &ref.Nickname); err != nil {
			return nil, fmt.Errorf("scan universe row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate universe rows: %w", err)
	}
	return refs, nil
}
