package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// DerivedRowStore is an in-memory implementation of storage.DerivedRowStore.
type DerivedRowStore struct {
	mu   sync.RWMutex
	data map[string]domain.DerivedRow // keyed by (brand, reference, date)
}

// NewDerivedRowStore creates a new in-memory derived row store.
func NewDerivedRowStore() *DerivedRowStore {
	return &DerivedRowStore{
		data: make(map[string]domain.DerivedRow),
	}
}

// InsertBulk adds or replaces derived rows keyed by (brand, reference, date).
func (s *DerivedRowStore) InsertBulk(_ context.Context, rows []domain.DerivedRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if row.Brand == "" || row.Reference == "" {
			return storage.ErrInvalidInput
		}
		s.data[observationKey(row.Brand, row.Reference, row.Date)] = row
	}
	return nil
}

// GetByEntity retrieves one entity's derived rows ordered by date ASC.
func (s *DerivedRowStore) GetByEntity(_ context.Context, key domain.EntityKey) ([]domain.DerivedRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.DerivedRow
	for _, row := range s.data {
		if row.Brand == key.Brand && row.Reference == key.Reference {
			result = append(result, row)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetAll retrieves every derived row ordered by (brand, reference, date).
func (s *DerivedRowStore) GetAll(_ context.Context) ([]domain.DerivedRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DerivedRow, 0, len(s.data))
	for _, row := range s.data {
		result = append(result, row)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Brand != result[j].Brand {
			return result[i].Brand < result[j].Brand
		}
		if result[i].Reference != result[j].Reference {
			return result[i].Reference < result[j].Reference
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

var _ storage.DerivedRowStore = (*DerivedRowStore)(nil)
