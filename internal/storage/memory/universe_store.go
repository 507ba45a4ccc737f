package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// UniverseStore is an in-memory implementation of storage.UniverseStore.
type UniverseStore struct {
	mu   sync.RWMutex
	data map[string]domain.WatchRef // keyed by (brand, reference)
}

// NewUniverseStore creates a new in-memory universe store.
func NewUniverseStore() *UniverseStore {
	return &UniverseStore{
		data: make(map[string]domain.WatchRef),
	}
}

func universeKey(brand, reference string) string {
	return fmt.Sprintf("%s|%s", brand, reference)
}

// Insert adds a new universe entry. Returns ErrDuplicateKey if (brand, reference) exists.
func (s *UniverseStore) Insert(_ context.Context, w domain.WatchRef) error {
	if w.Brand == "" || w.Reference == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := universeKey(w.Brand, w.Reference)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = w
	return nil
}

// Upsert adds or replaces a universe entry keyed by (brand, reference).
func (s *UniverseStore) Upsert(_ context.Context, w domain.WatchRef) error {
	if w.Brand == "" || w.Reference == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[universeKey(w.Brand, w.Reference)] = w
	return nil
}

// List retrieves all entries ordered by (brand, reference).
func (s *UniverseStore) List(_ context.Context) ([]domain.WatchRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.WatchRef, 0, len(s.data))
	for _, w := range s.data {
		result = append(result, w)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Brand != result[j].Brand {
			return result[i].Brand < result[j].Brand
		}
		return result[i].Reference < result[j].Reference
	})
	return result, nil
}

var _ storage.UniverseStore = (*UniverseStore)(nil)
