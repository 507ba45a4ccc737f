package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// ListingEventStore is an in-memory implementation of storage.ListingEventStore.
type ListingEventStore struct {
	mu   sync.RWMutex
	data map[string]domain.ListingEvent // keyed by event_id
}

// NewListingEventStore creates a new in-memory listing event store.
func NewListingEventStore() *ListingEventStore {
	return &ListingEventStore{
		data: make(map[string]domain.ListingEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *ListingEventStore) Insert(_ context.Context, e domain.ListingEvent) error {
	if e.EventID == "" || e.Brand == "" || e.Reference == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[e.EventID] = e
	return nil
}

// InsertBulk adds multiple events, skipping those whose event_id already
// exists, and returns the number actually inserted.
func (s *ListingEventStore) InsertBulk(_ context.Context, events []domain.ListingEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, e := range events {
		if e.EventID == "" || e.Brand == "" || e.Reference == "" {
			return inserted, storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			continue
		}
		s.data[e.EventID] = e
		inserted++
	}
	return inserted, nil
}

// GetByEntitySince retrieves an entity's events observed on or after the
// given time, ordered by observed_at ASC.
func (s *ListingEventStore) GetByEntitySince(_ context.Context, key domain.EntityKey, since time.Time) ([]domain.ListingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.ListingEvent
	for _, e := range s.data {
		if e.Brand == key.Brand && e.Reference == key.Reference && !e.ObservedAt.Before(since) {
			result = append(result, e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.Before(result[j].ObservedAt)
		}
		return result[i].EventID < result[j].EventID
	})
	return result, nil
}

var _ storage.ListingEventStore = (*ListingEventStore)(nil)
