// Package memory provides in-memory storage implementations for tests and
// single-run screens that do not need a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[string]domain.Observation // keyed by (brand, reference, date)
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[string]domain.Observation),
	}
}

// observationKey generates a unique key for a daily observation.
func observationKey(brand, reference string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", brand, reference, date.UTC().Format("2006-01-02"))
}

// InsertBulk adds or replaces daily observations. The latest write for a
// (brand, reference, date) wins.
func (s *ObservationStore) InsertBulk(_ context.Context, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obs := range observations {
		if obs.Brand == "" || obs.Reference == "" {
			return storage.ErrInvalidInput
		}
		s.data[observationKey(obs.Brand, obs.Reference, obs.Date)] = obs
	}
	return nil
}

// GetByEntity retrieves one entity's history ordered by date ASC.
func (s *ObservationStore) GetByEntity(_ context.Context, key domain.EntityKey) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Observation
	for _, obs := range s.data {
		if obs.Brand == key.Brand && obs.Reference == key.Reference {
			result = append(result, obs)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetSince retrieves all observations on or after the given day, ordered by
// (brand, reference, date).
func (s *ObservationStore) GetSince(_ context.Context, since time.Time) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Observation
	for _, obs := range s.data {
		if !obs.Date.Before(since) {
			result = append(result, obs)
		}
	}

	sortObservations(result)
	return result, nil
}

// GetAll retrieves every observation ordered by (brand, reference, date).
func (s *ObservationStore) GetAll(_ context.Context) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Observation, 0, len(s.data))
	for _, obs := range s.data {
		result = append(result, obs)
	}

	sortObservations(result)
	return result, nil
}

func sortObservations(observations []domain.Observation) {
	sort.Slice(observations, func(i, j int) bool {
		if observations[i].Brand != observations[j].Brand {
			return observations[i].Brand < observations[j].Brand
		}
		if observations[i].Reference != observations[j].Reference {
			return observations[i].Reference < observations[j].Reference
		}
		return observations[i].Date.Before(observations[j].Date)
	})
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
