package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/observability"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// DefaultCacheTTL bounds how often a watch is refetched; within a day the
// sources return the same snapshot anyway.
const DefaultCacheTTL = 6 * time.Hour

// FetchFunc fetches fresh history rows for one watch.
type FetchFunc func(ctx context.Context) ([]domain.Observation, error)

// HistoryCache is a read-through cache of per-watch daily history. An
// in-memory layer fronts the persistent store; concurrent refreshes of the
// same watch collapse into one fetch. Fetched rows merge into the cached
// series, a same-date row replacing the cached one, so history accumulates
// across daily runs.
type HistoryCache struct {
	store  storage.HistoryStore
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[domain.EntityKey]cacheEntry
}

type cacheEntry struct {
	history   []domain.Observation
	refreshed time.Time
}

// CacheOption configures HistoryCache.
type CacheOption func(*HistoryCache)

// WithCacheTTL sets how long a refresh stays fresh.
func WithCacheTTL(d time.Duration) CacheOption {
	return func(c *HistoryCache) {
		c.ttl = d
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *log.Logger) CacheOption {
	return func(c *HistoryCache) {
		c.logger = l
	}
}

// WithCacheClock sets the time source, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *HistoryCache) {
		c.now = now
	}
}

// NewHistoryCache creates a cache over the given persistent store.
func NewHistoryCache(store storage.HistoryStore, opts ...CacheOption) *HistoryCache {
	c := &HistoryCache{
		store:   store,
		ttl:     DefaultCacheTTL,
		logger:  log.New(os.Stdout, "[cache] ", log.LstdFlags),
		now:     time.Now,
		entries: make(map[domain.EntityKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// History returns the watch's history ordered by date, refreshing it through
// fetch when missing or stale. When a refresh fails but older history is
// cached, the stale series is returned instead of the error; yesterday's
// series still screens.
func (c *HistoryCache) History(ctx context.Context, key domain.EntityKey, fetch FetchFunc) ([]domain.Observation, error) {
	if history, ok := c.fresh(key); ok {
		observability.RecordCacheHit()
		return history, nil
	}

	v, err, _ := c.group.Do(key.Brand+"\x00"+key.Reference, func() (interface{}, error) {
		return c.refresh(ctx, key, fetch)
	})
	if err != nil {
		return nil, err
	}
	return copyHistory(v.([]domain.Observation)), nil
}

// fresh returns the in-memory entry when it is within TTL.
func (c *HistoryCache) fresh(key domain.EntityKey) ([]domain.Observation, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.refreshed) >= c.ttl {
		return nil, false
	}
	return copyHistory(e.history), true
}

func (c *HistoryCache) refresh(ctx context.Context, key domain.EntityKey, fetch FetchFunc) ([]domain.Observation, error) {
	// The persistent layer may hold a fresh entry from a previous process.
	cached, refreshed, err := c.store.GetHistory(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("read history cache: %w", err)
	}
	hasStale := err == nil
	if hasStale && c.now().Sub(refreshed) < c.ttl {
		observability.RecordCacheHit()
		c.remember(key, cached, refreshed)
		return cached, nil
	}

	observability.RecordCacheMiss()
	rows, fetchErr := fetch(ctx)
	if fetchErr != nil {
		if hasStale {
			c.logger.Printf("refresh %s %s failed, using stale history (%d rows): %v",
				key.Brand, key.Reference, len(cached), fetchErr)
			c.remember(key, cached, refreshed)
			return cached, nil
		}
		return nil, fetchErr
	}

	if err := c.store.PutHistory(ctx, key, rows); err != nil {
		return nil, fmt.Errorf("write history cache: %w", err)
	}
	merged, refreshed, err := c.store.GetHistory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reload history cache: %w", err)
	}
	c.remember(key, merged, refreshed)
	return merged, nil
}

func (c *HistoryCache) remember(key domain.EntityKey, history []domain.Observation, refreshed time.Time) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{history: copyHistory(history), refreshed: refreshed}
	c.mu.Unlock()
}

// Prune drops cached rows dated before cutoff from both layers. Returns the
// number of persisted rows removed.
func (c *HistoryCache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	removed, err := c.store.Prune(ctx, cutoff)
	if err != nil {
		return removed, err
	}
	c.mu.Lock()
	c.entries = make(map[domain.EntityKey]cacheEntry)
	c.mu.Unlock()
	return removed, nil
}

// copyHistory shields the cached slice from caller mutation; callers attach
// run-scoped columns to the rows they get back.
func copyHistory(rows []domain.Observation) []domain.Observation {
	out := make([]domain.Observation, len(rows))
	copy(out, rows)
	return out
}
