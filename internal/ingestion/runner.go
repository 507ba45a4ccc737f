package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/observability"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// Runner fans acquisition over the watch universe: per watch, capture a
// listing scrape, refresh the day's snapshot through the history cache,
// sample eBay activity, then persist the merged history.
type Runner struct {
	snapshots    SnapshotSource
	activity     ActivitySource
	listings     ListingSource
	cache        *HistoryCache
	observations storage.ObservationStore
	events       storage.ListingEventStore
	workers      int
	logger       *log.Logger
	now          func() time.Time
}

// RunnerOptions contains configuration for creating a Runner. Snapshots,
// Cache and Observations are required; Activity and Listings degrade to
// skipped steps when nil.
type RunnerOptions struct {
	Snapshots    SnapshotSource
	Activity     ActivitySource           // optional eBay sampler
	Listings     ListingSource            // optional scrape event capture
	Cache        *HistoryCache
	Observations storage.ObservationStore
	Events       storage.ListingEventStore // required when Listings is set
	Workers      int                       // default 4
	Logger       *log.Logger
	Now          func() time.Time // test hook
}

// NewRunner creates an acquisition runner.
func NewRunner(opts RunnerOptions) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[ingestion] ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		snapshots:    opts.Snapshots,
		activity:     opts.Activity,
		listings:     opts.Listings,
		cache:        opts.Cache,
		observations: opts.Observations,
		events:       opts.Events,
		workers:      workers,
		logger:       logger,
		now:          now,
	}
}

// Stats summarizes one acquisition run.
type Stats struct {
	Watches int // universe entries processed
	Fetched int // watches that yielded at least one history row
	Failed  int // watches that yielded nothing
	Rows    int // observation rows persisted
	Events  int // listing events persisted
}

type acquireResult struct {
	rows   []domain.Observation
	events int
}

// Run acquires data for every watch in the universe and persists the merged
// history. Per-watch failures are logged and tolerated; the run fails only
// when no watch yields any data.
func (r *Runner) Run(ctx context.Context, universe []domain.WatchRef) (Stats, error) {
	stats := Stats{Watches: len(universe)}
	if len(universe) == 0 {
		r.logger.Println("empty universe, nothing to acquire")
		return stats, nil
	}

	now := r.now()
	day := domain.Day(now)
	r.logger.Printf("acquiring data for %d watches (day %s)", len(universe), day.Format("2006-01-02"))

	results := make([]acquireResult, len(universe))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, w := range universe {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.acquireOne(gctx, w.Key(), day, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	var all []domain.Observation
	for _, res := range results {
		if len(res.rows) > 0 {
			stats.Fetched++
		} else {
			stats.Failed++
		}
		all = append(all, res.rows...)
		stats.Events += res.events
	}
	if len(all) == 0 {
		return stats, errors.New("no market data acquired for any watch")
	}

	if err := r.observations.InsertBulk(ctx, all); err != nil {
		return stats, fmt.Errorf("store observations: %w", err)
	}
	stats.Rows = len(all)
	observability.RecordObservationsStored(stats.Rows)
	observability.RecordAcquisition()

	r.logger.Printf("acquired %d/%d watches: %d rows, %d listing events",
		stats.Fetched, stats.Watches, stats.Rows, stats.Events)
	return stats, nil
}

// acquireOne fetches one watch's data, returning the merged history rows and
// the number of listing events captured. Failures are logged, never fatal.
func (r *Runner) acquireOne(ctx context.Context, key domain.EntityKey, day, now time.Time) acquireResult {
	var res acquireResult

	// Listing scrape first: its events can still back an observation when
	// the snapshot source fails.
	if r.listings != nil && r.events != nil {
		if _, events, err := r.listings.Listings(ctx, key, now); err != nil {
			r.logger.Printf("listing scrape %s %s failed: %v", key.Brand, key.Reference, err)
		} else if len(events) > 0 {
			n, err := r.events.InsertBulk(ctx, events)
			if err != nil {
				r.logger.Printf("store listing events %s %s: %v", key.Brand, key.Reference, err)
			} else {
				res.events = n
			}
		}
	}

	history, err := r.cache.History(ctx, key, func(ctx context.Context) ([]domain.Observation, error) {
		snap, err := r.snapshots.Snapshot(ctx, key, day)
		if err != nil {
			return nil, err
		}
		return []domain.Observation{snap}, nil
	})
	if err != nil {
		r.logger.Printf("snapshot %s %s failed: %v", key.Brand, key.Reference, err)
		history = r.eventDerivedHistory(ctx, key)
		if len(history) > 0 {
			r.logger.Printf("synthesized %d observation(s) for %s %s from listing events",
				len(history), key.Brand, key.Reference)
		}
	}
	if len(history) == 0 {
		return res
	}

	// eBay activity joins today's row only; history keeps its gaps.
	if r.activity != nil {
		if count, err := r.activity.ActiveCount(ctx, key); err != nil {
			r.logger.Printf("ebay activity %s %s failed: %v", key.Brand, key.Reference, err)
		} else {
			v := float64(count)
			for i := range history {
				if history[i].Date.Equal(day) {
					history[i].EbayActivity = &v
				}
			}
		}
	}

	res.rows = history
	return res
}

// eventDerivedHistory rebuilds a watch's daily series from the listing event
// log, the fallback when no snapshot source covers it.
func (r *Runner) eventDerivedHistory(ctx context.Context, key domain.EntityKey) []domain.Observation {
	if r.events == nil {
		return nil
	}
	events, err := r.events.GetByEntitySince(ctx, key, time.Time{})
	if err != nil || len(events) == 0 {
		return nil
	}
	return AggregateDaily(events)
}
