// Package main provides acquisition-only runs: warm the history cache and
// the observation stores without screening or reporting.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/ingestion"
	"github.com/therealtplum/watch-heat/internal/storage"
	"github.com/therealtplum/watch-heat/internal/storage/clickhouse"
	"github.com/therealtplum/watch-heat/internal/storage/memory"
	"github.com/therealtplum/watch-heat/internal/storage/migrations"
	"github.com/therealtplum/watch-heat/internal/storage/postgres"
	"github.com/therealtplum/watch-heat/internal/storage/sqlite"
	"github.com/therealtplum/watch-heat/internal/universe"
)

func main() {
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	noPrune := flag.Bool("no-prune", false, "Keep cache rows older than the lookback window")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.FromEnv()
	if cfg.WatchChartsAPIKey == "" {
		fmt.Fprintln(os.Stderr, "Cannot proceed without WatchCharts data: set WATCHCHARTS_API_KEY")
		os.Exit(1)
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stdout, "[fetch] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling fetch...\n", sig)
		cancel()
	}()

	fmt.Println("=== Watch Heat Fetch ===")

	universeStore, observationStore, eventStore, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	refs, err := loadUniverse(ctx, cfg, universeStore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Universe: %d watches\n", len(refs))

	cacheDB, err := sqlite.Open(cfg.CachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history cache: %v\n", err)
		os.Exit(1)
	}
	defer cacheDB.Close()
	cache := ingestion.NewHistoryCache(cacheDB, ingestion.WithCacheLogger(logger))

	var activity ingestion.ActivitySource
	if cfg.EbayOAuthToken != "" {
		activity = ingestion.NewEbayClient(cfg.EbayOAuthToken)
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Snapshots:    ingestion.NewWatchChartsClient(cfg.WatchChartsAPIKey),
		Activity:     activity,
		Listings:     ingestion.NewChrono24Client(),
		Cache:        cache,
		Observations: observationStore,
		Events:       eventStore,
		Workers:      cfg.Screener.Workers,
		Logger:       logger,
	})

	stats, err := runner.Run(ctx, refs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}

	if !*noPrune {
		// Keep a month of slack past the lookback so window edges stay exact.
		cutoff := time.Now().UTC().AddDate(0, 0, -(cfg.Screener.LookbackDays + 30))
		pruned, err := cache.Prune(ctx, cutoff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cache prune failed: %v\n", err)
		} else if pruned > 0 {
			fmt.Printf("Pruned %d cache rows older than %s\n", pruned, cutoff.Format("2006-01-02"))
		}
	}

	fmt.Println("\n✓ Acquisition complete!")
	fmt.Printf("  Watches fetched: %d/%d\n", stats.Fetched, stats.Watches)
	fmt.Printf("  Observation rows: %d\n", stats.Rows)
	fmt.Printf("  Listing events: %d\n", stats.Events)
	if stats.Failed > 0 {
		fmt.Printf("  Failed watches: %d\n", stats.Failed)
	}
}

// openStores wires durable stores when DSNs are configured, memory otherwise.
// Memory stores make fetch a cache-warming run: the sqlite history cache is
// the only artifact that survives the process.
func openStores(ctx context.Context, cfg *config.Config) (storage.UniverseStore, storage.ObservationStore, storage.ListingEventStore, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var universeStore storage.UniverseStore
	var eventStore storage.ListingEventStore
	if cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		universeStore = postgres.NewUniverseStore(pool)
		eventStore = postgres.NewListingEventStore(pool)
	} else {
		universeStore = memory.NewUniverseStore()
		eventStore = memory.NewListingEventStore()
	}

	var observationStore storage.ObservationStore
	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		observationStore = clickhouse.NewObservationStore(conn)
	} else {
		observationStore = memory.NewObservationStore()
	}

	return universeStore, observationStore, eventStore, cleanup, nil
}

// loadUniverse reads the universe CSV and keeps the store in sync with it,
// falling back to stored entries when the file is unavailable.
func loadUniverse(ctx context.Context, cfg *config.Config, store storage.UniverseStore) ([]domain.WatchRef, error) {
	refs, err := universe.LoadCSV(cfg.UniversePath)
	if err != nil {
		existing, lerr := store.List(ctx)
		if lerr != nil || len(existing) == 0 {
			return nil, fmt.Errorf("loading universe from %s: %w", cfg.UniversePath, err)
		}
		fmt.Printf("Universe file unavailable (%v), using %d stored entries\n", err, len(existing))
		return existing, nil
	}

	for _, w := range refs {
		if err := store.Upsert(ctx, w); err != nil {
			return nil, fmt.Errorf("seed universe %s %s: %w", w.Brand, w.Reference, err)
		}
	}
	return refs, nil
}
