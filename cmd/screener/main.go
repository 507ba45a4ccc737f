// Package main provides the one-shot watch heat screener.
// Executes: universe → acquisition → momentum → screen → reports → alerts
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/therealtplum/watch-heat/internal/alerts"
	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/ingestion"
	"github.com/therealtplum/watch-heat/internal/orchestrator"
	"github.com/therealtplum/watch-heat/internal/storage"
	"github.com/therealtplum/watch-heat/internal/storage/clickhouse"
	"github.com/therealtplum/watch-heat/internal/storage/memory"
	"github.com/therealtplum/watch-heat/internal/storage/migrations"
	"github.com/therealtplum/watch-heat/internal/storage/postgres"
	"github.com/therealtplum/watch-heat/internal/storage/sqlite"
	"github.com/therealtplum/watch-heat/internal/universe"
)

func main() {
	outputDir := flag.String("output-dir", "", "Output directory for reports (default: data/)")
	date := flag.String("date", "", "Date to analyze (YYYY-MM-DD, default: most recent available)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.FromEnv()
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if err := cfg.Screener.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var runDate *time.Time
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --date %q: expected YYYY-MM-DD\n", *date)
			os.Exit(1)
		}
		runDate = &parsed
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stdout, "[screener] ", log.LstdFlags)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	fmt.Println("=== Watch Heat Screener ===")

	stores, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// Universe comes from the CSV when present, otherwise from whatever the
	// store already holds.
	universeRefs, err := universe.LoadCSV(cfg.UniversePath)
	if err != nil {
		existing, lerr := stores.universe.List(ctx)
		if lerr != nil || len(existing) == 0 {
			fmt.Fprintf(os.Stderr, "Error loading universe from %s: %v\n", cfg.UniversePath, err)
			os.Exit(1)
		}
		fmt.Printf("Universe file unavailable (%v), using %d stored entries\n", err, len(existing))
	} else {
		fmt.Printf("Universe: %d watches from %s\n", len(universeRefs), cfg.UniversePath)
	}

	acquirer, acquireCleanup, err := buildAcquirer(cfg, stores, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if acquireCleanup != nil {
		defer acquireCleanup()
	}

	var publisher alerts.Publisher
	if brokers := splitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaPub, err := alerts.NewKafkaPublisher(brokers, alerts.WithKafkaLogger(logger))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting alert publisher: %v\n", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		publisher = kafkaPub
	}

	orch := orchestrator.New(orchestrator.Options{
		UniverseStore:    stores.universe,
		ObservationStore: stores.observations,
		DerivedStore:     stores.derived,
		Universe:         universeRefs,
		Acquirer:         acquirer,
		Publisher:        publisher,
		Config:           cfg,
		RunDate:          runDate,
		Logger:           logger,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", e)
	}

	fmt.Println("\n✓ Analysis complete!")
	for _, path := range result.ReportPaths {
		fmt.Printf("  %s\n", path)
	}
	fmt.Printf("  Watches analyzed: %d\n", result.ScreenRows)
	fmt.Printf("  Hot watches: %d\n", result.HotRows)
	if result.AlertsPublished > 0 {
		fmt.Printf("  Alerts published: %d\n", result.AlertsPublished)
	}
}

// appStores holds the run's store set, durable or in-memory.
type appStores struct {
	universe     storage.UniverseStore
	observations storage.ObservationStore
	derived      storage.DerivedRowStore
	events       storage.ListingEventStore
}

// openStores wires Postgres and ClickHouse stores when their DSNs are
// configured and falls back to memory stores otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*appStores, func(), error) {
	stores := &appStores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		stores.universe = postgres.NewUniverseStore(pool)
		stores.events = postgres.NewListingEventStore(pool)
	} else {
		stores.universe = memory.NewUniverseStore()
		stores.events = memory.NewListingEventStore()
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.observations = clickhouse.NewObservationStore(conn)
		stores.derived = clickhouse.NewDerivedRowStore(conn)
	} else {
		stores.observations = memory.NewObservationStore()
		stores.derived = memory.NewDerivedRowStore()
	}

	return stores, cleanup, nil
}

// buildAcquirer assembles the acquisition runner, or returns nil when no
// snapshot source is available and stored history can carry the run.
func buildAcquirer(cfg *config.Config, stores *appStores, logger *log.Logger) (*ingestion.Runner, func(), error) {
	if cfg.WatchChartsAPIKey == "" {
		// Memory stores hold nothing between runs, so skipping acquisition
		// there guarantees an empty screen.
		if cfg.ClickHouseDSN == "" {
			return nil, nil, fmt.Errorf("cannot proceed without WatchCharts data: set WATCHCHARTS_API_KEY")
		}
		fmt.Println("No WatchCharts API key, rendering from stored history")
		return nil, nil, nil
	}

	cacheDB, err := sqlite.Open(cfg.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open history cache: %w", err)
	}
	cleanup := func() { cacheDB.Close() }

	var activity ingestion.ActivitySource
	if cfg.EbayOAuthToken != "" {
		activity = ingestion.NewEbayClient(cfg.EbayOAuthToken)
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Snapshots:    ingestion.NewWatchChartsClient(cfg.WatchChartsAPIKey),
		Activity:     activity,
		Listings:     ingestion.NewChrono24Client(),
		Cache:        ingestion.NewHistoryCache(cacheDB, ingestion.WithCacheLogger(logger)),
		Observations: stores.observations,
		Events:       stores.events,
		Workers:      cfg.Screener.Workers,
		Logger:       logger,
	})
	return runner, cleanup, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
