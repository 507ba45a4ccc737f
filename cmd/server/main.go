// Package main provides the unified watch heat service:
// - Live feed (continuous): marketplace listing events over WebSocket
// - Screen (scheduled): acquisition → momentum → screen → reports → alerts
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/therealtplum/watch-heat/internal/alerts"
	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/ingestion"
	"github.com/therealtplum/watch-heat/internal/observability"
	"github.com/therealtplum/watch-heat/internal/orchestrator"
	"github.com/therealtplum/watch-heat/internal/storage"
	chstore "github.com/therealtplum/watch-heat/internal/storage/clickhouse"
	"github.com/therealtplum/watch-heat/internal/storage/memory"
	"github.com/therealtplum/watch-heat/internal/storage/migrations"
	pgstore "github.com/therealtplum/watch-heat/internal/storage/postgres"
	"github.com/therealtplum/watch-heat/internal/storage/sqlite"
	"github.com/therealtplum/watch-heat/internal/universe"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	cfg            *config.Config
	screenInterval time.Duration
	useMemory      bool

	// Stores and components
	stores    *allStores
	acquirer  *ingestion.Runner
	publisher alerts.Publisher
	universe  []domain.WatchRef
	logger    *log.Logger

	// State
	mu             sync.Mutex
	started        time.Time
	feedEnabled    bool
	lastScreenRun  time.Time
	screenRunning  bool
	screenRuns     int
	lastScreenRows int
	lastHotRows    int
}

// allStores holds all storage implementations.
type allStores struct {
	universe     storage.UniverseStore
	observations storage.ObservationStore
	derived      storage.DerivedRowStore
	events       storage.ListingEventStore
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Parse flags
	screenInterval := flag.Duration("screen-interval", 6*time.Hour, "Full screen run interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	outputDir := flag.String("output-dir", "", "Output directory for reports (default: data/)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg := config.FromEnv()
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if err := cfg.Screener.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Validate wiring
	if !*useMemory && (cfg.PostgresDSN == "" || cfg.ClickHouseDSN == "") {
		logger.Fatal("POSTGRES_DSN and CLICKHOUSE_DSN are required (use --use-memory for in-memory storage)")
	}
	if *useMemory && cfg.WatchChartsAPIKey == "" {
		logger.Fatal("WATCHCHARTS_API_KEY is required with --use-memory: nothing survives between in-memory runs without acquisition")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Universe comes from the CSV when present, otherwise from the store.
	universeRefs, err := universe.LoadCSV(cfg.UniversePath)
	if err != nil {
		existing, lerr := stores.universe.List(ctx)
		if lerr != nil || len(existing) == 0 {
			logger.Fatalf("Failed to load universe from %s: %v", cfg.UniversePath, err)
		}
		logger.Printf("Universe file unavailable (%v), using %d stored entries", err, len(existing))
	} else {
		logger.Printf("Universe: %d watches from %s", len(universeRefs), cfg.UniversePath)
	}

	// Acquisition runner, shared across scheduled runs
	acquirer, acquirerCleanup, err := buildAcquirer(cfg, stores, logger)
	if err != nil {
		logger.Fatalf("Failed to build acquirer: %v", err)
	}
	if acquirerCleanup != nil {
		defer acquirerCleanup()
	}

	// Alert publisher
	var publisher alerts.Publisher
	if brokers := splitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaPub, err := alerts.NewKafkaPublisher(brokers, alerts.WithKafkaLogger(logger))
		if err != nil {
			logger.Fatalf("Failed to connect alert publisher: %v", err)
		}
		defer kafkaPub.Close()
		publisher = kafkaPub
		logger.Printf("Alert publisher connected to %v", brokers)
	}

	// Create server
	server := &Server{
		cfg:            cfg,
		screenInterval: *screenInterval,
		useMemory:      *useMemory,
		stores:         stores,
		acquirer:       acquirer,
		publisher:      publisher,
		universe:       universeRefs,
		logger:         logger,
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*metricsAddr)

	// Run the unified server
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			universe:     memory.NewUniverseStore(),
			observations: memory.NewObservationStore(),
			derived:      memory.NewDerivedRowStore(),
			events:       memory.NewListingEventStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	// ClickHouse, with schema applied before the first scheduled run needs it
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (universe + listing event log)
		universe: pgstore.NewUniverseStore(pool),
		events:   pgstore.NewListingEventStore(pool),

		// ClickHouse stores (daily series + derived analytics)
		observations: chstore.NewObservationStore(chConn),
		derived:      chstore.NewDerivedRowStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// buildAcquirer assembles the shared acquisition runner, or nil when no
// snapshot source is configured and runs render from stored history.
func buildAcquirer(cfg *config.Config, stores *allStores, logger *log.Logger) (*ingestion.Runner, func(), error) {
	if cfg.WatchChartsAPIKey == "" {
		logger.Printf("No WatchCharts API key, scheduled runs render from stored history")
		return nil, nil, nil
	}

	cacheDB, err := sqlite.Open(cfg.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open history cache: %w", err)
	}

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
	return runner, func() { cacheDB.Close() }, nil
}

// Run starts the unified server with all components.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting watch heat server...")

	s.mu.Lock()
	s.started = time.Now()
	s.feedEnabled = s.cfg.FeedURL != ""
	s.mu.Unlock()

	// Create error channel for goroutines
	errCh := make(chan error, 2)

	// Start live feed in background
	if s.cfg.FeedURL != "" {
		go func() {
			err := s.runFeed(ctx)
			if err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("live feed: %w", err)
			}
		}()
	} else {
		s.logger.Println("No feed URL configured, live listing feed disabled")
	}

	// Start screen scheduler in background
	go func() {
		err := s.runScreenScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("screen scheduler: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runFeed keeps the live listing feed attached for the server's lifetime.
// Reconnects after the initial attach are the feed's own concern.
func (s *Server) runFeed(ctx context.Context) error {
	s.logger.Printf("Connecting live listing feed at %s", s.cfg.FeedURL)

	feed, err := ingestion.NewLiveFeed(ctx, s.cfg.FeedURL, s.stores.events,
		nil, log.New(os.Stdout, "[livefeed] ", log.LstdFlags))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	s.logger.Println("Live feed connected")
	<-ctx.Done()
	if err := feed.Close(); err != nil {
		s.logger.Printf("Feed close error: %v", err)
	}
	return ctx.Err()
}

// runScreenScheduler runs the full screen pipeline on schedule.
func (s *Server) runScreenScheduler(ctx context.Context) error {
	s.logger.Printf("Starting screen scheduler (interval: %v)...", s.screenInterval)

	// Run immediately on start
	s.runScreen(ctx)

	ticker := time.NewTicker(s.screenInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runScreen(ctx)
		}
	}
}

// runScreen executes one full screener run.
func (s *Server) runScreen(ctx context.Context) {
	s.mu.Lock()
	if s.screenRunning {
		s.mu.Unlock()
		s.logger.Println("Screen run already in progress, skipping...")
		return
	}
	s.screenRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.screenRunning = false
		s.lastScreenRun = time.Now()
		s.screenRuns++
		s.mu.Unlock()
	}()

	s.logger.Println("Running screen...")
	start := time.Now()

	orch := orchestrator.New(orchestrator.Options{
		UniverseStore:    s.stores.universe,
		ObservationStore: s.stores.observations,
		DerivedStore:     s.stores.derived,
		Universe:         s.universe,
		Acquirer:         s.acquirer,
		Publisher:        s.publisher,
		Config:           s.cfg,
		Logger:           s.logger,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		s.logger.Printf("Screen run error: %v", err)
		observability.RecordPipelineRun("run", "error", time.Since(start).Seconds())
		return
	}
	for _, e := range result.Errors {
		s.logger.Printf("Screen run warning: %s", e)
	}

	s.mu.Lock()
	s.lastScreenRows = result.ScreenRows
	s.lastHotRows = result.HotRows
	s.mu.Unlock()

	s.logger.Printf("Screen completed in %v: %d watches, %d screened, %d hot, %d alerts",
		time.Since(start), result.UniverseSize, result.ScreenRows, result.HotRows, result.AlertsPublished)

	observability.RecordPipelineRun("run", "success", time.Since(start).Seconds())
}

// startHTTPServer starts the HTTP server for health and metrics.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check with JSON status
	mux.HandleFunc("/healthz", s.handleHealthz)

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// HealthResponse is the JSON response for the /healthz endpoint.
type HealthResponse struct {
	Status         string    `json:"status"`
	Uptime         string    `json:"uptime"`
	FeedEnabled    bool      `json:"feed_enabled"`
	LastScreenRun  time.Time `json:"last_screen_run,omitempty"`
	ScreenRuns     int       `json:"screen_runs"`
	ScreenRunning  bool      `json:"screen_running"`
	LastScreenRows int       `json:"last_screen_rows"`
	LastHotRows    int       `json:"last_hot_rows"`
}

// handleHealthz returns server status as JSON.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := HealthResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).String(),
		FeedEnabled:    s.feedEnabled,
		LastScreenRun:  s.lastScreenRun,
		ScreenRuns:     s.screenRuns,
		ScreenRunning:  s.screenRunning,
		LastScreenRows: s.lastScreenRows,
		LastHotRows:    s.lastHotRows,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
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
