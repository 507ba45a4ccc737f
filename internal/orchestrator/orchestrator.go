// Package orchestrator provides end-to-end screener runs.
// It coordinates: universe → acquisition → momentum → screen → reports → alerts
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/therealtplum/watch-heat/internal/alerts"
	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/decision"
	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/ingestion"
	"github.com/therealtplum/watch-heat/internal/momentum"
	"github.com/therealtplum/watch-heat/internal/observability"
	"github.com/therealtplum/watch-heat/internal/reporting"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// hotCriteriaFile is the fixed-name per-run companion to the dated reports.
const hotCriteriaFile = "HOT_CRITERIA.md"

// Orchestrator coordinates one full screener run over whatever collaborators
// are wired: memory stores with no acquirer is a complete dev-mode pipeline,
// the production wiring adds sources, durable stores, and Kafka alerts.
type Orchestrator struct {
	// Stores
	universeStore    storage.UniverseStore
	observationStore storage.ObservationStore
	derivedStore     storage.DerivedRowStore

	// Collaborators
	acquirer  *ingestion.Runner
	publisher alerts.Publisher

	universe []domain.WatchRef
	cfg      *config.Config
	runDate  *time.Time
	logger   *log.Logger
}

// Options for creating an Orchestrator.
type Options struct {
	// Required stores
	UniverseStore    storage.UniverseStore
	ObservationStore storage.ObservationStore
	DerivedStore     storage.DerivedRowStore

	// Universe entries upserted into the store before the run. Optional when
	// the store is already seeded.
	Universe []domain.WatchRef

	// Acquirer fetches fresh market data; nil renders from stored history.
	Acquirer *ingestion.Runner

	// Publisher delivers hot-row alerts; nil disables publishing.
	Publisher alerts.Publisher

	Config *config.Config

	// RunDate pins the screen's snapshot date; nil screens the latest date.
	RunDate *time.Time

	Logger *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{Screener: config.DefaultScreener(), OutputDir: "data"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[orchestrator] ", log.LstdFlags)
	}
	return &Orchestrator{
		universeStore:    opts.UniverseStore,
		observationStore: opts.ObservationStore,
		derivedStore:     opts.DerivedStore,
		acquirer:         opts.Acquirer,
		publisher:        opts.Publisher,
		universe:         opts.Universe,
		cfg:              cfg,
		runDate:          opts.RunDate,
		logger:           logger,
	}
}

// RunResult contains results from one screener run.
type RunResult struct {
	RunDate         time.Time // snapshot date actually screened
	UniverseSize    int
	Acquired        ingestion.Stats
	DerivedRows     int
	ScreenRows      int
	HotRows         int
	AlertsPublished int
	ReportPaths     []string
	Errors          []string // non-fatal issues, currently only alert delivery
}

// Run executes the full pipeline.
// Phases:
//  1. Load the watch universe
//  2. Acquire market data (when an acquirer is wired)
//  3. Derive momentum columns
//  4. Screen and build the report
//  5. Write report files
//  6. Publish hot alerts (when a publisher is wired)
//
// Phase failures abort the run, except alert delivery: by then the reports
// are on disk, so a broker outage is recorded in Errors instead.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}
	runStart := time.Now()

	// Phase 1: universe
	o.logger.Printf("phase 1: loading universe")
	phase := time.Now()
	universe, err := o.loadUniverse(ctx)
	observability.RecordPipelineRun("universe", statusOf(err), time.Since(phase).Seconds())
	if err != nil {
		return nil, fmt.Errorf("phase 1 (universe) failed: %w", err)
	}
	result.UniverseSize = len(universe)
	o.logger.Printf("  %d watches in %s", len(universe), elapsed(phase))

	// Phase 2: acquisition
	if o.acquirer != nil {
		o.logger.Printf("phase 2: acquiring market data")
		phase = time.Now()
		stats, err := o.acquirer.Run(ctx, universe)
		observability.RecordPipelineRun("acquire", statusOf(err), time.Since(phase).Seconds())
		if err != nil {
			return nil, fmt.Errorf("phase 2 (acquire) failed: %w", err)
		}
		result.Acquired = stats
		o.logger.Printf("  %d/%d watches, %d rows, %d events in %s",
			stats.Fetched, stats.Watches, stats.Rows, stats.Events, elapsed(phase))
	} else {
		o.logger.Printf("phase 2: skipping acquisition (no acquirer wired)")
	}

	// Phase 3: momentum
	o.logger.Printf("phase 3: deriving momentum")
	phase = time.Now()
	derived, err := o.runMomentum(ctx)
	observability.RecordPipelineRun("momentum", statusOf(err), time.Since(phase).Seconds())
	if err != nil {
		return nil, fmt.Errorf("phase 3 (momentum) failed: %w", err)
	}
	result.DerivedRows = len(derived)
	o.logger.Printf("  %d derived rows in %s", len(derived), elapsed(phase))

	// Phase 4: screen
	o.logger.Printf("phase 4: screening")
	phase = time.Now()
	report, err := o.runScreen(ctx)
	observability.RecordPipelineRun("screen", statusOf(err), time.Since(phase).Seconds())
	if err != nil {
		return nil, fmt.Errorf("phase 4 (screen) failed: %w", err)
	}
	result.RunDate = report.RunDate
	result.ScreenRows = report.Summary.TotalWatches
	result.HotRows = report.Summary.HotWatches
	observability.RecordScreen(result.ScreenRows, result.HotRows)
	o.logger.Printf("  %d rows, %d hot, snapshot %s in %s",
		result.ScreenRows, result.HotRows, report.RunDate.Format("2006-01-02"), elapsed(phase))

	// Phase 5: reports
	o.logger.Printf("phase 5: writing reports")
	phase = time.Now()
	paths, err := o.writeReports(report)
	observability.RecordPipelineRun("report", statusOf(err), time.Since(phase).Seconds())
	if err != nil {
		return nil, fmt.Errorf("phase 5 (report) failed: %w", err)
	}
	result.ReportPaths = paths
	o.logger.Printf("  %d files in %s", len(paths), elapsed(phase))

	// Phase 6: alerts
	if o.publisher != nil && result.HotRows > 0 {
		o.logger.Printf("phase 6: publishing alerts")
		phase = time.Now()
		err := o.publisher.PublishHot(ctx, report.RunDate, report.Rows)
		observability.RecordPipelineRun("publish", statusOf(err), time.Since(phase).Seconds())
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("publish alerts: %v", err))
			o.logger.Printf("  alert delivery failed: %v", err)
		} else {
			result.AlertsPublished = result.HotRows
			observability.RecordAlerts(result.HotRows)
			o.logger.Printf("  %d alerts in %s", result.HotRows, elapsed(phase))
		}
	} else if o.publisher != nil {
		o.logger.Printf("phase 6: no hot rows, nothing to publish")
	}

	o.logger.Printf("run completed: %d watches, %d screened, %d hot in %s",
		result.UniverseSize, result.ScreenRows, result.HotRows, elapsed(runStart))
	return result, nil
}

// loadUniverse seeds the store with any entries supplied up front, then
// returns the full stored universe.
func (o *Orchestrator) loadUniverse(ctx context.Context) ([]domain.WatchRef, error) {
	for _, w := range o.universe {
		if err := o.universeStore.Upsert(ctx, w); err != nil {
			return nil, fmt.Errorf("seed universe %s %s: %w", w.Brand, w.Reference, err)
		}
	}

	universe, err := o.universeStore.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		return nil, errors.New("universe is empty")
	}
	return universe, nil
}

// runMomentum recomputes derived rows over the full stored history.
func (o *Orchestrator) runMomentum(ctx context.Context) ([]domain.DerivedRow, error) {
	engine := momentum.NewEngine(
		momentum.WithWorkers(o.cfg.Screener.Workers),
		momentum.WithLogger(o.logger),
	)
	runner := momentum.NewRunner(o.observationStore, o.derivedStore, engine)
	return runner.DeriveAll(ctx)
}

// runScreen builds the full report from stored rows.
func (o *Orchestrator) runScreen(ctx context.Context) (*reporting.Report, error) {
	gen := reporting.NewGenerator(o.universeStore, o.observationStore, o.derivedStore, o.cfg.Screener)
	if o.runDate != nil {
		gen = gen.WithRunDate(*o.runDate)
	}
	return gen.Generate(ctx)
}

// writeReports renders every format into the output directory. Report files
// carry the snapshot date; the hot-criteria file keeps a fixed name so the
// latest run's verdicts sit at a stable path.
func (o *Orchestrator) writeReports(report *reporting.Report) ([]string, error) {
	if err := os.MkdirAll(o.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	date := report.RunDate.Format("2006-01-02")
	var paths []string

	write := func(name, format string, content []byte) error {
		path := filepath.Join(o.cfg.OutputDir, name)
		if err := os.WriteFile(path, content, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		observability.RecordReport(format)
		paths = append(paths, path)
		return nil
	}

	if err := write(fmt.Sprintf("watch_heat_%s.csv", date), "csv", []byte(reporting.RenderCSV(report.Rows))); err != nil {
		return nil, err
	}
	if err := write(fmt.Sprintf("watch_heat_%s.md", date), "markdown", []byte(reporting.RenderMarkdown(report))); err != nil {
		return nil, err
	}

	html, err := reporting.RenderHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := write(fmt.Sprintf("watch_heat_%s.html", date), "html", []byte(html)); err != nil {
		return nil, err
	}

	xlsx, err := reporting.RenderXLSX(report)
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	if err := write(fmt.Sprintf("watch_heat_%s.xlsx", date), "xlsx", xlsx); err != nil {
		return nil, err
	}

	if len(report.HotVerdicts) > 0 {
		criteria := decision.RenderMarkdown(report.HotVerdicts)
		if err := write(hotCriteriaFile, "hot_criteria", []byte(criteria)); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func elapsed(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
