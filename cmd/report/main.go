// Package main renders watch heat reports from stored derived rows, with no
// fetching and no recomputation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/decision"
	"github.com/therealtplum/watch-heat/internal/reporting"
	"github.com/therealtplum/watch-heat/internal/storage"
	chstore "github.com/therealtplum/watch-heat/internal/storage/clickhouse"
	"github.com/therealtplum/watch-heat/internal/storage/memory"
	pgstore "github.com/therealtplum/watch-heat/internal/storage/postgres"
	"github.com/therealtplum/watch-heat/internal/universe"
)

func main() {
	outputDir := flag.String("output-dir", "", "Output directory for reports (default: data/)")
	date := flag.String("date", "", "Snapshot date to render (YYYY-MM-DD, default: most recent stored)")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.FromEnv()
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	// Derived rows only live in ClickHouse; without it there is nothing to
	// render.
	if cfg.ClickHouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: CLICKHOUSE_DSN is required for report-only runs")
		fmt.Fprintln(os.Stderr, "Use the screener command for an end-to-end run instead")
		os.Exit(1)
	}

	ctx := context.Background()

	chConn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer chConn.Close()
	observationStore := chstore.NewObservationStore(chConn)
	derivedStore := chstore.NewDerivedRowStore(chConn)

	universeStore, cleanup, err := openUniverseStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	gen := reporting.NewGenerator(universeStore, observationStore, derivedStore, cfg.Screener)
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --date %q: expected YYYY-MM-DD\n", *date)
			os.Exit(1)
		}
		gen = gen.WithRunDate(parsed)
	}

	report, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	paths, err := writeReports(cfg.OutputDir, report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing reports: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Report generated successfully:")
	for _, p := range paths {
		fmt.Printf("  - %s\n", p)
	}
	fmt.Printf("Snapshot: %s, %d watches, %d hot\n",
		report.RunDate.Format("2006-01-02"), report.Summary.TotalWatches, report.Summary.HotWatches)
}

// openUniverseStore prefers the Postgres universe and falls back to a memory
// store seeded from the universe CSV, so nicknames still resolve.
func openUniverseStore(ctx context.Context, cfg *config.Config) (storage.UniverseStore, func(), error) {
	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pgstore.NewUniverseStore(pool), pool.Close, nil
	}

	store := memory.NewUniverseStore()
	refs, err := universe.LoadCSV(cfg.UniversePath)
	if err != nil {
		// Reports still render without nicknames.
		fmt.Printf("Universe file unavailable (%v), display names will be empty\n", err)
		return store, func() {}, nil
	}
	for _, w := range refs {
		if err := store.Upsert(ctx, w); err != nil {
			return nil, nil, fmt.Errorf("seed universe: %w", err)
		}
	}
	return store, func() {}, nil
}

// writeReports renders every format into the output directory.
func writeReports(outputDir string, report *reporting.Report) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	date := report.RunDate.Format("2006-01-02")
	var paths []string

	write := func(name string, content []byte) error {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, content, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, path)
		return nil
	}

	if err := write(fmt.Sprintf("watch_heat_%s.csv", date), []byte(reporting.RenderCSV(report.Rows))); err != nil {
		return nil, err
	}
	if err := write(fmt.Sprintf("watch_heat_%s.md", date), []byte(reporting.RenderMarkdown(report))); err != nil {
		return nil, err
	}

	html, err := reporting.RenderHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := write(fmt.Sprintf("watch_heat_%s.html", date), []byte(html)); err != nil {
		return nil, err
	}

	xlsx, err := reporting.RenderXLSX(report)
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	if err := write(fmt.Sprintf("watch_heat_%s.xlsx", date), xlsx); err != nil {
		return nil, err
	}

	if len(report.HotVerdicts) > 0 {
		if err := write("HOT_CRITERIA.md", []byte(decision.RenderMarkdown(report.HotVerdicts))); err != nil {
			return nil, err
		}
	}

	return paths, nil
}
