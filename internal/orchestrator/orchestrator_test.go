package orchestrator

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/therealtplum/watch-heat/internal/alerts"
	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/screen"
	"github.com/therealtplum/watch-heat/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

type testStores struct {
	universe     *memory.UniverseStore
	observations *memory.ObservationStore
	derived      *memory.DerivedRowStore
}

func createTestStores() *testStores {
	return &testStores{
		universe:     memory.NewUniverseStore(),
		observations: memory.NewObservationStore(),
		derived:      memory.NewDerivedRowStore(),
	}
}

func testUniverse() []domain.WatchRef {
	return []domain.WatchRef{
		{Brand: "Rolex", Reference: "116500LN", Nickname: "Daytona Panda"},
		{Brand: "Omega", Reference: "310.30.42.50.01.001", Nickname: "Speedmaster Moonwatch"},
		{Brand: "Patek Philippe", Reference: "5711/1A"},
	}
}

// seedHistory loads 31 consecutive days ending 2026-08-20: a Rolex with
// strongly rising prices and tightening supply, a flat Omega, and a Patek
// too thin to pass the listings floor.
func seedHistory(t *testing.T, stores *testStores) {
	t.Helper()

	start := time.Date(2026, 7, 21, 0, 0, 0, 0, time.UTC)
	var observations []domain.Observation
	for i := 0; i < 31; i++ {
		day := start.AddDate(0, 0, i)
		observations = append(observations,
			domain.Observation{
				Date:           day,
				Brand:          "Rolex",
				Reference:      "116500LN",
				MedianPrice:    ptr(20000.0 + float64(i)*300),
				ListingsActive: ptr(int64(40 - i)),
				DOMMedian:      ptr(60.0 - float64(i)),
			},
			domain.Observation{
				Date:           day,
				Brand:          "Omega",
				Reference:      "310.30.42.50.01.001",
				MedianPrice:    ptr(6000.0),
				ListingsActive: ptr(int64(8)),
			},
			domain.Observation{
				Date:           day,
				Brand:          "Patek Philippe",
				Reference:      "5711/1A",
				MedianPrice:    ptr(90000.0),
				ListingsActive: ptr(int64(3)),
			},
		)
	}
	if err := stores.observations.InsertBulk(context.Background(), observations); err != nil {
		t.Fatalf("seed observations: %v", err)
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedHistory(t, stores)

	outputDir := t.TempDir()
	publisher := alerts.NewMemoryPublisher()
	cfg := &config.Config{Screener: config.DefaultScreener(), OutputDir: outputDir}

	orch := New(Options{
		UniverseStore:    stores.universe,
		ObservationStore: stores.observations,
		DerivedStore:     stores.derived,
		Universe:         testUniverse(),
		Publisher:        publisher,
		Config:           cfg,
		Logger:           quietLogger(),
	})

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected non-fatal errors: %v", result.Errors)
	}

	if result.UniverseSize != 3 {
		t.Errorf("universe size = %d, want 3", result.UniverseSize)
	}
	if result.DerivedRows != 93 {
		t.Errorf("derived rows = %d, want 93", result.DerivedRows)
	}
	// Patek sits under the listings floor; the Rolex ramp is the one hot row.
	if result.ScreenRows != 2 {
		t.Errorf("screen rows = %d, want 2", result.ScreenRows)
	}
	if result.HotRows != 1 {
		t.Errorf("hot rows = %d, want 1", result.HotRows)
	}
	if got := result.RunDate.Format("2006-01-02"); got != "2026-08-20" {
		t.Errorf("run date = %s, want 2026-08-20", got)
	}

	if result.AlertsPublished != 1 {
		t.Errorf("alerts published = %d, want 1", result.AlertsPublished)
	}
	published := publisher.Alerts()
	if len(published) != 1 {
		t.Fatalf("publisher got %d alerts, want 1", len(published))
	}
	if published[0].Brand != "Rolex" || published[0].RunDate != "2026-08-20" {
		t.Errorf("alert = %+v", published[0])
	}

	wantFiles := []string{
		"watch_heat_2026-08-20.csv",
		"watch_heat_2026-08-20.md",
		"watch_heat_2026-08-20.html",
		"watch_heat_2026-08-20.xlsx",
		"HOT_CRITERIA.md",
	}
	if len(result.ReportPaths) != len(wantFiles) {
		t.Fatalf("report paths = %v, want %d files", result.ReportPaths, len(wantFiles))
	}
	for _, name := range wantFiles {
		path := filepath.Join(outputDir, name)
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("missing report file %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("report file %s is empty", name)
		}
	}

	csvData, err := os.ReadFile(filepath.Join(outputDir, "watch_heat_2026-08-20.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(csvData), "date,brand,reference,") {
		t.Errorf("csv header missing: %q", string(csvData)[:40])
	}
	if !strings.Contains(string(csvData), "Rolex,116500LN") {
		t.Errorf("csv missing hot row: %s", csvData)
	}
}

func TestRun_EmptyUniverse(t *testing.T) {
	stores := createTestStores()

	orch := New(Options{
		UniverseStore:    stores.universe,
		ObservationStore: stores.observations,
		DerivedStore:     stores.derived,
		Config:           &config.Config{Screener: config.DefaultScreener(), OutputDir: t.TempDir()},
		Logger:           quietLogger(),
	})

	_, err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for empty universe")
	}
	if !strings.Contains(err.Error(), "universe is empty") {
		t.Errorf("error = %v, want universe is empty", err)
	}
}

func TestRun_NoObservations(t *testing.T) {
	stores := createTestStores()

	orch := New(Options{
		UniverseStore:    stores.universe,
		ObservationStore: stores.observations,
		DerivedStore:     stores.derived,
		Universe:         testUniverse(),
		Config:           &config.Config{Screener: config.DefaultScreener(), OutputDir: t.TempDir()},
		Logger:           quietLogger(),
	})

	_, err := orch.Run(context.Background())
	if !errors.Is(err, screen.ErrNoRows) {
		t.Fatalf("error = %v, want screen.ErrNoRows", err)
	}
}

func TestRun_PinnedRunDate(t *testing.T) {
	stores := createTestStores()
	seedHistory(t, stores)

	outputDir := t.TempDir()
	pinned := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)

	orch := New(Options{
		UniverseStore:    stores.universe,
		ObservationStore: stores.observations,
		DerivedStore:     stores.derived,
		Universe:         testUniverse(),
		Config:           &config.Config{Screener: config.DefaultScreener(), OutputDir: outputDir},
		RunDate:          &pinned,
		Logger:           quietLogger(),
	})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.RunDate.Equal(pinned) {
		t.Errorf("run date = %s, want %s", result.RunDate, pinned)
	}
	if result.ScreenRows != 2 {
		t.Errorf("screen rows = %d, want 2", result.ScreenRows)
	}
	// No publisher wired, so nothing counts as published even with hot rows.
	if result.AlertsPublished != 0 {
		t.Errorf("alerts published = %d, want 0", result.AlertsPublished)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "watch_heat_2026-08-19.csv")); err != nil {
		t.Errorf("missing pinned-date csv: %v", err)
	}
}
