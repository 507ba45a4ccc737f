package reporting

import (
	"context"
	"time"

	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/decision"
	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/momentum"
	"github.com/therealtplum/watch-heat/internal/screen"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	universeStore    storage.UniverseStore
	observationStore storage.ObservationStore
	derivedStore     storage.DerivedRowStore
	screener         *screen.Screener
	evaluator        *decision.Evaluator
	fees             FeeNote
	runDate          *time.Time       // nil means latest derived date
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	universeStore storage.UniverseStore,
	observationStore storage.ObservationStore,
	derivedStore storage.DerivedRowStore,
	cfg config.Screener,
) *Generator {
	return &Generator{
		universeStore:    universeStore,
		observationStore: observationStore,
		derivedStore:     derivedStore,
		screener:         screen.NewScreener(cfg),
		evaluator:        decision.NewEvaluator(cfg),
		fees: FeeNote{
			SellingFeeRate:    cfg.SellingFeeRate,
			PaymentFeeRate:    cfg.PaymentFeeRate,
			MiscBufferRate:    cfg.MiscBufferRate,
			ShippingInsurance: cfg.ShippingInsurance,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithRunDate pins the snapshot date instead of screening the most recent
// derived date.
func (g *Generator) WithRunDate(date time.Time) *Generator {
	d := domain.Day(date)
	g.runDate = &d
	return g
}

// Generate screens the stored derived rows and assembles a complete report.
// Returns screen.ErrNoRows when nothing survives the liquidity filter.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	universe, err := g.universeStore.List(ctx)
	if err != nil {
		return nil, err
	}

	derived, err := g.derivedStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	snap, runDate := g.screener.Snapshot(derived, g.runDate)

	rows, err := g.screener.Apply(snap, universe)
	if err != nil {
		return nil, err
	}

	coverage, err := g.generateCoverage(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		RunDate:     runDate,
		GeneratedAt: g.now(),
		Summary:     summarize(rows),
		Coverage:    coverage,
		Rows:        rows,
		HotVerdicts: g.evaluator.EvaluateAll(hotRows(rows)),
		Fees:        g.fees,
	}, nil
}

// generateCoverage maps the dataset's history sufficiency checks into
// report rows.
func (g *Generator) generateCoverage(ctx context.Context) (CoverageSection, error) {
	observations, err := g.observationStore.GetAll(ctx)
	if err != nil {
		return CoverageSection{}, err
	}

	summary := momentum.SummarizeCoverage(observations)
	section := CoverageSection{AllPass: summary.AllPass}
	for _, check := range summary.Checks {
		section.Checks = append(section.Checks, CoverageCheckRow{
			Name:      check.Name,
			Threshold: check.Threshold,
			Actual:    check.Actual,
			Pass:      check.Pass,
		})
	}
	return section, nil
}

// summarize computes the headline numbers over the screened rows.
func summarize(rows []domain.PricedRow) Summary {
	s := Summary{TotalWatches: len(rows)}
	if len(rows) == 0 {
		return s
	}

	sum := 0.0
	s.MaxHeat = rows[0].Heat
	for _, r := range rows {
		if r.IsHot {
			s.HotWatches++
		}
		sum += r.Heat
		if r.Heat > s.MaxHeat {
			s.MaxHeat = r.Heat
		}
	}
	s.AvgHeat = sum / float64(len(rows))
	return s
}

// hotRows filters the rows flagged hot, preserving rank order.
func hotRows(rows []domain.PricedRow) []domain.PricedRow {
	var hot []domain.PricedRow
	for _, r := range rows {
		if r.IsHot {
			hot = append(hot, r)
		}
	}
	return hot
}
