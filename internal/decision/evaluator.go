package decision

import (
	"fmt"

	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/domain"
)

// Evaluator evaluates hot criteria against screened rows.
type Evaluator struct {
	cfg config.Screener
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(cfg config.Screener) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate produces a Verdict for one row. A row is hot when its heat clears
// the threshold and its listing count clears the liquidity floor; a missing
// listing count evaluates as zero, matching the screen filter.
func (e *Evaluator) Evaluate(row domain.PricedRow) Verdict {
	criteria := make([]CriterionResult, 2)

	criteria[0] = CriterionResult{
		Name:      "Heat above threshold",
		Threshold: fmt.Sprintf(">= %.2f", e.cfg.HeatThreshold),
		Actual:    fmt.Sprintf("%.2f", row.Heat),
		Pass:      row.Heat >= e.cfg.HeatThreshold,
	}

	var listings int64
	actual := "missing"
	if row.ListingsActive != nil {
		listings = *row.ListingsActive
		actual = fmt.Sprintf("%d", listings)
	}
	criteria[1] = CriterionResult{
		Name:      "Active listings",
		Threshold: fmt.Sprintf(">= %d", e.cfg.MinListings),
		Actual:    actual,
		Pass:      listings >= e.cfg.MinListings,
	}

	pass := true
	for _, c := range criteria {
		if !c.Pass {
			pass = false
			break
		}
	}

	return Verdict{Row: row, Pass: pass, Criteria: criteria}
}

// EvaluateAll produces a Verdict per row, preserving input order.
func (e *Evaluator) EvaluateAll(rows []domain.PricedRow) []Verdict {
	verdicts := make([]Verdict, len(rows))
	for i, row := range rows {
		verdicts[i] = e.Evaluate(row)
	}
	return verdicts
}
