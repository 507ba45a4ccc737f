package decision

import (
	"strings"
	"testing"

	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func pricedRow(brand, ref string, heat float64, listings *int64) domain.PricedRow {
	return domain.PricedRow{
		DerivedRow: domain.DerivedRow{
			Observation: domain.Observation{
				Brand:          brand,
				Reference:      ref,
				ListingsActive: listings,
			},
		},
		Heat:  heat,
		IsHot: heat >= config.DefaultScreener().HeatThreshold,
	}
}

func TestEvaluate_Hot(t *testing.T) {
	evaluator := NewEvaluator(config.DefaultScreener())

	v := evaluator.Evaluate(pricedRow("Rolex", "116500LN", 0.90, ptr(int64(12))))
	if !v.Pass {
		t.Errorf("expected hot verdict, got fail")
	}
	for i, c := range v.Criteria {
		if !c.Pass {
			t.Errorf("criterion %d (%s) should pass", i+1, c.Name)
		}
	}
}

func TestEvaluate_ColdHeatFails(t *testing.T) {
	evaluator := NewEvaluator(config.DefaultScreener())

	v := evaluator.Evaluate(pricedRow("Rolex", "116500LN", 0.40, ptr(int64(12))))
	if v.Pass {
		t.Error("expected fail below heat threshold")
	}
	if v.Criteria[0].Pass {
		t.Error("heat criterion should fail at 0.40")
	}
	if !v.Criteria[1].Pass {
		t.Error("listings criterion should still pass")
	}
}

func TestEvaluate_ThresholdEqualityPasses(t *testing.T) {
	cfg := config.DefaultScreener()
	evaluator := NewEvaluator(cfg)

	v := evaluator.Evaluate(pricedRow("Rolex", "116500LN", cfg.HeatThreshold, ptr(cfg.MinListings)))
	if !v.Pass {
		t.Error("expected verdict at exact thresholds to pass")
	}
}

func TestEvaluate_MissingListingsEvaluatesAsZero(t *testing.T) {
	evaluator := NewEvaluator(config.DefaultScreener())

	v := evaluator.Evaluate(pricedRow("Rolex", "116500LN", 0.90, nil))
	if v.Pass {
		t.Error("expected fail with unknown listing count")
	}
	if v.Criteria[1].Pass {
		t.Error("listings criterion should fail when missing")
	}
	if v.Criteria[1].Actual != "missing" {
		t.Errorf("expected actual 'missing', got %q", v.Criteria[1].Actual)
	}
}

func TestEvaluate_MirrorsIsHot(t *testing.T) {
	evaluator := NewEvaluator(config.DefaultScreener())

	for _, heat := range []float64{0.0, 0.5, 0.74, 0.75, 0.76, 1.2} {
		row := pricedRow("Rolex", "116500LN", heat, ptr(int64(10)))
		v := evaluator.Evaluate(row)
		if v.Pass != row.IsHot {
			t.Errorf("heat %.2f: verdict %t disagrees with is_hot %t", heat, v.Pass, row.IsHot)
		}
	}
}

func TestEvaluateAll_PreservesOrder(t *testing.T) {
	evaluator := NewEvaluator(config.DefaultScreener())

	rows := []domain.PricedRow{
		pricedRow("Rolex", "116500LN", 0.90, ptr(int64(12))),
		pricedRow("Omega", "310.30", 0.20, ptr(int64(8))),
	}
	verdicts := evaluator.EvaluateAll(rows)
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if verdicts[0].Row.Brand != "Rolex" || verdicts[1].Row.Brand != "Omega" {
		t.Error("verdicts out of input order")
	}
	if !verdicts[0].Pass || verdicts[1].Pass {
		t.Error("unexpected pass pattern")
	}
}

func TestRenderMarkdown_Sections(t *testing.T) {
	evaluator := NewEvaluator(config.DefaultScreener())

	hot := pricedRow("Rolex", "116500LN", 0.90, ptr(int64(12)))
	hot.Nickname = "Daytona"
	cold := pricedRow("Omega", "310.30", 0.20, ptr(int64(8)))

	md := RenderMarkdown(evaluator.EvaluateAll([]domain.PricedRow{hot, cold}))

	if !strings.Contains(md, "Verdicts: 1/2 hot") {
		t.Error("missing verdict count line")
	}
	if !strings.Contains(md, "## Rolex 116500LN (Daytona): HOT") {
		t.Error("missing hot section header with nickname")
	}
	if !strings.Contains(md, "## Omega 310.30: NOT HOT") {
		t.Error("missing cold section header")
	}
	if !strings.Contains(md, "| 1 | Heat above threshold |") {
		t.Error("missing criteria table row")
	}
	if !strings.Contains(md, "- Failed: Heat above threshold") {
		t.Error("missing failure line for cold watch")
	}
}
