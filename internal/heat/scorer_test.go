package heat

import (
	"math"
	"testing"

	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_AllComponentsMissing(t *testing.T) {
	// Every component absent must score exactly 0, not NaN or a default.
	score := Score(domain.DerivedRow{})
	if score != 0.0 {
		t.Errorf("expected exactly 0.0, got %v", score)
	}
}

func TestScore_SingleComponent(t *testing.T) {
	row := domain.DerivedRow{Pct14: ptr(10.0)}

	score := Score(row)

	// 0.35 * (10/10) = 0.35, nothing else contributes.
	if !approxEq(score, 0.35) {
		t.Errorf("expected 0.35, got %v", score)
	}
}

func TestScore_AllComponents(t *testing.T) {
	row := domain.DerivedRow{
		Pct14:         ptr(10.0),
		Pct30:         ptr(20.0),
		DOMDelta14:    ptr(5.0),
		SupplyDelta14: ptr(-5.0),
		Z90:           ptr(1.5),
		EbayMom30:     ptr(0.5),
	}

	score := Score(row)

	want := 0.35*1.0 + 0.25*2.0 + 0.20*0.5 + 0.20*(-0.5) + 0.10*(1.5/3.0) + 0.10*0.5
	if !approxEq(score, want) {
		t.Errorf("expected %v, got %v", want, score)
	}
}

func TestScore_Z90Capped(t *testing.T) {
	// An extreme outlier contributes the cap, not a proportional amount.
	row := domain.DerivedRow{Z90: ptr(5.0)}

	score := Score(row)

	if !approxEq(score, 0.10) {
		t.Errorf("z90=5.0 should contribute exactly 0.10, got %v", score)
	}
}

func TestScore_Z90NegativeClampedToZero(t *testing.T) {
	row := domain.DerivedRow{Z90: ptr(-2.0)}

	score := Score(row)

	if score != 0.0 {
		t.Errorf("negative z90 should contribute 0, got %v", score)
	}
}

func TestScore_EbayMomClamped(t *testing.T) {
	if got := Score(domain.DerivedRow{EbayMom30: ptr(4.0)}); !approxEq(got, 0.10) {
		t.Errorf("ebay_mom=4.0 should contribute 0.10, got %v", got)
	}
	if got := Score(domain.DerivedRow{EbayMom30: ptr(-4.0)}); !approxEq(got, -0.10) {
		t.Errorf("ebay_mom=-4.0 should contribute -0.10, got %v", got)
	}
}

func TestScore_IgnoresNonComponentFields(t *testing.T) {
	base := domain.DerivedRow{Pct14: ptr(10.0)}
	decorated := base
	decorated.Pct7 = ptr(99.0)
	decorated.MedianPrice = ptr(123456.0)
	decorated.Brand = "Rolex"

	if Score(base) != Score(decorated) {
		t.Errorf("score must depend only on the six components: %v vs %v", Score(base), Score(decorated))
	}
}

func TestIsHot(t *testing.T) {
	cfg := config.DefaultScreener()

	if !IsHot(0.75, cfg) {
		t.Error("score equal to threshold should be hot")
	}
	if IsHot(0.7499, cfg) {
		t.Error("score below threshold should not be hot")
	}
}
