package momentum

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
)

func ptr[T any](v T) *T { return &v }

var baseDay = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func dayN(i int) time.Time { return baseDay.AddDate(0, 0, i) }

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// risingHistory builds n consecutive days for one entity with price 100+i,
// listings 50-i, DOM 30-i, ebay i.
func risingHistory(brand, ref string, n int) []domain.Observation {
	out := make([]domain.Observation, n)
	for i := 0; i < n; i++ {
		out[i] = domain.Observation{
			Date:           dayN(i),
			Brand:          brand,
			Reference:      ref,
			MedianPrice:    ptr(100.0 + float64(i)),
			ListingsActive: ptr(int64(50 - i)),
			DOMMedian:      ptr(30.0 - float64(i)),
			EbayActivity:   ptr(float64(i)),
		}
	}
	return out
}

func TestCompute_EmptyInput(t *testing.T) {
	e := NewEngine()
	if rows := e.Compute(nil); rows != nil {
		t.Fatalf("expected nil for empty input, got %d rows", len(rows))
	}
}

func TestCompute_MomentumColumns(t *testing.T) {
	e := NewEngine()
	rows := e.Compute(risingHistory("Rolex", "116500LN", 31))
	if len(rows) != 31 {
		t.Fatalf("expected 31 rows, got %d", len(rows))
	}

	last := rows[30]
	if last.Pct7 == nil || !approxEq(*last.Pct7, (130.0-123.0)/123.0*100) {
		t.Errorf("pct_7 = %v, want %.6f", last.Pct7, (130.0-123.0)/123.0*100)
	}
	if last.Pct14 == nil || !approxEq(*last.Pct14, (130.0-116.0)/116.0*100) {
		t.Errorf("pct_14 = %v, want %.6f", last.Pct14, (130.0-116.0)/116.0*100)
	}
	if last.Pct30 == nil || !approxEq(*last.Pct30, 30.0) {
		t.Errorf("pct_30 = %v, want 30.0", last.Pct30)
	}

	// 31 days is under the 90-day z-score window.
	if last.Z90 != nil {
		t.Errorf("z90 = %v, want nil for short history", *last.Z90)
	}

	// Listings fell from 34 to 20 over the trailing 14 days: percent change
	// is negative, the published supply delta flips the sign.
	wantSupply := -((20.0 - 34.0) / 34.0 * 100)
	if last.SupplyDelta14 == nil || !approxEq(*last.SupplyDelta14, wantSupply) {
		t.Errorf("supply_delta_14 = %v, want %.6f", last.SupplyDelta14, wantSupply)
	}

	// DOM fell from 14 to 0 over the trailing 14 days, likewise inverted.
	if last.DOMDelta14 == nil || !approxEq(*last.DOMDelta14, 100.0) {
		t.Errorf("dom_delta_14 = %v, want 100.0", last.DOMDelta14)
	}

	// Rising eBay activity ends at the top of its 30-day range.
	if last.EbayMom30 == nil || !approxEq(*last.EbayMom30, 1.0) {
		t.Errorf("ebay_mom_30 = %v, want 1.0", last.EbayMom30)
	}
}

func TestCompute_ShortHistoryAllMissing(t *testing.T) {
	e := NewEngine()
	rows := e.Compute(risingHistory("Rolex", "116500LN", 5))
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Pct7 != nil || row.Pct14 != nil || row.Pct30 != nil || row.Z90 != nil {
			t.Errorf("row %d: expected all price momentum missing for 5-day history", i)
		}
		if row.SupplyDelta14 != nil || row.DOMDelta14 != nil || row.EbayMom30 != nil {
			t.Errorf("row %d: expected all supply/dom/ebay momentum missing", i)
		}
	}
}

func TestCompute_OutputSortedByEntityThenDate(t *testing.T) {
	e := NewEngine()

	var input []domain.Observation
	input = append(input, risingHistory("Rolex", "126610LN", 3)...)
	input = append(input, risingHistory("Omega", "310.30", 3)...)
	input = append(input, risingHistory("Rolex", "116500LN", 3)...)
	// Shuffle dates within an entity too.
	input[0], input[2] = input[2], input[0]

	rows := e.Compute(input)
	if len(rows) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if prev.Brand > cur.Brand {
			t.Fatalf("rows not sorted by brand at %d: %s > %s", i, prev.Brand, cur.Brand)
		}
		if prev.Brand == cur.Brand && prev.Reference > cur.Reference {
			t.Fatalf("rows not sorted by reference at %d", i)
		}
		if prev.Brand == cur.Brand && prev.Reference == cur.Reference && prev.Date.After(cur.Date) {
			t.Fatalf("rows not sorted by date at %d", i)
		}
	}
}

func TestCompute_WorkerPoolMatchesSequential(t *testing.T) {
	var input []domain.Observation
	brands := []string{"Rolex", "Omega", "Tudor", "Cartier", "Zenith"}
	for i, brand := range brands {
		input = append(input, risingHistory(brand, "REF-A", 31+i)...)
		input = append(input, risingHistory(brand, "REF-B", 17+i)...)
	}

	sequential := NewEngine(WithWorkers(1)).Compute(input)
	parallel := NewEngine(WithWorkers(8)).Compute(input)

	if !reflect.DeepEqual(sequential, parallel) {
		t.Fatal("parallel computation differs from sequential")
	}
}

func TestCompute_GroupsAreIsolated(t *testing.T) {
	rich := risingHistory("Rolex", "116500LN", 31)

	alone := NewEngine().Compute(rich)

	mixed := append(append([]domain.Observation{}, rich...), risingHistory("Aaa", "THIN", 2)...)
	together := NewEngine().Compute(mixed)

	// The thin entity sorts first; the rich entity's rows must be untouched.
	richRows := together[2:]
	if !reflect.DeepEqual(alone, richRows) {
		t.Fatal("adding another entity changed an unrelated entity's columns")
	}
}

func TestCompute_DOMGateBlocksSparseSamples(t *testing.T) {
	history := risingHistory("Rolex", "116500LN", 20)
	// Leave only 10 DOM samples, under the 15-sample gate.
	for i := 10; i < 20; i++ {
		history[i].DOMMedian = nil
	}

	rows := NewEngine().Compute(history)
	for i, row := range rows {
		if row.DOMDelta14 != nil {
			t.Errorf("row %d: dom_delta_14 = %v, want nil under sample gate", i, *row.DOMDelta14)
		}
		// The supply column has no sample gate and stays live.
		if i >= 14 && row.SupplyDelta14 == nil {
			t.Errorf("row %d: supply_delta_14 missing, want value", i)
		}
	}
}

func TestCompute_DOMGatePassesAtFifteenSamples(t *testing.T) {
	history := risingHistory("Rolex", "116500LN", 20)
	for i := 15; i < 20; i++ {
		history[i].DOMMedian = nil
	}

	rows := NewEngine().Compute(history)
	if rows[14].DOMDelta14 == nil {
		t.Fatal("dom_delta_14 missing at day 14 with 15 samples present")
	}
	want := -((16.0 - 30.0) / 30.0 * 100)
	if !approxEq(*rows[14].DOMDelta14, want) {
		t.Errorf("dom_delta_14 = %.6f, want %.6f", *rows[14].DOMDelta14, want)
	}
}

func TestCompute_AbsentColumnDegradesToMissing(t *testing.T) {
	history := risingHistory("Rolex", "116500LN", 31)
	for i := range history {
		history[i].MedianPrice = nil
	}

	rows := NewEngine().Compute(history)
	for i, row := range rows {
		if row.Pct7 != nil || row.Pct14 != nil || row.Pct30 != nil || row.Z90 != nil {
			t.Errorf("row %d: price momentum present without any prices", i)
		}
	}
	// Other columns still compute from their own signals.
	if rows[30].SupplyDelta14 == nil {
		t.Error("supply_delta_14 missing, want value despite absent prices")
	}
}

func TestCompute_ZScoreOverNinetyDays(t *testing.T) {
	// Flat for 89 days, then a spike: the spike's z-score is positive and
	// large, the flat days before it are nil (zero deviation).
	history := make([]domain.Observation, 91)
	for i := range history {
		price := 100.0
		if i == 90 {
			price = 150.0
		}
		history[i] = domain.Observation{
			Date:        dayN(i),
			Brand:       "Rolex",
			Reference:   "116500LN",
			MedianPrice: ptr(price),
		}
	}

	rows := NewEngine().Compute(history)
	if rows[89].Z90 != nil {
		t.Errorf("z90 on flat window = %v, want nil", *rows[89].Z90)
	}
	if rows[90].Z90 == nil {
		t.Fatal("z90 missing on spike day")
	}
	if *rows[90].Z90 <= 0 {
		t.Errorf("z90 on spike = %.4f, want positive", *rows[90].Z90)
	}
}
