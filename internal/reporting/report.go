package reporting

import (
	"time"

	"github.com/therealtplum/watch-heat/internal/decision"
	"github.com/therealtplum/watch-heat/internal/domain"
)

// Report represents one screen run's assembled output.
type Report struct {
	// Metadata
	RunDate     time.Time // snapshot date the screen ranked, UTC midnight
	GeneratedAt time.Time

	// Headline numbers
	Summary Summary

	// History coverage (sufficiency checks)
	Coverage CoverageSection

	// Ranked screen rows (hot first, then heat descending)
	Rows []domain.PricedRow

	// Criteria breakdown for the rows flagged hot, in rank order
	HotVerdicts []decision.Verdict

	// Fee assumptions behind the priced columns
	Fees FeeNote
}

// Summary contains the run's headline numbers. Heat stats cover every
// screened row, hot or not.
type Summary struct {
	TotalWatches int
	HotWatches   int
	AvgHeat      float64
	MaxHeat      float64
}

// CoverageSection contains history sufficiency checks.
type CoverageSection struct {
	Checks  []CoverageCheckRow
	AllPass bool
}

// CoverageCheckRow represents one coverage criterion.
type CoverageCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// FeeNote carries the fee constants the bid columns were computed with, so
// rendered reports state their own assumptions.
type FeeNote struct {
	SellingFeeRate    float64
	PaymentFeeRate    float64
	MiscBufferRate    float64
	ShippingInsurance float64
}
