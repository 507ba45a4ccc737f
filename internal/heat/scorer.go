// Package heat reduces a row's momentum columns to a single composite score.
package heat

import (
	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/transform"
)

// Component weights. Price momentum dominates; demand-side signals and the
// longer-horizon deviation act as tiebreakers.
const (
	weightPct14       = 0.35
	weightPct30       = 0.25
	weightDOMDelta    = 0.20
	weightSupplyDelta = 0.20
	weightZ90         = 0.10
	weightEbayMom     = 0.10

	// Percent deltas are scored on a 10%-per-unit scale; z90 contributes
	// at most its cap.
	pctScale = 10.0
	zCap     = 3.0
)

// Score computes the weighted momentum composite for one derived row.
// Missing components are skipped, not zero-filled: a watch without eBay data
// is not penalized for the gap. A row with every component missing scores
// exactly 0. Fields outside the six components never affect the result.
func Score(row domain.DerivedRow) float64 {
	score := 0.0
	if row.Pct14 != nil {
		score += weightPct14 * (*row.Pct14 / pctScale)
	}
	if row.Pct30 != nil {
		score += weightPct30 * (*row.Pct30 / pctScale)
	}
	if row.DOMDelta14 != nil {
		score += weightDOMDelta * (*row.DOMDelta14 / pctScale)
	}
	if row.SupplyDelta14 != nil {
		score += weightSupplyDelta * (*row.SupplyDelta14 / pctScale)
	}
	if row.Z90 != nil {
		score += weightZ90 * (transform.Clamp(*row.Z90, 0, zCap) / zCap)
	}
	if row.EbayMom30 != nil {
		score += weightEbayMom * transform.Clamp(*row.EbayMom30, -1, 1)
	}
	return score
}

// IsHot reports whether a score crosses the configured threshold.
func IsHot(score float64, cfg config.Screener) bool {
	return score >= cfg.HeatThreshold
}
