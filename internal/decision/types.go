package decision

import "github.com/therealtplum/watch-heat/internal/domain"

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Verdict is one screened row's hot assessment with its criteria breakdown.
// Pass mirrors the row's is_hot flag as long as the row also clears the
// liquidity floor.
type Verdict struct {
	Row      domain.PricedRow
	Pass     bool
	Criteria []CriterionResult
}
