package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Watch Heat Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run Date: %s | Total Watches: %d | Hot Watches: %d\n\n",
		r.RunDate.Format("2006-01-02"), r.Summary.TotalWatches, r.Summary.HotWatches))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Watches | %d |\n", r.Summary.TotalWatches))
	sb.WriteString(fmt.Sprintf("| Hot Watches | %d |\n", r.Summary.HotWatches))
	sb.WriteString(fmt.Sprintf("| Avg Heat Score | %.2f |\n", r.Summary.AvgHeat))
	sb.WriteString(fmt.Sprintf("| Max Heat Score | %.2f |\n", r.Summary.MaxHeat))
	sb.WriteString("\n")

	// History coverage
	sb.WriteString("## History Coverage\n\n")
	if len(r.Coverage.Checks) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.Coverage.Checks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")

		if r.Coverage.AllPass {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Sparse momentum columns below are data gaps, not zeros.\n\n")
		}
	} else {
		sb.WriteString("No coverage checks performed.\n\n")
	}

	// Screen table
	sb.WriteString("## Screen\n\n")
	if len(r.Rows) > 0 {
		sb.WriteString("| Brand | Reference | Name | Price | Δ7d% | Δ14d% | Δ30d% | Z90 | DOM Δ14% | Supply Δ14% | eBay Mom30 | Heat | Hot | Max Bid (8%) | Max Bid (10%) |\n")
		sb.WriteString("|-------|-----------|------|-------|------|-------|-------|-----|----------|-------------|------------|------|-----|--------------|---------------|\n")
		for _, row := range r.Rows {
			hot := ""
			if row.IsHot {
				hot = "HOT"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %+.2f | %s | %s | %s |\n",
				row.Brand, row.Reference, row.Nickname,
				moneyCell(row.MedianPrice),
				signedCell(row.Pct7, 1), signedCell(row.Pct14, 1), signedCell(row.Pct30, 1),
				signedCell(row.Z90, 2),
				signedCell(row.DOMDelta14, 1), signedCell(row.SupplyDelta14, 1),
				signedCell(row.EbayMom30, 2),
				row.Heat, hot,
				moneyCell(row.MaxBidMarginLow), moneyCell(row.MaxBidMarginHigh)))
		}
	} else {
		sb.WriteString("No screen rows available.\n")
	}
	sb.WriteString("\n")

	// Hot criteria breakdown
	sb.WriteString("## Hot Watches\n\n")
	if len(r.HotVerdicts) > 0 {
		for _, v := range r.HotVerdicts {
			name := v.Row.Brand + " " + v.Row.Reference
			if v.Row.Nickname != "" {
				name += " (" + v.Row.Nickname + ")"
			}
			sb.WriteString(fmt.Sprintf("### %s\n\n", name))
			sb.WriteString("| Criterion | Threshold | Actual | Status |\n")
			sb.WriteString("|-----------|-----------|--------|--------|\n")
			for _, c := range v.Criteria {
				status := "FAIL"
				if c.Pass {
					status = "PASS"
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
					c.Name, c.Threshold, c.Actual, status))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No hot watches this run.\n\n")
	}

	// Fee footnote
	sb.WriteString(feeLine(r.Fees))
	sb.WriteString("\n")

	return sb.String()
}

// feeLine states the fee assumptions behind the bid columns.
func feeLine(f FeeNote) string {
	return fmt.Sprintf(
		"Max bids assume a %.1f%% selling fee, %.1f%% payment fee, %.1f%% cost buffer, and $%.0f flat shipping and insurance per watch.",
		f.SellingFeeRate*100, f.PaymentFeeRate*100, f.MiscBufferRate*100, f.ShippingInsurance)
}

// moneyCell renders an optional dollar amount rounded to whole dollars, with
// an em dash standing in for missing values.
func moneyCell(v *float64) string {
	if v == nil {
		return "—"
	}
	return "$" + humanize.CommafWithDigits(math.Round(*v), 0)
}

// signedCell renders an optional signed value at the given precision, with
// an em dash standing in for missing values.
func signedCell(v *float64, digits int) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%+.*f", digits, *v)
}
