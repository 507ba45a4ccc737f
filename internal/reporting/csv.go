package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// RenderCSV renders screen rows as CSV string. Missing values render as
// empty cells, never zero.
func RenderCSV(rows []domain.PricedRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("date,brand,reference,median_price,listings_active,dom_median,ebay_activity,")
	sb.WriteString("pct_7,pct_14,pct_30,z90,supply_delta_14,dom_delta_14,ebay_mom_30,")
	sb.WriteString("display_name,heat,is_hot,resale_net_after_fees,max_bid_for_8pct,max_bid_for_10pct\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%t,%s,%s,%s\n",
			r.Date.Format("2006-01-02"),
			csvEscape(r.Brand),
			csvEscape(r.Reference),
			csvFloat(r.MedianPrice),
			csvInt(r.ListingsActive),
			csvFloat(r.DOMMedian),
			csvFloat(r.EbayActivity),
			csvFloat(r.Pct7),
			csvFloat(r.Pct14),
			csvFloat(r.Pct30),
			csvFloat(r.Z90),
			csvFloat(r.SupplyDelta14),
			csvFloat(r.DOMDelta14),
			csvFloat(r.EbayMom30),
			csvEscape(r.Nickname),
			strconv.FormatFloat(r.Heat, 'f', -1, 64),
			r.IsHot,
			csvFloat(r.ResaleNet),
			csvFloat(r.MaxBidMarginLow),
			csvFloat(r.MaxBidMarginHigh),
		))
	}

	return sb.String()
}

// csvFloat renders an optional float in its shortest exact form, or an empty
// cell when missing.
func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// csvInt renders an optional integer, or an empty cell when missing.
func csvInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// csvEscape quotes a field containing separators, quotes, or newlines.
// Nicknames are free text and occasionally carry commas.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
}
