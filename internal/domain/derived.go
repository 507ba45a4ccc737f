package domain

// DerivedRow represents an Observation extended with per-entity momentum columns.
// Corresponds to watch_derived table in ClickHouse.
//
// Every derived field is nullable: NULL means "not computable from this
// entity's history", which is distinct from zero and must propagate as-is.
type DerivedRow struct {
	Observation
	Pct7          *float64 // 7-day median price change, percent
	Pct14         *float64 // 14-day median price change, percent
	Pct30         *float64 // 30-day median price change, percent
	Z90           *float64 // price z-score over trailing 90 days
	SupplyDelta14 *float64 // negated 14-day change of active listings, percent
	DOMDelta14    *float64 // negated 14-day change of median days-on-market, percent
	EbayMom30     *float64 // min-max normalized eBay activity trend over 30 days, in [-1, 1]
}
