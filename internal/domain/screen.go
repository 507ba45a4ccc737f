package domain

// PricedRow represents a screened watch: a snapshot-date DerivedRow plus its
// heat score and fee-adjusted bid prices. Rows like these form the final
// ranked screen table; they are produced per run and never persisted.
type PricedRow struct {
	DerivedRow
	Nickname         string   // display name from the universe, empty if unknown
	Heat             float64  // weighted momentum composite, typically in [0, ~1.2]
	IsHot            bool     // Heat >= configured threshold
	ResaleNet        *float64 // resale proceeds after fees, NULL if price unknown
	MaxBidMarginLow  *float64 // max bid at the smaller target margin (higher bid), NULL if price unknown
	MaxBidMarginHigh *float64 // max bid at the larger target margin, NULL if price unknown
}
