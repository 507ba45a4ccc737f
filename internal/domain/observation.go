package domain

import "time"

// Observation represents one watch model's market snapshot for one calendar day.
// Corresponds to watch_observations table in ClickHouse.
type Observation struct {
	Date           time.Time // calendar day, UTC midnight
	Brand          string    // manufacturer, e.g. "Rolex"
	Reference      string    // model reference, e.g. "116500LN"
	MedianPrice    *float64  // median asking price across active listings, NULL if unknown
	ListingsActive *int64    // count of active listings, NULL if unknown
	DOMMedian      *float64  // median days-on-market of active listings, NULL if unknown
	EbayActivity   *float64  // eBay active-listing count for the model, NULL if not sampled
}

// EntityKey identifies one watch model. All time-series grouping keys on it.
type EntityKey struct {
	Brand     string
	Reference string
}

// Key returns the observation's entity key.
func (o Observation) Key() EntityKey {
	return EntityKey{Brand: o.Brand, Reference: o.Reference}
}

// Day truncates t to UTC midnight, the canonical observation date.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
