package domain

import "time"

// ListingStatus represents the lifecycle state reported for a marketplace listing.
type ListingStatus string

const (
	ListingStatusListed       ListingStatus = "LISTED"
	ListingStatusPriceChanged ListingStatus = "PRICE_CHANGED"
	ListingStatusDelisted     ListingStatus = "DELISTED"
	ListingStatusSold         ListingStatus = "SOLD"
)

// String returns the string representation of ListingStatus.
func (s ListingStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingStatusListed, ListingStatusPriceChanged, ListingStatusDelisted, ListingStatusSold:
		return true
	}
	return false
}

// ListingEvent represents one marketplace listing state change, observed either
// on the live feed or by a point-in-time scrape.
// Corresponds to listing_events table in PostgreSQL.
type ListingEvent struct {
	EventID     string        // PRIMARY KEY, deterministic hash
	Marketplace string        // source marketplace, e.g. "chrono24", "ebay"
	Brand       string        // manufacturer
	Reference   string        // model reference
	ListingID   string        // marketplace-scoped listing identifier
	Price       *float64      // asking price in Currency, NULL for delist/sold events without one
	Currency    string        // ISO 4217 code, e.g. "USD"
	Status      ListingStatus // LISTED | PRICE_CHANGED | DELISTED | SOLD
	ObservedAt  time.Time     // when the event was observed
}

// Key returns the event's entity key.
func (e ListingEvent) Key() EntityKey {
	return EntityKey{Brand: e.Brand, Reference: e.Reference}
}
