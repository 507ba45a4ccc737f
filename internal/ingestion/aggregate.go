package ingestion

import (
	"sort"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// AggregateDaily reduces a listing event log to daily market observations.
// For each watch and day, a listing's last event that day decides its state:
// listings left LISTED or PRICE_CHANGED count as active, and the median of
// their asking prices becomes the day's median ask. Days where every sighted
// listing ended DELISTED or SOLD yield an active count of zero and a missing
// median. Output is ordered by (brand, reference, date).
func AggregateDaily(events []domain.ListingEvent) []domain.Observation {
	type dayKey struct {
		brand     string
		reference string
		unix      int64
	}

	last := make(map[dayKey]map[string]domain.ListingEvent)
	for _, e := range events {
		dk := dayKey{brand: e.Brand, reference: e.Reference, unix: domain.Day(e.ObservedAt).Unix()}
		listings := last[dk]
		if listings == nil {
			listings = make(map[string]domain.ListingEvent)
			last[dk] = listings
		}
		prev, seen := listings[e.ListingID]
		// Later events supersede; on equal timestamps slice order decides.
		if !seen || !e.ObservedAt.Before(prev.ObservedAt) {
			listings[e.ListingID] = e
		}
	}

	out := make([]domain.Observation, 0, len(last))
	for dk, listings := range last {
		var active int64
		var prices []float64
		for _, e := range listings {
			switch e.Status {
			case domain.ListingStatusListed, domain.ListingStatusPriceChanged:
				active++
				if e.Price != nil {
					prices = append(prices, *e.Price)
				}
			}
		}

		o := domain.Observation{
			Date:           time.Unix(dk.unix, 0).UTC(),
			Brand:          dk.brand,
			Reference:      dk.reference,
			ListingsActive: &active,
		}
		if len(prices) > 0 {
			m := medianFloat(prices)
			o.MedianPrice = &m
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Brand != out[j].Brand {
			return out[i].Brand < out[j].Brand
		}
		if out[i].Reference != out[j].Reference {
			return out[i].Reference < out[j].Reference
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// medianFloat returns the median, averaging the two middle values for an
// even count.
func medianFloat(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
