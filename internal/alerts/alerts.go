// Package alerts publishes hot-watch alerts after a screen run.
package alerts

import (
	"context"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// Publisher delivers hot-row alerts to downstream consumers.
type Publisher interface {
	// PublishHot delivers one alert per hot row, skipping rows not flagged
	// hot. Safe to call once per run with the full screen table.
	PublishHot(ctx context.Context, runDate time.Time, rows []domain.PricedRow) error

	// Close releases the publisher's resources.
	Close() error
}

// Alert is the payload delivered per hot row.
type Alert struct {
	RunDate        string   `json:"run_date"`
	Brand          string   `json:"brand"`
	Reference      string   `json:"reference"`
	Nickname       string   `json:"nickname,omitempty"`
	MedianPrice    *float64 `json:"median_price"`
	ListingsActive *int64   `json:"listings_active"`
	Heat           float64  `json:"heat"`
	Pct14          *float64 `json:"pct_14"`
	Pct30          *float64 `json:"pct_30"`
	MaxBidLow      *float64 `json:"max_bid_for_8pct"`
	MaxBidHigh     *float64 `json:"max_bid_for_10pct"`
}

// newAlert maps one hot row into its alert payload.
func newAlert(runDate time.Time, row domain.PricedRow) Alert {
	return Alert{
		RunDate:        runDate.Format("2006-01-02"),
		Brand:          row.Brand,
		Reference:      row.Reference,
		Nickname:       row.Nickname,
		MedianPrice:    row.MedianPrice,
		ListingsActive: row.ListingsActive,
		Heat:           row.Heat,
		Pct14:          row.Pct14,
		Pct30:          row.Pct30,
		MaxBidLow:      row.MaxBidMarginLow,
		MaxBidHigh:     row.MaxBidMarginHigh,
	}
}
