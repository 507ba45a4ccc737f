// Package profit derives fee-adjusted resale proceeds and maximum bid prices
// from a row's latest median price.
package profit

import (
	"github.com/therealtplum/watch-heat/internal/config"
)

// Overlay computes net resale proceeds after fees and the maximum bids that
// preserve the two target margins:
//
//	net     = price * (1 - (selling + payment + misc)) - shipping_insurance
//	bidLow  = net * (1 - margin_min)   // smaller margin, higher bid
//	bidHigh = net * (1 - margin_max)
//
// A missing price yields all-missing outputs, never zero or an accidental
// negative.
func Overlay(medianPrice *float64, cfg config.Screener) (net, bidLow, bidHigh *float64) {
	if medianPrice == nil {
		return nil, nil, nil
	}

	feeRate := cfg.SellingFeeRate + cfg.PaymentFeeRate + cfg.MiscBufferRate
	n := *medianPrice*(1-feeRate) - cfg.ShippingInsurance
	low := n * (1 - cfg.TargetMarginMin)
	high := n * (1 - cfg.TargetMarginMax)
	return &n, &low, &high
}
