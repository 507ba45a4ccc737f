package profit

import (
	"math"
	"testing"

	"github.com/therealtplum/watch-heat/internal/config"
)

func ptr(v float64) *float64 { return &v }

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestOverlay_ReferenceVector(t *testing.T) {
	// price=1000 with the default fee set:
	// net = 1000*(1-0.104)-100 = 796.0, bids 796*0.92 and 796*0.90.
	cfg := config.DefaultScreener()

	net, bidLow, bidHigh := Overlay(ptr(1000.0), cfg)

	if net == nil || !approxEq(*net, 796.0) {
		t.Errorf("net = %v, want 796.0", net)
	}
	if bidLow == nil || !approxEq(*bidLow, 732.32) {
		t.Errorf("bidLow = %v, want 732.32", bidLow)
	}
	if bidHigh == nil || !approxEq(*bidHigh, 716.4) {
		t.Errorf("bidHigh = %v, want 716.4", bidHigh)
	}
}

func TestOverlay_MissingPrice(t *testing.T) {
	cfg := config.DefaultScreener()

	net, bidLow, bidHigh := Overlay(nil, cfg)

	if net != nil || bidLow != nil || bidHigh != nil {
		t.Errorf("missing price must yield all-missing outputs, got %v %v %v", net, bidLow, bidHigh)
	}
}

func TestOverlay_SmallerMarginMeansHigherBid(t *testing.T) {
	cfg := config.DefaultScreener()

	_, bidLow, bidHigh := Overlay(ptr(5000.0), cfg)

	if bidLow == nil || bidHigh == nil {
		t.Fatal("expected both bids present")
	}
	if *bidLow <= *bidHigh {
		t.Errorf("margin_min bid %v should exceed margin_max bid %v", *bidLow, *bidHigh)
	}
}

func TestOverlay_CheapWatchCanNetNegative(t *testing.T) {
	// Fees and shipping can exceed a cheap watch's price; the overlay
	// reports that faithfully rather than clamping.
	cfg := config.DefaultScreener()

	net, _, _ := Overlay(ptr(50.0), cfg)

	if net == nil {
		t.Fatal("expected net present")
	}
	if *net >= 0 {
		t.Errorf("expected negative net for a $50 watch with $100 shipping, got %v", *net)
	}
}
