// Package config holds the screener's tunable knobs and their environment bindings.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// Screener holds every threshold and fee constant the scoring and pricing
// layers consume. Both are pure functions; nothing reads these from globals.
type Screener struct {
	MinListings       int64   // drop snapshot rows with fewer active listings
	HeatThreshold     float64 // heat >= threshold marks a row hot
	TargetMarginMin   float64 // smaller resale margin, yields the higher max bid
	TargetMarginMax   float64 // larger resale margin
	SellingFeeRate    float64 // marketplace selling fee, fraction of price
	PaymentFeeRate    float64 // payment processor fee, fraction of price
	MiscBufferRate    float64 // authentication/photography/misc buffer, fraction of price
	ShippingInsurance float64 // flat shipping + insurance cost per watch
	LookbackDays      int     // history window requested from sources
	Workers           int     // momentum worker pool size
}

// Config is the full application configuration: screener knobs plus
// collaborator endpoints and credentials.
type Config struct {
	Screener Screener

	WatchChartsAPIKey string
	EbayAppID         string
	EbayOAuthToken    string

	PostgresDSN   string
	ClickHouseDSN string
	KafkaBrokers  string // comma-separated, empty disables alerts
	CachePath     string // sqlite history cache file
	FeedURL       string // live listing feed websocket URL, empty disables
	OutputDir     string // report output directory
	UniversePath  string // watch universe CSV
}

// DefaultScreener returns the screener knobs the original screen was tuned with.
func DefaultScreener() Screener {
	return Screener{
		MinListings:       5,
		HeatThreshold:     0.75,
		TargetMarginMin:   0.08,
		TargetMarginMax:   0.10,
		SellingFeeRate:    0.065,
		PaymentFeeRate:    0.029,
		MiscBufferRate:    0.01,
		ShippingInsurance: 100.0,
		LookbackDays:      90,
		Workers:           runtime.NumCPU(),
	}
}

// FromEnv builds a Config from the environment, falling back to defaults.
// Run godotenv.Load first if a .env file should participate.
func FromEnv() *Config {
	s := DefaultScreener()
	s.MinListings = getEnvInt64("WH_MIN_LISTINGS", s.MinListings)
	s.HeatThreshold = getEnvFloat("WH_HEAT_THRESHOLD", s.HeatThreshold)
	s.TargetMarginMin = getEnvFloat("WH_TARGET_MARGIN_MIN", s.TargetMarginMin)
	s.TargetMarginMax = getEnvFloat("WH_TARGET_MARGIN_MAX", s.TargetMarginMax)
	s.SellingFeeRate = getEnvFloat("WH_SELLING_FEE_RATE", s.SellingFeeRate)
	s.PaymentFeeRate = getEnvFloat("WH_PAYMENT_FEE_RATE", s.PaymentFeeRate)
	s.MiscBufferRate = getEnvFloat("WH_MISC_BUFFER_RATE", s.MiscBufferRate)
	s.ShippingInsurance = getEnvFloat("WH_SHIPPING_INSURANCE", s.ShippingInsurance)
	s.LookbackDays = getEnvInt("WH_LOOKBACK_DAYS", s.LookbackDays)
	s.Workers = getEnvInt("WH_WORKERS", s.Workers)

	return &Config{
		Screener:          s,
		WatchChartsAPIKey: os.Getenv("WATCHCHARTS_API_KEY"),
		EbayAppID:         os.Getenv("EBAY_APP_ID"),
		EbayOAuthToken:    os.Getenv("EBAY_OAUTH_TOKEN"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		ClickHouseDSN:     os.Getenv("CLICKHOUSE_DSN"),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		CachePath:         getEnv("WH_CACHE_PATH", ".cache/watch_history.db"),
		FeedURL:           os.Getenv("WH_FEED_URL"),
		OutputDir:         getEnv("WH_OUTPUT_DIR", "data"),
		UniversePath:      getEnv("WH_UNIVERSE_PATH", "watch_universe.csv"),
	}
}

// Validate rejects knob combinations the screen cannot run with.
func (s Screener) Validate() error {
	if s.TargetMarginMin > s.TargetMarginMax {
		return fmt.Errorf("target margin min %.3f exceeds max %.3f", s.TargetMarginMin, s.TargetMarginMax)
	}
	if rate := s.SellingFeeRate + s.PaymentFeeRate + s.MiscBufferRate; rate < 0 || rate >= 1 {
		return fmt.Errorf("combined fee rate %.3f outside [0, 1)", rate)
	}
	if s.LookbackDays <= 0 {
		return fmt.Errorf("lookback days must be positive, got %d", s.LookbackDays)
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
