// Package screen assembles the final ranked screen table: one snapshot date
// sliced from the derived history, filtered for liquidity, scored, ranked,
// and priced.
package screen

import (
	"errors"
	"log"
	"os"
	"sort"
	"time"

	"github.com/therealtplum/watch-heat/internal/config"
	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/heat"
	"github.com/therealtplum/watch-heat/internal/profit"
)

// ErrNoRows means every row was filtered out and there is nothing to screen.
var ErrNoRows = errors.New("no rows meet minimum listing requirement")

// Screener builds ranked screen tables from derived rows.
type Screener struct {
	cfg    config.Screener
	logger *log.Logger
}

// Option configures a Screener.
type Option func(*Screener)

// WithLogger sets the screener's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Screener) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScreener creates a screener with the given thresholds and fee rates.
func NewScreener(cfg config.Screener, opts ...Option) *Screener {
	s := &Screener{
		cfg:    cfg,
		logger: log.New(os.Stdout, "[screen] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot slices the rows carrying one run date. When runDate is nil, or no
// rows carry the requested date, the most recent date present in the input is
// used instead. Returns the slice and the date actually used; empty input
// yields an empty slice and a zero date.
func (s *Screener) Snapshot(rows []domain.DerivedRow, runDate *time.Time) ([]domain.DerivedRow, time.Time) {
	if len(rows) == 0 {
		return nil, time.Time{}
	}

	var latest time.Time
	for _, r := range rows {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}

	date := latest
	if runDate != nil {
		date = domain.Day(*runDate)
	}

	snap := sliceAt(rows, date)
	if len(snap) == 0 && !date.Equal(latest) {
		s.logger.Printf("no rows for %s, falling back to most recent date %s",
			date.Format("2006-01-02"), latest.Format("2006-01-02"))
		date = latest
		snap = sliceAt(rows, date)
	}
	return snap, date
}

// Apply filters, scores, ranks, and prices one snapshot. Universe nicknames
// are attached by (brand, reference); rows thinner than MinListings are
// dropped, with missing listing counts treated as zero. Returns ErrNoRows
// when the filter leaves nothing.
func (s *Screener) Apply(rows []domain.DerivedRow, universe []domain.WatchRef) ([]domain.PricedRow, error) {
	nicknames := make(map[domain.EntityKey]string, len(universe))
	for _, ref := range universe {
		nicknames[ref.Key()] = ref.Nickname
	}

	out := make([]domain.PricedRow, 0, len(rows))
	for _, row := range rows {
		var listings int64
		if row.ListingsActive != nil {
			listings = *row.ListingsActive
		}
		if listings < s.cfg.MinListings {
			continue
		}

		score := heat.Score(row)
		priced := domain.PricedRow{
			DerivedRow: row,
			Nickname:   nicknames[row.Key()],
			Heat:       score,
			IsHot:      heat.IsHot(score, s.cfg),
		}
		priced.ResaleNet, priced.MaxBidMarginLow, priced.MaxBidMarginHigh =
			profit.Overlay(row.MedianPrice, s.cfg)
		out = append(out, priced)
	}

	if dropped := len(rows) - len(out); dropped > 0 {
		s.logger.Printf("filtered out %d watches with < %d listings", dropped, s.cfg.MinListings)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsHot != out[j].IsHot {
			return out[i].IsHot
		}
		if out[i].Heat != out[j].Heat {
			return out[i].Heat > out[j].Heat
		}
		if out[i].Brand != out[j].Brand {
			return out[i].Brand < out[j].Brand
		}
		return out[i].Reference < out[j].Reference
	})

	hot := 0
	for _, row := range out {
		if row.IsHot {
			hot++
		}
	}
	s.logger.Printf("screened %d watches, %d hot (heat >= %.2f)", len(out), hot, s.cfg.HeatThreshold)
	return out, nil
}

func sliceAt(rows []domain.DerivedRow, date time.Time) []domain.DerivedRow {
	var snap []domain.DerivedRow
	for _, r := range rows {
		if r.Date.Equal(date) {
			snap = append(snap, r)
		}
	}
	return snap
}
