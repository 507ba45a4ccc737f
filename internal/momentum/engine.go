// Package momentum derives per-entity momentum columns from daily watch
// observations. Each (brand, reference) group is computed strictly from its
// own history; groups never see each other's data.
package momentum

import (
	"log"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/transform"
)

// Column windows. The z-score window tracks the screen's 90-day lookback;
// the delta windows are fixed properties of the published columns.
const (
	windowPct7    = 7
	windowPct14   = 14
	windowPct30   = 30
	windowZScore  = 90
	windowDelta   = 14
	windowEbayMom = 30

	// domMinSamples is the stricter gate for days-on-market: the group needs
	// at least this many non-missing DOM values, not just enough rows.
	// A 14-day window over mostly-missing DOM would report spurious deltas.
	domMinSamples = 15
)

// Engine computes derived momentum columns for a full observation set.
type Engine struct {
	workers int
	logger  *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of concurrent group workers.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a momentum engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers: runtime.NumCPU(),
		logger:  log.New(os.Stdout, "[momentum] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// Compute derives momentum columns for every observation. Groups are
// processed concurrently; the result is restored to a deterministic order
// by a final sort on (brand, reference, date). Empty input is logged and
// returned as-is: zero rows is a degenerate screen, not a failure.
func (e *Engine) Compute(observations []domain.Observation) []domain.DerivedRow {
	if len(observations) == 0 {
		e.logger.Printf("no observations to derive")
		return nil
	}

	e.warnAbsentColumns(observations)

	groups := groupByEntity(observations)
	keys := make([]domain.EntityKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}

	results := make([][]domain.DerivedRow, len(keys))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := e.workers
	if workers > len(keys) {
		workers = len(keys)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = deriveGroup(groups[keys[idx]])
			}
		}()
	}
	for i := range keys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make([]domain.DerivedRow, 0, len(observations))
	for _, rows := range results {
		out = append(out, rows...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Brand != out[j].Brand {
			return out[i].Brand < out[j].Brand
		}
		if out[i].Reference != out[j].Reference {
			return out[i].Reference < out[j].Reference
		}
		return out[i].Date.Before(out[j].Date)
	})

	e.logger.Printf("derived %d rows across %d entities", len(out), len(keys))
	return out
}

// deriveGroup computes all momentum columns for one entity's history,
// sorted by date ascending. Output preserves that order, one row per input.
func deriveGroup(group []domain.Observation) []domain.DerivedRow {
	sorted := make([]domain.Observation, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	n := len(sorted)
	price := make([]*float64, n)
	listings := make([]*float64, n)
	dom := make([]*float64, n)
	ebay := make([]*float64, n)
	for i, obs := range sorted {
		price[i] = obs.MedianPrice
		if obs.ListingsActive != nil {
			v := float64(*obs.ListingsActive)
			listings[i] = &v
		}
		dom[i] = obs.DOMMedian
		ebay[i] = obs.EbayActivity
	}

	pct7 := transform.PercentChange(price, windowPct7)
	pct14 := transform.PercentChange(price, windowPct14)
	pct30 := transform.PercentChange(price, windowPct30)
	z90 := transform.RollingZScore(price, windowZScore)
	supply := transform.Negate(transform.PercentChange(listings, windowDelta))

	// DOM carries its stricter sample gate on top of the length gate.
	var domDelta []*float64
	if n > windowDelta && nonNilCount(dom) >= domMinSamples {
		domDelta = transform.Negate(transform.PercentChange(dom, windowDelta))
	} else {
		domDelta = make([]*float64, n)
	}

	ebayMom := transform.RangeMomentum(ebay, windowEbayMom)

	rows := make([]domain.DerivedRow, n)
	for i, obs := range sorted {
		rows[i] = domain.DerivedRow{
			Observation:   obs,
			Pct7:          pct7[i],
			Pct14:         pct14[i],
			Pct30:         pct30[i],
			Z90:           z90[i],
			SupplyDelta14: supply[i],
			DOMDelta14:    domDelta[i],
			EbayMom30:     ebayMom[i],
		}
	}
	return rows
}

// warnAbsentColumns logs when a required signal was never supplied at all.
// An absent column degrades that signal to all-missing; it never fails a run.
func (e *Engine) warnAbsentColumns(observations []domain.Observation) {
	var hasPrice, hasListings, hasDOM bool
	for _, obs := range observations {
		hasPrice = hasPrice || obs.MedianPrice != nil
		hasListings = hasListings || obs.ListingsActive != nil
		hasDOM = hasDOM || obs.DOMMedian != nil
		if hasPrice && hasListings && hasDOM {
			return
		}
	}
	if !hasPrice {
		e.logger.Printf("warning: median_price absent from input, price momentum will be missing")
	}
	if !hasListings {
		e.logger.Printf("warning: listings_active absent from input, supply delta will be missing")
	}
	if !hasDOM {
		e.logger.Printf("warning: dom_median absent from input, dom delta will be missing")
	}
}

func groupByEntity(observations []domain.Observation) map[domain.EntityKey][]domain.Observation {
	groups := make(map[domain.EntityKey][]domain.Observation)
	for _, obs := range observations {
		key := obs.Key()
		groups[key] = append(groups[key], obs)
	}
	return groups
}

func nonNilCount(series []*float64) int {
	n := 0
	for _, v := range series {
		if v != nil {
			n++
		}
	}
	return n
}
