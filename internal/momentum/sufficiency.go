package momentum

import (
	"fmt"
	"sort"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// HistoryStats summarizes how much usable history one entity carries.
// Reports surface these so a thin column is attributable to thin data
// rather than a computation defect.
type HistoryStats struct {
	Key        domain.EntityKey
	Days       int  // observation rows for the entity
	PricedDays int  // rows with a median price
	DOMSamples int  // rows with a days-on-market value
	HasEbay    bool // any eBay activity sample seen
}

// CoverageCheck represents one dataset-level coverage criterion.
type CoverageCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// CoverageSummary describes the dataset's overall readiness for the screen.
type CoverageSummary struct {
	Entities []HistoryStats
	Checks   []CoverageCheck
	AllPass  bool
}

// SummarizeCoverage computes per-entity history stats and dataset-level
// coverage checks. Failing checks never block a run; they annotate the
// report so missing columns read as data gaps.
func SummarizeCoverage(observations []domain.Observation) *CoverageSummary {
	byEntity := make(map[domain.EntityKey]*HistoryStats)
	for _, obs := range observations {
		key := obs.Key()
		stats, ok := byEntity[key]
		if !ok {
			stats = &HistoryStats{Key: key}
			byEntity[key] = stats
		}
		stats.Days++
		if obs.MedianPrice != nil {
			stats.PricedDays++
		}
		if obs.DOMMedian != nil {
			stats.DOMSamples++
		}
		if obs.EbayActivity != nil {
			stats.HasEbay = true
		}
	}

	entities := make([]HistoryStats, 0, len(byEntity))
	for _, stats := range byEntity {
		entities = append(entities, *stats)
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Key.Brand != entities[j].Key.Brand {
			return entities[i].Key.Brand < entities[j].Key.Brand
		}
		return entities[i].Key.Reference < entities[j].Key.Reference
	})

	summary := &CoverageSummary{Entities: entities, AllPass: true}
	summary.add(checkEntitiesPresent(entities))
	summary.add(checkWindow(entities, "pct_30 window", windowPct30+1, func(s HistoryStats) int { return s.PricedDays }))
	summary.add(checkWindow(entities, "z90 window", windowZScore, func(s HistoryStats) int { return s.Days }))
	summary.add(checkWindow(entities, "dom samples", domMinSamples, func(s HistoryStats) int { return s.DOMSamples }))
	return summary
}

func (s *CoverageSummary) add(check CoverageCheck) {
	s.Checks = append(s.Checks, check)
	if !check.Pass {
		s.AllPass = false
	}
}

func checkEntitiesPresent(entities []HistoryStats) CoverageCheck {
	return CoverageCheck{
		Name:      "Entities with history",
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d", len(entities)),
		Pass:      len(entities) >= 1,
	}
}

// checkWindow reports how many entities satisfy a minimum-count requirement.
func checkWindow(entities []HistoryStats, name string, minCount int, count func(HistoryStats) int) CoverageCheck {
	satisfied := 0
	for _, stats := range entities {
		if count(stats) >= minCount {
			satisfied++
		}
	}
	return CoverageCheck{
		Name:      "Entities covering " + name,
		Threshold: fmt.Sprintf(">= %d values", minCount),
		Actual:    fmt.Sprintf("%d/%d entities", satisfied, len(entities)),
		Pass:      len(entities) > 0 && satisfied > 0,
	}
}
