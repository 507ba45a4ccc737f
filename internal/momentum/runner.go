package momentum

import (
	"context"
	"fmt"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// Runner loads observation history, derives momentum columns, and persists
// the derived rows for downstream screening.
type Runner struct {
	observations storage.ObservationStore
	derived      storage.DerivedRowStore
	engine       *Engine
}

// NewRunner creates a momentum runner over the given stores.
func NewRunner(observations storage.ObservationStore, derived storage.DerivedRowStore, engine *Engine) *Runner {
	if engine == nil {
		engine = NewEngine()
	}
	return &Runner{
		observations: observations,
		derived:      derived,
		engine:       engine,
	}
}

// DeriveAll computes momentum columns over the full stored history.
func (r *Runner) DeriveAll(ctx context.Context) ([]domain.DerivedRow, error) {
	history, err := r.observations.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	return r.derive(ctx, history)
}

// DeriveSince computes momentum columns over observations on or after since.
// Windows near the cut start expanding again, so callers should load at
// least the longest window's worth of extra history before the screen date.
func (r *Runner) DeriveSince(ctx context.Context, since time.Time) ([]domain.DerivedRow, error) {
	history, err := r.observations.GetSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load observations since %s: %w", since.Format("2006-01-02"), err)
	}
	return r.derive(ctx, history)
}

func (r *Runner) derive(ctx context.Context, history []domain.Observation) ([]domain.DerivedRow, error) {
	rows := r.engine.Compute(history)
	if len(rows) > 0 {
		if err := r.derived.InsertBulk(ctx, rows); err != nil {
			return nil, fmt.Errorf("store derived rows: %w", err)
		}
	}
	return rows, nil
}
