package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// MemoryPublisher is an in-memory Publisher for tests and broker-less runs.
type MemoryPublisher struct {
	mu     sync.Mutex
	alerts []Alert
	closed bool
}

// NewMemoryPublisher creates a new in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// PublishHot implements Publisher.
func (p *MemoryPublisher) PublishHot(_ context.Context, runDate time.Time, rows []domain.PricedRow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, row := range rows {
		if !row.IsHot {
			continue
		}
		p.alerts = append(p.alerts, newAlert(runDate, row))
	}
	return nil
}

// Close implements Publisher.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Alerts returns a copy of everything published so far.
func (p *MemoryPublisher) Alerts() []Alert {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Alert, len(p.alerts))
	copy(out, p.alerts)
	return out
}

// Closed reports whether Close has been called.
func (p *MemoryPublisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
