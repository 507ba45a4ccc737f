package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/idhash"
	"github.com/therealtplum/watch-heat/internal/observability"
	"github.com/therealtplum/watch-heat/internal/storage"
)

// FeedConfig configures live feed behavior.
type FeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// BatchSize is the number of events buffered before a store flush.
	BatchSize int
	// FlushInterval forces a store flush for partial batches.
	FlushInterval time.Duration
	// SubscribeMessage, when set, is sent after every (re)connect.
	SubscribeMessage []byte
}

// DefaultFeedConfig returns default live feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		BatchSize:         100,
		FlushInterval:     2 * time.Second,
	}
}

// feedMessage is the wire form of one listing event.
type feedMessage struct {
	Marketplace string    `json:"marketplace"`
	Brand       string    `json:"brand"`
	Reference   string    `json:"reference"`
	ListingID   string    `json:"listing_id"`
	Price       *float64  `json:"price"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	ObservedAt  time.Time `json:"observed_at"`
}

// toEvent validates the message and assigns the deterministic event id.
func (m feedMessage) toEvent() (domain.ListingEvent, error) {
	if m.Marketplace == "" || m.Brand == "" || m.Reference == "" || m.ListingID == "" {
		return domain.ListingEvent{}, fmt.Errorf("missing identity fields")
	}
	status := domain.ListingStatus(strings.ToUpper(m.Status))
	if !status.IsValid() {
		return domain.ListingEvent{}, fmt.Errorf("unknown status %q", m.Status)
	}
	observedAt := m.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}
	currency := m.Currency
	if currency == "" {
		currency = "USD"
	}
	return domain.ListingEvent{
		EventID:     idhash.ComputeEventID(m.Marketplace, m.Brand, m.Reference, m.ListingID, status, observedAt, m.Price),
		Marketplace: m.Marketplace,
		Brand:       m.Brand,
		Reference:   m.Reference,
		ListingID:   m.ListingID,
		Price:       m.Price,
		Currency:    currency,
		Status:      status,
		ObservedAt:  observedAt,
	}, nil
}

// LiveFeed consumes a marketplace listing event stream over WebSocket and
// persists decoded events in batches. The connection is re-established with
// exponential backoff; because event ids are deterministic, events
// redelivered after a reconnect deduplicate in the store.
type LiveFeed struct {
	endpoint string
	config   FeedConfig
	events   storage.ListingEventStore
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	pending chan domain.ListingEvent

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewLiveFeed connects to the feed endpoint and starts consuming.
func NewLiveFeed(ctx context.Context, endpoint string, events storage.ListingEventStore, config *FeedConfig, logger *log.Logger) (*LiveFeed, error) {
	cfg := DefaultFeedConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[livefeed] ", log.LstdFlags)
	}

	f := &LiveFeed{
		endpoint: endpoint,
		config:   cfg,
		events:   events,
		logger:   logger,
		pending:  make(chan domain.ListingEvent, 10*cfg.BatchSize),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(3)
	go f.readLoop()
	go f.pingLoop()
	go f.writeLoop()

	return f, nil
}

// connect establishes the WebSocket connection and sends the subscribe
// message when one is configured.
func (f *LiveFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	if len(f.config.SubscribeMessage) > 0 {
		conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, f.config.SubscribeMessage); err != nil {
			conn.Close()
			return fmt.Errorf("write subscribe: %w", err)
		}
	}

	f.conn = conn
	return nil
}

// Close stops the feed, flushing buffered events before returning.
func (f *LiveFeed) Close() error {
	if f.closed.Swap(true) {
		return nil // Already closed
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

// readLoop reads messages and queues decoded events for the writer.
func (f *LiveFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			// Exponential backoff for the next attempt
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

func (f *LiveFeed) handleMessage(data []byte) {
	var msg feedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		observability.RecordFeedDecodeError()
		f.logger.Printf("drop undecodable feed message: %v", err)
		return
	}
	event, err := msg.toEvent()
	if err != nil {
		observability.RecordFeedDecodeError()
		f.logger.Printf("drop invalid feed message: %v", err)
		return
	}

	observability.RecordFeedEvent()
	// Blocking send: the buffer absorbs bursts, the store absorbs the rest.
	select {
	case f.pending <- event:
	case <-f.done:
	}
}

// writeLoop batches queued events into store writes.
func (f *LiveFeed) writeLoop() {
	defer f.wg.Done()

	batch := make([]domain.ListingEvent, 0, f.config.BatchSize)
	ticker := time.NewTicker(f.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		stored, err := f.events.InsertBulk(ctx, batch)
		cancel()
		if err != nil {
			f.logger.Printf("store %d feed events failed: %v", len(batch), err)
		} else {
			observability.RecordFeedStored(stored)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-f.pending:
			batch = append(batch, e)
			if len(batch) >= f.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-f.done:
			// Drain whatever arrived before shutdown, then flush once.
			for {
				select {
				case e := <-f.pending:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *LiveFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			conn := f.conn
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(f.config.WriteTimeout))
			}
			f.connMu.Unlock()
		}
	}
}

// reconnect attempts to re-establish the connection after a read failure.
func (f *LiveFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	observability.RecordFeedReconnect()
	f.logger.Printf("reconnecting to %s", f.endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		// Reconnect failed, the read loop will trigger another attempt.
		f.logger.Printf("reconnect failed: %v", err)
	}
}
