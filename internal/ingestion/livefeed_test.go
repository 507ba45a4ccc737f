package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/storage/memory"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testFeedConfig() *FeedConfig {
	return &FeedConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 1 * time.Second,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		BatchSize:         2,
		FlushInterval:     50 * time.Millisecond,
	}
}

func waitForStoredEvents(t *testing.T, store *memory.ListingEventStore, key domain.EntityKey, want int) []domain.ListingEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := store.GetByEntitySince(context.Background(), key, time.Time{})
		if err != nil {
			t.Fatalf("GetByEntitySince: %v", err)
		}
		if len(events) >= want {
			return events
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d stored events", want)
	return nil
}

func TestLiveFeed_StoresEvents(t *testing.T) {
	observedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	messages := []feedMessage{
		{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN", ListingID: "e-1", Price: ptr(28500.0), Currency: "USD", Status: "LISTED", ObservedAt: observedAt},
		{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN", ListingID: "e-2", Price: ptr(29000.0), Currency: "USD", Status: "LISTED", ObservedAt: observedAt},
		{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN", ListingID: "e-1", Price: nil, Currency: "USD", Status: "SOLD", ObservedAt: observedAt.Add(time.Hour)},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for _, msg := range messages {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	store := memory.NewListingEventStore()

	feed, err := NewLiveFeed(context.Background(), wsURL, store, testFeedConfig(), quietLogger())
	if err != nil {
		t.Fatalf("NewLiveFeed: %v", err)
	}
	defer feed.Close()

	events := waitForStoredEvents(t, store, daytona, 3)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, e := range events {
		if e.EventID == "" {
			t.Error("expected a deterministic event id to be assigned")
		}
	}
	if events[2].Status != domain.ListingStatusSold {
		t.Errorf("expected last event SOLD, got %s", events[2].Status)
	}
}

func TestLiveFeed_DedupesRedeliveredEvents(t *testing.T) {
	observedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	msg := feedMessage{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN", ListingID: "e-1",
		Price: ptr(28500.0), Currency: "USD", Status: "LISTED", ObservedAt: observedAt}
	other := feedMessage{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN", ListingID: "e-2",
		Price: ptr(29000.0), Currency: "USD", Status: "LISTED", ObservedAt: observedAt}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		// Redelivery after a reconnect looks like the same message twice.
		for _, m := range []feedMessage{msg, msg, other} {
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	store := memory.NewListingEventStore()

	feed, err := NewLiveFeed(context.Background(), wsURL, store, testFeedConfig(), quietLogger())
	if err != nil {
		t.Fatalf("NewLiveFeed: %v", err)
	}
	defer feed.Close()

	waitForStoredEvents(t, store, daytona, 2)
	time.Sleep(100 * time.Millisecond)

	events, err := store.GetByEntitySince(context.Background(), daytona, time.Time{})
	if err != nil {
		t.Fatalf("GetByEntitySince: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected the redelivered event to deduplicate, got %d events", len(events))
	}
}

func TestLiveFeed_DropsInvalidMessages(t *testing.T) {
	observedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteJSON(feedMessage{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN",
			ListingID: "e-1", Status: "AUCTIONED", ObservedAt: observedAt})
		conn.WriteJSON(feedMessage{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN",
			Status: "LISTED", ObservedAt: observedAt}) // no listing id
		// Lowercase status is normalized, not dropped.
		conn.WriteJSON(feedMessage{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN",
			ListingID: "e-2", Price: ptr(28500.0), Status: "listed", ObservedAt: observedAt})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	store := memory.NewListingEventStore()

	feed, err := NewLiveFeed(context.Background(), wsURL, store, testFeedConfig(), quietLogger())
	if err != nil {
		t.Fatalf("NewLiveFeed: %v", err)
	}
	defer feed.Close()

	events := waitForStoredEvents(t, store, daytona, 1)
	time.Sleep(100 * time.Millisecond)

	events, err = store.GetByEntitySince(context.Background(), daytona, time.Time{})
	if err != nil {
		t.Fatalf("GetByEntitySince: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the valid message stored, got %d", len(events))
	}
	if events[0].ListingID != "e-2" || events[0].Status != domain.ListingStatusListed {
		t.Errorf("unexpected stored event %+v", events[0])
	}
	if events[0].Currency != "USD" {
		t.Errorf("expected currency defaulted to USD, got %s", events[0].Currency)
	}
}

func TestLiveFeed_SendsSubscribeMessage(t *testing.T) {
	observedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	subscribe := []byte(`{"channel":"listings"}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) != string(subscribe) {
			t.Errorf("expected subscribe message %s, got %s", subscribe, msg)
		}

		conn.WriteJSON(feedMessage{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN",
			ListingID: "e-1", Price: ptr(28500.0), Status: "LISTED", ObservedAt: observedAt})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	store := memory.NewListingEventStore()

	config := testFeedConfig()
	config.SubscribeMessage = subscribe

	feed, err := NewLiveFeed(context.Background(), wsURL, store, config, quietLogger())
	if err != nil {
		t.Fatalf("NewLiveFeed: %v", err)
	}
	defer feed.Close()

	waitForStoredEvents(t, store, daytona, 1)
}

func TestLiveFeed_CloseFlushesPending(t *testing.T) {
	observedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for i, id := range []string{"e-1", "e-2", "e-3"} {
			conn.WriteJSON(feedMessage{Marketplace: "ebay", Brand: "Rolex", Reference: "116500LN",
				ListingID: id, Price: ptr(28500.0 + float64(i)), Status: "LISTED", ObservedAt: observedAt})
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	store := memory.NewListingEventStore()

	// Batching thresholds the test never reaches: only Close can flush.
	config := testFeedConfig()
	config.BatchSize = 100
	config.FlushInterval = time.Minute

	feed, err := NewLiveFeed(context.Background(), wsURL, store, config, quietLogger())
	if err != nil {
		t.Fatalf("NewLiveFeed: %v", err)
	}

	// Let the reader queue the messages, then shut down.
	time.Sleep(200 * time.Millisecond)
	if err := feed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := store.GetByEntitySince(context.Background(), daytona, time.Time{})
	if err != nil {
		t.Fatalf("GetByEntitySince: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events flushed on close, got %d", len(events))
	}

	// Double close must be safe.
	if err := feed.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestLiveFeed_DialFailure(t *testing.T) {
	_, err := NewLiveFeed(context.Background(), "ws://127.0.0.1:1/feed", memory.NewListingEventStore(), testFeedConfig(), quietLogger())
	if err == nil {
		t.Fatal("expected dial error")
	}
}
