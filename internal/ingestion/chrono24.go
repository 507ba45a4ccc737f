package ingestion

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/idhash"
	"github.com/therealtplum/watch-heat/internal/observability"
)

// Chrono24 scrape defaults.
const (
	DefaultChrono24BaseURL = "https://www.chrono24.com"
	// The site throttles obvious bots; requests are spaced out.
	DefaultChrono24Delay = 5 * time.Second

	// Price sanity bounds: below looks like a shipping fee, above a parse
	// artifact.
	chrono24MinPrice = 1000
	chrono24MaxPrice = 500000
	// Counts above this are a parse artifact, not a result count.
	chrono24MaxListingCount = 100000
)

// ErrNoListings is returned when a scraped page yields no usable prices.
var ErrNoListings = errors.New("no prices found")

// chrono24UserAgents is rotated per request.
var chrono24UserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

var (
	chrono24CountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<h1[^>]*>.*?([\d,]+)\s*(?:watches|listings)\b`),
		regexp.MustCompile(`(?i)>([\d,]+)\s*(?:watches|listings|offers)\s*(?:for|found|available)`),
		regexp.MustCompile(`(?i)Results:\s*([\d,]+)`),
	}
	chrono24PricePattern = regexp.MustCompile(`\$\s*([\d,]+)`)
)

// Chrono24Client scrapes the Chrono24 search page for a watch, extracting
// listing prices and the result count from the HTML. It can stand in for
// the WatchCharts API as the snapshot source; days-on-market stays missing
// because the page does not expose it.
type Chrono24Client struct {
	baseURL string
	client  *resty.Client

	delay       time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// Chrono24Option configures Chrono24Client.
type Chrono24Option func(*Chrono24Client)

// WithChrono24BaseURL overrides the site root.
func WithChrono24BaseURL(u string) Chrono24Option {
	return func(c *Chrono24Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithChrono24Timeout sets the per-request timeout.
func WithChrono24Timeout(d time.Duration) Chrono24Option {
	return func(c *Chrono24Client) {
		c.client.SetTimeout(d)
	}
}

// WithChrono24Delay sets the minimum spacing between requests.
func WithChrono24Delay(d time.Duration) Chrono24Option {
	return func(c *Chrono24Client) {
		c.delay = d
	}
}

// NewChrono24Client creates a Chrono24 search page scraper.
func NewChrono24Client(opts ...Chrono24Option) *Chrono24Client {
	client := resty.New().
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(DefaultChrono24Delay).
		SetRetryMaxWaitTime(3 * DefaultChrono24Delay).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	c := &Chrono24Client{
		baseURL: DefaultChrono24BaseURL,
		client:  client,
		delay:   DefaultChrono24Delay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ ListingSource  = (*Chrono24Client)(nil)
	_ SnapshotSource = (*Chrono24Client)(nil)
)

// Listings implements ListingSource: a same-day observation (median ask and
// listing count) plus one LISTED event per sighted price.
func (c *Chrono24Client) Listings(ctx context.Context, key domain.EntityKey, now time.Time) (domain.Observation, []domain.ListingEvent, error) {
	start := time.Now()
	obs, events, err := c.scrape(ctx, key, now)
	observability.RecordFetch("chrono24", time.Since(start).Seconds(), err)
	return obs, events, err
}

// Snapshot implements SnapshotSource, letting the scraper replace the
// WatchCharts API as the primary snapshot source.
func (c *Chrono24Client) Snapshot(ctx context.Context, key domain.EntityKey, day time.Time) (domain.Observation, error) {
	obs, _, err := c.Listings(ctx, key, day)
	return obs, err
}

func (c *Chrono24Client) scrape(ctx context.Context, key domain.EntityKey, now time.Time) (domain.Observation, []domain.ListingEvent, error) {
	if err := c.throttle(ctx); err != nil {
		return domain.Observation{}, nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", chrono24UserAgents[rand.Intn(len(chrono24UserAgents))]).
		SetQueryParams(map[string]string{
			"query":    key.Brand + " " + key.Reference,
			"dosearch": "true",
		}).
		Get(c.baseURL + "/search/index.htm")
	if err != nil {
		return domain.Observation{}, nil, fmt.Errorf("search page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return domain.Observation{}, nil, fmt.Errorf("search page: unexpected status %d", resp.StatusCode())
	}

	html := string(resp.Body())
	if isChallengePage(html) {
		return domain.Observation{}, nil, fmt.Errorf("%s %s: challenge page served", key.Brand, key.Reference)
	}

	prices := extractPrices(html)
	if len(prices) == 0 {
		return domain.Observation{}, nil, fmt.Errorf("%s %s: %w", key.Brand, key.Reference, ErrNoListings)
	}

	median := medianDecimal(prices).InexactFloat64()
	obs := domain.Observation{
		Date:           domain.Day(now),
		Brand:          key.Brand,
		Reference:      key.Reference,
		MedianPrice:    &median,
		ListingsActive: extractListingCount(html),
	}

	events := make([]domain.ListingEvent, 0, len(prices))
	for i, p := range prices {
		price := p.InexactFloat64()
		// Scrape sightings have no stable listing identity; the position in
		// the deduplicated price list stands in for one.
		listingID := fmt.Sprintf("c24-%d", i)
		events = append(events, domain.ListingEvent{
			EventID:     idhash.ComputeEventID("chrono24", key.Brand, key.Reference, listingID, domain.ListingStatusListed, now, &price),
			Marketplace: "chrono24",
			Brand:       key.Brand,
			Reference:   key.Reference,
			ListingID:   listingID,
			Price:       &price,
			Currency:    "USD",
			Status:      domain.ListingStatusListed,
			ObservedAt:  now,
		})
	}
	return obs, events, nil
}

// throttle serializes requests and enforces the configured spacing.
func (c *Chrono24Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.delay - time.Since(c.lastRequest); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// isChallengePage reports whether the response is a bot-check interstitial
// rather than search results. Challenge pages are short and mention the
// challenge.
func isChallengePage(html string) bool {
	return len(html) < 20000 && strings.Contains(strings.ToLower(html), "challenge")
}

func extractListingCount(html string) *int64 {
	for _, p := range chrono24CountPatterns {
		m := p.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err != nil {
			continue
		}
		if n < chrono24MaxListingCount {
			return &n
		}
	}
	return nil
}

func extractPrices(html string) []decimal.Decimal {
	matches := chrono24PricePattern.FindAllStringSubmatch(html, -1)

	lo := decimal.NewFromInt(chrono24MinPrice)
	hi := decimal.NewFromInt(chrono24MaxPrice)
	seen := make(map[string]struct{}, len(matches))
	prices := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		raw := strings.ReplaceAll(m[1], ",", "")
		d, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		if d.LessThanOrEqual(lo) || d.GreaterThanOrEqual(hi) {
			continue
		}
		// Listings often render the same price twice.
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		prices = append(prices, d)
	}
	return prices
}

// medianDecimal returns the median price, averaging the two middle values
// for an even count.
func medianDecimal(prices []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
