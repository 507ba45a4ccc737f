package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/therealtplum/watch-heat/internal/domain"
	"github.com/therealtplum/watch-heat/internal/observability"
)

// Default source client configuration.
const (
	DefaultWatchChartsBaseURL = "https://api.watchcharts.com/v3"
	DefaultSourceTimeout      = 20 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryWait          = 1 * time.Second
	DefaultRetryMaxWait       = 10 * time.Second
)

// ErrNoResults is returned when a source has no listing for the watch.
var ErrNoResults = errors.New("no search results")

// WatchChartsClient fetches per-watch market snapshots from the WatchCharts
// API: a search resolves (brand, reference) to the watch UUID, then the info
// endpoint returns current market price, listing count and days-on-market.
type WatchChartsClient struct {
	baseURL string
	apiKey  string
	client  *resty.Client
}

// WatchChartsOption configures WatchChartsClient.
type WatchChartsOption func(*WatchChartsClient)

// WithWatchChartsBaseURL overrides the API root.
func WithWatchChartsBaseURL(u string) WatchChartsOption {
	return func(c *WatchChartsClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithWatchChartsTimeout sets the per-request timeout.
func WithWatchChartsTimeout(d time.Duration) WatchChartsOption {
	return func(c *WatchChartsClient) {
		c.client.SetTimeout(d)
	}
}

// WithWatchChartsRetry sets retry attempts and backoff bounds.
func WithWatchChartsRetry(count int, wait, maxWait time.Duration) WatchChartsOption {
	return func(c *WatchChartsClient) {
		c.client.SetRetryCount(count).SetRetryWaitTime(wait).SetRetryMaxWaitTime(maxWait)
	}
}

// NewWatchChartsClient creates a WatchCharts API client.
func NewWatchChartsClient(apiKey string, opts ...WatchChartsOption) *WatchChartsClient {
	client := resty.New().
		SetTimeout(DefaultSourceTimeout).
		SetRetryCount(DefaultMaxRetries).
		SetRetryWaitTime(DefaultRetryWait).
		SetRetryMaxWaitTime(DefaultRetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	c := &WatchChartsClient{
		baseURL: DefaultWatchChartsBaseURL,
		apiKey:  apiKey,
		client:  client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ SnapshotSource = (*WatchChartsClient)(nil)

// Snapshot implements SnapshotSource.
func (c *WatchChartsClient) Snapshot(ctx context.Context, key domain.EntityKey, day time.Time) (domain.Observation, error) {
	start := time.Now()
	obs, err := c.snapshot(ctx, key, day)
	observability.RecordFetch("watchcharts", time.Since(start).Seconds(), err)
	return obs, err
}

func (c *WatchChartsClient) snapshot(ctx context.Context, key domain.EntityKey, day time.Time) (domain.Observation, error) {
	if c.apiKey == "" {
		return domain.Observation{}, errors.New("watchcharts api key missing")
	}

	uuid, err := c.lookupUUID(ctx, key)
	if err != nil {
		return domain.Observation{}, err
	}

	info, err := c.watchInfo(ctx, uuid)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("watch info %s: %w", uuid, err)
	}

	return domain.Observation{
		Date:           domain.Day(day),
		Brand:          key.Brand,
		Reference:      key.Reference,
		MedianPrice:    firstFloat(info.MarketPrice, info.Price.Market, info.MarketPriceAlt),
		ListingsActive: firstInt(info.ListingsActive, info.Listings),
		DOMMedian:      firstFloat(info.DaysOnMarket, info.DOM),
	}, nil
}

type watchSearchResponse struct {
	Results []struct {
		UUID      string `json:"uuid"`
		Reference string `json:"reference"`
	} `json:"results"`
}

// watchInfoResponse carries the alternate field names the API has used
// across versions.
type watchInfoResponse struct {
	MarketPrice    *float64 `json:"market_price"`
	MarketPriceAlt *float64 `json:"marketPrice"`
	Price          struct {
		Market *float64 `json:"market"`
	} `json:"price"`
	DaysOnMarket   *float64 `json:"days_on_market"`
	DOM            *float64 `json:"dom"`
	ListingsActive *int64   `json:"listings_active"`
	Listings       *int64   `json:"listings"`
}

func (c *WatchChartsClient) lookupUUID(ctx context.Context, key domain.EntityKey) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetQueryParams(map[string]string{
			"brand_name": key.Brand,
			"reference":  key.Reference,
		}).
		Get(c.baseURL + "/search/watch")
	if err != nil {
		return "", fmt.Errorf("search watch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("search watch: unexpected status %d", resp.StatusCode())
	}

	var out watchSearchResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	if len(out.Results) == 0 {
		return "", fmt.Errorf("%s %s: %w", key.Brand, key.Reference, ErrNoResults)
	}

	// An exact reference match wins; otherwise trust the first result.
	for _, r := range out.Results {
		if strings.EqualFold(r.Reference, key.Reference) {
			return r.UUID, nil
		}
	}
	return out.Results[0].UUID, nil
}

func (c *WatchChartsClient) watchInfo(ctx context.Context, uuid string) (*watchInfoResponse, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetQueryParam("uuid", uuid).
		Get(c.baseURL + "/watch/info")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	var info watchInfoResponse
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, fmt.Errorf("decode info response: %w", err)
	}
	return &info, nil
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(vals ...*int64) *int64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
