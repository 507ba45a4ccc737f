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

// DefaultEbayBaseURL is the eBay Browse API root.
const DefaultEbayBaseURL = "https://api.ebay.com/buy/browse/v1"

// EbayClient samples eBay activity for a watch: the total number of live
// listings matching "<brand> <reference>" on the Browse API.
type EbayClient struct {
	baseURL string
	token   string
	client  *resty.Client
}

// EbayOption configures EbayClient.
type EbayOption func(*EbayClient)

// WithEbayBaseURL overrides the API root.
func WithEbayBaseURL(u string) EbayOption {
	return func(c *EbayClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithEbayTimeout sets the per-request timeout.
func WithEbayTimeout(d time.Duration) EbayOption {
	return func(c *EbayClient) {
		c.client.SetTimeout(d)
	}
}

// WithEbayRetry sets retry attempts and backoff bounds.
func WithEbayRetry(count int, wait, maxWait time.Duration) EbayOption {
	return func(c *EbayClient) {
		c.client.SetRetryCount(count).SetRetryWaitTime(wait).SetRetryMaxWaitTime(maxWait)
	}
}

// NewEbayClient creates a Browse API client using the given OAuth token.
func NewEbayClient(oauthToken string, opts ...EbayOption) *EbayClient {
	client := resty.New().
		SetTimeout(DefaultSourceTimeout).
		SetRetryCount(DefaultMaxRetries).
		SetRetryWaitTime(DefaultRetryWait).
		SetRetryMaxWaitTime(DefaultRetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	c := &EbayClient{
		baseURL: DefaultEbayBaseURL,
		token:   oauthToken,
		client:  client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ActivitySource = (*EbayClient)(nil)

// browseSearchResponse carries both spellings the API has used for the
// match count.
type browseSearchResponse struct {
	Total        *int64 `json:"total"`
	TotalMatched *int64 `json:"totalMatched"`
}

// ActiveCount implements ActivitySource.
func (c *EbayClient) ActiveCount(ctx context.Context, key domain.EntityKey) (int64, error) {
	start := time.Now()
	n, err := c.activeCount(ctx, key)
	observability.RecordFetch("ebay", time.Since(start).Seconds(), err)
	return n, err
}

func (c *EbayClient) activeCount(ctx context.Context, key domain.EntityKey) (int64, error) {
	if c.token == "" {
		return 0, errors.New("ebay oauth token missing")
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetQueryParams(map[string]string{
			"q":      key.Brand + " " + key.Reference,
			"limit":  "1",
			"offset": "0",
		}).
		Get(c.baseURL + "/item_summary/search")
	if err != nil {
		return 0, fmt.Errorf("browse search: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("browse search: unexpected status %d", resp.StatusCode())
	}

	var out browseSearchResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return 0, fmt.Errorf("decode search response: %w", err)
	}
	if n := firstInt(out.Total, out.TotalMatched); n != nil {
		return *n, nil
	}
	return 0, nil
}
