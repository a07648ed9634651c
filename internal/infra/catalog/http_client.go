// Package catalog implements the catalog usecase's Client interface against
// the real external catalog API over HTTP, wrapped with retry, circuit
// breaking, and client-side self-limiting the way the reference codebase
// wraps its own outbound HTTP calls.
package catalog

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/resilience/circuitbreaker"
	"crawlctl/internal/resilience/retry"
	"crawlctl/internal/usecase/catalog"
)

// sourceCountsResponse mirrors the catalog API's sources endpoint payload:
// a flat list of {source_name, image_count}.
type sourceCountsResponse struct {
	Sources []struct {
		SourceName string `json:"source_name"`
		ImageCount int64  `json:"image_count"`
	} `json:"sources"`
}

// Client fetches source/image-count snapshots from the external catalog
// API's sources endpoint, self-limited, circuit-broken, and retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewClient constructs a catalog.Client implementation pointed at baseURL
// (e.g. "https://catalog.internal"). The self-limiter caps outbound catalog
// requests at 1/s, well above the 30-minute refresh cadence but a safety
// net against misconfigured callers.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		breaker: circuitbreaker.New(circuitbreaker.CatalogAPIConfig()),
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// ListSourceCounts implements catalog.Client.
func (c *Client) ListSourceCounts(ctx context.Context) ([]catalog.SourceCount, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("catalog: rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var parsed sourceCountsResponse
		err := retry.WithBackoff(ctx, retry.CatalogAPIConfig(), func() error {
			var fetchErr error
			parsed, fetchErr = c.fetchOnce(ctx)
			return fetchErr
		})
		return parsed, err
	})
	if err != nil {
		return nil, err
	}

	parsed := result.(sourceCountsResponse)
	counts := make([]catalog.SourceCount, 0, len(parsed.Sources))
	for _, s := range parsed.Sources {
		counts = append(counts, catalog.SourceCount{
			Source:     entity.NormalizeSource(s.SourceName),
			ImageCount: s.ImageCount,
		})
	}
	return counts, nil
}

func (c *Client) fetchOnce(ctx context.Context) (sourceCountsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sources", nil)
	if err != nil {
		return sourceCountsResponse{}, fmt.Errorf("catalog: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sourceCountsResponse{}, fmt.Errorf("catalog: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return sourceCountsResponse{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: "catalog sources endpoint"}
	}

	var parsed sourceCountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return sourceCountsResponse{}, fmt.Errorf("catalog: decode response: %w", err)
	}
	return parsed, nil
}
