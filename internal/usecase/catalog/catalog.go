// Package catalog computes per-source crawl rate targets from the external
// catalog API's image counts, the first step of the regulator's tick (§4.2).
// It holds no state of its own: RefreshRates is a pure mapping from the
// catalog's current snapshot to a entity.RateTable, so the regulator can
// swap in a freshly computed table or fall back to the previous one without
// this package needing to know which.
package catalog

import (
	"context"

	"crawlctl/internal/domain/entity"
)

// Crawl-rate interpolation bounds, fixed per §6 and never runtime-tunable.
const (
	MinCrawlSize = 5_000
	MaxCrawlSize = 500_000_000
	MinCrawlRPS  = 0.2
	MaxCrawlRPS  = 200.0
)

// SourceCount is a single entry of the catalog API's sources response.
type SourceCount struct {
	Source     entity.Source
	ImageCount int64
}

// Client fetches the current source/image-count snapshot from the external
// catalog API. Implementations wrap the HTTP round trip with retry and
// circuit-breaking per SPEC_FULL.md §10; ErrCatalogUnavailable (or any
// error) tells the caller to retain the previous rate table per §4.2.
type Client interface {
	ListSourceCounts(ctx context.Context) ([]SourceCount, error)
}

// ComputeCrawlRate maps a catalog image count to a target requests-per-second
// by linear interpolation between (MinCrawlSize, MinCrawlRPS) and
// (MaxCrawlSize, MaxCrawlRPS), clamped at both ends.
func ComputeCrawlRate(imageCount int64) float64 {
	switch {
	case imageCount <= MinCrawlSize:
		return MinCrawlRPS
	case imageCount >= MaxCrawlSize:
		return MaxCrawlRPS
	}

	fraction := float64(imageCount-MinCrawlSize) / float64(MaxCrawlSize-MinCrawlSize)
	rate := MinCrawlRPS + fraction*(MaxCrawlRPS-MinCrawlRPS)
	if rate > MaxCrawlRPS {
		return MaxCrawlRPS
	}
	return rate
}

// RefreshRates builds a fresh entity.RateTable from the catalog's current
// source/image-count snapshot. The caller is responsible for retaining the
// previous table when the client returns an error (§4.2, §7).
func RefreshRates(ctx context.Context, client Client) (entity.RateTable, error) {
	counts, err := client.ListSourceCounts(ctx)
	if err != nil {
		return nil, err
	}

	table := make(entity.RateTable, len(counts))
	for _, c := range counts {
		table[entity.NormalizeSource(c.Source.String())] = ComputeCrawlRate(c.ImageCount)
	}
	return table, nil
}
