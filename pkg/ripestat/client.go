package ripestat

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hervehildenbrand/bgp-gateway/pkg/fetch"
	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

// DefaultBaseURL is the RIPEstat Data API endpoint.
const DefaultBaseURL = "https://stat.ripe.net/data"

const (
	defaultBatchConcurrency  = 5
	defaultLookupConcurrency = 20
	defaultGeoConcurrency    = 10
)

// Client fetches RIPEstat data with a shared rate limiter.
type Client struct {
	HTTP *fetch.Client

	// Wave widths for batch fetches and per-ASN lookups. All waves share
	// the limiter, so these bound in-flight requests, not request rate.
	BatchConcurrency  int
	LookupConcurrency int
	GeoConcurrency    int
}

// NewClient creates a RIPEstat client sharing the given limiter.
func NewClient(limiter *fetch.RateLimiter) *Client {
	return &Client{
		HTTP:              fetch.NewClient(DefaultBaseURL, limiter),
		BatchConcurrency:  defaultBatchConcurrency,
		LookupConcurrency: defaultLookupConcurrency,
		GeoConcurrency:    defaultGeoConcurrency,
	}
}

// CountryResources fetches the ASN set and announced prefixes registered
// to a country. A run cannot proceed without this data, so failures are
// surfaced to the caller.
func (c *Client) CountryResources(ctx context.Context, countryCode string) (map[string]bool, []string, error) {
	params := url.Values{}
	params.Set("resource", strings.ToLower(countryCode))
	params.Set("v4_format", "prefix")

	var resp countryResourceResponse
	if err := c.HTTP.GetJSON(ctx, "/country-resource-list/data.json", params, &resp); err != nil {
		return nil, nil, fmt.Errorf("fetch country resources: %w", err)
	}

	asns := make(map[string]bool, len(resp.Data.Resources.ASN))
	for _, a := range resp.Data.Resources.ASN {
		asns[string(a)] = true
	}
	prefixes := append([]string{}, resp.Data.Resources.IPv4...)
	prefixes = append(prefixes, resp.Data.Resources.IPv6...)

	log.Printf("[ripestat] country %s: %d ASNs, %d prefixes", strings.ToUpper(countryCode), len(asns), len(prefixes))
	return asns, prefixes, nil
}

// FetchBGPState fetches routing-table state for all prefixes in batched
// parallel waves. Failed batches are tolerated and counted; the routes
// from successful batches are always returned, including on cancellation.
func (c *Client) FetchBGPState(ctx context.Context, prefixes []string, tracker *fetch.ProgressTracker) ([]models.RouteObservation, int, error) {
	batches := fetch.ChunkResources(prefixes, fetch.DefaultURLBudget)

	var mu sync.Mutex
	var routes []models.RouteObservation
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.BatchConcurrency)

	for i, batch := range batches {
		// Stop dispatching new batches once cancelled; in-flight ones
		// finish and their results remain valid.
		if err := gctx.Err(); err != nil {
			break
		}
		i, batch := i, batch
		g.Go(func() error {
			obs, err := c.fetchStateBatch(gctx, batch)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("[ripestat] batch %d/%d failed: %v", i+1, len(batches), err)
				mu.Lock()
				failed++
				mu.Unlock()
				if tracker != nil {
					tracker.Done(false)
				}
				return nil
			}
			mu.Lock()
			routes = append(routes, obs...)
			mu.Unlock()
			if tracker != nil {
				tracker.Done(true)
			}
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return routes, failed, err
}

func (c *Client) fetchStateBatch(ctx context.Context, batch []string) ([]models.RouteObservation, error) {
	params := url.Values{}
	params.Set("resource", strings.Join(batch, ","))

	var resp bgpStateResponse
	if err := c.HTTP.GetJSON(ctx, "/bgp-state/data.json", params, &resp); err != nil {
		return nil, err
	}

	obs := make([]models.RouteObservation, 0, len(resp.Data.BGPState))
	for _, rt := range resp.Data.BGPState {
		obs = append(obs, models.RouteObservation{
			TargetPrefix: rt.TargetPrefix,
			SourceID:     rt.SourceID,
			Path:         flattenPath(rt.Path),
		})
	}
	return obs, nil
}
