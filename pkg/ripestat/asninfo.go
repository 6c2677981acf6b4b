package ripestat

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hervehildenbrand/bgp-gateway/pkg/cache"
	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

// FetchASNInfo fetches holder metadata for each ASN in parallel waves,
// reading through the cache. Missing metadata is never an error: failed
// lookups yield a fallback entry with an empty holder.
func (c *Client) FetchASNInfo(ctx context.Context, asns []string, countrySet map[string]bool, countryCode string, asnCache *cache.ASNCache) map[string]models.ASNInfo {
	results := make(map[string]models.ASNInfo, len(asns))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.LookupConcurrency)

	for _, asn := range asns {
		if gctx.Err() != nil {
			break
		}
		asn := asn
		g.Go(func() error {
			if info, ok := asnCache.Get(gctx, asn); ok {
				mu.Lock()
				results[asn] = info
				mu.Unlock()
				return nil
			}

			info := c.fetchOneASN(gctx, asn, countrySet, countryCode)
			asnCache.Put(gctx, asn, info)
			mu.Lock()
			results[asn] = info
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Registry membership and well-known overrides beat holder parsing.
	for asn, info := range results {
		if countrySet[asn] {
			info.Country = countryCode
			results[asn] = info
			continue
		}
		if cc, ok := WellKnownCountries[asn]; ok {
			if info.Country == "" || invalidRegions[info.Country] {
				info.Country = cc
				results[asn] = info
			}
		}
	}

	log.Printf("[ripestat] ASN info complete: %d entries", len(results))
	return results
}

func (c *Client) fetchOneASN(ctx context.Context, asn string, countrySet map[string]bool, countryCode string) models.ASNInfo {
	fallback := models.ASNInfo{
		ASN:  asn,
		Name: "AS" + asn,
	}
	if countrySet[asn] {
		fallback.Country = countryCode
	}

	params := url.Values{}
	params.Set("resource", "AS"+asn)

	var resp asOverviewResponse
	if err := c.HTTP.GetJSON(ctx, "/as-overview/data.json", params, &resp); err != nil {
		return fallback
	}
	if resp.Status != "ok" {
		return fallback
	}

	holder := resp.Data.Holder
	info := models.ASNInfo{
		ASN:       asn,
		Name:      holder,
		Holder:    holder,
		Announced: resp.Data.Announced,
	}
	if holder == "" {
		info.Name = "AS" + asn
	}

	if countrySet[asn] {
		info.Country = countryCode
	} else {
		info.Country = countryFromHolder(holder)
	}
	return info
}

// countryFromHolder extracts a country code from holder names shaped like
// "NAME-CC ...". Region codes and non-alpha suffixes are rejected.
func countryFromHolder(holder string) string {
	parts := strings.Fields(holder)
	if len(parts) == 0 {
		return ""
	}
	first := parts[0]
	idx := strings.LastIndex(first, "-")
	if idx < 0 {
		return ""
	}
	suffix := strings.ToUpper(first[idx+1:])
	if len(suffix) != 2 || invalidRegions[suffix] {
		return ""
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < 'A' || suffix[i] > 'Z' {
			return ""
		}
	}
	return suffix
}
