package ripestat

import (
	"context"
	"log"
	"net/url"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

// domesticShareThreshold: below this share of located space, an ASN's
// dominant country is the largest foreign one.
const domesticShareThreshold = 0.8

// FetchGeo fetches the geolocation breakdown for each ASN in parallel
// waves. Lookup failures fall back to a fully domestic result so callers
// never see an error.
func (c *Client) FetchGeo(ctx context.Context, asns []string, countryCode string) map[string]models.GeoResult {
	results := make(map[string]models.GeoResult, len(asns))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.GeoConcurrency)

	for _, asn := range asns {
		if gctx.Err() != nil {
			break
		}
		asn := asn
		g.Go(func() error {
			geo := c.fetchOneGeo(gctx, asn, countryCode)
			mu.Lock()
			results[asn] = geo
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	foreign := 0
	for _, geo := range results {
		if geo.DominantCountry != countryCode {
			foreign++
		}
	}
	log.Printf("[ripestat] geolocation complete: %d ASNs checked, %d with foreign infrastructure", len(results), foreign)
	return results
}

func (c *Client) fetchOneGeo(ctx context.Context, asn, countryCode string) models.GeoResult {
	fallback := models.GeoResult{
		DominantCountry:    countryCode,
		DomesticPercentage: 100,
	}

	params := url.Values{}
	params.Set("resource", "AS"+asn)

	var resp geoResponse
	if err := c.HTTP.GetJSON(ctx, "/maxmind-geo-lite-announced-by-as/data.json", params, &resp); err != nil {
		log.Printf("[ripestat] geo fetch failed for AS%s: %v", asn, err)
		return fallback
	}
	if resp.Status != "ok" {
		return fallback
	}

	var totalPct, domesticPct float64
	foreignPcts := make(map[string]float64)
	var breakdown []models.GeoLocation

	for _, res := range resp.Data.LocatedResources {
		for _, loc := range res.Locations {
			if loc.Country == "" {
				continue
			}
			totalPct += loc.CoveredPercentage
			if loc.Country == countryCode {
				domesticPct += loc.CoveredPercentage
			} else {
				foreignPcts[loc.Country] += loc.CoveredPercentage
			}
			breakdown = append(breakdown, models.GeoLocation{
				Country:    loc.Country,
				City:       loc.City,
				Percentage: loc.CoveredPercentage,
			})
		}
	}

	if totalPct <= 0 {
		return fallback
	}

	dominant := countryCode
	if domesticPct/totalPct <= domesticShareThreshold && len(foreignPcts) > 0 {
		best := ""
		for cc, pct := range foreignPcts {
			if best == "" || pct > foreignPcts[best] || (pct == foreignPcts[best] && cc < best) {
				best = cc
			}
		}
		dominant = best
	}

	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].Percentage > breakdown[j].Percentage
	})

	return models.GeoResult{
		DominantCountry:    dominant,
		Breakdown:          breakdown,
		DomesticPercentage: domesticPct,
	}
}
