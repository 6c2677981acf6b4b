// Package peeringdb queries the PeeringDB registry and infers the
// physical peering country of offshore ASNs.
package peeringdb

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/hervehildenbrand/bgp-gateway/pkg/fetch"
)

// DefaultBaseURL is the PeeringDB API endpoint.
const DefaultBaseURL = "https://www.peeringdb.com/api"

// MaxBatchIDs caps how many ASNs or record IDs go into one request.
const MaxBatchIDs = 100

// Net is a PeeringDB network record with its facility and exchange
// memberships.
type Net struct {
	ASN     int         `json:"asn"`
	Name    string      `json:"name"`
	Netixes []NetIXLan  `json:"netixlan_set"`
	Netfacs []NetFacRef `json:"netfac_set"`
}

// NetIXLan is one internet-exchange membership, carrying the reported
// port speed used as evidence weight.
type NetIXLan struct {
	IXID  int `json:"ix_id"`
	Speed int `json:"speed"`
}

// NetFacRef is one facility membership.
type NetFacRef struct {
	FacID int `json:"fac_id"`
}

// Place is a resolved facility or exchange record.
type Place struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	City    string `json:"city"`
}

type netResponse struct {
	Data []Net `json:"data"`
}

type placeResponse struct {
	Data []Place `json:"data"`
}

// Client fetches PeeringDB records in batched requests.
type Client struct {
	HTTP *fetch.Client
}

// NewClient creates a PeeringDB client sharing the given limiter.
func NewClient(limiter *fetch.RateLimiter) *Client {
	return &Client{HTTP: fetch.NewClient(DefaultBaseURL, limiter)}
}

// FetchNets fetches network records for the given ASNs, batched at most
// MaxBatchIDs per request. ASNs without a record are simply absent from
// the result; batch failures drop their ASNs the same way.
func (c *Client) FetchNets(ctx context.Context, asns []string) map[string]Net {
	out := make(map[string]Net)
	for _, batch := range fetch.ChunkCount(asns, MaxBatchIDs) {
		params := url.Values{}
		params.Set("asn__in", strings.Join(batch, ","))
		params.Set("depth", "2")

		var resp netResponse
		if err := c.HTTP.GetJSON(ctx, "/net", params, &resp); err != nil {
			continue
		}
		for _, net := range resp.Data {
			out[strconv.Itoa(net.ASN)] = net
		}
	}
	return out
}

// FetchExchanges resolves exchange IDs to country/name/city records.
func (c *Client) FetchExchanges(ctx context.Context, ids []int) map[int]Place {
	return c.fetchPlaces(ctx, "/ix", ids)
}

// FetchFacilities resolves facility IDs to country/name/city records.
func (c *Client) FetchFacilities(ctx context.Context, ids []int) map[int]Place {
	return c.fetchPlaces(ctx, "/fac", ids)
}

func (c *Client) fetchPlaces(ctx context.Context, path string, ids []int) map[int]Place {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		tokens = append(tokens, strconv.Itoa(id))
	}

	out := make(map[int]Place)
	for _, batch := range fetch.ChunkCount(tokens, MaxBatchIDs) {
		params := url.Values{}
		params.Set("id__in", strings.Join(batch, ","))

		var resp placeResponse
		if err := c.HTTP.GetJSON(ctx, path, params, &resp); err != nil {
			continue
		}
		for _, p := range resp.Data {
			out[p.ID] = p
		}
	}
	return out
}
