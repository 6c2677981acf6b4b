package peeringdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hervehildenbrand/bgp-gateway/pkg/fetch"
	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

// fakePeeringDB serves canned /net, /ix, and /fac responses keyed by the
// id/asn filter lists in the query string.
type fakePeeringDB struct {
	nets map[string]Net
	ixs  map[string]Place
	facs map[string]Place
}

func (f *fakePeeringDB) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/net", func(w http.ResponseWriter, r *http.Request) {
		var out []Net
		for _, asn := range strings.Split(r.URL.Query().Get("asn__in"), ",") {
			if net, ok := f.nets[asn]; ok {
				out = append(out, net)
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": out})
	})
	serve := func(records map[string]Place) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var out []Place
			for _, id := range strings.Split(r.URL.Query().Get("id__in"), ",") {
				if p, ok := records[id]; ok {
					out = append(out, p)
				}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"data": out})
		}
	}
	mux.HandleFunc("/ix", serve(f.ixs))
	mux.HandleFunc("/fac", serve(f.facs))
	return mux
}

func newTestResolver(t *testing.T, f *fakePeeringDB) *Resolver {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	client := NewClient(fetch.NewRateLimiter(1000))
	client.HTTP.BaseURL = srv.URL
	client.HTTP.RetryBase = time.Millisecond
	return NewResolver(client, "BD")
}

func TestResolver_DirectEvidence(t *testing.T) {
	f := &fakePeeringDB{
		nets: map[string]Net{
			"58601": {
				ASN: 58601,
				Netixes: []NetIXLan{
					{IXID: 1, Speed: 10000},  // Equinix SG
					{IXID: 2, Speed: 100000}, // HKIX: higher port speed
				},
				Netfacs: []NetFacRef{{FacID: 7}}, // facility weight 1000 x SG
			},
		},
		ixs: map[string]Place{
			"1": {ID: 1, Name: "Equinix Singapore", Country: "SG", City: "Singapore"},
			"2": {ID: 2, Name: "HKIX", Country: "HK", City: "Hong Kong"},
		},
		facs: map[string]Place{
			"7": {ID: 7, Name: "Equinix SG1", Country: "SG", City: "Singapore"},
		},
	}
	r := newTestResolver(t, f)

	got := r.Resolve(context.Background(), map[string]string{"58601": "SG"}, nil)
	require.Len(t, got, 1)
	loc := got["58601"]
	require.Equal(t, models.PeeringSourceDirect, loc.Source)
	// HK exchange weight 100000 beats SG's 10000+1000.
	require.Equal(t, "HK", loc.Country)
	require.Equal(t, []string{"HKIX"}, loc.Details)
}

func TestResolver_FacilityWeightBeatsSlowExchange(t *testing.T) {
	f := &fakePeeringDB{
		nets: map[string]Net{
			"58601": {
				ASN:     58601,
				Netixes: []NetIXLan{{IXID: 2, Speed: 500}},
				Netfacs: []NetFacRef{{FacID: 7}},
			},
		},
		ixs:  map[string]Place{"2": {ID: 2, Name: "HKIX", Country: "HK"}},
		facs: map[string]Place{"7": {ID: 7, Name: "Equinix SG1", Country: "SG"}},
	}
	r := newTestResolver(t, f)

	got := r.Resolve(context.Background(), map[string]string{"58601": "SG"}, nil)
	require.Equal(t, "SG", got["58601"].Country)
}

func TestResolver_UpstreamIntersection(t *testing.T) {
	// No direct record for 135000; both upstreams peer in SG, one also in
	// HK. The intersection is {SG}.
	f := &fakePeeringDB{
		nets: map[string]Net{
			"6939": {ASN: 6939, Netixes: []NetIXLan{{IXID: 1, Speed: 100}, {IXID: 2, Speed: 400}}},
			"174":  {ASN: 174, Netixes: []NetIXLan{{IXID: 1, Speed: 200}}},
		},
		ixs: map[string]Place{
			"1": {ID: 1, Name: "SGIX", Country: "SG"},
			"2": {ID: 2, Name: "HKIX", Country: "HK"},
		},
	}
	r := newTestResolver(t, f)

	got := r.Resolve(context.Background(),
		map[string]string{"135000": "MY"},
		map[string][]string{"135000": {"6939", "174"}})

	loc := got["135000"]
	require.Equal(t, models.PeeringSourceUpstream, loc.Source)
	require.Equal(t, "SG", loc.Country)
	require.Equal(t, []string{"SGIX"}, loc.Details)
}

func TestResolver_UpstreamEmptyIntersectionFallsBackToWeight(t *testing.T) {
	// Upstream country sets do not intersect; highest combined weight
	// across all peers decides.
	f := &fakePeeringDB{
		nets: map[string]Net{
			"6939": {ASN: 6939, Netixes: []NetIXLan{{IXID: 1, Speed: 100}}},
			"174":  {ASN: 174, Netixes: []NetIXLan{{IXID: 2, Speed: 900}}},
		},
		ixs: map[string]Place{
			"1": {ID: 1, Name: "SGIX", Country: "SG"},
			"2": {ID: 2, Name: "HKIX", Country: "HK"},
		},
	}
	r := newTestResolver(t, f)

	got := r.Resolve(context.Background(),
		map[string]string{"135000": "MY"},
		map[string][]string{"135000": {"6939", "174"}})

	loc := got["135000"]
	require.Equal(t, models.PeeringSourceUpstream, loc.Source)
	require.Equal(t, "HK", loc.Country)
}

func TestResolver_GeoFallback(t *testing.T) {
	r := newTestResolver(t, &fakePeeringDB{})

	got := r.Resolve(context.Background(), map[string]string{"135000": "MY"}, nil)
	require.Equal(t, models.PeeringLocation{
		Country: "MY",
		Source:  models.PeeringSourceGeo,
	}, got["135000"])
}

func TestResolver_DomesticDominantOmitted(t *testing.T) {
	r := newTestResolver(t, &fakePeeringDB{})

	got := r.Resolve(context.Background(), map[string]string{"135000": "BD"}, nil)
	require.NotContains(t, got, "135000")
}

func TestResolver_DomesticEvidenceIgnored(t *testing.T) {
	// Evidence in the domestic country never wins; the foreign exchange
	// decides even at lower weight.
	f := &fakePeeringDB{
		nets: map[string]Net{
			"58601": {
				ASN:     58601,
				Netixes: []NetIXLan{{IXID: 1, Speed: 10}},
				Netfacs: []NetFacRef{{FacID: 7}},
			},
		},
		ixs:  map[string]Place{"1": {ID: 1, Name: "SGIX", Country: "SG"}},
		facs: map[string]Place{"7": {ID: 7, Name: "Dhaka DC", Country: "BD"}},
	}
	r := newTestResolver(t, f)

	got := r.Resolve(context.Background(), map[string]string{"58601": "SG"}, nil)
	loc := got["58601"]
	require.Equal(t, "SG", loc.Country)
	require.Equal(t, models.PeeringSourceDirect, loc.Source)
}

func TestDedupeDetails(t *testing.T) {
	got := dedupeDetails([]string{"a", "b", "a", "", "c", "d", "e", "f"})
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}
