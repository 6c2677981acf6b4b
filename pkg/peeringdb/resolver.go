package peeringdb

import (
	"context"
	"log"
	"sort"

	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

// facilityWeight is the fixed evidence weight for one facility presence.
// Exchange memberships weigh their reported port speed (minimum 1).
const facilityWeight = 1000

// maxDetails caps the facility/exchange names attached to a result.
const maxDetails = 5

// Resolver infers the physical peering country of offshore ASNs from
// PeeringDB evidence, per ASN via a three-tier cascade: direct facility
// and exchange records, then the intersection of upstream peers'
// countries, then the geolocation-dominant country.
type Resolver struct {
	client   *Client
	domestic string
}

// NewResolver creates a resolver for the given domestic country code.
func NewResolver(client *Client, domesticCountry string) *Resolver {
	return &Resolver{client: client, domestic: domesticCountry}
}

// countryEvidence accumulates weighted evidence for one country.
type countryEvidence struct {
	weight  int
	details []string
}

// Resolve infers peering locations for each offshore ASN. geoDominant
// maps each ASN to its geolocation-dominant country; upstreams carries
// the adjacency facts from aggregation. ASNs whose dominant country is
// domestic are omitted.
func (r *Resolver) Resolve(ctx context.Context, geoDominant map[string]string, upstreams map[string][]string) map[string]models.PeeringLocation {
	if len(geoDominant) == 0 {
		return nil
	}

	// One batched sweep covers the offshore ASNs and all their upstreams.
	querySet := make(map[string]bool)
	asns := make([]string, 0, len(geoDominant))
	for asn := range geoDominant {
		asns = append(asns, asn)
		querySet[asn] = true
		for _, up := range upstreams[asn] {
			querySet[up] = true
		}
	}
	sort.Strings(asns)

	queryList := make([]string, 0, len(querySet))
	for asn := range querySet {
		queryList = append(queryList, asn)
	}
	sort.Strings(queryList)

	nets := r.client.FetchNets(ctx, queryList)
	exchanges, facilities := r.resolvePlaces(ctx, nets)

	results := make(map[string]models.PeeringLocation)
	for _, asn := range asns {
		loc, ok := r.resolveOne(asn, geoDominant[asn], upstreams[asn], nets, exchanges, facilities)
		if !ok {
			continue
		}
		results[asn] = loc
		log.Printf("[peeringdb] AS%s peers in %s (source: %s)", asn, loc.Country, loc.Source)
	}
	return results
}

func (r *Resolver) resolvePlaces(ctx context.Context, nets map[string]Net) (map[int]Place, map[int]Place) {
	ixSet := make(map[int]bool)
	facSet := make(map[int]bool)
	for _, net := range nets {
		for _, ix := range net.Netixes {
			ixSet[ix.IXID] = true
		}
		for _, fac := range net.Netfacs {
			facSet[fac.FacID] = true
		}
	}

	ixIDs := make([]int, 0, len(ixSet))
	for id := range ixSet {
		ixIDs = append(ixIDs, id)
	}
	sort.Ints(ixIDs)
	facIDs := make([]int, 0, len(facSet))
	for id := range facSet {
		facIDs = append(facIDs, id)
	}
	sort.Ints(facIDs)

	var exchanges, facilities map[int]Place
	if len(ixIDs) > 0 {
		exchanges = r.client.FetchExchanges(ctx, ixIDs)
	}
	if len(facIDs) > 0 {
		facilities = r.client.FetchFacilities(ctx, facIDs)
	}
	return exchanges, facilities
}

func (r *Resolver) resolveOne(asn, geoDominant string, upstreams []string, nets map[string]Net, exchanges, facilities map[int]Place) (models.PeeringLocation, bool) {
	// Tier 1: the ASN's own facility and exchange records.
	if net, ok := nets[asn]; ok {
		ev := r.evidence(net, exchanges, facilities)
		if cc, e := pickCountry(ev); cc != "" {
			return models.PeeringLocation{
				Country: cc,
				Details: dedupeDetails(e.details),
				Source:  models.PeeringSourceDirect,
			}, true
		}
	}

	// Tier 2: intersect upstream peers' country sets; transit providers
	// cluster at shared exchange points.
	if loc, ok := r.resolveFromUpstreams(upstreams, nets, exchanges, facilities); ok {
		return loc, true
	}

	// Tier 3: geolocation fallback. Nothing to resolve when the dominant
	// country is domestic.
	if geoDominant != "" && geoDominant != r.domestic {
		return models.PeeringLocation{
			Country: geoDominant,
			Source:  models.PeeringSourceGeo,
		}, true
	}
	return models.PeeringLocation{}, false
}

func (r *Resolver) resolveFromUpstreams(upstreams []string, nets map[string]Net, exchanges, facilities map[int]Place) (models.PeeringLocation, bool) {
	combined := make(map[string]*countryEvidence)
	var peerSets []map[string]bool

	for _, up := range upstreams {
		net, ok := nets[up]
		if !ok {
			continue
		}
		ev := r.evidence(net, exchanges, facilities)
		if len(ev) == 0 {
			continue
		}
		set := make(map[string]bool, len(ev))
		for cc, e := range ev {
			set[cc] = true
			ce := combined[cc]
			if ce == nil {
				ce = &countryEvidence{}
				combined[cc] = ce
			}
			ce.weight += e.weight
			ce.details = append(ce.details, e.details...)
		}
		peerSets = append(peerSets, set)
	}

	if len(peerSets) == 0 {
		return models.PeeringLocation{}, false
	}

	intersection := peerSets[0]
	for _, set := range peerSets[1:] {
		next := make(map[string]bool)
		for cc := range intersection {
			if set[cc] {
				next[cc] = true
			}
		}
		intersection = next
	}

	candidates := combined
	if len(intersection) > 0 {
		candidates = make(map[string]*countryEvidence, len(intersection))
		for cc := range intersection {
			candidates[cc] = combined[cc]
		}
	}
	// With an empty intersection the highest combined weight across all
	// peers decides; a deliberate deterministic tiebreak, not a stronger
	// signal.

	cc, e := pickCountry(candidates)
	if cc == "" {
		return models.PeeringLocation{}, false
	}
	return models.PeeringLocation{
		Country: cc,
		Details: dedupeDetails(e.details),
		Source:  models.PeeringSourceUpstream,
	}, true
}

// evidence aggregates weighted non-domestic country evidence from one
// network record.
func (r *Resolver) evidence(net Net, exchanges, facilities map[int]Place) map[string]*countryEvidence {
	ev := make(map[string]*countryEvidence)
	add := func(cc, name string, weight int) {
		if cc == "" || cc == r.domestic {
			return
		}
		e := ev[cc]
		if e == nil {
			e = &countryEvidence{}
			ev[cc] = e
		}
		e.weight += weight
		if name != "" {
			e.details = append(e.details, name)
		}
	}

	for _, ix := range net.Netixes {
		place, ok := exchanges[ix.IXID]
		if !ok {
			continue
		}
		weight := ix.Speed
		if weight < 1 {
			weight = 1
		}
		add(place.Country, place.Name, weight)
	}
	for _, fac := range net.Netfacs {
		place, ok := facilities[fac.FacID]
		if !ok {
			continue
		}
		add(place.Country, place.Name, facilityWeight)
	}
	return ev
}

// pickCountry returns the highest-weighted country; ties resolve to the
// lexicographically smaller code so runs are deterministic.
func pickCountry(ev map[string]*countryEvidence) (string, *countryEvidence) {
	best := ""
	for cc, e := range ev {
		if best == "" || e.weight > ev[best].weight || (e.weight == ev[best].weight && cc < best) {
			best = cc
		}
	}
	if best == "" {
		return "", nil
	}
	return best, ev[best]
}

func dedupeDetails(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		if len(out) == maxDetails {
			break
		}
	}
	return out
}
