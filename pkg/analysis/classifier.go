package analysis

import (
	"sort"

	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

// DefaultTopEdges caps how many edges of each kind are retained in the
// output graph.
const DefaultTopEdges = 1000

// LicenseSet answers whether an ASN holds a gateway license.
type LicenseSet interface {
	Contains(asn string) bool
}

// ClassifyInput carries the metadata the classifier consumes. Every field
// except CountrySet and CountryCode may be nil or empty; missing metadata
// defaults to unlicensed/unknown and routes through the normal decision
// tree.
type ClassifyInput struct {
	CountryCode string
	CountrySet  map[string]bool
	Licensed    LicenseSet
	Info        map[string]models.ASNInfo
	Geo         map[string]models.GeoResult
	Peering     map[string]models.PeeringLocation

	TopInternational int
	TopDomestic      int
	FailedBatches    int
}

// BuildGraph runs classification over the aggregator's accumulated counts
// and materializes the output graph. It only reads aggregate state, so
// re-running with different metadata reassigns types without touching raw
// counts, and identical inputs yield identical output.
func BuildGraph(agg *Aggregator, in ClassifyInput) *models.GraphDocument {
	topIntl := in.TopInternational
	if topIntl == 0 {
		topIntl = DefaultTopEdges
	}
	topDom := in.TopDomestic
	if topDom == 0 {
		topDom = DefaultTopEdges
	}

	intlEdges := agg.TopInternationalEdges(topIntl)
	domesticEdges := agg.TopDomesticEdges(topDom)

	// Gateways that serve domestic customers: targets of retained
	// domestic edges.
	hasDomestic := make(map[string]bool)
	for _, e := range domesticEdges {
		hasDomestic[e.Target] = true
	}

	nodeMap := make(map[string]*models.Node)
	var nodeOrder []string

	ensureNode := func(asn, tentative string) {
		if _, ok := nodeMap[asn]; ok {
			return
		}
		nodeType := tentative
		if tentative == models.TypeIIG {
			nodeType = classifyBorder(asn, in, hasDomestic)
		}

		info := in.Info[asn]
		name := info.Name
		if name == "" {
			name = "AS" + asn
		}
		country := info.Country
		if country == "" && in.CountrySet[asn] {
			country = in.CountryCode
		}

		var geoCountry string
		var geoBreakdown []models.GeoLocation
		if geo, ok := in.Geo[asn]; ok {
			geoCountry = geo.DominantCountry
			geoBreakdown = geo.Breakdown
		}

		node := &models.Node{
			ASN:          asn,
			Type:         nodeType,
			Licensed:     in.Licensed != nil && in.Licensed.Contains(asn),
			Name:         name,
			Description:  info.Holder,
			Country:      country,
			GeoCountry:   geoCountry,
			GeoBreakdown: geoBreakdown,
			Announced:    info.Announced,
		}
		if p, ok := in.Peering[asn]; ok {
			node.PeeringCountry = p.Country
			node.PeeringDetails = p.Details
			node.PeeringSource = p.Source
		}
		nodeMap[asn] = node
		nodeOrder = append(nodeOrder, asn)
	}

	edges := make([]models.Edge, 0, len(intlEdges)+len(domesticEdges))
	for _, e := range intlEdges {
		ensureNode(e.Source, models.TypeOutside)
		ensureNode(e.Target, models.TypeIIG)
		edges = append(edges, e)
	}
	for _, e := range domesticEdges {
		ensureNode(e.Source, models.TypeLocalCompany)
		ensureNode(e.Target, models.TypeIIG)
		edges = append(edges, e)
	}

	// Node traffic sums counts over retained edges only, so displayed
	// totals always match displayed edges.
	for _, e := range edges {
		if n, ok := nodeMap[e.Source]; ok {
			n.Traffic += e.Count
		}
		if n, ok := nodeMap[e.Target]; ok {
			n.Traffic += e.Count
		}
	}

	totalIntlTraffic := 0
	for _, e := range intlEdges {
		totalIntlTraffic += e.Count
	}
	denom := totalIntlTraffic
	if denom == 0 {
		denom = 1
	}

	// Rank within each type by traffic; percentages share the total
	// international denominator so they are comparable across types.
	for _, ntype := range []string{
		models.TypeOutside, models.TypeIIG, models.TypeDetectedIIG,
		models.TypeOffshoreEnterprise, models.TypeOffshoreGateway, models.TypeLocalCompany,
	} {
		var typed []*models.Node
		for _, asn := range nodeOrder {
			if nodeMap[asn].Type == ntype {
				typed = append(typed, nodeMap[asn])
			}
		}
		sort.SliceStable(typed, func(i, j int) bool {
			return typed[i].Traffic > typed[j].Traffic
		})
		for rank, n := range typed {
			n.Rank = rank + 1
			n.Percentage = float64(n.Traffic) / float64(denom) * 100
		}
	}

	nodes := make([]models.Node, 0, len(nodeOrder))
	for _, asn := range nodeOrder {
		nodes = append(nodes, *nodeMap[asn])
	}

	doc := &models.GraphDocument{
		Nodes: nodes,
		Edges: edges,
		Stats: models.Stats{
			TotalEdges:         len(edges),
			TotalIntlEdges:     len(intlEdges),
			TotalDomesticEdges: len(domesticEdges),
			TotalTraffic:       totalIntlTraffic,
			ValidObservations:  agg.ValidObservations(),
			FailedBatches:      in.FailedBatches,
		},
	}
	for _, n := range nodes {
		switch n.Type {
		case models.TypeOutside:
			doc.Stats.TotalOutside++
		case models.TypeIIG:
			doc.Stats.TotalIIG++
		case models.TypeDetectedIIG:
			doc.Stats.TotalDetectedIIG++
		case models.TypeOffshoreEnterprise:
			doc.Stats.TotalOffshoreEnterprise++
		case models.TypeOffshoreGateway:
			doc.Stats.TotalOffshoreGateway++
		case models.TypeLocalCompany:
			doc.Stats.TotalLocalCompany++
		}
	}
	return doc
}

// classifyBorder assigns a tentative border gateway to one of the five
// inside categories. First match wins:
//
//  1. on the license list                                  -> iig
//  2. country-registered, abroad, serves domestic customers -> offshore-gateway
//  3. country-registered, abroad, no domestic customers     -> offshore-enterprise
//  4. serves domestic customers without a license           -> detected-iig
//  5. otherwise                                             -> local-company
func classifyBorder(asn string, in ClassifyInput, hasDomestic map[string]bool) string {
	if in.Licensed != nil && in.Licensed.Contains(asn) {
		return models.TypeIIG
	}

	registered := in.CountrySet[asn]
	var geoCountry string
	if geo, ok := in.Geo[asn]; ok {
		geoCountry = geo.DominantCountry
	}
	abroad := registered && geoCountry != "" && geoCountry != in.CountryCode

	switch {
	case abroad && hasDomestic[asn]:
		return models.TypeOffshoreGateway
	case abroad:
		return models.TypeOffshoreEnterprise
	case hasDomestic[asn]:
		return models.TypeDetectedIIG
	default:
		return models.TypeLocalCompany
	}
}

// TentativeBorders returns the border ASNs of the retained international
// edges that are country-registered and unlicensed, the candidates for
// geolocation and offshore checks.
func TentativeBorders(agg *Aggregator, topIntl int, countrySet map[string]bool, licensed LicenseSet) []string {
	if topIntl == 0 {
		topIntl = DefaultTopEdges
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range agg.TopInternationalEdges(topIntl) {
		asn := e.Target
		if seen[asn] || !countrySet[asn] {
			continue
		}
		if licensed != nil && licensed.Contains(asn) {
			continue
		}
		seen[asn] = true
		out = append(out, asn)
	}
	return out
}

// CountedASNs returns every ASN that accumulated outside, border, or
// origin counts, deduplicated and sorted.
func CountedASNs(agg *Aggregator) []string {
	seen := make(map[string]bool)
	for asn := range agg.outsideCounts {
		seen[asn] = true
	}
	for asn := range agg.borderCounts {
		seen[asn] = true
	}
	for asn := range agg.originCounts {
		seen[asn] = true
	}
	out := make([]string, 0, len(seen))
	for asn := range seen {
		out = append(out, asn)
	}
	sort.Strings(out)
	return out
}
