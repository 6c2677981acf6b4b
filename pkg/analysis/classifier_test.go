package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

type stubLicense map[string]bool

func (s stubLicense) Contains(asn string) bool { return s[asn] }

// buildAggregator seeds an aggregator with routes through two border
// gateways: 17494 (with a domestic customer 24342) and 9230 (origin-only).
func buildAggregator(t *testing.T) (*Aggregator, map[string]bool) {
	t.Helper()
	countrySet := map[string]bool{"17494": true, "9230": true, "24342": true}
	a := NewAggregator(countrySet)

	require.True(t, a.Observe(obs("103.0.0.0/10", "s1", "174", "17494", "24342")))
	require.True(t, a.Observe(obs("103.64.0.0/10", "s2", "174", "17494", "24342")))
	require.True(t, a.Observe(obs("103.128.0.0/10", "s3", "3356", "9230")))
	return a, countrySet
}

func classifyWith(t *testing.T, in ClassifyInput) *models.GraphDocument {
	t.Helper()
	agg, countrySet := buildAggregator(t)
	in.CountryCode = "BD"
	in.CountrySet = countrySet
	return BuildGraph(agg, in)
}

func nodeByASN(t *testing.T, doc *models.GraphDocument, asn string) models.Node {
	t.Helper()
	for _, n := range doc.Nodes {
		if n.ASN == asn {
			return n
		}
	}
	t.Fatalf("node %s not in graph", asn)
	return models.Node{}
}

func TestBuildGraph_MissingMetadataDefaults(t *testing.T) {
	// No license list, no geolocation, no ASN info: the classifier must
	// not fail, and the tree routes on behavior alone.
	doc := classifyWith(t, ClassifyInput{})

	require.Equal(t, models.TypeDetectedIIG, nodeByASN(t, doc, "17494").Type)
	require.Equal(t, models.TypeLocalCompany, nodeByASN(t, doc, "9230").Type)
	require.Equal(t, models.TypeOutside, nodeByASN(t, doc, "174").Type)
	require.Equal(t, models.TypeOutside, nodeByASN(t, doc, "3356").Type)
	require.Equal(t, models.TypeLocalCompany, nodeByASN(t, doc, "24342").Type)
}

func TestBuildGraph_LicenseWinsOverOffshore(t *testing.T) {
	// 17494 satisfies both the license rule and every offshore-gateway
	// criterion; the license rule has priority.
	doc := classifyWith(t, ClassifyInput{
		Licensed: stubLicense{"17494": true},
		Geo: map[string]models.GeoResult{
			"17494": {DominantCountry: "SG"},
		},
	})

	n := nodeByASN(t, doc, "17494")
	require.Equal(t, models.TypeIIG, n.Type)
	require.True(t, n.Licensed)
}

func TestBuildGraph_OffshoreSplit(t *testing.T) {
	geo := map[string]models.GeoResult{
		"17494": {DominantCountry: "SG"},
		"9230":  {DominantCountry: "IN"},
	}
	doc := classifyWith(t, ClassifyInput{Geo: geo})

	// 17494 serves a domestic customer: the compliance-risk case.
	require.Equal(t, models.TypeOffshoreGateway, nodeByASN(t, doc, "17494").Type)
	// 9230 has no downstream: benign.
	require.Equal(t, models.TypeOffshoreEnterprise, nodeByASN(t, doc, "9230").Type)
}

func TestBuildGraph_DomesticGeoIsNotOffshore(t *testing.T) {
	doc := classifyWith(t, ClassifyInput{
		Geo: map[string]models.GeoResult{"17494": {DominantCountry: "BD"}},
	})
	require.Equal(t, models.TypeDetectedIIG, nodeByASN(t, doc, "17494").Type)
}

func TestBuildGraph_PercentageDenominator(t *testing.T) {
	doc := classifyWith(t, ClassifyInput{})

	total := 0
	for _, e := range doc.Edges {
		if e.Kind == models.EdgeInternational {
			total += e.Count
		}
	}
	require.Equal(t, total, doc.Stats.TotalTraffic, "denominator must equal retained international traffic")

	// 17494 carries 2 intl + 2 domestic counts = 4 traffic over 3 total.
	n := nodeByASN(t, doc, "17494")
	require.Equal(t, 4, n.Traffic)
	require.InDelta(t, float64(4)/float64(3)*100, n.Percentage, 1e-9)
}

func TestBuildGraph_TruncationDropsUnselected(t *testing.T) {
	agg, countrySet := buildAggregator(t)
	doc := BuildGraph(agg, ClassifyInput{
		CountryCode:      "BD",
		CountrySet:       countrySet,
		TopInternational: 1,
		TopDomestic:      1,
	})

	// Only the 174->17494 edge (count 2) survives the international cut;
	// 3356 and 9230 never materialize as nodes.
	require.Equal(t, 1, doc.Stats.TotalIntlEdges)
	for _, n := range doc.Nodes {
		require.NotEqual(t, "3356", n.ASN)
		require.NotEqual(t, "9230", n.ASN)
	}
	require.Equal(t, 2, doc.Stats.TotalTraffic)
}

func TestBuildGraph_RankingWithinType(t *testing.T) {
	doc := classifyWith(t, ClassifyInput{})

	out174 := nodeByASN(t, doc, "174")
	out3356 := nodeByASN(t, doc, "3356")
	require.Equal(t, 1, out174.Rank, "174 carries more traffic")
	require.Equal(t, 2, out3356.Rank)
}

func TestBuildGraph_Idempotent(t *testing.T) {
	agg, countrySet := buildAggregator(t)
	in := ClassifyInput{
		CountryCode: "BD",
		CountrySet:  countrySet,
		Licensed:    stubLicense{"17494": true},
		Geo:         map[string]models.GeoResult{"9230": {DominantCountry: "IN"}},
	}

	first := BuildGraph(agg, in)
	second := BuildGraph(agg, in)
	require.Equal(t, first, second, "reclassifying the same counts must yield identical results")
}

func TestTentativeBorders(t *testing.T) {
	agg, countrySet := buildAggregator(t)

	borders := TentativeBorders(agg, 0, countrySet, stubLicense{"17494": true})
	require.Equal(t, []string{"9230"}, borders, "licensed gateways are not offshore candidates")

	borders = TentativeBorders(agg, 0, countrySet, nil)
	require.ElementsMatch(t, []string{"17494", "9230"}, borders)
}

func TestCountedASNs(t *testing.T) {
	agg, _ := buildAggregator(t)
	require.Equal(t, []string{"174", "17494", "24342", "3356", "9230"}, CountedASNs(agg))
}
