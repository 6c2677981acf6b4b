package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

func TestWorker_Lifecycle(t *testing.T) {
	w := NewWorker()
	w.Start()
	defer w.Stop()

	countrySet := map[string]bool{"17494": true, "24342": true}
	w.Init(countrySet, 0, 3)

	processed, valid := w.Batch([]models.RouteObservation{
		obs("103.0.0.0/10", "s1", "174", "17494", "24342"),
		obs("103.0.0.0/10", "s1", "174", "17494", "24342"), // duplicate key
		obs("", "s2", "174", "17494"),                      // invalid
	})
	require.Equal(t, 3, processed)
	require.Equal(t, 1, valid)

	summary := w.Summary(0, nil)
	require.Equal(t, 1, summary.ValidObservations)
	require.Contains(t, summary.TentativeBorders, "17494")
	require.Equal(t, []string{"174"}, summary.UpstreamPeers["17494"])

	doc := w.Finalize(ClassifyInput{CountryCode: "BD", CountrySet: countrySet})
	require.NotNil(t, doc)
	require.Equal(t, 1, doc.Stats.ValidObservations)
	require.Equal(t, 1, doc.Stats.TotalIntlEdges)

	w.Reset()
	summary = w.Summary(0, nil)
	require.Equal(t, 0, summary.ValidObservations)
	require.Empty(t, summary.ASNs)
}

func TestWorker_SameResultsAsDirectAggregation(t *testing.T) {
	countrySet := map[string]bool{"17494": true, "24342": true}
	routes := []models.RouteObservation{
		obs("103.0.0.0/10", "s1", "174", "17494", "24342"),
		obs("103.64.0.0/10", "s2", "3356", "17494"),
	}
	in := ClassifyInput{CountryCode: "BD", CountrySet: countrySet}

	agg := NewAggregator(countrySet)
	for _, r := range routes {
		agg.Observe(r)
	}
	direct := BuildGraph(agg, in)

	w := NewWorker()
	w.Start()
	defer w.Stop()
	w.Init(countrySet, 0, len(routes))
	w.Batch(routes)
	offloaded := w.Finalize(in)

	require.Equal(t, direct, offloaded, "the algorithm must produce identical results regardless of where it runs")
}
