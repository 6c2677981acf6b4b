package analysis

import (
	"sort"

	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

// Progress is an advisory event emitted while observations are consumed.
type Progress struct {
	Processed int
	Valid     int
	Total     int
}

// Aggregator consumes normalized route observations and accumulates
// per-ASN and per-edge counts plus direct-adjacency facts. All state is
// private to the value; Reset returns it to empty between runs.
type Aggregator struct {
	countrySet map[string]bool

	seen          map[models.ObservationKey]bool
	outsideCounts map[string]int
	borderCounts  map[string]int
	originCounts  map[string]int

	intlEdges     map[models.EdgeKey]int
	domesticEdges map[models.EdgeKey]int
	// Insertion order of first appearance, for deterministic tie-breaks
	// when selecting top edges.
	intlOrder     []models.EdgeKey
	domesticOrder []models.EdgeKey

	// Country-member ASN -> set of its immediate non-member neighbors.
	upstreams map[string]map[string]bool

	processed int
	valid     int
	total     int

	progress chan<- Progress
	cadence  int
}

// NewAggregator creates an aggregator for the given country ASN set.
func NewAggregator(countrySet map[string]bool) *Aggregator {
	a := &Aggregator{countrySet: countrySet}
	a.Reset()
	return a
}

// SetProgress directs advisory progress events to ch, one every cadence
// observations. Sends are non-blocking; a slow consumer drops events.
func (a *Aggregator) SetProgress(ch chan<- Progress, cadence, total int) {
	a.progress = ch
	a.cadence = cadence
	a.total = total
}

// Reset clears all accumulated state. The country set is kept.
func (a *Aggregator) Reset() {
	a.seen = make(map[models.ObservationKey]bool)
	a.outsideCounts = make(map[string]int)
	a.borderCounts = make(map[string]int)
	a.originCounts = make(map[string]int)
	a.intlEdges = make(map[models.EdgeKey]int)
	a.domesticEdges = make(map[models.EdgeKey]int)
	a.intlOrder = nil
	a.domesticOrder = nil
	a.upstreams = make(map[string]map[string]bool)
	a.processed = 0
	a.valid = 0
}

// Observe consumes one observation and reports whether it counted.
// Duplicate (prefix, source) pairs and paths with fewer than two valid
// tokens are rejected as no-ops.
func (a *Aggregator) Observe(obs models.RouteObservation) bool {
	a.processed++
	if a.cadence > 0 && a.progress != nil && a.processed%a.cadence == 0 {
		select {
		case a.progress <- Progress{Processed: a.processed, Valid: a.valid, Total: a.total}:
		default:
		}
	}

	path := CleanPath(obs.Path)
	if obs.TargetPrefix == "" || obs.SourceID == "" || len(path) < 2 {
		return false
	}

	key := models.ObservationKey{TargetPrefix: obs.TargetPrefix, SourceID: obs.SourceID}
	if a.seen[key] {
		return false
	}
	a.seen[key] = true
	a.valid++

	// Walk backward from the origin, skipping country-member ASNs. The
	// first non-member is the outside AS; the member right after it (in
	// forward order) is the border gateway.
	i := len(path) - 1
	for i >= 0 && a.countrySet[path[i]] {
		i--
	}
	var outside, border string
	if i >= 0 {
		outside = path[i]
	}
	if i+1 < len(path) {
		border = path[i+1]
	}
	origin := path[len(path)-1]

	// Adjacency facts for the peering resolver: each country-member ASN's
	// immediate non-member neighbors.
	for pi := 0; pi < len(path)-1; pi++ {
		x, y := path[pi], path[pi+1]
		if a.countrySet[x] && !a.countrySet[y] {
			a.addUpstream(x, y)
		}
		if a.countrySet[y] && !a.countrySet[x] {
			a.addUpstream(y, x)
		}
	}

	if outside != "" && border != "" {
		a.outsideCounts[outside]++
		a.borderCounts[border]++
		a.addEdge(a.intlEdges, &a.intlOrder, models.EdgeKey{Source: outside, Target: border})

		if origin != border && a.countrySet[origin] {
			// Multi-hop domestic path behind the gateway.
			a.originCounts[origin]++
			a.addEdge(a.domesticEdges, &a.domesticOrder, models.EdgeKey{Source: origin, Target: border})
		} else if origin == border {
			// The origin is itself the border gateway; a self-loop edge
			// would be meaningless.
			a.originCounts[origin]++
		}
	}

	return true
}

func (a *Aggregator) addEdge(m map[models.EdgeKey]int, order *[]models.EdgeKey, k models.EdgeKey) {
	if _, ok := m[k]; !ok {
		*order = append(*order, k)
	}
	m[k]++
}

func (a *Aggregator) addUpstream(member, neighbor string) {
	set := a.upstreams[member]
	if set == nil {
		set = make(map[string]bool)
		a.upstreams[member] = set
	}
	set[neighbor] = true
}

// ValidObservations returns the number of counted observations.
func (a *Aggregator) ValidObservations() int { return a.valid }

// Processed returns the number of observations consumed, counted or not.
func (a *Aggregator) Processed() int { return a.processed }

// TopInternationalEdges returns up to n international edges by count,
// descending, ties broken by first-seen order.
func (a *Aggregator) TopInternationalEdges(n int) []models.Edge {
	return topEdges(a.intlEdges, a.intlOrder, n, models.EdgeInternational)
}

// TopDomesticEdges returns up to n domestic edges by count, descending,
// ties broken by first-seen order.
func (a *Aggregator) TopDomesticEdges(n int) []models.Edge {
	return topEdges(a.domesticEdges, a.domesticOrder, n, models.EdgeDomestic)
}

// UpstreamPeers returns, for each country-member ASN seen adjacent to a
// non-member, its non-member neighbors sorted for determinism.
func (a *Aggregator) UpstreamPeers() map[string][]string {
	out := make(map[string][]string, len(a.upstreams))
	for asn, set := range a.upstreams {
		peers := make([]string, 0, len(set))
		for p := range set {
			peers = append(peers, p)
		}
		sort.Strings(peers)
		out[asn] = peers
	}
	return out
}

func topEdges(m map[models.EdgeKey]int, order []models.EdgeKey, n int, kind string) []models.Edge {
	keys := append([]models.EdgeKey{}, order...)
	sort.SliceStable(keys, func(i, j int) bool {
		return m[keys[i]] > m[keys[j]]
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	edges := make([]models.Edge, 0, len(keys))
	for _, k := range keys {
		edges = append(edges, models.Edge{
			Source: k.Source,
			Target: k.Target,
			Count:  m[k],
			Kind:   kind,
		})
	}
	return edges
}
