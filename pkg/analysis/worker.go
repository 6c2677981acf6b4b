package analysis

import (
	"sync"

	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

// Worker owns a private Aggregator on its own goroutine and exposes the
// aggregation step as explicit message passing: init, batch, finalize,
// reset. Nothing shares the aggregate state; results cross the boundary
// only through replies, so the same algorithm produces identical results
// wherever it runs.
type Worker struct {
	reqs     chan workerRequest
	progress chan Progress
	done     chan struct{}
	wg       sync.WaitGroup
}

type workerOp int

const (
	opInit workerOp = iota
	opBatch
	opSummary
	opFinalize
	opReset
)

type workerRequest struct {
	op         workerOp
	countrySet map[string]bool
	cadence    int
	total      int
	routes     []models.RouteObservation
	topIntl    int
	licensed   LicenseSet
	input      ClassifyInput
	reply      chan workerReply
}

type workerReply struct {
	processed int
	valid     int
	summary   Summary
	doc       *models.GraphDocument
}

// Summary exposes the aggregate facts the coordinator needs between the
// batch phase and finalize: which ASNs need metadata, which border ASNs
// are offshore candidates, and the upstream adjacency facts.
type Summary struct {
	ASNs              []string
	TentativeBorders  []string
	UpstreamPeers     map[string][]string
	ValidObservations int
}

// NewWorker creates a stopped worker. Call Start before use.
func NewWorker() *Worker {
	return &Worker{
		reqs:     make(chan workerRequest),
		progress: make(chan Progress, 64),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop shuts the worker down and waits for it to exit.
func (w *Worker) Stop() {
	close(w.done)
	w.wg.Wait()
}

// Progress returns the advisory progress event channel.
func (w *Worker) Progress() <-chan Progress {
	return w.progress
}

// Init installs the country ASN set and progress cadence, resetting any
// prior state.
func (w *Worker) Init(countrySet map[string]bool, cadence, total int) {
	w.call(workerRequest{op: opInit, countrySet: countrySet, cadence: cadence, total: total})
}

// Batch feeds one batch of observations and returns how many were
// processed and how many counted.
func (w *Worker) Batch(routes []models.RouteObservation) (processed, valid int) {
	r := w.call(workerRequest{op: opBatch, routes: routes})
	return r.processed, r.valid
}

// Summary reports the aggregate facts accumulated so far.
func (w *Worker) Summary(topIntl int, licensed LicenseSet) Summary {
	r := w.call(workerRequest{op: opSummary, topIntl: topIntl, licensed: licensed})
	return r.summary
}

// Finalize classifies the accumulated counts and returns the graph.
func (w *Worker) Finalize(in ClassifyInput) *models.GraphDocument {
	r := w.call(workerRequest{op: opFinalize, input: in})
	return r.doc
}

// Reset clears accumulated state for a fresh run.
func (w *Worker) Reset() {
	w.call(workerRequest{op: opReset})
}

func (w *Worker) call(req workerRequest) workerReply {
	req.reply = make(chan workerReply, 1)
	select {
	case w.reqs <- req:
		return <-req.reply
	case <-w.done:
		return workerReply{}
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()

	var agg *Aggregator
	for {
		select {
		case req := <-w.reqs:
			var reply workerReply
			switch req.op {
			case opInit:
				agg = NewAggregator(req.countrySet)
				agg.SetProgress(w.progress, req.cadence, req.total)
			case opBatch:
				if agg != nil {
					before := agg.ValidObservations()
					for _, obs := range req.routes {
						agg.Observe(obs)
					}
					reply.processed = len(req.routes)
					reply.valid = agg.ValidObservations() - before
				}
			case opSummary:
				if agg != nil {
					reply.summary = Summary{
						ASNs:              CountedASNs(agg),
						TentativeBorders:  TentativeBorders(agg, req.topIntl, agg.countrySet, req.licensed),
						UpstreamPeers:     agg.UpstreamPeers(),
						ValidObservations: agg.ValidObservations(),
					}
				}
			case opFinalize:
				if agg != nil {
					reply.doc = BuildGraph(agg, req.input)
				}
			case opReset:
				if agg != nil {
					agg.Reset()
				}
			}
			req.reply <- reply

		case <-w.done:
			return
		}
	}
}
