package fetch

import (
	"sync"
	"time"
)

// Progress is an advisory telemetry event emitted after each unit of work
// completes. It never affects control flow.
type Progress struct {
	Completed  int
	Failed     int
	Total      int
	ETASeconds float64
}

// ProgressTracker computes progress events from a running average of
// per-unit elapsed time and publishes them on a channel the caller polls.
// Sends are non-blocking: a slow consumer drops events, never stalls work.
type ProgressTracker struct {
	mu        sync.Mutex
	start     time.Time
	total     int
	completed int
	failed    int
	ch        chan Progress
}

// NewProgressTracker creates a tracker for total units of work.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		start: time.Now(),
		total: total,
		ch:    make(chan Progress, 64),
	}
}

// Events returns the progress event channel.
func (p *ProgressTracker) Events() <-chan Progress {
	return p.ch
}

// Done records one completed or failed unit and emits an event.
func (p *ProgressTracker) Done(ok bool) {
	p.mu.Lock()
	if ok {
		p.completed++
	} else {
		p.failed++
	}
	finished := p.completed + p.failed
	var eta float64
	if finished > 0 {
		avg := time.Since(p.start).Seconds() / float64(finished)
		eta = float64(p.total-finished) * avg
	}
	ev := Progress{
		Completed:  p.completed,
		Failed:     p.failed,
		Total:      p.total,
		ETASeconds: eta,
	}
	p.mu.Unlock()

	select {
	case p.ch <- ev:
	default:
	}
}

// Close closes the event channel. Call once all work is finished.
func (p *ProgressTracker) Close() {
	close(p.ch)
}

// Counts returns the completed and failed unit counts.
func (p *ProgressTracker) Counts() (completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.failed
}
