// Package fetch provides a rate-limited HTTP client with retry, backoff,
// batching, and bounded-concurrency helpers for the upstream registries.
package fetch

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket. Tokens refill continuously in proportion
// to elapsed time; Acquire suspends until a token is available.
//
// On an upstream 429 the limiter pauses until the server-supplied deadline
// and permanently halves its refill rate (never below 1 token/s). All
// concurrent fetch waves share one limiter so the effective request rate
// stays bounded regardless of concurrency width.
type RateLimiter struct {
	mu          sync.Mutex
	tokens      float64
	maxTokens   float64
	refillRate  float64 // tokens per second
	lastRefill  time.Time
	pausedUntil time.Time

	// Injectable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained
// acquisitions, with burst capacity equal to the same value.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &RateLimiter{
		tokens:     requestsPerSecond,
		maxTokens:  requestsPerSecond,
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Acquire blocks until a token is available or the context is cancelled.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		now := l.now()

		// Honor an active 429 pause before consuming tokens.
		if wait := l.pausedUntil.Sub(now); wait > 0 {
			l.mu.Unlock()
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		elapsed := now.Sub(l.lastRefill).Seconds()
		l.tokens = min(l.maxTokens, l.tokens+elapsed*l.refillRate)
		l.lastRefill = now

		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
		l.mu.Unlock()
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Pause suspends token grants until the given deadline and halves the
// refill rate. The slowdown is persistent, not per-request.
func (l *RateLimiter) Pause(until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
	l.refillRate = l.refillRate / 2
	if l.refillRate < 1 {
		l.refillRate = 1
	}
}

// Rate returns the current refill rate in tokens per second.
func (l *RateLimiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refillRate
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
