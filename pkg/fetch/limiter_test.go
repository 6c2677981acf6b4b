package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testClock drives a limiter with a synthetic clock: sleeps advance
// virtual time instead of waiting.
func testClock(l *RateLimiter) *time.Time {
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	l.lastRefill = now
	return &now
}

func TestRateLimiter_RollingWindow(t *testing.T) {
	l := NewRateLimiter(4)
	now := testClock(l)
	ctx := context.Background()

	// Drain the initial burst capacity.
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Acquire(ctx))
	}

	var stamps []time.Time
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Acquire(ctx))
		stamps = append(stamps, *now)
	}

	// No rolling 1-second window may contain more than 4 acquisitions.
	for i := range stamps {
		count := 0
		for j := i; j < len(stamps); j++ {
			if stamps[j].Sub(stamps[i]) < time.Second {
				count++
			}
		}
		if count > 4 {
			t.Fatalf("window starting at %v holds %d acquisitions, want <= 4", stamps[i], count)
		}
	}
}

func TestRateLimiter_AcquireBlocksUntilRefill(t *testing.T) {
	l := NewRateLimiter(2)
	now := testClock(l)
	ctx := context.Background()

	start := *now
	for i := 0; i < 2; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	require.Equal(t, start, *now, "burst should not advance the clock")

	require.NoError(t, l.Acquire(ctx))
	require.Equal(t, 500*time.Millisecond, now.Sub(start), "third acquisition should wait one refill interval")
}

func TestRateLimiter_PauseHalvesRate(t *testing.T) {
	l := NewRateLimiter(8)
	now := testClock(l)
	ctx := context.Background()

	l.Pause(now.Add(30 * time.Second))
	require.Equal(t, 4.0, l.Rate())

	before := *now
	require.NoError(t, l.Acquire(ctx))
	require.GreaterOrEqual(t, now.Sub(before), 30*time.Second, "acquire should honor the pause deadline")

	// Rate keeps halving but never drops below 1/s.
	for i := 0; i < 10; i++ {
		l.Pause(*now)
	}
	require.Equal(t, 1.0, l.Rate())
}

func TestRateLimiter_AcquireCancellation(t *testing.T) {
	l := NewRateLimiter(1)
	testClock(l)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Acquire(ctx))
	cancel()
	err := l.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
