package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireEnforcesMinSpacing(t *testing.T) {
	l := NewSlidingWindowLimiter(10, 100*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	elapsed := time.Since(start)

	// window/quota = 10ms spacing; three grants need at least two gaps.
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestAcquireEnforcesWindowQuota(t *testing.T) {
	l := NewSlidingWindowLimiter(2, 200*time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
	// Third grant must wait for the first to leave the window.
	require.NoError(t, l.Acquire(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
}

func TestAcquireConcurrentNeverOverGrants(t *testing.T) {
	const quota = 5
	window := 200 * time.Millisecond
	l := NewSlidingWindowLimiter(quota, window)

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)

	for i := 0; i < quota+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, grants, quota+1)

	// No rolling window may contain more than quota grants.
	for i := range grants {
		count := 0
		for j := range grants {
			d := grants[j].Sub(grants[i])
			if d >= 0 && d < window {
				count++
			}
		}
		assert.LessOrEqual(t, count, quota)
	}
}

func TestAcquireCancellable(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
