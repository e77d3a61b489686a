package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter admits callers against a fixed quota per rolling
// window. In addition to the window count, a minimum spacing of
// window/quota must have elapsed since the previous grant; both
// constraints must hold before a slot is handed out.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	quota  int
	window time.Duration
	// timestamps of grants inside the current window, oldest first
	grants []time.Time

	// injectable clock for tests
	now func() time.Time
}

func NewSlidingWindowLimiter(quota int, window time.Duration) *SlidingWindowLimiter {
	if quota < 1 {
		quota = 1
	}
	return &SlidingWindowLimiter{
		quota:  quota,
		window: window,
		now:    time.Now,
	}
}

// minSpacing is the floor between two consecutive grants.
func (l *SlidingWindowLimiter) minSpacing() time.Duration {
	return l.window / time.Duration(l.quota)
}

// Acquire blocks until a slot is available or ctx is done. The grant is
// recorded under the lock, so two callers can never hold the same slot.
func (l *SlidingWindowLimiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire either records a grant atomically or reports how long the
// caller should sleep before retrying.
func (l *SlidingWindowLimiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictExpired(now)

	// Spacing constraint: satisfying the window count alone is not enough.
	if n := len(l.grants); n > 0 {
		sinceLast := now.Sub(l.grants[n-1])
		if sinceLast < l.minSpacing() {
			return l.minSpacing() - sinceLast, false
		}
	}

	if len(l.grants) >= l.quota {
		// Oldest grant must slide out of the window first.
		wait := l.grants[0].Add(l.window).Sub(now)
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		return wait, false
	}

	l.grants = append(l.grants, now)
	return 0, true
}

func (l *SlidingWindowLimiter) evictExpired(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.grants) && !l.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}

// InFlight returns the number of grants inside the current window.
func (l *SlidingWindowLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictExpired(l.now())
	return len(l.grants)
}
