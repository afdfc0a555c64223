package queue

import (
	"context"
	"sync"
	"time"
)

// RateLimiter admits at most max jobs per fixed window. It caps total
// outbound throughput across the whole pool regardless of how many jobs are
// simultaneously eligible.
type RateLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	windowStart time.Time
	admitted    int
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{max: max, window: window}
}

// Wait blocks until the current window has capacity or the context ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, retryIn := r.tryAcquire()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryIn):
		}
	}
}

// TryAcquire reports whether a slot is available right now.
func (r *RateLimiter) TryAcquire() bool {
	ok, _ := r.tryAcquire()
	return ok
}

func (r *RateLimiter) tryAcquire() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.admitted = 0
	}

	if r.admitted < r.max {
		r.admitted++
		return true, 0
	}

	return false, r.window - now.Sub(r.windowStart)
}
