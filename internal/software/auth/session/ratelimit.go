package session

import (
	"sync"
	"time"
)

// RateLimiter remembers the last successful send per phone number. One instance is shared by
// every session of a process; it is best-effort throttling and is not persisted.
type RateLimiter struct {
	mu          sync.Mutex
	last        map[string]time.Time
	minInterval time.Duration
	window      time.Duration
	now         func() time.Time
}

// NewRateLimiter blocks repeat sends to a number within minInterval and forgets entries
// older than window.
func NewRateLimiter(minInterval, window time.Duration) *RateLimiter {
	if window < minInterval {
		window = minInterval
	}
	return &RateLimiter{
		last:        make(map[string]time.Time),
		minInterval: minInterval,
		window:      window,
		now:         time.Now,
	}
}

// Check reports whether phone may be sent to now; when not, it returns the remaining wait.
func (r *RateLimiter) Check(phone string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, ok := r.last[phone]
	if !ok {
		return 0, true
	}
	elapsed := r.now().Sub(at)
	if elapsed >= r.minInterval {
		return 0, true
	}
	return r.minInterval - elapsed, false
}

// Record stamps phone and prunes entries older than the window.
func (r *RateLimiter) Record(phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, at := range r.last {
		if now.Sub(at) > r.window {
			delete(r.last, k)
		}
	}
	r.last[phone] = now
}

// Reset forgets every number.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	clear(r.last)
	r.mu.Unlock()
}

func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.last)
}
