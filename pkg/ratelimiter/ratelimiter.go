package ratelimiter

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter is an in-memory sliding-window limiter keyed by caller,
// typically the client IP.
//
// Example usage:
//
//	rl := ratelimiter.New(clockwork.NewRealClock(), 60, time.Minute)
//	defer rl.Stop()
//
//	if !rl.Allow(clientIP) {
//	    return http.StatusTooManyRequests
//	}
type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	limit    int
	window   time.Duration
	attempts map[string][]time.Time // key -> timestamps inside the window
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter allowing limit requests per window and key. A
// background goroutine drops idle keys every window until Stop is called.
func New(clock clockwork.Clock, limit int, window time.Duration) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	rl := &RateLimiter{
		clock:    clock,
		limit:    limit,
		window:   window,
		attempts: make(map[string][]time.Time),
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow records a request for key and reports whether it fits the budget.
// Rejected requests are not recorded.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	valid := rl.prune(key, now)

	if len(valid) >= rl.limit {
		return false
	}

	rl.attempts[key] = append(valid, now)
	return true
}

// RetryAfter returns how long key has to wait before its oldest request
// leaves the window, or zero when it is under budget
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	valid := rl.prune(key, now)
	if len(valid) < rl.limit {
		return 0
	}

	return valid[0].Add(rl.window).Sub(now)
}

// Reset forgets every request recorded for key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.attempts, key)
}

// Stop terminates the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

// prune drops timestamps outside the window. Callers hold mu.
func (rl *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)

	attempts := rl.attempts[key]
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}

	valid := attempts[i:]
	if len(valid) == 0 {
		delete(rl.attempts, key)
		return nil
	}
	rl.attempts[key] = valid
	return valid
}

func (rl *RateLimiter) cleanup() {
	ticker := rl.clock.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			rl.mu.Lock()
			now := rl.clock.Now()
			for key := range rl.attempts {
				rl.prune(key, now)
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// keys returns the number of tracked keys
func (rl *RateLimiter) keys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}
