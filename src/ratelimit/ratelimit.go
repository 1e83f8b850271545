// Package ratelimit keeps token-bucket limiters keyed by caller (user id,
// key id, client IP) and evicts the ones that go idle.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 5 * time.Minute
	idleTTL         = 10 * time.Minute
)

// entry holds a rate limiter with last used timestamp
type entry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Registry manages per-key rate limiters with automatic cleanup
type Registry struct {
	limiters map[string]*entry
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts its cleanup goroutine
func NewRegistry() *Registry {
	r := &Registry{
		limiters: make(map[string]*entry),
		stopCh:   make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// PerMinute converts a requests-per-minute budget to a rate.Limit
func PerMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(n))
}

// Allow reports whether key may make one more request at the given limit.
// A limit change for an existing key (e.g. the user edited it) is applied in place.
func (r *Registry) Allow(key string, limit rate.Limit, burst int) bool {
	return r.get(key, limit, burst).Allow()
}

func (r *Registry) get(key string, limit rate.Limit, burst int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if e, ok := r.limiters[key]; ok {
		e.lastUsed = now
		if e.limiter.Limit() != limit {
			e.limiter.SetLimitAt(now, limit)
		}
		if e.limiter.Burst() != burst {
			e.limiter.SetBurstAt(now, burst)
		}
		return e.limiter
	}

	l := rate.NewLimiter(limit, burst)
	r.limiters[key] = &entry{limiter: l, lastUsed: now}
	return l
}

// Len returns the number of tracked keys
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// cleanupLoop removes stale entries every 5 minutes
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup(time.Now().Add(-idleTTL))
		case <-r.stopCh:
			return
		}
	}
}

// cleanup removes entries not used since cutoff
func (r *Registry) cleanup(cutoff time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, e := range r.limiters {
		if e.lastUsed.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}

// Stop terminates the cleanup goroutine
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
