package cooldown

import (
	"sync"
	"time"
)

// Registry blocks repeatedly failing pairs for a fixed window. Entries
// are compared against the clock on read; expired ones are dropped
// lazily, there is no background sweep.
type Registry struct {
	mu    sync.RWMutex
	until map[string]time.Time
}

func NewRegistry() *Registry {
	return &Registry{until: make(map[string]time.Time)}
}

// Blocked reports whether pairKey is still cooling down at `now`. A key
// blocked at t for duration d is blocked for now in [t, t+d) and free
// from t+d on.
func (r *Registry) Blocked(pairKey string, now time.Time) bool {
	r.mu.RLock()
	until, ok := r.until[pairKey]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if now.Before(until) {
		return true
	}

	r.mu.Lock()
	if u, ok := r.until[pairKey]; ok && !now.Before(u) {
		delete(r.until, pairKey)
	}
	r.mu.Unlock()
	return false
}

// Block cools pairKey down for d starting at now. Re-blocking an
// already blocked key resets its window.
func (r *Registry) Block(pairKey string, now time.Time, d time.Duration) {
	r.mu.Lock()
	r.until[pairKey] = now.Add(d)
	r.mu.Unlock()
}

// Snapshot returns the still-active entries and their unblock times.
func (r *Registry) Snapshot(now time.Time) map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]time.Time, len(r.until))
	for key, until := range r.until {
		if now.Before(until) {
			out[key] = until
		}
	}
	return out
}
