// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resilience

import (
	"sync"
	"time"
)

// Registry hands out one breaker per key, created on first use. The probe
// client keys breakers by VCS host so one flaky forge does not block the
// others.
type Registry struct {
	mu           sync.Mutex
	prefix       string
	threshold    int
	resetTimeout time.Duration
	breakers     map[string]*CircuitBreaker
}

// NewRegistry creates a Registry. The prefix namespaces the per-key metric
// component, e.g. "probe".
func NewRegistry(prefix string, threshold int, resetTimeout time.Duration) *Registry {
	return &Registry{
		prefix:       prefix,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		breakers:     make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for key, creating it if needed.
func (r *Registry) For(key string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cb := NewCircuitBreaker(r.prefix+":"+key, r.threshold, r.resetTimeout)
	r.breakers[key] = cb
	return cb
}
