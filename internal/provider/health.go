package provider

import (
	"sync"
	"time"
)

// Default circuit-breaker settings.
const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 2 * time.Minute
)

// adapterHealth tracks the failure streak of one adapter.
type adapterHealth struct {
	consecutiveFailures int
	openUntil           time.Time // adapter skipped until this instant
}

// HealthTracker implements a consecutive-failure circuit breaker per adapter.
// After threshold consecutive failures the adapter is skipped for a cooldown
// window, then retried.
type HealthTracker struct {
	mu        sync.Mutex
	state     map[string]*adapterHealth // keyed by adapter name
	threshold int
	cooldown  time.Duration

	// clock is overridable for tests.
	clock func() time.Time
}

// NewHealthTracker creates a tracker with the given breaker settings.
// Non-positive values fall back to the defaults.
func NewHealthTracker(threshold int, cooldown time.Duration) *HealthTracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &HealthTracker{
		state:     make(map[string]*adapterHealth),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Available reports whether the adapter may be tried now.
func (t *HealthTracker) Available(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.state[name]
	if !ok {
		return true
	}
	if h.openUntil.IsZero() {
		return true
	}
	if t.clock().After(h.openUntil) {
		// Cooldown elapsed: allow one probe attempt.
		h.openUntil = time.Time{}
		return true
	}
	return false
}

// RecordSuccess resets the adapter's failure streak.
func (t *HealthTracker) RecordSuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state, name)
}

// RecordFailure bumps the failure streak and opens the breaker when the
// streak exceeds the threshold.
func (t *HealthTracker) RecordFailure(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.state[name]
	if !ok {
		h = &adapterHealth{}
		t.state[name] = h
	}
	h.consecutiveFailures++
	if h.consecutiveFailures >= t.threshold {
		h.openUntil = t.clock().Add(t.cooldown)
	}
}

// Failures returns the adapter's current consecutive failure count.
func (t *HealthTracker) Failures(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.state[name]; ok {
		return h.consecutiveFailures
	}
	return 0
}
