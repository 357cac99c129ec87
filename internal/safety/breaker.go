// Package safety holds the interlocks that block new entries: a
// failure-window circuit breaker and per-day trade limits. Exits are
// never blocked by anything here.
package safety

import (
	"sync"
	"time"

	"github.com/CodeShali/scalp-bot/internal/logger"
)

// BreakerSnapshot is the persistable breaker state.
type BreakerSnapshot struct {
	Open     bool        `json:"open"`
	Failures []time.Time `json:"failures"`
}

// CircuitBreaker opens after too many failures inside a trailing
// window and stays open until manually reset. Reopening requires a
// human: there is no half-open probe for order flow.
type CircuitBreaker struct {
	mu        sync.Mutex
	name      string
	threshold int
	window    time.Duration
	failures  []time.Time
	open      bool
	now       func() time.Time
	onTrip    func(failures int)
}

func NewCircuitBreaker(name string, threshold int, window time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:      name,
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// SetTripHandler installs a callback invoked (on its own goroutine)
// when the breaker trips.
func (cb *CircuitBreaker) SetTripHandler(fn func(failures int)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onTrip = fn
}

// Allow reports whether new risk-taking is permitted.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return !cb.open
}

// IsOpen reports the tripped state.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// RecordFailure adds a failure to the window and trips the breaker
// when the windowed count reaches the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.prune(now)
	cb.failures = append(cb.failures, now)

	if !cb.open && len(cb.failures) >= cb.threshold {
		cb.open = true
		count := len(cb.failures)
		logger.Errorf("breaker %s tripped: %d failures within %s", cb.name, count, cb.window)
		if cb.onTrip != nil {
			go cb.onTrip(count)
		}
	}
}

// RecordSuccess prunes expired failures. Successes do not close an
// open breaker; only Reset does.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.prune(cb.now())
}

// Reset closes the breaker and clears the failure window. Manual only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	wasOpen := cb.open
	cb.open = false
	cb.failures = nil
	if wasOpen {
		logger.Warnf("breaker %s manually reset", cb.name)
	}
}

// Snapshot returns the state to persist.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	out := BreakerSnapshot{Open: cb.open, Failures: make([]time.Time, len(cb.failures))}
	copy(out.Failures, cb.failures)
	return out
}

// Restore loads persisted state, dropping failures that have aged out.
func (cb *CircuitBreaker) Restore(snap BreakerSnapshot) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.open = snap.Open
	cb.failures = append(cb.failures[:0], snap.Failures...)
	cb.prune(cb.now())
}

// prune drops failures older than the window. Callers hold the mutex.
func (cb *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-cb.window)
	kept := cb.failures[:0]
	for _, ts := range cb.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	cb.failures = kept
}
