// Package breaker implements the per-endpoint circuit breaker state
// machine from spec §4.4. Its state names and "allow exactly one probe
// while open" policy are modeled on sony/gobreaker; the window-based
// failure counting is spec-bespoke (gobreaker counts consecutive
// failures, the spec counts failures within a rolling window), so the
// machine is hand-rolled rather than wrapping gobreaker directly.
package breaker

import (
	"sync"
	"time"

	"github.com/cuemby/relaybroker/pkg/types"
)

// Config tunes a Breaker's thresholds.
type Config struct {
	// MaxFailures is the failure count within Window that trips CLOSED -> OPEN.
	MaxFailures int
	// Window is the rolling interval over which failures are counted.
	Window time.Duration
	// HalfOpenTimeout is how long a breaker stays OPEN before allowing one
	// probe request through as HALF_OPEN.
	HalfOpenTimeout time.Duration
}

// DefaultConfig mirrors the defaults most broker implementations ship.
func DefaultConfig() Config {
	return Config{
		MaxFailures:     5,
		Window:          60 * time.Second,
		HalfOpenTimeout: 10 * time.Second,
	}
}

// failureRecord is a single failure timestamp, kept only long enough to
// fall out of the rolling window.
type failureRecord struct {
	at time.Time
}

// Breaker is a single endpoint's circuit breaker. It is safe for
// concurrent use.
type Breaker struct {
	cfg Config

	mu        sync.Mutex
	state     types.CircuitState
	failures  []failureRecord
	openedAt  time.Time
	halfOpen  bool // true while a single probe is in flight
	requests  uint64
	failCount uint64
	lastFail  time.Time
}

// New creates a Breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: types.CircuitClosed}
}

// State returns the breaker's current state, first promoting OPEN to
// HALF_OPEN if HalfOpenTimeout has elapsed (spec §4.4: "OPEN -> HALF_OPEN
// on now - openedAt >= halfOpenTimeout on select").
func (b *Breaker) State() types.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() types.CircuitState {
	if b.state == types.CircuitOpen && !b.halfOpen && time.Since(b.openedAt) >= b.cfg.HalfOpenTimeout {
		b.state = types.CircuitHalfOpen
	}
	return b.state
}

// Allow reports whether a call may be attempted against this endpoint
// right now, and — for the HALF_OPEN case — atomically claims the single
// probe slot so concurrent callers don't all pile through during the
// probe window.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case types.CircuitClosed:
		return true
	case types.CircuitHalfOpen:
		if b.halfOpen {
			// a probe is already in flight; everyone else waits.
			return false
		}
		b.halfOpen = true
		return true
	default: // OPEN
		return false
	}
}

// OnSuccess records a successful call.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	switch b.state {
	case types.CircuitHalfOpen:
		// probe succeeded: fully close and reset counters.
		b.state = types.CircuitClosed
		b.halfOpen = false
		b.failures = nil
		b.failCount = 0
	case types.CircuitClosed:
		// success below threshold: nothing to trip, counters stay as-is.
	}
}

// OnFailure records a failed call and trips the breaker if warranted.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	b.failCount++
	b.lastFail = time.Now()

	switch b.state {
	case types.CircuitHalfOpen:
		// probe failed: back to OPEN, restart the half-open timer.
		b.state = types.CircuitOpen
		b.halfOpen = false
		b.openedAt = time.Now()
		return
	case types.CircuitOpen:
		return
	}

	now := time.Now()
	b.failures = append(b.failures, failureRecord{at: now})
	b.failures = pruneOlderThan(b.failures, now.Add(-b.cfg.Window))

	if len(b.failures) >= b.cfg.MaxFailures {
		b.state = types.CircuitOpen
		b.openedAt = now
	}
}

func pruneOlderThan(records []failureRecord, cutoff time.Time) []failureRecord {
	kept := records[:0]
	for _, r := range records {
		if r.at.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}

// Stats is a read-only snapshot for introspection/metrics.
type Stats struct {
	State     types.CircuitState
	Requests  uint64
	Failures  uint64
	LastFail  time.Time
}

// Snapshot returns the breaker's current counters.
func (b *Breaker) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:    b.stateLocked(),
		Requests: b.requests,
		Failures: b.failCount,
		LastFail: b.lastFail,
	}
}
