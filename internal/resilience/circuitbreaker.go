// Package resilience shields the coaching pipeline from flaky provider
// backends.
//
// The building block is [CircuitBreaker], a three-state breaker
// (closed → open → half-open) that stops hammering a backend once it has
// failed repeatedly. [Chain] composes a primary provider with ordered
// fallbacks and gives each its own breaker, so a transcription, analysis,
// or completion call moves to the next healthy backend when the preferred
// one is down.
//
// All types are safe for concurrent use unless noted otherwise.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker
// has tripped and the cooldown has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards all calls. This is the normal operating state.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after
	// too many consecutive failures; left once the cooldown elapses.
	StateOpen

	// StateHalfOpen admits a limited number of probe calls after the
	// cooldown. Enough successes close the breaker; any failure reopens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds the tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output, typically the provider name.
	Name string

	// Threshold is the number of consecutive failures in the closed state
	// that trips the breaker. Default: 5.
	Threshold int

	// Cooldown is how long a tripped breaker rejects calls before letting
	// probes through. Default: 30s.
	Cooldown time.Duration

	// ProbeQuota is how many probe calls must succeed in the half-open
	// state before the breaker closes again. Default: 3.
	ProbeQuota int
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name       string
	threshold  int
	cooldown   time.Duration
	probeQuota int

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

// NewCircuitBreaker creates a [CircuitBreaker], substituting defaults for
// zero-value config fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 3
	}
	return &CircuitBreaker{
		name:       cfg.Name,
		threshold:  cfg.Threshold,
		cooldown:   cfg.Cooldown,
		probeQuota: cfg.ProbeQuota,
		state:      StateClosed,
	}
}

// Execute runs fn if the breaker admits the call. In the open state it
// returns [ErrCircuitOpen] without calling fn; in the half-open state only
// the probe quota gets through.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		slog.Info("circuit breaker half-open, probing backend", "name", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.probeQuota {
			// Probe budget spent; wait for the outcomes.
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	probe := cb.state == StateHalfOpen
	if probe {
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.fail(probe)
	} else {
		cb.succeed(probe)
	}
	return err
}

// fail handles failure accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) fail(probe bool) {
	if probe {
		// A single failed probe reopens immediately.
		cb.state = StateOpen
		cb.openedAt = time.Now()
		slog.Warn("circuit breaker reopened after failed probe", "name", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.threshold {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		slog.Warn("circuit breaker opened",
			"name", cb.name,
			"consecutive_failures", cb.failures)
	}
}

// succeed handles success accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) succeed(probe bool) {
	if probe {
		// Probes that were admitted and did not fail are successes; a
		// failed probe would already have reopened the breaker, so the
		// state check keeps a stale success from closing it again.
		if cb.state == StateHalfOpen && cb.probes >= cb.probeQuota {
			cb.state = StateClosed
			cb.failures = 0
			cb.probes = 0
			slog.Info("circuit breaker closed, backend recovered", "name", cb.name)
		}
		return
	}

	cb.failures = 0
}

// State returns the breaker's current [State]. An open breaker whose
// cooldown has elapsed is reported as half-open; the actual transition
// happens on the next [CircuitBreaker.Execute] call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
