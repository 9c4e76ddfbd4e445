package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every provider in a [Chain] fails or sits
// behind an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// ChainConfig configures the per-provider circuit breaker created for each
// entry in a [Chain]. The breaker Name is overridden with the entry name.
type ChainConfig struct {
	Breaker CircuitBreakerConfig
}

// chainEntry pairs one provider backend with its dedicated breaker.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Chain holds a primary provider and ordered fallbacks of the same type.
// A call goes to the first entry whose breaker admits it; on failure the
// next entry is tried. Breakers trip independently, so a dead primary is
// skipped outright until its cooldown elapses.
//
// Register all entries before the first call; execution is then safe for
// concurrent use.
type Chain[T any] struct {
	entries []chainEntry[T]
	cfg     ChainConfig
}

// NewChain creates a [Chain] with primary as the first entry. Fallbacks are
// registered with [Chain.Add].
func NewChain[T any](primary T, name string, cfg ChainConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(name, primary)
	return c
}

// Add appends a fallback provider. Entries are tried in the order they were
// added. Not safe to call concurrently with Execute.
func (c *Chain[T]) Add(name string, value T) {
	bcfg := c.cfg.Breaker
	bcfg.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(bcfg),
	})
}

// Primary returns the first registered provider.
func (c *Chain[T]) Primary() T {
	return c.entries[0].value
}

// Names returns the provider names in call order.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// States reports each entry's breaker state, keyed by provider name.
func (c *Chain[T]) States() map[string]State {
	states := make(map[string]State, len(c.entries))
	for _, e := range c.entries {
		states[e.name] = e.breaker.State()
	}
	return states
}

// Execute tries fn against each entry in order until one succeeds. Entries
// with open breakers are skipped. When every entry fails, the returned
// error matches [ErrAllFailed] and still wraps the last provider error, so
// a context cancellation stays visible to errors.Is.
func (c *Chain[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("provider circuit open, skipping", "provider", entry.name)
		} else {
			slog.Warn("provider call failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each entry until one succeeds,
// returning its result. A package-level function because Go methods cannot
// introduce new type parameters.
func ExecuteWithResult[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.entries {
		entry := &c.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("provider circuit open, skipping", "provider", entry.name)
		} else {
			slog.Warn("provider call failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
