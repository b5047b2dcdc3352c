package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [Chain] failed or had an
// open breaker.
var ErrAllFailed = errors.New("all sources failed")

// chainEntry pairs a source with its breaker.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain tries a primary source first and falls through to alternatives in
// registration order. Each entry carries its own [Breaker], so a source
// that keeps failing is skipped outright until its cool-down elapses.
//
// Chain is safe for concurrent use once assembled; [Chain.Add] must not
// race with calls.
type Chain[T any] struct {
	entries    []chainEntry[T]
	opts       []BreakerOption
	onFallback func(name string)
}

// NewChain creates a chain with primary as the first entry. opts apply to
// the breaker of every entry.
func NewChain[T any](name string, primary T, opts ...BreakerOption) *Chain[T] {
	c := &Chain[T]{opts: opts}
	c.Add(name, primary)
	return c
}

// Add appends a fallback source.
func (c *Chain[T]) Add(name string, value T) {
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(name, c.opts...),
	})
}

// OnFallback installs a hook invoked with the serving entry's name whenever
// a non-primary entry serves a call. Used for "showing local data" notices.
func (c *Chain[T]) OnFallback(fn func(name string)) {
	c.onFallback = fn
}

// Primary returns the first entry's source.
func (c *Chain[T]) Primary() T {
	return c.entries[0].value
}

// Do tries fn against each entry until one succeeds. Entries with open
// breakers are skipped. When every entry fails the last error is wrapped in
// [ErrAllFailed].
func (c *Chain[T]) Do(fn func(T) error) error {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]
		err := entry.breaker.Do(func() error { return fn(entry.value) })
		if err == nil {
			if i > 0 && c.onFallback != nil {
				c.onFallback(entry.name)
			}
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping source, circuit open", "source", entry.name)
		} else {
			slog.Warn("source failed, trying next", "source", entry.name, "err", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// Fetch is [Chain.Do] for calls that return a value. Package-level because
// methods cannot introduce type parameters.
func Fetch[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := c.Do(func(v T) error {
		var innerErr error
		result, innerErr = fn(v)
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
