// Package resilience keeps the engine usable when its external
// collaborators (the pose analysis server, the content data service) are
// down: a three-state circuit breaker per source and fallback chains that
// route around tripped entries, e.g. remote pose catalog to the embedded
// one, live analysis to the local simulator.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker is open and
// the cool-down has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cool-down
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through to decide
	// whether to close again.
	StateHalfOpen
)

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

const (
	defaultTripAfter = 3
	defaultCoolDown  = 20 * time.Second
	defaultProbes    = 2
)

// BreakerOption configures a [Breaker].
type BreakerOption func(*Breaker)

// WithTripAfter sets how many consecutive failures open the breaker.
// Default 3.
func WithTripAfter(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.tripAfter = n
		}
	}
}

// WithCoolDown sets how long the breaker stays open before probing.
// Default 20s.
func WithCoolDown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.coolDown = d
		}
	}
}

// WithProbes sets how many successful half-open probes close the breaker.
// Default 2.
func WithProbes(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.probes = n
		}
	}
}

// WithStateChange installs a hook invoked, outside the breaker lock, on
// every state transition. Used to surface degradation notices.
func WithStateChange(fn func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) { b.onChange = fn }
}

// Breaker is a three-state circuit breaker: closed until tripAfter
// consecutive failures, then open for coolDown, then half-open until probes
// successive probe calls succeed (any probe failure re-opens).
type Breaker struct {
	name      string
	tripAfter int
	coolDown  time.Duration
	probes    int
	onChange  func(name string, from, to State)

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probeWins int
}

// NewBreaker creates a closed breaker. name labels it in logs and the state
// change hook.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:      name,
		tripAfter: defaultTripAfter,
		coolDown:  defaultCoolDown,
		probes:    defaultProbes,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Do runs fn unless the breaker rejects the call. The returned error is
// fn's own, or [ErrCircuitOpen] when the call was never made.
func (b *Breaker) Do(fn func() error) error {
	var change *stateChange

	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.openedAt) < b.coolDown {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		change = b.transitionLocked(StateHalfOpen)
		b.probeWins = 0
	}
	probing := b.state == StateHalfOpen
	b.mu.Unlock()

	b.emit(change)

	err := fn()

	b.mu.Lock()
	if err != nil {
		change = b.failureLocked(probing)
	} else {
		change = b.successLocked(probing)
	}
	b.mu.Unlock()

	b.emit(change)
	return err
}

// State returns the breaker's mode. An open breaker past its cool-down
// reports half-open; the transition itself happens on the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.coolDown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	change := b.transitionLocked(StateClosed)
	b.failures = 0
	b.probeWins = 0
	b.mu.Unlock()
	b.emit(change)
}

type stateChange struct {
	from, to State
}

// transitionLocked moves to the new state and returns the change for the
// hook, or nil when the state did not move. Caller holds b.mu.
func (b *Breaker) transitionLocked(to State) *stateChange {
	if b.state == to {
		return nil
	}
	change := &stateChange{from: b.state, to: to}
	b.state = to
	return change
}

func (b *Breaker) failureLocked(probing bool) *stateChange {
	if probing {
		// One bad probe sends us straight back to open.
		b.openedAt = time.Now()
		slog.Warn("circuit breaker re-opened", "name", b.name)
		return b.transitionLocked(StateOpen)
	}
	b.failures++
	if b.failures >= b.tripAfter {
		b.openedAt = time.Now()
		slog.Warn("circuit breaker opened", "name", b.name, "failures", b.failures)
		return b.transitionLocked(StateOpen)
	}
	return nil
}

func (b *Breaker) successLocked(probing bool) *stateChange {
	if probing {
		b.probeWins++
		if b.probeWins >= b.probes {
			b.failures = 0
			slog.Info("circuit breaker closed", "name", b.name)
			return b.transitionLocked(StateClosed)
		}
		return nil
	}
	b.failures = 0
	return nil
}

func (b *Breaker) emit(change *stateChange) {
	if change != nil && b.onChange != nil {
		b.onChange(b.name, change.from, change.to)
	}
}
