package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func working() error { return nil }

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("test", WithTripAfter(3))

	for i := 0; i < 3; i++ {
		if err := b.Do(failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}
	if err := b.Do(working); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker ran the call: err = %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("test", WithTripAfter(2))

	b.Do(failing)
	b.Do(working)
	b.Do(failing)

	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed (success between failures)", got)
	}
}

func TestBreakerHalfOpenClosesAfterProbes(t *testing.T) {
	b := NewBreaker("test", WithTripAfter(1), WithCoolDown(10*time.Millisecond), WithProbes(2))

	b.Do(failing)
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state after cool-down = %v, want half-open", got)
	}

	if err := b.Do(working); err != nil {
		t.Fatalf("first probe: %v", err)
	}
	if err := b.Do(working); err != nil {
		t.Fatalf("second probe: %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after probes = %v, want closed", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test", WithTripAfter(1), WithCoolDown(10*time.Millisecond))

	b.Do(failing)
	time.Sleep(20 * time.Millisecond)

	if err := b.Do(failing); !errors.Is(err, errBoom) {
		t.Fatalf("probe err = %v, want boom", err)
	}
	if err := b.Do(working); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("breaker did not re-open after failed probe: err = %v", err)
	}
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker("test", WithTripAfter(1))

	b.Do(failing)
	b.Reset()
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after reset = %v, want closed", got)
	}
	if err := b.Do(working); err != nil {
		t.Fatalf("call after reset: %v", err)
	}
}

func TestBreakerStateChangeHook(t *testing.T) {
	var transitions []string
	b := NewBreaker("analysis",
		WithTripAfter(1),
		WithCoolDown(10*time.Millisecond),
		WithProbes(1),
		WithStateChange(func(name string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	b.Do(failing)
	time.Sleep(20 * time.Millisecond)
	b.Do(working)

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}
