// Package session implements the timed-session engine: the timer state
// machine, the minutes-remaining guidance announcer and the accuracy
// feedback loop. Ticks are driven externally by the schedule package; the
// timer itself never owns a goroutine, which keeps every transition
// testable by calling the tick method directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pranaflow/pranaflow/internal/cue"
	"github.com/pranaflow/pranaflow/internal/notify"
	"github.com/pranaflow/pranaflow/internal/observe"
)

var (
	// ErrZeroDuration rejects setting or starting a zero-length session.
	ErrZeroDuration = errors.New("session: duration is zero")

	// ErrSessionTooShort rejects saving before the minimum elapsed time.
	ErrSessionTooShort = errors.New("session: too short to save")

	// ErrInvalidTransition rejects an operation the current state does not
	// allow, e.g. pausing a session that is not running.
	ErrInvalidTransition = errors.New("session: invalid state transition")
)

// saveFloorSeconds is the minimum elapsed time for an explicit save.
// Completion persists regardless of this floor.
const saveFloorSeconds = 60

// State is the timer's lifecycle position.
type State string

const (
	// StateIdle means no target has been set yet.
	StateIdle State = "idle"
	// StateReady means a target is set and the timer can start.
	StateReady State = "ready"
	// StateRunning means elapsed time is accumulating.
	StateRunning State = "running"
	// StatePaused means elapsed time is frozen mid-run.
	StatePaused State = "paused"
	// StateCompleted means elapsed reached target.
	StateCompleted State = "completed"
)

// Snapshot is a point-in-time copy of the timer, safe to hand to API
// handlers.
type Snapshot struct {
	State          State  `json:"state"`
	TargetSeconds  int    `json:"targetSeconds"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
	PoseID         string `json:"poseId,omitempty"`
	PoseName       string `json:"poseName,omitempty"`
	Muted          bool   `json:"muted"`
}

// PersistFunc receives a finished or explicitly saved session. completed
// reports whether the target was reached. Implementations handle their own
// failures; persistence problems must never bounce back into the timer.
type PersistFunc func(elapsedSeconds int, completed bool)

// TimerOption configures a [Timer].
type TimerOption func(*Timer)

// WithPose attaches pose context carried into snapshots and records.
func WithPose(id, name string) TimerOption {
	return func(t *Timer) {
		t.poseID = id
		t.poseName = name
	}
}

// WithTimerNotifier sets the notice sink. Defaults to a log-only ring.
func WithTimerNotifier(n notify.Notifier) TimerOption {
	return func(t *Timer) { t.notifier = n }
}

// WithTimerMetrics sets the metrics instance.
func WithTimerMetrics(m *observe.Metrics) TimerOption {
	return func(t *Timer) { t.metrics = m }
}

// Timer is the session state machine. All methods are safe for concurrent
// use; every transition check reads live state under the mutex, so a tick
// racing a pause can never resurrect a stopped run.
type Timer struct {
	gate     *cue.Gate
	persist  PersistFunc
	notifier notify.Notifier
	metrics  *observe.Metrics
	poseID   string
	poseName string

	mu      sync.Mutex
	state   State
	target  int
	elapsed int
	counted bool // this run holds a +1 on the active-sessions gauge
}

// NewTimer creates an idle timer speaking through gate and persisting
// through persist.
func NewTimer(gate *cue.Gate, persist PersistFunc, opts ...TimerOption) *Timer {
	t := &Timer{
		gate:     gate,
		persist:  persist,
		notifier: notify.NewRing(),
		state:    StateIdle,
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// SetTarget sets the session length and moves to Ready. Rejected with
// [ErrZeroDuration] when seconds is not positive and with
// [ErrInvalidTransition] while running; neither changes state.
func (t *Timer) SetTarget(seconds int) error {
	if seconds <= 0 {
		t.notifier.Notify(notify.LevelError, "Invalid Timer",
			"Please select a duration greater than zero.")
		return ErrZeroDuration
	}

	t.mu.Lock()
	if t.state == StateRunning {
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot set target while running", ErrInvalidTransition)
	}
	t.state = StateReady
	t.target = seconds
	t.elapsed = 0
	t.mu.Unlock()

	t.gate.Speak("set", targetCue(seconds))
	return nil
}

// Start moves Ready or Paused to Running. Starting with no target set is
// rejected with [ErrZeroDuration]; starting a running or completed session
// with [ErrInvalidTransition].
func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.target == 0 {
		t.mu.Unlock()
		t.notifier.Notify(notify.LevelError, "Set a Timer",
			"Please select a session duration before starting.")
		return ErrZeroDuration
	}
	switch t.state {
	case StateReady, StatePaused:
	default:
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, state)
	}
	bump := !t.counted
	t.counted = true
	t.state = StateRunning
	t.mu.Unlock()

	if bump {
		t.metrics.ActiveSessions.Add(ctx, 1)
	}
	t.gate.Speak("start", "Starting your meditation session now. Take a deep breath and relax.")
	return nil
}

// Pause freezes a running session.
func (t *Timer) Pause() error {
	t.mu.Lock()
	if t.state != StateRunning {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, state)
	}
	t.state = StatePaused
	t.mu.Unlock()

	t.gate.Speak("pause", "Pausing your meditation session.")
	return nil
}

// Reset stops the session and zeroes elapsed time. The target is retained,
// so the state becomes Ready (or Idle when no target was ever set). Nothing
// is persisted.
func (t *Timer) Reset(ctx context.Context) {
	t.mu.Lock()
	wasCounted := t.counted
	t.counted = false
	t.elapsed = 0
	if t.target > 0 {
		t.state = StateReady
	} else {
		t.state = StateIdle
	}
	t.mu.Unlock()

	if wasCounted {
		t.metrics.ActiveSessions.Add(ctx, -1)
	}
	t.gate.Speak("reset", "Meditation timer has been reset.")
}

// Discard abandons the timer without speaking or persisting anything. It is
// used when a new session replaces this one: the gauge contribution is
// settled and the state drops to Idle, so a tick callback still in flight
// from the old run becomes a no-op.
func (t *Timer) Discard(ctx context.Context) {
	t.mu.Lock()
	wasCounted := t.counted
	t.counted = false
	t.elapsed = 0
	t.target = 0
	t.state = StateIdle
	t.mu.Unlock()

	if wasCounted {
		t.metrics.ActiveSessions.Add(ctx, -1)
	}
}

// Tick advances the clock by one second. It only acts while running;
// elapsed never passes the target, and reaching it completes the session
// exactly once: the run stops, the completion cue is spoken and the record
// is persisted regardless of the save floor.
func (t *Timer) Tick(ctx context.Context) {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}
	t.elapsed++
	if t.elapsed < t.target {
		t.mu.Unlock()
		t.metrics.TimerTicks.Add(ctx, 1)
		return
	}
	// Completion. The state change below makes a second completion
	// impossible: no further tick sees StateRunning.
	t.elapsed = t.target
	t.state = StateCompleted
	elapsed := t.elapsed
	wasCounted := t.counted
	t.counted = false
	t.mu.Unlock()

	t.metrics.TimerTicks.Add(ctx, 1)
	if wasCounted {
		t.metrics.ActiveSessions.Add(ctx, -1)
	}
	t.metrics.SessionDuration.Record(ctx, float64(elapsed))

	t.gate.Speak("complete",
		"Your meditation session is complete. Take a moment to bring your awareness back to the room.")
	t.notifier.Notify(notify.LevelInfo, "Session Complete",
		fmt.Sprintf("You've completed a %s session.", formatClock(elapsed)))
	t.persist(elapsed, true)
}

// Save writes one record for the session so far. Rejected with
// [ErrSessionTooShort] below the one-minute floor. A save while running
// records completed=false and does not stop the run.
func (t *Timer) Save() error {
	t.mu.Lock()
	elapsed := t.elapsed
	completed := t.state == StateCompleted
	t.mu.Unlock()

	if elapsed < saveFloorSeconds {
		t.notifier.Notify(notify.LevelError, "Session Too Short",
			"Practice for at least one minute to save your session.")
		return ErrSessionTooShort
	}

	t.persist(elapsed, completed)
	t.notifier.Notify(notify.LevelInfo, "Session Saved",
		"Your session has been saved to your history.")
	return nil
}

// Snapshot returns a copy of the current timer state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:          t.state,
		TargetSeconds:  t.target,
		ElapsedSeconds: t.elapsed,
		PoseID:         t.poseID,
		PoseName:       t.poseName,
		Muted:          t.gate.Muted(),
	}
}

// Running reports whether the timer is currently accumulating time.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateRunning
}

// Remaining returns the seconds left, zero when no target is set.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target == 0 {
		return 0
	}
	return t.target - t.elapsed
}

// targetCue phrases the duration the way a person would say it.
func targetCue(seconds int) string {
	minutes := seconds / 60
	rest := seconds % 60
	switch {
	case minutes == 0:
		return fmt.Sprintf("Timer set for %d seconds.", rest)
	case rest == 0:
		return fmt.Sprintf("Timer set for %d minutes.", minutes)
	default:
		return fmt.Sprintf("Timer set for %d minutes and %d seconds.", minutes, rest)
	}
}

// formatClock renders seconds as m:ss.
func formatClock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
