package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pranaflow/pranaflow/internal/content"
	"github.com/pranaflow/pranaflow/internal/cue"
	"github.com/pranaflow/pranaflow/internal/history"
	"github.com/pranaflow/pranaflow/internal/notify"
	"github.com/pranaflow/pranaflow/internal/observe"
	"github.com/pranaflow/pranaflow/internal/schedule"
	"github.com/pranaflow/pranaflow/pkg/analysis"
)

// ErrNoSession rejects an operation that needs an active session.
var ErrNoSession = errors.New("session: no active session")

// persistTimeout bounds the store writes triggered by a completed or saved
// session.
const persistTimeout = 5 * time.Second

// Kind distinguishes the two session flavours.
type Kind string

const (
	// KindPractice is a pose-practice session with accuracy feedback.
	KindPractice Kind = "practice"

	// KindMeditation is a plain timed meditation session.
	KindMeditation Kind = "meditation"
)

// IsValid reports whether k is a recognised session kind.
func (k Kind) IsValid() bool {
	return k == KindPractice || k == KindMeditation
}

// BeginRequest configures a new session. Beginning a session replaces any
// previous one.
type BeginRequest struct {
	Kind          Kind `json:"kind"`
	TargetSeconds int  `json:"targetSeconds"`

	// PoseID selects the pose for a practice session. Ignored for meditation.
	PoseID string `json:"poseId,omitempty"`

	// SoundID and AffirmationIDs carry the ambience selection of a
	// meditation session into its history record.
	SoundID        string   `json:"soundId,omitempty"`
	AffirmationIDs []string `json:"affirmationIds,omitempty"`
}

// Status is the manager's externally visible state.
type Status struct {
	Snapshot

	Kind Kind `json:"kind,omitempty"`

	// SessionURL is where a client opens the camera session for the active
	// practice pose. Empty for meditation sessions and simulated analysis.
	SessionURL string `json:"sessionUrl,omitempty"`

	// Accuracy is the latest pose accuracy reading. Only meaningful when
	// HasAccuracy is true.
	Accuracy    int  `json:"accuracy"`
	HasAccuracy bool `json:"hasAccuracy"`

	PresetMinutes []int `json:"presetMinutes"`
}

// Cadence holds the periods the manager's background loops run on.
type Cadence struct {
	// Tick is the timer resolution. Defaults to 1 second.
	Tick time.Duration

	// Guidance is the remaining-time announcement period. Defaults to 1 minute.
	Guidance time.Duration

	// Feedback is the accuracy cue period for practice sessions.
	// Defaults to 10 seconds.
	Feedback time.Duration
}

func (c Cadence) withDefaults() Cadence {
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.Guidance <= 0 {
		c.Guidance = time.Minute
	}
	if c.Feedback <= 0 {
		c.Feedback = 10 * time.Second
	}
	return c
}

// ResultSink receives finished practice sessions, typically the remote data
// service. Delivery is best effort; the local store is the source of truth.
type ResultSink interface {
	SaveSessionResult(ctx context.Context, result content.SessionResult) error
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithManagerNotifier sets the notice sink. Defaults to a log-only ring.
func WithManagerNotifier(n notify.Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithManagerMetrics sets the metrics instance.
func WithManagerMetrics(mx *observe.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mx }
}

// WithResultSink mirrors finished practice sessions to sink.
func WithResultSink(s ResultSink) ManagerOption {
	return func(m *Manager) { m.sink = s }
}

// WithPresets sets the timer presets reported in [Status], in minutes.
func WithPresets(minutes []int) ManagerOption {
	return func(m *Manager) {
		if len(minutes) > 0 {
			m.presets = minutes
		}
	}
}

// Manager owns the single active session: the timer plus the background
// loops that drive it (ticks, guidance announcements, accuracy feedback and
// the analyzer stream). Only one session exists at a time; beginning a new
// one tears the previous one down. All exported methods are safe for
// concurrent use.
type Manager struct {
	gate       *cue.Gate
	classifier *cue.Classifier
	store      history.Store
	poses      content.PoseSource
	analyzer   analysis.Analyzer
	cadence    Cadence
	notifier   notify.Notifier
	metrics    *observe.Metrics
	sink       ResultSink
	presets    []int

	mu        sync.Mutex
	timer     *Timer
	feedback  *FeedbackLoop
	announcer *Announcer
	kind      Kind
	poseID    string
	poseName  string
	handles   []*schedule.Handle
	runCancel context.CancelFunc
}

// NewManager creates a Manager with no active session.
func NewManager(gate *cue.Gate, classifier *cue.Classifier, store history.Store, poses content.PoseSource, analyzer analysis.Analyzer, cadence Cadence, opts ...ManagerOption) *Manager {
	m := &Manager{
		gate:       gate,
		classifier: classifier,
		store:      store,
		poses:      poses,
		analyzer:   analyzer,
		cadence:    cadence.withDefaults(),
		notifier:   notify.NewRing(),
		presets:    []int{5, 10, 15, 20, 30},
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Begin replaces any existing session with a fresh one and sets its target.
// For practice sessions the pose is resolved against the content source so
// cues and history records carry its display name.
func (m *Manager) Begin(ctx context.Context, req BeginRequest) (Status, error) {
	if !req.Kind.IsValid() {
		return m.CurrentStatus(), fmt.Errorf("session: unknown kind %q", req.Kind)
	}

	var poseName string
	if req.Kind == KindPractice && req.PoseID != "" {
		pose, err := m.poses.PoseByID(ctx, req.PoseID)
		if err != nil {
			return m.CurrentStatus(), fmt.Errorf("session: resolve pose %q: %w", req.PoseID, err)
		}
		poseName = pose.Name
	}

	m.mu.Lock()
	m.stopRunLocked()
	if m.timer != nil {
		// Settle the replaced run's gauge contribution and idle its state so
		// a tick callback still in flight cannot complete a discarded session.
		m.timer.Discard(ctx)
	}

	m.kind = req.Kind
	m.poseID = req.PoseID
	m.poseName = poseName

	opts := []TimerOption{
		WithTimerNotifier(m.notifier),
		WithTimerMetrics(m.metrics),
	}
	if poseName != "" {
		opts = append(opts, WithPose(req.PoseID, poseName))
	}

	// Capture the session's identity; the persist closure outlives any later
	// Begin call.
	kind := req.Kind
	poseID := req.PoseID
	soundID := req.SoundID
	affirmations := append([]string(nil), req.AffirmationIDs...)

	var fb *FeedbackLoop
	m.timer = NewTimer(m.gate, func(elapsed int, completed bool) {
		m.record(kind, poseID, poseName, soundID, affirmations, fb, elapsed, completed)
	}, opts...)
	fb = NewFeedbackLoop(m.timer, m.gate, m.classifier, m.metrics)
	m.feedback = fb
	m.announcer = NewAnnouncer(m.timer, m.gate)

	t := m.timer
	m.mu.Unlock()

	if err := t.SetTarget(req.TargetSeconds); err != nil {
		return m.CurrentStatus(), err
	}
	return m.CurrentStatus(), nil
}

// SetTarget adjusts the active session's length. When no session exists, a
// meditation session is begun implicitly, matching the standalone timer flow.
func (m *Manager) SetTarget(ctx context.Context, seconds int) error {
	m.mu.Lock()
	t := m.timer
	m.mu.Unlock()

	if t == nil {
		_, err := m.Begin(ctx, BeginRequest{Kind: KindMeditation, TargetSeconds: seconds})
		return err
	}
	return t.SetTarget(seconds)
}

// Start starts or resumes the active session and spins up its background
// loops.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	t := m.timer
	m.mu.Unlock()
	if t == nil {
		return ErrNoSession
	}

	if err := t.Start(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handles != nil {
		// Resuming from pause; the loops never stopped.
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.runCancel = cancel

	m.handles = append(m.handles, schedule.Start(runCtx, m.cadence.Tick, func(ctx context.Context) {
		t.Tick(ctx)
		if t.Snapshot().State == StateCompleted {
			m.stopRun()
		}
	}))

	ann := m.announcer
	m.handles = append(m.handles, schedule.Start(runCtx, m.cadence.Guidance, func(context.Context) {
		ann.Announce()
	}))

	if m.kind == KindPractice {
		fb := m.feedback
		m.handles = append(m.handles, schedule.Start(runCtx, m.cadence.Feedback, func(context.Context) {
			fb.Emit()
		}))

		go m.attachStream(runCtx, m.poseName, fb)
	}
	return nil
}

// attachStream dials the analyzer and hands its readings to the feedback
// loop. It runs outside the manager lock so an unreachable analysis server
// stalls only this goroutine, never the other session operations.
func (m *Manager) attachStream(ctx context.Context, poseName string, fb *FeedbackLoop) {
	readings, err := m.analyzer.Stream(ctx, poseName)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("session: accuracy stream unavailable", "pose", poseName, "err", err)
		m.notifier.Notify(notify.LevelWarn, "Feedback Unavailable",
			"Pose analysis could not be reached. The session will run without accuracy feedback.")
		return
	}
	fb.Consume(ctx, readings)
}

// Pause freezes the active session. The background loops keep running but
// go quiet until the session resumes.
func (m *Manager) Pause() error {
	m.mu.Lock()
	t := m.timer
	m.mu.Unlock()
	if t == nil {
		return ErrNoSession
	}
	return t.Pause()
}

// Reset rewinds the active session to the start and stops its background
// loops. The target and session configuration stay in place.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	t := m.timer
	m.mu.Unlock()
	if t == nil {
		return ErrNoSession
	}
	t.Reset(ctx)
	m.stopRun()
	return nil
}

// Save persists the session's elapsed time so far.
func (m *Manager) Save() error {
	m.mu.Lock()
	t := m.timer
	m.mu.Unlock()
	if t == nil {
		return ErrNoSession
	}
	return t.Save()
}

// SetMuted toggles voice guidance for the whole engine.
func (m *Manager) SetMuted(muted bool) {
	m.gate.SetMuted(muted)
}

// CurrentStatus reports the active session's state, or an idle status when
// no session exists.
func (m *Manager) CurrentStatus() Status {
	m.mu.Lock()
	t := m.timer
	fb := m.feedback
	kind := m.kind
	poseName := m.poseName
	m.mu.Unlock()

	st := Status{
		Snapshot:      Snapshot{State: StateIdle, Muted: m.gate.Muted()},
		PresetMinutes: append([]int(nil), m.presets...),
	}
	if t == nil {
		return st
	}

	st.Snapshot = t.Snapshot()
	st.Kind = kind
	if kind == KindPractice {
		st.SessionURL = m.analyzer.SessionURL(poseName)
		if r, ok := fb.Latest(); ok {
			st.Accuracy = r.Value
			st.HasAccuracy = true
		}
	}
	return st
}

// Close tears down the active session's background loops and settles its
// gauge contribution. The final cue, if any, is left to the gate's owner.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopRunLocked()
	if m.timer != nil {
		m.timer.Discard(context.Background())
	}
	m.mu.Unlock()
}

func (m *Manager) stopRun() {
	m.mu.Lock()
	m.stopRunLocked()
	m.mu.Unlock()
}

func (m *Manager) stopRunLocked() {
	if m.runCancel != nil {
		m.runCancel()
		m.runCancel = nil
	}
	for _, h := range m.handles {
		h.Stop()
	}
	m.handles = nil
}

// record persists a finished or explicitly saved session. Store failures
// surface as notices, never as errors: persistence runs inside timer
// callbacks.
func (m *Manager) record(kind Kind, poseID, poseName, soundID string, affirmations []string, fb *FeedbackLoop, elapsed int, completed bool) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	now := time.Now()
	switch kind {
	case KindPractice:
		rec := history.PracticeRecord{
			ID:              uuid.NewString(),
			PoseID:          poseID,
			PoseName:        poseName,
			Date:            now,
			DurationSeconds: elapsed,
			Completed:       completed,
		}
		var accuracy float64
		if r, ok := fb.Latest(); ok {
			accuracy = float64(r.Value)
			rec.Accuracy = accuracy
		}
		if err := m.store.AppendPractice(ctx, rec); err != nil {
			slog.Error("session: record practice", "err", err)
			m.notifier.Notify(notify.LevelError, "Save Failed", "Your practice session could not be recorded.")
			return
		}
		if m.sink != nil {
			result := content.SessionResult{
				Poses:           []string{poseName},
				Accuracies:      []float64{accuracy},
				DurationSeconds: elapsed,
			}
			if err := m.sink.SaveSessionResult(ctx, result); err != nil {
				slog.Warn("session: mirror practice to data service", "err", err)
				m.notifier.Notify(notify.LevelWarn, "Session Saved",
					"Saved locally. The data service could not be reached.")
			}
		}

	case KindMeditation:
		rec := history.MeditationRecord{
			ID:              uuid.NewString(),
			Date:            now,
			DurationSeconds: elapsed,
			AffirmationIDs:  affirmations,
			SoundID:         soundID,
			Completed:       completed,
		}
		if err := m.store.AppendMeditation(ctx, rec); err != nil {
			slog.Error("session: record meditation", "err", err)
			m.notifier.Notify(notify.LevelError, "Save Failed", "Your meditation session could not be recorded.")
		}
	}
}
