package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/pranaflow/pranaflow/internal/content"
	"github.com/pranaflow/pranaflow/internal/cue"
	"github.com/pranaflow/pranaflow/internal/history"
	"github.com/pranaflow/pranaflow/internal/notify"
	"github.com/pranaflow/pranaflow/internal/observe"
	"github.com/pranaflow/pranaflow/internal/session"
	"github.com/pranaflow/pranaflow/pkg/analysis"
	analysismock "github.com/pranaflow/pranaflow/pkg/analysis/mock"
	speechmock "github.com/pranaflow/pranaflow/pkg/speech/mock"
)

// memStore is an in-memory history.Store for manager tests.
type memStore struct {
	mu          sync.Mutex
	practices   []history.PracticeRecord
	meditations []history.MeditationRecord
	appendErr   error
}

func (s *memStore) AppendPractice(_ context.Context, rec history.PracticeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.practices = append(s.practices, rec)
	return nil
}

func (s *memStore) Practices(context.Context) ([]history.PracticeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]history.PracticeRecord(nil), s.practices...), nil
}

func (s *memStore) ClearPractices(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.practices = nil
	return nil
}

func (s *memStore) AppendMeditation(_ context.Context, rec history.MeditationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.meditations = append(s.meditations, rec)
	return nil
}

func (s *memStore) Meditations(context.Context) ([]history.MeditationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]history.MeditationRecord(nil), s.meditations...), nil
}

// recordingSink captures mirrored results.
type recordingSink struct {
	mu      sync.Mutex
	results []content.SessionResult
	err     error
}

func (s *recordingSink) SaveSessionResult(_ context.Context, r content.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, r)
	return nil
}

type managerFixture struct {
	manager  *session.Manager
	store    *memStore
	synth    *speechmock.Synthesizer
	analyzer *analysismock.Analyzer
	ring     *notify.Ring
}

func newManagerFixture(t *testing.T, opts ...session.ManagerOption) *managerFixture {
	t.Helper()

	synth := &speechmock.Synthesizer{}
	gate := cue.NewGate(synth)
	t.Cleanup(gate.Close)

	store := &memStore{}
	analyzer := &analysismock.Analyzer{
		URL: "http://localhost:5000/?pose=Tree+Pose",
		Readings: []analysis.Reading{
			{Value: 72, At: time.Now()},
			{Value: 88, At: time.Now()},
		},
	}
	ring := notify.NewRing()

	cadence := session.Cadence{
		Tick:     5 * time.Millisecond,
		Guidance: time.Hour,
		Feedback: time.Hour,
	}
	opts = append([]session.ManagerOption{session.WithManagerNotifier(ring)}, opts...)
	m := session.NewManager(gate, cue.NewClassifier(), store, content.NewCatalog(), analyzer, cadence, opts...)
	t.Cleanup(m.Close)

	return &managerFixture{manager: m, store: store, synth: synth, analyzer: analyzer, ring: ring}
}

func waitForState(t *testing.T, m *session.Manager, want session.State) session.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := m.CurrentStatus()
		if st.State == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timer never reached state %q (now %q)", want, m.CurrentStatus().State)
	return session.Status{}
}

func TestManagerBeginMeditation(t *testing.T) {
	f := newManagerFixture(t)

	st, err := f.manager.Begin(context.Background(), session.BeginRequest{
		Kind:          session.KindMeditation,
		TargetSeconds: 300,
		SoundID:       "sound-2",
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if st.State != session.StateReady {
		t.Errorf("state: got %q, want %q", st.State, session.StateReady)
	}
	if st.Kind != session.KindMeditation {
		t.Errorf("kind: got %q", st.Kind)
	}
	if len(st.PresetMinutes) == 0 {
		t.Error("status should carry timer presets")
	}
}

func TestManagerBeginRejectsUnknownKind(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Begin(context.Background(), session.BeginRequest{Kind: "nap", TargetSeconds: 60})
	if err == nil {
		t.Fatal("expected error for unknown kind, got nil")
	}
}

func TestManagerBeginRejectsUnknownPose(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Begin(context.Background(), session.BeginRequest{
		Kind:          session.KindPractice,
		TargetSeconds: 60,
		PoseID:        "999",
	})
	if err == nil {
		t.Fatal("expected error for unknown pose, got nil")
	}
}

func TestManagerOperationsWithoutSession(t *testing.T) {
	f := newManagerFixture(t)

	if err := f.manager.Start(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Start: got %v, want ErrNoSession", err)
	}
	if err := f.manager.Pause(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Pause: got %v, want ErrNoSession", err)
	}
	if err := f.manager.Reset(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Reset: got %v, want ErrNoSession", err)
	}
	if err := f.manager.Save(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Save: got %v, want ErrNoSession", err)
	}

	st := f.manager.CurrentStatus()
	if st.State != session.StateIdle {
		t.Errorf("idle status: got %q", st.State)
	}
}

func TestManagerSetTargetBeginsMeditation(t *testing.T) {
	f := newManagerFixture(t)

	if err := f.manager.SetTarget(context.Background(), 600); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	st := f.manager.CurrentStatus()
	if st.Kind != session.KindMeditation {
		t.Errorf("kind: got %q, want meditation", st.Kind)
	}
	if st.TargetSeconds != 600 {
		t.Errorf("target: got %d, want 600", st.TargetSeconds)
	}
}

func TestManagerPracticeRunToCompletion(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Begin(context.Background(), session.BeginRequest{
		Kind:          session.KindPractice,
		TargetSeconds: 3,
		PoseID:        "5",
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitForState(t, f.manager, session.StateCompleted)

	// The persist closure runs inside the completing tick; poll for the record.
	deadline := time.Now().Add(2 * time.Second)
	var recs []history.PracticeRecord
	for time.Now().Before(deadline) {
		recs, _ = f.store.Practices(context.Background())
		if len(recs) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(recs) != 1 {
		t.Fatalf("practice records: got %d, want 1", len(recs))
	}
	rec := recs[0]
	if !rec.Completed {
		t.Error("record should be marked completed")
	}
	if rec.DurationSeconds != 3 {
		t.Errorf("duration: got %d, want 3", rec.DurationSeconds)
	}
	if rec.PoseName != "Tree Pose" {
		t.Errorf("pose name: got %q, want %q", rec.PoseName, "Tree Pose")
	}
	if rec.ID == "" {
		t.Error("record should carry a generated ID")
	}
}

func TestManagerPracticeStatusCarriesSessionURL(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Begin(context.Background(), session.BeginRequest{
		Kind:          session.KindPractice,
		TargetSeconds: 120,
		PoseID:        "5",
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	st := f.manager.CurrentStatus()
	if st.SessionURL == "" {
		t.Error("practice status should carry the camera session URL")
	}
}

func TestManagerMeditationRunRecordsAmbience(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Begin(context.Background(), session.BeginRequest{
		Kind:           session.KindMeditation,
		TargetSeconds:  2,
		SoundID:        "sound-1",
		AffirmationIDs: []string{"aff-1", "aff-4"},
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, f.manager, session.StateCompleted)

	deadline := time.Now().Add(2 * time.Second)
	var recs []history.MeditationRecord
	for time.Now().Before(deadline) {
		recs, _ = f.store.Meditations(context.Background())
		if len(recs) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(recs) != 1 {
		t.Fatalf("meditation records: got %d, want 1", len(recs))
	}
	if recs[0].SoundID != "sound-1" {
		t.Errorf("sound: got %q", recs[0].SoundID)
	}
	if len(recs[0].AffirmationIDs) != 2 {
		t.Errorf("affirmations: got %v", recs[0].AffirmationIDs)
	}
}

func TestManagerResetRewinds(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Begin(context.Background(), session.BeginRequest{
		Kind:          session.KindMeditation,
		TargetSeconds: 600,
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let a few ticks land.
	time.Sleep(30 * time.Millisecond)

	if err := f.manager.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st := f.manager.CurrentStatus()
	if st.State != session.StateReady {
		t.Errorf("state after reset: got %q, want ready", st.State)
	}
	if st.ElapsedSeconds != 0 {
		t.Errorf("elapsed after reset: got %d, want 0", st.ElapsedSeconds)
	}
}

func TestManagerSinkFailureFallsBackToLocalNotice(t *testing.T) {
	sink := &recordingSink{err: errors.New("service down")}
	f := newManagerFixture(t, session.WithResultSink(sink))

	_, err := f.manager.Begin(context.Background(), session.BeginRequest{
		Kind:          session.KindPractice,
		TargetSeconds: 2,
		PoseID:        "5",
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, f.manager, session.StateCompleted)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, n := range f.ring.Recent() {
			if n.Level == notify.LevelWarn && strings.Contains(n.Message, "Saved locally") {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected a saved-locally notice after sink failure")
}

func TestManagerSinkReceivesResult(t *testing.T) {
	sink := &recordingSink{}
	f := newManagerFixture(t, session.WithResultSink(sink))

	_, err := f.manager.Begin(context.Background(), session.BeginRequest{
		Kind:          session.KindPractice,
		TargetSeconds: 2,
		PoseID:        "5",
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, f.manager, session.StateCompleted)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		n := len(sink.results)
		sink.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.results) != 1 {
		t.Fatalf("sink results: got %d, want 1", len(sink.results))
	}
	if got := sink.results[0].Poses; len(got) != 1 || got[0] != "Tree Pose" {
		t.Errorf("sink poses: got %v", got)
	}
	if sink.results[0].DurationSeconds != 2 {
		t.Errorf("sink duration: got %d, want 2", sink.results[0].DurationSeconds)
	}
}

func TestManagerMuteReflectedInStatus(t *testing.T) {
	f := newManagerFixture(t)

	f.manager.SetMuted(true)
	if !f.manager.CurrentStatus().Muted {
		t.Error("status should report muted")
	}
	f.manager.SetMuted(false)
	if f.manager.CurrentStatus().Muted {
		t.Error("status should report unmuted")
	}
}

// gaugeTotal sums the active-sessions gauge across data points.
func gaugeTotal(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "pranaflow.active_sessions" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("active_sessions is not an int64 sum")
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestBeginReplacementSettlesGaugeAndDiscardsOldRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	f := newManagerFixture(t, session.WithManagerMetrics(metrics))
	ctx := context.Background()

	if _, err := f.manager.Begin(ctx, session.BeginRequest{Kind: session.KindMeditation, TargetSeconds: 300}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.manager.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	// Replacing the paused session settles its gauge contribution.
	if _, err := f.manager.Begin(ctx, session.BeginRequest{Kind: session.KindMeditation, TargetSeconds: 300}); err != nil {
		t.Fatalf("Begin (replacement): %v", err)
	}
	if got := gaugeTotal(t, reader); got != 0 {
		t.Fatalf("gauge = %d after replacing a paused session, want 0", got)
	}

	// The discarded run must never complete or persist a record.
	time.Sleep(50 * time.Millisecond)
	meds, err := f.store.Meditations(ctx)
	if err != nil {
		t.Fatalf("Meditations: %v", err)
	}
	if len(meds) != 0 {
		t.Fatalf("discarded session persisted %d records, want 0", len(meds))
	}
	if got := f.manager.CurrentStatus().State; got != session.StateReady {
		t.Fatalf("state = %v after replacement, want ready", got)
	}

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start (replacement): %v", err)
	}
	if got := gaugeTotal(t, reader); got != 1 {
		t.Fatalf("gauge = %d with one running session, want 1", got)
	}
}

// stalledAnalyzer blocks Stream until its context is cancelled, like a
// black-holed analysis server.
type stalledAnalyzer struct {
	dialled chan struct{}
}

func (a *stalledAnalyzer) Stream(ctx context.Context, _ string) (<-chan analysis.Reading, error) {
	close(a.dialled)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (a *stalledAnalyzer) Probe(context.Context) error { return nil }

func (a *stalledAnalyzer) SessionURL(string) string { return "" }

func TestStalledAnalyzerDoesNotBlockManager(t *testing.T) {
	synth := &speechmock.Synthesizer{}
	gate := cue.NewGate(synth)
	t.Cleanup(gate.Close)

	az := &stalledAnalyzer{dialled: make(chan struct{})}
	cadence := session.Cadence{
		Tick:     5 * time.Millisecond,
		Guidance: time.Hour,
		Feedback: time.Hour,
	}
	m := session.NewManager(gate, cue.NewClassifier(), &memStore{}, content.NewCatalog(), az, cadence)
	t.Cleanup(m.Close)

	ctx := context.Background()
	if _, err := m.Begin(ctx, session.BeginRequest{Kind: session.KindPractice, TargetSeconds: 300}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-az.dialled:
	case <-time.After(2 * time.Second):
		t.Fatal("analyzer was never dialled")
	}

	// With the dial hanging, every other session operation must still
	// answer promptly.
	done := make(chan error, 1)
	go func() { done <- m.Pause() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Pause: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pause blocked behind the analyzer dial")
	}
	if got := m.CurrentStatus().State; got != session.StatePaused {
		t.Fatalf("state = %v, want paused", got)
	}
}
