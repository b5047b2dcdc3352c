package session

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pranaflow/pranaflow/internal/cue"
	"github.com/pranaflow/pranaflow/pkg/analysis"
	speechmock "github.com/pranaflow/pranaflow/pkg/speech/mock"
)

func newTestFeedback(t *testing.T) (*Timer, *FeedbackLoop, *speechmock.Synthesizer) {
	t.Helper()
	synth := &speechmock.Synthesizer{}
	gate := cue.NewGate(synth)
	t.Cleanup(gate.Close)
	tm := NewTimer(gate, func(int, bool) {})
	classifier := cue.NewClassifier(cue.WithClassifierRand(rand.New(rand.NewPCG(1, 2))))
	return tm, NewFeedbackLoop(tm, gate, classifier, nil), synth
}

func TestEmitSpeaksForLatestReading(t *testing.T) {
	tm, fl, synth := newTestFeedback(t)
	ctx := run(t, tm, 300)

	fl.Observe(ctx, analysis.Reading{Value: 25, At: time.Now()})
	fl.Observe(ctx, analysis.Reading{Value: 95, At: time.Now()})

	fl.Emit()

	// Only the newest reading counts: the phrase must come from the
	// excellent tier, not the low one.
	waitForSpoken(t, synth, "Perfect")
}

func TestEmitSilentWithoutReadings(t *testing.T) {
	tm, fl, synth := newTestFeedback(t)
	run(t, tm, 300)

	fl.Emit()
	time.Sleep(50 * time.Millisecond)

	for _, s := range synth.Spoken() {
		if s != "Timer set for 5 minutes." && s != "Starting your meditation session now. Take a deep breath and relax." {
			t.Fatalf("feedback spoken with no readings: %q", s)
		}
	}
}

func TestEmitSilentWhenNotRunning(t *testing.T) {
	tm, fl, synth := newTestFeedback(t)
	ctx := context.Background()

	fl.Observe(ctx, analysis.Reading{Value: 50, At: time.Now()})
	fl.Emit()
	time.Sleep(50 * time.Millisecond)

	if got := len(synth.Spoken()); got != 0 {
		t.Fatalf("feedback spoken while idle: %v", synth.Spoken())
	}
	_ = tm
}

func TestEmitRespectsGateThrottle(t *testing.T) {
	tm, fl, synth := newTestFeedback(t)
	ctx := run(t, tm, 300)

	fl.Observe(ctx, analysis.Reading{Value: 95, At: time.Now()})
	fl.Emit()
	fl.Emit()
	fl.Emit()

	time.Sleep(100 * time.Millisecond)

	// set + start + exactly one feedback phrase.
	feedback := 0
	for _, s := range synth.Spoken() {
		if s != "Timer set for 5 minutes." && s != "Starting your meditation session now. Take a deep breath and relax." {
			feedback++
		}
	}
	if feedback != 1 {
		t.Fatalf("feedback utterances = %d, want 1 (gate floor)", feedback)
	}
}

func TestConsumeStopsOnContextCancel(t *testing.T) {
	_, fl, _ := newTestFeedback(t)

	readings := make(chan analysis.Reading)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		fl.Consume(ctx, readings)
		close(done)
	}()

	readings <- analysis.Reading{Value: 60, At: time.Now()}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after cancellation")
	}

	if r, ok := fl.Latest(); !ok || r.Value != 60 {
		t.Fatalf("latest = %+v %v, want 60 true", r, ok)
	}
}
