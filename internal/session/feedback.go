package session

import (
	"context"
	"errors"
	"sync"

	"github.com/pranaflow/pranaflow/internal/cue"
	"github.com/pranaflow/pranaflow/internal/observe"
	"github.com/pranaflow/pranaflow/pkg/analysis"
)

// FeedbackLoop turns the analyzer's accuracy stream into spoken corrective
// feedback. Readings arrive continuously and only the most recent one
// matters; a ten-second scheduler calls [FeedbackLoop.Emit], which
// classifies the latest reading and speaks a phrase for its tier. The
// gate's own rate limit still applies on top of the emit cadence.
type FeedbackLoop struct {
	timer      *Timer
	gate       *cue.Gate
	classifier *cue.Classifier
	metrics    *observe.Metrics

	mu      sync.Mutex
	latest  analysis.Reading
	hasRead bool
}

// NewFeedbackLoop creates a loop reading the timer's run state.
func NewFeedbackLoop(timer *Timer, gate *cue.Gate, classifier *cue.Classifier, metrics *observe.Metrics) *FeedbackLoop {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &FeedbackLoop{
		timer:      timer,
		gate:       gate,
		classifier: classifier,
		metrics:    metrics,
	}
}

// Observe records one accuracy reading, replacing any previous one.
func (f *FeedbackLoop) Observe(ctx context.Context, r analysis.Reading) {
	f.mu.Lock()
	f.latest = r
	f.hasRead = true
	f.mu.Unlock()

	f.metrics.AccuracyReadings.Record(ctx, float64(r.Value))
}

// Latest returns the most recent reading and whether one has arrived yet.
func (f *FeedbackLoop) Latest() (analysis.Reading, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.hasRead
}

// Consume drains readings into the loop until ctx is cancelled or the
// stream closes.
func (f *FeedbackLoop) Consume(ctx context.Context, readings <-chan analysis.Reading) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-readings:
			if !ok {
				return
			}
			f.Observe(ctx, r)
		}
	}
}

// Emit speaks feedback for the latest reading. Silent while the session is
// not running or before the first reading. A throttled emission is dropped,
// not retried; the next cadence tick gets a fresh reading anyway.
func (f *FeedbackLoop) Emit() {
	if !f.timer.Running() {
		return
	}
	reading, ok := f.Latest()
	if !ok {
		return
	}

	phrase := f.classifier.Phrase(reading.Value)
	if err := f.gate.SpeakFeedback(phrase); err != nil && !errors.Is(err, cue.ErrThrottled) {
		return
	}
}
