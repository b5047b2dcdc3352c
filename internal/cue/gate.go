package cue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pranaflow/pranaflow/internal/notify"
	"github.com/pranaflow/pranaflow/internal/observe"
	"github.com/pranaflow/pranaflow/pkg/speech"
)

// ErrThrottled is returned by [Gate.SpeakFeedback] when the minimum gap
// since the previous feedback emission has not yet elapsed.
var ErrThrottled = errors.New("cue: feedback throttled")

const (
	// defaultFeedbackGap is the minimum spacing between feedback utterances
	// from the same stream, tier changes included.
	defaultFeedbackGap = 5 * time.Second

	// defaultUnmuteDelay is how long after unmuting the last cue is
	// re-spoken, giving the speech capability time to initialise.
	defaultUnmuteDelay = 100 * time.Millisecond

	// defaultRate is the speaking rate applied to every utterance —
	// slightly slower than neutral for clarity.
	defaultRate = 0.9

	// voiceListTimeout bounds the voice catalogue query done on first speak.
	voiceListTimeout = 2 * time.Second
)

// defaultPreferredVoices is the calm/neutral voice allow-list, matched as
// substrings against voice names.
var defaultPreferredVoices = []string{
	"Samantha",
	"Female",
	"Google UK English Female",
}

// GateOption configures a [Gate].
type GateOption func(*Gate)

// WithNotifier sets the sink for non-blocking user notifications. Defaults
// to a log-only sink.
func WithNotifier(n notify.Notifier) GateOption {
	return func(g *Gate) { g.notifier = n }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// WithFeedbackGap overrides the minimum spacing between feedback utterances.
func WithFeedbackGap(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.feedbackGap = d
		}
	}
}

// WithPreferredVoices replaces the calm-voice allow-list.
func WithPreferredVoices(names []string) GateOption {
	return func(g *Gate) {
		if len(names) > 0 {
			g.preferred = names
		}
	}
}

// WithVoiceRate overrides the speaking rate. Values outside (0, 2] are
// ignored.
func WithVoiceRate(rate float64) GateOption {
	return func(g *Gate) {
		if rate > 0 && rate <= 2 {
			g.rate = rate
		}
	}
}

// WithUnmuteDelay overrides the delay before the last cue is re-spoken on
// unmute.
func WithUnmuteDelay(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.unmuteDelay = d
		}
	}
}

// withNow overrides the clock, for tests.
func withNow(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// Gate serialises all spoken output onto the single shared speech channel.
//
// Exactly one utterance is active per gate at any time: a new speak always
// preempts the current one (cancel before speak, no queueing). Corrective
// feedback additionally passes a rate limiter so oscillating accuracy near a
// tier boundary cannot flood the audio channel. Speech backend failures are
// logged and surfaced as user notices, never propagated to callers — an
// error escaping a timer callback would kill that timer's future ticks.
//
// All methods are safe for concurrent use.
type Gate struct {
	synth       speech.Synthesizer
	notifier    notify.Notifier
	metrics     *observe.Metrics
	feedbackGap time.Duration
	unmuteDelay time.Duration
	now         func() time.Time

	mu            sync.Mutex
	preferred     []string
	rate          float64
	muted         bool
	lastCue       string
	lastCueKind   string
	lastFeedback  time.Time
	voice         speech.VoiceProfile
	voiceResolved bool
	inflight      context.CancelFunc
	speakGen      uint64
	respeak       *time.Timer
	closed        bool
}

// NewGate creates a Gate speaking through synth.
func NewGate(synth speech.Synthesizer, opts ...GateOption) *Gate {
	g := &Gate{
		synth:       synth,
		notifier:    notify.NewRing(),
		preferred:   defaultPreferredVoices,
		rate:        defaultRate,
		feedbackGap: defaultFeedbackGap,
		unmuteDelay: defaultUnmuteDelay,
		now:         time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Speak delivers a cue, preempting any in-flight utterance. kind labels the
// cue in metrics/logs ("start", "pause", "complete", "guidance", ...). When
// muted, Speak is a no-op.
func (g *Gate) Speak(kind, text string) {
	if text == "" {
		return
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.lastCue = text
	g.lastCueKind = kind
	if g.muted {
		g.mu.Unlock()
		g.metrics.RecordCueSuppressed(context.Background(), "muted")
		return
	}
	g.preemptLocked()
	ctx, cancel := context.WithCancel(context.Background())
	g.inflight = cancel
	g.speakGen++
	gen := g.speakGen
	g.mu.Unlock()

	go g.deliver(ctx, cancel, gen, kind, text)
}

// SpeakFeedback delivers a corrective-feedback utterance, subject to the
// feedback rate limit: emissions closer together than the configured gap are
// suppressed and return [ErrThrottled], even when the tier changed.
func (g *Gate) SpeakFeedback(text string) error {
	if text == "" {
		return nil
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	if g.muted {
		g.mu.Unlock()
		g.metrics.RecordCueSuppressed(context.Background(), "muted")
		return nil
	}
	now := g.now()
	if !g.lastFeedback.IsZero() && now.Sub(g.lastFeedback) < g.feedbackGap {
		g.mu.Unlock()
		g.metrics.RecordCueSuppressed(context.Background(), "throttled")
		return ErrThrottled
	}
	g.lastFeedback = now
	g.preemptLocked()
	ctx, cancel := context.WithCancel(context.Background())
	g.inflight = cancel
	g.speakGen++
	gen := g.speakGen
	g.mu.Unlock()

	go g.deliver(ctx, cancel, gen, "feedback", text)
	return nil
}

// SetMuted toggles the mute state. Muting cancels any in-flight utterance;
// unmuting re-speaks the most recent cue after a short delay so the speech
// capability has time to initialise.
func (g *Gate) SetMuted(muted bool) {
	g.mu.Lock()
	if g.closed || g.muted == muted {
		g.mu.Unlock()
		return
	}
	g.muted = muted

	if muted {
		g.preemptLocked()
		if g.respeak != nil {
			g.respeak.Stop()
			g.respeak = nil
		}
		g.mu.Unlock()
		return
	}

	last, kind := g.lastCue, g.lastCueKind
	if last != "" {
		g.respeak = time.AfterFunc(g.unmuteDelay, func() {
			g.Speak(kind, last)
		})
	}
	g.mu.Unlock()
}

// Muted reports the current mute state.
func (g *Gate) Muted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.muted
}

// Close cancels any in-flight utterance and pending re-speak. The gate
// refuses further speech after Close. Idempotent.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.preemptLocked()
	if g.respeak != nil {
		g.respeak.Stop()
		g.respeak = nil
	}
}

// preemptLocked cancels the in-flight utterance. Caller holds g.mu.
func (g *Gate) preemptLocked() {
	if g.inflight != nil {
		g.inflight()
		g.inflight = nil
	}
	g.synth.Cancel()
}

// deliver runs the blocking synthesis call and handles its outcome. gen
// identifies the utterance this goroutine owns; a newer speak bumps the
// generation, so the stale goroutine must not touch the inflight slot.
func (g *Gate) deliver(ctx context.Context, cancel context.CancelFunc, gen uint64, kind, text string) {
	voice := g.resolveVoice(ctx)
	start := g.now()
	err := g.synth.Speak(ctx, text, voice)
	cancel()

	g.mu.Lock()
	if g.speakGen == gen {
		g.inflight = nil
	}
	g.mu.Unlock()

	g.metrics.SpeakDuration.Record(context.Background(), g.now().Sub(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Preempted by a newer utterance; expected.
			return
		}
		g.metrics.RecordCue(context.Background(), kind, "error")
		slog.Warn("speech output failed", "cue", kind, "err", err)
		g.notifier.Notify(notify.LevelError, "Audio Error",
			"There was an issue with the voice guidance. Please try again.")
		return
	}
	g.metrics.RecordCue(context.Background(), kind, "ok")
}

// resolveVoice returns the voice profile for the next utterance, querying
// the catalogue on first use. Voice lists can populate asynchronously after
// backend startup, so an empty catalogue leaves the profile unresolved and a
// later speak retries.
func (g *Gate) resolveVoice(ctx context.Context) speech.VoiceProfile {
	g.mu.Lock()
	if g.voiceResolved {
		v := g.voice
		g.mu.Unlock()
		return v
	}
	preferred := g.preferred
	rate := g.rate
	g.mu.Unlock()

	listCtx, cancel := context.WithTimeout(ctx, voiceListTimeout)
	voices, err := g.synth.ListVoices(listCtx)
	cancel()
	if err != nil || len(voices) == 0 {
		// Fall back to the platform default silently; retry next speak.
		return speech.VoiceProfile{Rate: rate}
	}

	chosen := speech.VoiceProfile{Rate: rate}
	// The allow-list is ordered by preference; earlier names win.
search:
	for _, want := range preferred {
		for _, v := range voices {
			if strings.Contains(v.Name, want) {
				chosen = v
				chosen.Rate = rate
				break search
			}
		}
	}

	g.mu.Lock()
	g.voiceResolved = true
	g.voice = chosen
	g.mu.Unlock()
	return chosen
}

// SetVoicePreferences replaces the allow-list and rate and forgets any
// resolved voice so the next utterance re-queries the catalogue. A rate
// outside (0, 2] keeps the current one; an empty names list keeps the
// current list.
func (g *Gate) SetVoicePreferences(names []string, rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(names) > 0 {
		g.preferred = names
	}
	if rate > 0 && rate <= 2 {
		g.rate = rate
	}
	g.voiceResolved = false
}
