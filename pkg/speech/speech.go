// Package speech defines the Synthesizer interface for speech-output backends.
//
// A synthesizer wraps a speech capability (a local TTS daemon, a platform
// speech API, or a test fake) behind a uniform blocking interface. The caller
// is responsible for serialising utterances; implementations only promise
// that [Synthesizer.Cancel] aborts whatever is currently being spoken.
//
// Implementations must be safe for concurrent use.
package speech

import "context"

// VoiceProfile identifies a voice offered by a synthesizer backend.
type VoiceProfile struct {
	// ID is the backend-specific voice identifier.
	ID string

	// Name is the human-readable voice name (e.g., "Samantha"). Voice
	// preference matching happens against this field.
	Name string

	// Language is a BCP-47 language tag (e.g., "en-GB"). May be empty.
	Language string

	// Rate adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	Rate float64

	// Pitch adjusts pitch in the range [-10, +10]. 0 means default.
	Pitch float64
}

// Synthesizer is the abstraction over any speech-output backend.
type Synthesizer interface {
	// Speak renders text aloud using the given voice and blocks until the
	// utterance finishes, ctx is cancelled, or [Synthesizer.Cancel] aborts it.
	// A cancelled utterance returns ctx.Err or a backend-specific error; a
	// completed one returns nil.
	Speak(ctx context.Context, text string, voice VoiceProfile) error

	// Cancel aborts the in-flight utterance, if any. It is idempotent and
	// safe to call when nothing is being spoken.
	Cancel()

	// ListVoices returns the backend's current voice catalogue. Some backends
	// populate their catalogue asynchronously after startup, so an early call
	// may legitimately return an empty list; callers should re-query rather
	// than cache a miss forever.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
