// Package mock provides a test double for the speech.Synthesizer interface.
//
// Use Synthesizer to verify which utterances reach the speech backend, in
// what order, and whether in-flight speech was cancelled.
//
// Example:
//
//	s := &mock.Synthesizer{
//	    ListVoicesResult: []speech.VoiceProfile{{ID: "v1", Name: "Samantha"}},
//	}
//	_ = s.Speak(ctx, "hello", speech.VoiceProfile{})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/pranaflow/pranaflow/pkg/speech"
)

// SpeakCall records a single invocation of Speak.
type SpeakCall struct {
	// Text is the utterance passed to Speak.
	Text string
	// Voice is the VoiceProfile passed to Speak.
	Voice speech.VoiceProfile
	// At is when the call was made.
	At time.Time
}

// Synthesizer is a mock implementation of speech.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SpeakErr, if non-nil, is returned from every Speak call.
	SpeakErr error

	// SpeakDelay, if non-zero, makes Speak block for this long or until the
	// context is cancelled, whichever comes first. Useful for testing
	// preemption of in-flight utterances.
	SpeakDelay time.Duration

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []speech.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// --- Call records ---

	// SpeakCalls records every call to Speak in order.
	SpeakCalls []SpeakCall

	// CancelCount is the number of Cancel calls.
	CancelCount int

	// ListVoicesCount is the number of ListVoices calls.
	ListVoicesCount int
}

// Speak records the call and returns SpeakErr after the optional SpeakDelay.
func (s *Synthesizer) Speak(ctx context.Context, text string, voice speech.VoiceProfile) error {
	s.mu.Lock()
	s.SpeakCalls = append(s.SpeakCalls, SpeakCall{Text: text, Voice: voice, At: time.Now()})
	delay := s.SpeakDelay
	err := s.SpeakErr
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Cancel increments CancelCount.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelCount++
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (s *Synthesizer) ListVoices(_ context.Context) ([]speech.VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListVoicesCount++
	return s.ListVoicesResult, s.ListVoicesErr
}

// Spoken returns the utterance texts recorded so far, in order. Thread-safe.
func (s *Synthesizer) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.SpeakCalls))
	for i, c := range s.SpeakCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = nil
	s.CancelCount = 0
	s.ListVoicesCount = 0
}

// Ensure Synthesizer implements speech.Synthesizer at compile time.
var _ speech.Synthesizer = (*Synthesizer)(nil)
