// Package localtts provides a speech.Synthesizer backed by a local TTS
// daemon reached over its REST API.
//
// The daemon is expected to render audio on the host's output device itself;
// this client only submits utterances and waits for playback to finish:
//
//   - POST /api/speak  {"text": ..., "voice_id": ..., "rate": ..., "pitch": ...}
//     blocks until playback completes, returns 200 on success.
//   - POST /api/cancel stops the current utterance.
//   - GET  /api/voices returns the voice catalogue as a JSON array. The
//     catalogue may be empty shortly after daemon startup while voices load.
//
// Typical usage:
//
//	p := localtts.New("http://localhost:5002",
//	    localtts.WithTimeout(30*time.Second),
//	    localtts.WithLanguage("en"),
//	)
//	err := p.Speak(ctx, "Starting your meditation session now.", voice)
package localtts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pranaflow/pranaflow/pkg/speech"
)

// Compile-time interface assertion.
var _ speech.Synthesizer = (*Provider)(nil)

const (
	defaultTimeout = 30 * time.Second

	speakEndpoint  = "/api/speak"
	cancelEndpoint = "/api/cancel"
	voicesEndpoint = "/api/voices"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. This bounds a single
// utterance's playback time; long guidance phrases need headroom. Defaults
// to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithLanguage sets the BCP-47 language tag sent with every utterance.
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider is a [speech.Synthesizer] that speaks through a local TTS daemon.
type Provider struct {
	baseURL    string
	language   string
	httpClient *http.Client

	mu       sync.Mutex
	inflight context.CancelFunc
}

// New creates a Provider targeting the daemon at baseURL
// (e.g., "http://localhost:5002"). A trailing slash is stripped.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("localtts: base URL is required")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   "en",
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// speakRequest is the JSON body for POST /api/speak.
type speakRequest struct {
	Text     string  `json:"text"`
	VoiceID  string  `json:"voice_id,omitempty"`
	Language string  `json:"language,omitempty"`
	Rate     float64 `json:"rate,omitempty"`
	Pitch    float64 `json:"pitch,omitempty"`
}

// Speak submits text to the daemon and blocks until playback finishes.
// A concurrent [Provider.Cancel] aborts the request.
func (p *Provider) Speak(ctx context.Context, text string, voice speech.VoiceProfile) error {
	if text == "" {
		return fmt.Errorf("localtts: empty utterance")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	// A previous in-flight cancel func is replaced, not invoked: serialising
	// utterances is the caller's job, aborting them is ours.
	p.inflight = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.inflight != nil {
			p.inflight()
			p.inflight = nil
		}
		p.mu.Unlock()
	}()

	body, err := json.Marshal(speakRequest{
		Text:     text,
		VoiceID:  voice.ID,
		Language: p.language,
		Rate:     voice.Rate,
		Pitch:    voice.Pitch,
	})
	if err != nil {
		return fmt.Errorf("localtts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+speakEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("localtts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("localtts: speak: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("localtts: speak: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Cancel aborts the in-flight utterance. The client-side request context is
// cancelled first so Speak unblocks immediately; the daemon-side stop is
// best-effort and ignores errors.
func (p *Provider) Cancel() {
	p.mu.Lock()
	cancel := p.inflight
	p.inflight = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+cancelEndpoint, nil)
	if err != nil {
		return
	}
	if resp, err := p.httpClient.Do(req); err == nil {
		resp.Body.Close()
	}
}

// voiceEntry is one element of the GET /api/voices response.
type voiceEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// ListVoices fetches the daemon's voice catalogue.
func (p *Provider) ListVoices(ctx context.Context) ([]speech.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("localtts: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("localtts: list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("localtts: list voices: server returned %d", resp.StatusCode)
	}

	var entries []voiceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("localtts: decode voices: %w", err)
	}

	voices := make([]speech.VoiceProfile, 0, len(entries))
	for _, e := range entries {
		voices = append(voices, speech.VoiceProfile{
			ID:       e.ID,
			Name:     e.Name,
			Language: e.Language,
		})
	}
	return voices, nil
}
