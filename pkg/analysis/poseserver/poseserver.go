// Package poseserver provides an analysis.Analyzer backed by the local
// pose-analysis server (the MediaPipe/OpenCV application running alongside
// this service). It implements the analysis.Analyzer interface.
//
// The server exposes:
//
//   - GET /               — liveness page; used by Probe.
//   - GET /?pose=<name>   — the camera session page; SessionURL points here.
//   - WS  /ws/accuracy?pose=<name> — a JSON stream of accuracy readings.
//
// Readings arrive as {"accuracy": <number>, "timestamp": <RFC 3339>} frames.
// Out-of-range values are clamped before they reach the consumer.
package poseserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/pranaflow/pranaflow/pkg/analysis"
)

// Compile-time interface assertion.
var _ analysis.Analyzer = (*Analyzer)(nil)

const (
	defaultProbeTimeout = 3 * time.Second
	defaultDialTimeout  = 10 * time.Second

	accuracyPath = "/ws/accuracy"

	// readingChanBuf bounds how far the reader may run ahead of a slow
	// consumer before frames are dropped.
	readingChanBuf = 16
)

// Option is a functional option for configuring an Analyzer.
type Option func(*Analyzer)

// WithProbeTimeout sets the timeout applied to Probe requests when the
// caller's context carries no deadline. Defaults to 3 s.
func WithProbeTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.probeTimeout = d
		}
	}
}

// WithDialTimeout sets the timeout applied to the websocket dial when the
// caller's context carries no deadline. Defaults to 10 s.
func WithDialTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.dialTimeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client used for probes and the websocket
// dial, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Analyzer) {
		a.httpClient = c
	}
}

// Analyzer streams accuracy readings from the local pose-analysis server.
type Analyzer struct {
	baseURL      string
	probeTimeout time.Duration
	dialTimeout  time.Duration
	httpClient   *http.Client
}

// New creates an Analyzer targeting the analysis server at baseURL
// (e.g., "http://localhost:5000").
func New(baseURL string, opts ...Option) (*Analyzer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("poseserver: base URL is required")
	}
	a := &Analyzer{
		baseURL:      strings.TrimRight(baseURL, "/"),
		probeTimeout: defaultProbeTimeout,
		dialTimeout:  defaultDialTimeout,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// readingFrame is the wire format of one accuracy frame.
type readingFrame struct {
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream dials the accuracy websocket for poseName and returns a channel of
// clamped readings. The channel closes when ctx is cancelled or the server
// closes the socket. Frames that would overrun a slow consumer are dropped;
// only the freshest readings matter for feedback.
func (a *Analyzer) Stream(ctx context.Context, poseName string) (<-chan analysis.Reading, error) {
	wsURL, err := a.accuracyURL(poseName)
	if err != nil {
		return nil, err
	}

	// Bound the dial so an unresponsive server fails fast; the read loop
	// below keeps the caller's context.
	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, a.dialTimeout)
		defer cancel()
	}
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPClient: a.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("poseserver: dial accuracy stream: %w", err)
	}

	out := make(chan analysis.Reading, readingChanBuf)
	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "stream done")

		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Debug("poseserver: accuracy stream ended", "pose", poseName, "err", err)
				}
				return
			}

			var frame readingFrame
			if err := json.Unmarshal(msg, &frame); err != nil {
				slog.Warn("poseserver: malformed accuracy frame", "pose", poseName, "err", err)
				continue
			}

			at := frame.Timestamp
			if at.IsZero() {
				at = time.Now()
			}
			r := analysis.Reading{Value: analysis.Clamp(int(frame.Accuracy)), At: at}

			select {
			case out <- r:
			case <-ctx.Done():
				return
			default:
				// Consumer is behind; drop the frame.
			}
		}
	}()
	return out, nil
}

// Probe issues a GET against the server root. A 2xx–4xx response counts as
// reachable (the session page itself may legitimately 404 without a pose);
// connection errors and 5xx do not.
func (a *Analyzer) Probe(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.probeTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("poseserver: build probe: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("poseserver: probe: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("poseserver: probe: server returned %d", resp.StatusCode)
	}
	return nil
}

// SessionURL returns the camera session page for poseName, with the pose
// name carried as a query parameter.
func (a *Analyzer) SessionURL(poseName string) string {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return a.baseURL
	}
	q := u.Query()
	q.Set("pose", poseName)
	u.RawQuery = q.Encode()
	return u.String()
}

// accuracyURL builds the ws:// (or wss://) URL for the accuracy stream.
func (a *Analyzer) accuracyURL(poseName string) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("poseserver: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = accuracyPath
	q := u.Query()
	q.Set("pose", poseName)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
