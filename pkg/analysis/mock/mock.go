// Package mock provides a test double for the analysis.Analyzer interface.
package mock

import (
	"context"
	"sync"

	"github.com/pranaflow/pranaflow/pkg/analysis"
)

// Analyzer is a mock implementation of analysis.Analyzer.
type Analyzer struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Readings is the sequence emitted on the channel returned by Stream,
	// after which the channel stays open until ctx is cancelled.
	Readings []analysis.Reading

	// StreamErr, if non-nil, is returned from Stream.
	StreamErr error

	// ProbeErr is returned from Probe.
	ProbeErr error

	// URL is returned from SessionURL.
	URL string

	// --- Call records ---

	// StreamCalls records the pose names passed to Stream, in order.
	StreamCalls []string

	// ProbeCount is the number of Probe calls.
	ProbeCount int
}

// Stream records the call and emits the configured readings.
func (a *Analyzer) Stream(ctx context.Context, poseName string) (<-chan analysis.Reading, error) {
	a.mu.Lock()
	a.StreamCalls = append(a.StreamCalls, poseName)
	err := a.StreamErr
	readings := make([]analysis.Reading, len(a.Readings))
	copy(readings, a.Readings)
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make(chan analysis.Reading, len(readings))
	go func() {
		defer close(out)
		for _, r := range readings {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}

// Probe records the call and returns ProbeErr.
func (a *Analyzer) Probe(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ProbeCount++
	return a.ProbeErr
}

// SessionURL returns the configured URL regardless of pose.
func (a *Analyzer) SessionURL(_ string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.URL
}

// Ensure Analyzer implements analysis.Analyzer at compile time.
var _ analysis.Analyzer = (*Analyzer)(nil)
