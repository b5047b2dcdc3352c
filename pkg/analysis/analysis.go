// Package analysis defines the Analyzer interface for pose-accuracy sources.
//
// The real analysis work — camera capture, skeletal tracking, accuracy
// scoring — happens in an out-of-process analysis server. This package only
// models the contract the session engine consumes: a stream of clamped
// accuracy readings for a named pose, a best-effort reachability probe, and
// the URL a client should open to run a camera session against the server.
//
// When no analysis server is reachable, the sim subpackage provides a local
// stand-in that emits simulated readings.
package analysis

import (
	"context"
	"time"
)

// Reading is a single accuracy observation for the pose under analysis.
type Reading struct {
	// Value is the accuracy percentage, clamped to [0, 100].
	Value int

	// At is when the reading was produced.
	At time.Time
}

// Clamp returns v limited to the valid accuracy range [0, 100].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Analyzer is the abstraction over any accuracy-reading source.
//
// Implementations must be safe for concurrent use.
type Analyzer interface {
	// Stream begins analysis for the named pose and returns a channel of
	// readings. The channel is closed when ctx is cancelled or the source
	// ends the stream. Values on the channel are already clamped to [0, 100].
	//
	// Returns a non-nil error only if the stream cannot be started.
	Stream(ctx context.Context, poseName string) (<-chan Reading, error)

	// Probe checks whether the source is reachable. It is best-effort: a nil
	// return means a session can likely be started, a non-nil error carries
	// the reason it cannot.
	Probe(ctx context.Context) error

	// SessionURL returns the address a client should open to run a full
	// camera session for the named pose (the pose name travels as a query
	// parameter). Sources without a user-facing surface return "".
	SessionURL(poseName string) string
}
