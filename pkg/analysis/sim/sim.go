// Package sim provides a simulated analysis.Analyzer for use when no real
// pose-analysis server is reachable.
//
// Readings follow a bounded random walk: the accuracy starts between 30 and
// 50, drifts along a small trend that occasionally re-rolls (mimicking a
// practitioner adjusting their pose), picks up per-tick fluctuation, and is
// clamped to [20, 98]. The walk is presentation filler — it stands in for
// the analysis server's output shape, nothing more.
package sim

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pranaflow/pranaflow/pkg/analysis"
)

// Compile-time interface assertion.
var _ analysis.Analyzer = (*Analyzer)(nil)

const (
	defaultPeriod = time.Second

	walkFloor   = 20
	walkCeiling = 98

	// trendRerollChance is the per-tick probability that the walk's trend is
	// re-rolled into [-0.5, +0.5].
	trendRerollChance = 0.05

	fluctuation = 5.0
)

// Option is a functional option for configuring an Analyzer.
type Option func(*Analyzer)

// WithPeriod sets the interval between readings. Defaults to 1 s.
func WithPeriod(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.period = d
		}
	}
}

// WithRand sets the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(a *Analyzer) {
		a.rand = r
	}
}

// Analyzer emits simulated accuracy readings on a fixed cadence.
type Analyzer struct {
	period time.Duration
	rand   *rand.Rand
}

// New creates a simulated Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		period: defaultPeriod,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Stream starts the random walk and returns its reading channel. The pose
// name only labels the stream; the walk is identical for every pose.
func (a *Analyzer) Stream(ctx context.Context, _ string) (<-chan analysis.Reading, error) {
	out := make(chan analysis.Reading, 1)

	go func() {
		defer close(out)

		value := 30 + a.float64()*20
		trend := 0.5

		ticker := time.NewTicker(a.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				value += trend + (a.float64()-0.5)*fluctuation
				if value < walkFloor {
					value = walkFloor
				}
				if value > walkCeiling {
					value = walkCeiling
				}
				if a.float64() < trendRerollChance {
					trend = -0.5 + a.float64()
				}

				r := analysis.Reading{Value: analysis.Clamp(int(value)), At: time.Now()}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				default:
					// Consumer is behind; drop the reading.
				}
			}
		}
	}()
	return out, nil
}

// Probe always succeeds: the simulator is in-process.
func (a *Analyzer) Probe(_ context.Context) error { return nil }

// SessionURL returns "": the simulator has no user-facing surface.
func (a *Analyzer) SessionURL(_ string) string { return "" }

// float64 draws from the configured source, or the shared global one.
func (a *Analyzer) float64() float64 {
	if a.rand != nil {
		return a.rand.Float64()
	}
	return rand.Float64()
}
