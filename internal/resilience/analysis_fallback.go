package resilience

import (
	"context"

	"github.com/pranaflow/pranaflow/pkg/analysis"
)

// AnalyzerFallback implements [analysis.Analyzer] with failover from the
// live pose analysis server to the local simulator. Only stream setup is
// covered by failover; once a stream is established, mid-stream drops end
// the stream and the next session retries from the primary.
type AnalyzerFallback struct {
	chain *Chain[analysis.Analyzer]
}

var _ analysis.Analyzer = (*AnalyzerFallback)(nil)

// NewAnalyzerFallback creates a fallback with primary as the preferred
// analyzer.
func NewAnalyzerFallback(name string, primary analysis.Analyzer, opts ...BreakerOption) *AnalyzerFallback {
	return &AnalyzerFallback{chain: NewChain(name, primary, opts...)}
}

// Add registers an additional analyzer.
func (f *AnalyzerFallback) Add(name string, a analysis.Analyzer) {
	f.chain.Add(name, a)
}

// OnFallback installs a hook invoked when a non-primary analyzer serves.
func (f *AnalyzerFallback) OnFallback(fn func(name string)) {
	f.chain.OnFallback(fn)
}

// Stream opens a reading stream from the first healthy analyzer.
func (f *AnalyzerFallback) Stream(ctx context.Context, poseName string) (<-chan analysis.Reading, error) {
	return Fetch(f.chain, func(a analysis.Analyzer) (<-chan analysis.Reading, error) {
		return a.Stream(ctx, poseName)
	})
}

// Probe checks the primary analyzer only: the simulator is always
// reachable, so probing the whole chain would mask a down analysis server.
func (f *AnalyzerFallback) Probe(ctx context.Context) error {
	return f.chain.Primary().Probe(ctx)
}

// SessionURL returns the primary analyzer's session page; fallbacks have no
// external page to embed.
func (f *AnalyzerFallback) SessionURL(poseName string) string {
	return f.chain.Primary().SessionURL(poseName)
}
