package resilience

import (
	"context"

	"github.com/pranaflow/pranaflow/internal/content"
)

// PoseFallback implements [content.PoseSource] with failover from the
// remote data service to the embedded catalog. Each source has its own
// breaker, so a down data service is skipped without waiting out its
// timeout on every catalog request.
type PoseFallback struct {
	chain *Chain[content.PoseSource]
}

var _ content.PoseSource = (*PoseFallback)(nil)

// NewPoseFallback creates a fallback with primary as the preferred source.
func NewPoseFallback(name string, primary content.PoseSource, opts ...BreakerOption) *PoseFallback {
	return &PoseFallback{chain: NewChain(name, primary, opts...)}
}

// Add registers an additional pose source.
func (f *PoseFallback) Add(name string, source content.PoseSource) {
	f.chain.Add(name, source)
}

// OnFallback installs a hook invoked when a non-primary source serves.
func (f *PoseFallback) OnFallback(fn func(name string)) {
	f.chain.OnFallback(fn)
}

// Poses returns the catalog from the first healthy source.
func (f *PoseFallback) Poses(ctx context.Context) ([]content.Pose, error) {
	return Fetch(f.chain, func(s content.PoseSource) ([]content.Pose, error) {
		return s.Poses(ctx)
	})
}

// PoseByID returns the pose from the first healthy source.
func (f *PoseFallback) PoseByID(ctx context.Context, id string) (content.Pose, error) {
	return Fetch(f.chain, func(s content.PoseSource) (content.Pose, error) {
		return s.PoseByID(ctx, id)
	})
}
