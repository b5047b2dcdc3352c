// Package schedule provides a cancellable repeating-callback primitive.
//
// Every periodic behaviour in the session engine — the one-second elapsed
// tick, the minute guidance announcements, the feedback cadence — runs on its
// own [Handle] with an independent period and lifecycle. Stopping one handle
// never affects another.
package schedule

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Handle controls one repeating callback. Obtain via [Start].
type Handle struct {
	done     chan struct{}
	stopOnce sync.Once
}

// Start begins invoking fn every period, with the first invocation after one
// full period (not immediately). Invocations stop when ctx is cancelled or
// [Handle.Stop] is called.
//
// Ticks are not queued: a slow fn simply causes later ticks to be skipped,
// standard [time.Ticker] semantics. A panic inside fn is recovered and
// logged so one bad callback cannot kill the handle's future ticks.
func Start(ctx context.Context, period time.Duration, fn func(ctx context.Context)) *Handle {
	h := &Handle{done: make(chan struct{})}
	go h.loop(ctx, period, fn)
	return h
}

// Stop cancels future invocations. Idempotent: stopping an already-stopped
// handle is a no-op.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// loop runs the ticker until the handle or context ends.
func (h *Handle) loop(ctx context.Context, period time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			invoke(ctx, fn)
		}
	}
}

// invoke runs fn with a recover guard. An uncaught panic out of a scheduled
// callback would silently end the loop, so it is contained here instead.
func invoke(ctx context.Context, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled callback panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(ctx)
}
