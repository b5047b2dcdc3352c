// Package notify delivers non-blocking user notifications.
//
// Failures in the session engine never crash a view; they surface as short
// notices the client can render (the web UI shows them as toasts). The
// default sink keeps a bounded ring of recent notices for the API to expose
// and mirrors each one to the log.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level classifies a notice for presentation.
type Level string

const (
	// LevelInfo is a routine notice ("Session Saved").
	LevelInfo Level = "info"

	// LevelWarn flags degraded behaviour ("showing locally saved sessions").
	LevelWarn Level = "warn"

	// LevelError flags a failed user action ("Set a Timer").
	LevelError Level = "error"
)

// Notice is one user-facing notification.
type Notice struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is the sink the engine emits notices into. Implementations must
// not block: callers fire notices from timer callbacks.
type Notifier interface {
	Notify(level Level, title, message string)
}

// ringSize bounds how many recent notices the default sink retains.
const ringSize = 50

// Ring is the default Notifier: a bounded in-memory ring of recent notices,
// each mirrored to slog. Safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	notices []Notice
	next    int
	full    bool
}

// NewRing creates an empty Ring.
func NewRing() *Ring {
	return &Ring{notices: make([]Notice, ringSize)}
}

// Notify records the notice and logs it.
func (r *Ring) Notify(level Level, title, message string) {
	n := Notice{Level: level, Title: title, Message: message, At: time.Now()}

	r.mu.Lock()
	r.notices[r.next] = n
	r.next = (r.next + 1) % ringSize
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()

	switch level {
	case LevelError:
		slog.Warn("user notice", "title", title, "message", message)
	default:
		slog.Info("user notice", "title", title, "message", message)
	}
}

// Recent returns the retained notices, oldest first.
func (r *Ring) Recent() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Notice, r.next)
		copy(out, r.notices[:r.next])
		return out
	}
	out := make([]Notice, 0, ringSize)
	out = append(out, r.notices[r.next:]...)
	out = append(out, r.notices[:r.next]...)
	return out
}

// Ensure Ring implements Notifier at compile time.
var _ Notifier = (*Ring)(nil)
