package session

import (
	"fmt"

	"github.com/pranaflow/pranaflow/internal/cue"
)

// Announcer speaks periodic time-remaining guidance for a running session.
// It is driven by a one-minute scheduler; each invocation reads the live
// timer state, so guidance stops the moment the session pauses or ends.
type Announcer struct {
	timer *Timer
	gate  *cue.Gate
}

// NewAnnouncer creates an announcer for timer that speaks through gate.
func NewAnnouncer(timer *Timer, gate *cue.Gate) *Announcer {
	return &Announcer{timer: timer, gate: gate}
}

// Announce speaks the minutes remaining, rounded up. Nothing is said when
// the session is not running or is already in its final moments.
func (a *Announcer) Announce() {
	if !a.timer.Running() {
		return
	}

	remaining := a.timer.Remaining()
	if remaining <= 0 {
		return
	}

	minutes := (remaining + 59) / 60
	switch {
	case minutes > 1:
		a.gate.Speak("guidance",
			fmt.Sprintf("%d minutes remaining in your meditation session.", minutes))
	case minutes == 1:
		a.gate.Speak("guidance",
			"You have about one minute remaining in your meditation session.")
	}
}
