package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// listener changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VoiceChanged is true if the preference list or rate changed.
	VoiceChanged bool

	// SessionChanged is true if any cadence or the preset list changed.
	SessionChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Voice.Preferred, new.Voice.Preferred) || old.Voice.Rate != new.Voice.Rate {
		d.VoiceChanged = true
	}

	if old.Session.TickInterval != new.Session.TickInterval ||
		old.Session.GuidanceInterval != new.Session.GuidanceInterval ||
		old.Session.FeedbackInterval != new.Session.FeedbackInterval ||
		!slices.Equal(old.Session.PresetMinutes, new.Session.PresetMinutes) {
		d.SessionChanged = true
	}

	return d
}
