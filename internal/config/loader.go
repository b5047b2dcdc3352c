package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"speech":   {"localtts", "mock"},
	"analysis": {"poseserver", "sim", "mock"},
}

// Default cadences and paths applied by [ApplyDefaults] for fields the
// config file leaves empty.
const (
	DefaultTickInterval     = time.Second
	DefaultGuidanceInterval = time.Minute
	DefaultFeedbackInterval = 10 * time.Second

	DefaultLocalPath = "pranaflow-history.json"
)

// DefaultPresetMinutes returns the timer presets offered when the config
// file does not list its own.
func DefaultPresetMinutes() []int { return []int{5, 10, 15, 20, 30} }

// DefaultPreferredVoices returns the voice preference order used when the
// config file does not list its own.
func DefaultPreferredVoices() []string {
	return []string{"Samantha", "Female", "Google UK English Female"}
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in default values for fields the config file left
// empty. It does not overwrite explicit values.
func ApplyDefaults(cfg *Config) {
	if cfg.Session.TickInterval == 0 {
		cfg.Session.TickInterval = DefaultTickInterval
	}
	if cfg.Session.GuidanceInterval == 0 {
		cfg.Session.GuidanceInterval = DefaultGuidanceInterval
	}
	if cfg.Session.FeedbackInterval == 0 {
		cfg.Session.FeedbackInterval = DefaultFeedbackInterval
	}
	if len(cfg.Session.PresetMinutes) == 0 {
		cfg.Session.PresetMinutes = DefaultPresetMinutes()
	}
	if cfg.History.LocalPath == "" {
		cfg.History.LocalPath = DefaultLocalPath
	}
	if len(cfg.Voice.Preferred) == 0 {
		cfg.Voice.Preferred = DefaultPreferredVoices()
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("speech", cfg.Providers.Speech.Name)
	validateProviderName("analysis", cfg.Providers.Analysis.Name)

	// Provider availability warnings
	if cfg.Providers.Speech.Name == "" {
		slog.Warn("no speech provider configured; sessions will run without voice guidance")
	}
	if cfg.Providers.Analysis.Name == "" {
		slog.Warn("no analysis provider configured; practice sessions will not receive accuracy feedback")
	}

	// Session cadences
	if cfg.Session.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("session.tick_interval %v must be positive", cfg.Session.TickInterval))
	}
	if cfg.Session.GuidanceInterval < 0 {
		errs = append(errs, fmt.Errorf("session.guidance_interval %v must be positive", cfg.Session.GuidanceInterval))
	}
	if cfg.Session.FeedbackInterval < 0 {
		errs = append(errs, fmt.Errorf("session.feedback_interval %v must be positive", cfg.Session.FeedbackInterval))
	}
	presetsSeen := make(map[int]int, len(cfg.Session.PresetMinutes))
	for i, m := range cfg.Session.PresetMinutes {
		if m <= 0 {
			errs = append(errs, fmt.Errorf("session.preset_minutes[%d] is %d; presets must be positive", i, m))
			continue
		}
		if prev, ok := presetsSeen[m]; ok {
			errs = append(errs, fmt.Errorf("session.preset_minutes[%d] %d is a duplicate of preset_minutes[%d]", i, m, prev))
		}
		presetsSeen[m] = i
	}

	// History availability
	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; sessions will be recorded in the local file only")
	}

	// Content availability
	if cfg.Content.DataServiceURL == "" {
		slog.Warn("content.data_service_url is empty; serving the embedded pose catalogue only")
	}

	// Voice
	if cfg.Voice.Rate != 0 {
		if cfg.Voice.Rate < 0.5 || cfg.Voice.Rate > 2.0 {
			errs = append(errs, fmt.Errorf("voice.rate %.2f is out of range [0.5, 2.0]", cfg.Voice.Rate))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
