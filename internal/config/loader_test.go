package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pranaflow/pranaflow/internal/config"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

providers:
  speech:
    name: localtts
    base_url: http://localhost:5002
  analysis:
    name: poseserver
    base_url: http://localhost:5000

session:
  tick_interval: 1s
  guidance_interval: 1m
  feedback_interval: 10s
  preset_minutes: [5, 10, 15, 20, 30]

history:
  local_path: /tmp/pranaflow-history.json
  postgres_dsn: "postgres://localhost/pranaflow"

content:
  data_service_url: http://localhost:5000

voice:
  preferred: [Samantha, Female]
  rate: 0.9
`

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Providers.Speech.Name != "localtts" {
		t.Errorf("speech provider: got %q, want %q", cfg.Providers.Speech.Name, "localtts")
	}
	if cfg.Providers.Analysis.BaseURL != "http://localhost:5000" {
		t.Errorf("analysis base_url: got %q", cfg.Providers.Analysis.BaseURL)
	}
	if cfg.Session.GuidanceInterval != time.Minute {
		t.Errorf("guidance_interval: got %v, want 1m", cfg.Session.GuidanceInterval)
	}
	if len(cfg.Session.PresetMinutes) != 5 || cfg.Session.PresetMinutes[0] != 5 {
		t.Errorf("preset_minutes: got %v", cfg.Session.PresetMinutes)
	}
	if cfg.History.PostgresDSN != "postgres://localhost/pranaflow" {
		t.Errorf("postgres_dsn: got %q", cfg.History.PostgresDSN)
	}
	if cfg.Voice.Rate != 0.9 {
		t.Errorf("voice rate: got %v, want 0.9", cfg.Voice.Rate)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
providers:
  speech:
    name: mock
  analysis:
    name: sim
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.TickInterval != config.DefaultTickInterval {
		t.Errorf("tick_interval default: got %v, want %v", cfg.Session.TickInterval, config.DefaultTickInterval)
	}
	if cfg.Session.GuidanceInterval != config.DefaultGuidanceInterval {
		t.Errorf("guidance_interval default: got %v, want %v", cfg.Session.GuidanceInterval, config.DefaultGuidanceInterval)
	}
	if cfg.Session.FeedbackInterval != config.DefaultFeedbackInterval {
		t.Errorf("feedback_interval default: got %v, want %v", cfg.Session.FeedbackInterval, config.DefaultFeedbackInterval)
	}
	want := config.DefaultPresetMinutes()
	if len(cfg.Session.PresetMinutes) != len(want) {
		t.Errorf("preset_minutes default: got %v, want %v", cfg.Session.PresetMinutes, want)
	}
	if cfg.History.LocalPath != config.DefaultLocalPath {
		t.Errorf("local_path default: got %q, want %q", cfg.History.LocalPath, config.DefaultLocalPath)
	}
	voices := config.DefaultPreferredVoices()
	if len(cfg.Voice.Preferred) != len(voices) || cfg.Voice.Preferred[0] != voices[0] {
		t.Errorf("preferred voices default: got %v, want %v", cfg.Voice.Preferred, voices)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  bananas: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "decode yaml") {
		t.Errorf("error should mention decode yaml, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: extreme
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_DuplicatePresets(t *testing.T) {
	t.Parallel()
	yaml := `
session:
  preset_minutes: [5, 10, 5]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate presets, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_NonPositivePreset(t *testing.T) {
	t.Parallel()
	yaml := `
session:
  preset_minutes: [0, 10]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for non-positive preset, got nil")
	}
	if !strings.Contains(err.Error(), "positive") {
		t.Errorf("error should mention positive, got: %v", err)
	}
}

func TestValidate_VoiceRateOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
voice:
  rate: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range rate, got nil")
	}
	if !strings.Contains(err.Error(), "voice.rate") {
		t.Errorf("error should mention voice.rate, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: extreme
voice:
  rate: 9
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") || !strings.Contains(errStr, "voice.rate") {
		t.Errorf("joined error should mention both failures, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	for _, kind := range []string{"speech", "analysis"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] should not be empty", kind)
		}
	}
}
