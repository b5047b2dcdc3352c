// Command pranaflow is the main entry point for the PranaFlow session server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pranaflow/pranaflow/internal/app"
	"github.com/pranaflow/pranaflow/internal/config"
	"github.com/pranaflow/pranaflow/internal/observe"
	"github.com/pranaflow/pranaflow/pkg/analysis"
	"github.com/pranaflow/pranaflow/pkg/analysis/poseserver"
	"github.com/pranaflow/pranaflow/pkg/analysis/sim"
	"github.com/pranaflow/pranaflow/pkg/speech"
	"github.com/pranaflow/pranaflow/pkg/speech/localtts"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "pranaflow: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "pranaflow: %v\n", err)
		}
		return 1
	}

	level := &slog.LevelVar{}
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("pranaflow starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "pranaflow",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithConfigWatch(*configPath),
		app.WithLogLevelVar(level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready; press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders wires the built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSpeech("localtts", func(entry config.ProviderEntry) (speech.Synthesizer, error) {
		var opts []localtts.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, localtts.WithLanguage(lang))
		}
		if secs := optFloat(entry.Options, "timeout_seconds"); secs > 0 {
			opts = append(opts, localtts.WithTimeout(time.Duration(secs*float64(time.Second))))
		}
		return localtts.New(entry.BaseURL, opts...)
	})

	reg.RegisterAnalysis("poseserver", func(entry config.ProviderEntry) (analysis.Analyzer, error) {
		var opts []poseserver.Option
		if secs := optFloat(entry.Options, "probe_timeout_seconds"); secs > 0 {
			opts = append(opts, poseserver.WithProbeTimeout(time.Duration(secs*float64(time.Second))))
		}
		return poseserver.New(entry.BaseURL, opts...)
	})

	reg.RegisterAnalysis("sim", func(entry config.ProviderEntry) (analysis.Analyzer, error) {
		var opts []sim.Option
		if secs := optFloat(entry.Options, "period_seconds"); secs > 0 {
			opts = append(opts, sim.WithPeriod(time.Duration(secs*float64(time.Second))))
		}
		return sim.New(opts...), nil
	})
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.Speech.Name; name != "" {
		p, err := reg.CreateSpeech(cfg.Providers.Speech)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered; skipping", "kind", "speech", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create speech provider %q: %w", name, err)
		} else {
			ps.Speech = p
			slog.Info("provider created", "kind", "speech", "name", name)
		}
	}

	if name := cfg.Providers.Analysis.Name; name != "" {
		p, err := reg.CreateAnalysis(cfg.Providers.Analysis)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered; skipping", "kind", "analysis", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create analysis provider %q: %w", name, err)
		} else {
			ps.Analysis = p
			slog.Info("provider created", "kind", "analysis", "name", name)
		}
	}

	return ps, nil
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════════╗")
	fmt.Println("║        PranaFlow — startup summary        ║")
	fmt.Println("╠═══════════════════════════════════════════╣")
	printProvider("Speech", cfg.Providers.Speech.Name)
	printProvider("Analysis", cfg.Providers.Analysis.Name)
	if cfg.History.PostgresDSN != "" {
		fmt.Printf("║  History      : %-25s ║\n", "postgres")
	} else {
		fmt.Printf("║  History      : %-25s ║\n", truncate(cfg.History.LocalPath, 25))
	}
	if cfg.Content.DataServiceURL != "" {
		fmt.Printf("║  Content      : %-25s ║\n", truncate(cfg.Content.DataServiceURL, 25))
	} else {
		fmt.Printf("║  Content      : %-25s ║\n", "embedded catalogue")
	}
	fmt.Printf("║  Presets      : %-25v ║\n", cfg.Session.PresetMinutes)
	fmt.Printf("║  Listen addr  : %-25s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════════╝")
}

func printProvider(kind, name string) {
	if name == "" {
		name = "(not configured)"
	}
	fmt.Printf("║  %-12s : %-25s ║\n", kind, name)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// slogLevel converts a config log level to a slog.Level.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString reads a string value from a provider options map.
func optString(opts map[string]any, key string) string {
	if v, ok := opts[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// optFloat reads a numeric value from a provider options map. YAML decodes
// numbers as int or float64 depending on their spelling.
func optFloat(opts map[string]any, key string) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
