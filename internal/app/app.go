// Package app wires all PranaFlow subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options. When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pranaflow/pranaflow/internal/api"
	"github.com/pranaflow/pranaflow/internal/config"
	"github.com/pranaflow/pranaflow/internal/content"
	"github.com/pranaflow/pranaflow/internal/cue"
	"github.com/pranaflow/pranaflow/internal/health"
	"github.com/pranaflow/pranaflow/internal/history"
	"github.com/pranaflow/pranaflow/internal/notify"
	"github.com/pranaflow/pranaflow/internal/observe"
	"github.com/pranaflow/pranaflow/internal/resilience"
	"github.com/pranaflow/pranaflow/internal/session"
	"github.com/pranaflow/pranaflow/pkg/analysis"
	"github.com/pranaflow/pranaflow/pkg/analysis/sim"
	"github.com/pranaflow/pranaflow/pkg/speech"
)

// shutdownTimeout bounds the HTTP server drain during Run's teardown.
const shutdownTimeout = 10 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured and a built-in stand-in is used instead.
// Populated by main.go via the config registry.
type Providers struct {
	Speech   speech.Synthesizer
	Analysis analysis.Analyzer
}

// App owns all subsystem lifetimes and serves the session engine over HTTP.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics  *observe.Metrics
	ring     *notify.Ring
	gate     *cue.Gate
	manager  *session.Manager
	records  history.Store
	local    *history.FileStore
	catalog  *content.Catalog
	remote   *content.Service
	analyzer analysis.Analyzer
	handler  http.Handler
	server   *http.Server
	watcher  *config.Watcher

	watchPath string
	logLevel  *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecordStore injects the session record store instead of creating one
// from config.
func WithRecordStore(s history.Store) Option {
	return func(a *App) { a.records = s }
}

// WithFileStore injects the local journal store instead of opening the
// configured file.
func WithFileStore(s *history.FileStore) Option {
	return func(a *App) { a.local = s }
}

// WithConfigWatch reloads hot-reloadable settings when the file at path
// changes.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.watchPath = path }
}

// WithLogLevelVar lets config reloads adjust the process log level.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
		ring:      notify.NewRing(),
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	poses := a.initContent()
	a.initAnalysis()
	a.initSpeech(cfg)

	a.manager = session.NewManager(a.gate, cue.NewClassifier(), a.records, poses, a.analyzer,
		session.Cadence{
			Tick:     cfg.Session.TickInterval,
			Guidance: cfg.Session.GuidanceInterval,
			Feedback: cfg.Session.FeedbackInterval,
		},
		a.managerOptions()...,
	)

	a.initHTTP(poses)

	if a.watchPath != "" {
		w, err := config.NewWatcher(a.watchPath, a.applyConfig)
		if err != nil {
			return nil, fmt.Errorf("app: watch config: %w", err)
		}
		a.watcher = w
		a.closers = append(a.closers, func() error { w.Stop(); return nil })
	}

	return a, nil
}

// initStores opens the local journal file and picks the session record
// store. With a Postgres DSN configured, records go to Postgres; the journal
// (profile, notes, meals) always lives in the local file.
func (a *App) initStores(ctx context.Context) error {
	if a.local == nil {
		local, err := history.NewFileStore(a.cfg.History.LocalPath, a.metrics)
		if err != nil {
			return err
		}
		a.local = local
	}

	if a.records != nil {
		return nil
	}
	if dsn := a.cfg.History.PostgresDSN; dsn != "" {
		pg, err := history.NewPostgresStore(ctx, dsn, a.metrics)
		if err != nil {
			return err
		}
		a.records = pg
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		return nil
	}
	a.records = a.local
	return nil
}

// initContent builds the pose source: the remote data service guarded by a
// circuit breaker with the embedded catalogue as fallback, or the catalogue
// alone when no service is configured.
func (a *App) initContent() content.PoseSource {
	a.catalog = content.NewCatalog()

	url := a.cfg.Content.DataServiceURL
	if url == "" {
		return a.catalog
	}

	remote, err := content.NewService(url)
	if err != nil {
		slog.Warn("app: content service misconfigured; using embedded catalogue", "url", url, "err", err)
		return a.catalog
	}
	a.remote = remote

	fb := resilience.NewPoseFallback("data-service", remote)
	fb.Add("catalog", a.catalog)
	fb.OnFallback(func(name string) {
		a.ring.Notify(notify.LevelWarn, "Offline", "Showing the built-in pose library.")
	})
	return fb
}

// initAnalysis picks the accuracy source: the configured analyzer with the
// simulator as fallback, or the simulator alone.
func (a *App) initAnalysis() {
	if a.providers.Analysis == nil {
		a.analyzer = sim.New()
		return
	}

	fb := resilience.NewAnalyzerFallback("analysis", a.providers.Analysis)
	fb.Add("sim", sim.New())
	fb.OnFallback(func(name string) {
		a.ring.Notify(notify.LevelWarn, "Offline", "Pose analysis is unreachable. Showing simulated feedback.")
	})
	a.analyzer = fb
}

// initSpeech builds the cue gate over the configured synthesizer, or a
// silent one so sessions still run without voice.
func (a *App) initSpeech(cfg *config.Config) {
	synth := a.providers.Speech
	if synth == nil {
		synth = silentSynthesizer{}
	}
	a.gate = cue.NewGate(synth,
		cue.WithNotifier(a.ring),
		cue.WithMetrics(a.metrics),
		cue.WithPreferredVoices(cfg.Voice.Preferred),
		cue.WithVoiceRate(cfg.Voice.Rate),
	)
}

func (a *App) managerOptions() []session.ManagerOption {
	opts := []session.ManagerOption{
		session.WithManagerNotifier(a.ring),
		session.WithManagerMetrics(a.metrics),
		session.WithPresets(a.cfg.Session.PresetMinutes),
	}
	if a.remote != nil {
		opts = append(opts, session.WithResultSink(a.remote))
	}
	return opts
}

func (a *App) initHTTP(poses content.PoseSource) {
	records := a.records
	if a.remote != nil {
		records = history.NewSyncedStore(a.records, remoteHistory{a.remote}, a.ring)
	}

	synth := a.providers.Speech
	checkers := []health.Checker{health.StoreChecker("history-file", a.local)}
	if pinger, ok := a.records.(health.Pinger); ok && a.records != history.Store(a.local) {
		checkers = append(checkers, health.StoreChecker("history-postgres", pinger))
	}
	if synth != nil {
		checkers = append(checkers, health.SpeechChecker(synth))
	}
	checkers = append(checkers, health.AnalysisChecker(a.analyzer))

	srv := api.New(api.Config{
		Sessions: a.manager,
		Poses:    poses,
		Catalog:  a.catalog,
		Records:  records,
		Journal:  a.local,
		Notices:  a.ring,
		Notifier: a.ring,
		Health:   health.New(checkers...),
		Metrics:  a.metrics,
	})
	a.handler = srv.Router()
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the full HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.handler }

// Manager returns the session manager.
func (a *App) Manager() *session.Manager { return a.manager }

// Run serves HTTP until ctx is cancelled, then drains the server.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("app serving", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(drainCtx); err != nil {
			slog.Warn("app: server drain", "err", err)
		}
		return ctx.Err()
	})

	return g.Wait()
}

// applyConfig handles a config file reload. Only hot-reloadable settings are
// applied; everything else needs a restart.
func (a *App) applyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged {
		if a.logLevel != nil {
			a.logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("app: log level changed", "level", d.NewLogLevel)
		} else {
			slog.Warn("app: log level changed in config but no level var is wired", "level", d.NewLogLevel)
		}
	}
	if d.VoiceChanged {
		a.gate.SetVoicePreferences(new.Voice.Preferred, new.Voice.Rate)
		slog.Info("app: voice preferences reloaded")
	}
	if d.SessionChanged {
		slog.Info("app: session cadence changed; applies to the next session begun after restart")
	}
}

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.manager.Close()
		a.gate.Close()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
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

// silentSynthesizer is the stand-in speech backend when none is configured.
// Utterances complete immediately without sound.
type silentSynthesizer struct{}

func (silentSynthesizer) Speak(context.Context, string, speech.VoiceProfile) error { return nil }
func (silentSynthesizer) Cancel()                                                  {}
func (silentSynthesizer) ListVoices(context.Context) ([]speech.VoiceProfile, error) {
	return nil, nil
}

// remoteHistory adapts the data service's session history to local practice
// records for read-through sync. The service reports pose names only, so the
// pose ID is derived the same way the web client did: lowercased, spaces to
// hyphens.
type remoteHistory struct {
	svc *content.Service
}

func (r remoteHistory) Practices(ctx context.Context) ([]history.PracticeRecord, error) {
	remote, err := r.svc.SessionHistory(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]history.PracticeRecord, 0, len(remote))
	for _, rr := range remote {
		date, err := time.Parse(time.RFC3339, rr.Date)
		if err != nil {
			slog.Debug("app: unparseable remote record date", "id", rr.ID, "date", rr.Date)
		}
		recs = append(recs, history.PracticeRecord{
			ID:              rr.ID,
			PoseID:          strings.ReplaceAll(strings.ToLower(rr.PoseName), " ", "-"),
			PoseName:        rr.PoseName,
			Date:            date,
			DurationSeconds: rr.DurationSeconds,
			Accuracy:        rr.Accuracy,
			Completed:       true,
		})
	}
	return recs, nil
}
