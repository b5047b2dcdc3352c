// Package api exposes the session engine over HTTP. The surface is a plain
// JSON API under /api plus the operational endpoints (/healthz, /readyz,
// /metrics). All state lives behind the injected dependencies; handlers
// only translate between HTTP and the engine.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pranaflow/pranaflow/internal/content"
	"github.com/pranaflow/pranaflow/internal/health"
	"github.com/pranaflow/pranaflow/internal/history"
	"github.com/pranaflow/pranaflow/internal/notify"
	"github.com/pranaflow/pranaflow/internal/observe"
	"github.com/pranaflow/pranaflow/internal/session"
)

// SessionController is the slice of the session manager the API drives.
type SessionController interface {
	Begin(ctx context.Context, req session.BeginRequest) (session.Status, error)
	SetTarget(ctx context.Context, seconds int) error
	Start(ctx context.Context) error
	Pause() error
	Reset(ctx context.Context) error
	Save() error
	SetMuted(muted bool)
	CurrentStatus() session.Status
}

// Journal is the profile/notes/meals side of the local store.
type Journal interface {
	Profile(ctx context.Context) (history.Profile, error)
	SaveProfile(ctx context.Context, p history.Profile) error

	Notes(ctx context.Context) ([]history.Note, error)
	AddNote(ctx context.Context, n history.Note) error
	DeleteNote(ctx context.Context, id string) error

	Meals(ctx context.Context) ([]history.MealEntry, error)
	AddMeal(ctx context.Context, m history.MealEntry) error
	DeleteMeal(ctx context.Context, id string) error
}

// NoticeSource exposes recent user notices, oldest first.
type NoticeSource interface {
	Recent() []notify.Notice
}

// Server holds the API's dependencies and builds its router.
type Server struct {
	sessions SessionController
	poses    content.PoseSource
	catalog  *content.Catalog
	records  history.Store
	journal  Journal
	notices  NoticeSource
	notifier notify.Notifier
	healthz  *health.Handler
	metrics  *observe.Metrics
}

// Config holds all dependencies for a [Server].
type Config struct {
	Sessions SessionController
	Poses    content.PoseSource
	Catalog  *content.Catalog
	Records  history.Store
	Journal  Journal
	Notices  NoticeSource
	Notifier notify.Notifier // optional; destructive operations confirm through it
	Health   *health.Handler
	Metrics  *observe.Metrics
}

// New creates a Server. Metrics defaults to the shared instance when nil.
func New(cfg Config) *Server {
	s := &Server{
		sessions: cfg.Sessions,
		poses:    cfg.Poses,
		catalog:  cfg.Catalog,
		records:  cfg.Records,
		journal:  cfg.Journal,
		notices:  cfg.Notices,
		notifier: cfg.Notifier,
		healthz:  cfg.Health,
		metrics:  cfg.Metrics,
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Router builds the full HTTP handler, observability middleware included.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/poses", s.listPoses).Methods(http.MethodGet)
	api.HandleFunc("/poses/{id}", s.getPose).Methods(http.MethodGet)
	api.HandleFunc("/affirmations", s.listAffirmations).Methods(http.MethodGet)
	api.HandleFunc("/affirmations/categories", s.listAffirmationCategories).Methods(http.MethodGet)
	api.HandleFunc("/sounds", s.listSounds).Methods(http.MethodGet)
	api.HandleFunc("/sounds/{id}", s.getSound).Methods(http.MethodGet)

	api.HandleFunc("/session", s.beginSession).Methods(http.MethodPost)
	api.HandleFunc("/session", s.sessionStatus).Methods(http.MethodGet)
	api.HandleFunc("/session/target", s.setTarget).Methods(http.MethodPost)
	api.HandleFunc("/session/start", s.startSession).Methods(http.MethodPost)
	api.HandleFunc("/session/pause", s.pauseSession).Methods(http.MethodPost)
	api.HandleFunc("/session/reset", s.resetSession).Methods(http.MethodPost)
	api.HandleFunc("/session/save", s.saveSession).Methods(http.MethodPost)
	api.HandleFunc("/session/mute", s.setMuted).Methods(http.MethodPost)

	api.HandleFunc("/history/practice", s.listPractices).Methods(http.MethodGet)
	api.HandleFunc("/history/practice", s.clearPractices).Methods(http.MethodDelete)
	api.HandleFunc("/history/meditation", s.listMeditations).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)

	api.HandleFunc("/profile", s.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.putProfile).Methods(http.MethodPut)
	api.HandleFunc("/notes", s.listNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes", s.addNote).Methods(http.MethodPost)
	api.HandleFunc("/notes/{id}", s.deleteNote).Methods(http.MethodDelete)
	api.HandleFunc("/meals", s.listMeals).Methods(http.MethodGet)
	api.HandleFunc("/meals", s.addMeal).Methods(http.MethodPost)
	api.HandleFunc("/meals/{id}", s.deleteMeal).Methods(http.MethodDelete)

	api.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)

	if s.healthz != nil {
		s.healthz.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return observe.Middleware(s.metrics)(r)
}

// writeJSON writes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes the request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
