// Package health serves liveness and readiness probes.
//
//   - /healthz answers 200 whenever the process can serve HTTP.
//   - /readyz answers 200 only when every registered [Checker] passes:
//     history store writable, speech backend reachable, analysis server
//     answering its probe.
//
// Responses are JSON with a "status" field ("ok" or "fail") and a "checks"
// map naming each checker's outcome.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pranaflow/pranaflow/pkg/analysis"
	"github.com/pranaflow/pranaflow/pkg/speech"
)

// checkTimeout caps how long one readiness check may run.
const checkTimeout = 5 * time.Second

// Checker is one named readiness check. Check returns nil when the
// dependency is usable and must respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is anything that can verify its own backing resource. Both history
// stores implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports whether a history store accepts writes. name
// distinguishes the stores when more than one is registered, e.g.
// "history-file" and "history-postgres".
func StoreChecker(name string, store Pinger) Checker {
	return Checker{Name: name, Check: store.Ping}
}

// SpeechChecker reports whether the speech backend answers. Voice
// enumeration is the cheapest call every synthesizer supports.
func SpeechChecker(synth speech.Synthesizer) Checker {
	return Checker{
		Name: "speech",
		Check: func(ctx context.Context) error {
			_, err := synth.ListVoices(ctx)
			return err
		},
	}
}

// AnalysisChecker reports whether the pose analysis server answers its
// probe. With the simulator as analyzer this always passes.
func AnalysisChecker(a analysis.Analyzer) Checker {
	return Checker{Name: "analysis", Check: a.Probe}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction; safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating the given checkers, in order, on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers 200 only when every checker passes, 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	status := http.StatusOK
	res := result{Status: "ok", Checks: checks}

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			checks[c.Name] = "ok"
		}
	}

	writeJSON(w, status, res)
}

// Register adds the probe routes to r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
