package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pranaflow/pranaflow/internal/history"
	"github.com/pranaflow/pranaflow/internal/notify"
	"github.com/pranaflow/pranaflow/internal/session"
)

// --- content ---

func (s *Server) listPoses(w http.ResponseWriter, r *http.Request) {
	poses, err := s.poses.Poses(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "pose catalogue unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, poses)
}

func (s *Server) getPose(w http.ResponseWriter, r *http.Request) {
	pose, err := s.poses.PoseByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pose)
}

func (s *Server) listAffirmations(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	writeJSON(w, http.StatusOK, s.catalog.Affirmations(category))
}

func (s *Server) listAffirmationCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.AffirmationCategories())
}

func (s *Server) listSounds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Sounds())
}

func (s *Server) getSound(w http.ResponseWriter, r *http.Request) {
	sound, err := s.catalog.SoundByID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sound)
}

// --- session ---

// sessionErrorStatus maps engine errors onto HTTP status codes. Invalid
// input is the client's fault; an operation the current state does not
// allow is a conflict.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrZeroDuration):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrSessionTooShort):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) beginSession(w http.ResponseWriter, r *http.Request) {
	var req session.BeginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := s.sessions.Begin(r.Context(), req)
	if err != nil {
		writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) sessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.CurrentStatus())
}

func (s *Server) setTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.sessions.SetTarget(r.Context(), req.Seconds); err != nil {
		writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.CurrentStatus())
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Start(r.Context()); err != nil {
		writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.CurrentStatus())
}

func (s *Server) pauseSession(w http.ResponseWriter, _ *http.Request) {
	if err := s.sessions.Pause(); err != nil {
		writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.CurrentStatus())
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Reset(r.Context()); err != nil {
		writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.CurrentStatus())
}

func (s *Server) saveSession(w http.ResponseWriter, _ *http.Request) {
	if err := s.sessions.Save(); err != nil {
		writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.CurrentStatus())
}

func (s *Server) setMuted(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.sessions.SetMuted(req.Muted)
	writeJSON(w, http.StatusOK, s.sessions.CurrentStatus())
}

// --- history ---

func (s *Server) listPractices(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.Practices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []history.PracticeRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) clearPractices(w http.ResponseWriter, r *http.Request) {
	if err := s.records.ClearPractices(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(notify.LevelInfo, "History Cleared", "Your practice history has been cleared.")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMeditations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.Meditations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []history.MeditationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.Practices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	categoryOf := func(poseID string) string {
		pose, err := s.catalog.PoseByID(r.Context(), poseID)
		if err != nil {
			return ""
		}
		return pose.Category
	}
	writeJSON(w, http.StatusOK, history.ComputeStats(recs, categoryOf, time.Now()))
}

// --- journal ---

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.journal.Profile(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var p history.Profile
	if !decodeBody(w, r, &p) {
		return
	}
	if err := s.journal.SaveProfile(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.journal.Notes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []history.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "note text is required")
		return
	}
	note := history.Note{ID: uuid.NewString(), Date: time.Now(), Text: req.Text}
	if err := s.journal.AddNote(r.Context(), note); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.journal.DeleteNote(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMeals(w http.ResponseWriter, r *http.Request) {
	meals, err := s.journal.Meals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if meals == nil {
		meals = []history.MealEntry{}
	}
	writeJSON(w, http.StatusOK, meals)
}

func (s *Server) addMeal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Calories int    `json:"calories"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "meal name is required")
		return
	}
	meal := history.MealEntry{ID: uuid.NewString(), Date: time.Now(), Name: req.Name, Calories: req.Calories}
	if err := s.journal.AddMeal(r.Context(), meal); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, meal)
}

func (s *Server) deleteMeal(w http.ResponseWriter, r *http.Request) {
	if err := s.journal.DeleteMeal(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- notifications ---

func (s *Server) listNotifications(w http.ResponseWriter, _ *http.Request) {
	notices := s.notices.Recent()
	if notices == nil {
		notices = []notify.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}
