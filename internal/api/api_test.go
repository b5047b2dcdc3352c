package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pranaflow/pranaflow/internal/api"
	"github.com/pranaflow/pranaflow/internal/content"
	"github.com/pranaflow/pranaflow/internal/cue"
	"github.com/pranaflow/pranaflow/internal/health"
	"github.com/pranaflow/pranaflow/internal/history"
	"github.com/pranaflow/pranaflow/internal/notify"
	"github.com/pranaflow/pranaflow/internal/session"
	analysismock "github.com/pranaflow/pranaflow/pkg/analysis/mock"
	speechmock "github.com/pranaflow/pranaflow/pkg/speech/mock"
)

type fixture struct {
	ts    *httptest.Server
	store *history.FileStore
	ring  *notify.Ring
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := history.NewFileStore(filepath.Join(t.TempDir(), "history.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	gate := cue.NewGate(&speechmock.Synthesizer{})
	t.Cleanup(gate.Close)

	ring := notify.NewRing()
	catalog := content.NewCatalog()
	manager := session.NewManager(gate, cue.NewClassifier(), store, catalog, &analysismock.Analyzer{},
		session.Cadence{Tick: time.Hour, Guidance: time.Hour, Feedback: time.Hour},
		session.WithManagerNotifier(ring),
	)
	t.Cleanup(manager.Close)

	srv := api.New(api.Config{
		Sessions: manager,
		Poses:    catalog,
		Catalog:  catalog,
		Records:  store,
		Journal:  store,
		Notices:  ring,
		Health:   health.New(health.StoreChecker("history-file", store)),
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &fixture{ts: ts, store: store, ring: ring}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode response %q: %v", data, err)
	}
	return v
}

func TestPoseEndpoints(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/poses", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/poses: status %d", resp.StatusCode)
	}
	poses := decode[[]content.Pose](t, body)
	if len(poses) != 8 {
		t.Errorf("pose count: got %d, want 8", len(poses))
	}

	resp, body = f.do(t, http.MethodGet, "/api/poses/5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/poses/5: status %d", resp.StatusCode)
	}
	pose := decode[content.Pose](t, body)
	if pose.Name != "Tree Pose" {
		t.Errorf("pose name: got %q, want %q", pose.Name, "Tree Pose")
	}

	resp, _ = f.do(t, http.MethodGet, "/api/poses/999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/poses/999: status %d, want 404", resp.StatusCode)
	}
}

func TestAffirmationEndpoints(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/affirmations?category=gratitude", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	affs := decode[[]content.Affirmation](t, body)
	if len(affs) != 2 {
		t.Errorf("gratitude affirmations: got %d, want 2", len(affs))
	}
	for _, a := range affs {
		if a.Category != "gratitude" {
			t.Errorf("unexpected category %q", a.Category)
		}
	}

	_, body = f.do(t, http.MethodGet, "/api/affirmations/categories", nil)
	cats := decode[[]string](t, body)
	if len(cats) == 0 || cats[0] != "all" {
		t.Errorf("categories: got %v", cats)
	}
}

func TestSoundEndpoints(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, http.MethodGet, "/api/sounds", nil)
	sounds := decode[[]content.Sound](t, body)
	if len(sounds) != 5 {
		t.Errorf("sound count: got %d, want 5", len(sounds))
	}

	resp, _ := f.do(t, http.MethodGet, "/api/sounds/sound-99", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown sound: status %d, want 404", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/session", session.BeginRequest{
		Kind:          session.KindMeditation,
		TargetSeconds: 120,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("begin: status %d, body %s", resp.StatusCode, body)
	}
	st := decode[session.Status](t, body)
	if st.State != session.StateReady {
		t.Errorf("state after begin: got %q, want ready", st.State)
	}

	resp, body = f.do(t, http.MethodPost, "/api/session/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d", resp.StatusCode)
	}
	if st = decode[session.Status](t, body); st.State != session.StateRunning {
		t.Errorf("state after start: got %q, want running", st.State)
	}

	resp, body = f.do(t, http.MethodPost, "/api/session/pause", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause: status %d", resp.StatusCode)
	}
	if st = decode[session.Status](t, body); st.State != session.StatePaused {
		t.Errorf("state after pause: got %q, want paused", st.State)
	}

	_, body = f.do(t, http.MethodGet, "/api/session", nil)
	if st = decode[session.Status](t, body); st.State != session.StatePaused {
		t.Errorf("status: got %q, want paused", st.State)
	}

	resp, body = f.do(t, http.MethodPost, "/api/session/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: status %d", resp.StatusCode)
	}
	if st = decode[session.Status](t, body); st.State != session.StateReady {
		t.Errorf("state after reset: got %q, want ready", st.State)
	}

	// Nothing elapsed; an explicit save is below the floor.
	resp, _ = f.do(t, http.MethodPost, "/api/session/save", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("save below floor: status %d, want 409", resp.StatusCode)
	}
}

func TestSessionValidation(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/session/target", map[string]int{"seconds": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("zero target: status %d, want 400", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/session/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("start without session: status %d, want 409", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/session", map[string]any{"kind": "nap", "targetSeconds": 60})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown kind: status %d, want 400", resp.StatusCode)
	}
}

func TestMuteEndpoint(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, http.MethodPost, "/api/session/mute", map[string]bool{"muted": true})
	if st := decode[session.Status](t, body); !st.Muted {
		t.Error("status should report muted")
	}
	_, body = f.do(t, http.MethodPost, "/api/session/mute", map[string]bool{"muted": false})
	if st := decode[session.Status](t, body); st.Muted {
		t.Error("status should report unmuted")
	}
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := f.store.AppendPractice(ctx, history.PracticeRecord{
			ID:              fmt.Sprintf("p-%d", i),
			PoseID:          "5",
			PoseName:        "Tree Pose",
			Date:            time.Now(),
			DurationSeconds: 120,
			Accuracy:        80,
			Completed:       true,
		})
		if err != nil {
			t.Fatalf("seed practice: %v", err)
		}
	}

	_, body := f.do(t, http.MethodGet, "/api/history/practice", nil)
	recs := decode[[]history.PracticeRecord](t, body)
	if len(recs) != 2 {
		t.Fatalf("practice records: got %d, want 2", len(recs))
	}

	_, body = f.do(t, http.MethodGet, "/api/stats", nil)
	stats := decode[history.UserStats](t, body)
	if stats.TotalSessions != 2 {
		t.Errorf("total sessions: got %d, want 2", stats.TotalSessions)
	}
	if stats.FavoriteCategory != "Standing" {
		t.Errorf("favorite category: got %q, want Standing", stats.FavoriteCategory)
	}

	resp, _ := f.do(t, http.MethodDelete, "/api/history/practice", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear: status %d, want 204", resp.StatusCode)
	}
	_, body = f.do(t, http.MethodGet, "/api/history/practice", nil)
	if recs = decode[[]history.PracticeRecord](t, body); len(recs) != 0 {
		t.Errorf("after clear: got %d records", len(recs))
	}

	// Empty collections encode as [], not null.
	_, body = f.do(t, http.MethodGet, "/api/history/meditation", nil)
	if string(bytes.TrimSpace(body)) != "[]" {
		t.Errorf("empty meditation history: got %s, want []", body)
	}
}

func TestJournalEndpoints(t *testing.T) {
	f := newFixture(t)

	profile := history.Profile{Name: "Asha", Level: "beginner", GoalWeeks: 6}
	resp, _ := f.do(t, http.MethodPut, "/api/profile", profile)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put profile: status %d", resp.StatusCode)
	}
	_, body := f.do(t, http.MethodGet, "/api/profile", nil)
	if got := decode[history.Profile](t, body); got.Name != "Asha" || got.GoalWeeks != 6 {
		t.Errorf("profile roundtrip: got %+v", got)
	}

	resp, body = f.do(t, http.MethodPost, "/api/notes", map[string]string{"text": "Felt calm today."})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add note: status %d", resp.StatusCode)
	}
	note := decode[history.Note](t, body)
	if note.ID == "" {
		t.Error("note should carry a generated ID")
	}

	resp, _ = f.do(t, http.MethodPost, "/api/notes", map[string]string{"text": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty note: status %d, want 400", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodDelete, "/api/notes/"+note.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete note: status %d", resp.StatusCode)
	}
	_, body = f.do(t, http.MethodGet, "/api/notes", nil)
	if notes := decode[[]history.Note](t, body); len(notes) != 0 {
		t.Errorf("notes after delete: got %d", len(notes))
	}

	resp, body = f.do(t, http.MethodPost, "/api/meals", map[string]any{"name": "Oatmeal", "calories": 320})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add meal: status %d", resp.StatusCode)
	}
	meal := decode[history.MealEntry](t, body)
	if meal.Calories != 320 {
		t.Errorf("meal calories: got %d", meal.Calories)
	}
	resp, _ = f.do(t, http.MethodDelete, "/api/meals/"+meal.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete meal: status %d", resp.StatusCode)
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.ring.Notify(notify.LevelInfo, "Session Saved", "Your meditation session has been saved.")

	_, body := f.do(t, http.MethodGet, "/api/notifications", nil)
	notices := decode[[]notify.Notice](t, body)
	if len(notices) != 1 {
		t.Fatalf("notices: got %d, want 1", len(notices))
	}
	if notices[0].Title != "Session Saved" {
		t.Errorf("title: got %q", notices[0].Title)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz: status %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/readyz: status %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics: status %d", resp.StatusCode)
	}
}
