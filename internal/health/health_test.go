package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) (status string, checks map[string]string) {
	t.Helper()
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Status, body.Checks
}

func TestHealthzAlwaysOK(t *testing.T) {
	h := New(Checker{Name: "never", Check: func(context.Context) error {
		return errors.New("down")
	}})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	status, _ := decodeBody(t, rec)
	if status != "ok" {
		t.Fatalf("status field = %q, want ok", status)
	}
}

func TestReadyzAllPassing(t *testing.T) {
	h := New(
		Checker{Name: "history-store", Check: func(context.Context) error { return nil }},
		Checker{Name: "speech", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	_, checks := decodeBody(t, rec)
	if checks["history-store"] != "ok" || checks["speech"] != "ok" {
		t.Fatalf("checks = %v", checks)
	}
}

func TestReadyzFailingChecker(t *testing.T) {
	h := New(
		Checker{Name: "history-store", Check: func(context.Context) error { return nil }},
		Checker{Name: "analysis", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	status, checks := decodeBody(t, rec)
	if status != "fail" {
		t.Fatalf("status field = %q, want fail", status)
	}
	if checks["history-store"] != "ok" {
		t.Fatalf("passing check reported %q", checks["history-store"])
	}
	if !strings.HasPrefix(checks["analysis"], "fail: ") {
		t.Fatalf("failing check reported %q", checks["analysis"])
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyzDistinguishesStores(t *testing.T) {
	h := New(
		StoreChecker("history-file", pingerFunc(func(context.Context) error { return nil })),
		StoreChecker("history-postgres", pingerFunc(func(context.Context) error {
			return errors.New("connection refused")
		})),
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	_, checks := decodeBody(t, rec)
	if len(checks) != 2 {
		t.Fatalf("checks = %v, want both stores reported separately", checks)
	}
	if checks["history-file"] != "ok" {
		t.Errorf("file store reported %q", checks["history-file"])
	}
	if !strings.HasPrefix(checks["history-postgres"], "fail: ") {
		t.Errorf("postgres store reported %q", checks["history-postgres"])
	}
}

func TestRegisterRoutes(t *testing.T) {
	r := mux.NewRouter()
	New().Register(r)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
