package core

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadloop/internal/config"
	"leadloop/internal/types"
)

const testTriggerSecret = "test-secret-0123456789abcdef"

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Sweep.TriggerSecret = config.SecretString(testTriggerSecret)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s, err := NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestTriggerAuthMiddleware_ValidSecret(t *testing.T) {
	s := testServer(t)
	h := s.TriggerAuthMiddleware(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/v1/cron/run", nil)
	r.Header.Set("Authorization", "Bearer "+testTriggerSecret)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestTriggerAuthMiddleware_MissingHeader(t *testing.T) {
	s := testServer(t)
	h := s.TriggerAuthMiddleware(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/v1/cron/run", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var body APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeAuthTokenMissing) {
		t.Errorf("got code %q", body.Error.Code)
	}
}

func TestTriggerAuthMiddleware_WrongSecret(t *testing.T) {
	s := testServer(t)
	h := s.TriggerAuthMiddleware(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/v1/cron/run", nil)
	r.Header.Set("Authorization", "Bearer not-the-secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var body APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeAuthTokenInvalid) {
		t.Errorf("got code %q", body.Error.Code)
	}
}

func TestTriggerAuthMiddleware_MalformedScheme(t *testing.T) {
	s := testServer(t)
	h := s.TriggerAuthMiddleware(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/v1/cron/run", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Bearer   abc123  ", "abc123"},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := extractBearerToken(tc.header); got != tc.want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if seen == "" {
		t.Fatal("expected a generated request ID in context")
	}
	if got := w.Header().Get("X-Request-Id"); got != seen {
		t.Errorf("response header %q does not match context ID %q", got, seen)
	}
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "scheduler-run-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if seen != "scheduler-run-42" {
		t.Errorf("expected incoming ID to propagate, got %q", seen)
	}
}

func TestRecoverer_CatchesPanic(t *testing.T) {
	s := testServer(t)
	h := s.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("recovery body is not valid JSON: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("got code %q", body.Error.Code)
	}
}

func TestResponseCapture_DefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec}

	if _, err := rc.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rc.statusCode != http.StatusOK {
		t.Errorf("implicit status = %d, want 200", rc.statusCode)
	}
}

func TestResponseCapture_ExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec}

	rc.WriteHeader(http.StatusTeapot)
	rc.WriteHeader(http.StatusOK)

	if rc.statusCode != http.StatusTeapot {
		t.Errorf("status = %d, want the first written code", rc.statusCode)
	}
}
