package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMountRoutes_HealthIsPublic(t *testing.T) {
	s := testServer(t)
	s.MountRoutes()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("expected public /health, got %d", w.Code)
	}
}

func TestMountRoutes_RegistrarsAreBehindAuth(t *testing.T) {
	s := testServer(t)
	s.RouteRegistrars = []func(chi.Router){
		func(r chi.Router) {
			r.Post("/v1/cron/run", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		},
	}
	s.MountRoutes()

	r := httptest.NewRequest(http.MethodPost, "/v1/cron/run", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodPost, "/v1/cron/run", nil)
	r.Header.Set("Authorization", "Bearer "+testTriggerSecret)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret, got %d", w.Code)
	}
}
