package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/benvon/restaurant-finder/internal/models"
	"go.uber.org/zap"
)

type fakeCorsStore struct {
	mu  sync.Mutex
	cfg *models.CorsConfig
	err error
}

func (f *fakeCorsStore) Get(context.Context) (*models.CorsConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, f.err
}

func (f *fakeCorsStore) set(cfg *models.CorsConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

func corsPreflight(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/favorites", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORSReloader_FallbackOrigins(t *testing.T) {
	t.Parallel()

	store := &fakeCorsStore{err: errors.New("db down")}
	reloader := NewCORSReloader(store, "http://localhost:5173, https://food.example.com/", zap.NewNop(), 0)
	h := reloader.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if got := corsPreflight(h, "https://food.example.com").Header().Get("Access-Control-Allow-Origin"); got != "https://food.example.com" {
		t.Errorf("allowed origin = %q", got)
	}
	if got := corsPreflight(h, "https://evil.example.com").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestCORSReloader_Reload(t *testing.T) {
	t.Parallel()

	store := &fakeCorsStore{}
	reloader := NewCORSReloader(store, "http://localhost:5173", zap.NewNop(), 0)
	h := reloader.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if got := corsPreflight(h, "https://app.example.com").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("origin allowed before reload: %q", got)
	}

	store.set(&models.CorsConfig{AllowedOrigins: "https://app.example.com", AllowCredentials: true, MaxAge: 600})
	reloader.load(context.Background())

	w := corsPreflight(h, "https://app.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allowed origin after reload = %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("max age = %q, want 600", got)
	}
}
