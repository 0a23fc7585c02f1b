package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func TestHealthChecker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		queueErr   error
		wantStatus int
		wantState  string
		wantChecks map[string]string
	}{
		{"basic mode skips checks", "/healthz", errors.New("down"), http.StatusOK, "healthy", nil},
		{"extended healthy", "/healthz?mode=extended", nil, http.StatusOK, "healthy", map[string]string{"database": "healthy", "queue": "healthy"}},
		{"extended unhealthy", "/healthz?mode=extended", errors.New("amqp closed"), http.StatusServiceUnavailable, "unhealthy", map[string]string{"database": "healthy", "queue": "unhealthy"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker(zap.NewNop())
			h.AddCheck("database", func(context.Context) error { return nil })
			h.AddCheck("queue", func(context.Context) error { return tt.queueErr })
			r := mux.NewRouter()
			h.RegisterRoutes(r)

			w := serve(r, http.MethodGet, tt.target, "", false)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("state = %q, want %q", resp.Status, tt.wantState)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Fatalf("checks = %v, want %v", resp.Checks, tt.wantChecks)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("check %s = %q, want %q", k, resp.Checks[k], v)
				}
			}
		})
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	NewHealthChecker(zap.NewNop()).RegisterRoutes(r)

	w := serve(r, http.MethodGet, "/api/ping", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if msg := messageOf(t, decodeEnvelope(t, w).Data); msg != "pong" {
		t.Errorf("message = %q", msg)
	}
}
