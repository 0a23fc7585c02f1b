package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/request"
	"github.com/google/uuid"
)

var testUser = &models.User{ID: uuid.MustParse("8d4b7a3c-6a0e-4f0d-9d3e-1b2c3d4e5f60"), Name: "Mei", Email: "mei@example.com"}

// fakeAuth attaches testUser when the request carries "Bearer good".
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), testUser)))
	})
}

func serve(h http.Handler, method, target, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer good")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestFakeAuthRejects(t *testing.T) {
	t.Parallel()

	h := fakeAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))
	if w := serve(h, http.MethodGet, "/", "", false); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}
