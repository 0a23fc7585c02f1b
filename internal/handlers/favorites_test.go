package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/services/favorites"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type fakeFavoriteService struct {
	ids []int64
}

func (f *fakeFavoriteService) List(_ context.Context, _ uuid.UUID) ([]*models.FavoriteRestaurant, error) {
	out := make([]*models.FavoriteRestaurant, 0, len(f.ids))
	for i := len(f.ids) - 1; i >= 0; i-- {
		out = append(out, &models.FavoriteRestaurant{Restaurant: models.Restaurant{ID: f.ids[i]}, IsFavorite: true})
	}
	return out, nil
}

func (f *fakeFavoriteService) Add(_ context.Context, _ uuid.UUID, id int64) (favorites.AddResult, error) {
	if id == 404 {
		return 0, fmt.Errorf("restaurant not found: %w", models.ErrNotFound)
	}
	for _, existing := range f.ids {
		if existing == id {
			return favorites.AlreadyExists, nil
		}
	}
	f.ids = append(f.ids, id)
	return favorites.Created, nil
}

func (f *fakeFavoriteService) Remove(_ context.Context, _ uuid.UUID, id int64) error {
	for i, existing := range f.ids {
		if existing == id {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("restaurant not in favorites: %w", models.ErrNotFound)
}

func (f *fakeFavoriteService) PickRandom(_ context.Context, _ uuid.UUID) (*models.FavoriteRestaurant, error) {
	if len(f.ids) == 0 {
		return nil, fmt.Errorf("no favorites found: %w", models.ErrNotFound)
	}
	return &models.FavoriteRestaurant{Restaurant: models.Restaurant{ID: f.ids[0]}, IsFavorite: true}, nil
}

func newFavoriteRouter(svc FavoriteService) *mux.Router {
	r := mux.NewRouter()
	sub := r.PathPrefix("/api/favorites").Subrouter()
	sub.Use(fakeAuth)
	NewFavoriteHandler(svc, zap.NewNop()).RegisterRoutes(sub)
	return r
}

func messageOf(t *testing.T, data json.RawMessage) string {
	t.Helper()
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return m["message"]
}

func TestFavoriteHandler_Lifecycle(t *testing.T) {
	t.Parallel()

	router := newFavoriteRouter(&fakeFavoriteService{})

	if w := serve(router, http.MethodGet, "/api/favorites", "", false); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", w.Code)
	}

	if w := serve(router, http.MethodGet, "/api/favorites/random", "", true); w.Code != http.StatusNotFound {
		t.Errorf("random on empty status = %d", w.Code)
	}

	w := serve(router, http.MethodPost, "/api/favorites", `{"restaurant_id":5}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d", w.Code)
	}
	if msg := messageOf(t, decodeEnvelope(t, w).Data); msg != "Restaurant added to favorites" {
		t.Errorf("add message = %q", msg)
	}

	w = serve(router, http.MethodPost, "/api/favorites", `{"restaurant_id":5}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat add status = %d", w.Code)
	}
	if msg := messageOf(t, decodeEnvelope(t, w).Data); msg != "Restaurant already in favorites" {
		t.Errorf("repeat add message = %q", msg)
	}

	w = serve(router, http.MethodGet, "/api/favorites", "", true)
	var list []models.FavoriteRestaurant
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != 5 || !list[0].IsFavorite {
		t.Errorf("unexpected list %+v", list)
	}

	if w := serve(router, http.MethodGet, "/api/favorites/random", "", true); w.Code != http.StatusOK {
		t.Errorf("random status = %d", w.Code)
	}

	if w := serve(router, http.MethodDelete, "/api/favorites/5", "", true); w.Code != http.StatusOK {
		t.Errorf("remove status = %d", w.Code)
	}
	w = serve(router, http.MethodDelete, "/api/favorites/5", "", true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second remove status = %d", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Message != "Restaurant not in favorites" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestFavoriteHandler_AddValidation(t *testing.T) {
	t.Parallel()

	router := newFavoriteRouter(&fakeFavoriteService{})

	tests := []struct {
		body string
		want int
	}{
		{`{}`, http.StatusBadRequest},
		{`{"restaurant_id":"five"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
		{`{"restaurant_id":404}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := serve(router, http.MethodPost, "/api/favorites", tt.body, true); w.Code != tt.want {
			t.Errorf("body %s: status = %d, want %d", tt.body, w.Code, tt.want)
		}
	}
}
