package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/restaurant-finder/internal/middleware"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/services/favorites"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// FavoriteService is implemented by favorites.Service.
type FavoriteService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.FavoriteRestaurant, error)
	Add(ctx context.Context, userID uuid.UUID, restaurantID int64) (favorites.AddResult, error)
	Remove(ctx context.Context, userID uuid.UUID, restaurantID int64) error
	PickRandom(ctx context.Context, userID uuid.UUID) (*models.FavoriteRestaurant, error)
}

// FavoriteHandler handles the favorites ledger. Every route requires a session.
type FavoriteHandler struct {
	svc    FavoriteService
	logger *zap.Logger
}

// NewFavoriteHandler creates a new favorites handler
func NewFavoriteHandler(svc FavoriteService, logger *zap.Logger) *FavoriteHandler {
	return &FavoriteHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers favorites routes on an authenticated router with
// the /api/favorites prefix.
func (h *FavoriteHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.List).Methods(http.MethodGet)
	r.HandleFunc("", h.Add).Methods(http.MethodPost)
	r.HandleFunc("/random", h.Random).Methods(http.MethodGet)
	r.HandleFunc("/{restaurantId:[0-9]+}", h.Remove).Methods(http.MethodDelete)
}

// AddFavoriteRequest represents an add favorite request
type AddFavoriteRequest struct {
	RestaurantID *int64 `json:"restaurant_id"`
}

// List returns the user's favorites, most recent first
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	list, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to fetch favorites")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Add favorites a restaurant. Repeating the call is not an error.
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req AddFavoriteRequest
	if err := decodeJSON(r, &req); err != nil || req.RestaurantID == nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Missing restaurant_id")
		return
	}

	result, err := h.svc.Add(r.Context(), user.ID, *req.RestaurantID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to add favorite")
		return
	}

	if result == favorites.AlreadyExists {
		respondJSON(w, http.StatusOK, map[string]string{"message": "Restaurant already in favorites"})
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "Restaurant added to favorites"})
}

// Remove drops a restaurant from the user's favorites
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	id, err := pathInt64(mux.Vars(r)["restaurantId"], "restaurant id")
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to remove favorite")
		return
	}

	if err := h.svc.Remove(r.Context(), user.ID, id); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to remove favorite")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Restaurant removed from favorites"})
}

// Random returns one favorite chosen uniformly
func (h *FavoriteHandler) Random(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	pick, err := h.svc.PickRandom(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to get random favorite")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"favorite": pick})
}
