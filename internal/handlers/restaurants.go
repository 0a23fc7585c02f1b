package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/benvon/restaurant-finder/internal/middleware"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/services/places"
	"github.com/benvon/restaurant-finder/internal/services/restaurants"
	"github.com/benvon/restaurant-finder/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// photoCacheControl lets browsers and proxies keep photos for a day.
const photoCacheControl = "public, max-age=86400"

// RestaurantService is implemented by restaurants.Service.
type RestaurantService interface {
	FindNearby(ctx context.Context, q restaurants.NearbyQuery) ([]models.EnrichedRestaurant, error)
	GetDetails(ctx context.Context, restaurantID int64, user *models.User) (*models.RestaurantDetail, error)
}

// PhotoSource fetches legacy photo references.
type PhotoSource interface {
	Photo(ctx context.Context, photoReference string, maxWidth int) (*places.Image, error)
}

// RestaurantHandler serves nearby search, details and photos.
type RestaurantHandler struct {
	svc    RestaurantService
	photos PhotoSource
	logger *zap.Logger
}

// NewRestaurantHandler creates a new restaurant handler
func NewRestaurantHandler(svc RestaurantService, photos PhotoSource, logger *zap.Logger) *RestaurantHandler {
	return &RestaurantHandler{svc: svc, photos: photos, logger: logger}
}

// RegisterRoutes registers restaurant routes on a router with the
// /api/restaurants prefix. Nearby search and photos are anonymous.
func (h *RestaurantHandler) RegisterRoutes(r *mux.Router, requireAuth func(http.Handler) http.Handler) {
	r.HandleFunc("/nearby", h.Nearby).Methods(http.MethodGet)
	r.HandleFunc("/photo/{photoReference}", h.Photo).Methods(http.MethodGet)
	r.Handle("/{id:[0-9]+}", requireAuth(http.HandlerFunc(h.GetDetails))).Methods(http.MethodGet)
}

// parseNearbyQuery reads lat, lng, category and radius. Unparseable radius
// values fall back to the default.
func parseNearbyQuery(r *http.Request) (restaurants.NearbyQuery, string, bool) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(q.Get("lng")), 64)
	if latErr != nil || lngErr != nil {
		return restaurants.NearbyQuery{}, "Missing location parameters", false
	}

	category := validation.NormalizeCategory(q.Get("category"))

	radius := restaurants.DefaultRadius
	if raw := strings.TrimSpace(q.Get("radius")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			radius = v
		}
	}
	return restaurants.NearbyQuery{Lat: lat, Lng: lng, Category: category, Radius: radius}, "", true
}

// Nearby lists restaurants around a location
func (h *RestaurantHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	query, msg, ok := parseNearbyQuery(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", msg)
		return
	}

	results, err := h.svc.FindNearby(r.Context(), query)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to fetch restaurants")
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// GetDetails returns one cached restaurant with upstream details
func (h *RestaurantHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	id, err := pathInt64(mux.Vars(r)["id"], "restaurant id")
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to fetch restaurant")
		return
	}

	detail, err := h.svc.GetDetails(r.Context(), id, user)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to fetch restaurant")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// Photo proxies a legacy photo reference
func (h *RestaurantHandler) Photo(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(mux.Vars(r)["photoReference"])
	if ref == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Photo reference is required")
		return
	}
	maxWidth := photoWidth(r)

	img, err := h.photos.Photo(r.Context(), ref, maxWidth)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to fetch photo")
		return
	}
	writeImage(w, img, photoCacheControl)
}

// photoWidth reads maxwidth, falling back to the default on absent or invalid values.
func photoWidth(r *http.Request) int {
	w, err := queryInt(r, "maxwidth", places.DefaultPhotoMaxWidth)
	if err != nil || w <= 0 {
		return places.DefaultPhotoMaxWidth
	}
	return w
}
