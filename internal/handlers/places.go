package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/benvon/restaurant-finder/internal/photocache"
	"github.com/benvon/restaurant-finder/internal/services/places"
	"github.com/benvon/restaurant-finder/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PlacesGateway is the subset of places.Client the passthrough routes use.
type PlacesGateway interface {
	TextSearch(ctx context.Context, textQuery string, fields []string) (json.RawMessage, error)
	Photo(ctx context.Context, photoReference string, maxWidth int) (*places.Image, error)
	PlacePhoto(ctx context.Context, placeID, photoReference string, maxWidth int) (*places.Image, error)
}

// PhotoCache is implemented by photocache.Cache.
type PhotoCache interface {
	GetOrFetch(ctx context.Context, photoReference string, maxWidth int, fetch photocache.Fetcher) (*places.Image, bool, error)
}

// CacheRecorder counts photo cache hits and misses.
type CacheRecorder interface {
	RecordPhotoCacheLookup(hit bool)
}

type nopCacheRecorder struct{}

func (nopCacheRecorder) RecordPhotoCacheLookup(bool) {}

// PlacesHandler exposes text search and photo passthrough routes.
type PlacesHandler struct {
	gateway  PlacesGateway
	cache    PhotoCache
	recorder CacheRecorder
	logger   *zap.Logger
}

// NewPlacesHandler creates a places handler. cache may be nil, in which case
// cached-photo always fetches upstream.
func NewPlacesHandler(gateway PlacesGateway, cache PhotoCache, recorder CacheRecorder, logger *zap.Logger) *PlacesHandler {
	if recorder == nil {
		recorder = nopCacheRecorder{}
	}
	return &PlacesHandler{gateway: gateway, cache: cache, recorder: recorder, logger: logger}
}

// RegisterRoutes registers routes on a router with the /api/places prefix.
func (h *PlacesHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/textsearch", h.TextSearch).Methods(http.MethodPost)
	r.HandleFunc("/v1-photo", h.V1Photo).Methods(http.MethodGet)
	r.HandleFunc("/cached-photo", h.CachedPhoto).Methods(http.MethodGet)
}

// TextSearchRequest represents a text search request
type TextSearchRequest struct {
	TextQuery string   `json:"textQuery" validate:"required,max=500"`
	Fields    []string `json:"fields" validate:"max=30,dive,place_field"`
}

// TextSearch returns the first place matching a free-text query
func (h *PlacesHandler) TextSearch(w http.ResponseWriter, r *http.Request) {
	var req TextSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to search places")
		return
	}
	req.TextQuery = validation.SanitizeText(req.TextQuery)
	if req.TextQuery == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "textQuery is required")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FieldErrors(err))
		return
	}

	place, err := h.gateway.TextSearch(r.Context(), req.TextQuery, req.Fields)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to search places")
		return
	}
	respondJSON(w, http.StatusOK, place)
}

// V1Photo proxies the Places API (New) media endpoint
func (h *PlacesHandler) V1Photo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := strings.TrimSpace(q.Get("photoReference"))
	if ref == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "photoReference is required")
		return
	}

	img, err := h.gateway.PlacePhoto(r.Context(), strings.TrimSpace(q.Get("placeId")), ref, photoWidth(r))
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to fetch photo")
		return
	}
	writeImage(w, img, photoCacheControl)
}

// CachedPhoto serves a photo from the disk cache, fetching it on a miss.
// Full "places/..." resource names go through the media endpoint; anything
// else is treated as a legacy photo reference.
func (h *PlacesHandler) CachedPhoto(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("photoReference"))
	if ref == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "photoReference is required")
		return
	}
	maxWidth := photoWidth(r)

	fetch := func(ctx context.Context) (*places.Image, error) {
		if strings.HasPrefix(ref, "places/") {
			return h.gateway.PlacePhoto(ctx, "", ref, maxWidth)
		}
		return h.gateway.Photo(ctx, ref, maxWidth)
	}

	var (
		img *places.Image
		hit bool
		err error
	)
	if h.cache != nil {
		img, hit, err = h.cache.GetOrFetch(r.Context(), ref, maxWidth, fetch)
	} else {
		img, err = fetch(r.Context())
	}
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to fetch photo")
		return
	}

	h.recorder.RecordPhotoCacheLookup(hit)
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeImage(w, img, photoCacheControl)
}
