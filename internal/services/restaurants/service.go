package restaurants

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/benvon/restaurant-finder/internal/logger"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/queue"
	"github.com/benvon/restaurant-finder/internal/services/places"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	maxDetailReviews = 5
	maxDetailPhotos  = 5

	// refreshClaimCooldown is how long a queued refresh blocks another one for
	// the same row.
	refreshClaimCooldown = time.Hour
)

// Reconciliation outcomes reported to the Observer.
const (
	OutcomeInserted = "inserted"
	OutcomeExisting = "existing"
	OutcomeSkipped  = "skipped"
	OutcomeDegraded = "degraded"
)

// Gateway is the part of the places client the workflow depends on.
type Gateway interface {
	NearbySearch(ctx context.Context, req places.NearbyRequest) ([]places.Place, error)
	Details(ctx context.Context, placeID string, fields []string) (*places.Details, error)
}

// Observer counts reconciliation outcomes; metrics.Collector implements it.
type Observer interface {
	ObserveReconciliation(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveReconciliation(string) {}

// NearbyQuery is a validated nearby search request.
type NearbyQuery struct {
	Lat      float64
	Lng      float64
	Category string
	Radius   int
}

// Option configures a Service.
type Option func(*Service)

// WithRefreshQueue enqueues refresh jobs for rows older than maxAge.
func WithRefreshQueue(q queue.Enqueuer, maxAge time.Duration) Option {
	return func(s *Service) {
		s.refreshQueue = q
		s.refreshAfter = maxAge
	}
}

// WithObserver attaches a reconciliation observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLanguage sets the language sent with nearby searches.
func WithLanguage(lang string) Option {
	return func(s *Service) {
		if lang != "" {
			s.language = lang
		}
	}
}

// Service implements nearby search with lazy persistence and restaurant details.
type Service struct {
	restaurants  database.RestaurantStore
	favorites    database.FavoriteStore
	gateway      Gateway
	refreshQueue queue.Enqueuer
	refreshAfter time.Duration
	observer     Observer
	language     string
	logger       *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewService creates the restaurant workflow service
func NewService(restaurants database.RestaurantStore, favorites database.FavoriteStore, gateway Gateway, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		restaurants: restaurants,
		favorites:   favorites,
		gateway:     gateway,
		observer:    nopObserver{},
		language:    "zh-TW",
		logger:      log,
		tracer:      otel.Tracer("github.com/benvon/restaurant-finder/internal/services/restaurants"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindNearby searches upstream and reconciles each candidate into the place
// cache. Upstream order is preserved; items are never marked as favorites.
func (s *Service) FindNearby(ctx context.Context, q NearbyQuery) ([]models.EnrichedRestaurant, error) {
	if !validCoordinate(q.Lat, 90) || !validCoordinate(q.Lng, 180) {
		return nil, fmt.Errorf("location out of range: %w", models.ErrInvalidArgument)
	}

	placeType := PlaceTypeFor(q.Category)
	radius := ClampRadius(q.Radius)

	ctx, span := s.tracer.Start(ctx, "restaurants.find_nearby", trace.WithAttributes(
		attribute.String("place.type", placeType),
		attribute.Int("search.radius", radius),
	))
	defer span.End()

	candidates, err := s.gateway.NearbySearch(ctx, places.NearbyRequest{
		Lat:      q.Lat,
		Lng:      q.Lng,
		Radius:   radius,
		Type:     placeType,
		Language: s.language,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	span.SetAttributes(attribute.Int("search.candidates", len(candidates)))

	if err := s.restaurants.Ping(ctx); err != nil {
		s.logger.Warn("restaurant_store_unreachable",
			zap.Int("candidates", len(candidates)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return s.degraded(candidates), nil
	}

	results := make([]models.EnrichedRestaurant, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.PlaceID == "" {
			s.logger.Warn("restaurant_candidate_skipped", zap.String("reason", "missing place id"))
			s.observer.ObserveReconciliation(OutcomeSkipped)
			continue
		}

		id, err := s.reconcile(ctx, candidate)
		if err != nil {
			s.logger.Warn("restaurant_candidate_skipped",
				zap.String("place_id", logger.SanitizeIdentifier(candidate.PlaceID)),
				zap.String("error", logger.SanitizeError(err)),
			)
			s.observer.ObserveReconciliation(OutcomeSkipped)
			continue
		}
		results = append(results, enrich(candidate, id))
	}

	return results, nil
}

// reconcile returns the surrogate id for candidate, inserting a row on first
// sight. The re-read after insert may observe a concurrent writer's row.
func (s *Service) reconcile(ctx context.Context, candidate *places.Place) (*int64, error) {
	existing, err := s.restaurants.GetByPlaceID(ctx, candidate.PlaceID)
	if err == nil {
		s.observer.ObserveReconciliation(OutcomeExisting)
		s.maybeRefresh(ctx, existing)
		return &existing.ID, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	row := RestaurantFromPlace(candidate)
	if _, _, ok := candidate.Coordinates(); !ok {
		s.logger.Warn("restaurant_missing_geometry",
			zap.String("place_id", logger.SanitizeIdentifier(candidate.PlaceID)),
			zap.String("name", logger.SanitizeString(candidate.Name, logger.MaxIdentifierLength)),
		)
	}

	if _, err := s.restaurants.InsertIfAbsent(ctx, row); err != nil {
		return nil, err
	}

	stored, err := s.restaurants.GetByPlaceID(ctx, candidate.PlaceID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("restaurant_id_unavailable",
			zap.String("place_id", logger.SanitizeIdentifier(candidate.PlaceID)),
		)
		s.observer.ObserveReconciliation(OutcomeInserted)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.observer.ObserveReconciliation(OutcomeInserted)
	return &stored.ID, nil
}

// maybeRefresh enqueues a background refresh for a stale row unless one was
// claimed recently. Failures are logged only.
func (s *Service) maybeRefresh(ctx context.Context, rest *models.Restaurant) {
	if s.refreshQueue == nil || !rest.IsStale(s.now(), s.refreshAfter) {
		return
	}

	claimed, err := s.restaurants.ClaimRefresh(ctx, rest.ID, refreshClaimCooldown)
	if err != nil {
		s.logger.Warn("restaurant_refresh_claim_failed",
			zap.Int64("restaurant_id", rest.ID),
			zap.String("error", logger.SanitizeError(err)),
		)
		return
	}
	if !claimed {
		return
	}

	job := queue.NewRefreshRestaurantJob(rest.ID, rest.PlaceID)
	if err := s.refreshQueue.Enqueue(ctx, job); err != nil {
		s.logger.Warn("restaurant_refresh_enqueue_failed",
			zap.Int64("restaurant_id", rest.ID),
			zap.String("error", logger.SanitizeError(err)),
		)
		return
	}
	s.logger.Debug("restaurant_refresh_enqueued",
		zap.Int64("restaurant_id", rest.ID),
		zap.String("job_id", job.ID.String()),
	)
}

func (s *Service) degraded(candidates []places.Place) []models.EnrichedRestaurant {
	results := make([]models.EnrichedRestaurant, 0, len(candidates))
	for i := range candidates {
		if candidates[i].PlaceID == "" {
			s.observer.ObserveReconciliation(OutcomeSkipped)
			continue
		}
		s.observer.ObserveReconciliation(OutcomeDegraded)
		results = append(results, enrich(&candidates[i], nil))
	}
	return results
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}

// GetDetails returns the cached row, the caller's favorite state and, when the
// provider answers, the extended details.
func (s *Service) GetDetails(ctx context.Context, restaurantID int64, user *models.User) (*models.RestaurantDetail, error) {
	rest, err := s.restaurants.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	detail := &models.RestaurantDetail{Restaurant: *rest}

	if user != nil {
		isFavorite, err := s.favorites.Exists(ctx, user.ID, restaurantID)
		if err != nil {
			s.logger.Warn("favorite_lookup_failed",
				zap.Int64("restaurant_id", restaurantID),
				zap.String("error", logger.SanitizeError(err)),
			)
			isFavorite = false
		}
		detail.IsFavorite = isFavorite
	}

	upstream, err := s.gateway.Details(ctx, rest.PlaceID, places.DetailFields)
	if err != nil {
		s.logger.Warn("restaurant_details_unavailable",
			zap.Int64("restaurant_id", restaurantID),
			zap.String("error", logger.SanitizeError(err)),
		)
		return detail, nil
	}

	detail.Details = detailsFromPlace(upstream)
	return detail, nil
}

// RestaurantFromPlace derives a cache row from an upstream place. Missing
// geometry becomes 0,0.
func RestaurantFromPlace(p *places.Place) *models.Restaurant {
	lat, lng, _ := p.Coordinates()
	return &models.Restaurant{
		PlaceID:          p.PlaceID,
		Name:             p.Name,
		Address:          p.Address(),
		Lat:              lat,
		Lng:              lng,
		Rating:           p.Rating,
		UserRatingsTotal: p.UserRatingsTotal,
		PhotoReference:   p.FirstPhotoReference(),
		Cuisines:         p.Types,
		PriceLevel:       p.PriceLevel,
	}
}

func enrich(p *places.Place, id *int64) models.EnrichedRestaurant {
	return models.EnrichedRestaurant{
		ID:               id,
		PlaceID:          p.PlaceID,
		Name:             p.Name,
		Address:          p.Address(),
		Rating:           p.Rating,
		UserRatingsTotal: p.UserRatingsTotal,
		PhotoReference:   p.FirstPhotoReference(),
		IsFavorite:       false,
	}
}

func detailsFromPlace(d *places.Details) *models.PlaceDetails {
	out := &models.PlaceDetails{
		FormattedAddress:     d.FormattedAddress,
		FormattedPhoneNumber: d.FormattedPhoneNumber,
		Website:              d.Website,
		URL:                  d.URL,
		Reviews:              []models.Review{},
		Photos:               []string{},
	}
	if d.OpeningHours != nil {
		out.OpeningHours = d.OpeningHours.WeekdayText
	}
	for i, r := range d.Reviews {
		if i == maxDetailReviews {
			break
		}
		out.Reviews = append(out.Reviews, models.Review{
			AuthorName:              r.AuthorName,
			Rating:                  r.Rating,
			RelativeTimeDescription: r.RelativeTimeDescription,
			Text:                    r.Text,
		})
	}
	for _, p := range d.Photos {
		if len(out.Photos) == maxDetailPhotos {
			break
		}
		if p.PhotoReference != "" {
			out.Photos = append(out.Photos, p.PhotoReference)
		}
	}
	return out
}
