package favorites

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddResult distinguishes a new favorite from an idempotent repeat.
type AddResult int

const (
	// Created means this call wrote the favorite.
	Created AddResult = iota + 1
	// AlreadyExists means the pair was already favorited.
	AlreadyExists
)

func (r AddResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Service manages a user's favorite restaurants.
type Service struct {
	favorites   database.FavoriteStore
	restaurants database.RestaurantStore
	logger      *zap.Logger
	pick        func(n int) int
}

// NewService creates a favorites service
func NewService(favorites database.FavoriteStore, restaurants database.RestaurantStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		favorites:   favorites,
		restaurants: restaurants,
		logger:      logger,
		pick:        rand.Intn,
	}
}

// List returns the user's favorites, most recently favorited first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*models.FavoriteRestaurant, error) {
	return s.favorites.ListByUser(ctx, userID)
}

// Add favorites restaurantID. Repeating the call is not an error.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, restaurantID int64) (AddResult, error) {
	if restaurantID <= 0 {
		return 0, fmt.Errorf("restaurant_id must be positive: %w", models.ErrInvalidArgument)
	}

	if _, err := s.restaurants.GetByID(ctx, restaurantID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, fmt.Errorf("restaurant not found: %w", models.ErrNotFound)
		}
		return 0, err
	}

	created, err := s.favorites.Add(ctx, userID, restaurantID)
	if err != nil {
		return 0, err
	}
	if !created {
		return AlreadyExists, nil
	}

	s.logger.Info("favorite_added",
		zap.String("user_id", userID.String()),
		zap.Int64("restaurant_id", restaurantID),
	)
	return Created, nil
}

// Remove unfavorites restaurantID; models.ErrNotFound when it was not a favorite.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID, restaurantID int64) error {
	if err := s.favorites.Remove(ctx, userID, restaurantID); err != nil {
		return err
	}

	s.logger.Info("favorite_removed",
		zap.String("user_id", userID.String()),
		zap.Int64("restaurant_id", restaurantID),
	)
	return nil
}

// PickRandom selects one of the user's favorites uniformly at random.
func (s *Service) PickRandom(ctx context.Context, userID uuid.UUID) (*models.FavoriteRestaurant, error) {
	favorites, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return nil, fmt.Errorf("no favorites found: %w", models.ErrNotFound)
	}
	return favorites[s.pick(len(favorites))], nil
}
