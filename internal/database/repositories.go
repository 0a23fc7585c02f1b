package database

import (
	"context"
	"time"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/google/uuid"
)

// UserStore is the credential store used by the auth service.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	LinkGoogleSubject(ctx context.Context, id uuid.UUID, subject string) error
}

// RestaurantStore is the place cache used by the ingestion workflow and the refresh worker.
type RestaurantStore interface {
	Ping(ctx context.Context) error
	GetByID(ctx context.Context, id int64) (*models.Restaurant, error)
	GetByPlaceID(ctx context.Context, placeID string) (*models.Restaurant, error)
	InsertIfAbsent(ctx context.Context, rest *models.Restaurant) (bool, error)
	Refresh(ctx context.Context, rest *models.Restaurant) error
	ClaimRefresh(ctx context.Context, id int64, cooldown time.Duration) (bool, error)
}

// FavoriteStore is the favorite ledger.
type FavoriteStore interface {
	Add(ctx context.Context, userID uuid.UUID, restaurantID int64) (bool, error)
	Remove(ctx context.Context, userID uuid.UUID, restaurantID int64) error
	Exists(ctx context.Context, userID uuid.UUID, restaurantID int64) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.FavoriteRestaurant, error)
}

// CorsConfigStore and RatelimitConfigStore back the hot-reloading middlewares.
type CorsConfigStore interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

type RatelimitConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// Ensure concrete types implement the interfaces
var (
	_ UserStore            = (*UserRepository)(nil)
	_ RestaurantStore      = (*RestaurantRepository)(nil)
	_ FavoriteStore        = (*FavoriteRepository)(nil)
	_ CorsConfigStore      = (*CorsConfigRepository)(nil)
	_ RatelimitConfigStore = (*RatelimitConfigRepository)(nil)
)
