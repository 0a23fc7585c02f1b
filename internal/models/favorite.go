package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite links a user to a restaurant; one row per pair.
type Favorite struct {
	ID           int64     `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	RestaurantID int64     `json:"restaurant_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// FavoriteRestaurant is a favorite joined with its restaurant row.
type FavoriteRestaurant struct {
	Restaurant
	FavoriteID  int64     `json:"favorite_id"`
	FavoritedAt time.Time `json:"favorited_at"`
	IsFavorite  bool      `json:"is_favorite"`
}
