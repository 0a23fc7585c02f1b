package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/google/uuid"
)

// FavoriteRepository persists the user/restaurant favorite relation.
type FavoriteRepository struct {
	db *DB
}

// NewFavoriteRepository creates a new favorite repository
func NewFavoriteRepository(db *DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add favorites a restaurant for a user. It returns false when the pair already
// existed; the unique constraint makes concurrent adds converge on one row.
func (r *FavoriteRepository) Add(ctx context.Context, userID uuid.UUID, restaurantID int64) (bool, error) {
	query := `
		INSERT INTO favorites (user_id, restaurant_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, restaurant_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, userID, restaurantID, time.Now().UTC())
	if err != nil {
		if pqErrorCode(err) == pqForeignKeyViolation {
			return false, fmt.Errorf("restaurant %d: %w", restaurantID, models.ErrNotFound)
		}
		return false, storageError("add favorite", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storageError("get rows affected", err)
	}

	return rowsAffected == 1, nil
}

// Remove deletes the pair; models.ErrNotFound when it was not favorited.
func (r *FavoriteRepository) Remove(ctx context.Context, userID uuid.UUID, restaurantID int64) error {
	query := `DELETE FROM favorites WHERE user_id = $1 AND restaurant_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, restaurantID)
	if err != nil {
		return storageError("remove favorite", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageError("get rows affected", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("restaurant not in favorites: %w", models.ErrNotFound)
	}

	return nil
}

// Exists reports whether the user has favorited the restaurant.
func (r *FavoriteRepository) Exists(ctx context.Context, userID uuid.UUID, restaurantID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND restaurant_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, restaurantID).Scan(&exists); err != nil {
		return false, storageError("check favorite", err)
	}

	return exists, nil
}

// ListByUser returns the user's favorites, most recently favorited first.
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.FavoriteRestaurant, error) {
	query := `
		SELECT r.id, r.place_id, r.name, r.address, r.lat, r.lng, r.rating, r.user_ratings_total,
			r.photo_reference, r.cuisines, r.price_level, r.created_at, r.updated_at,
			f.id, f.created_at
		FROM favorites f
		JOIN restaurants r ON r.id = f.restaurant_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storageError("list favorites", err)
	}
	defer func() { _ = rows.Close() }()

	favorites := []*models.FavoriteRestaurant{}
	for rows.Next() {
		fav := &models.FavoriteRestaurant{IsFavorite: true}
		rest, err := scanRestaurant(rows, &fav.FavoriteID, &fav.FavoritedAt)
		if err != nil {
			return nil, storageError("scan favorite", err)
		}
		fav.Restaurant = *rest
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate favorites", err)
	}

	return favorites, nil
}
