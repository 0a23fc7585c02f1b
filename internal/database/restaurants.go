package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/lib/pq"
)

const restaurantColumns = `id, place_id, name, address, lat, lng, rating, user_ratings_total,
	photo_reference, cuisines, price_level, created_at, updated_at`

// RestaurantRepository persists places observed upstream, one row per place_id.
type RestaurantRepository struct {
	db *DB
}

// NewRestaurantRepository creates a new restaurant repository
func NewRestaurantRepository(db *DB) *RestaurantRepository {
	return &RestaurantRepository{db: db}
}

// Ping reports whether the store is reachable.
func (r *RestaurantRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storageError("ping database", err)
	}
	return nil
}

// GetByID retrieves a restaurant by surrogate id
func (r *RestaurantRepository) GetByID(ctx context.Context, id int64) (*models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`
	return r.getOne(ctx, "get restaurant", query, id)
}

// GetByPlaceID retrieves a restaurant by external place id
func (r *RestaurantRepository) GetByPlaceID(ctx context.Context, placeID string) (*models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE place_id = $1`
	return r.getOne(ctx, "get restaurant by place id", query, placeID)
}

// InsertIfAbsent inserts the row unless its place_id already exists. It reports
// whether this call wrote the row; callers must re-read to learn the id either way.
func (r *RestaurantRepository) InsertIfAbsent(ctx context.Context, rest *models.Restaurant) (bool, error) {
	query := `
		INSERT INTO restaurants (place_id, name, address, lat, lng, rating, user_ratings_total,
			photo_reference, cuisines, price_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (place_id) DO NOTHING
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		rest.PlaceID,
		rest.Name,
		rest.Address,
		rest.Lat,
		rest.Lng,
		rest.Rating,
		rest.UserRatingsTotal,
		rest.PhotoReference,
		pq.Array(cuisinesOrEmpty(rest.Cuisines)),
		rest.PriceLevel,
		now,
		now,
	)
	if err != nil {
		return false, storageError("insert restaurant", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storageError("get rows affected", err)
	}

	return rowsAffected == 1, nil
}

// Refresh overwrites the upstream-derived fields of an existing row.
func (r *RestaurantRepository) Refresh(ctx context.Context, rest *models.Restaurant) error {
	query := `
		UPDATE restaurants
		SET name = $2, address = $3, lat = $4, lng = $5, rating = $6, user_ratings_total = $7,
			photo_reference = $8, cuisines = $9, price_level = $10, updated_at = $11,
			refresh_requested_at = NULL
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		rest.ID,
		rest.Name,
		rest.Address,
		rest.Lat,
		rest.Lng,
		rest.Rating,
		rest.UserRatingsTotal,
		rest.PhotoReference,
		pq.Array(cuisinesOrEmpty(rest.Cuisines)),
		rest.PriceLevel,
		time.Now().UTC(),
	).Scan(&rest.UpdatedAt)
	if isNoRows(err) {
		return fmt.Errorf("restaurant %d: %w", rest.ID, models.ErrNotFound)
	}
	if err != nil {
		return storageError("refresh restaurant", err)
	}

	return nil
}

// ClaimRefresh marks the row as having a pending refresh. It returns false
// when another request already claimed it within cooldown, so only one job is
// queued per stale row.
func (r *RestaurantRepository) ClaimRefresh(ctx context.Context, id int64, cooldown time.Duration) (bool, error) {
	query := `
		UPDATE restaurants
		SET refresh_requested_at = $2
		WHERE id = $1 AND (refresh_requested_at IS NULL OR refresh_requested_at < $3)
		RETURNING id
	`

	now := time.Now().UTC()
	var claimed int64
	err := r.db.QueryRowContext(ctx, query, id, now, now.Add(-cooldown)).Scan(&claimed)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, storageError("claim restaurant refresh", err)
	}
	return true, nil
}

func (r *RestaurantRepository) getOne(ctx context.Context, action, query string, arg any) (*models.Restaurant, error) {
	rest, err := scanRestaurant(r.db.QueryRowContext(ctx, query, arg))
	if isNoRows(err) {
		return nil, fmt.Errorf("restaurant not found: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, storageError(action, err)
	}
	return rest, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRestaurant reads restaurantColumns in order; extra trailing destinations
// let callers scan joined columns in the same pass.
func scanRestaurant(row rowScanner, extra ...any) (*models.Restaurant, error) {
	rest := &models.Restaurant{}
	dest := []any{
		&rest.ID,
		&rest.PlaceID,
		&rest.Name,
		&rest.Address,
		&rest.Lat,
		&rest.Lng,
		&rest.Rating,
		&rest.UserRatingsTotal,
		&rest.PhotoReference,
		pq.Array(&rest.Cuisines),
		&rest.PriceLevel,
		&rest.CreatedAt,
		&rest.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return rest, nil
}

func cuisinesOrEmpty(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}
