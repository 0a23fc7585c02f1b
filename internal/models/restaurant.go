package models

import "time"

// Restaurant is a place observed from the upstream provider and cached locally.
// PlaceID is unique across the table.
type Restaurant struct {
	ID               int64     `json:"id"`
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	Address          string    `json:"address"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	Rating           float64   `json:"rating"`
	UserRatingsTotal int       `json:"user_ratings_total"`
	PhotoReference   *string   `json:"photo_reference,omitempty"`
	Cuisines         []string  `json:"cuisines,omitempty"`
	PriceLevel       *int      `json:"price_level,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsStale reports whether the row was last written before now-maxAge.
func (r *Restaurant) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return r.UpdatedAt.Before(now.Add(-maxAge))
}

// EnrichedRestaurant is one item of a nearby search. ID is nil when the
// candidate could not be persisted.
type EnrichedRestaurant struct {
	ID               *int64  `json:"id"`
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
	PhotoReference   *string `json:"photo_reference"`
	IsFavorite       bool    `json:"is_favorite"`
}

// Review is an upstream review as exposed by restaurant details.
type Review struct {
	AuthorName              string  `json:"author_name"`
	Rating                  float64 `json:"rating"`
	RelativeTimeDescription string  `json:"relative_time_description"`
	Text                    string  `json:"text"`
}

// PlaceDetails are the extended fields fetched on demand from upstream.
type PlaceDetails struct {
	FormattedAddress     string   `json:"formatted_address,omitempty"`
	FormattedPhoneNumber string   `json:"formatted_phone_number,omitempty"`
	OpeningHours         []string `json:"opening_hours,omitempty"`
	Website              string   `json:"website,omitempty"`
	URL                  string   `json:"url,omitempty"`
	Reviews              []Review `json:"reviews"`
	Photos               []string `json:"photos"`
}

// RestaurantDetail is the cached row plus favorite state and, when upstream
// answered, the extended details.
type RestaurantDetail struct {
	Restaurant
	IsFavorite bool          `json:"is_favorite"`
	Details    *PlaceDetails `json:"details,omitempty"`
}
