package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeRefreshRestaurant re-reads one cached restaurant from the places provider
	JobTypeRefreshRestaurant JobType = "refresh_restaurant"
)

// DefaultMaxRetries bounds how often a failing job is re-enqueued before it is dead-lettered.
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID           uuid.UUID  `json:"id"`
	Type         JobType    `json:"type"`
	RestaurantID int64      `json:"restaurant_id"`
	PlaceID      string     `json:"place_id"`
	NotAfter     *time.Time `json:"not_after,omitempty"` // Latest time to process job (nil = no expiration)
	CreatedAt    time.Time  `json:"created_at"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
}

// NewRefreshRestaurantJob creates a refresh job for one cached restaurant
func NewRefreshRestaurantJob(restaurantID int64, placeID string) *Job {
	return &Job{
		ID:           uuid.New(),
		Type:         JobTypeRefreshRestaurant,
		RestaurantID: restaurantID,
		PlaceID:      placeID,
		CreatedAt:    time.Now(),
		MaxRetries:   DefaultMaxRetries,
	}
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
