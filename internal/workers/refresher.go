// Package workers holds the background job processors run by cmd/worker.
package workers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/queue"
	"github.com/benvon/restaurant-finder/internal/services/places"
	"github.com/benvon/restaurant-finder/internal/services/restaurants"
	"go.uber.org/zap"
)

// Refresh job outcomes, used as the metrics label.
const (
	OutcomeRefreshed    = "refreshed"
	OutcomeRowGone      = "row_gone"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeRejected     = "rejected"
)

// DetailsGateway is the part of places.Client the refresher needs.
type DetailsGateway interface {
	Details(ctx context.Context, placeID string, fields []string) (*places.Details, error)
}

// Recorder receives one outcome per processed job.
type Recorder interface {
	RecordRefreshJob(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRefreshJob(string) {}

// Refresher re-reads cached restaurants from the places provider and
// overwrites their upstream-derived fields.
type Refresher struct {
	gateway  DetailsGateway
	store    database.RestaurantStore
	requeue  queue.Enqueuer
	recorder Recorder
	logger   *zap.Logger
}

// NewRefresher creates a refresher. requeue receives retries of failed jobs.
func NewRefresher(gateway DetailsGateway, store database.RestaurantStore, requeue queue.Enqueuer, recorder Recorder, logger *zap.Logger) *Refresher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Refresher{
		gateway:  gateway,
		store:    store,
		requeue:  requeue,
		recorder: recorder,
		logger:   logger,
	}
}

// Run consumes jobs until ctx is cancelled or the consumer stops.
func (r *Refresher) Run(ctx context.Context, q queue.JobQueue, prefetch int) error {
	msgs, errs, err := q.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case consumeErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("queue_consume_error", zap.Error(consumeErr))
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("consumer stopped")
			}
			if err := r.ProcessJob(ctx, msg); err != nil {
				r.logger.Warn("refresh_job_failed",
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessJob handles one delivery. Success and vanished rows are acked; a
// failed refresh is re-enqueued with an incremented retry count while retries
// remain and dead-lettered otherwise.
func (r *Refresher) ProcessJob(ctx context.Context, msg queue.Delivery) error {
	job := msg.GetJob()
	if job.Type != queue.JobTypeRefreshRestaurant {
		r.recorder.RecordRefreshJob(OutcomeRejected)
		if nackErr := msg.Nack(false); nackErr != nil {
			return fmt.Errorf("failed to nack unknown job type: %w", nackErr)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	err := r.refresh(ctx, job)
	switch {
	case err == nil:
		r.recorder.RecordRefreshJob(OutcomeRefreshed)
		r.logger.Debug("restaurant_refreshed",
			zap.Int64("restaurant_id", job.RestaurantID),
			zap.String("place_id", job.PlaceID),
		)
		return ack(msg)

	case errors.Is(err, models.ErrNotFound):
		r.recorder.RecordRefreshJob(OutcomeRowGone)
		r.logger.Info("refresh_skipped_row_gone", zap.Int64("restaurant_id", job.RestaurantID))
		return ack(msg)

	case isPermanent(err) || !job.CanRetry():
		r.recorder.RecordRefreshJob(OutcomeDeadLettered)
		if nackErr := msg.Nack(false); nackErr != nil {
			return errors.Join(err, fmt.Errorf("failed to nack job: %w", nackErr))
		}
		return fmt.Errorf("refresh of restaurant %d dead-lettered after %d retries: %w", job.RestaurantID, job.RetryCount, err)
	}

	retry := *job
	retry.IncrementRetry()
	if enqueueErr := r.requeue.Enqueue(ctx, &retry); enqueueErr != nil {
		r.recorder.RecordRefreshJob(OutcomeDeadLettered)
		if nackErr := msg.Nack(false); nackErr != nil {
			return errors.Join(err, enqueueErr, nackErr)
		}
		return fmt.Errorf("failed to re-enqueue refresh job: %w", errors.Join(err, enqueueErr))
	}

	r.recorder.RecordRefreshJob(OutcomeRetried)
	r.logger.Info("refresh_job_requeued",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", retry.RetryCount),
		zap.Error(err),
	)
	return ack(msg)
}

func (r *Refresher) refresh(ctx context.Context, job *queue.Job) error {
	if job.PlaceID == "" || job.RestaurantID <= 0 {
		return fmt.Errorf("malformed refresh job %s: %w", job.ID, models.ErrInvalidArgument)
	}

	details, err := r.gateway.Details(ctx, job.PlaceID, places.RefreshFields)
	if err != nil {
		return err
	}

	place := details.Place
	if place.PlaceID == "" {
		place.PlaceID = job.PlaceID
	}

	rest := restaurants.RestaurantFromPlace(&place)
	rest.ID = job.RestaurantID

	// A details answer without geometry keeps the stored coordinates.
	if _, _, ok := place.Coordinates(); !ok {
		current, err := r.store.GetByID(ctx, job.RestaurantID)
		if err != nil {
			return err
		}
		rest.Lat, rest.Lng = current.Lat, current.Lng
		r.logger.Warn("refresh_missing_geometry", zap.String("place_id", job.PlaceID))
	}

	return r.store.Refresh(ctx, rest)
}

// isPermanent reports failures that retrying cannot fix: malformed jobs and
// places the provider no longer knows.
func isPermanent(err error) bool {
	if errors.Is(err, models.ErrInvalidArgument) {
		return true
	}
	var upstream *places.UpstreamError
	if !errors.As(err, &upstream) {
		return false
	}
	switch upstream.Status {
	case "NOT_FOUND", "INVALID_REQUEST":
		return true
	}
	return upstream.HTTPStatus >= http.StatusBadRequest && upstream.HTTPStatus < http.StatusInternalServerError &&
		upstream.HTTPStatus != http.StatusTooManyRequests
}

func ack(msg queue.Delivery) error {
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}
