package queue

import (
	"context"
)

// Delivery is one consumed job. Exactly one of Ack or Nack settles it.
type Delivery interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// Enqueuer publishes jobs. The request path only ever needs this half of the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is the broker as seen by the refresh worker.
type JobQueue interface {
	Enqueuer

	// Consume streams jobs until ctx ends. Each message must be settled by the
	// caller, and at most prefetchCount are outstanding at once. Both channels
	// close when delivery stops.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error
	HealthCheck(ctx context.Context) error
}
