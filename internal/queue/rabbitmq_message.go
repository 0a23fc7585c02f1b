package queue

import (
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrAlreadySettled is returned when a message is acked or nacked twice.
var ErrAlreadySettled = errors.New("message already settled")

// Message is a decoded job together with the broker handle needed to settle it.
type Message struct {
	Job *Job

	acker amqp.Acknowledger
	tag   uint64
	once  sync.Once
}

func newMessage(job *Job, d amqp.Delivery) *Message {
	return &Message{Job: job, acker: d.Acknowledger, tag: d.DeliveryTag}
}

// Ack removes the message from the queue.
func (m *Message) Ack() error {
	return m.settle(func() error { return m.acker.Ack(m.tag, false) })
}

// Nack rejects the message. Without requeue the broker dead-letters it.
func (m *Message) Nack(requeue bool) error {
	return m.settle(func() error { return m.acker.Nack(m.tag, false, requeue) })
}

// GetJob returns the decoded job.
func (m *Message) GetJob() *Job {
	return m.Job
}

func (m *Message) settle(fn func() error) error {
	err := ErrAlreadySettled
	m.once.Do(func() {
		err = fn()
	})
	return err
}

var _ Delivery = (*Message)(nil)
