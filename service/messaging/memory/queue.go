// Package memory provides an in-process mailbox. Delivery is at most once:
// a nacked message is never redelivered, it moves to the dead letter list.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viant/pager/internal/clock"
	"github.com/viant/pager/internal/idgen"
	"github.com/viant/pager/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	Buffer     int  `yaml:"buffer"`
	DeadLetter bool `yaml:"deadLetter"`
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		Buffer:     64,
		DeadLetter: true,
	}
}

// Message is a queued payload.
type Message[T any] struct {
	id        string
	payload   T
	createdAt time.Time
	err       error
	processed bool
	queue     *Queue[T]
	mu        sync.Mutex
}

// ID returns the message id.
func (m *Message[T]) ID() string {
	return m.id
}

// CreatedAt returns the publish time.
func (m *Message[T]) CreatedAt() time.Time {
	return m.createdAt
}

// Err returns the nack reason.
func (m *Message[T]) Err() error {
	return m.err
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrProcessed
	}
	m.processed = true
	return nil
}

// Nack records the failure; the message is not requeued.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrProcessed
	}
	m.processed = true
	m.err = err
	if m.queue.config.DeadLetter {
		m.queue.dlqMu.Lock()
		m.queue.dlq = append(m.queue.dlq, m)
		m.queue.dlqMu.Unlock()
	}
	return nil
}

// Queue implements an in-memory messaging.Queue
type Queue[T any] struct {
	messages chan *Message[T]
	dlq      []*Message[T]
	config   Config
	dlqMu    sync.Mutex
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.Buffer),
		config:   config,
	}
}

// Publish adds a new item to the queue, blocking while the buffer is full
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &Message[T]{
		id:        idgen.New(),
		payload:   *t,
		createdAt: clock.Now(),
		queue:     q,
	}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// DeadLetters returns the nacked messages.
func (q *Queue[T]) DeadLetters() []*Message[T] {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	out := make([]*Message[T], len(q.dlq))
	copy(out, q.dlq)
	return out
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
