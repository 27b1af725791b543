// Package queue buffers notifications between a committed transaction and
// the sinks that deliver them.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Notification is the payload type flowing through the queue.
type Notification = model.Notification

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue returns ErrFull or ErrClosed when n was not accepted.
	Enqueue(ctx context.Context, n Notification) error

	// Dequeue returns the receive side; it is closed once the queue is
	// closed and drained.
	Dequeue(ctx context.Context) <-chan Notification

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Notification
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Notification, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)
	return q
}

// Enqueue never blocks.
func (q *InMemoryQueue) Enqueue(_ context.Context, n Notification) error { //nolint:gocritic // passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.items <- n:
		metrics.RecordQueueEnqueue()
		q.report()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Publish implements model.Publisher. A rejected notification is counted
// and dropped.
func (q *InMemoryQueue) Publish(ctx context.Context, n model.Notification) {
	if err := q.Enqueue(ctx, n); err != nil {
		reason := "queue_full"
		if err == ErrClosed {
			reason = "queue_closed"
		}
		metrics.RecordNotificationDropped(reason)
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue(context.Context) <-chan Notification {
	return q.items
}

// Len returns the current number of queued notifications and refreshes the
// size gauges.
func (q *InMemoryQueue) Len(context.Context) int {
	return q.report()
}

func (q *InMemoryQueue) report() int {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close stops accepting notifications. Queued ones can still be drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
