// Package engine runs the consumer loop at the heart of the service: it
// drains the inbound queue, applies samples and archive summaries to the
// accumulators, and triggers rate-gated snapshot publication.
package engine

import "sync"

// Queue is the bounded hand-off between the sample producer and the engine
// goroutine. Enqueue never blocks: when the queue is full the oldest item
// is dropped, keeping the freshest data for a realtime dashboard.
type Queue struct {
	mu       sync.Mutex
	items    []any
	capacity int
	wake     chan struct{}
}

// NewQueue returns a Queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 32
	}
	return &Queue{
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue adds an item, dropping the oldest queued item when full. Returns
// true when an item was dropped to make room.
func (q *Queue) Enqueue(v any) (dropped bool) {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		dropped = true
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return dropped
}

// Drain removes and returns all queued items in arrival order.
func (q *Queue) Drain() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]any, 0, q.capacity)
	return out
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wake signals when an item has been enqueued. The channel carries at most
// one pending signal; the consumer drains everything on each wake.
func (q *Queue) Wake() <-chan struct{} { return q.wake }
