// Package memory provides the in-process result queue shared by fetch workers
// and the stream driver.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Queue is an unbounded FIFO safe for many producers and consumers. Push never
// blocks; PopAll drains everything that is available in one call.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	// ready holds at most one wakeup token. A stale token only causes an
	// extra emptiness check in PopAll.
	ready chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends an item and wakes at most one blocked consumer.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// PopAll removes and returns every queued item in arrival order. With block
// set it waits until at least one item exists or the context ends; otherwise
// it returns immediately, possibly with an empty slice.
func (q *Queue[T]) PopAll(ctx context.Context, block bool) ([]T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 || !block {
			items := q.items
			q.items = nil
			q.mu.Unlock()
			if items == nil {
				items = []T{}
			}
			return items, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("pop canceled: %w", ctx.Err())
		case <-q.ready:
		}
	}
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
