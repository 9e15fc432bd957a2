package krunloop

import (
	"context"
	"sync"
	"sync/atomic"
)

// UnboundedQueue decouples event producers from the run loop: Enqueue never
// blocks, the internal buffer grows as needed.
type UnboundedQueue[T CriticalResource] struct {
	input     chan IEvent[T]
	buffer    []IEvent[T]
	output    chan IEvent[T]
	size      atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewUnboundedQueue[T CriticalResource](ctx context.Context) *UnboundedQueue[T] {
	q := &UnboundedQueue[T]{
		input:  make(chan IEvent[T], 1),
		output: make(chan IEvent[T]),
	}
	go q.pump(ctx)
	return q
}

// pump owns the output channel; it is the only goroutine that closes it.
func (q *UnboundedQueue[T]) pump(ctx context.Context) {
	defer q.closeOnce.Do(func() {
		close(q.output)
	})

	for {
		var head IEvent[T]
		var out chan IEvent[T]
		if len(q.buffer) > 0 {
			head = q.buffer[0]
			out = q.output
		}
		// out stays nil while the buffer is empty, which disables that case
		select {
		case item := <-q.input:
			q.buffer = append(q.buffer, item)
		case out <- head:
			q.buffer = q.buffer[1:]
			q.size.Add(-1)
		case <-ctx.Done():
			q.closed.Store(true)
			return
		}
	}
}

// Enqueue adds an event. Never blocks. Events enqueued after close are
// dropped on the floor together with the rest of the buffer.
func (q *UnboundedQueue[T]) Enqueue(item IEvent[T]) {
	if q.closed.Load() {
		return
	}
	q.input <- item
	q.size.Add(1)
}

// OutputChan is consumed by the run loop; blocks while the queue is empty.
func (q *UnboundedQueue[T]) OutputChan() chan IEvent[T] {
	return q.output
}

func (q *UnboundedQueue[T]) Size() int64 {
	return q.size.Load()
}

func (q *UnboundedQueue[T]) Close() {
	q.closed.Store(true)
}
