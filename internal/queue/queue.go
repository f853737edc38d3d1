// Package queue provides an unbounded FIFO queue used to decouple
// producers from slower consumers without dropping items. The gateway
// read loop pushes frames into one, and the journal writer accumulates
// rows in another between flushes.
package queue

import (
	"sync"
)

// Growable is a thread-safe ring queue that doubles its capacity once it
// passes 70% full, so bursts never block the producer.
type Growable[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int // next read position
	tail     int // next write position
	count    int
	capacity int
	closed   bool

	enqueued int64
	dequeued int64
	resizes  int
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Depth    int
	Capacity int
	Enqueued int64
	Dequeued int64
	Resizes  int
}

// NewGrowable creates a queue with the given initial capacity.
func NewGrowable[T any](initialCapacity int) *Growable[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &Growable[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item, growing the queue if needed.
// Returns false once the queue is closed.
func (q *Growable[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.enqueued++

	q.cond.Signal()
	return true
}

// Pop removes the oldest item, blocking until one is available or the
// queue is closed. Items pushed before Close drain normally; once the
// queue is empty and closed, Pop returns false.
func (q *Growable[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// TryPop removes the oldest item without blocking.
func (q *Growable[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// Drain removes up to max items in FIFO order. max <= 0 drains everything.
// Returns nil when the queue is empty.
func (q *Growable[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	n := q.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = q.take()
	}
	return out
}

// Close marks the queue closed and wakes all blocked Pop calls.
// Pushes after Close are rejected; remaining items stay drainable.
func (q *Growable[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Growable[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the current capacity.
func (q *Growable[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// Stats returns current counters.
func (q *Growable[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Depth:    q.count,
		Capacity: q.capacity,
		Enqueued: q.enqueued,
		Dequeued: q.dequeued,
		Resizes:  q.resizes,
	}
}

// take removes the head item. Caller must hold q.mu and ensure count > 0.
func (q *Growable[T]) take() T {
	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.dequeued++
	return item
}

// grow doubles the capacity, compacting items to the front.
// Caller must hold q.mu.
func (q *Growable[T]) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizes++
}
