// Package boundedqueue implements a fixed-capacity blocking FIFO queue for
// multiple producers and multiple consumers.
//
// The queue is a monitor: one mutex guards a ring buffer, and two condition
// variables (notFull, notEmpty) park producers and consumers. Every wait sits
// in a loop that re-checks its predicate, so a wake-up never implies that the
// predicate holds. sync.Cond hands out wake-ups in arrival order, which keeps
// starvation bounded for both sides.
//
// Shutdown is cooperative. Close keeps buffered items, wakes everyone, and from
// then on Put fails with ErrClosed while Take keeps returning items until the
// buffer is drained, after which it returns ErrEmpty.
package boundedqueue

import (
	"sync"

	"github.com/pkg/errors"
)

// Queue is a bounded, blocking, multi-producer/multi-consumer FIFO queue.
// The zero value is not usable; create queues with New.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf    []T
	head   int // index of the oldest element
	count  int
	closed bool
}

// New creates an empty, open queue holding at most capacity elements.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "got %d", capacity)
	}
	q := &Queue[T]{
		buf: make([]T, capacity),
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q, nil
}

// Put appends item at the tail, blocking while the queue is full.
// It returns ErrClosed if the queue is closed before the item could be stored.
func (q *Queue[T]) Put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.buf) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	tail := q.head + q.count
	if tail >= len(q.buf) {
		tail -= len(q.buf)
	}
	q.buf[tail] = item
	q.count++

	q.notEmpty.Signal()
	return nil
}

// Take removes and returns the head element, blocking while the queue is empty.
// Once the queue is closed and drained it returns ErrEmpty.
func (q *Queue[T]) Take() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, ErrEmpty
	}

	var zero T
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head++
	if q.head == len(q.buf) {
		q.head = 0
	}
	q.count--

	q.notFull.Signal()
	return item, nil
}

// Close marks the queue closed and wakes all blocked callers.
// Buffered items stay available to Take. Calling Close again is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the number of buffered elements at the time of the call.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the capacity given to New.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue[T]) IsFull() bool {
	return q.Len() == len(q.buf)
}

func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// FreeSlots returns how many more elements fit before Put blocks.
func (q *Queue[T]) FreeSlots() uint64 {
	return uint64(len(q.buf) - q.Len())
}

// UsedSlots returns the number of buffered elements.
func (q *Queue[T]) UsedSlots() uint64 {
	return uint64(q.Len())
}
