// Package chanqueue is a bounded blocking queue built on a buffered channel.
// It honours the same Put/Take/Close contract as boundedqueue and returns the
// same sentinel errors, which makes it a baseline for the bench command.
package chanqueue

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/i5heu/GoBoundedQueue/pkg/boundedqueue"
)

type ChanQueue[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once

	// Put holds the read side while it may still send on ch. Draining Take
	// calls grab the write side once, after done is closed, so no send can
	// land behind a consumer that already reported ErrEmpty.
	inflight sync.RWMutex
}

// New returns a queue holding at most capacity elements.
func New[T any](capacity int) (*ChanQueue[T], error) {
	// A zero-capacity channel is a rendezvous, not a buffer.
	if capacity < 1 {
		return nil, errors.Wrapf(boundedqueue.ErrInvalidCapacity, "got %d", capacity)
	}
	return &ChanQueue[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}, nil
}

func (q *ChanQueue[T]) Put(val T) error {
	q.inflight.RLock()
	defer q.inflight.RUnlock()

	select {
	case <-q.done:
		return boundedqueue.ErrClosed
	default:
	}

	select {
	case q.ch <- val:
		return nil
	case <-q.done:
		return boundedqueue.ErrClosed
	}
}

func (q *ChanQueue[T]) Take() (val T, err error) {
	select {
	case val = <-q.ch:
		return val, nil
	case <-q.done:
	}

	// Closed: wait out any Put that passed its done check, then drain.
	q.inflight.Lock()
	q.inflight.Unlock() //nolint:staticcheck // barrier only

	select {
	case val = <-q.ch:
		return val, nil
	default:
		return val, boundedqueue.ErrEmpty
	}
}

func (q *ChanQueue[T]) Close() {
	q.once.Do(func() { close(q.done) })
}

func (q *ChanQueue[T]) IsClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

func (q *ChanQueue[T]) Len() int      { return len(q.ch) }
func (q *ChanQueue[T]) Cap() int      { return cap(q.ch) }
func (q *ChanQueue[T]) IsEmpty() bool { return len(q.ch) == 0 }
func (q *ChanQueue[T]) IsFull() bool  { return len(q.ch) == cap(q.ch) }

func (q *ChanQueue[T]) FreeSlots() uint64 {
	return uint64(cap(q.ch) - len(q.ch))
}

func (q *ChanQueue[T]) UsedSlots() uint64 {
	return uint64(len(q.ch))
}
