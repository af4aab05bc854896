package boundedqueue

import "github.com/pkg/errors"

var (
	// ErrInvalidCapacity is returned by New when the capacity is below one.
	ErrInvalidCapacity = errors.New("boundedqueue: capacity must be at least 1")

	// ErrClosed is returned by Put once the queue has been closed.
	ErrClosed = errors.New("boundedqueue: queue is closed")

	// ErrEmpty is returned by Take on a closed queue with nothing left to hand
	// out. It marks the end of the stream and is not a failure.
	ErrEmpty = errors.New("boundedqueue: queue is closed and drained")
)
