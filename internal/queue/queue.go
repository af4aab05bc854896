package queue

// BlockingQueueInterface is the contract shared by every bounded queue in this
// repository. The harness and the bench command only ever talk to a queue
// through it, so implementations can be swapped per run.
type BlockingQueueInterface[T any] interface {
	// Put appends an element and blocks while the queue is full and open.
	// It fails with the implementation's closed error once the queue is closed.
	Put(T) error

	// Take removes and returns the oldest element, blocking while the queue is
	// empty and open. On a closed, drained queue it returns the empty error.
	Take() (T, error)

	// Close stops accepting new elements and wakes every blocked caller.
	Close()

	// Len returns how many elements are currently queued.
	Len() int

	// Cap returns the fixed capacity.
	Cap() int

	IsEmpty() bool
	IsFull() bool
	IsClosed() bool

	// FreeSlots returns how many more elements can be queued before Put blocks.
	FreeSlots() uint64

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64
}
