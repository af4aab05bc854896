// Command libboundedqueue builds the queue as a C shared library.
//
//	go build -buildmode=c-shared -o libboundedqueue.so ./cmd/libboundedqueue
//
// The build also writes libboundedqueue.h, which declares:
//
//	queue_t queue_init(int capacity);   // 0 if capacity < 1
//	void    queue_destroy(queue_t q);
//	int     enqueue(queue_t q, void* data);  // blocks while full; -1 once shut down
//	void*   dequeue(queue_t q);              // blocks while empty; NULL once shut down and drained
//	void    queue_shutdown(queue_t q);
//	bool    is_empty(queue_t q);
//	bool    is_shutdown(queue_t q);
//
// queue_t is an opaque uintptr_t handle. Data pointers stay owned by the
// caller; the queue stores them as given and never dereferences them.
package main

func main() {}
