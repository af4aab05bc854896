//go:build cgo

package main

/*
#include <stdbool.h>
#include <stdint.h>

typedef uintptr_t queue_t;

static inline void* word_to_ptr(uintptr_t w) { return (void*)w; }
*/
import "C"

import "unsafe"

//export queue_init
func queue_init(capacity C.int) C.queue_t {
	return C.queue_t(initQueue(int(capacity)))
}

//export queue_destroy
func queue_destroy(q C.queue_t) {
	destroyQueue(uintptr(q))
}

// data is a caller-owned C pointer. It is stored as a word and never
// dereferenced.
//
//export enqueue
func enqueue(q C.queue_t, data unsafe.Pointer) C.int {
	return C.int(enqueueWord(uintptr(q), uintptr(data)))
}

//export dequeue
func dequeue(q C.queue_t) unsafe.Pointer {
	return C.word_to_ptr(C.uintptr_t(dequeueWord(uintptr(q))))
}

//export queue_shutdown
func queue_shutdown(q C.queue_t) {
	shutdownQueue(uintptr(q))
}

//export is_empty
func is_empty(q C.queue_t) C.bool {
	return C.bool(queueIsEmpty(uintptr(q)))
}

//export is_shutdown
func is_shutdown(q C.queue_t) C.bool {
	return C.bool(queueIsShutdown(uintptr(q)))
}
