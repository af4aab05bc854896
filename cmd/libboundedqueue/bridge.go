package main

import (
	"github.com/i5heu/GoBoundedQueue/pkg/capi"
)

// The exported C functions only convert types; everything else lives here so
// it builds and tests without cgo.

func initQueue(capacity int) uintptr {
	h, err := capi.Default.Create(capacity)
	if err != nil {
		return 0
	}
	return uintptr(h)
}

func destroyQueue(q uintptr) {
	_ = capi.Default.Destroy(capi.Handle(q))
}

// enqueueWord returns 0 on success and -1 once the queue is shut down or the
// handle is unknown.
func enqueueWord(q, data uintptr) int {
	if err := capi.Default.Put(capi.Handle(q), data); err != nil {
		return -1
	}
	return 0
}

// dequeueWord returns 0 once the queue is shut down and drained.
func dequeueWord(q uintptr) uintptr {
	v, err := capi.Default.Take(capi.Handle(q))
	if err != nil {
		return 0
	}
	return v
}

func shutdownQueue(q uintptr) {
	_ = capi.Default.Close(capi.Handle(q))
}

func queueIsEmpty(q uintptr) bool {
	return capi.Default.IsEmpty(capi.Handle(q))
}

func queueIsShutdown(q uintptr) bool {
	return capi.Default.IsClosed(capi.Handle(q))
}
