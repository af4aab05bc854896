// Package capi backs the C export layer with opaque handles. Foreign callers
// never see a Go pointer: they hold a Handle and every call resolves it
// through a Registry. Items are uintptr-sized words (typically C pointers the
// caller owns); the queue stores and returns them untouched.
package capi

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/i5heu/GoBoundedQueue/pkg/boundedqueue"
)

// ErrUnknownHandle is returned for zero, destroyed or never-issued handles.
var ErrUnknownHandle = errors.New("capi: unknown queue handle")

// Handle identifies a queue owned by a Registry. Zero is never issued.
type Handle uintptr

type Registry struct {
	next   atomic.Uintptr
	queues sync.Map // Handle -> *boundedqueue.Queue[uintptr]
}

// Default is the registry used by the exported C functions.
var Default = &Registry{}

// Create makes a queue and returns its handle.
func (r *Registry) Create(capacity int) (Handle, error) {
	q, err := boundedqueue.New[uintptr](capacity)
	if err != nil {
		return 0, err
	}
	h := Handle(r.next.Add(1))
	r.queues.Store(h, q)
	return h, nil
}

func (r *Registry) lookup(h Handle) (*boundedqueue.Queue[uintptr], error) {
	v, ok := r.queues.Load(h)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	return v.(*boundedqueue.Queue[uintptr]), nil
}

// Destroy closes the queue, waking anyone blocked on it, and forgets the handle.
// Callers still parked inside Put or Take return ErrClosed or ErrEmpty.
func (r *Registry) Destroy(h Handle) error {
	v, ok := r.queues.LoadAndDelete(h)
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	v.(*boundedqueue.Queue[uintptr]).Close()
	return nil
}

func (r *Registry) Put(h Handle, item uintptr) error {
	q, err := r.lookup(h)
	if err != nil {
		return err
	}
	return q.Put(item)
}

func (r *Registry) Take(h Handle) (uintptr, error) {
	q, err := r.lookup(h)
	if err != nil {
		return 0, err
	}
	return q.Take()
}

func (r *Registry) Close(h Handle) error {
	q, err := r.lookup(h)
	if err != nil {
		return err
	}
	q.Close()
	return nil
}

// IsEmpty reports true for unknown handles, matching a queue with nothing to give.
func (r *Registry) IsEmpty(h Handle) bool {
	q, err := r.lookup(h)
	if err != nil {
		return true
	}
	return q.IsEmpty()
}

// IsClosed reports true for unknown handles.
func (r *Registry) IsClosed(h Handle) bool {
	q, err := r.lookup(h)
	if err != nil {
		return true
	}
	return q.IsClosed()
}
