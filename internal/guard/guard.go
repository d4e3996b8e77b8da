// Package guard provides a scoped mutual-exclusion wrapper around a value.
// A caller acquires a handle, dereferences the protected value through it for
// the lifetime of the scope, and releases it on every exit path. Any field
// reachable through a protected value must only be read or written while its
// handle is held.
package guard

import (
	"sync"
)

// Locked wraps a value with a mutex. The zero value is not usable, construct
// with New.
type Locked[T any] struct {
	mu  sync.Mutex
	val T
}

// New creates a Locked wrapper holding val.
func New[T any](val T) *Locked[T] {
	return &Locked[T]{val: val}
}

// Acquire blocks until exclusive access is granted and returns a handle to
// the protected value. The caller must call Release on the handle; use With
// when the access is confined to one function scope.
func (l *Locked[T]) Acquire() *Handle[T] {
	l.mu.Lock()
	return &Handle[T]{locked: l}
}

// With runs fn with exclusive access to the protected value. The lock is
// released when fn returns, including on panic.
func (l *Locked[T]) With(fn func(*T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.val)
}

// Borrow returns the protected value without acquiring the lock. It is the
// documented fast path for call sites inside an already-acquired scope: the
// caller must hold a live Handle from this same Locked, or otherwise have
// proven single ownership for the duration of the borrow. Using Borrow
// anywhere else is a data race.
func (l *Locked[T]) Borrow() *T {
	return &l.val
}

// Handle grants exclusive access to a protected value until released.
// A Handle is used by a single goroutine and is not reentrant.
type Handle[T any] struct {
	locked   *Locked[T]
	released bool
}

// Value returns the protected value. It panics if the handle has been
// released.
func (h *Handle[T]) Value() *T {
	if h.released {
		panic("guard: Value called on released handle")
	}
	return &h.locked.val
}

// Release unlocks the protected value. Further Value calls panic. Release is
// idempotent so it can be deferred alongside an early release.
func (h *Handle[T]) Release() {
	if h.released {
		return
	}
	h.released = true
	h.locked.mu.Unlock()
}
