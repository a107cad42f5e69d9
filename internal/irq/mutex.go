// Package irq provides the critical section used between interrupt handlers
// and mainline code.
package irq

import "sync"

// Mutex owns a value that is shared with an interrupt handler. The value is
// only reachable inside With, which holds the section for the whole callback.
//
// Sections are not reentrant: fn must not call With on the same Mutex.
// Nesting two different Mutexes is allowed as long as every caller nests them
// in the same order.
type Mutex[T any] struct {
	mu sync.Mutex
	v  T
}

// NewMutex wraps v. T is usually a pointer to the guarded state.
func NewMutex[T any](v T) *Mutex[T] {
	return &Mutex[T]{v: v}
}

// With runs fn with exclusive access to the guarded value.
func (m *Mutex[T]) With(fn func(v T)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.v)
}
