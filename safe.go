package stackalloc

import "sync"

// Locked is a mutex-protected wrapper around an Allocator for concurrent
// access. All operations are serialized.
type Locked[T any] struct {
	mu sync.Mutex
	a  Allocator[T]
}

// NewLocked wraps a.
func NewLocked[T any](a Allocator[T]) *Locked[T] {
	return &Locked[T]{a: a}
}

// Allocate calls the wrapped allocator's Allocate under the lock.
func (l *Locked[T]) Allocate(n int) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Allocate(n)
}

// Deallocate calls the wrapped allocator's Deallocate under the lock.
func (l *Locked[T]) Deallocate(block []T, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.a.Deallocate(block, n)
}

// MaxSize returns the wrapped allocator's MaxSize.
func (l *Locked[T]) MaxSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.MaxSize()
}

// Owns delegates to the wrapped allocator, or reports false if it cannot
// answer ownership queries.
func (l *Locked[T]) Owns(block []T) bool {
	o, ok := l.a.(Owner[T])
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return o.Owns(block)
}
