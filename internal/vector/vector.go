// Package vector is a growable sequence whose storage comes from a
// stackalloc.Allocator.
package vector

import (
	"github.com/pkg/errors"

	"github.com/pavanmanishd/stackalloc"
)

// ErrTooLarge is returned when a requested length exceeds the allocator's
// MaxSize.
var ErrTooLarge = errors.New("vector: length exceeds allocator max size")

// ErrExhausted is returned when the allocator yields no block without
// reporting an error, which only happens for allocators that soft-fail.
var ErrExhausted = errors.New("vector: allocator exhausted")

// Vector is a growable sequence of T. It is not goroutine-safe.
type Vector[T any] struct {
	alloc stackalloc.Allocator[T]
	data  []T // len(data) is the capacity
	n     int
}

// New returns an empty vector drawing storage from a.
func New[T any](a stackalloc.Allocator[T]) *Vector[T] {
	return &Vector[T]{alloc: a}
}

// Len returns the number of elements.
func (v *Vector[T]) Len() int { return v.n }
// Cap returns the number of elements the storage can hold.
func (v *Vector[T]) Cap() int { return len(v.data) }

// At returns the element at i. It panics if i is out of range.
func (v *Vector[T]) At(i int) T {
	return v.data[:v.n][i]
}

// Set stores x at i. It panics if i is out of range.
func (v *Vector[T]) Set(i int, x T) {
	v.data[:v.n][i] = x
}

// Slice returns the elements. The slice is invalidated by any call that
// grows the vector and by Release.
func (v *Vector[T]) Slice() []T {
	return v.data[:v.n]
}

// Append adds x to the end of the vector.
func (v *Vector[T]) Append(x T) error {
	if v.n == len(v.data) {
		if err := v.Reserve(max(2*len(v.data), 1)); err != nil {
			return err
		}
	}
	v.data[v.n] = x
	v.n++
	return nil
}

// Resize sets the length to n. New elements are zeroed.
func (v *Vector[T]) Resize(n int) error {
	if n < 0 {
		return errors.Errorf("vector: negative length %d", n)
	}
	if err := v.Reserve(n); err != nil {
		return err
	}
	if n > v.n {
		clear(v.data[v.n:n])
	}
	v.n = n
	return nil
}

// Reserve makes room for at least n elements without changing the length.
func (v *Vector[T]) Reserve(n int) error {
	if n <= len(v.data) {
		return nil
	}
	if n > v.alloc.MaxSize() {
		return errors.Wrapf(ErrTooLarge, "reserve %d", n)
	}

	data, err := v.alloc.Allocate(n)
	if err != nil {
		return errors.Wrapf(err, "vector: reserve %d", n)
	}
	if data == nil {
		return errors.Wrapf(ErrExhausted, "reserve %d", n)
	}
	copy(data, v.data[:v.n])
	v.free()
	v.data = data
	return nil
}

// Release gives the storage back to the allocator and empties the vector.
func (v *Vector[T]) Release() {
	v.free()
	v.data = nil
	v.n = 0
}

func (v *Vector[T]) free() {
	if len(v.data) > 0 {
		v.alloc.Deallocate(v.data, len(v.data))
	}
}
