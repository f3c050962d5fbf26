package stackalloc

import "unsafe"

// DefaultArenaSize is the arena capacity used when none is configured (1 KiB).
const DefaultArenaSize = 1 << 10

// Arena is a fixed-capacity bump allocator for elements of type T.
//
// Blocks are carved from a single buffer by advancing a cursor. Only the most
// recently allocated block can be given back; deallocating anything else is a
// no-op and the space stays used until the arena is discarded. Arena is not
// goroutine-safe. Use Locked for concurrent access.
type Arena[T any] struct {
	buf    []byte
	cur    int // offset of the next free byte
	layout layout
}

// NewArena creates an Arena with a buffer of size bytes.
// If size <= 0, DefaultArenaSize is used.
func NewArena[T any](size int) *Arena[T] {
	if size <= 0 {
		size = DefaultArenaSize
	}
	l := layoutOf[T]()
	return &Arena[T]{
		buf:    buffer[T](size, l),
		layout: l,
	}
}

// RebindArena returns an empty arena for U with the same capacity as a.
// The contents of a are not shared.
func RebindArena[U, T any](a *Arena[T]) *Arena[U] {
	return NewArena[U](len(a.buf))
}

// Allocate returns a block of n elements taken from the arena, or nil if the
// remaining contiguous space cannot hold it. Exhaustion is never an error.
func (a *Arena[T]) Allocate(n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	if a.layout.size == 0 {
		return make([]T, n), nil
	}

	size, ok := a.layout.bytes(n)
	if !ok || len(a.buf)-a.cur < size {
		return nil, nil
	}

	p := unsafe.Pointer(&a.buf[a.cur])
	// Advance by bytes, not by element count.
	a.cur += size
	return unsafe.Slice((*T)(p), n), nil
}

// Deallocate rewinds the cursor if block is the most recent live allocation.
// Any other block is ignored.
func (a *Arena[T]) Deallocate(block []T, n int) {
	if n <= 0 || !a.Owns(block) {
		return
	}
	size, ok := a.layout.bytes(n)
	if !ok {
		return
	}
	start := int(addr(block) - a.base())
	if start+size != a.cur {
		return
	}
	if a.layout.pointers {
		// Drop references so released space does not keep values alive.
		clear(unsafe.Slice(unsafe.SliceData(block), n))
	}
	a.cur = start
}

// Owns reports whether block starts inside the arena's buffer. This is a
// range check only: a block that was already released still reports true.
func (a *Arena[T]) Owns(block []T) bool {
	p := addr(block)
	if p == 0 {
		return false
	}
	base := a.base()
	return p >= base && p < base+uintptr(len(a.buf))
}

// MaxSize returns how many elements fit in an empty arena.
func (a *Arena[T]) MaxSize() int {
	return a.layout.maxCount(len(a.buf))
}

func (a *Arena[T]) base() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(a.buf)))
}

// buffer returns size bytes backed by an array of T. The array is aligned for
// T and typed, so the garbage collector scans pointers stored in blocks.
// Blocks start at multiples of the element size and line up with its slots.
func buffer[T any](size int, l layout) []byte {
	if l.size == 0 {
		return make([]byte, size)
	}
	elems := make([]T, (uintptr(size)+l.size-1)/l.size)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(elems))), size)
}
