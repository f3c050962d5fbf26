package stackalloc

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"
)

// Heap is the allocator of last resort. Every request goes to the Platform;
// failures are reported as errors rather than nil blocks. Heap keeps no
// state of its own.
//
// Element types holding Go pointers get blocks from the Go runtime so the
// garbage collector can see them. The Platform still enforces its limit on
// them and counts them.
type Heap[T any] struct {
	platform *Platform
	layout   layout
}

// NewHeap creates a Heap drawing from p, or from DefaultPlatform if p is nil.
func NewHeap[T any](p *Platform) *Heap[T] {
	if p == nil {
		p = defaultPlatform
	}
	return &Heap[T]{platform: p, layout: layoutOf[T]()}
}

// RebindHeap returns a Heap for U sharing h's platform.
func RebindHeap[U, T any](h *Heap[T]) *Heap[U] {
	return NewHeap[U](h.platform)
}

// Platform returns the platform h allocates from.
func (h *Heap[T]) Platform() *Platform {
	return h.platform
}

// Allocate returns a block of n elements. Blocks of pointer-free types are
// uninitialized.
func (h *Heap[T]) Allocate(n int) ([]T, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidCount, "heap allocate %d elements", n)
	}
	if n == 0 {
		return nil, nil
	}
	if h.layout.size == 0 {
		return make([]T, n), nil
	}

	// Check before the product is trusted.
	if uintptr(n) > uintptr(math.MaxInt)/h.layout.size {
		return nil, errors.Wrapf(ErrSizeOverflow, "heap allocate %d elements of %d bytes", n, h.layout.size)
	}
	size := n * int(h.layout.size)

	if h.layout.pointers {
		var block []T
		err := h.platform.acquire(size, func() (uintptr, error) {
			block = make([]T, n)
			return addr(block), nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "heap allocate %d elements", n)
		}
		return block, nil
	}

	b, err := h.platform.Malloc(size)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}

// Deallocate releases block. n is not needed: the platform knows the size of
// every block it handed out. A rejected free shows up in the platform's
// FreeFailures; call Release to get the error.
func (h *Heap[T]) Deallocate(block []T, _ int) {
	_ = h.Release(block)
}

// Release is Deallocate reporting why a block could not be freed, such as a
// block freed twice or one the heap never allocated.
func (h *Heap[T]) Release(block []T) error {
	if len(block) == 0 || h.layout.size == 0 {
		return nil
	}
	if h.layout.pointers {
		return errors.Wrap(h.platform.release(addr(block), nil), "heap release")
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(block))), len(block)*int(h.layout.size))
	return errors.Wrap(h.platform.Free(b), "heap release")
}

// MaxSize returns the largest element count whose byte size is representable.
func (h *Heap[T]) MaxSize() int {
	return h.layout.maxCount(math.MaxInt)
}
