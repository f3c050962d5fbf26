package stackalloc

import "unsafe"

// New allocates a single zeroed T from a.
func New[T any](a Allocator[T]) (*T, error) {
	block, err := AllocateZeroed(a, 1)
	if err != nil || block == nil {
		return nil, err
	}
	return &block[0], nil
}

// Free returns a value obtained from New to a.
func Free[T any](a Allocator[T], p *T) {
	if p == nil {
		return
	}
	a.Deallocate(unsafe.Slice(p, 1), 1)
}

// AllocateZeroed is Allocate followed by clearing the block. Allocate itself
// returns uninitialized memory.
func AllocateZeroed[T any](a Allocator[T], n int) ([]T, error) {
	block, err := a.Allocate(n)
	if err != nil {
		return nil, err
	}
	clear(block)
	return block, nil
}
