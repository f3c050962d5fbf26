// Package stackalloc composes a fixed-capacity arena with a heap allocator.
//
// # Overview
//
// A Fallback allocator tries a primary allocator first and defers to a
// secondary one when the primary is exhausted. The canonical composition,
// StackFallback, puts a bump-pointer Arena in front of a Heap:
//
//   - Arena: a fixed buffer and a cursor. Allocation advances the cursor;
//     only the most recent block can be given back (LIFO reclaim).
//   - Heap: malloc/free outside the Go heap. Never runs out silently: it
//     reports ErrOutOfMemory or ErrSizeOverflow.
//   - Fallback: routes deallocations by asking the primary whether it owns
//     the block, which for an Arena is a plain address range check.
//
// # Basic Usage
//
//	a := stackalloc.NewStackFallback[int32](1024, nil)
//
//	small, _ := a.Allocate(20)   // 80 bytes from the arena
//	large, err := a.Allocate(1000) // does not fit, served by the heap
//	if err != nil {
//		return err
//	}
//
//	a.Deallocate(large, 1000)
//	a.Deallocate(small, 20)
//
// # Contract
//
// Every allocator implements Allocator: Allocate(n), Deallocate(block, n)
// and MaxSize(). Blocks must be returned with the count they were requested
// with. Allocate(0) returns a nil block. Arena and Fallback also implement
// Owner. Rebind produces an equivalent allocator for another element type
// with a fresh arena.
//
// # Thread Safety
//
// Arena and Fallback are single-owner. Wrap them in Locked to share one
// between goroutines. The Platform behind every Heap serializes its own
// calls.
//
// # Memory
//
// Arena buffers are arrays of the element type, so pointers stored in them are
// seen by the garbage collector. Heap blocks of pointer-free element types
// live outside the Go heap; element types holding pointers get heap blocks
// from the Go runtime instead, still counted against the platform limit.
package stackalloc
