package stackalloc

import (
	"math"
	"reflect"
	"unsafe"
)

// Allocator hands out blocks of n elements of T and takes them back.
//
// Allocate(0) returns (nil, nil). A block must be returned to the allocator
// that produced it with the same count it was requested with.
type Allocator[T any] interface {
	Allocate(n int) ([]T, error)
	Deallocate(block []T, n int)
	MaxSize() int
}

// Owner reports whether a block lies inside memory it manages.
type Owner[T any] interface {
	Owns(block []T) bool
}

// OwningAllocator is an Allocator that can answer ownership queries. Only
// owning allocators can be used as the primary of a Fallback.
type OwningAllocator[T any] interface {
	Allocator[T]
	Owner[T]
}

// layout describes the size and alignment of T.
type layout struct {
	size  uintptr
	align uintptr
	// pointers is set when T holds values the garbage collector must see.
	pointers bool
}

func layoutOf[T any]() layout {
	var zero T
	return layout{
		size:     unsafe.Sizeof(zero),
		align:    unsafe.Alignof(zero),
		pointers: hasPointers(reflect.TypeFor[T]()),
	}
}

// hasPointers reports whether a value of type t can hold a Go pointer.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.Slice, reflect.String:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// bytes returns n*size rounded up to align. ok is false if the result does
// not fit in an int.
func (l layout) bytes(n int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	if l.size == 0 {
		return 0, true
	}
	if uintptr(n) > uintptr(math.MaxInt)/l.size {
		return 0, false
	}
	raw := uintptr(n) * l.size
	mask := l.align - 1
	if raw > uintptr(math.MaxInt)-mask {
		return 0, false
	}
	return int((raw + mask) &^ mask), true
}

// maxCount is the largest element count whose byte size fits in limit.
func (l layout) maxCount(limit int) int {
	if l.size == 0 {
		return math.MaxInt
	}
	return int(uintptr(limit) / l.size)
}

// addr returns the address of the first element of block, or 0 for a nil
// block.
func addr[T any](block []T) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(block)))
}
