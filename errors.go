package stackalloc

import "github.com/pkg/errors"

var (
	// ErrOutOfMemory is returned when the platform allocator cannot satisfy a
	// request or the request would exceed the configured heap limit.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrSizeOverflow is returned when count*sizeof(T) does not fit in an int.
	ErrSizeOverflow = errors.New("allocation size overflows")

	// ErrInvalidCount is returned for negative element counts.
	ErrInvalidCount = errors.New("invalid element count")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid config")
)
