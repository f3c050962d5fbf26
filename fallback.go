package stackalloc

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Fallback tries its primary allocator first and turns to the secondary when
// the primary cannot satisfy a request. Deallocation is routed by asking the
// primary whether it owns the block; Fallback keeps no per-block state.
//
// Fallback is itself an OwningAllocator, so fallbacks can be chained.
type Fallback[T any, P OwningAllocator[T], S Allocator[T]] struct {
	primary   P
	secondary S
	layout    layout

	logger  log.Logger
	metrics *Metrics
}

// releaser is implemented by allocators whose deallocation can fail, such as
// Heap.
type releaser[T any] interface {
	Release(block []T) error
}

// StackFallback is an arena backed by the heap.
type StackFallback[T any] = Fallback[T, *Arena[T], *Heap[T]]

// Option configures a Fallback.
type Option func(*options)

type options struct {
	logger  log.Logger
	metrics *Metrics
}

// WithLogger sets the logger used to report exhaustion and failures.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics updated by the allocator.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// NewFallback composes primary and secondary.
func NewFallback[T any, P OwningAllocator[T], S Allocator[T]](primary P, secondary S, opts ...Option) *Fallback[T, P, S] {
	o := options{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Fallback[T, P, S]{
		primary:   primary,
		secondary: secondary,
		layout:    layoutOf[T](),
		logger:    o.logger,
		metrics:   o.metrics,
	}
}

// NewStackFallback creates an arena of arenaSize bytes that overflows to a
// heap drawing from platform (DefaultPlatform if nil).
func NewStackFallback[T any](arenaSize int, platform *Platform, opts ...Option) *StackFallback[T] {
	return NewFallback[T](NewArena[T](arenaSize), NewHeap[T](platform), opts...)
}

// NewFromConfig validates cfg and builds a StackFallback from it.
func NewFromConfig[T any](cfg Config, opts ...Option) (*StackFallback[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var platform *Platform
	if cfg.HeapLimit > 0 {
		platform = NewPlatform(int(cfg.HeapLimit))
	}
	return NewStackFallback[T](int(cfg.ArenaSize), platform, opts...), nil
}

// Rebind returns an allocator of the same shape for U: an empty arena of the
// same capacity, a heap on the same platform, and the same logger and
// metrics. Arena contents are never shared.
func Rebind[U, T any](f *StackFallback[T]) *StackFallback[U] {
	return NewFallback[U](
		RebindArena[U](f.primary),
		RebindHeap[U](f.secondary),
		WithLogger(f.logger),
		WithMetrics(f.metrics),
	)
}

// Primary returns the primary allocator.
func (f *Fallback[T, P, S]) Primary() P {
	return f.primary
}

// Secondary returns the secondary allocator.
func (f *Fallback[T, P, S]) Secondary() S {
	return f.secondary
}

// Allocate returns a block of n elements from the primary allocator, or from
// the secondary if the primary is exhausted. Errors come from the secondary.
func (f *Fallback[T, P, S]) Allocate(n int) ([]T, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidCount, "allocate %d elements", n)
	}
	if n == 0 {
		return nil, nil
	}

	block, err := f.primary.Allocate(n)
	if err == nil && block != nil {
		f.metrics.allocated(backendPrimary, f.bytes(n))
		return block, nil
	}

	f.metrics.primaryExhausted()
	if err != nil {
		level.Debug(f.logger).Log("msg", "primary allocator failed, using fallback", "count", n, "err", err)
	} else {
		level.Debug(f.logger).Log("msg", "primary allocator exhausted, using fallback", "count", n)
	}

	block, err = f.secondary.Allocate(n)
	if err != nil {
		f.metrics.failed(err)
		level.Warn(f.logger).Log("msg", "fallback allocation failed", "count", n, "err", err)
		return nil, err
	}
	f.metrics.allocated(backendSecondary, f.bytes(n))
	return block, nil
}

// Deallocate returns block to whichever backing allocator owns it. A block
// the secondary refuses to free is logged and counted, never reported.
func (f *Fallback[T, P, S]) Deallocate(block []T, n int) {
	if len(block) == 0 {
		return
	}
	if f.primary.Owns(block) {
		f.primary.Deallocate(block, n)
		f.metrics.deallocated(backendPrimary)
		return
	}

	r, ok := any(f.secondary).(releaser[T])
	if !ok {
		f.secondary.Deallocate(block, n)
		f.metrics.deallocated(backendSecondary)
		return
	}
	if err := r.Release(block); err != nil {
		f.metrics.freeFailed()
		level.Warn(f.logger).Log("msg", "secondary allocator refused to free block", "count", n, "err", err)
		return
	}
	f.metrics.deallocated(backendSecondary)
}

// Owns reports whether either backing allocator owns block. The secondary is
// only asked if it can answer ownership queries.
func (f *Fallback[T, P, S]) Owns(block []T) bool {
	if f.primary.Owns(block) {
		return true
	}
	if o, ok := any(f.secondary).(Owner[T]); ok {
		return o.Owns(block)
	}
	return false
}

// MaxSize returns the larger of the backing allocators' limits.
func (f *Fallback[T, P, S]) MaxSize() int {
	return max(f.primary.MaxSize(), f.secondary.MaxSize())
}

// Equal reports whether blocks allocated by f can be deallocated by other.
// Each Fallback owns a private primary, so that only holds for f itself.
func (f *Fallback[T, P, S]) Equal(other *Fallback[T, P, S]) bool {
	return f == other
}

func (f *Fallback[T, P, S]) bytes(n int) int {
	size, _ := f.layout.bytes(n)
	return size
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSizeOverflow):
		return reasonOverflow
	case errors.Is(err, ErrOutOfMemory):
		return reasonOutOfMemory
	default:
		return reasonOther
	}
}
