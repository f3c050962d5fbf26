package stackalloc

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"modernc.org/memory"
)

// defaultPlatform backs every Heap created without an explicit Platform.
var defaultPlatform = NewPlatform(0)

// DefaultPlatform returns the process-wide platform allocator.
func DefaultPlatform() *Platform {
	return defaultPlatform
}

// Platform is a malloc/free style allocator drawing memory from the operating
// system outside the Go heap. Calls are serialized, so independent callers
// may share one Platform.
//
// Memory handed out by Malloc is not scanned by the garbage collector. Heaps
// of element types holding pointers take their blocks from the Go runtime
// instead and only use the Platform for accounting.
type Platform struct {
	mu     sync.Mutex
	alloc  memory.Allocator
	limit  int64
	blocks map[uintptr]int // size of every live block by address

	inUse        atomic.Int64
	live         atomic.Int64
	freeFailures atomic.Int64
}

// NewPlatform creates a Platform that refuses to keep more than limit bytes
// allocated at once. A limit <= 0 means unlimited.
func NewPlatform(limit int) *Platform {
	return &Platform{
		limit:  int64(limit),
		blocks: make(map[uintptr]int),
	}
}

// Malloc returns an uninitialized block of size bytes.
func (p *Platform) Malloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.Wrapf(ErrInvalidCount, "malloc %d bytes", size)
	}
	if size == 0 {
		return nil, nil
	}

	var b []byte
	err := p.acquire(size, func() (uintptr, error) {
		var err error
		if b, err = p.alloc.Malloc(size); err != nil {
			return 0, err
		}
		return uintptr(unsafe.Pointer(unsafe.SliceData(b))), nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "malloc %d bytes", size)
	}
	return b, nil
}

// Free releases a block returned by Malloc. The size released is the one the
// block was allocated with, whatever the length of b. Freeing a block the
// platform does not know, including one already freed, is an error.
func (p *Platform) Free(b []byte) error {
	if cap(b) == 0 {
		return nil
	}
	err := p.release(uintptr(unsafe.Pointer(unsafe.SliceData(b))), func() error {
		return p.alloc.Free(b)
	})
	return errors.Wrap(err, "free")
}

// acquire checks the limit, runs alloc and records the block it returns.
func (p *Platform) acquire(size int, alloc func() (uintptr, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.inUse.Load()+int64(size) > p.limit {
		return errors.Wrapf(ErrOutOfMemory, "heap limit of %d bytes reached", p.limit)
	}
	ptr, err := alloc()
	if err != nil {
		return errors.Wrapf(ErrOutOfMemory, "%v", err)
	}

	// An address still on record belongs to a block dropped without being
	// freed. Only the Go runtime can hand it out again.
	if old, ok := p.blocks[ptr]; ok {
		p.inUse.Sub(int64(old))
		p.live.Dec()
	}
	p.blocks[ptr] = size
	p.inUse.Add(int64(size))
	p.live.Inc()
	return nil
}

// release forgets the block at ptr and runs free, which may be nil.
func (p *Platform) release(ptr uintptr, free func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	size, ok := p.blocks[ptr]
	if !ok {
		p.freeFailures.Inc()
		return errors.Errorf("block %#x is not allocated", ptr)
	}
	if free != nil {
		if err := free(); err != nil {
			p.freeFailures.Inc()
			return err
		}
	}

	delete(p.blocks, ptr)
	p.inUse.Sub(int64(size))
	p.live.Dec()
	return nil
}

// InUse returns the number of bytes currently allocated.
func (p *Platform) InUse() int64 {
	return p.inUse.Load()
}

// Live returns the number of blocks currently allocated.
func (p *Platform) Live() int64 {
	return p.live.Load()
}

// FreeFailures returns how many frees were rejected.
func (p *Platform) FreeFailures() int64 {
	return p.freeFailures.Load()
}

// Limit returns the configured byte limit, 0 if unlimited.
func (p *Platform) Limit() int64 {
	return p.limit
}

// Close returns all memory held by the platform to the operating system.
// Blocks still outstanding become invalid.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.blocks)
	p.inUse.Store(0)
	p.live.Store(0)
	return p.alloc.Close()
}
