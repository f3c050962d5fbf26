package stackalloc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SizeInUse returns the number of bytes between the start of the buffer and
// the cursor. Blocks leaked by out-of-order deallocation are included.
func (a *Arena[T]) SizeInUse() int {
	return a.cur
}

// Available returns the number of contiguous free bytes after the cursor.
func (a *Arena[T]) Available() int {
	return len(a.buf) - a.cur
}

// Capacity returns the size of the arena's buffer in bytes.
func (a *Arena[T]) Capacity() int {
	return len(a.buf)
}

// Utilization returns the ratio of bytes in use to capacity (0.0 to 1.0).
func (a *Arena[T]) Utilization() float64 {
	if len(a.buf) == 0 {
		return 0
	}
	return float64(a.cur) / float64(len(a.buf))
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena[T]) Metrics() ArenaMetrics {
	return ArenaMetrics{
		SizeInUse:   a.SizeInUse(),
		Available:   a.Available(),
		Capacity:    a.Capacity(),
		ElementSize: int(a.layout.size),
		MaxSize:     a.MaxSize(),
		Utilization: a.Utilization(),
	}
}

// ArenaMetrics contains statistical information about an arena.
type ArenaMetrics struct {
	SizeInUse   int     // Bytes below the cursor
	Available   int     // Bytes above the cursor
	Capacity    int     // Buffer size in bytes
	ElementSize int     // sizeof(T)
	MaxSize     int     // Elements that fit in an empty arena
	Utilization float64 // Ratio of used to total capacity (0.0-1.0)
}

const (
	backendPrimary   = "primary"
	backendSecondary = "secondary"

	reasonOverflow    = "overflow"
	reasonOutOfMemory = "out_of_memory"
	reasonOther       = "other"
)

// Metrics holds the Prometheus collectors updated by Fallback allocators.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	allocations    *prometheus.CounterVec
	allocatedBytes *prometheus.CounterVec
	deallocations  *prometheus.CounterVec
	exhausted      prometheus.Counter
	failures       *prometheus.CounterVec
	freeFailures   prometheus.Counter
}

// NewMetrics creates the allocator metrics and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		allocations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "stackalloc_allocations_total",
			Help: "Total number of blocks handed out, by backing allocator.",
		}, []string{"backend"}),
		allocatedBytes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "stackalloc_allocated_bytes_total",
			Help: "Total number of bytes requested, by backing allocator.",
		}, []string{"backend"}),
		deallocations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "stackalloc_deallocations_total",
			Help: "Total number of blocks returned, by backing allocator they were routed to.",
		}, []string{"backend"}),
		exhausted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "stackalloc_primary_exhausted_total",
			Help: "Total number of requests the primary allocator could not satisfy.",
		}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "stackalloc_allocation_failures_total",
			Help: "Total number of requests neither backing allocator could satisfy.",
		}, []string{"reason"}),
		freeFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "stackalloc_free_failures_total",
			Help: "Total number of blocks the secondary allocator refused to free.",
		}),
	}
}

func (m *Metrics) allocated(backend string, bytes int) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(backend).Inc()
	m.allocatedBytes.WithLabelValues(backend).Add(float64(bytes))
}

func (m *Metrics) deallocated(backend string) {
	if m == nil {
		return
	}
	m.deallocations.WithLabelValues(backend).Inc()
}

func (m *Metrics) primaryExhausted() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}

func (m *Metrics) failed(err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(failureReason(err)).Inc()
}

func (m *Metrics) freeFailed() {
	if m == nil {
		return
	}
	m.freeFailures.Inc()
}
