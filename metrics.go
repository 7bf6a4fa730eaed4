package untyped

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives per-operation allocator metrics from a Tracking
// allocator. Implement this interface to integrate with monitoring systems
// like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    allocCounter   prometheus.Counter
//	    allocHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAllocate(size int, duration time.Duration, err error) {
//	    p.allocCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordAllocate is called after each allocation.
	// size is the requested size, err is nil if successful.
	RecordAllocate(size int, duration time.Duration, err error)

	// RecordDeallocate is called after each release.
	RecordDeallocate(size int)

	// RecordGrow is called after each grow, successful or not.
	RecordGrow(oldSize, newSize int, duration time.Duration, err error)

	// RecordShrink is called after each shrink, successful or not.
	RecordShrink(oldSize, newSize int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordDeallocate(int)                        {}
func (NoopMetricsCollector) RecordGrow(int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordShrink(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocateCount      atomic.Int64
	AllocateErrors     atomic.Int64
	AllocateTotalNanos atomic.Int64
	BytesAllocated     atomic.Int64
	DeallocateCount    atomic.Int64
	BytesDeallocated   atomic.Int64
	GrowCount          atomic.Int64
	GrowErrors         atomic.Int64
	ShrinkCount        atomic.Int64
	ShrinkErrors       atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(size int, duration time.Duration, err error) {
	b.AllocateCount.Add(1)
	b.AllocateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllocateErrors.Add(1)
		return
	}
	b.BytesAllocated.Add(int64(size))
}

// RecordDeallocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDeallocate(size int) {
	b.DeallocateCount.Add(1)
	b.BytesDeallocated.Add(int64(size))
}

// RecordGrow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrow(oldSize, newSize int, _ time.Duration, err error) {
	b.GrowCount.Add(1)
	if err != nil {
		b.GrowErrors.Add(1)
		return
	}
	b.BytesAllocated.Add(int64(newSize - oldSize))
}

// RecordShrink implements MetricsCollector.
func (b *BasicMetricsCollector) RecordShrink(oldSize, newSize int, _ time.Duration, err error) {
	b.ShrinkCount.Add(1)
	if err != nil {
		b.ShrinkErrors.Add(1)
		return
	}
	b.BytesDeallocated.Add(int64(oldSize - newSize))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount:    b.AllocateCount.Load(),
		AllocateErrors:   b.AllocateErrors.Load(),
		AllocateAvgNanos: b.getAvgAllocateNanos(),
		BytesAllocated:   b.BytesAllocated.Load(),
		DeallocateCount:  b.DeallocateCount.Load(),
		BytesDeallocated: b.BytesDeallocated.Load(),
		GrowCount:        b.GrowCount.Load(),
		GrowErrors:       b.GrowErrors.Load(),
		ShrinkCount:      b.ShrinkCount.Load(),
		ShrinkErrors:     b.ShrinkErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAllocateNanos() int64 {
	count := b.AllocateCount.Load()
	if count == 0 {
		return 0
	}
	return b.AllocateTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount    int64
	AllocateErrors   int64
	AllocateAvgNanos int64
	BytesAllocated   int64
	DeallocateCount  int64
	BytesDeallocated int64
	GrowCount        int64
	GrowErrors       int64
	ShrinkCount      int64
	ShrinkErrors     int64
}

// BytesOutstanding returns the requested bytes that have not been released.
func (s BasicMetricsStats) BytesOutstanding() int64 {
	return s.BytesAllocated - s.BytesDeallocated
}
