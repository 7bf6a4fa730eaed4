package untyped

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Tracking wraps an allocator and checks the currently-allocated
// precondition of Deallocate, Grow and Shrink. A pointer that is not live is
// logged and then reported by panicking with a *PreconditionError.
//
// Every operation is also forwarded to a MetricsCollector. Tracking is safe
// for concurrent use when its inner allocator is.
type Tracking[A Allocator] struct {
	inner   A
	mu      sync.Mutex
	live    *roaring64.Bitmap
	metrics MetricsCollector
	logger  *Logger
}

var _ ZeroAllocator = (*Tracking[Global])(nil)

// NewTracking wraps inner.
func NewTracking[A Allocator](inner A, optFns ...TrackingOption) *Tracking[A] {
	opts := trackingOptions{
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.logger == nil {
		opts.logger = DefaultLogger()
	}
	return &Tracking[A]{
		inner:   inner,
		live:    roaring64.New(),
		metrics: opts.metrics,
		logger:  opts.logger,
	}
}

func addr(ptr unsafe.Pointer) uint64 {
	return uint64(uintptr(ptr))
}

func (t *Tracking[A]) add(ptr unsafe.Pointer) {
	t.mu.Lock()
	t.live.Add(addr(ptr))
	t.mu.Unlock()
}

// take removes ptr from the live set and reports whether it was there.
func (t *Tracking[A]) take(ptr unsafe.Pointer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live.CheckedRemove(addr(ptr))
}

func (t *Tracking[A]) isLive(ptr unsafe.Pointer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live.Contains(addr(ptr))
}

func (t *Tracking[A]) violation(op string, ptr unsafe.Pointer, l Layout) {
	err := &PreconditionError{Op: op, Ptr: uintptr(ptr), Layout: l}
	t.logger.LogPreconditionViolation(context.Background(), err)
	panic(err)
}

// Allocate implements Allocator.
func (t *Tracking[A]) Allocate(l Layout) (unsafe.Pointer, int, error) {
	start := time.Now()
	ptr, n, err := t.inner.Allocate(l)
	t.metrics.RecordAllocate(l.size, time.Since(start), err)
	if err != nil {
		return nil, 0, err
	}
	t.add(ptr)
	return ptr, n, nil
}

// AllocateZeroed implements ZeroAllocator.
func (t *Tracking[A]) AllocateZeroed(l Layout) (unsafe.Pointer, int, error) {
	start := time.Now()
	ptr, n, err := backendAllocateZeroed(t.inner, l)
	t.metrics.RecordAllocate(l.size, time.Since(start), err)
	if err != nil {
		return nil, 0, err
	}
	t.add(ptr)
	return ptr, n, nil
}

// Deallocate implements Allocator.
func (t *Tracking[A]) Deallocate(ptr unsafe.Pointer, l Layout) {
	if !t.take(ptr) {
		t.violation("deallocate", ptr, l)
	}
	t.inner.Deallocate(ptr, l)
	t.metrics.RecordDeallocate(l.size)
}

// Grow implements Allocator.
func (t *Tracking[A]) Grow(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return t.resize("grow", ptr, oldLayout, newLayout, t.inner.Grow)
}

// GrowZeroed implements ZeroAllocator.
func (t *Tracking[A]) GrowZeroed(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return t.resize("grow", ptr, oldLayout, newLayout, func(p unsafe.Pointer, o, n Layout) (unsafe.Pointer, int, error) {
		return backendGrowZeroed(t.inner, p, o, n)
	})
}

// Shrink implements Allocator.
func (t *Tracking[A]) Shrink(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return t.resize("shrink", ptr, oldLayout, newLayout, t.inner.Shrink)
}

type resizeFunc func(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error)

func (t *Tracking[A]) resize(op string, ptr unsafe.Pointer, oldLayout, newLayout Layout, fn resizeFunc) (unsafe.Pointer, int, error) {
	if !t.isLive(ptr) {
		t.violation(op, ptr, oldLayout)
	}

	start := time.Now()
	p, n, err := fn(ptr, oldLayout, newLayout)
	if op == "shrink" {
		t.metrics.RecordShrink(oldLayout.size, newLayout.size, time.Since(start), err)
	} else {
		t.metrics.RecordGrow(oldLayout.size, newLayout.size, time.Since(start), err)
	}
	if err != nil {
		return nil, 0, err
	}

	t.mu.Lock()
	t.live.Remove(addr(ptr))
	t.live.Add(addr(p))
	t.mu.Unlock()
	return p, n, nil
}

// Live returns the number of outstanding allocations.
func (t *Tracking[A]) Live() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live.GetCardinality()
}

// IsLive reports whether ptr was handed out and not yet released.
func (t *Tracking[A]) IsLive(ptr unsafe.Pointer) bool {
	return t.isLive(ptr)
}

// LiveAddresses returns the addresses of all outstanding allocations in
// ascending order. The set is snapshotted when iteration starts.
func (t *Tracking[A]) LiveAddresses() iter.Seq[uintptr] {
	return func(yield func(uintptr) bool) {
		t.mu.Lock()
		snapshot := t.live.Clone()
		t.mu.Unlock()

		it := snapshot.Iterator()
		for it.HasNext() {
			if !yield(uintptr(it.Next())) {
				return
			}
		}
	}
}

// Inner returns the wrapped allocator.
func (t *Tracking[A]) Inner() A { return t.inner }

func (t *Tracking[A]) String() string {
	return fmt.Sprintf("Tracking{live: %d}", t.Live())
}
