package untyped

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/untyped/internal/resource"
)

// ErrMemoryLimitExceeded is wrapped, together with ErrAlloc, by allocation
// errors of a Budget that has run out of room.
var ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

// Budget caps the number of bytes an inner allocator may hand out. It is as
// safe for concurrent use as its inner allocator.
//
// Budget charges exactly the requested sizes and reports them as the grant,
// hiding any slack the inner allocator adds.
type Budget[A Allocator] struct {
	inner A
	ctrl  *resource.Controller
}

var _ ZeroAllocator = (*Budget[Global])(nil)

// NewBudget wraps inner with a limit of limitBytes. A limit of zero or less
// only tracks usage.
func NewBudget[A Allocator](inner A, limitBytes int64) *Budget[A] {
	return &Budget[A]{
		inner: inner,
		ctrl:  resource.NewController(resource.Config{MemoryLimitBytes: limitBytes}),
	}
}

func (b *Budget[A]) acquire(n int) error {
	if err := b.ctrl.AcquireMemory(int64(n)); err != nil {
		return fmt.Errorf("%w: %w: %d bytes requested, %d of %d in use",
			ErrAlloc, err, n, b.ctrl.MemoryUsage(), b.ctrl.MemoryLimit())
	}
	return nil
}

// Allocate implements Allocator.
func (b *Budget[A]) Allocate(l Layout) (unsafe.Pointer, int, error) {
	return b.allocate(l, false)
}

// AllocateZeroed implements ZeroAllocator.
func (b *Budget[A]) AllocateZeroed(l Layout) (unsafe.Pointer, int, error) {
	return b.allocate(l, true)
}

func (b *Budget[A]) allocate(l Layout, zeroed bool) (unsafe.Pointer, int, error) {
	if err := b.acquire(l.size); err != nil {
		return nil, 0, err
	}

	var (
		ptr unsafe.Pointer
		err error
	)
	if zeroed {
		ptr, _, err = backendAllocateZeroed(b.inner, l)
	} else {
		ptr, _, err = b.inner.Allocate(l)
	}
	if err != nil {
		b.ctrl.ReleaseMemory(int64(l.size))
		return nil, 0, err
	}
	return ptr, l.size, nil
}

// Deallocate implements Allocator.
func (b *Budget[A]) Deallocate(ptr unsafe.Pointer, l Layout) {
	b.inner.Deallocate(ptr, l)
	b.ctrl.ReleaseMemory(int64(l.size))
}

// Grow implements Allocator.
func (b *Budget[A]) Grow(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return b.grow(ptr, oldLayout, newLayout, false)
}

// GrowZeroed implements ZeroAllocator.
func (b *Budget[A]) GrowZeroed(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return b.grow(ptr, oldLayout, newLayout, true)
}

func (b *Budget[A]) grow(ptr unsafe.Pointer, oldLayout, newLayout Layout, zeroed bool) (unsafe.Pointer, int, error) {
	delta := newLayout.size - oldLayout.size
	if err := b.acquire(delta); err != nil {
		return nil, 0, err
	}

	var (
		p   unsafe.Pointer
		err error
	)
	if zeroed {
		p, _, err = backendGrowZeroed(b.inner, ptr, oldLayout, newLayout)
	} else {
		p, _, err = b.inner.Grow(ptr, oldLayout, newLayout)
	}
	if err != nil {
		b.ctrl.ReleaseMemory(int64(delta))
		return nil, 0, err
	}
	return p, newLayout.size, nil
}

// Shrink implements Allocator.
func (b *Budget[A]) Shrink(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	p, _, err := b.inner.Shrink(ptr, oldLayout, newLayout)
	if err != nil {
		return nil, 0, err
	}
	b.ctrl.ReleaseMemory(int64(oldLayout.size - newLayout.size))
	return p, newLayout.size, nil
}

// InUse returns the number of bytes currently charged.
func (b *Budget[A]) InUse() int64 { return b.ctrl.MemoryUsage() }

// Peak returns the highest number of bytes charged at once.
func (b *Budget[A]) Peak() int64 { return b.ctrl.MemoryPeak() }

// Limit returns the configured limit, or zero when unlimited.
func (b *Budget[A]) Limit() int64 { return b.ctrl.MemoryLimit() }

// Inner returns the wrapped allocator.
func (b *Budget[A]) Inner() A { return b.inner }

func (b *Budget[A]) String() string {
	return fmt.Sprintf("Budget{in use: %d, limit: %d}", b.InUse(), b.Limit())
}
