package untyped

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/untyped/internal/mem"
)

// Global allocates from the Go heap. It is the default backend and is safe
// for concurrent use.
//
// Memory is handed out as byte buffers that the garbage collector does not
// scan, so values stored in it must not contain Go pointers. Deallocate only
// drops the reference; the collector reclaims the buffer once no pointer into
// it remains.
//
// Requests larger than the heap bound (1 GiB on 64-bit platforms) are served
// by anonymous mappings instead and unmapped by Deallocate. A failed mapping
// is returned as an error, where a failed heap growth would abort the
// process.
type Global struct{}

var _ ZeroAllocator = Global{}

var (
	globalMapped     = sync.OnceValue(func() *Mmap { return NewMmap() })
	globalMappedLive atomic.Int64
)

// isGlobalMapped reports whether ptr is a large Global allocation.
func isGlobalMapped(ptr unsafe.Pointer) bool {
	return globalMappedLive.Load() > 0 && globalMapped().lookup(ptr) != nil
}

// Allocate implements Allocator. The grant is exactly l.Size() bytes and is
// always zeroed.
func (Global) Allocate(l Layout) (unsafe.Pointer, int, error) {
	if l.size == 0 {
		return Dangling(l.align), 0, nil
	}
	if buf := mem.AllocAligned(l.size, l.align); buf != nil {
		return unsafe.Pointer(unsafe.SliceData(buf)), len(buf), nil
	}

	ptr, _, err := globalMapped().Allocate(l)
	if err != nil {
		return nil, 0, err
	}
	globalMappedLive.Add(1)
	return ptr, l.size, nil
}

// AllocateZeroed implements ZeroAllocator.
func (g Global) AllocateZeroed(l Layout) (unsafe.Pointer, int, error) {
	return g.Allocate(l)
}

// Deallocate implements Allocator. Heap memory is left to the collector.
func (Global) Deallocate(ptr unsafe.Pointer, _ Layout) {
	if globalMappedLive.Load() > 0 && globalMapped().release(ptr) {
		globalMappedLive.Add(-1)
	}
}

// Grow implements Allocator. Heap memory is copied into a fresh buffer;
// mapped memory grows in place while its mapping covers the new size.
func (g Global) Grow(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return g.grow(ptr, oldLayout, newLayout, false)
}

// GrowZeroed implements ZeroAllocator.
func (g Global) GrowZeroed(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return g.grow(ptr, oldLayout, newLayout, true)
}

func (g Global) grow(ptr unsafe.Pointer, oldLayout, newLayout Layout, zeroed bool) (unsafe.Pointer, int, error) {
	if isGlobalMapped(ptr) {
		p, _, err := globalMapped().grow(ptr, oldLayout, newLayout, zeroed)
		if err != nil {
			return nil, 0, err
		}
		return p, newLayout.size, nil
	}

	// Fresh memory is zeroed either way.
	p, n, err := g.Allocate(newLayout)
	if err != nil {
		return nil, 0, err
	}
	mem.Copy(p, ptr, min(oldLayout.size, newLayout.size))
	return p, n, nil
}

// Shrink implements Allocator. Shrinking is done in place.
func (Global) Shrink(ptr unsafe.Pointer, _, newLayout Layout) (unsafe.Pointer, int, error) {
	return ptr, newLayout.size, nil
}

func (Global) String() string { return "Global" }
