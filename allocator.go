package untyped

import (
	"unsafe"

	"github.com/hupe1980/untyped/internal/mem"
)

// Allocator is a pluggable memory backend.
//
// Callers in this package never pass zero-size layouts: zero-size requests
// are answered with Dangling and never released. Grow and Shrink are only
// called with equal old and new alignments; alignment changes are handled
// by allocating, copying and deallocating.
//
// The int returned next to a pointer is the number of usable bytes, which
// may exceed the requested size. Any size between the requested and the
// granted one may later be passed back as the layout of that memory.
//
// Deallocate, Grow and Shrink require ptr to be currently allocated by the
// same allocator with a fitting layout. Violations are not reported.
// On error, Grow and Shrink leave the original memory valid and unchanged.
type Allocator interface {
	Allocate(l Layout) (unsafe.Pointer, int, error)
	Deallocate(ptr unsafe.Pointer, l Layout)
	Grow(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error)
	Shrink(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error)
}

// ZeroAllocator is implemented by backends that can hand out zeroed memory
// more cheaply than clearing it afterwards. Backends without it get their
// fresh bytes cleared by the caller.
type ZeroAllocator interface {
	Allocator
	AllocateZeroed(l Layout) (unsafe.Pointer, int, error)
	GrowZeroed(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error)
}

// danglingMaxAlign is the largest alignment served from danglingArea.
const danglingMaxAlign = 4096

var danglingArea [2 * danglingMaxAlign]byte

// Dangling returns the non-nil pointer that stands for zero bytes of memory
// aligned to align. It must never be dereferenced or deallocated.
func Dangling(align int) unsafe.Pointer {
	if align <= danglingMaxAlign {
		base := unsafe.Pointer(&danglingArea[0])
		return unsafe.Add(base, mem.Padding(uintptr(base), align))
	}
	// Only reachable on 64-bit platforms (see MaxAlign), where neither the
	// Go heap nor mappings are placed this low.
	return unsafe.Pointer(uintptr(align)) //nolint:govet // sentinel address, never dereferenced
}

// IsDangling reports whether ptr is the zero-size sentinel for align.
func IsDangling(ptr unsafe.Pointer, align int) bool {
	return ptr == Dangling(align)
}
