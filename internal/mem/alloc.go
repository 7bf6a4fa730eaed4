// Package mem provides memory allocation utilities.
package mem

import (
	"unsafe"
)

// MaxAlloc is the largest request AllocAligned will pass to the Go heap:
// 1 GiB on 64-bit platforms, 256 MiB on 32-bit ones. The runtime aborts the
// process when it cannot grow the heap, so callers must serve larger
// requests from memory whose exhaustion is reported as an error.
const MaxAlloc = 1 << (28 + 2*(^uint(0)>>63))

// AllocAligned allocates a zeroed byte slice of the given size whose first
// byte sits at an address divisible by align. align must be a power of two.
//
// Note: This function allocates up to align-1 bytes more than requested to
// ensure alignment. The underlying array is kept alive by any pointer into
// the returned slice.
//
// It returns nil when size is not positive or the padded request exceeds
// MaxAlloc.
func AllocAligned(size, align int) []byte {
	if align <= 0 || align&(align-1) != 0 {
		panic("mem: alignment must be a power of two")
	}
	if size <= 0 || size > MaxAlloc || align > MaxAlloc-size {
		return nil
	}

	if align == 1 {
		return make([]byte, size)
	}

	// Allocate size + alignment - 1 to ensure we can find an aligned offset.
	buf := make([]byte, size+align-1)

	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	offset := Padding(uintptr(ptr), align)

	return buf[offset : offset+size : offset+size]
}

// Padding returns the number of bytes needed to move addr up to the next
// multiple of align.
func Padding(addr uintptr, align int) int {
	mask := uintptr(align - 1)
	return int((uintptr(align) - (addr & mask)) & mask)
}

// IsAligned reports whether ptr is a multiple of align.
func IsAligned(ptr unsafe.Pointer, align int) bool {
	return uintptr(ptr)&uintptr(align-1) == 0
}

// Clear zeroes n bytes starting at ptr.
func Clear(ptr unsafe.Pointer, n int) {
	if n <= 0 {
		return
	}
	clear(unsafe.Slice((*byte)(ptr), n))
}

// Copy copies n bytes from src to dst. The regions may overlap.
func Copy(dst, src unsafe.Pointer, n int) {
	if n <= 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
