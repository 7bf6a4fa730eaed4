package untyped

import (
	"unsafe"

	"github.com/hupe1980/untyped/internal/mem"
)

// The functions in this file sit between the Allocation handle and its
// backend. They answer zero-size requests without the backend, route
// alignment changes through allocate-copy-deallocate and turn the backend's
// (pointer, granted length) into a layout that tells the truth about the
// memory.

// matchAllocatedSize keeps the requested alignment and adopts the granted size.
func matchAllocatedSize(ptr unsafe.Pointer, granted int, requested Layout) (unsafe.Pointer, Layout) {
	debugAssert(granted >= requested.size, "allocator granted %d bytes for %v", granted, requested)
	debugAssert(mem.IsAligned(ptr, requested.align), "allocator returned %p for %v", ptr, requested)
	return ptr, Layout{size: granted, align: requested.align}
}

func allocate(a Allocator, l Layout) (unsafe.Pointer, Layout, error) {
	if l.size == 0 {
		return Dangling(l.align), l, nil
	}
	ptr, n, err := a.Allocate(l)
	if err != nil {
		return nil, Layout{}, err
	}
	ptr, actual := matchAllocatedSize(ptr, n, l)
	return ptr, actual, nil
}

func allocateZeroed(a Allocator, l Layout) (unsafe.Pointer, Layout, error) {
	if l.size == 0 {
		return Dangling(l.align), l, nil
	}
	ptr, n, err := backendAllocateZeroed(a, l)
	if err != nil {
		return nil, Layout{}, err
	}
	ptr, actual := matchAllocatedSize(ptr, n, l)
	return ptr, actual, nil
}

func grow(a Allocator, ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, Layout, error) {
	debugAssert(newLayout.size >= oldLayout.size, "grow from %v to smaller %v", oldLayout, newLayout)
	if oldLayout.size == 0 {
		return allocate(a, newLayout)
	}
	if oldLayout.align != newLayout.align {
		return move(a, ptr, oldLayout, newLayout, false)
	}
	p, n, err := a.Grow(ptr, oldLayout, newLayout)
	if err != nil {
		return nil, Layout{}, err
	}
	p, actual := matchAllocatedSize(p, n, newLayout)
	return p, actual, nil
}

func growZeroed(a Allocator, ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, Layout, error) {
	debugAssert(newLayout.size >= oldLayout.size, "grow from %v to smaller %v", oldLayout, newLayout)
	if oldLayout.size == 0 {
		return allocateZeroed(a, newLayout)
	}
	if oldLayout.align != newLayout.align {
		return move(a, ptr, oldLayout, newLayout, true)
	}
	p, n, err := backendGrowZeroed(a, ptr, oldLayout, newLayout)
	if err != nil {
		return nil, Layout{}, err
	}
	p, actual := matchAllocatedSize(p, n, newLayout)
	return p, actual, nil
}

func shrink(a Allocator, ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, Layout, error) {
	debugAssert(newLayout.size <= oldLayout.size, "shrink from %v to larger %v", oldLayout, newLayout)
	if newLayout.size == 0 {
		release(a, ptr, oldLayout)
		return Dangling(newLayout.align), newLayout, nil
	}
	if oldLayout.align != newLayout.align {
		return move(a, ptr, oldLayout, newLayout, false)
	}
	p, n, err := a.Shrink(ptr, oldLayout, newLayout)
	if err != nil {
		return nil, Layout{}, err
	}
	p, actual := matchAllocatedSize(p, n, newLayout)
	return p, actual, nil
}

// move reallocates across an alignment change. The old memory is released
// only after the new memory holds a copy of the overlapping bytes.
func move(a Allocator, ptr unsafe.Pointer, oldLayout, newLayout Layout, zeroed bool) (unsafe.Pointer, Layout, error) {
	var (
		p      unsafe.Pointer
		actual Layout
		err    error
	)
	if zeroed {
		p, actual, err = allocateZeroed(a, newLayout)
	} else {
		p, actual, err = allocate(a, newLayout)
	}
	if err != nil {
		return nil, Layout{}, err
	}
	mem.Copy(p, ptr, min(oldLayout.size, newLayout.size))
	release(a, ptr, oldLayout)
	return p, actual, nil
}

// release never hands zero-size memory to the backend.
func release(a Allocator, ptr unsafe.Pointer, l Layout) {
	if l.size == 0 {
		return
	}
	a.Deallocate(ptr, l)
}

func backendAllocateZeroed(a Allocator, l Layout) (unsafe.Pointer, int, error) {
	if z, ok := a.(ZeroAllocator); ok {
		return z.AllocateZeroed(l)
	}
	ptr, n, err := a.Allocate(l)
	if err != nil {
		return nil, 0, err
	}
	mem.Clear(ptr, n)
	return ptr, n, nil
}

func backendGrowZeroed(a Allocator, ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	if z, ok := a.(ZeroAllocator); ok {
		return z.GrowZeroed(ptr, oldLayout, newLayout)
	}
	p, n, err := a.Grow(ptr, oldLayout, newLayout)
	if err != nil {
		return nil, 0, err
	}
	mem.Clear(unsafe.Add(p, oldLayout.size), n-oldLayout.size)
	return p, n, nil
}
