package untyped

import (
	"fmt"
	"reflect"
	"runtime"
	"unsafe"
)

// Allocation owns one block of raw memory together with the allocator that
// produced it. It says nothing about what, if anything, is stored in the
// memory.
//
// The layout always describes the memory actually granted by the backend,
// which may be larger than requested but never smaller, with at least the
// requested alignment. The memory is released exactly once: by Free, by
// the cleanup registered with WithCleanup, or by the new owner after
// IntoParts or a typed conversion.
//
// An Allocation is not safe for concurrent mutation. After Free or IntoParts
// every method other than Free and String panics with ErrReleased.
type Allocation[A Allocator] struct {
	ptr      unsafe.Pointer
	layout   Layout
	alloc    A
	released bool

	autoRelease bool
	armed       bool
	cleanup     runtime.Cleanup
}

// New allocates uninitialized memory for l on the Go heap. Failure is
// handed to HandleAllocError.
func New(l Layout, optFns ...Option) *Allocation[Global] {
	return NewIn(l, Global{}, optFns...)
}

// Zeroed is like New but the memory reads as zero.
func Zeroed(l Layout, optFns ...Option) *Allocation[Global] {
	return ZeroedIn(l, Global{}, optFns...)
}

// NewIn allocates uninitialized memory for l from a. Failure is handed to
// HandleAllocError; an invalid layout panics with an error wrapping
// ErrInvalidLayout.
//
// A zero-size layout always succeeds without consulting a; the pointer is
// then Dangling(l.Align()).
func NewIn[A Allocator](l Layout, a A, optFns ...Option) *Allocation[A] {
	mustValid(l)
	h, err := TryNewIn(l, a, optFns...)
	if err != nil {
		HandleAllocError(l)
	}
	return h
}

// TryNewIn is like NewIn but returns allocation failures as errors wrapping
// ErrAlloc.
func TryNewIn[A Allocator](l Layout, a A, optFns ...Option) (*Allocation[A], error) {
	if !l.valid() {
		return nil, invalidLayoutError(l)
	}
	ptr, actual, err := allocate(a, l)
	if err != nil {
		return nil, err
	}
	return newAllocation(ptr, actual, a, optFns), nil
}

// ZeroedIn is like NewIn but the memory reads as zero.
func ZeroedIn[A Allocator](l Layout, a A, optFns ...Option) *Allocation[A] {
	mustValid(l)
	h, err := TryZeroedIn(l, a, optFns...)
	if err != nil {
		HandleAllocError(l)
	}
	return h
}

// TryZeroedIn is like ZeroedIn but returns allocation failures as errors.
func TryZeroedIn[A Allocator](l Layout, a A, optFns ...Option) (*Allocation[A], error) {
	if !l.valid() {
		return nil, invalidLayoutError(l)
	}
	ptr, actual, err := allocateZeroed(a, l)
	if err != nil {
		return nil, err
	}
	return newAllocation(ptr, actual, a, optFns), nil
}

// FromParts takes ownership of Go heap memory previously decomposed with
// IntoParts from an Allocation[Global].
func FromParts(ptr unsafe.Pointer, l Layout, optFns ...Option) *Allocation[Global] {
	return FromPartsIn(ptr, l, Global{}, optFns...)
}

// FromPartsIn takes ownership of memory allocated by a.
//
// ptr must be currently allocated by a with a layout that fits l: the same
// alignment and a size between the requested and the granted one. A zero
// size layout needs ptr to be Dangling(l.Align()). None of this is checked.
func FromPartsIn[A Allocator](ptr unsafe.Pointer, l Layout, a A, optFns ...Option) *Allocation[A] {
	return newAllocation(ptr, l, a, optFns)
}

func newAllocation[A Allocator](ptr unsafe.Pointer, l Layout, a A, optFns []Option) *Allocation[A] {
	var opts options
	for _, fn := range optFns {
		fn(&opts)
	}
	h := &Allocation[A]{
		ptr:         ptr,
		layout:      l,
		alloc:       a,
		autoRelease: opts.cleanup,
	}
	h.armCleanup()
	return h
}

func invalidLayoutError(l Layout) error {
	return fmt.Errorf("%w: %v", ErrInvalidLayout, l)
}

// mustValid panics for a layout no allocator can serve. That is a caller
// bug, not an allocation failure.
func mustValid(l Layout) {
	if !l.valid() {
		panic(invalidLayoutError(l))
	}
}

// rawParts is what the cleanup needs to release the memory. It must not
// reference the handle itself.
type rawParts[A Allocator] struct {
	ptr    unsafe.Pointer
	layout Layout
	alloc  A
}

func (h *Allocation[A]) armCleanup() {
	if !h.autoRelease || h.layout.size == 0 {
		return
	}
	h.cleanup = runtime.AddCleanup(h, func(p rawParts[A]) {
		release(p.alloc, p.ptr, p.layout)
	}, rawParts[A]{ptr: h.ptr, layout: h.layout, alloc: h.alloc})
	h.armed = true
}

func (h *Allocation[A]) disarmCleanup() {
	if !h.armed {
		return
	}
	h.cleanup.Stop()
	h.cleanup, h.armed = runtime.Cleanup{}, false
}

func (h *Allocation[A]) mustLive() {
	if h.released {
		panic(ErrReleased)
	}
}

// Ptr returns the start of the memory. For a zero-size layout this is the
// Dangling sentinel.
func (h *Allocation[A]) Ptr() unsafe.Pointer {
	h.mustLive()
	return h.ptr
}

// Layout returns the layout of the memory actually owned.
func (h *Allocation[A]) Layout() Layout {
	h.mustLive()
	return h.layout
}

// Allocator returns the backend that owns the memory.
func (h *Allocation[A]) Allocator() A {
	h.mustLive()
	return h.alloc
}

// Bytes returns the whole memory as a byte slice of length Layout().Size().
// The contents are unspecified unless the memory was zeroed or written.
// The slice is invalidated by any reallocation or release.
func (h *Allocation[A]) Bytes() []byte {
	h.mustLive()
	return unsafe.Slice((*byte)(h.ptr), h.layout.size)
}

// AsPtr returns the memory as a *T without checking size or alignment.
func AsPtr[T any, A Allocator](h *Allocation[A]) *T {
	return (*T)(h.Ptr())
}

// AsUninit returns the memory as a *T whose value may be uninitialized.
// It panics if the memory is smaller or less aligned than T.
func AsUninit[T any, A Allocator](h *Allocation[A]) *T {
	h.mustLive()
	want := LayoutOf[T]()
	if h.layout.size < want.size {
		panic(fmt.Sprintf("untyped: %v is too small to hold %v (%d bytes)", h.layout, reflect.TypeFor[T](), want.size))
	}
	if h.layout.align < want.align {
		panic(fmt.Sprintf("untyped: %v is not aligned for %v (%d bytes)", h.layout, reflect.TypeFor[T](), want.align))
	}
	return (*T)(h.ptr)
}

// Realloc changes the memory to l. Failure is handed to HandleAllocError;
// an invalid layout panics with an error wrapping ErrInvalidLayout.
func (h *Allocation[A]) Realloc(l Layout) {
	mustValid(l)
	if err := h.TryRealloc(l); err != nil {
		HandleAllocError(l)
	}
}

// TryRealloc changes the memory to l, preserving the bytes both layouts
// have in common. Bytes added by growing are uninitialized.
//
// An equal layout is a no-op. A size at least as large as the current one
// grows, which also covers pure alignment changes; anything else shrinks.
// On error the allocation is unchanged and still valid.
func (h *Allocation[A]) TryRealloc(l Layout) error {
	return h.realloc(l, false)
}

// ReallocZeroed is like Realloc but bytes added by growing read as zero.
func (h *Allocation[A]) ReallocZeroed(l Layout) {
	mustValid(l)
	if err := h.TryReallocZeroed(l); err != nil {
		HandleAllocError(l)
	}
}

// TryReallocZeroed is like TryRealloc but bytes added by growing read as zero.
func (h *Allocation[A]) TryReallocZeroed(l Layout) error {
	return h.realloc(l, true)
}

func (h *Allocation[A]) realloc(l Layout, zeroed bool) error {
	h.mustLive()
	if !l.valid() {
		return invalidLayoutError(l)
	}
	if l == h.layout {
		return nil
	}

	var (
		ptr    unsafe.Pointer
		actual Layout
		err    error
	)
	switch {
	case l.size >= h.layout.size && zeroed:
		ptr, actual, err = growZeroed(h.alloc, h.ptr, h.layout, l)
	case l.size >= h.layout.size:
		ptr, actual, err = grow(h.alloc, h.ptr, h.layout, l)
	default:
		ptr, actual, err = shrink(h.alloc, h.ptr, h.layout, l)
	}
	if err != nil {
		return err
	}

	h.disarmCleanup()
	h.ptr, h.layout = ptr, actual
	h.armCleanup()
	return nil
}

// Free releases the memory. It is a no-op on a released handle and never
// passes zero-size memory to the allocator.
func (h *Allocation[A]) Free() {
	if h.released {
		return
	}
	ptr, l, a := h.consume()
	release(a, ptr, l)
}

// IntoParts gives up ownership without releasing the memory and returns its
// pointer and layout. The caller becomes responsible for releasing it with
// the same allocator, typically through FromPartsIn. Memory with a
// zero-size layout needs no release.
func (h *Allocation[A]) IntoParts() (unsafe.Pointer, Layout) {
	ptr, l, _ := h.IntoPartsWithAlloc()
	return ptr, l
}

// IntoPartsWithAlloc is like IntoParts but also returns the allocator.
func (h *Allocation[A]) IntoPartsWithAlloc() (unsafe.Pointer, Layout, A) {
	h.mustLive()
	return h.consume()
}

func (h *Allocation[A]) consume() (unsafe.Pointer, Layout, A) {
	h.disarmCleanup()
	ptr, l, a := h.ptr, h.layout, h.alloc

	var zero A
	h.ptr, h.alloc, h.released = nil, zero, true
	return ptr, l, a
}

func (h *Allocation[A]) String() string {
	if h.released {
		return "Allocation{released}"
	}
	return fmt.Sprintf("Allocation{ptr: %p, layout: %v}", h.ptr, h.layout)
}
