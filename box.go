package untyped

import (
	"fmt"
	"unsafe"
)

// Box owns a single initialized T stored in memory from allocator A.
//
// T must not contain Go pointers unless A hands out memory the garbage
// collector scans; none of the allocators in this package do.
type Box[T any, A Allocator] struct {
	ptr   *T
	alloc A
}

// NewBox moves v into memory allocated from a. Failure is handed to
// HandleAllocError.
func NewBox[T any, A Allocator](v T, a A) *Box[T, A] {
	l := LayoutOf[T]()
	ptr, _, err := allocate(a, l)
	if err != nil {
		HandleAllocError(l)
	}
	p := (*T)(ptr)
	*p = v
	return &Box[T, A]{ptr: p, alloc: a}
}

// BoxFromRawIn takes ownership of a T previously decomposed with
// IntoRawWithAllocator. ptr must be allocated by a with the layout of T and
// hold an initialized value.
func BoxFromRawIn[T any, A Allocator](ptr *T, a A) *Box[T, A] {
	return &Box[T, A]{ptr: ptr, alloc: a}
}

func (b *Box[T, A]) mustLive() {
	if b.ptr == nil {
		panic(ErrReleased)
	}
}

// Get returns a pointer to the boxed value.
func (b *Box[T, A]) Get() *T {
	b.mustLive()
	return b.ptr
}

// Free releases the memory. The value is not finalized in any way.
func (b *Box[T, A]) Free() {
	if b.ptr == nil {
		return
	}
	ptr, a := b.IntoRawWithAllocator()
	release(a, unsafe.Pointer(ptr), LayoutOf[T]())
}

// IntoRawWithAllocator gives up ownership without releasing the memory.
func (b *Box[T, A]) IntoRawWithAllocator() (*T, A) {
	b.mustLive()
	ptr, a := b.ptr, b.alloc

	var zero A
	b.ptr, b.alloc = nil, zero
	return ptr, a
}

func (b *Box[T, A]) String() string {
	if b.ptr == nil {
		return "Box{released}"
	}
	return fmt.Sprintf("Box{ptr: %p}", b.ptr)
}

// UninitBox owns memory for a single T that may not be initialized yet.
// It is what TryIntoBox returns: the conversion proves the layout fits, not
// that the bytes form a valid T.
type UninitBox[T any, A Allocator] struct {
	ptr   *T
	alloc A
}

func (b *UninitBox[T, A]) mustLive() {
	if b.ptr == nil {
		panic(ErrReleased)
	}
}

// Ptr returns a pointer to the possibly uninitialized value.
func (b *UninitBox[T, A]) Ptr() *T {
	b.mustLive()
	return b.ptr
}

// Write stores v and converts the box into an initialized Box.
func (b *UninitBox[T, A]) Write(v T) *Box[T, A] {
	b.mustLive()
	*b.ptr = v
	return b.AssumeInit()
}

// AssumeInit converts the box into an initialized Box. The caller vouches
// that the memory holds a valid T.
func (b *UninitBox[T, A]) AssumeInit() *Box[T, A] {
	b.mustLive()
	box := &Box[T, A]{ptr: b.ptr, alloc: b.alloc}

	var zero A
	b.ptr, b.alloc = nil, zero
	return box
}

// Free releases the memory.
func (b *UninitBox[T, A]) Free() {
	if b.ptr == nil {
		return
	}
	b.AssumeInit().Free()
}
