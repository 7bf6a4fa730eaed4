package untyped

import (
	"fmt"
	"math"
	"unsafe"
)

// Vec is a growable array of T stored in memory from allocator A. Length
// and capacity are independent; elements in [Len, Cap) are uninitialized.
//
// T must not contain Go pointers unless A hands out memory the garbage
// collector scans; none of the allocators in this package do.
type Vec[T any, A Allocator] struct {
	ptr      unsafe.Pointer
	len      int
	cap      int
	alloc    A
	released bool
}

// NewVec returns an empty Vec that allocates from a on first use.
func NewVec[T any, A Allocator](a A) *Vec[T, A] {
	elem := LayoutOf[T]()
	v := &Vec[T, A]{ptr: Dangling(elem.align), alloc: a}
	if elem.size == 0 {
		v.cap = math.MaxInt
	}
	return v
}

// WithCapacity returns an empty Vec with room for at least n elements.
// Failure is handed to HandleAllocError.
func WithCapacity[T any, A Allocator](n int, a A) *Vec[T, A] {
	v := NewVec[T](a)
	v.Reserve(n)
	return v
}

// VecFromRawPartsIn takes ownership of an array previously decomposed with
// IntoRawParts. ptr must be allocated by a for capacity elements of T and
// the first length elements must be initialized.
func VecFromRawPartsIn[T any, A Allocator](ptr *T, length, capacity int, a A) *Vec[T, A] {
	return &Vec[T, A]{ptr: unsafe.Pointer(ptr), len: length, cap: capacity, alloc: a}
}

func (v *Vec[T, A]) mustLive() {
	if v.released {
		panic(ErrReleased)
	}
}

// Len returns the number of initialized elements.
func (v *Vec[T, A]) Len() int {
	v.mustLive()
	return v.len
}

// Cap returns the number of elements the memory can hold.
func (v *Vec[T, A]) Cap() int {
	v.mustLive()
	return v.cap
}

// Slice returns the initialized elements. The slice is invalidated by any
// operation that reallocates.
func (v *Vec[T, A]) Slice() []T {
	v.mustLive()
	return unsafe.Slice((*T)(v.ptr), v.len)
}

// SpareCapacity returns the uninitialized elements after Len.
func (v *Vec[T, A]) SpareCapacity() []T {
	v.mustLive()
	size := int(unsafe.Sizeof(*new(T)))
	return unsafe.Slice((*T)(unsafe.Add(v.ptr, v.len*size)), v.cap-v.len)
}

// SetLen sets the length. The caller vouches that the first n elements are
// initialized.
func (v *Vec[T, A]) SetLen(n int) {
	v.mustLive()
	if n < 0 || n > v.cap {
		panic(fmt.Sprintf("untyped: length %d out of range [0, %d]", n, v.cap))
	}
	v.len = n
}

// Push appends x, growing the memory when full.
func (v *Vec[T, A]) Push(x T) {
	v.mustLive()
	if v.len == v.cap {
		v.Reserve(1)
	}
	size := int(unsafe.Sizeof(x))
	*(*T)(unsafe.Add(v.ptr, v.len*size)) = x
	v.len++
}

// Reserve makes room for at least additional more elements beyond Len.
// Failure is handed to HandleAllocError.
func (v *Vec[T, A]) Reserve(additional int) {
	v.mustLive()
	if err := v.TryReserve(additional); err != nil {
		var l Layout
		if n, lerr := ArrayLayout[T](v.len + additional); lerr == nil {
			l = n
		}
		HandleAllocError(l)
	}
}

// TryReserve is like Reserve but returns failures as errors.
func (v *Vec[T, A]) TryReserve(additional int) error {
	v.mustLive()
	if additional <= v.cap-v.len {
		return nil
	}

	want := v.len + additional
	if want < 0 {
		return fmt.Errorf("%w: capacity overflow", ErrAlloc)
	}
	want = max(want, 2*v.cap, 4)

	newLayout, err := ArrayLayout[T](want)
	if err != nil {
		return err
	}
	ptr, actual, err := grow(v.alloc, v.ptr, v.layout(), newLayout)
	if err != nil {
		return err
	}
	v.ptr = ptr
	v.cap = actual.size / LayoutOf[T]().size
	return nil
}

// Truncate shortens the Vec to n elements. It has no effect if n >= Len.
func (v *Vec[T, A]) Truncate(n int) {
	v.mustLive()
	if n >= 0 && n < v.len {
		v.len = n
	}
}

func (v *Vec[T, A]) layout() Layout {
	elem := LayoutOf[T]()
	return Layout{size: v.cap * elem.size, align: elem.align}
}

// Free releases the memory. Elements are not finalized in any way.
func (v *Vec[T, A]) Free() {
	if v.released {
		return
	}
	ptr, _, capacity, a := v.IntoRawParts()
	elem := LayoutOf[T]()
	release(a, unsafe.Pointer(ptr), Layout{size: capacity * elem.size, align: elem.align})
}

// IntoRawParts gives up ownership without releasing the memory and returns
// the pointer, length, capacity and allocator.
func (v *Vec[T, A]) IntoRawParts() (*T, int, int, A) {
	v.mustLive()
	ptr, length, capacity, a := v.ptr, v.len, v.cap, v.alloc

	var zero A
	v.ptr, v.len, v.cap, v.alloc, v.released = nil, 0, 0, zero, true
	return (*T)(ptr), length, capacity, a
}

func (v *Vec[T, A]) String() string {
	if v.released {
		return "Vec{released}"
	}
	return fmt.Sprintf("Vec{ptr: %p, len: %d, cap: %d}", v.ptr, v.len, v.cap)
}
