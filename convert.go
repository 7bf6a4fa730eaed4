package untyped

import (
	"unsafe"
)

// checkBoxLayout accepts only the exact layout of T.
func checkBoxLayout[T any](l Layout) error {
	if want := LayoutOf[T](); l != want {
		return &LayoutMismatchError{Expected: want, Allocated: l}
	}
	return nil
}

// checkVecLayout returns the number of T that exactly fill l.
func checkVecLayout[T any](l Layout) (int, error) {
	elem := LayoutOf[T]()
	if elem.size == 0 {
		return 0, ErrZeroSizedElements
	}
	if l.align != elem.align {
		return 0, &AlignMismatchError{Expected: elem.align, Allocated: l.align}
	}
	if l.size%elem.size != 0 {
		return 0, &SlackCapacityError{ElementSize: elem.size, Allocated: l.size}
	}
	return l.size / elem.size, nil
}

// TryIntoBox hands the memory to a single-value box without copying. It
// fails with a *LayoutMismatchError unless the allocation's layout is
// exactly the layout of T; on failure h keeps ownership.
//
// The box is uninitialized: the caller must write a value or vouch for the
// existing bytes before using it as a T.
func TryIntoBox[T any, A Allocator](h *Allocation[A]) (*UninitBox[T, A], error) {
	if err := checkBoxLayout[T](h.Layout()); err != nil {
		return nil, err
	}
	ptr, _, a := h.IntoPartsWithAlloc()
	return &UninitBox[T, A]{ptr: (*T)(ptr), alloc: a}, nil
}

// TryIntoVec hands the memory to an empty Vec without copying. The Vec has
// length zero and capacity Layout().Size() / sizeof(T).
//
// It fails with ErrZeroSizedElements, an *AlignMismatchError or a
// *SlackCapacityError, checked in that order; on failure h keeps ownership.
func TryIntoVec[T any, A Allocator](h *Allocation[A]) (*Vec[T, A], error) {
	capacity, err := checkVecLayout[T](h.Layout())
	if err != nil {
		return nil, err
	}
	ptr, _, a := h.IntoPartsWithAlloc()
	return VecFromRawPartsIn((*T)(ptr), 0, capacity, a), nil
}

// FromBox takes over the memory of b without finalizing its value.
func FromBox[T any, A Allocator](b *Box[T, A]) *Allocation[A] {
	ptr, a := b.IntoRawWithAllocator()
	return FromPartsIn(unsafe.Pointer(ptr), LayoutOf[T](), a)
}

// FromVec takes over the backing memory of v. The length is dropped to zero
// first, so the elements are forgotten, and the allocation covers the whole
// capacity.
func FromVec[T any, A Allocator](v *Vec[T, A]) *Allocation[A] {
	v.Truncate(0)
	ptr, _, capacity, a := v.IntoRawParts()
	elem := LayoutOf[T]()
	return FromPartsIn(unsafe.Pointer(ptr), Layout{size: capacity * elem.size, align: elem.align}, a)
}

// TryIntoPointer turns Go heap memory into an ordinary *T owned by the
// garbage collector. The layout rules are those of TryIntoBox.
//
// T must not contain Go pointers: the memory is not scanned.
func TryIntoPointer[T any](h *Allocation[Global]) (*T, error) {
	if err := checkBoxLayout[T](h.Layout()); err != nil {
		return nil, err
	}
	ptr, _ := h.IntoParts()
	return (*T)(ptr), nil
}

// TryIntoSlice turns Go heap memory into an ordinary []T of length zero
// whose capacity covers the whole allocation. The layout rules are those of
// TryIntoVec.
//
// T must not contain Go pointers: the memory is not scanned.
func TryIntoSlice[T any](h *Allocation[Global]) ([]T, error) {
	capacity, err := checkVecLayout[T](h.Layout())
	if err != nil {
		return nil, err
	}
	ptr, _ := h.IntoParts()
	return unsafe.Slice((*T)(ptr), capacity)[:0], nil
}

// FromPointer takes over the memory of p, which must point to the start of
// a Go heap object of type T. The value is left in place.
func FromPointer[T any](p *T) *Allocation[Global] {
	l := LayoutOf[T]()
	if l.size == 0 {
		return FromParts(Dangling(l.align), l)
	}
	return FromParts(unsafe.Pointer(p), l)
}

// FromSlice takes over the backing array of s. The allocation covers the
// whole capacity; the elements are forgotten.
func FromSlice[T any](s []T) *Allocation[Global] {
	elem := LayoutOf[T]()
	l := Layout{size: cap(s) * elem.size, align: elem.align}
	if l.size == 0 {
		return FromParts(Dangling(l.align), l)
	}
	return FromParts(unsafe.Pointer(unsafe.SliceData(s)), l)
}
