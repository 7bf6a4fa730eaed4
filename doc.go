// Package untyped provides an owned, type-erased handle to raw memory.
//
// An Allocation owns one block of memory described by a Layout (size and
// alignment) together with the Allocator that produced it. It says nothing
// about what the memory contains. The memory can be grown or shrunk in
// place when the backend allows it, viewed as uninitialized storage, and
// handed without copying to a typed Box or Vec, or to a plain *T or []T,
// and back again.
//
// # Quick Start
//
//	a := untyped.Zeroed(untyped.LayoutOf[int32]())
//	*untyped.AsUninit[int32](a) = 42
//
//	a.ReallocZeroed(untyped.MustLayout(8, 4)) // [42, 0]
//
//	v, err := untyped.TryIntoSlice[int32](a) // len 0, cap 2
//
// # Allocators
//
// The backend is chosen by type parameter:
//
//	untyped.New(l)                             // Go heap (Global)
//	untyped.NewIn(l, untyped.NewMmap())        // one anonymous mapping per allocation
//	untyped.NewIn(l, arena)                    // bump allocation over mapped chunks
//	untyped.NewIn(l, untyped.NewBudget(a, n))  // fails once n bytes are in use
//	untyped.NewIn(l, untyped.NewTracking(a))   // checks release preconditions
//
// Backends may grant more memory than requested. The Allocation records the
// granted size, so Layout().Size() can exceed the request.
//
// # Zero Size
//
// Zero-size layouts never reach the allocator. Their pointer is the
// non-nil, aligned sentinel returned by Dangling and must not be
// dereferenced or released.
//
// # Errors
//
// Every constructor and reallocation has a Try form returning an error
// that wraps ErrAlloc. The other forms pass failures to HandleAllocError,
// which never returns. Typed conversions return *LayoutMismatchError,
// *AlignMismatchError, *SlackCapacityError or ErrZeroSizedElements, which
// match ErrBoxConversion or ErrVecConversion through errors.Is.
//
// # Garbage Collection
//
// None of the allocators hand out memory the garbage collector scans.
// Values stored in an Allocation, Box or Vec must not contain Go pointers.
package untyped
