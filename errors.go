package untyped

import (
	"errors"
	"fmt"
)

var (
	// ErrAlloc reports that an allocator could not satisfy a request.
	// Allocation failure carries no reason; backends may wrap it with context.
	ErrAlloc = errors.New("untyped: memory allocation failed")

	// ErrInvalidLayout is returned for alignments that are not powers of two,
	// negative sizes and sizes that overflow.
	ErrInvalidLayout = errors.New("untyped: invalid layout")

	// ErrReleased is the panic value when a freed or decomposed Allocation,
	// Box or Vec is used again.
	ErrReleased = errors.New("untyped: memory already released")

	// ErrPrecondition is wrapped by the panic value of a Tracking allocator
	// that sees a pointer it did not hand out.
	ErrPrecondition = errors.New("untyped: allocator precondition violated")

	// ErrBoxConversion is the class of errors returned by TryIntoBox and
	// TryIntoPointer.
	ErrBoxConversion = errors.New("untyped: box conversion failed")

	// ErrVecConversion is the class of errors returned by TryIntoVec and
	// TryIntoSlice.
	ErrVecConversion = errors.New("untyped: vec conversion failed")

	// ErrZeroSizedElements rejects array conversions for element types of
	// size zero, whose capacity cannot be derived from a byte size.
	ErrZeroSizedElements = fmt.Errorf("%w: zero-sized elements", ErrVecConversion)
)

// LayoutMismatchError indicates that an allocation does not have exactly the
// layout of the requested value type.
//
// It wraps ErrBoxConversion.
type LayoutMismatchError struct {
	Expected  Layout
	Allocated Layout
}

func (e *LayoutMismatchError) Error() string {
	return fmt.Sprintf("layout mismatch: expected %v, allocated %v", e.Expected, e.Allocated)
}

func (e *LayoutMismatchError) Unwrap() error { return ErrBoxConversion }

// AlignMismatchError indicates that an allocation's alignment differs from
// the element type's alignment.
//
// It wraps ErrVecConversion.
type AlignMismatchError struct {
	Expected  int
	Allocated int
}

func (e *AlignMismatchError) Error() string {
	return fmt.Sprintf("alignment mismatch: expected %d, allocated %d", e.Expected, e.Allocated)
}

func (e *AlignMismatchError) Unwrap() error { return ErrVecConversion }

// SlackCapacityError indicates that an allocation's size is not a whole
// number of elements.
//
// It wraps ErrVecConversion.
type SlackCapacityError struct {
	ElementSize int
	Allocated   int
}

func (e *SlackCapacityError) Error() string {
	return fmt.Sprintf("slack capacity: %d bytes is not a multiple of element size %d", e.Allocated, e.ElementSize)
}

func (e *SlackCapacityError) Unwrap() error { return ErrVecConversion }

// OutOfMemoryError is the panic value raised by HandleAllocError.
type OutOfMemoryError struct {
	Layout Layout
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("memory allocation of %d bytes failed", e.Layout.size)
}

func (e *OutOfMemoryError) Unwrap() error { return ErrAlloc }

// PreconditionError describes a deallocate, grow or shrink call for memory
// the allocator does not consider live.
type PreconditionError struct {
	Op     string
	Ptr    uintptr
	Layout Layout
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s of %#x (%v): pointer is not live", e.Op, e.Ptr, e.Layout)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }
