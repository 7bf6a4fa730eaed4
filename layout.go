package untyped

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/hupe1980/untyped/internal/conv"
)

// MaxAlign is the largest alignment a Layout accepts: 1<<29 on 64-bit
// platforms and 4096 on 32-bit ones. Zero-size memory with an alignment
// above 4096 is represented by the bare address align, which is only known
// to be free of real memory in a 64-bit address space.
const MaxAlign = 1 << (12 + 17*(^uint(0)>>63))

// Layout describes the size and alignment of a block of memory.
//
// The zero value is not a valid layout; use NewLayout, LayoutOf or
// ArrayLayout. Layouts are comparable with ==.
type Layout struct {
	size  int
	align int
}

// NewLayout returns a Layout of size bytes aligned to align.
//
// align must be a power of two no larger than MaxAlign, and size rounded up
// to a multiple of align must not overflow an int.
func NewLayout(size, align int) (Layout, error) {
	if align <= 0 || align&(align-1) != 0 || align > MaxAlign {
		return Layout{}, fmt.Errorf("%w: alignment %d is not a power of two up to %d", ErrInvalidLayout, align, MaxAlign)
	}
	if size < 0 {
		return Layout{}, fmt.Errorf("%w: negative size %d", ErrInvalidLayout, size)
	}
	if size > math.MaxInt-(align-1) {
		return Layout{}, fmt.Errorf("%w: size %d overflows when padded to %d", ErrInvalidLayout, size, align)
	}
	return Layout{size: size, align: align}, nil
}

// MustLayout is like NewLayout but panics on invalid input.
func MustLayout(size, align int) Layout {
	l, err := NewLayout(size, align)
	if err != nil {
		panic(err)
	}
	return l
}

// LayoutOf returns the layout of a single value of type T.
func LayoutOf[T any]() Layout {
	var zero T
	return Layout{
		size:  int(unsafe.Sizeof(zero)),
		align: int(unsafe.Alignof(zero)),
	}
}

// ArrayLayout returns the layout of n contiguous values of type T.
func ArrayLayout[T any](n int) (Layout, error) {
	if n < 0 {
		return Layout{}, fmt.Errorf("%w: negative element count %d", ErrInvalidLayout, n)
	}
	elem := LayoutOf[T]()
	size, err := conv.MulInt(n, elem.size)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: %d elements of %d bytes: %w", ErrInvalidLayout, n, elem.size, err)
	}
	return NewLayout(size, elem.align)
}

// Size returns the size in bytes.
func (l Layout) Size() int { return l.size }

// Align returns the alignment in bytes.
func (l Layout) Align() int { return l.align }

// PadToAlign returns l with its size rounded up to a multiple of its alignment.
func (l Layout) PadToAlign() Layout {
	mask := l.align - 1
	return Layout{size: (l.size + mask) &^ mask, align: l.align}
}

func (l Layout) valid() bool {
	return l.align > 0 && l.align&(l.align-1) == 0 && l.align <= MaxAlign && l.size >= 0
}

func (l Layout) String() string {
	return fmt.Sprintf("Layout{size: %d, align: %d}", l.size, l.align)
}
