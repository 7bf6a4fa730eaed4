package untyped

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryIntoBox(t *testing.T) {
	t.Run("exact layout", func(t *testing.T) {
		h := Zeroed(LayoutOf[int64]())
		ub, err := TryIntoBox[int64](h)
		require.NoError(t, err)

		b := ub.Write(7)
		defer b.Free()
		assert.Equal(t, int64(7), *b.Get())
		assert.Panics(t, func() { h.Ptr() }, "allocation must be consumed")
	})

	t.Run("size mismatch", func(t *testing.T) {
		h := New(MustLayout(16, 8))
		defer h.Free()

		_, err := TryIntoBox[int64](h)
		require.ErrorIs(t, err, ErrBoxConversion)

		var lm *LayoutMismatchError
		require.True(t, errors.As(err, &lm))
		assert.Equal(t, LayoutOf[int64](), lm.Expected)
		assert.Equal(t, MustLayout(16, 8), lm.Allocated)

		// Ownership stays with the allocation.
		assert.Equal(t, 16, len(h.Bytes()))
	})

	t.Run("align mismatch", func(t *testing.T) {
		h := New(MustLayout(8, 16))
		defer h.Free()

		_, err := TryIntoBox[int64](h)
		var lm *LayoutMismatchError
		assert.ErrorAs(t, err, &lm)
	})

	t.Run("zero size", func(t *testing.T) {
		h := New(LayoutOf[struct{}]())
		ub, err := TryIntoBox[struct{}](h)
		require.NoError(t, err)
		ub.Free()
	})
}

func TestTryIntoVec(t *testing.T) {
	t.Run("capacity from size", func(t *testing.T) {
		h := Zeroed(MustLayout(24, 4))
		v, err := TryIntoVec[int32](h)
		require.NoError(t, err)
		defer v.Free()

		assert.Equal(t, 0, v.Len())
		assert.Equal(t, 6, v.Cap())
	})

	t.Run("empty", func(t *testing.T) {
		h := New(MustLayout(0, 8))
		v, err := TryIntoVec[uint64](h)
		require.NoError(t, err)
		assert.Equal(t, 0, v.Cap())

		v.Push(1)
		assert.Equal(t, []uint64{1}, v.Slice())
		v.Free()
	})

	t.Run("align mismatch", func(t *testing.T) {
		h := New(MustLayout(16, 8))
		defer h.Free()

		_, err := TryIntoVec[int32](h)
		require.ErrorIs(t, err, ErrVecConversion)

		var am *AlignMismatchError
		require.True(t, errors.As(err, &am))
		assert.Equal(t, 4, am.Expected)
		assert.Equal(t, 8, am.Allocated)
		assert.Equal(t, 16, h.Layout().Size())
	})

	t.Run("slack capacity", func(t *testing.T) {
		h := New(MustLayout(10, 4))
		defer h.Free()

		_, err := TryIntoVec[int32](h)
		require.ErrorIs(t, err, ErrVecConversion)

		var sc *SlackCapacityError
		require.True(t, errors.As(err, &sc))
		assert.Equal(t, 4, sc.ElementSize)
		assert.Equal(t, 10, sc.Allocated)
	})

	t.Run("alignment is checked before slack", func(t *testing.T) {
		h := New(MustLayout(10, 8))
		defer h.Free()

		_, err := TryIntoVec[int32](h)
		var am *AlignMismatchError
		assert.ErrorAs(t, err, &am)
	})

	t.Run("zero-sized elements", func(t *testing.T) {
		h := New(MustLayout(0, 1))
		defer h.Free()

		_, err := TryIntoVec[struct{}](h)
		require.ErrorIs(t, err, ErrZeroSizedElements)
		require.ErrorIs(t, err, ErrVecConversion)
	})

	t.Run("zero-sized elements are checked first", func(t *testing.T) {
		h := New(MustLayout(3, 8))
		defer h.Free()

		_, err := TryIntoVec[struct{}](h)
		assert.ErrorIs(t, err, ErrZeroSizedElements)
	})
}

func TestBoxRoundTrip(t *testing.T) {
	a, err := NewArena(0)
	require.NoError(t, err)
	defer a.Free()

	type point struct{ X, Y int32 }

	b := NewBox(point{1, 2}, a)
	h := FromBox(b)
	assert.Equal(t, LayoutOf[point](), h.Layout())
	assert.Equal(t, point{1, 2}, *AsPtr[point](h))

	ub, err := TryIntoBox[point](h)
	require.NoError(t, err)
	b = ub.AssumeInit()
	assert.Equal(t, point{1, 2}, *b.Get())
	b.Free()
	assert.Zero(t, a.Stats().BytesUsed)
}

func TestVecRoundTrip(t *testing.T) {
	v := NewVec[uint16](Global{})
	for i := range 10 {
		v.Push(uint16(i))
	}
	capacity := v.Cap()

	h := FromVec(v)
	assert.Equal(t, MustLayout(capacity*2, 2), h.Layout())
	assert.Equal(t, uint16(9), AsPtr[[10]uint16](h)[9])

	v, err := TryIntoVec[uint16](h)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Len())
	assert.Equal(t, capacity, v.Cap())

	v.SetLen(10)
	assert.Equal(t, uint16(9), v.Slice()[9])
	v.Free()
}

func TestTryIntoPointer(t *testing.T) {
	h := Zeroed(LayoutOf[float64]())
	*AsUninit[float64](h) = 2.5

	p, err := TryIntoPointer[float64](h)
	require.NoError(t, err)
	assert.Equal(t, 2.5, *p)

	h = FromPointer(p)
	assert.Equal(t, LayoutOf[float64](), h.Layout())
	h.Free()

	h = New(MustLayout(4, 4))
	defer h.Free()
	_, err = TryIntoPointer[float64](h)
	assert.ErrorIs(t, err, ErrBoxConversion)
}

func TestTryIntoSlice(t *testing.T) {
	h := Zeroed(LayoutOf[int32]())
	*AsUninit[int32](h) = 42
	h.ReallocZeroed(MustLayout(8, 4))

	s, err := TryIntoSlice[int32](h)
	require.NoError(t, err)
	assert.Empty(t, s)
	assert.Equal(t, 2, cap(s))
	assert.Equal(t, []int32{42, 0}, s[:2])

	s = append(s, 1, 2, 3)
	h = FromSlice(s)
	assert.Equal(t, cap(s)*4, h.Layout().Size())
	assert.Equal(t, 4, h.Layout().Align())
	h.Free()

	h = FromSlice([]int32(nil))
	assert.Equal(t, 0, h.Layout().Size())
	assert.True(t, IsDangling(h.Ptr(), 4))
	h.Free()
}
