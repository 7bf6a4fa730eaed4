package untyped

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox(t *testing.T) {
	tr := NewTracking(Global{})

	b := NewBox([4]uint32{1, 2, 3, 4}, tr)
	assert.Equal(t, uint32(3), b.Get()[2])
	assert.Equal(t, uint64(1), tr.Live())

	b.Get()[2] = 30
	ptr, a := b.IntoRawWithAllocator()
	assert.Equal(t, uint32(30), ptr[2])
	assert.Panics(t, func() { b.Get() })
	assert.Equal(t, "Box{released}", b.String())

	b = BoxFromRawIn(ptr, a)
	b.Free()
	b.Free()
	assert.Zero(t, tr.Live())
}

func TestUninitBox(t *testing.T) {
	h := New(LayoutOf[uint64]())
	ub, err := TryIntoBox[uint64](h)
	require.NoError(t, err)

	*ub.Ptr() = 5
	b := ub.AssumeInit()
	assert.Panics(t, func() { ub.Ptr() })
	assert.Equal(t, uint64(5), *b.Get())
	b.Free()

	ub, err = TryIntoBox[uint64](New(LayoutOf[uint64]()))
	require.NoError(t, err)
	ub.Free()
	ub.Free()
}

func TestBox_ZeroSized(t *testing.T) {
	tr := NewTracking(Global{})

	b := NewBox(struct{}{}, tr)
	assert.NotNil(t, b.Get())
	assert.Zero(t, tr.Live())
	b.Free()
}
