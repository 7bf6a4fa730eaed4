package untyped

import (
	"testing"
	"unsafe"

	"github.com/hupe1980/untyped/internal/mmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestMmap_GrantsWholePages(t *testing.T) {
	m := NewMmap()
	defer func() { _ = m.Close() }()

	page := mmap.PageSize()

	h := NewIn(MustLayout(10, 8), m)
	defer h.Free()

	assert.Equal(t, page, h.Layout().Size())
	assert.Equal(t, 8, h.Layout().Align())
	assert.Equal(t, 1, m.Live())
}

func TestMmap_LargeAlignment(t *testing.T) {
	m := NewMmap()
	defer func() { _ = m.Close() }()

	for _, align := range []int{8192, 65536, 1 << 20} {
		if align > MaxAlign {
			continue
		}
		h := NewIn(MustLayout(100, align), m)
		assert.True(t, isAligned(h.Ptr(), align), "align %d", align)
		assert.GreaterOrEqual(t, h.Layout().Size(), 100)
		h.Bytes()[99] = 1
		h.Free()
	}
	assert.Zero(t, m.Live())
}

func TestMmap_GrowInPlace(t *testing.T) {
	m := NewMmap()
	defer func() { _ = m.Close() }()

	h := NewIn(MustLayout(16, 8), m)
	defer h.Free()
	ptr := h.Ptr()

	p, n, err := m.Grow(ptr, MustLayout(16, 8), MustLayout(100, 8))
	require.NoError(t, err)
	assert.Equal(t, ptr, p)
	assert.Equal(t, mmap.PageSize(), n)

	h.Realloc(MustLayout(h.Layout().Size()+1, 8))
	assert.NotEqual(t, ptr, h.Ptr())
	assert.Equal(t, 1, m.Live())
}

func TestMmap_GrowZeroedInPlaceClearsStaleBytes(t *testing.T) {
	m := NewMmap()
	defer func() { _ = m.Close() }()

	l := MustLayout(64, 8)
	ptr, n, err := m.Allocate(l)
	require.NoError(t, err)

	h := FromPartsIn(ptr, MustLayout(n, 8), m)
	defer h.Free()
	for i := range h.Bytes() {
		h.Bytes()[i] = 0xEE
	}

	p, _, err := m.GrowZeroed(ptr, MustLayout(16, 8), MustLayout(64, 8))
	require.NoError(t, err)
	assert.Equal(t, ptr, p)

	b := h.Bytes()
	assert.Equal(t, byte(0xEE), b[15])
	for i := 16; i < 64; i++ {
		require.Zero(t, b[i], "byte %d", i)
	}
}

func TestMmap_Close(t *testing.T) {
	m := NewMmap()

	for range 4 {
		ptr, n, err := m.Allocate(MustLayout(128, 8))
		require.NoError(t, err)
		_ = FromPartsIn(ptr, MustLayout(n, 8), m)
	}
	assert.Equal(t, 4, m.Live())

	require.NoError(t, m.Close())
	assert.Zero(t, m.Live())

	_, err := TryNewIn(MustLayout(8, 8), m)
	assert.ErrorIs(t, err, ErrAlloc)
	assert.ErrorIs(t, err, mmap.ErrClosed)
}

func TestMmap_UnknownPointer(t *testing.T) {
	m := NewMmap()
	defer func() { _ = m.Close() }()

	var x [64]byte
	_, _, err := m.Grow(Dangling(8), MustLayout(8, 8), MustLayout(16, 8))
	assert.ErrorIs(t, err, ErrAlloc)

	m.Deallocate(unsafe.Pointer(&x), MustLayout(64, 1))
	assert.Zero(t, m.Live())
}

func TestMmap_Concurrent(t *testing.T) {
	m := NewMmap(WithAdvice(AccessRandom))
	defer func() { _ = m.Close() }()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				h, err := TryNewIn(MustLayout(1+i*100, 16), m)
				if err != nil {
					return err
				}
				h.Bytes()[0] = byte(w)
				if err := h.TryRealloc(MustLayout(8192, 16)); err != nil {
					return err
				}
				if h.Bytes()[0] != byte(w) {
					t.Errorf("worker %d: lost first byte", w)
				}
				h.Free()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Zero(t, m.Live())
}
