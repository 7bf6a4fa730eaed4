package untyped

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		align   int
		wantErr bool
	}{
		{"zero size", 0, 1, false},
		{"int32", 4, 4, false},
		{"page aligned", 10, 4096, false},
		{"max align", 1, MaxAlign, false},
		{"size not multiple of align", 3, 8, false},
		{"zero align", 4, 0, true},
		{"negative align", 4, -8, true},
		{"align not power of two", 4, 12, true},
		{"align too large", 4, MaxAlign << 1, true},
		{"negative size", -1, 1, true},
		{"overflow when padded", math.MaxInt, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLayout(tt.size, tt.align)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLayout)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, l.Size())
			assert.Equal(t, tt.align, l.Align())
		})
	}
}

func TestMustLayout(t *testing.T) {
	assert.Equal(t, LayoutOf[int32](), MustLayout(4, 4))
	assert.Panics(t, func() { MustLayout(4, 3) })
}

func TestLayoutOf(t *testing.T) {
	type pair struct {
		a uint8
		b uint64
	}

	assert.Equal(t, MustLayout(1, 1), LayoutOf[byte]())
	assert.Equal(t, MustLayout(8, 8), LayoutOf[float64]())
	assert.Equal(t, MustLayout(16, 8), LayoutOf[pair]())
	assert.Equal(t, MustLayout(0, 1), LayoutOf[struct{}]())
	assert.Equal(t, MustLayout(12, 4), LayoutOf[[3]int32]())
}

func TestArrayLayout(t *testing.T) {
	t.Run("elements", func(t *testing.T) {
		l, err := ArrayLayout[int32](5)
		require.NoError(t, err)
		assert.Equal(t, MustLayout(20, 4), l)
	})

	t.Run("empty", func(t *testing.T) {
		l, err := ArrayLayout[uint64](0)
		require.NoError(t, err)
		assert.Equal(t, MustLayout(0, 8), l)
	})

	t.Run("zero-sized elements", func(t *testing.T) {
		l, err := ArrayLayout[struct{}](1000)
		require.NoError(t, err)
		assert.Equal(t, 0, l.Size())
	})

	t.Run("negative count", func(t *testing.T) {
		_, err := ArrayLayout[int32](-1)
		assert.ErrorIs(t, err, ErrInvalidLayout)
	})

	t.Run("overflow", func(t *testing.T) {
		_, err := ArrayLayout[uint64](math.MaxInt / 4)
		assert.ErrorIs(t, err, ErrInvalidLayout)
	})
}

func TestLayout_PadToAlign(t *testing.T) {
	assert.Equal(t, MustLayout(8, 8), MustLayout(3, 8).PadToAlign())
	assert.Equal(t, MustLayout(8, 8), MustLayout(8, 8).PadToAlign())
	assert.Equal(t, MustLayout(0, 16), MustLayout(0, 16).PadToAlign())
}

func TestLayout_String(t *testing.T) {
	assert.Equal(t, "Layout{size: 4, align: 4}", LayoutOf[int32]().String())
}

func TestLayout_ZeroValueIsInvalid(t *testing.T) {
	_, err := TryNewIn(Layout{}, Global{})
	assert.ErrorIs(t, err, ErrInvalidLayout)
}
