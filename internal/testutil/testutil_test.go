package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSize(t *testing.T) {
	rng := NewRNG(4711)

	sawZero := false
	for i := 0; i < 1000; i++ {
		s := rng.Size(64)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 64)
		if s == 0 {
			sawZero = true
		}
	}
	assert.True(t, sawZero)
}

func TestAlign(t *testing.T) {
	rng := NewRNG(4711)

	for i := 0; i < 1000; i++ {
		a := rng.Align(12)
		assert.Equal(t, 0, a&(a-1), "alignment %d is not a power of two", a)
		assert.LessOrEqual(t, a, 4096)
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)

	first := rng.Bytes(32)
	rng.Reset()
	second := rng.Bytes(32)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(4711), rng.Seed())
}
