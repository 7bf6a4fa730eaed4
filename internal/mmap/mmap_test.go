package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAnon_ReadWriteClose(t *testing.T) {
	m, err := MapAnon(100)
	require.NoError(t, err)

	page := PageSize()
	assert.Equal(t, page, m.Size(), "size should be rounded up to a page")

	data := m.Bytes()
	require.Len(t, data, page)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not zero: %d", i, b)
		}
	}

	copy(data, "Hello, Mmap!")
	assert.Equal(t, "Hello, Mmap!", string(m.Bytes()[:12]))

	require.NoError(t, m.Advise(AccessRandom))

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())

	// Close is idempotent.
	require.NoError(t, m.Close())
}

func TestMapAnon_AfterClose(t *testing.T) {
	m, err := MapAnon(1)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessSequential), ErrClosed)
}

func TestMapAnon_InvalidSize(t *testing.T) {
	_, err := MapAnon(0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = MapAnon(-1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestPageSize_PowerOfTwo(t *testing.T) {
	page := PageSize()
	assert.Positive(t, page)
	assert.Zero(t, page&(page-1))
}
