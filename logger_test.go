package untyped

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LogAllocFailure(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, nil)).WithAllocator(Global{})

	l.LogAllocFailure(context.Background(), MustLayout(4096, 64), errors.New("boom"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "memory allocation failed", rec["msg"])
	assert.Equal(t, "Global", rec["allocator"])
	assert.InDelta(t, 4096, rec["size"], 0)
	assert.InDelta(t, 64, rec["align"], 0)
	assert.Equal(t, "boom", rec["error"])
}

func TestLogger_WithLayout(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, nil)).WithLayout(MustLayout(24, 8))

	l.Info("mapped")
	assert.Contains(t, buf.String(), "size=24 align=8")
}

func TestLogger_Noop(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogAllocFailure(context.Background(), MustLayout(1, 1), ErrAlloc)
}

func TestSetLogger(t *testing.T) {
	prev := DefaultLogger()
	t.Cleanup(func() { SetLogger(prev) })

	SetLogger(nil)
	require.NotNil(t, DefaultLogger())
	assert.False(t, DefaultLogger().Enabled(context.Background(), slog.LevelError))

	custom := NewTextLogger(slog.LevelDebug)
	SetLogger(custom)
	assert.Same(t, custom, DefaultLogger())
}
