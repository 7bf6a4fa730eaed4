package untyped

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recoverPrecondition(t *testing.T, fn func()) (perr *PreconditionError) {
	t.Helper()

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.ErrorIs(t, err, ErrPrecondition)
		require.True(t, errors.As(err, &perr))
	}()
	fn()
	return nil
}

func TestTracking_DoubleFree(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracking(Global{}, WithTrackingLogger(NewLogger(slog.NewTextHandler(&buf, nil))))

	ptr, l := NewIn(MustLayout(32, 8), tr).IntoParts()
	FromPartsIn(ptr, l, tr).Free()
	assert.Zero(t, tr.Live())

	perr := recoverPrecondition(t, func() {
		FromPartsIn(ptr, l, tr).Free()
	})
	assert.Equal(t, "deallocate", perr.Op)
	assert.Equal(t, uintptr(ptr), perr.Ptr)
	assert.Equal(t, l, perr.Layout)

	out := buf.String()
	assert.Contains(t, out, "allocator precondition violated")
	assert.Contains(t, out, "op=deallocate")
	assert.Contains(t, out, fmt.Sprintf("ptr=%#x", uintptr(ptr)))
}

func TestTracking_ResizeForeignPointer(t *testing.T) {
	tr := NewTracking(Global{}, WithTrackingLogger(NoopLogger()))

	var x [16]byte
	h := FromPartsIn(unsafe.Pointer(&x), MustLayout(16, 1), tr)

	perr := recoverPrecondition(t, func() {
		h.Realloc(MustLayout(64, 1))
	})
	assert.Equal(t, "grow", perr.Op)

	perr = recoverPrecondition(t, func() {
		h.Realloc(MustLayout(8, 1))
	})
	assert.Equal(t, "shrink", perr.Op)
}

func TestTracking_Metrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	tr := NewTracking(Global{}, WithMetricsCollector(mc))

	a := NewIn(MustLayout(100, 8), tr)
	b := ZeroedIn(MustLayout(50, 8), tr)
	a.Realloc(MustLayout(200, 8))
	a.Realloc(MustLayout(120, 8))
	b.Free()

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.AllocateCount)
	assert.Zero(t, stats.AllocateErrors)
	assert.Equal(t, int64(1), stats.GrowCount)
	assert.Equal(t, int64(1), stats.ShrinkCount)
	assert.Equal(t, int64(1), stats.DeallocateCount)
	assert.Equal(t, int64(120), stats.BytesOutstanding())

	a.Free()
	assert.Zero(t, mc.GetStats().BytesOutstanding())
	assert.Zero(t, tr.Live())
}

func TestTracking_MetricsRecordFailures(t *testing.T) {
	mc := &BasicMetricsCollector{}
	tr := NewTracking(NewBudget(Global{}, 64), WithMetricsCollector(mc))

	_, err := TryNewIn(MustLayout(128, 8), tr)
	require.ErrorIs(t, err, ErrAlloc)

	h := NewIn(MustLayout(32, 8), tr)
	defer h.Free()
	require.ErrorIs(t, h.TryRealloc(MustLayout(128, 8)), ErrAlloc)

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.AllocateCount)
	assert.Equal(t, int64(1), stats.AllocateErrors)
	assert.Equal(t, int64(1), stats.GrowErrors)
	assert.Equal(t, uint64(1), tr.Live())
}

func TestTracking_LiveAddresses(t *testing.T) {
	tr := NewTracking(Global{})

	var handles []*Allocation[*Tracking[Global]]
	var want []uintptr
	for range 5 {
		h := NewIn(MustLayout(24, 8), tr)
		handles = append(handles, h)
		want = append(want, uintptr(h.Ptr()))
	}
	slices.Sort(want)

	got := slices.Collect(tr.LiveAddresses())
	assert.Equal(t, want, got)
	assert.True(t, tr.IsLive(handles[0].Ptr()))

	// Releasing during iteration works on the snapshot.
	n := 0
	for range tr.LiveAddresses() {
		handles[n].Free()
		n++
	}
	assert.Equal(t, 5, n)
	assert.Zero(t, tr.Live())
	assert.Equal(t, "Tracking{live: 0}", tr.String())
}

func TestTracking_ZeroSizeIsNotTracked(t *testing.T) {
	tr := NewTracking(Global{})

	h := NewIn(MustLayout(0, 16), tr)
	assert.Zero(t, tr.Live())
	h.Free()
	assert.Zero(t, tr.Live())
}
