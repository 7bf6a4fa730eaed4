// Package arena provides a chunked bump allocator over off-heap memory.
//
// # Concurrency Model
//
// Arena supports concurrent allocations (Alloc, Resize, Release) but does NOT
// support concurrent Reset/Free operations. The typical usage pattern is:
//   - Create arena for a phase of work
//   - Allocate from multiple goroutines (SAFE)
//   - Call Reset() between phases, Free() once at the end (NOT concurrent
//     with allocations)
//
// # Memory Management
//
// Arena maps memory in large chunks (1 MiB default) and uses lock-free CAS for
// fast allocation. Memory is not returned to the OS until Free() is called.
// Only the most recent allocation of the current chunk can be resized in
// place or handed back early.
package arena

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/untyped/internal/conv"
	"github.com/hupe1980/untyped/internal/mem"
	"github.com/hupe1980/untyped/internal/mmap"
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrMaxChunksExceeded is returned when the arena exceeds the maximum number of chunks.
	ErrMaxChunksExceeded = errors.New("arena: max chunks exceeded")
	// ErrClosed is returned when allocating from an arena after Free.
	ErrClosed = errors.New("arena: arena is closed")
)

const (
	// DefaultChunkSize is the default size of a chunk (1MB).
	DefaultChunkSize = 1024 * 1024
	// DefaultAlignment is the default memory alignment (8 bytes).
	DefaultAlignment = 8
	// MaxChunks limits the number of chunks to prevent excessive memory usage.
	MaxChunks = 65536
)

// Stats tracks arena memory usage metrics.
//
// Note on semantics:
//   - BytesReserved: total memory mapped from the OS
//   - BytesUsed: bytes handed out by allocations (before alignment)
//   - BytesWasted: padding added for alignment
//   - ActiveChunks: number of chunks currently held
//   - TotalAllocs: cumulative allocation count
//   - InPlaceResizes: cumulative count of successful Resize calls
type Stats struct {
	ChunksAllocated uint64 // Historical: total chunks ever created
	BytesReserved   uint64 // Current: total memory reserved
	BytesUsed       uint64 // Current: actual bytes used
	BytesWasted     uint64 // Current: alignment padding
	ActiveChunks    uint64 // Current: active chunk count
	TotalAllocs     uint64 // Historical: total allocations
	InPlaceResizes  uint64 // Historical: in-place grow/shrink count
}

type atomicStats struct {
	ChunksAllocated atomic.Uint64
	BytesReserved   atomic.Uint64
	BytesUsed       atomic.Int64
	BytesWasted     atomic.Uint64
	ActiveChunks    atomic.Uint64
	TotalAllocs     atomic.Uint64
	InPlaceResizes  atomic.Uint64
}

type chunk struct {
	data    []byte
	mapping *mmap.Mapping
	base    uintptr
	offset  atomic.Int64 // MUST be atomic - accessed concurrently without locks
}

func (c *chunk) ptrAt(off int64) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(&c.data[0]), off) //nolint:gosec // unsafe is required for arena implementation
}

// offsetOf returns the chunk offset of ptr, or -1 if ptr is outside the chunk.
func (c *chunk) offsetOf(ptr unsafe.Pointer) int64 {
	p := uintptr(ptr)
	if p < c.base || p >= c.base+uintptr(len(c.data)) {
		return -1
	}
	return int64(p - c.base)
}

// Arena is a memory arena allocator.
type Arena struct {
	chunkSize int
	chunks    []*chunk // protected by mu
	current   atomic.Pointer[chunk]
	mu        sync.Mutex
	stats     atomicStats
	acquirer  MemoryAcquirer
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory acquirer for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates a new Arena with the given chunk size.
func New(chunkSize int, opts ...Option) (*Arena, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	// Round up to next power of 2, and to at least one page.
	chunkSize = 1 << bits.Len(uint(chunkSize-1)) //nolint:gosec // chunkSize > 0
	if page := mmap.PageSize(); chunkSize < page {
		chunkSize = page
	}

	a := &Arena{
		chunkSize: chunkSize,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	c, err := a.mapChunkLocked(chunkSize)
	if err != nil {
		return nil, err
	}
	a.current.Store(c)
	return a, nil
}

// ChunkSize returns the size of regular chunks.
func (a *Arena) ChunkSize() int {
	return a.chunkSize
}

func (a *Arena) mapChunkLocked(size int) (*chunk, error) {
	if len(a.chunks) >= MaxChunks {
		return nil, ErrMaxChunksExceeded
	}

	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(int64(size)); err != nil {
			return nil, err
		}
	}

	// Use off-heap anonymous mapping to avoid GC pressure.
	mapping, err := mmap.MapAnon(size)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(size))
		}
		return nil, fmt.Errorf("failed to map anonymous memory for chunk: %w", err)
	}

	data := mapping.Bytes()
	c := &chunk{
		data:    data,
		mapping: mapping,
		base:    uintptr(unsafe.Pointer(&data[0])), //nolint:gosec // address arithmetic only
	}
	a.chunks = append(a.chunks, c)

	a.stats.ChunksAllocated.Add(1)
	a.stats.BytesReserved.Add(uint64(len(data)))
	a.stats.ActiveChunks.Add(1)

	return c, nil
}

func (a *Arena) unmapChunkLocked(c *chunk) {
	size := len(c.data)
	_ = c.mapping.Close()
	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(int64(size))
	}
	a.stats.BytesReserved.Add(^uint64(size - 1))
	a.stats.ActiveChunks.Add(^uint64(0))
}

// Alloc allocates size bytes aligned to align and returns a pointer to them.
// Memory handed out by a fresh chunk reads as zero; memory reused after
// Reset or Release does not.
func (a *Arena) Alloc(size, align int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, nil
	}
	if align <= 0 {
		align = DefaultAlignment
	}

	need, err := conv.AddInt(size, align-1)
	if err != nil {
		return nil, err
	}
	if need > a.chunkSize {
		return a.allocLarge(size, align, need)
	}

	for {
		curr := a.current.Load()
		if curr == nil {
			return nil, ErrClosed
		}

		if ptr, ok := a.tryAllocInChunk(curr, size, align); ok {
			return ptr, nil
		}

		// Current chunk is full. Check if someone else already mapped a new one.
		if a.current.Load() != curr {
			continue
		}

		a.mu.Lock()
		// Double check under lock
		if a.current.Load() != curr {
			a.mu.Unlock()
			continue
		}

		next, err := a.mapChunkLocked(a.chunkSize)
		if err != nil {
			a.mu.Unlock()
			return nil, err
		}
		a.current.Store(next)
		a.mu.Unlock()
	}
}

func (a *Arena) tryAllocInChunk(c *chunk, size, align int) (unsafe.Pointer, bool) {
	for {
		oldOffset := c.offset.Load()
		pad := mem.Padding(c.base+uintptr(oldOffset), align)
		newOffset := oldOffset + int64(pad+size)

		if newOffset > int64(len(c.data)) {
			return nil, false
		}

		if !c.offset.CompareAndSwap(oldOffset, newOffset) {
			continue
		}

		a.stats.BytesUsed.Add(int64(size))
		a.stats.BytesWasted.Add(uint64(pad))
		a.stats.TotalAllocs.Add(1)

		return c.ptrAt(oldOffset + int64(pad)), true
	}
}

// allocLarge maps a dedicated chunk for requests that do not fit a regular one.
func (a *Arena) allocLarge(size, align, need int) (unsafe.Pointer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current.Load() == nil {
		return nil, ErrClosed
	}

	c, err := a.mapChunkLocked(need)
	if err != nil {
		return nil, err
	}

	pad := mem.Padding(c.base, align)
	c.offset.Store(int64(pad + size))

	a.stats.BytesUsed.Add(int64(size))
	a.stats.BytesWasted.Add(uint64(pad))
	a.stats.TotalAllocs.Add(1)

	return c.ptrAt(int64(pad)), nil
}

// Resize changes the size of the allocation at ptr from oldSize to newSize
// without moving it. It succeeds only for the most recent allocation of the
// current chunk and only when the chunk has room for newSize.
func (a *Arena) Resize(ptr unsafe.Pointer, oldSize, newSize int) bool {
	curr := a.current.Load()
	if curr == nil {
		return false
	}
	start := curr.offsetOf(ptr)
	if start < 0 {
		return false
	}

	oldEnd := start + int64(oldSize)
	newEnd := start + int64(newSize)
	if newEnd > int64(len(curr.data)) {
		return false
	}
	if !curr.offset.CompareAndSwap(oldEnd, newEnd) {
		return false
	}

	a.stats.BytesUsed.Add(int64(newSize - oldSize))
	a.stats.InPlaceResizes.Add(1)
	return true
}

// Release hands back the allocation at ptr if it is the most recent one of
// the current chunk. Other allocations are reclaimed by Reset or Free.
func (a *Arena) Release(ptr unsafe.Pointer, size int) bool {
	curr := a.current.Load()
	if curr == nil {
		return false
	}
	start := curr.offsetOf(ptr)
	if start < 0 {
		return false
	}
	if !curr.offset.CompareAndSwap(start+int64(size), start) {
		return false
	}
	a.stats.BytesUsed.Add(-int64(size))
	return true
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	used, _ := conv.Int64ToUint64(a.stats.BytesUsed.Load())
	return Stats{
		ChunksAllocated: a.stats.ChunksAllocated.Load(),
		BytesReserved:   a.stats.BytesReserved.Load(),
		BytesUsed:       used,
		BytesWasted:     a.stats.BytesWasted.Load(),
		ActiveChunks:    a.stats.ActiveChunks.Load(),
		TotalAllocs:     a.stats.TotalAllocs.Load(),
		InPlaceResizes:  a.stats.InPlaceResizes.Load(),
	}
}

// Free unmaps all arena memory.
//
// IMPORTANT:
//  1. Do NOT call Free concurrently with allocations
//  2. All pointers handed out by this arena become invalid after Free
//
// After Free(), the arena cannot be reused. Create a new arena instead.
func (a *Arena) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.current.Store(nil)
	for _, c := range a.chunks {
		a.unmapChunkLocked(c)
	}
	a.chunks = nil

	a.stats.BytesUsed.Store(0)
	a.stats.BytesWasted.Store(0)
}

// Reset clears all allocations and unmaps extra chunks, keeping only the first chunk.
//
// IMPORTANT:
//  1. Do NOT call Reset concurrently with allocations
//  2. All pointers handed out before Reset become invalid
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.chunks) == 0 {
		return
	}

	first := a.chunks[0]
	for _, c := range a.chunks[1:] {
		a.unmapChunkLocked(c)
	}
	a.chunks = a.chunks[:1]

	first.offset.Store(0)
	a.current.Store(first)

	// Clear usage stats (historical counts like ChunksAllocated/TotalAllocs unchanged)
	a.stats.BytesUsed.Store(0)
	a.stats.BytesWasted.Store(0)
}

// Usage returns the memory usage percentage.
func (a *Arena) Usage() float64 {
	stats := a.Stats()
	if stats.BytesReserved == 0 {
		return 0
	}
	return float64(stats.BytesUsed) / float64(stats.BytesReserved) * 100
}

func (a *Arena) String() string {
	stats := a.Stats()
	return fmt.Sprintf(
		"Arena{chunks: %d, reserved: %.2f MB, used: %.2f MB, wasted: %.2f KB, usage: %.1f%%, allocs: %d}",
		stats.ActiveChunks,
		float64(stats.BytesReserved)/(1024*1024),
		float64(stats.BytesUsed)/(1024*1024),
		float64(stats.BytesWasted)/1024,
		a.Usage(),
		stats.TotalAllocs,
	)
}
