package untyped

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/untyped/internal/arena"
	"github.com/hupe1980/untyped/internal/mem"
	"github.com/hupe1980/untyped/internal/resource"
)

// ArenaStats is a snapshot of an Arena's memory usage.
type ArenaStats = arena.Stats

// Arena is a bump allocator over off-heap chunks. Allocation is lock-free
// and safe for concurrent use; Reset and Free are not.
//
// Deallocate only reclaims the most recent allocation. Everything else is
// reclaimed at once by Reset or Free. Grow and Shrink of the most recent
// allocation happen in place.
type Arena struct {
	arena  *arena.Arena
	budget *resource.Controller
}

var _ Allocator = (*Arena)(nil)

// NewArena creates an Arena that maps chunkSize bytes at a time. A
// chunkSize of zero selects a 1 MiB default.
func NewArena(chunkSize int, optFns ...ArenaOption) (*Arena, error) {
	opts := arenaOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &Arena{}

	var arenaOpts []arena.Option
	if opts.memoryLimit > 0 {
		a.budget = resource.NewController(resource.Config{MemoryLimitBytes: opts.memoryLimit})
		arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(a.budget))
	}

	inner, err := arena.New(chunkSize, arenaOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAlloc, err)
	}
	a.arena = inner
	return a, nil
}

// Allocate implements Allocator. The grant is exactly l.Size() bytes.
func (a *Arena) Allocate(l Layout) (unsafe.Pointer, int, error) {
	if l.size == 0 {
		return Dangling(l.align), 0, nil
	}
	ptr, err := a.arena.Alloc(l.size, l.align)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v: %w", ErrAlloc, l, err)
	}
	return ptr, l.size, nil
}

// Deallocate implements Allocator.
func (a *Arena) Deallocate(ptr unsafe.Pointer, l Layout) {
	a.arena.Release(ptr, l.size)
}

// Grow implements Allocator. The most recent allocation grows in place; any
// other is copied and its old bytes stay in the arena until Reset.
func (a *Arena) Grow(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	if a.arena.Resize(ptr, oldLayout.size, newLayout.size) {
		return ptr, newLayout.size, nil
	}
	p, n, err := a.Allocate(newLayout)
	if err != nil {
		return nil, 0, err
	}
	mem.Copy(p, ptr, oldLayout.size)
	return p, n, nil
}

// Shrink implements Allocator. Shrinking never moves.
func (a *Arena) Shrink(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	a.arena.Resize(ptr, oldLayout.size, newLayout.size)
	return ptr, newLayout.size, nil
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() ArenaStats {
	return a.arena.Stats()
}

// Reset invalidates every allocation and keeps the first chunk for reuse.
func (a *Arena) Reset() {
	a.arena.Reset()
}

// Free unmaps all chunks. The arena cannot be used afterwards.
func (a *Arena) Free() {
	a.arena.Free()
}

func (a *Arena) String() string {
	return a.arena.String()
}
