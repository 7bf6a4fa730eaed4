package untyped

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/hupe1980/untyped/internal/conv"
	"github.com/hupe1980/untyped/internal/mem"
	"github.com/hupe1980/untyped/internal/mmap"
)

// AccessPattern is a paging hint applied to every mapping of an Mmap
// allocator.
type AccessPattern = mmap.AccessPattern

// Access patterns accepted by WithAdvice.
const (
	AccessDefault    = mmap.AccessDefault
	AccessSequential = mmap.AccessSequential
	AccessRandom     = mmap.AccessRandom
	AccessWillNeed   = mmap.AccessWillNeed
)

// Mmap allocates every request as its own anonymous memory mapping outside
// the Go heap. It is safe for concurrent use.
//
// Grants are whole pages and are reported as such, so an Allocation backed
// by Mmap usually has a larger layout than requested. Alignments above the
// page size are served by over-mapping. Grow and Shrink stay in place while
// the mapping covers the new size.
type Mmap struct {
	mu     sync.Mutex
	live   map[uintptr]*mmapRegion
	advice AccessPattern
	logger *Logger
	closed bool
}

type mmapRegion struct {
	mapping *mmap.Mapping
	offset  int
}

// usable returns the number of bytes from the aligned start to the end of
// the mapping.
func (r *mmapRegion) usable() int {
	return r.mapping.Size() - r.offset
}

var _ ZeroAllocator = (*Mmap)(nil)

// NewMmap creates an Mmap allocator.
func NewMmap(optFns ...MmapOption) *Mmap {
	opts := mmapOptions{
		advice: AccessDefault,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.logger == nil {
		opts.logger = DefaultLogger()
	}
	return &Mmap{
		live:   make(map[uintptr]*mmapRegion),
		advice: opts.advice,
		logger: opts.logger,
	}
}

func (m *Mmap) mapRegion(l Layout) (*mmapRegion, error) {
	page := mmap.PageSize()
	size := l.size
	if l.align > page {
		var err error
		if size, err = conv.AddInt(size, l.align-page); err != nil {
			return nil, fmt.Errorf("%w: %v: %w", ErrAlloc, l, err)
		}
	}

	mapping, err := mmap.MapAnon(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrAlloc, l, err)
	}
	if m.advice != AccessDefault {
		if err := mapping.Advise(m.advice); err != nil {
			m.logger.DebugContext(context.Background(), "mmap advice ignored", "error", err)
		}
	}

	data := mapping.Bytes()
	base := unsafe.Pointer(unsafe.SliceData(data))
	return &mmapRegion{
		mapping: mapping,
		offset:  mem.Padding(uintptr(base), l.align),
	}, nil
}

func (r *mmapRegion) ptr() unsafe.Pointer {
	return unsafe.Pointer(&r.mapping.Bytes()[r.offset])
}

func (m *Mmap) register(r *mmapRegion) (unsafe.Pointer, error) {
	ptr := r.ptr()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		_ = r.mapping.Close()
		return nil, fmt.Errorf("%w: %w", ErrAlloc, mmap.ErrClosed)
	}
	m.live[uintptr(ptr)] = r
	return ptr, nil
}

func (m *Mmap) lookup(ptr unsafe.Pointer) *mmapRegion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[uintptr(ptr)]
}

// Allocate implements Allocator. Fresh mappings read as zero.
func (m *Mmap) Allocate(l Layout) (unsafe.Pointer, int, error) {
	if l.size == 0 {
		return Dangling(l.align), 0, nil
	}
	r, err := m.mapRegion(l)
	if err != nil {
		return nil, 0, err
	}
	ptr, err := m.register(r)
	if err != nil {
		return nil, 0, err
	}
	return ptr, r.usable(), nil
}

// AllocateZeroed implements ZeroAllocator.
func (m *Mmap) AllocateZeroed(l Layout) (unsafe.Pointer, int, error) {
	return m.Allocate(l)
}

// Deallocate implements Allocator by unmapping the region.
func (m *Mmap) Deallocate(ptr unsafe.Pointer, _ Layout) {
	m.release(ptr)
}

// release unmaps the region starting at ptr and reports whether there was
// one.
func (m *Mmap) release(ptr unsafe.Pointer) bool {
	m.mu.Lock()
	r, ok := m.live[uintptr(ptr)]
	delete(m.live, uintptr(ptr))
	m.mu.Unlock()

	if !ok {
		return false
	}
	if err := r.mapping.Close(); err != nil {
		m.logger.ErrorContext(context.Background(), "munmap failed", "ptr", fmt.Sprintf("%p", ptr), "error", err)
	}
	return true
}

// Grow implements Allocator.
func (m *Mmap) Grow(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return m.grow(ptr, oldLayout, newLayout, false)
}

// GrowZeroed implements ZeroAllocator. Only bytes that may have been written
// before are cleared; fresh mappings are already zero.
func (m *Mmap) GrowZeroed(ptr unsafe.Pointer, oldLayout, newLayout Layout) (unsafe.Pointer, int, error) {
	return m.grow(ptr, oldLayout, newLayout, true)
}

func (m *Mmap) grow(ptr unsafe.Pointer, oldLayout, newLayout Layout, zeroed bool) (unsafe.Pointer, int, error) {
	r := m.lookup(ptr)
	if r == nil {
		return nil, 0, fmt.Errorf("%w: grow of unknown mapping %p", ErrAlloc, ptr)
	}
	if newLayout.size <= r.usable() {
		if zeroed {
			mem.Clear(unsafe.Add(ptr, oldLayout.size), newLayout.size-oldLayout.size)
		}
		return ptr, r.usable(), nil
	}

	p, n, err := m.Allocate(newLayout)
	if err != nil {
		return nil, 0, err
	}
	mem.Copy(p, ptr, oldLayout.size)
	m.Deallocate(ptr, oldLayout)
	return p, n, nil
}

// Shrink implements Allocator. Mappings are never shrunk; the full mapping
// stays granted.
func (m *Mmap) Shrink(ptr unsafe.Pointer, _, _ Layout) (unsafe.Pointer, int, error) {
	r := m.lookup(ptr)
	if r == nil {
		return nil, 0, fmt.Errorf("%w: shrink of unknown mapping %p", ErrAlloc, ptr)
	}
	return ptr, r.usable(), nil
}

// Live returns the number of outstanding mappings.
func (m *Mmap) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Close unmaps every outstanding mapping. Memory handed out earlier becomes
// invalid and further allocations fail.
func (m *Mmap) Close() error {
	m.mu.Lock()
	regions := m.live
	m.live = make(map[uintptr]*mmapRegion)
	m.closed = true
	m.mu.Unlock()

	var firstErr error
	for _, r := range regions {
		if err := r.mapping.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Mmap) String() string {
	return fmt.Sprintf("Mmap{live: %d}", m.Live())
}
