// Package mmap provides anonymous memory mappings for off-heap allocation.
//
// # Overview
//
// Anonymous mappings hand out page-granular, read-write memory that lives
// outside the Go heap. The garbage collector never scans or moves it, so raw
// pointers into a mapping stay valid until the mapping is closed.
//
// # Usage
//
//	m, err := mmap.MapAnon(64 << 10)
//	if err != nil { ... }
//	defer m.Close()
//
//	buf := m.Bytes()
//
//	// Provide kernel hints for access patterns
//	m.Advise(mmap.AccessSequential)
//
// # Platform Support
//
// The package provides a unified API across platforms:
//
//   - Unix (Linux, macOS, BSD): Uses mmap(2) with madvise(2) for access hints
//   - Windows: Uses VirtualAlloc/VirtualFree (madvise is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by atomic operations. Callers must
// ensure no goroutine touches Bytes() after Close() returns.
package mmap
