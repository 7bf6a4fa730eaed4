// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// Provides power-of-two aligned allocation on the Go heap by over-allocating
// and shifting the start of the slice.
//
// # Raw Byte Helpers
//
// Clear and Copy operate on raw pointers and are used by allocator backends
// that zero or move bytes between regions.
package mem
