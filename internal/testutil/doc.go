// Package testutil provides testing utilities for untyped.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe random source for generating
// allocation sizes, alignments and byte patterns.
//
// # Random Requests
//
//	rng := testutil.NewRNG(seed)
//	size := rng.Size(4096)      // [0, 4096]
//	align := rng.Align(12)      // power of two in [1, 4096]
//	rng.FillBytes(buf)          // random payload
package testutil
