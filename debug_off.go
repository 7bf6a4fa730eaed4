//go:build !untyped_debug

package untyped

const debugEnabled = false

func debugAssert(bool, string, ...any) {}
