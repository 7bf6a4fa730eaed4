//go:build untyped_debug

package untyped

import "fmt"

const debugEnabled = true

func debugAssert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("untyped: assertion failed: "+format, args...))
	}
}
