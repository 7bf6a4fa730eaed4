package untyped

import (
	"context"
	"sync/atomic"
)

var allocErrorHandler atomic.Pointer[func(Layout)]

// SetAllocErrorHandler installs h as the handler invoked by
// HandleAllocError and returns the previously installed handler. A nil
// handler restores the default, which logs the failure through
// DefaultLogger.
//
// Handlers may exit the process or panic themselves. If a handler returns,
// HandleAllocError panics with an *OutOfMemoryError.
func SetAllocErrorHandler(h func(Layout)) func(Layout) {
	var next *func(Layout)
	if h != nil {
		next = &h
	}
	prev := allocErrorHandler.Swap(next)
	if prev == nil {
		return nil
	}
	return *prev
}

// HandleAllocError reports a failed allocation of l and never returns. It is
// called by every constructor and method that has no error return, such as
// New, NewIn and Realloc.
func HandleAllocError(l Layout) {
	if h := allocErrorHandler.Load(); h != nil {
		(*h)(l)
	} else {
		defaultAllocErrorHandler(l)
	}
	panic(&OutOfMemoryError{Layout: l})
}

func defaultAllocErrorHandler(l Layout) {
	DefaultLogger().LogAllocFailure(context.Background(), l, ErrAlloc)
}
