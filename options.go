package untyped

type options struct {
	cleanup bool
}

// Option configures an Allocation at construction time.
type Option func(*options)

// WithCleanup releases the allocation automatically if the handle becomes
// unreachable without Free or IntoParts having been called.
//
// The release runs on a runtime goroutine, so the allocator must be safe for
// use from another goroutine. The cleanup follows the memory across
// reallocations and is cancelled by Free and IntoParts.
//
// Example:
//
//	a := untyped.NewIn(layout, mm, untyped.WithCleanup())
func WithCleanup() Option {
	return func(o *options) {
		o.cleanup = true
	}
}

type mmapOptions struct {
	advice AccessPattern
	logger *Logger
}

// MmapOption configures an Mmap allocator.
type MmapOption func(*mmapOptions)

// WithAdvice applies an access pattern hint to every mapping.
// Hints the platform does not understand are ignored.
func WithAdvice(pattern AccessPattern) MmapOption {
	return func(o *mmapOptions) {
		o.advice = pattern
	}
}

// WithMmapLogger sets the logger for unmap failures and ignored hints.
//
// If nil is passed, DefaultLogger is used.
func WithMmapLogger(l *Logger) MmapOption {
	return func(o *mmapOptions) {
		o.logger = l
	}
}

type arenaOptions struct {
	memoryLimit int64
}

// ArenaOption configures an Arena allocator.
type ArenaOption func(*arenaOptions)

// WithArenaMemoryLimit caps the bytes an Arena maps in chunks. Once the cap
// is reached, allocations that need a new chunk fail with ErrAlloc.
func WithArenaMemoryLimit(limitBytes int64) ArenaOption {
	return func(o *arenaOptions) {
		o.memoryLimit = limitBytes
	}
}

type trackingOptions struct {
	metrics MetricsCollector
	logger  *Logger
}

// TrackingOption configures a Tracking allocator.
type TrackingOption func(*trackingOptions)

// WithMetricsCollector sets the collector that receives per-operation metrics.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) TrackingOption {
	return func(o *trackingOptions) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithTrackingLogger sets the logger for precondition violations.
//
// If nil is passed, DefaultLogger is used.
func WithTrackingLogger(l *Logger) TrackingOption {
	return func(o *trackingOptions) {
		o.logger = l
	}
}
