package query

import "time"

// Query configuration limits.
const (
	// DefaultLimit is the default maximum number of results.
	DefaultLimit = 1000

	// MaxLimit is the maximum allowed limit.
	MaxLimit = 100_000

	// DefaultMaxDepth is the default maximum traversal depth in hops.
	DefaultMaxDepth = 6

	// MaxTraversalDepth is the maximum allowed traversal depth.
	MaxTraversalDepth = 32

	// DefaultTimeout bounds a query when the caller sets none.
	DefaultTimeout = 5 * time.Second

	// contextCheckInterval is how often the context is checked during traversal.
	contextCheckInterval = 256
)

// Options configures query behavior.
type Options struct {
	// Limit is the maximum number of results (default: 1000, max: 100000).
	Limit int

	// MaxDepth is the maximum traversal depth (default: 6, max: 32).
	MaxDepth int

	// Timeout is the per-query timeout. When it fires the partial result is
	// returned with Truncated set.
	Timeout time.Duration
}

// DefaultOptions returns the defaults used when no option is given.
func DefaultOptions() Options {
	return Options{
		Limit:    DefaultLimit,
		MaxDepth: DefaultMaxDepth,
		Timeout:  DefaultTimeout,
	}
}

// Option is a functional option for configuring queries.
type Option func(*Options)

// WithLimit sets the maximum number of results.
//
// If n <= 0, uses the default. If n > MaxLimit, clamps to MaxLimit.
func WithLimit(n int) Option {
	return func(o *Options) {
		switch {
		case n <= 0:
			o.Limit = DefaultLimit
		case n > MaxLimit:
			o.Limit = MaxLimit
		default:
			o.Limit = n
		}
	}
}

// WithMaxDepth sets the maximum traversal depth.
//
// If d <= 0, uses the default. If d > MaxTraversalDepth, clamps to it.
func WithMaxDepth(d int) Option {
	return func(o *Options) {
		switch {
		case d <= 0:
			o.MaxDepth = DefaultMaxDepth
		case d > MaxTraversalDepth:
			o.MaxDepth = MaxTraversalDepth
		default:
			o.MaxDepth = d
		}
	}
}

// WithTimeout sets the per-query timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func applyOptions(opts []Option) Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
