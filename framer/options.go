package framer

import (
	"log/slog"

	"github.com/c360/serialframe/metric"
)

// Option configures framer behavior using the functional options pattern.
type Option func(*framerOptions)

// framerOptions holds internal configuration for framer instances.
type framerOptions struct {
	delimiter   []byte
	handler     Handler
	closeSource bool
	logger      *slog.Logger

	// metricsReg is optional - if provided, framer counters are also exposed
	// as Prometheus metrics
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithDelimiter sets the record delimiter. The sequence is matched exactly
// (no escaping); an empty delimiter fails construction. Defaults to "\n".
func WithDelimiter(delim []byte) Option {
	return func(opts *framerOptions) {
		opts.delimiter = delim
	}
}

// WithHandler sets the consumer for records and overflow events. Without a
// handler the framer still counts records, it just delivers them nowhere.
func WithHandler(h Handler) Option {
	return func(opts *framerOptions) {
		opts.handler = h
	}
}

// WithCloseSource transfers source ownership: Close will also close the
// source when it implements io.Closer.
func WithCloseSource() Option {
	return func(opts *framerOptions) {
		opts.closeSource = true
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *framerOptions) {
		opts.logger = logger
	}
}

// WithMetrics enables Prometheus metrics export for framer counters.
// If registry is nil or prefix empty, this option is ignored.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(opts *framerOptions) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// applyOptions applies functional options onto the defaults.
func applyOptions(options ...Option) *framerOptions {
	opts := &framerOptions{
		delimiter: []byte{'\n'},
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
