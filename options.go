package msgpackrpc

import (
	"log/slog"

	"github.com/streamrpc/msgpackrpc-go/internal/config"
	"github.com/streamrpc/msgpackrpc-go/internal/stream"
)

// Options holds the connection configuration. Use the With... functions
// rather than constructing it directly.
type Options = config.Options

// Option configures a connection using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDialer injects a custom byte-stream dialer. The default dials a
// Unix domain socket at the address passed to Start.
func WithDialer(dialer Dialer) Option {
	return func(o *Options) {
		o.Dialer = dialer
	}
}

// WithNetwork selects the network for the default dialer, e.g. "tcp".
// The default is "unix". Ignored when WithDialer is used.
func WithNetwork(network string) Option {
	return func(o *Options) {
		o.Dialer = &stream.NetDialer{Network: network}
	}
}

// WithResponseEvents mirrors every correlated response onto the Events
// stream in addition to resolving its caller. Off by default.
func WithResponseEvents(enabled bool) Option {
	return func(o *Options) {
		o.ResponseEvents = enabled
	}
}

// WithReadBufferSize sets the reader loop's buffer size in bytes.
// The default is 4096.
func WithReadBufferSize(size int) Option {
	return func(o *Options) {
		o.ReadBufferSize = size
	}
}

// WithEventBufferSize sets the per-subscriber event channel buffer.
// Events that do not fit a subscriber's buffer are dropped for that
// subscriber. The default is 64.
func WithEventBufferSize(size int) Option {
	return func(o *Options) {
		o.EventBufferSize = size
	}
}
