// Package config provides configuration types shared across the client.
package config

import (
	"log/slog"

	"github.com/streamrpc/msgpackrpc-go/internal/stream"
)

// Options configures a client connection.
type Options struct {
	// Logger receives debug output. Nil means silent operation.
	Logger *slog.Logger

	// Dialer opens the byte-stream connection. Nil selects the default
	// Unix domain socket dialer.
	Dialer stream.Dialer

	// ResponseEvents mirrors every correlated response onto the event
	// stream in addition to resolving its caller.
	ResponseEvents bool

	// ReadBufferSize is the size of the reader loop's reusable buffer.
	// Zero selects the default.
	ReadBufferSize int

	// EventBufferSize is the per-subscriber event channel buffer.
	// Zero selects the default.
	EventBufferSize int
}
