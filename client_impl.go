package msgpackrpc

import (
	"context"

	"github.com/streamrpc/msgpackrpc-go/internal/client"
)

// clientWrapper adapts the internal client to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

// Start connects to addr and launches the reader loop.
func (c *clientWrapper) Start(ctx context.Context, addr string, opts ...Option) error {
	return c.impl.Start(ctx, addr, applyOptions(opts))
}

// Call invokes method on the peer and waits for the matching response.
func (c *clientWrapper) Call(ctx context.Context, method string, params ...any) (*Response, error) {
	return c.impl.Call(ctx, method, params)
}

// Cast invokes method without expecting a response.
func (c *clientWrapper) Cast(method string, params ...any) error {
	return c.impl.Cast(method, params)
}

// Events subscribes to the connection's broadcast stream.
func (c *clientWrapper) Events() (<-chan Event, func()) {
	return c.impl.Events()
}

// Done returns a channel closed when the connection tears down.
func (c *clientWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

// Err returns the fatal error that ended the connection, if any.
func (c *clientWrapper) Err() error {
	return c.impl.Err()
}

// Close stops the connection and marks the client closed.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
