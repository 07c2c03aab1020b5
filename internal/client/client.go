package client

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/streamrpc/msgpackrpc-go/internal/config"
	"github.com/streamrpc/msgpackrpc-go/internal/errors"
	"github.com/streamrpc/msgpackrpc-go/internal/event"
	"github.com/streamrpc/msgpackrpc-go/internal/session"
	"github.com/streamrpc/msgpackrpc-go/internal/wire"
)

// Client owns one connection lifecycle over a session.
//
// Clients are single-use: once closed, Start returns ErrClientClosed.
// Reconnecting means creating a new client.
type Client struct {
	mu      sync.Mutex
	log     *slog.Logger
	session *session.Session
	started bool
	closed  bool
}

// New creates an unconnected client. Call Start to connect.
func New() *Client {
	return &Client{}
}

// Start connects to addr and launches the reader loop.
func (c *Client) Start(ctx context.Context, addr string, opts *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.started {
		return errors.ErrAlreadyConnected
	}

	if opts == nil {
		opts = &config.Options{}
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "client")

	sess := session.New(log, opts)
	if err := sess.Start(ctx, addr); err != nil {
		return err
	}

	c.session = sess
	c.started = true

	return nil
}

// Call issues a request and blocks until its response arrives, the
// connection tears down, or ctx is cancelled.
func (c *Client) Call(ctx context.Context, method string, params []any) (*wire.Response, error) {
	sess := c.currentSession()
	if sess == nil {
		return nil, errors.ErrNotConnected
	}

	return sess.Call(ctx, method, params, true)
}

// Cast issues a request without waiting for a response. It returns as
// soon as the frame is written; no correlation entry is created.
func (c *Client) Cast(method string, params []any) error {
	sess := c.currentSession()
	if sess == nil {
		return errors.ErrNotConnected
	}

	_, err := sess.Call(context.Background(), method, params, false)

	return err
}

// Events subscribes to the connection's broadcast stream. Before Start
// the stream does not exist yet, so the returned channel is closed.
func (c *Client) Events() (<-chan event.Event, func()) {
	sess := c.currentSession()
	if sess == nil {
		ch := make(chan event.Event)
		close(ch)

		return ch, func() {}
	}

	return sess.Events().Subscribe()
}

// Done returns a channel closed when the connection tears down. Before
// Start it is already closed.
func (c *Client) Done() <-chan struct{} {
	sess := c.currentSession()
	if sess == nil {
		ch := make(chan struct{})
		close(ch)

		return ch
	}

	return sess.Done()
}

// Err returns the fatal transport or decode error that ended the
// connection, if any.
func (c *Client) Err() error {
	sess := c.currentSession()
	if sess == nil {
		return nil
	}

	return sess.Err()
}

// Close stops the connection and marks the client closed. Safe to call
// multiple times.
func (c *Client) Close() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		return nil
	}

	c.log.Debug("Closing client")

	return sess.Stop()
}

func (c *Client) currentSession() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}
