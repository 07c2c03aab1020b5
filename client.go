package msgpackrpc

import (
	"context"
)

// Client is a msgpack-rpc connection to a remote peer.
//
// One client multiplexes any number of concurrent calls over a single
// byte-stream connection and delivers unsolicited notifications and
// protocol errors through the Events stream.
//
// Lifecycle: clients are single-use. After Close(), create a new client
// with NewClient().
//
// Example usage:
//
//	client := msgpackrpc.NewClient()
//	defer client.Close()
//
//	if err := client.Start(ctx, "/tmp/nvim.sock"); err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Call(ctx, "nvim_eval", "1+1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Result)
//
//	events, cancel := client.Events()
//	defer cancel()
//	for ev := range events {
//	    if n, ok := ev.(*msgpackrpc.Notification); ok {
//	        // handle n.Method, n.Params
//	    }
//	}
type Client interface {
	// Start connects to addr and launches the reader loop.
	// Must be called before Call, Cast, or Events.
	// Returns ErrAlreadyConnected if already running, ErrClientClosed
	// after Close, or a ConnectError if the connection cannot be opened.
	Start(ctx context.Context, addr string, opts ...Option) error

	// Call invokes method on the peer and blocks until the matching
	// response arrives, the connection tears down (neutral response, nil
	// error), or ctx is cancelled. Peer-reported failures are carried in
	// Response.Error; the returned error covers transport failures only.
	Call(ctx context.Context, method string, params ...any) (*Response, error)

	// Cast invokes method without expecting a response. It returns as
	// soon as the request frame is written.
	Cast(method string, params ...any) error

	// Events subscribes to the connection's broadcast stream of
	// notifications, protocol errors, and (with WithResponseEvents)
	// mirrored responses. The channel closes when the connection stops;
	// the returned function cancels the subscription.
	Events() (<-chan Event, func())

	// Done returns a channel closed when the connection tears down,
	// whether by Close or by transport failure.
	Done() <-chan struct{}

	// Err returns the fatal transport or decode error that ended the
	// connection, if any. Nil after a clean Close.
	Err() error

	// Close stops the connection: completes the event stream, resolves
	// all pending calls neutrally, and closes the socket. Safe to call
	// multiple times. The client cannot be reused afterwards.
	Close() error
}

// NewClient creates a new, unconnected client.
//
// Call Start with options to connect:
//
//	client := msgpackrpc.NewClient()
//	err := client.Start(ctx, "/tmp/nvim.sock",
//	    msgpackrpc.WithLogger(slog.Default()),
//	    msgpackrpc.WithResponseEvents(true),
//	)
func NewClient() Client {
	return newClientImpl()
}
