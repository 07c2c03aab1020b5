// Package msgpackrpc provides a client-side msgpack-rpc transport over a
// byte-stream socket.
//
// A Client multiplexes asynchronous remote procedure calls over one
// connection (a Unix domain socket by default), matches each response to
// the call that produced it regardless of arrival order, and broadcasts
// unsolicited notifications and protocol errors to any number of
// observers.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	client := msgpackrpc.NewClient()
//	defer client.Close()
//
//	if err := client.Start(ctx, "/tmp/nvim.sock"); err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Call(ctx, "nvim_eval", "2+2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if resp.Error != nil {
//	    log.Fatalf("peer error: %v", resp.Error)
//	}
//	fmt.Println(resp.Result)
//
// Calls issued concurrently from multiple goroutines share the
// connection safely; responses resolve in whatever order the peer emits
// them, matched purely by identifier.
//
// # Notifications and Events
//
// The peer can push notifications at any time. Subscribe to the event
// stream to observe them, along with protocol-level errors:
//
//	events, cancel := client.Events()
//	defer cancel()
//
//	for ev := range events {
//	    switch e := ev.(type) {
//	    case *msgpackrpc.Notification:
//	        fmt.Println("notification:", e.Method, e.Params)
//	    case *msgpackrpc.ProtocolError:
//	        fmt.Println("protocol error:", e.Err)
//	    }
//	}
//
// The channel closes when the connection stops. With
// WithResponseEvents(true), successful responses are mirrored onto the
// stream as *ResponseEvent values as well.
//
// # Lifecycle
//
// Clients are single-use: Close tears the connection down, resolves any
// still-pending calls with a neutral response so no caller hangs, and
// completes the event stream. Reconnecting means creating a new client.
// A connection can also end on its own when the transport fails or the
// inbound stream cannot be decoded; Done() signals this and Err()
// reports the cause.
//
// # Logging
//
// For detailed operation tracking, pass a logger at Start:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	err := client.Start(ctx, addr, msgpackrpc.WithLogger(logger))
//
// By default logging is disabled.
package msgpackrpc
