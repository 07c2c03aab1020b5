package msgpackrpc

import (
	"context"
	"fmt"
)

// WithClient manages client lifecycle with automatic cleanup.
//
// This helper creates a client, connects it to addr with the provided
// options, executes the callback, and ensures Close() runs when done.
//
// The callback receives a connected Client ready for use. If the
// callback returns an error, it is returned to the caller. If Close()
// fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := msgpackrpc.WithClient(ctx, "/tmp/nvim.sock", func(c msgpackrpc.Client) error {
//	    resp, err := c.Call(ctx, "nvim_get_api_info")
//	    if err != nil {
//	        return err
//	    }
//	    // process resp.Result...
//	    return nil
//	},
//	    msgpackrpc.WithLogger(log),
//	)
func WithClient(ctx context.Context, addr string, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient()
	if err := client.Start(ctx, addr, opts...); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close client", "error", closeErr)
		}
	}()

	return fn(client)
}
