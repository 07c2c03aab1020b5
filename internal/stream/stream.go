package stream

import (
	"context"
	"io"
	"net"
)

// Conn is the minimal byte-stream connection the client needs: ordered,
// reliable reads and writes plus close. *net.UnixConn and net.Pipe both
// satisfy it, which is what makes the transport injectable in tests.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dialer opens a byte-stream connection to an address.
//
// Implement this to provide custom transports for testing, mocking, or
// alternative media. The default implementation dials a Unix domain
// socket.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// NetDialer dials through the net package. Network defaults to "unix";
// any stream-oriented network name net.Dial accepts works, e.g. "tcp".
type NetDialer struct {
	Network string
}

// Compile-time verification that NetDialer implements the Dialer interface.
var _ Dialer = (*NetDialer)(nil)

// Dial opens the connection.
func (d *NetDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	network := d.Network
	if network == "" {
		network = "unix"
	}

	var nd net.Dialer

	return nd.DialContext(ctx, network, addr)
}
