package msgpackrpc

import (
	"github.com/streamrpc/msgpackrpc-go/internal/event"
	"github.com/streamrpc/msgpackrpc-go/internal/stream"
	"github.com/streamrpc/msgpackrpc-go/internal/wire"
)

// Response is the result of one call: the identifier assigned to the
// call, the peer-reported error value (nil on success), and the result
// value. A neutral response, with both Error and Result nil, resolves
// calls that will never receive a real response.
type Response = wire.Response

// Event is implemented by every value delivered on the Events stream.
type Event = event.Event

// Notification is an unsolicited method invocation pushed by the peer.
type Notification = event.Notification

// ProtocolError is a protocol-level anomaly observed on the connection.
type ProtocolError = event.ProtocolError

// ResponseEvent mirrors a correlated response onto the Events stream
// when WithResponseEvents is enabled.
type ResponseEvent = event.Response

// Conn is the minimal byte-stream connection the client needs.
type Conn = stream.Conn

// Dialer opens a byte-stream connection to an address. Implement this to
// provide custom transports for testing, mocking, or alternative media.
type Dialer = stream.Dialer
