package event

// Event is implemented by every value delivered on the broadcast stream.
type Event interface {
	isEvent()
}

// Compile-time verification that all event types implement Event.
var (
	_ Event = (*Notification)(nil)
	_ Event = (*ProtocolError)(nil)
	_ Event = (*Response)(nil)
)

// Notification is an unsolicited method invocation pushed by the peer.
type Notification struct {
	Method string
	Params []any
}

func (*Notification) isEvent() {}

// ProtocolError is a protocol-level anomaly observed on the connection:
// a malformed frame, an unexpected inbound request, a connect or write
// failure, a lost connection, or an undecodable byte stream. Raw carries
// the offending decoded value when one exists.
type ProtocolError struct {
	Raw any
	Err error
}

func (*ProtocolError) isEvent() {}

// Response mirrors a correlated response onto the stream. It is only
// published when response mirroring is enabled.
type Response struct {
	ID     uint32
	Error  any
	Result any
}

func (*Response) isEvent() {}
