package wire

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/streamrpc/msgpackrpc-go/internal/errors"
)

// msgpack-rpc frame type tags, the first element of every frame array.
const (
	TypeRequest      = 0
	TypeResponse     = 1
	TypeNotification = 2
)

// Response is a decoded response frame: [1, id, error, result].
// Error is the peer-reported error value and is nil on success.
type Response struct {
	ID     uint32
	Error  any
	Result any
}

// Notification is a decoded notification frame: [2, method, params].
type Notification struct {
	Method string
	Params []any
}

// Request is a decoded inbound request frame. The client never acts on
// these; the type exists so callers can report the anomaly with context.
type Request struct {
	ID     uint32
	Method string
}

// EncodeRequest encodes a request frame [0, id, method, params] to
// MessagePack bytes. A nil params slice is encoded as an empty array, as
// the wire format requires params to always be an array.
func EncodeRequest(id uint32, method string, params []any) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeArrayLen(4); err != nil {
		return nil, fmt.Errorf("encode frame header: %w", err)
	}

	if err := enc.EncodeInt(TypeRequest); err != nil {
		return nil, fmt.Errorf("encode type tag: %w", err)
	}

	if err := enc.EncodeUint(uint64(id)); err != nil {
		return nil, fmt.Errorf("encode call id: %w", err)
	}

	if err := enc.EncodeString(method); err != nil {
		return nil, fmt.Errorf("encode method: %w", err)
	}

	if params == nil {
		params = []any{}
	}

	if err := enc.Encode(params); err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeAll decodes every complete MessagePack value present in buf.
//
// It returns the decoded values and the number of bytes consumed. A
// trailing partial value is not an error: decoding stops at the last
// complete value so the caller can retain the tail and retry once more
// bytes arrive. Any other decode failure returns a DecodeError alongside
// the values decoded before the corruption.
func DecodeAll(buf []byte) ([]any, int, error) {
	var values []any

	reader := bytes.NewReader(buf)
	dec := msgpack.NewDecoder(reader)
	consumed := 0

	for reader.Len() > 0 {
		value, err := dec.DecodeInterface()
		if err != nil {
			if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
				// Partial frame; wait for more bytes.
				return values, consumed, nil
			}

			return values, consumed, &errors.DecodeError{Err: err}
		}

		consumed = len(buf) - reader.Len()
		values = append(values, value)
	}

	return values, consumed, nil
}

// ParseFrame classifies a decoded value as one of the three frame shapes.
//
// It returns *Response, *Notification, or *Request on success. A value
// that is not an array, has an unknown type tag, or has the wrong element
// count or element types for its tag yields a MalformedFrameError.
func ParseFrame(value any) (any, error) {
	elems, ok := value.([]any)
	if !ok {
		return nil, &errors.MalformedFrameError{Reason: "frame is not an array"}
	}

	if len(elems) == 0 {
		return nil, &errors.MalformedFrameError{Reason: "frame array is empty"}
	}

	tag, ok := asInt(elems[0])
	if !ok {
		return nil, &errors.MalformedFrameError{Reason: "type tag is not an integer"}
	}

	switch tag {
	case TypeResponse:
		return parseResponse(elems)

	case TypeNotification:
		return parseNotification(elems)

	case TypeRequest:
		return parseRequest(elems)

	default:
		return nil, &errors.MalformedFrameError{
			Reason: fmt.Sprintf("unknown type tag %d", tag),
		}
	}
}

func parseResponse(elems []any) (*Response, error) {
	if len(elems) != 4 {
		return nil, &errors.MalformedFrameError{
			Reason: fmt.Sprintf("response array has %d elements, want 4", len(elems)),
		}
	}

	id, ok := asUint32(elems[1])
	if !ok {
		return nil, &errors.MalformedFrameError{Reason: "response id is not an integer"}
	}

	return &Response{ID: id, Error: elems[2], Result: elems[3]}, nil
}

func parseNotification(elems []any) (*Notification, error) {
	if len(elems) != 3 {
		return nil, &errors.MalformedFrameError{
			Reason: fmt.Sprintf("notification array has %d elements, want 3", len(elems)),
		}
	}

	method, ok := asString(elems[1])
	if !ok {
		return nil, &errors.MalformedFrameError{Reason: "notification method is not a string"}
	}

	params, ok := elems[2].([]any)
	if !ok {
		return nil, &errors.MalformedFrameError{Reason: "notification params is not an array"}
	}

	return &Notification{Method: method, Params: params}, nil
}

func parseRequest(elems []any) (*Request, error) {
	if len(elems) != 4 {
		return nil, &errors.MalformedFrameError{
			Reason: fmt.Sprintf("request array has %d elements, want 4", len(elems)),
		}
	}

	id, _ := asUint32(elems[1])
	method, _ := asString(elems[2])

	return &Request{ID: id, Method: method}, nil
}

// asUint32 converts any MessagePack integer representation to a uint32.
// The decoder yields the narrowest Go type that fits the wire encoding,
// so every signed and unsigned width must be accepted.
func asUint32(value any) (uint32, bool) {
	switch n := value.(type) {
	case int8:
		if n < 0 {
			return 0, false
		}

		return uint32(n), true
	case int16:
		if n < 0 {
			return 0, false
		}

		return uint32(n), true
	case int32:
		if n < 0 {
			return 0, false
		}

		return uint32(n), true
	case int64:
		if n < 0 || n > int64(^uint32(0)) {
			return 0, false
		}

		return uint32(n), true
	case int:
		if n < 0 || int64(n) > int64(^uint32(0)) {
			return 0, false
		}

		return uint32(n), true
	case uint8:
		return uint32(n), true
	case uint16:
		return uint32(n), true
	case uint32:
		return n, true
	case uint64:
		if n > uint64(^uint32(0)) {
			return 0, false
		}

		return uint32(n), true
	case uint:
		if uint64(n) > uint64(^uint32(0)) {
			return 0, false
		}

		return uint32(n), true
	default:
		return 0, false
	}
}

func asInt(value any) (int, bool) {
	switch n := value.(type) {
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int:
		return n, true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case uint:
		return int(n), true
	default:
		return 0, false
	}
}

// asString accepts both str and bin encodings for method names; some
// peers encode strings as raw bytes.
func asString(value any) (string, bool) {
	switch s := value.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
