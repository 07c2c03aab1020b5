package msgpackrpc

import "github.com/streamrpc/msgpackrpc-go/internal/errors"

// Re-export error types from internal package

// RPCClientError is the base interface for all errors produced by this module.
type RPCClientError = errors.ClientError

// ConnectError indicates the connection could not be established.
type ConnectError = errors.ConnectError

// NotConnectedError indicates a call was issued without a live connection.
type NotConnectedError = errors.NotConnectedError

// WriteError indicates a transport-level write failure for one call.
type WriteError = errors.WriteError

// ShortWriteError indicates fewer bytes were written than the frame required.
type ShortWriteError = errors.ShortWriteError

// ConnectionLostError indicates a fatal transport-level read failure.
type ConnectionLostError = errors.ConnectionLostError

// DecodeError indicates the inbound byte stream could not be decoded.
type DecodeError = errors.DecodeError

// MalformedFrameError indicates a decoded value had no valid frame shape.
type MalformedFrameError = errors.MalformedFrameError

// UnexpectedRequestError indicates the peer sent a request frame.
type UnexpectedRequestError = errors.UnexpectedRequestError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates a call was attempted while stopped.
	ErrNotConnected = errors.ErrNotConnected

	// ErrAlreadyConnected indicates Start was called on a running connection.
	ErrAlreadyConnected = errors.ErrAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed
)
