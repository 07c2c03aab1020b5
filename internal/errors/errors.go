package errors

import (
	"errors"
	"fmt"
)

// ClientError is the base interface for all errors produced by this module.
type ClientError interface {
	error
	IsRPCClientError() bool
}

// Compile-time verification that all error types implement ClientError.
var (
	_ ClientError = (*ConnectError)(nil)
	_ ClientError = (*NotConnectedError)(nil)
	_ ClientError = (*WriteError)(nil)
	_ ClientError = (*ShortWriteError)(nil)
	_ ClientError = (*ConnectionLostError)(nil)
	_ ClientError = (*DecodeError)(nil)
	_ ClientError = (*MalformedFrameError)(nil)
	_ ClientError = (*UnexpectedRequestError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates a call was attempted while the connection
	// is stopped or was never started.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates Start was called on a running connection.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClientClosed indicates the client has been closed and cannot be
	// reused. Clients are single-use; create a new one with New().
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with NewClient()")
)

// ConnectError indicates the underlying byte-stream connection could not
// be established.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsRPCClientError implements ClientError.
func (e *ConnectError) IsRPCClientError() bool { return true }

// NotConnectedError indicates a specific call was issued while no live
// connection exists. It carries the identifier the call was assigned and
// unwraps to ErrNotConnected.
type NotConnectedError struct {
	ID uint32
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("call %d: %v", e.ID, ErrNotConnected)
}

func (e *NotConnectedError) Unwrap() error {
	return ErrNotConnected
}

// IsRPCClientError implements ClientError.
func (e *NotConnectedError) IsRPCClientError() bool { return true }

// WriteError indicates a transport-level write failure for one call.
type WriteError struct {
	ID  uint32
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("call %d: write: %v", e.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsRPCClientError implements ClientError.
func (e *WriteError) IsRPCClientError() bool { return true }

// ShortWriteError indicates fewer bytes were written than the encoded
// frame required. The call is not retried.
type ShortWriteError struct {
	ID    uint32
	Wrote int
	Want  int
}

func (e *ShortWriteError) Error() string {
	return fmt.Sprintf("call %d: short write: %d of %d bytes", e.ID, e.Wrote, e.Want)
}

// IsRPCClientError implements ClientError.
func (e *ShortWriteError) IsRPCClientError() bool { return true }

// ConnectionLostError indicates a fatal transport-level read failure.
// All pending calls are resolved neutrally when this occurs.
type ConnectionLostError struct {
	Err error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("connection lost: %v", e.Err)
}

func (e *ConnectionLostError) Unwrap() error {
	return e.Err
}

// IsRPCClientError implements ClientError.
func (e *ConnectionLostError) IsRPCClientError() bool { return true }

// DecodeError indicates the inbound byte stream could not be decoded.
// Framing corruption on a byte stream is unrecoverable, so this error
// terminates the reader.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode stream: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsRPCClientError implements ClientError.
func (e *DecodeError) IsRPCClientError() bool { return true }

// MalformedFrameError indicates a single decoded value did not have the
// shape of any known frame. The frame is dropped; the reader continues.
type MalformedFrameError struct {
	Reason string
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

// IsRPCClientError implements ClientError.
func (e *MalformedFrameError) IsRPCClientError() bool { return true }

// UnexpectedRequestError indicates the peer sent a request frame. This
// client is not a server; the frame is surfaced to observers and dropped.
type UnexpectedRequestError struct {
	Method string
}

func (e *UnexpectedRequestError) Error() string {
	return fmt.Sprintf("unexpected inbound request for method %q", e.Method)
}

// IsRPCClientError implements ClientError.
func (e *UnexpectedRequestError) IsRPCClientError() bool { return true }
