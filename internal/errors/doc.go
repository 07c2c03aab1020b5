// Package errors defines error types for the msgpack-rpc client.
//
// This package provides structured error types for the failure scenarios of
// a msgpack-rpc connection: connecting, writing call frames, losing the
// transport, and decoding inbound frames. All error types support error
// unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
