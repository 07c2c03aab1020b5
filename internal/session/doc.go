// Package session implements the correlation-and-concurrency engine of
// the msgpack-rpc client.
//
// A Session owns one byte-stream connection for its whole life: the call
// dispatcher encodes and writes request frames, the correlation table
// matches inbound responses to the calls that produced them, and a single
// reader goroutine decodes the inbound stream and routes every frame. A
// session has exactly one lifecycle; the client layer above enforces
// single use.
package session
