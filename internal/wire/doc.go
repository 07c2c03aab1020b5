// Package wire implements the msgpack-rpc frame codec.
//
// Frames are MessagePack arrays whose first element is a type tag:
// [0, id, method, params] for requests, [1, id, error, result] for
// responses, and [2, method, params] for notifications. The package
// encodes outbound request frames and decodes inbound bytes into frames,
// tolerating partial and coalesced frames per physical read.
package wire
