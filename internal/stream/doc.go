// Package stream abstracts the byte-stream connection under the client.
//
// The session layer only needs ordered, reliable read/write/close, so the
// connection is a three-method interface with a net-based default dialer.
package stream
