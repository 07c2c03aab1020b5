// Package client implements connection lifecycle management over a
// session: single-use start/close semantics and access to calls and the
// event stream.
package client
