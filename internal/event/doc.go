// Package event implements the broadcast stream for connection events.
//
// Notifications, protocol-level errors, and (optionally) mirrored
// responses fan out to any number of subscribers, each with its own
// buffered channel. The stream completes exactly once, on connection
// stop, after which all subscriber channels are closed.
package event
