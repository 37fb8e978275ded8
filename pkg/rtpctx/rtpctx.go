// Package rtpctx contains the context values attached to errors and items
// produced by the reception core, so a failure can be traced back to a
// connection and a byte range in a packet capture.
package rtpctx

import "time"

// ConnectionContext carries information about the underlying RTSP connection.
// It is supplied by the transport layer and is opaque to this package.
type ConnectionContext struct {
	// LocalAddr is the local address of the connection, in net.Addr.String() form.
	LocalAddr string

	// RemoteAddr is the remote address of the connection, in net.Addr.String() form.
	RemoteAddr string

	// Established is when the connection was established.
	Established time.Time
}

// MessageContext carries information about a single incoming RTSP interleaved
// message (the framing the payload arrived in).
type MessageContext struct {
	// When is the time the message was read off the wire.
	When time.Time

	// Pos is the connection-relative byte offset at which the message started.
	Pos int64
}
