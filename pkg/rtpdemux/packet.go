// Package rtpdemux parses RTP and RTCP messages off an interleaved channel,
// verifies SSRC and sequence-number continuity, and advances the stream's
// Timeline. It is the Go analogue of the teacher's own RTP/RTCP unmarshal
// calls in client.go's processFunc (github.com/pion/rtp, github.com/pion/rtcp),
// wrapped with the sequence/SSRC bookkeeping spec.md §4.2 requires.
package rtpdemux

import (
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtptime"
)

// SessionOptions carries the session-wide settings this package consults.
// Only IgnoreSpuriousData is read by this core; other session-level knobs
// (authentication, transport) belong to the RTSP signaling layer.
type SessionOptions struct {
	// IgnoreSpuriousData, when true, silently drops RTP/RTCP data whose
	// SSRC doesn't match the one latched on the first packet, instead of
	// failing the stream. Some servers briefly interleave leftover data
	// from a previous session.
	IgnoreSpuriousData bool
}

// Packet is a received and validated RTP packet.
type Packet struct {
	ConnCtx   rtpctx.ConnectionContext
	MsgCtx    rtpctx.MessageContext
	ChannelID uint8
	StreamID  int

	Timestamp rtptime.Timestamp
	SSRC      uint32
	SeqNum    uint16

	// Loss is the number of sequence numbers skipped since the previous
	// packet on this stream (not since the previous emitted codec item).
	Loss uint16

	Mark bool

	// Payload is a slice into the buffer passed to SequenceChecker.RTP; it
	// is never copied.
	Payload []byte
}

// SenderReport is a RTCP sender report, binding a stream's RTP clock to
// wall-clock (NTP) time.
type SenderReport struct {
	StreamID int
	MsgCtx   rtpctx.MessageContext

	Timestamp rtptime.Timestamp

	// NTPTimestamp is the 64-bit NTP-format timestamp from the report,
	// per RFC 3550 section 4.
	NTPTimestamp uint64
}
