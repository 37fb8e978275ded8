// Package streamsetup holds the caller-facing description of one media
// stream. This module does not parse SDP text — that is an RTSP signaling
// concern out of scope here — so Descriptor is the typed seam a signaling
// layer fills in before calling depacketizer.New.
package streamsetup

// Descriptor is the (media, encoding name, clock rate, channels,
// format-specific-parameters) tuple an RTSP/SDP layer resolves for one
// media stream.
type Descriptor struct {
	// Media is the SDP media type, e.g. "video", "audio", "application".
	Media string

	// EncodingName is the RTP/AVP encoding name from the rtpmap attribute,
	// e.g. "H264", "mpeg4-generic", "PCMA".
	EncodingName string

	ClockRate uint32

	// Channels is the channel count from the rtpmap attribute, if present.
	Channels *int

	// FormatSpecificParams is the raw fmtp attribute value, if present.
	FormatSpecificParams string

	// StreamID identifies this stream among the session's other streams
	// (e.g. the RTSP control URL's track index).
	StreamID int

	// ChannelID is the interleaved-TCP channel carrying this stream's RTP
	// packets, if using TCP transport.
	ChannelID uint8
}
