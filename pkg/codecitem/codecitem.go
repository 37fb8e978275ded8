// Package codecitem contains the output data types of the depacketization
// core: video/audio/message frames, sender reports, and the stream
// parameters a depacketizer may learn mid-stream. It is the Go analogue of
// retina's codec::{CodecItem, Parameters, VideoFrame, AudioFrame,
// MessageFrame} (original_source/src/codec/mod.rs).
package codecitem

import (
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
	"github.com/avreceive/rtspcore/pkg/rtptime"
)

// VideoParameters describes a video stream's dimensions and decoder
// configuration, derived from in-band parameter sets (e.g. H.264 SPS/PPS).
type VideoParameters struct {
	// PixelDimensions is (width, height) in pixels.
	PixelDimensions [2]int

	// RFC6381Codec is a RFC-6381 codec string, e.g. "avc1.4D401E".
	RFC6381Codec string

	// PixelAspectRatio is the displayed size of a pixel as a dimensionless
	// ratio (h_spacing, v_spacing), if known.
	PixelAspectRatio *[2]int

	// FrameRate is the maximum frame rate as (numerator, denominator), if known.
	FrameRate *[2]int

	// ExtraData is codec-specific decoder initialization data, e.g. an
	// AVCDecoderConfigurationRecord for H.264.
	ExtraData []byte
}

// AudioParameters describes an audio stream's decoder configuration.
type AudioParameters struct {
	// RFC6381Codec is a RFC-6381 codec string, if known.
	RFC6381Codec string

	// FrameLength is the fixed length of each frame in ClockRate units, if fixed.
	FrameLength uint32

	ClockRate uint32

	// ExtraData is codec-specific decoder initialization data, e.g. an AAC
	// AudioSpecificConfig.
	ExtraData []byte

	// SampleEntry is a .mp4 SimpleAudioEntry box (ISO/IEC 14496-12), if the
	// codec can be placed in a .mp4 file.
	SampleEntry []byte
}

// CompressionType identifies how an ONVIF metadata message is compressed on
// the wire. The core never interprets the message body; it passes this
// flag through for a downstream consumer to act on.
type CompressionType int

// ONVIF metadata compression types (spec.md §4.4).
const (
	CompressionUncompressed CompressionType = iota
	CompressionGzip
	CompressionExiDefault
	CompressionExiInBand
)

// MessageParameters describes a timed-metadata (ONVIF) stream.
type MessageParameters struct {
	Compression CompressionType
}

// Parameters is the best-known description of one stream, as reported by
// its Depacketizer. It is attached to video frames on change.
type Parameters struct {
	Video   *VideoParameters
	Audio   *AudioParameters
	Message *MessageParameters
}

// VideoFrame is a single encoded access unit (aka picture or video sample).
type VideoFrame struct {
	// NewParameters is populated only when this frame carries a parameter
	// change (e.g. new SPS/PPS); nil on the common path.
	NewParameters *VideoParameters

	// Loss is the number of RTP packets lost since the previous packet on
	// this stream; if loss occurred mid-access-unit, more data than this
	// count may actually be missing.
	Loss uint16

	StartCtx rtpctx.MessageContext
	EndCtx   rtpctx.MessageContext

	Timestamp rtptime.Timestamp
	StreamID  int

	// IsRandomAccessPoint is true iff this access unit can be decoded
	// without reference to any other, and no later picture depends on one
	// before it (an IDR picture, in H.264 terms).
	IsRandomAccessPoint bool

	// IsDisposable is true iff no other picture requires this one to be
	// decoded correctly (nal_ref_idc == 0 on every contained NAL unit).
	IsDisposable bool

	// Data is the AVCC-framed (4-byte big-endian length prefix per NAL
	// unit) concatenation of the access unit's NAL units. It is a newly
	// allocated buffer: the NAL unit bytes are copied into it after their
	// synthesized length prefixes, so it does not share memory with the
	// RTP payloads.
	Data []byte
}

// AudioFrame is one or more samples sharing a timestamp.
type AudioFrame struct {
	MsgCtx rtpctx.MessageContext

	StreamID    int
	Timestamp   rtptime.Timestamp
	FrameLength uint32
	Loss        uint16
	Data        []byte
}

// MessageFrame is a reassembled timed-metadata (ONVIF) message.
type MessageFrame struct {
	MsgCtx rtpctx.MessageContext

	StreamID  int
	Timestamp rtptime.Timestamp
	Loss      uint16
	Data      []byte
}

// CodecItem is a value emitted from the depacketization pipeline for one
// stream: exactly one of the four kinds is non-nil.
type CodecItem struct {
	VideoFrame   *VideoFrame
	AudioFrame   *AudioFrame
	MessageFrame *MessageFrame
	SenderReport *rtpdemux.SenderReport
}
