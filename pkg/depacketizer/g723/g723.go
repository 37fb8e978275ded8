// Package g723 depacketizes G.723.1 audio (RFC 3551 section 4.5.3): a fixed
// 8kHz clock, one RTP payload is always exactly one 240-sample frame, and
// the payload length implies an expected header-bits value that can be
// cross-checked against the payload itself.
// Grounded on retina's codec::g723::Depacketizer
// (original_source/src/codec/g723.rs).
package g723

import (
	"fmt"

	"github.com/avreceive/rtspcore/pkg/codecitem"
	"github.com/avreceive/rtspcore/pkg/liberrors"
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
)

const fixedClockRate = 8000
const frameLengthSamples = 240

// Depacketizer implements depacketizer.Depacketizer for G.723.1.
type Depacketizer struct {
	pending *codecitem.AudioFrame
}

// New constructs a Depacketizer, failing if clockRate isn't the codec's
// fixed 8000 Hz.
func New(clockRate uint32) (*Depacketizer, error) {
	if clockRate != fixedClockRate {
		return nil, liberrors.UnsupportedConfigurationError{
			Description: fmt.Sprintf("expected clock rate of %d for G.723, got %d", fixedClockRate, clockRate),
		}
	}
	return &Depacketizer{}, nil
}

// Parameters reports the fixed clock rate and frame length.
func (d *Depacketizer) Parameters() *codecitem.Parameters {
	return &codecitem.Parameters{
		Audio: &codecitem.AudioParameters{
			FrameLength: frameLengthSamples,
			ClockRate:   fixedClockRate,
		},
	}
}

// expectedHeaderBits returns the low 2 bits a valid G.723 frame of this
// length must carry in its first payload byte, per RFC 3551 table 5.
func expectedHeaderBits(payloadLen int) (byte, bool) {
	switch payloadLen {
	case 24:
		return 0b00, true
	case 20:
		return 0b01, true
	case 4:
		return 0b10, true
	default:
		return 0, false
	}
}

func validate(payload []byte) bool {
	want, ok := expectedHeaderBits(len(payload))
	if !ok {
		return false
	}
	return payload[0]&0b11 == want
}

// Push validates the payload length/header-bits pair and stages it as one
// 240-sample frame.
func (d *Depacketizer) Push(pkt *rtpdemux.Packet) error {
	if !validate(pkt.Payload) {
		return liberrors.PayloadStructureError{
			StreamID:    pkt.StreamID,
			Description: fmt.Sprintf("invalid G.723 packet: length %d, header byte %#x", len(pkt.Payload), firstByteOrZero(pkt.Payload)),
		}
	}

	d.pending = &codecitem.AudioFrame{
		MsgCtx:      pkt.MsgCtx,
		StreamID:    pkt.StreamID,
		Timestamp:   pkt.Timestamp,
		FrameLength: frameLengthSamples,
		Loss:        pkt.Loss,
		Data:        pkt.Payload,
	}
	return nil
}

func firstByteOrZero(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// Pull drains the single pending frame produced by the last Push, if any.
func (d *Depacketizer) Pull(_ rtpctx.ConnectionContext) (*codecitem.CodecItem, error) {
	if d.pending == nil {
		return nil, nil
	}
	frame := d.pending
	d.pending = nil
	return &codecitem.CodecItem{AudioFrame: frame}, nil
}
