// Package simpleaudio depacketizes fixed-sample-size audio codecs (PCMA,
// PCMU, G.722, G.726, L16, DVI4) where one RTP payload is always exactly one
// frame: no aggregation, no fragmentation, no cross-packet state at all.
// Grounded on retina's DepacketizerInner::Audio simple-sample-size arm
// (original_source/src/codec/mod.rs), which does the same single-packet
// pass-through.
package simpleaudio

import (
	"github.com/avreceive/rtspcore/pkg/codecitem"
	"github.com/avreceive/rtspcore/pkg/liberrors"
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
)

// Depacketizer implements depacketizer.Depacketizer for fixed-sample-size codecs.
type Depacketizer struct {
	clockRate      uint32
	sampleSizeBits uint32

	pending *codecitem.AudioFrame
}

// New constructs a Depacketizer for a codec whose sample size is fixed at
// sampleSizeBits bits (e.g. 8 for PCMA/PCMU/G.722, 16 for L16, 4 for DVI4).
func New(clockRate uint32, sampleSizeBits uint32) *Depacketizer {
	return &Depacketizer{clockRate: clockRate, sampleSizeBits: sampleSizeBits}
}

// Parameters reports the fixed clock rate; no decoder-specific extra data exists.
func (d *Depacketizer) Parameters() *codecitem.Parameters {
	return &codecitem.Parameters{
		Audio: &codecitem.AudioParameters{
			ClockRate: d.clockRate,
		},
	}
}

// Push turns the packet's payload directly into one audio frame.
func (d *Depacketizer) Push(pkt *rtpdemux.Packet) error {
	if len(pkt.Payload) == 0 {
		return liberrors.PayloadStructureError{
			StreamID:    pkt.StreamID,
			Description: "simple audio payload is empty",
		}
	}

	frameLength := uint32(len(pkt.Payload)) * 8 / d.sampleSizeBits

	d.pending = &codecitem.AudioFrame{
		MsgCtx:      pkt.MsgCtx,
		StreamID:    pkt.StreamID,
		Timestamp:   pkt.Timestamp,
		FrameLength: frameLength,
		Loss:        pkt.Loss,
		Data:        pkt.Payload,
	}
	return nil
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
