// Package h264 depacketizes H.264 video (RFC 6184): single NAL units,
// STAP-A aggregates, and FU-A fragments are all normalized into AVCC-framed
// access units, with SPS/PPS tracked across the stream so a consumer
// learns decoder parameters the moment they change.
//
// NAL classification, STAP-A splitting, FU-A reassembly and the
// access-unit/NALU-count caps are grounded on the teacher's
// pkg/format/rtph264/decoder.go; the AVCC framing on its
// pkg/codecs/h264/avcc.go; the SPS/PPS change-tracking idiom (compare then
// replace the cached copy) on the SafeSPS/SafeSetSPS pattern in
// mediamtx's formatProcessorH264.updateTrackParametersFromRTPPacket.
package h264

import (
	"fmt"

	h264codec "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/avreceive/rtspcore/pkg/codecitem"
	"github.com/avreceive/rtspcore/pkg/liberrors"
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
)

const maxNALUsPerAccessUnit = 20

// Depacketizer implements depacketizer.Depacketizer for RTP/H264.
type Depacketizer struct {
	clockRate uint32

	firstPacketReceived bool
	fragments           [][]byte
	fragmentsSize       int

	frameBuffer     [][]byte
	frameBufferSize int
	frameLoss       uint16
	frameStartCtx   rtpctx.MessageContext
	frameStreamID   int

	sps []byte
	pps []byte

	pending *codecitem.VideoFrame
}

// New constructs a Depacketizer. format-specific-params may carry
// packetization-mode and sprop-parameter-sets; this core does not need
// either to depacketize, so it accepts and ignores unrecognized fields.
func New(clockRate uint32, _ string) (*Depacketizer, error) {
	return &Depacketizer{clockRate: clockRate}, nil
}

// Parameters reports parameters built from the most recently cached
// SPS/PPS, or nil until an SPS has been seen.
func (d *Depacketizer) Parameters() *codecitem.Parameters {
	if d.sps == nil {
		return nil
	}
	return &codecitem.Parameters{Video: d.buildVideoParameters()}
}

func (d *Depacketizer) buildVideoParameters() *codecitem.VideoParameters {
	vp := &codecitem.VideoParameters{RFC6381Codec: rfc6381Codec(d.sps)}

	// The decoder configuration record only needs the raw SPS/PPS bytes,
	// not a fully parsed SPS, so it is built unconditionally.
	if extra, err := buildAVCDecoderConfigurationRecord(d.sps, d.pps); err == nil {
		vp.ExtraData = extra
	}

	var sps h264codec.SPS
	if err := sps.Unmarshal(d.sps); err == nil {
		vp.PixelDimensions = [2]int{sps.Width(), sps.Height()}
	}

	return vp
}

// rfc6381Codec builds a "avc1.PPCCLL" codec string from the raw SPS bytes,
// per RFC 6381 section 3.3.
func rfc6381Codec(sps []byte) string {
	if len(sps) < 4 {
		return "avc1"
	}
	// sps[0] is the NAL header; profile_idc, constraint flags, and level_idc
	// occupy the next three bytes, exactly as in the AVCDecoderConfigurationRecord.
	return fmt.Sprintf("avc1.%02X%02X%02X", sps[1], sps[2], sps[3])
}

// buildAVCDecoderConfigurationRecord encodes SPS/PPS into an
// AVCDecoderConfigurationRecord (ISO/IEC 14496-15 section 5.2.4.1). There is
// no ready-made builder for this record among the libraries this module
// depends on, so it is hand-assembled from the fixed-layout fields the
// standard defines.
func buildAVCDecoderConfigurationRecord(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 {
		return nil, fmt.Errorf("SPS too short to build decoder configuration record")
	}

	buf := make([]byte, 0, 11+len(sps)+len(pps))
	buf = append(buf, 1)             // configurationVersion
	buf = append(buf, sps[1])        // AVCProfileIndication
	buf = append(buf, sps[2])        // profile_compatibility
	buf = append(buf, sps[3])        // AVCLevelIndication
	buf = append(buf, 0xFC|0b11)     // reserved(6) + lengthSizeMinusOne(2) = 3 (4-byte lengths)
	buf = append(buf, 0xE0|1)        // reserved(3) + numOfSequenceParameterSets(5) = 1
	buf = append(buf, byte(len(sps)>>8), byte(len(sps)))
	buf = append(buf, sps...)
	buf = append(buf, 1) // numOfPictureParameterSets
	buf = append(buf, byte(len(pps)>>8), byte(len(pps)))
	buf = append(buf, pps...)

	return buf, nil
}

func joinFragments(fragments [][]byte, size int) []byte {
	ret := make([]byte, size)
	n := 0
	for _, p := range fragments {
		n += copy(ret[n:], p)
	}
	return ret
}

// decodeNALUs classifies one RTP payload and returns the NAL units it
// contains: one for a single-NAL packet, several for a STAP-A aggregate, or
// one once a FU-A fragment sequence completes. While a FU-A sequence is
// still incomplete it returns (nil, false, nil); the bool is true whenever
// NAL units are returned.
func (d *Depacketizer) decodeNALUs(pkt *rtpdemux.Packet) ([][]byte, bool, error) {
	if len(pkt.Payload) < 1 {
		d.fragments = d.fragments[:0]
		return nil, false, liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "H264 payload is too short"}
	}

	if pkt.Loss > 0 && len(d.fragments) > 0 {
		// Mid-fragment loss breaks FU-A continuity: the fragments gathered so
		// far can't be joined into a valid NAL unit, so they are discarded
		// instead of concatenated across the gap. This packet is then
		// processed normally, possibly starting a fresh fragment sequence.
		d.fragments = d.fragments[:0]
		d.fragmentsSize = 0
	}

	typ := h264codec.NALUType(pkt.Payload[0] & 0x1F)
	var nalus [][]byte

	switch typ {
	case h264codec.NALUTypeFUA:
		if len(pkt.Payload) < 2 {
			return nil, false, liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "invalid FU-A packet (invalid size)"}
		}

		start := pkt.Payload[1] >> 7
		end := (pkt.Payload[1] >> 6) & 0x01

		if start == 1 {
			d.fragments = d.fragments[:0]
			if end != 0 {
				return nil, false, liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "invalid FU-A packet (can't contain both a start and end bit)"}
			}

			nri := (pkt.Payload[0] >> 5) & 0x03
			nalType := pkt.Payload[1] & 0x1F
			d.fragmentsSize = len(pkt.Payload[1:])
			d.fragments = append(d.fragments, []byte{(nri << 5) | nalType}, pkt.Payload[2:])
			d.firstPacketReceived = true
			return nil, false, nil
		}

		if len(d.fragments) == 0 {
			if !d.firstPacketReceived {
				return nil, false, liberrors.PayloadStructureError{
					StreamID:    pkt.StreamID,
					Description: "received a non-starting FU-A fragment without any previous starting fragment",
				}
			}
			return nil, false, liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "invalid FU-A packet (non-starting, no pending fragment)"}
		}

		d.fragmentsSize += len(pkt.Payload[2:])
		if d.fragmentsSize > h264codec.MaxNALUSize {
			d.fragments = d.fragments[:0]
			return nil, false, liberrors.PayloadStructureError{
				StreamID:    pkt.StreamID,
				Description: fmt.Sprintf("NALU size (%d) is too big, maximum is %d", d.fragmentsSize, h264codec.MaxNALUSize),
			}
		}

		d.fragments = append(d.fragments, pkt.Payload[2:])
		if end != 1 {
			return nil, false, nil
		}

		nalus = [][]byte{joinFragments(d.fragments, d.fragmentsSize)}
		d.fragments = d.fragments[:0]

	case h264codec.NALUTypeSTAPA:
		d.fragments = d.fragments[:0]
		payload := pkt.Payload[1:]

		for len(payload) > 0 {
			if len(payload) < 2 {
				return nil, false, liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "invalid STAP-A packet (invalid size)"}
			}

			size := int(payload[0])<<8 | int(payload[1])
			payload = payload[2:]

			if size == 0 {
				break
			}
			if size > len(payload) {
				return nil, false, liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "invalid STAP-A packet (invalid size)"}
			}

			nalus = append(nalus, payload[:size])
			payload = payload[size:]
		}

		if nalus == nil {
			return nil, false, liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "STAP-A packet doesn't contain any NALU"}
		}
		d.firstPacketReceived = true

	case h264codec.NALUTypeSTAPB, h264codec.NALUTypeMTAP16, h264codec.NALUTypeMTAP24, h264codec.NALUTypeFUB:
		d.fragments = d.fragments[:0]
		d.firstPacketReceived = true
		return nil, false, liberrors.UnsupportedConfigurationError{Description: fmt.Sprintf("NALU packet type not supported (%v)", typ)}

	default:
		d.fragments = d.fragments[:0]
		d.firstPacketReceived = true
		nalus = [][]byte{pkt.Payload}
	}

	return nalus, true, nil
}

// updateParameters caches SPS/PPS on change and reports whether anything changed.
func (d *Depacketizer) updateParameters(nalus [][]byte) bool {
	changed := false
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch h264codec.NALUType(nalu[0] & 0x1F) {
		case h264codec.NALUTypeSPS:
			if !bytesEqual(nalu, d.sps) {
				d.sps = append([]byte(nil), nalu...)
				changed = true
			}
		case h264codec.NALUTypePPS:
			if !bytesEqual(nalu, d.pps) {
				d.pps = append([]byte(nil), nalu...)
				changed = true
			}
		}
	}
	return changed
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isRandomAccessPoint(nalus [][]byte) bool {
	for _, nalu := range nalus {
		if len(nalu) > 0 && h264codec.NALUType(nalu[0]&0x1F) == h264codec.NALUTypeIDR {
			return true
		}
	}
	return false
}

func isDisposable(nalus [][]byte) bool {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		nri := (nalu[0] >> 5) & 0x03
		if nri != 0 {
			return false
		}
	}
	return true
}

// Push feeds one RTP packet's payload into NAL reassembly, accumulating
// completed NAL units into the current access unit until the marker bit
// closes it.
func (d *Depacketizer) Push(pkt *rtpdemux.Packet) error {
	nalus, ok, err := d.decodeNALUs(pkt)
	if err != nil {
		d.frameBuffer = nil
		d.frameBufferSize = 0
		d.frameLoss = 0
		return err
	}
	if !ok {
		if pkt.Loss > 0 && len(d.frameBuffer) > 0 {
			// Loss ahead of a FU-A fragment breaks the open access unit just
			// as it does below for a completed NAL unit: drop it.
			d.frameBuffer = nil
			d.frameBufferSize = 0
			d.frameLoss = 0
		}
		d.frameLoss += pkt.Loss
		return nil
	}

	if pkt.Loss > 0 && len(d.frameBuffer) > 0 {
		// Mid-access-unit loss: the partial access unit accumulated so far
		// is unusable, so it is dropped instead of concatenating NAL units
		// across the gap. The loss carries forward onto the next completed
		// access unit via the frameLoss accumulation below.
		d.frameBuffer = nil
		d.frameBufferSize = 0
		d.frameLoss = 0
	}

	paramsChanged := d.updateParameters(nalus)

	if len(d.frameBuffer)+len(nalus) > maxNALUsPerAccessUnit {
		d.frameBuffer = nil
		d.frameBufferSize = 0
		d.frameLoss = 0
		return liberrors.PayloadStructureError{
			StreamID:    pkt.StreamID,
			Description: fmt.Sprintf("NALU count exceeds maximum allowed (%d)", maxNALUsPerAccessUnit),
		}
	}

	addSize := 0
	for _, n := range nalus {
		addSize += len(n)
	}
	if d.frameBufferSize+addSize > h264codec.MaxNALUSize*2 {
		d.frameBuffer = nil
		d.frameBufferSize = 0
		d.frameLoss = 0
		return liberrors.PayloadStructureError{
			StreamID:    pkt.StreamID,
			Description: fmt.Sprintf("access unit size (%d) is too big", d.frameBufferSize+addSize),
		}
	}

	if len(d.frameBuffer) == 0 {
		d.frameStartCtx = pkt.MsgCtx
		d.frameStreamID = pkt.StreamID
	}

	d.frameBuffer = append(d.frameBuffer, nalus...)
	d.frameBufferSize += addSize
	d.frameLoss += pkt.Loss

	if !pkt.Mark {
		return nil
	}

	avcc, err := h264codec.AVCCMarshal(d.frameBuffer)
	if err != nil {
		d.frameBuffer = nil
		d.frameBufferSize = 0
		d.frameLoss = 0
		return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: err.Error()}
	}

	frame := &codecitem.VideoFrame{
		Loss:                d.frameLoss,
		StartCtx:            d.frameStartCtx,
		EndCtx:              pkt.MsgCtx,
		Timestamp:           pkt.Timestamp,
		StreamID:            d.frameStreamID,
		IsRandomAccessPoint: isRandomAccessPoint(d.frameBuffer),
		IsDisposable:        isDisposable(d.frameBuffer),
		Data:                avcc,
	}
	if paramsChanged && d.sps != nil {
		frame.NewParameters = d.buildVideoParameters()
	}

	d.pending = frame
	d.frameBuffer = nil
	d.frameBufferSize = 0
	d.frameLoss = 0

	return nil
}

// Pull drains the single pending access unit produced by the last Push, if any.
func (d *Depacketizer) Pull(_ rtpctx.ConnectionContext) (*codecitem.CodecItem, error) {
	if d.pending == nil {
		return nil, nil
	}
	frame := d.pending
	d.pending = nil
	return &codecitem.CodecItem{VideoFrame: frame}, nil
}
