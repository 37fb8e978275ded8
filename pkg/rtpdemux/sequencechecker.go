package rtpdemux

import (
	"encoding/binary"
	"fmt"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/avreceive/rtspcore/pkg/liberrors"
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtptime"
)

// maxPlausibleLoss is the largest sequence-number gap this package accepts
// as "loss" rather than "reordering beyond recognition" (spec.md §4.2 step 5).
const maxPlausibleLoss = 0x7FFF

// SequenceChecker verifies that RTP/RTCP data on a stream carries a
// consistent SSRC and a monotonically increasing (modulo 2^16) sequence
// number. SSRC and the next expected sequence number are latched from the
// first accepted packet.
type SequenceChecker struct {
	ssrc    *uint32
	nextSeq *uint16
}

// NewSequenceChecker allocates a SequenceChecker. ssrc and nextSeq may be
// supplied when already known (e.g. from a RTP-Info header); otherwise pass
// nil and they are latched from the first observed packet.
func NewSequenceChecker(ssrc *uint32, nextSeq *uint16) *SequenceChecker {
	return &SequenceChecker{ssrc: ssrc, nextSeq: nextSeq}
}

// RTP parses a RTP packet from data, validates it, and advances timeline.
// It returns (nil, nil) when the packet must be dropped silently (a spurious
// SSRC under SessionOptions.IgnoreSpuriousData).
func (c *SequenceChecker) RTP(
	opts SessionOptions,
	connCtx rtpctx.ConnectionContext,
	msgCtx rtpctx.MessageContext,
	timeline *rtptime.Timeline,
	channelID uint8,
	streamID int,
	data []byte,
) (*Packet, error) {
	if len(data) < 4 {
		return nil, liberrors.MalformedFrameError{
			ConnCtx:     connCtx,
			MsgCtx:      msgCtx,
			ChannelID:   channelID,
			StreamID:    streamID,
			ExpectedSeq: c.nextSeq,
			Description: fmt.Sprintf("RTP packet too short (%d bytes)", len(data)),
		}
	}

	seqNum := binary.BigEndian.Uint16(data[2:4])

	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return nil, liberrors.MalformedFrameError{
			ConnCtx:     connCtx,
			MsgCtx:      msgCtx,
			ChannelID:   channelID,
			StreamID:    streamID,
			ExpectedSeq: c.nextSeq,
			Description: err.Error(),
		}
	}

	ssrc := pkt.SSRC

	expected := seqNum
	if c.nextSeq != nil {
		expected = *c.nextSeq
	}
	loss := seqNum - expected

	if c.ssrc != nil && *c.ssrc != ssrc {
		if opts.IgnoreSpuriousData {
			return nil, nil
		}
		return nil, liberrors.SessionContinuityError{
			ConnCtx:        connCtx,
			MsgCtx:         msgCtx,
			ChannelID:      channelID,
			StreamID:       streamID,
			SSRC:           ssrc,
			SequenceNumber: seqNum,
			Description:    fmt.Sprintf("wrong ssrc; expecting ssrc=%08x seq=%04x", derefU32(c.ssrc), derefU16(c.nextSeq)),
		}
	}

	if loss > maxPlausibleLoss {
		return nil, liberrors.SessionContinuityError{
			ConnCtx:        connCtx,
			MsgCtx:         msgCtx,
			ChannelID:      channelID,
			StreamID:       streamID,
			SSRC:           ssrc,
			SequenceNumber: seqNum,
			Description:    fmt.Sprintf("out-of-order packet or large loss; expecting ssrc=%08x seq=%04x", derefU32(c.ssrc), derefU16(c.nextSeq)),
		}
	}

	ts, err := timeline.AdvanceTo(pkt.Timestamp)
	if err != nil {
		return nil, liberrors.TimelineViolationError{
			ConnCtx:     connCtx,
			MsgCtx:      msgCtx,
			ChannelID:   channelID,
			StreamID:    streamID,
			SSRC:        ssrc,
			Description: err.Error(),
		}
	}

	if len(pkt.Payload) == 0 {
		return nil, liberrors.MalformedFrameError{
			ConnCtx:     connCtx,
			MsgCtx:      msgCtx,
			ChannelID:   channelID,
			StreamID:    streamID,
			ExpectedSeq: c.nextSeq,
			Description: "empty payload",
		}
	}

	c.ssrc = &ssrc
	next := seqNum + 1
	c.nextSeq = &next

	return &Packet{
		ConnCtx:   connCtx,
		MsgCtx:    msgCtx,
		ChannelID: channelID,
		StreamID:  streamID,
		Timestamp: ts,
		SSRC:      ssrc,
		SeqNum:    seqNum,
		Loss:      loss,
		Mark:      pkt.Marker,
		Payload:   pkt.Payload,
	}, nil
}

// RTCP parses a compound RTCP packet from data and, if it contains a sender
// report, returns it. Unknown packet types are ignored. A sender report
// that isn't first in a compound packet is an error, matching spec.md §4.2.
func (c *SequenceChecker) RTCP(
	opts SessionOptions,
	msgCtx rtpctx.MessageContext,
	timeline *rtptime.Timeline,
	streamID int,
	data []byte,
) (*SenderReport, error) {
	packets, err := rtcp.Unmarshal(data)
	if err != nil {
		return nil, liberrors.MalformedFrameError{
			MsgCtx:      msgCtx,
			StreamID:    streamID,
			Description: fmt.Sprintf("corrupt RTCP packet: %v", err),
		}
	}

	var sr *SenderReport

	for i, pkt := range packets {
		srPkt, ok := pkt.(*rtcp.SenderReport)
		if !ok {
			continue
		}

		if i > 0 {
			return nil, fmt.Errorf("RTCP SR must be first in packet")
		}

		ts, err := timeline.Place(srPkt.RTPTime)
		if err != nil {
			return nil, fmt.Errorf("%s in RTCP SR", err.Error())
		}

		if c.ssrc != nil && *c.ssrc != srPkt.SSRC {
			if opts.IgnoreSpuriousData {
				return nil, nil
			}
			return nil, liberrors.SessionContinuityError{
				MsgCtx:      msgCtx,
				StreamID:    streamID,
				SSRC:        srPkt.SSRC,
				Description: fmt.Sprintf("wrong ssrc in RTCP SR; expecting ssrc=%08x", derefU32(c.ssrc)),
			}
		}
		ssrc := srPkt.SSRC
		c.ssrc = &ssrc

		sr = &SenderReport{
			StreamID:     streamID,
			MsgCtx:       msgCtx,
			Timestamp:    ts,
			NTPTimestamp: srPkt.NTPTime,
		}
	}

	return sr, nil
}

func derefU32(v *uint32) uint32 {
	if v == nil {
		return 0
	}
	return *v
}

func derefU16(v *uint16) uint16 {
	if v == nil {
		return 0
	}
	return *v
}
