// Package liberrors contains the structured errors returned by the
// reception and depacketization core. Each kind is its own exported
// struct rather than a sentinel, so callers can pattern-match on fields
// (errors.As) to recover conn/message context.
package liberrors

import (
	"fmt"

	"github.com/avreceive/rtspcore/pkg/rtpctx"
)

// MalformedFrameError is returned when a RTP or RTCP header cannot be parsed.
type MalformedFrameError struct {
	ConnCtx     rtpctx.ConnectionContext
	MsgCtx      rtpctx.MessageContext
	ChannelID   uint8
	StreamID    int
	ExpectedSeq *uint16
	Description string
}

// Error implements the error interface.
func (e MalformedFrameError) Error() string {
	if e.ExpectedSeq != nil {
		return fmt.Sprintf("corrupt RTP/RTCP header on channel %d while expecting seq=%04x: %s",
			e.ChannelID, *e.ExpectedSeq, e.Description)
	}
	return fmt.Sprintf("corrupt RTP/RTCP header on channel %d: %s", e.ChannelID, e.Description)
}

// SessionContinuityError is returned for a SSRC mismatch or a sequence gap
// of 0x8000 or more that cannot be distinguished from reordering.
type SessionContinuityError struct {
	ConnCtx        rtpctx.ConnectionContext
	MsgCtx         rtpctx.MessageContext
	ChannelID      uint8
	StreamID       int
	SSRC           uint32
	SequenceNumber uint16
	Description    string
}

// Error implements the error interface.
func (e SessionContinuityError) Error() string {
	return fmt.Sprintf("stream %d: ssrc=%08x seq=%04x: %s", e.StreamID, e.SSRC, e.SequenceNumber, e.Description)
}

// TimelineViolationError is returned when the Timeline rejects an advance.
type TimelineViolationError struct {
	ConnCtx     rtpctx.ConnectionContext
	MsgCtx      rtpctx.MessageContext
	ChannelID   uint8
	StreamID    int
	SSRC        uint32
	Description string
}

// Error implements the error interface.
func (e TimelineViolationError) Error() string {
	return fmt.Sprintf("stream %d: timeline error: %s", e.StreamID, e.Description)
}

// PayloadStructureError is returned for a codec-specific parse error, e.g. a
// G.723 header-bits mismatch or a H.264 fragment ordering violation.
type PayloadStructureError struct {
	StreamID    int
	Description string
}

// Error implements the error interface.
func (e PayloadStructureError) Error() string {
	return fmt.Sprintf("stream %d: %s", e.StreamID, e.Description)
}

// UnsupportedConfigurationError is returned when stream setup names a
// media/encoding pair, clock rate, or parameter set this core cannot handle.
type UnsupportedConfigurationError struct {
	Description string
}

// Error implements the error interface.
func (e UnsupportedConfigurationError) Error() string {
	return e.Description
}
