// Package pipeline wires the Framing Sanitizer, SequenceChecker, Timeline
// and Depacketizer into one push-then-drain call per incoming interleaved
// message, for one stream.
//
// Grounded on how the teacher's client.go processFunc closures chain RTP
// unmarshal -> track dispatch for one incoming TCP interleaved frame; this
// package generalizes that chain to also run framing sanitization and
// depacketization, which the teacher's client.go does not do (it decodes
// further downstream, per track).
package pipeline

import (
	"github.com/avreceive/rtspcore/pkg/codecitem"
	"github.com/avreceive/rtspcore/pkg/depacketizer"
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
	"github.com/avreceive/rtspcore/pkg/rtpio"
	"github.com/avreceive/rtspcore/pkg/rtptime"
	"github.com/avreceive/rtspcore/pkg/streamsetup"
)

// Stream drives one media stream's reassembly state end to end.
type Stream struct {
	Descriptor streamsetup.Descriptor
	Options    rtpdemux.SessionOptions

	checker  *rtpdemux.SequenceChecker
	timeline *rtptime.Timeline
	depack   depacketizer.Depacketizer
}

// NewStream constructs a Stream for desc, selecting its depacketizer via
// depacketizer.New.
func NewStream(desc streamsetup.Descriptor, opts rtpdemux.SessionOptions) (*Stream, error) {
	depack, err := depacketizer.New(desc.Media, desc.EncodingName, desc.ClockRate, desc.Channels, desc.FormatSpecificParams)
	if err != nil {
		return nil, err
	}

	return &Stream{
		Descriptor: desc,
		Options:    opts,
		checker:    rtpdemux.NewSequenceChecker(nil, nil),
		timeline:   rtptime.NewTimeline(desc.ClockRate),
		depack:     depack,
	}, nil
}

// Handle processes one interleaved RTP message for this stream: it strips
// a double-wrapped interleaved-frame header if present, validates sequence
// continuity, expands the timestamp, pushes the result into the
// depacketizer, and drains every codec item that becomes ready.
func (s *Stream) Handle(connCtx rtpctx.ConnectionContext, msgCtx rtpctx.MessageContext, data []byte) ([]codecitem.CodecItem, error) {
	data = rtpio.StripDoubleWrap(data)

	pkt, err := s.checker.RTP(s.Options, connCtx, msgCtx, s.timeline, s.Descriptor.ChannelID, s.Descriptor.StreamID, data)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		// spurious SSRC, silently dropped under SessionOptions.IgnoreSpuriousData.
		return nil, nil
	}

	if err := s.depack.Push(pkt); err != nil {
		return nil, err
	}

	return s.drain(connCtx)
}

// HandleRTCP processes one interleaved RTCP message for this stream,
// returning a CodecItem wrapping a SenderReport if one was found.
func (s *Stream) HandleRTCP(connCtx rtpctx.ConnectionContext, msgCtx rtpctx.MessageContext, data []byte) (*codecitem.CodecItem, error) {
	data = rtpio.StripDoubleWrap(data)

	sr, err := s.checker.RTCP(s.Options, msgCtx, s.timeline, s.Descriptor.StreamID, data)
	if err != nil {
		return nil, err
	}
	if sr == nil {
		return nil, nil
	}
	return &codecitem.CodecItem{SenderReport: sr}, nil
}

func (s *Stream) drain(connCtx rtpctx.ConnectionContext) ([]codecitem.CodecItem, error) {
	var items []codecitem.CodecItem
	for {
		item, err := s.depack.Pull(connCtx)
		if err != nil {
			return items, err
		}
		if item == nil {
			return items, nil
		}
		items = append(items, *item)
	}
}

// Parameters returns the stream's current best-known parameters.
func (s *Stream) Parameters() *codecitem.Parameters {
	return s.depack.Parameters()
}
