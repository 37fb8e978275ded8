// Package aac depacketizes MPEG-4 generic audio (RFC 3640), as used to
// carry AAC over RTP. It parses the AU-header-section to recover one or
// more access-unit lengths, then slices the AU-data-section accordingly,
// reassembling AUs that RFC 3640 fragments across multiple RTP packets.
//
// Grounded on the teacher's pkg/format/rtpmpeg4audio (decoder_generic.go,
// readAUHeaders) for the bit-cursor parsing and fragment reassembly, and
// pkg/format/mpeg4_audio.go for the fmtp field set (sizelength, indexlength,
// indexdeltalength, config, mode, streamtype, profile-level-id).
package aac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/mediacommon/v2/pkg/bits"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

	"github.com/avreceive/rtspcore/pkg/codecitem"
	"github.com/avreceive/rtspcore/pkg/liberrors"
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
)

// maxAccessUnitSize bounds fragment reassembly against a runaway or
// malicious size field, mirroring mpeg4audio.MaxAccessUnitSize.
const maxAccessUnitSize = mpeg4audio.MaxAccessUnitSize

// Depacketizer implements depacketizer.Depacketizer for mpeg4-generic audio.
type Depacketizer struct {
	sizeLength       int
	indexLength      int
	indexDeltaLength int
	config           *mpeg4audio.AudioSpecificConfig
	profileLevelID   int

	fragments           [][]byte
	fragmentsSize       int
	fragmentNextSeqNum  uint16
	fragmentStreamID    int
	fragmentFirstLoss   uint16
	fragmentFirstMsgCtx rtpctx.MessageContext

	samplesPerFrame uint32

	pending []*codecitem.AudioFrame
}

func parseFMTP(raw string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.Split(raw, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.TrimSpace(kv[1])
	}
	return out
}

// New constructs a Depacketizer from the stream's clock rate, channel count
// and fmtp format-specific-parameters string.
func New(clockRate uint32, channels *int, formatSpecificParams string) (*Depacketizer, error) {
	fmtp := parseFMTP(formatSpecificParams)

	d := &Depacketizer{samplesPerFrame: 1024}

	for key, val := range fmtp {
		switch key {
		case "streamtype":
			if val != "5" {
				return nil, liberrors.UnsupportedConfigurationError{Description: "streamtype of AAC must be 5"}
			}

		case "mode":
			lower := strings.ToLower(val)
			if lower != "aac-hbr" && lower != "aac_hbr" {
				return nil, liberrors.UnsupportedConfigurationError{Description: fmt.Sprintf("unsupported AAC mode: %s", val)}
			}

		case "profile-level-id":
			n, err := strconv.ParseUint(val, 10, 31)
			if err != nil {
				return nil, liberrors.UnsupportedConfigurationError{Description: fmt.Sprintf("invalid profile-level-id: %s", val)}
			}
			d.profileLevelID = int(n)

		case "config":
			enc, err := hexDecode(val)
			if err != nil {
				return nil, liberrors.UnsupportedConfigurationError{Description: fmt.Sprintf("invalid AAC config: %s", val)}
			}
			cfg := &mpeg4audio.AudioSpecificConfig{}
			if err := cfg.Unmarshal(enc); err != nil {
				return nil, liberrors.UnsupportedConfigurationError{Description: fmt.Sprintf("invalid AAC config: %s", val)}
			}
			d.config = cfg

		case "sizelength":
			n, err := strconv.ParseUint(val, 10, 31)
			if err != nil || n > 100 {
				return nil, liberrors.UnsupportedConfigurationError{Description: fmt.Sprintf("invalid AAC SizeLength: %s", val)}
			}
			d.sizeLength = int(n)

		case "indexlength":
			n, err := strconv.ParseUint(val, 10, 31)
			if err != nil || n > 100 {
				return nil, liberrors.UnsupportedConfigurationError{Description: fmt.Sprintf("invalid AAC IndexLength: %s", val)}
			}
			d.indexLength = int(n)

		case "indexdeltalength":
			n, err := strconv.ParseUint(val, 10, 31)
			if err != nil || n > 100 {
				return nil, liberrors.UnsupportedConfigurationError{Description: fmt.Sprintf("invalid AAC IndexDeltaLength: %s", val)}
			}
			d.indexDeltaLength = int(n)
		}
	}

	if d.config == nil {
		return nil, liberrors.UnsupportedConfigurationError{Description: "AAC config is missing from format-specific-params"}
	}
	if d.sizeLength == 0 {
		return nil, liberrors.UnsupportedConfigurationError{Description: "AAC sizelength is missing from format-specific-params"}
	}
	if channels != nil && *channels != d.config.ChannelCount && d.config.ChannelCount != 0 {
		return nil, liberrors.UnsupportedConfigurationError{
			Description: fmt.Sprintf("channel count mismatch: SDP says %d, config says %d", *channels, d.config.ChannelCount),
		}
	}
	if d.config.FrameLengthFlag {
		d.samplesPerFrame = 960
	}
	if clockRate != uint32(d.config.SampleRate) {
		return nil, liberrors.UnsupportedConfigurationError{
			Description: fmt.Sprintf("clock rate mismatch: SDP says %d, config says %d", clockRate, d.config.SampleRate),
		}
	}

	return d, nil
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

// Parameters reports the codec's RFC-6381 string and serialized
// AudioSpecificConfig as decoder extra data.
func (d *Depacketizer) Parameters() *codecitem.Parameters {
	extra, _ := d.config.Marshal()
	return &codecitem.Parameters{
		Audio: &codecitem.AudioParameters{
			RFC6381Codec: fmt.Sprintf("mp4a.40.%d", int(d.config.Type)),
			FrameLength:  d.samplesPerFrame,
			ClockRate:    uint32(d.config.SampleRate),
			ExtraData:    extra,
		},
	}
}

func (d *Depacketizer) resetFragments() {
	d.fragments = nil
	d.fragmentsSize = 0
}

// readAUHeaders reads the AU-header-section and returns each AU's declared
// data length, per RFC 3640 section 3.2.1. Mirrors the teacher's
// readAUHeaders bit-cursor walk exactly, generalized to this package's types.
func (d *Depacketizer) readAUHeaders(buf []byte, headersLenBits int) ([]uint64, error) {
	count := 0
	for i := 0; i < headersLenBits; {
		if i == 0 {
			i += d.sizeLength + d.indexLength
		} else {
			i += d.sizeLength + d.indexDeltaLength
		}
		count++
	}

	dataLens := make([]uint64, count)
	pos := 0
	i := 0
	firstRead := false

	for headersLenBits > 0 {
		dataLen, err := bits.ReadBits(buf, &pos, d.sizeLength)
		if err != nil {
			return nil, err
		}
		headersLenBits -= d.sizeLength

		if !firstRead {
			firstRead = true
			if d.indexLength > 0 {
				auIndex, err := bits.ReadBits(buf, &pos, d.indexLength)
				if err != nil {
					return nil, err
				}
				headersLenBits -= d.indexLength
				if auIndex != 0 {
					return nil, fmt.Errorf("AU-index different than zero is not supported")
				}
			}
		} else if d.indexDeltaLength > 0 {
			auIndexDelta, err := bits.ReadBits(buf, &pos, d.indexDeltaLength)
			if err != nil {
				return nil, err
			}
			headersLenBits -= d.indexDeltaLength
			if auIndexDelta != 0 {
				return nil, fmt.Errorf("AU-index-delta different than zero is not supported")
			}
		}

		dataLens[i] = dataLen
		i++
	}

	return dataLens, nil
}

func joinFragments(fragments [][]byte, size int) []byte {
	out := make([]byte, 0, size)
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out
}

// Push parses the AU-header-section and AU-data-section, emitting ready AUs
// to the pending queue, or buffering a fragment until the access unit's
// final packet (marked by the RTP marker bit) arrives.
func (d *Depacketizer) Push(pkt *rtpdemux.Packet) error {
	if len(pkt.Payload) < 2 {
		d.resetFragments()
		return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "AAC payload is too short"}
	}

	headersLenBits := int(pkt.Payload[0])<<8 | int(pkt.Payload[1])
	if headersLenBits == 0 {
		d.resetFragments()
		return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "invalid AU-headers-length"}
	}
	payload := pkt.Payload[2:]

	dataLens, err := d.readAUHeaders(payload, headersLenBits)
	if err != nil {
		d.resetFragments()
		return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: err.Error()}
	}

	pos := headersLenBits / 8
	if headersLenBits%8 != 0 {
		pos++
	}
	if pos > len(payload) {
		d.resetFragments()
		return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "AU-headers-length exceeds payload"}
	}
	payload = payload[pos:]

	// Mid-fragment loss is recovered locally, not surfaced as an error: the
	// partial access unit accumulated so far is unusable, so it is discarded
	// and its accumulated loss carried forward onto whichever access unit
	// completes next.
	carriedLoss := pkt.Loss
	if d.fragmentsSize != 0 && pkt.SeqNum != d.fragmentNextSeqNum {
		carriedLoss = d.fragmentFirstLoss + pkt.Loss
		d.resetFragments()
	}

	var aus [][]byte
	var firstAULoss uint16

	if d.fragmentsSize == 0 {
		if pkt.Mark {
			aus = make([][]byte, len(dataLens))
			for i, dataLen := range dataLens {
				if len(payload) < int(dataLen) {
					return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "AAC payload is too short for declared AU length"}
				}
				aus[i] = payload[:dataLen]
				payload = payload[dataLen:]
			}
			firstAULoss = carriedLoss
		} else {
			if len(dataLens) != 1 {
				return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "a fragmented packet can only contain one AU"}
			}
			if len(payload) < int(dataLens[0]) {
				return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "AAC payload is too short for declared AU length"}
			}

			d.fragmentsSize = int(dataLens[0])
			d.fragments = append(d.fragments, payload[:dataLens[0]])
			d.fragmentNextSeqNum = pkt.SeqNum + 1
			d.fragmentStreamID = pkt.StreamID
			d.fragmentFirstLoss = carriedLoss
			d.fragmentFirstMsgCtx = pkt.MsgCtx
			return nil
		}
	} else {
		if len(dataLens) != 1 {
			d.resetFragments()
			return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "a fragmented packet can only contain one AU"}
		}
		if len(payload) < int(dataLens[0]) {
			d.resetFragments()
			return liberrors.PayloadStructureError{StreamID: pkt.StreamID, Description: "AAC payload is too short for declared AU length"}
		}

		d.fragmentsSize += int(dataLens[0])
		if d.fragmentsSize > maxAccessUnitSize {
			size := d.fragmentsSize
			d.resetFragments()
			return liberrors.PayloadStructureError{
				StreamID:    pkt.StreamID,
				Description: fmt.Sprintf("access unit size (%d) is too big, maximum is %d", size, maxAccessUnitSize),
			}
		}

		d.fragments = append(d.fragments, payload[:dataLens[0]])
		d.fragmentNextSeqNum++

		if !pkt.Mark {
			return nil
		}

		aus = [][]byte{joinFragments(d.fragments, d.fragmentsSize)}
		firstAULoss = d.fragmentFirstLoss
		d.resetFragments()
	}

	for i, au := range aus {
		ts := pkt.Timestamp
		ts.Value += uint64(i) * uint64(d.samplesPerFrame)
		loss := firstAULoss
		if i > 0 {
			loss = 0
		}
		d.pending = append(d.pending, &codecitem.AudioFrame{
			MsgCtx:      pkt.MsgCtx,
			StreamID:    pkt.StreamID,
			Timestamp:   ts,
			FrameLength: d.samplesPerFrame,
			Loss:        loss,
			Data:        au,
		})
	}

	return nil
}

// Pull drains one reassembled access unit at a time.
func (d *Depacketizer) Pull(_ rtpctx.ConnectionContext) (*codecitem.CodecItem, error) {
	if len(d.pending) == 0 {
		return nil, nil
	}
	frame := d.pending[0]
	d.pending = d.pending[1:]
	return &codecitem.CodecItem{AudioFrame: frame}, nil
}
