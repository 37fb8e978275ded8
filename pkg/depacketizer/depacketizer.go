// Package depacketizer selects and drives the per-codec reassembly state
// machine for one stream, turning a sequence of RTP packets into codec
// items. It is the Go analogue of retina's codec::Depacketizer
// (original_source/src/codec/mod.rs): a closed sum of five concrete
// implementations chosen once at stream setup from (media, encoding name).
package depacketizer

import (
	"fmt"
	"strings"

	"github.com/avreceive/rtspcore/pkg/codecitem"
	"github.com/avreceive/rtspcore/pkg/depacketizer/aac"
	"github.com/avreceive/rtspcore/pkg/depacketizer/g723"
	"github.com/avreceive/rtspcore/pkg/depacketizer/h264"
	"github.com/avreceive/rtspcore/pkg/depacketizer/onvif"
	"github.com/avreceive/rtspcore/pkg/depacketizer/simpleaudio"
	"github.com/avreceive/rtspcore/pkg/liberrors"
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
)

// Depacketizer turns pushed RTP packets into codec items for one stream.
//
// Contract: after a Push that may have produced output, the caller must
// drain it via repeated Pull calls (until Pull returns a nil item) before
// the next Push.
type Depacketizer interface {
	// Parameters returns the best-known stream parameters. It may return
	// nil until the first descriptive packet has been seen.
	Parameters() *codecitem.Parameters

	// Push feeds one RTP packet into the depacketizer's reassembly state.
	Push(pkt *rtpdemux.Packet) error

	// Pull returns one ready codec item, or nil if none is ready.
	Pull(connCtx rtpctx.ConnectionContext) (*codecitem.CodecItem, error)
}

// New selects and constructs a Depacketizer for a stream, from the
// (media, encoding name) pair and the parameters parsed from SDP by the
// RTSP signaling layer (out of scope for this package; see
// pkg/streamsetup.Descriptor for the caller-facing seam).
func New(media, encodingName string, clockRate uint32, channels *int, formatSpecificParams string) (Depacketizer, error) {
	media = strings.ToLower(media)
	encodingName = strings.ToLower(encodingName)

	switch {
	case media == "video" && encodingName == "h264":
		return h264.New(clockRate, formatSpecificParams)

	case media == "audio" && encodingName == "mpeg4-generic":
		return aac.New(clockRate, channels, formatSpecificParams)

	case media == "audio" && encodingName == "g726-16":
		return simpleaudio.New(clockRate, 2), nil
	case media == "audio" && encodingName == "g726-24":
		return simpleaudio.New(clockRate, 3), nil
	case media == "audio" && (encodingName == "dvi4" || encodingName == "g726-32"):
		return simpleaudio.New(clockRate, 4), nil
	case media == "audio" && encodingName == "g726-40":
		return simpleaudio.New(clockRate, 5), nil
	case media == "audio" && (encodingName == "pcma" || encodingName == "pcmu" ||
		encodingName == "u8" || encodingName == "g722"):
		return simpleaudio.New(clockRate, 8), nil
	case media == "audio" && encodingName == "l16":
		return simpleaudio.New(clockRate, 16), nil

	case media == "audio" && encodingName == "g723":
		return g723.New(clockRate)

	case media == "application" && encodingName == "vnd.onvif.metadata":
		return onvif.New(clockRate, codecitem.CompressionUncompressed), nil
	case media == "application" && encodingName == "vnd.onvif.metadata.gzip":
		return onvif.New(clockRate, codecitem.CompressionGzip), nil
	case media == "application" && encodingName == "vnd.onvif.metadata.exi.onvif":
		return onvif.New(clockRate, codecitem.CompressionExiDefault), nil
	case media == "application" && encodingName == "vnd.onvif.metadata.exi.ext":
		return onvif.New(clockRate, codecitem.CompressionExiInBand), nil

	default:
		return nil, liberrors.UnsupportedConfigurationError{
			Description: fmt.Sprintf("no depacketizer for media/encoding_name %s/%s", media, encodingName),
		}
	}
}
