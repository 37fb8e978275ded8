// Package rtpio contains the framing sanitization step that runs before RTP
// or RTCP parsing.
package rtpio

import "encoding/binary"

// interleavedFrameMagicByte is the first byte of a RTSP interleaved frame
// header ('$'). Genuine RTP/RTCP packets can never begin with this byte,
// since their first octet always encodes version=2 (binary 10......).
const interleavedFrameMagicByte = 0x24

// StripDoubleWrap detects and removes a spurious, doubly-wrapped
// interleaved-frame header occasionally produced by buggy cameras, which
// wrap one interleaved message inside another. If data begins with the
// interleaved-frame magic byte, has length greater than 4, and bytes [2:4]
// parsed big-endian as a u16 describe a length no larger than len(data)-4,
// the leading 4 bytes are stripped. Otherwise data is returned unmodified.
func StripDoubleWrap(data []byte) []byte {
	if len(data) > 4 && data[0] == interleavedFrameMagicByte {
		innerLen := int(binary.BigEndian.Uint16(data[2:4]))
		if innerLen <= len(data)-4 {
			return data[4:]
		}
	}
	return data
}
