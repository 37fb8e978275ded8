package h264

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
	"github.com/avreceive/rtspcore/pkg/rtptime"
)

func naluPayload(nalType byte, nri byte, body []byte) []byte {
	header := (nri << 5) | (nalType & 0x1F)
	return append([]byte{header}, body...)
}

func TestH264SingleNALUAccessUnit(t *testing.T) {
	d, err := New(90000, "")
	require.NoError(t, err)

	payload := naluPayload(5, 3, []byte{1, 2, 3}) // IDR, nal_ref_idc=3

	pkt := &rtpdemux.Packet{
		StreamID:  0,
		Timestamp: rtptime.Timestamp{Value: 3000, ClockRate: 90000},
		Mark:      true,
		Payload:   payload,
	}
	require.NoError(t, d.Push(pkt))

	item, err := d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.NotNil(t, item.VideoFrame)
	require.True(t, item.VideoFrame.IsRandomAccessPoint)
	require.False(t, item.VideoFrame.IsDisposable)
	// AVCC-framed: 4-byte length prefix (big-endian 4) + the NALU bytes.
	require.Equal(t, []byte{0, 0, 0, 4, payload[0], 1, 2, 3}, item.VideoFrame.Data)
}

func TestH264STAPASplitsAndCachesParameters(t *testing.T) {
	d, err := New(90000, "")
	require.NoError(t, err)

	sps := naluPayload(7, 3, []byte{0x64, 0x00, 0x1F, 0xAA}) // profile_idc etc follow header
	pps := naluPayload(8, 3, []byte{0xCE, 0x3C})

	stapPayload := []byte{24} // STAP-A header (type 24, nri doesn't matter for type byte low 5 bits)
	for _, nalu := range [][]byte{sps, pps} {
		stapPayload = append(stapPayload, byte(len(nalu)>>8), byte(len(nalu)))
		stapPayload = append(stapPayload, nalu...)
	}

	pkt := &rtpdemux.Packet{
		Timestamp: rtptime.Timestamp{Value: 0, ClockRate: 90000},
		Mark:      true,
		Payload:   stapPayload,
	}
	require.NoError(t, d.Push(pkt))

	item, err := d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.NotNil(t, item.VideoFrame)
	require.NotNil(t, item.VideoFrame.NewParameters)
	require.NotEmpty(t, item.VideoFrame.NewParameters.ExtraData)
}

func TestH264FUAReassembly(t *testing.T) {
	d, err := New(90000, "")
	require.NoError(t, err)

	fullNALU := naluPayload(1, 2, []byte{10, 20, 30, 40, 50}) // non-IDR slice

	// split fullNALU[1:] (the body after the NAL header byte) across two FU-A fragments.
	body := fullNALU[1:]
	nri := (fullNALU[0] >> 5) & 0x03
	naluType := fullNALU[0] & 0x1F

	startFrag := []byte{(nri << 5) | 28, 0x80 | naluType} // FU-A, start bit set
	startFrag = append(startFrag, body[:2]...)

	endFrag := []byte{(nri << 5) | 28, 0x40 | naluType} // FU-A, end bit set
	endFrag = append(endFrag, body[2:]...)

	pkt1 := &rtpdemux.Packet{Mark: false, Payload: startFrag}
	require.NoError(t, d.Push(pkt1))
	item, err := d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.Nil(t, item)

	pkt2 := &rtpdemux.Packet{
		Mark:      true,
		Timestamp: rtptime.Timestamp{Value: 100, ClockRate: 90000},
		Payload:   endFrag,
	}
	require.NoError(t, d.Push(pkt2))

	item, err = d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.NotNil(t, item.VideoFrame)
	require.Equal(t, []byte{0, 0, 0, byte(len(fullNALU))}, item.VideoFrame.Data[:4])
	require.Equal(t, fullNALU, item.VideoFrame.Data[4:])
	require.False(t, item.VideoFrame.IsRandomAccessPoint)
}

func TestH264MidAccessUnitLossDropsPartialFrame(t *testing.T) {
	d, err := New(90000, "")
	require.NoError(t, err)

	firstNALU := naluPayload(1, 2, []byte{1, 2, 3}) // non-IDR slice, not marked: AU still open
	require.NoError(t, d.Push(&rtpdemux.Packet{Mark: false, Payload: firstNALU}))

	item, err := d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.Nil(t, item) // access unit still open, nothing emitted yet

	// a packet arrives mid-access-unit with loss recorded: the partial AU
	// built from firstNALU must be dropped, not concatenated with what
	// follows, and the loss must carry onto the next completed frame.
	idrNALU := naluPayload(5, 3, []byte{9, 9, 9})
	pkt := &rtpdemux.Packet{
		Mark:      true,
		Loss:      3,
		Timestamp: rtptime.Timestamp{Value: 200, ClockRate: 90000},
		Payload:   idrNALU,
	}
	require.NoError(t, d.Push(pkt))

	item, err = d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.NotNil(t, item.VideoFrame)
	require.Equal(t, uint16(3), item.VideoFrame.Loss)
	// the emitted AVCC payload must contain only idrNALU, not firstNALU.
	require.Equal(t, []byte{0, 0, 0, byte(len(idrNALU))}, item.VideoFrame.Data[:4])
	require.Equal(t, idrNALU, item.VideoFrame.Data[4:])
}

func TestH264NonStartingFUAWithoutPriorFragmentFails(t *testing.T) {
	d, err := New(90000, "")
	require.NoError(t, err)

	frag := []byte{(2 << 5) | 28, 0x40 | 1, 1, 2, 3} // end fragment, never started
	err = d.Push(&rtpdemux.Packet{Payload: frag})
	require.Error(t, err)
}

func TestH264EmptyPayloadRejected(t *testing.T) {
	d, err := New(90000, "")
	require.NoError(t, err)
	err = d.Push(&rtpdemux.Packet{Payload: nil})
	require.Error(t, err)
}
