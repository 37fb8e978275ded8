package simpleaudio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
	"github.com/avreceive/rtspcore/pkg/rtptime"
)

func TestSimpleAudioFrameLength(t *testing.T) {
	d := New(8000, 8)

	pkt := &rtpdemux.Packet{
		StreamID:  0,
		Timestamp: rtptime.Timestamp{Value: 100, ClockRate: 8000},
		Payload:   make([]byte, 160),
	}

	require.NoError(t, d.Push(pkt))

	item, err := d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.NotNil(t, item)
	require.NotNil(t, item.AudioFrame)
	require.Equal(t, uint32(160), item.AudioFrame.FrameLength)

	item, err = d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.Nil(t, item)
}

func TestSimpleAudioEmptyPayloadFails(t *testing.T) {
	d := New(8000, 8)
	err := d.Push(&rtpdemux.Packet{Payload: nil})
	require.Error(t, err)
}

func TestSimpleAudioL16FrameLength(t *testing.T) {
	d := New(44100, 16)
	pkt := &rtpdemux.Packet{Payload: make([]byte, 32)}
	require.NoError(t, d.Push(pkt))

	item, err := d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.Equal(t, uint32(16), item.AudioFrame.FrameLength)
}
