package onvif

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avreceive/rtspcore/pkg/codecitem"
	"github.com/avreceive/rtspcore/pkg/rtpctx"
	"github.com/avreceive/rtspcore/pkg/rtpdemux"
)

func TestONVIFConcatenatesUntilMark(t *testing.T) {
	d := New(90000, codecitem.CompressionGzip)

	require.NoError(t, d.Push(&rtpdemux.Packet{Payload: []byte("part1-")}))
	item, err := d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.Nil(t, item)

	require.NoError(t, d.Push(&rtpdemux.Packet{Mark: true, Payload: []byte("part2")}))
	item, err = d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.NotNil(t, item.MessageFrame)
	require.Equal(t, "part1-part2", string(item.MessageFrame.Data))
}

func TestONVIFDropsPartialMessageOnLoss(t *testing.T) {
	d := New(90000, codecitem.CompressionUncompressed)

	require.NoError(t, d.Push(&rtpdemux.Packet{Payload: []byte("part1-")}))

	// mid-message loss is recovered locally, never surfaced as an error: the
	// partial message is dropped and the lossy packet starts a fresh one.
	require.NoError(t, d.Push(&rtpdemux.Packet{Loss: 1, Payload: []byte("part2")}))

	// the partial message must have been discarded: the next complete
	// message should not contain "part1-", and the loss recorded above must
	// carry forward onto it.
	require.NoError(t, d.Push(&rtpdemux.Packet{Mark: true, Payload: []byte("fresh")}))
	item, err := d.Pull(rtpctx.ConnectionContext{})
	require.NoError(t, err)
	require.Equal(t, "part2fresh", string(item.MessageFrame.Data))
	require.Equal(t, uint16(1), item.MessageFrame.Loss)
}

func TestONVIFParametersReportCompressionType(t *testing.T) {
	d := New(90000, codecitem.CompressionExiInBand)
	params := d.Parameters()
	require.Equal(t, codecitem.CompressionExiInBand, params.Message.Compression)
}
