package depacketizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avreceive/rtspcore/pkg/depacketizer/aac"
	"github.com/avreceive/rtspcore/pkg/depacketizer/g723"
	"github.com/avreceive/rtspcore/pkg/depacketizer/h264"
	"github.com/avreceive/rtspcore/pkg/depacketizer/onvif"
	"github.com/avreceive/rtspcore/pkg/depacketizer/simpleaudio"
)

func TestNewSelectsH264(t *testing.T) {
	d, err := New("video", "H264", 90000, nil, "")
	require.NoError(t, err)
	_, ok := d.(*h264.Depacketizer)
	require.True(t, ok)
}

func TestNewSelectsAAC(t *testing.T) {
	d, err := New("audio", "mpeg4-generic", 48000, nil, "streamtype=5;sizelength=13;indexlength=3;indexdeltalength=3;config=1190")
	require.NoError(t, err)
	_, ok := d.(*aac.Depacketizer)
	require.True(t, ok)
}

func TestNewSelectsG723(t *testing.T) {
	d, err := New("audio", "G723", 8000, nil, "")
	require.NoError(t, err)
	_, ok := d.(*g723.Depacketizer)
	require.True(t, ok)
}

func TestNewSelectsSimpleAudioPCMA(t *testing.T) {
	d, err := New("audio", "PCMA", 8000, nil, "")
	require.NoError(t, err)
	_, ok := d.(*simpleaudio.Depacketizer)
	require.True(t, ok)
}

func TestNewSelectsONVIFVariants(t *testing.T) {
	for _, encoding := range []string{
		"vnd.onvif.metadata",
		"vnd.onvif.metadata.gzip",
		"vnd.onvif.metadata.exi.onvif",
		"vnd.onvif.metadata.exi.ext",
	} {
		d, err := New("application", encoding, 90000, nil, "")
		require.NoError(t, err)
		_, ok := d.(*onvif.Depacketizer)
		require.True(t, ok)
	}
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	_, err := New("video", "VP8", 90000, nil, "")
	require.Error(t, err)
}
