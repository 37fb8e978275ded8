package rtptime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimelineFirstCallLatches(t *testing.T) {
	tl := NewTimeline(90000)
	ts, err := tl.AdvanceTo(12345)
	require.NoError(t, err)
	require.Equal(t, uint64(0), ts.Value)
	require.Equal(t, uint32(90000), ts.ClockRate)
}

func TestTimelineMonotonicAdvance(t *testing.T) {
	tl := NewTimeline(90000)

	for _, ca := range []struct {
		rtp      uint32
		expected uint64
	}{
		{1000, 0},
		{1000 + 3000, 3000},
		{1000 + 3000 + 3000, 6000},
	} {
		ts, err := tl.AdvanceTo(ca.rtp)
		require.NoError(t, err)
		require.Equal(t, ca.expected, ts.Value)
	}
}

func TestTimelineWraparound(t *testing.T) {
	tl := NewTimeline(90000)

	_, err := tl.AdvanceTo(0xFFFFFFF0)
	require.NoError(t, err)

	// advance past the 32-bit wrap by 0x20 units.
	ts, err := tl.AdvanceTo(0x10)
	require.NoError(t, err)
	require.Equal(t, uint64(0x20), ts.Value)
}

func TestTimelinePlaceDoesNotMutate(t *testing.T) {
	tl := NewTimeline(90000)
	_, err := tl.AdvanceTo(1000)
	require.NoError(t, err)

	// placing a timestamp in the past must not disturb subsequent AdvanceTo.
	placed, err := tl.Place(500)
	require.NoError(t, err)
	require.Equal(t, uint64(int64(-500)), placed.Value) // represents a logical instant before the latched reference

	ts, err := tl.AdvanceTo(1500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), ts.Value)
}

func TestTimelinePlaceBeforeAnyAdvanceErrors(t *testing.T) {
	tl := NewTimeline(8000)
	_, err := tl.Place(123)
	require.Error(t, err)
}
