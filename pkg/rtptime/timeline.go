// Package rtptime expands the wrapping 32-bit RTP clock into a monotonic
// 64-bit logical timestamp, one Timeline per stream.
//
// The wraparound bookkeeping is the same trick the teacher library uses in
// its WebRTC/RTSP-to-MP4 timestamp decoders (pkg/rtptime.GlobalDecoder,
// pkg/rtptimedec.Decoder): each new sample's unsigned distance from the
// previous one is added to a 64-bit accumulator, so a 32-bit wrap never
// resets the clock. Those decoders only ever move forward in time and never
// need to "peek" at a value without committing it; RTCP sender reports can
// legitimately reference a RTP timestamp already in the past, so this
// package adds a second, non-mutating operation (Place) that the teacher's
// decoders don't need.
package rtptime

import "fmt"

// Timestamp is a 64-bit logical timestamp together with the clock rate
// (in Hz) it was produced from.
type Timestamp struct {
	Value     uint64
	ClockRate uint32
}

// Timeline expands a stream's wrapping 32-bit RTP timestamp into a
// monotonically increasing 64-bit logical timestamp. It is private to one
// stream and must not be shared across SSRCs.
type Timeline struct {
	clockRate   uint32
	initialized bool
	lastRTP32   uint32
	accum       int64
}

// NewTimeline allocates a Timeline for a stream with the given clock rate.
func NewTimeline(clockRate uint32) *Timeline {
	return &Timeline{clockRate: clockRate}
}

// AdvanceTo computes the logical timestamp of rtp32 and advances the
// timeline's state to it. On the first call, the accumulator is latched at
// zero and rtp32 becomes the reference point. On later calls, the unsigned
// wrapping distance (rtp32 - previous) mod 2^32 is added to the accumulator,
// so the logical timestamp never decreases; a timestamp that steps backward
// counts as a forward jump of nearly 2^32 units. Large jumps are not
// policed, and AdvanceTo never returns an error.
func (t *Timeline) AdvanceTo(rtp32 uint32) (Timestamp, error) {
	if !t.initialized {
		t.initialized = true
		t.lastRTP32 = rtp32
		t.accum = 0
		return Timestamp{Value: 0, ClockRate: t.clockRate}, nil
	}

	delta := int64(rtp32 - t.lastRTP32)
	t.accum += delta
	t.lastRTP32 = rtp32

	return Timestamp{Value: uint64(t.accum), ClockRate: t.clockRate}, nil
}

// Place computes the logical timestamp that rtp32 would have, without
// mutating the timeline's state. It is used for RTCP sender reports, whose
// timestamp may legitimately lag the current playback position. Calling
// Place never changes what a later AdvanceTo or Place call returns.
func (t *Timeline) Place(rtp32 uint32) (Timestamp, error) {
	if !t.initialized {
		return Timestamp{}, fmt.Errorf("no RTP packets received yet on this stream")
	}

	delta := int64(int32(rtp32 - t.lastRTP32))
	return Timestamp{Value: uint64(t.accum + delta), ClockRate: t.clockRate}, nil
}

// ClockRate returns the clock rate the timeline was created with.
func (t *Timeline) ClockRate() uint32 {
	return t.clockRate
}
