package jitter

import (
	"encoding/binary"
	"testing"

	assert "github.com/huandu/go-assert"
)

// fakeClock gives scenario tests full control over wall-clock time, so
// windowed behavior (timeWeightedAvg flushes, starve windows, estimator
// windows) is deterministic without sleeping.
type fakeClock struct{ nowNsec int64 }

func (c *fakeClock) now() int64              { return c.nowNsec }
func (c *fakeClock) advance(deltaNsec int64) { c.nowNsec += deltaNsec }

// testDecoder is a minimal wire format for these tests: a 2-byte
// big-endian sequence number followed by little-endian int16 samples.
// It keeps pkg/jitter's tests self-contained rather than importing
// pkg/wire.
type testDecoder struct{}

func (testDecoder) DecodeHeader(packet []byte) (byte, uint16, []byte, error) {
	if len(packet) < 2 {
		return 0, 0, nil, ErrMalformedPacket
	}
	return 0, binary.BigEndian.Uint16(packet[:2]), packet[2:], nil
}

func (testDecoder) ParseStreamProperties(_ byte, rest []byte) (int, []byte, error) {
	if len(rest)%2 != 0 {
		return 0, nil, ErrMalformedPacket
	}
	return len(rest) / 2, rest, nil
}

func (testDecoder) ParseAudioData(_ byte, payload []byte, n int) ([]int16, error) {
	if len(payload) < n*2 {
		return nil, ErrMalformedPacket
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(payload[i*2 : i*2+2]))
	}
	return out, nil
}

func testPacket(seq uint16, val int16, frameSampleCount int) []byte {
	buf := make([]byte, 2+frameSampleCount*2)
	binary.BigEndian.PutUint16(buf, seq)
	for i := 0; i < frameSampleCount; i++ {
		binary.LittleEndian.PutUint16(buf[2+i*2:], uint16(val))
	}
	return buf
}

func newTestStream(t *testing.T, clock func() int64, settings Settings) *InboundStream {
	t.Helper()
	s, err := NewInboundStream(StreamConfig{
		FrameSampleCount: 4,
		FrameCapacity:    100,
		SampleRate:       48000,
		Settings:         settings,
		Decoder:          testDecoder{},
		Clock:            clock,
	})
	assert.Assert(t, err == nil)
	return s
}

func staticSettings() Settings {
	s := DefaultSettings()
	s.DynamicJitterBuffers = false
	s.StaticDesiredJitterBufferFrames = 1
	return s
}

// Scenario 1: lossless in-order delivery under a static target never
// starves and never drops silence.
func TestInboundStreamLosslessInOrderStatic(t *testing.T) {
	clock := &fakeClock{}
	s := newTestStream(t, clock.now, staticSettings())

	for i := uint16(0); i < 10; i++ {
		n := s.ParseData(testPacket(i, int16(i), 4))
		assert.Assert(t, n > 0)
	}

	for i := uint16(0); i < 10; i++ {
		popped := s.PopFrames(1, true, true)
		assert.Equal(t, popped, 1)
		assert.Equal(t, s.GetLastPopOutput(), []int16{int16(i), int16(i), int16(i), int16(i)})
	}

	assert.Equal(t, s.GetStarveCount(), 0)
	stats := s.GetAudioStreamStats()
	assert.Equal(t, stats.SilentFramesDropped, 0)
	assert.Equal(t, stats.PacketsReceived, 10)
}

// Scenario 2: a single dropped packet triggers loss-fill. At stream
// startup currentJitterBufferFrames is still 0, so framesAvailable
// already sits at-or-above it and the fill is elided rather than
// padded with silence.
func TestInboundStreamSinglePacketLoss(t *testing.T) {
	clock := &fakeClock{}
	s := newTestStream(t, clock.now, DefaultSettings())

	s.ParseData(testPacket(0, 10, 4))
	s.ParseData(testPacket(1, 11, 4))
	s.ParseData(testPacket(3, 13, 4)) // seq 2 never arrives

	stats := s.GetAudioStreamStats()
	assert.Equal(t, stats.SilentFramesDropped, 4)
	assert.Equal(t, stats.FramesAvailable, 3) // no placeholder frame for seq 2
	assert.Equal(t, s.seq.Lost(), 1)
}

// Scenario 3: a duplicate packet is counted but has no effect on the
// buffered content.
func TestInboundStreamDuplicatePacket(t *testing.T) {
	clock := &fakeClock{}
	s := newTestStream(t, clock.now, staticSettings())

	s.ParseData(testPacket(0, 100, 4))
	s.ParseData(testPacket(1, 101, 4))
	s.ParseData(testPacket(1, 999, 4)) // duplicate, must not overwrite
	s.ParseData(testPacket(2, 102, 4))

	assert.Equal(t, s.seq.Duplicate(), 1)

	for _, want := range []int16{100, 101, 102} {
		popped := s.PopFrames(1, true, true)
		assert.Equal(t, popped, 1)
		assert.Equal(t, s.GetLastPopOutput()[0], want)
	}
}

// Scenario 4: a packet that arrives late (after a gap was already
// silence-padded) is back-written into its historical slot rather than
// dropped, restoring correct order for the consumer - but only because
// the gap was padded in full; see TestInboundStreamSinglePacketLoss for
// the elided case where no slot exists to back-write into.
func TestInboundStreamReorderWithinWindowBackWrites(t *testing.T) {
	clock := &fakeClock{}
	s := newTestStream(t, clock.now, DefaultSettings())

	// Seed a high historical average for currentJitterBufferFrames so
	// that the upcoming loss-fill sees framesAvailable below it and
	// pads with silence in full, rather than eliding.
	for i := uint16(0); i < 8; i++ {
		s.ParseData(testPacket(i, int16(i), 4))
	}
	clock.advance(3_000_000_000) // past the 2s averaging window
	s.PopFrames(0, false, false) // forces framesAvailableChanged to flush the average
	assert.Equal(t, s.currentJitterBufferFrames, 8)

	popped := s.PopFrames(8, true, true)
	assert.Equal(t, popped, 8)
	assert.Equal(t, s.GetFramesAvailable(), 0)

	// Baseline is now at seq 8 (expected next). Reorder analogous to
	// "0,2,1,3" pattern, translated by +8: 8,10,9,11.
	s.ParseData(testPacket(8, 80, 4))
	s.ParseData(testPacket(10, 100, 4)) // early, skips seq 9
	s.ParseData(testPacket(9, 90, 4))   // late, back-writes into seq 9's slot
	s.ParseData(testPacket(11, 110, 4))

	assert.Equal(t, s.seq.Late(), 1)

	want := []int16{80, 90, 100, 110}
	for _, w := range want {
		n := s.PopFrames(1, true, true)
		assert.Equal(t, n, 1)
		assert.Equal(t, s.GetLastPopOutput()[0], w)
	}
}

// Scenario 5: an unreasonable sequence jump forces a full resync:
// stats and the sequence baseline are reset, and the next packet is
// classified fresh against the new baseline.
func TestInboundStreamUnreasonableJumpForcesResync(t *testing.T) {
	clock := &fakeClock{}
	s := newTestStream(t, clock.now, staticSettings())

	s.ParseData(testPacket(0, 1, 4))
	s.ParseData(testPacket(1, 2, 4))
	s.ParseData(testPacket(40000, 3, 4)) // unreasonable jump, triggers Reset

	assert.Equal(t, s.GetFramesAvailable(), 0)
	assert.Equal(t, s.GetStarveCount(), 0)

	r := s.classify(41000)
	assert.Equal(t, r.class, classOnTime) // the old baseline is gone: first packet after the reset

	// after another Reset, any sequence number is again taken as a fresh first packet
	s.Reset()
	r2 := s.classify(5)
	assert.Equal(t, r2.class, classOnTime)
}

// Scenario 6: repeated starves (no frames ever popped) grow the
// dynamic desired depth past its initial value.
func TestInboundStreamStarveDrivenGrowth(t *testing.T) {
	clock := &fakeClock{}
	settings := DefaultSettings()
	settings.WindowStarveThreshold = 2
	s := newTestStream(t, clock.now, settings)

	initial := s.GetDesiredJitterBufferFrames()

	for i := 0; i < 3; i++ {
		popped := s.PopFrames(1, true, true) // nothing buffered: each call starves
		assert.Equal(t, popped, 0)
		clock.advance(1_000_000) // keep starves within the window
	}

	assert.Assert(t, s.GetStarveCount() >= 2)
	assert.Assert(t, s.GetDesiredJitterBufferFrames() > initial)
}

// Property: framesAvailable never exceeds the ring's capacity and is
// never negative, across an interleaving of writes and pops.
func TestInboundStreamFramesAvailableStaysBounded(t *testing.T) {
	clock := &fakeClock{}
	s := newTestStream(t, clock.now, DefaultSettings())

	for i := uint16(0); i < 200; i++ {
		s.ParseData(testPacket(i, int16(i), 4))
		fa := s.GetFramesAvailable()
		assert.Assert(t, fa >= 0 && fa <= 100)
		if i%3 == 0 {
			s.PopFrames(1, false, false)
		}
		clock.advance(20_000_000) // 20ms between packets
	}
}

// Property: ResetStats zeroes counters without discarding buffered
// audio or resyncing the sequence baseline.
func TestInboundStreamResetStatsKeepsBufferedAudio(t *testing.T) {
	clock := &fakeClock{}
	s := newTestStream(t, clock.now, staticSettings())

	s.ParseData(testPacket(0, 1, 4))
	s.ParseData(testPacket(1, 2, 4))
	before := s.GetFramesAvailable()

	s.ResetStats()

	assert.Equal(t, s.GetFramesAvailable(), before)
	assert.Equal(t, s.GetStarveCount(), 0)

	// the baseline survives: seq 2 is still on-time, not a resync
	r := s.classify(2)
	assert.Equal(t, r.class, classOnTime)
}
