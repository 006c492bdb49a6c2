package jitter

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// StreamConfig bundles the construction-time parameters of an
// InboundStream, following the "global mutable state becomes
// construction-time configuration" approach.
type StreamConfig struct {
	// FrameSampleCount is the number of interleaved samples per frame.
	FrameSampleCount int
	// FrameCapacity is the total number of frames the ring can hold.
	FrameCapacity int
	// SampleRate, in Hz, is used only to convert estimator output
	// between real time and frames; it has no analog and is
	// carried purely so JitterEstimator's microsecond math means
	// something. Zero or negative selects 48000.
	SampleRate int

	Settings Settings
	Decoder  PacketDecoder

	// Clock, if set, overrides the wall clock used for arrival
	// timestamps and window pruning. Nil selects time.Now.
	Clock func() int64
}

// InboundStream is the jitter-buffer core: it accepts
// datagram-delivered audio packets via ParseData, absorbs jitter and
// loss, and serves a frame-aligned sample stream to a consumer via
// PopFrames/PopSamples.
type InboundStream struct {
	ring     *RingBuffer
	decoder  PacketDecoder
	lossFill *lossFill
	clock    func() int64

	frameSampleCount  int
	frameDurationUsec int64

	// pending holds the most recently published Settings; effective
	// holds the copy actually in force, synced from pending once per
	// tick so a setter's effect is never visible mid-tick.
	pending atomic.Pointer[Settings]

	mu        sync.Mutex
	effective Settings

	seq       *SequenceNumberStats
	estimator *JitterEstimator
	starveCtl *StarveController
	depth     DepthPolicy

	hasStarted               bool
	consecutiveNotMixedCount int
	silentFramesDropped      int
	oldFramesDropped         int

	framesAvailableStat       *timeWeightedAvg
	currentJitterBufferFrames int

	statsWindow            *timegapWindow // 30s window for AudioStreamStats
	lastPacketReceivedNsec int64
	havePacketReceived     bool

	// frameCursors maps a sequence number to the ring cursor its frame
	// occupies, but only for frames that actually reserved ring space
	// (a real packet's own audio, or a loss-fill slot that was written
	// in full rather than elided). A LATE arrival for a sequence number
	// with no entry here has no addressable slot and is dropped.
	frameCursors map[uint16]int
}

// NewInboundStream constructs a stream. Returns an error if
// FrameSampleCount or FrameCapacity is less than 1 or Decoder is nil;
// these are the only fatal construction errors.
func NewInboundStream(cfg StreamConfig) (*InboundStream, error) {
	if cfg.FrameSampleCount < 1 {
		return nil, fmt.Errorf("jitter: frameSampleCount must be >= 1, got %d", cfg.FrameSampleCount)
	}
	if cfg.FrameCapacity < 1 {
		return nil, fmt.Errorf("jitter: frameCapacity must be >= 1, got %d", cfg.FrameCapacity)
	}
	if cfg.Decoder == nil {
		return nil, fmt.Errorf("jitter: decoder must not be nil")
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixNano() }
	}

	frameDurationUsec := int64(cfg.FrameSampleCount) * 1_000_000 / int64(sampleRate)
	if frameDurationUsec < 1 {
		frameDurationUsec = 1
	}

	s := &InboundStream{
		ring:              NewRingBuffer(cfg.FrameSampleCount, cfg.FrameCapacity),
		decoder:           cfg.Decoder,
		lossFill:          newLossFill(cfg.FrameSampleCount),
		clock:             clock,
		frameSampleCount:  cfg.FrameSampleCount,
		frameDurationUsec: frameDurationUsec,
		seq:               NewSequenceNumberStats(),
		framesAvailableStat: newTimeWeightedAvg(framesAvailableStatWindowUsec),
		statsWindow:       newTimegapWindow(int64(statsForStatsPacketWindowSeconds) * 1_000_000),
		frameCursors:      make(map[uint16]int),
	}

	s.effective = cfg.Settings
	s.pending.Store(&cfg.Settings)
	s.estimator = NewJitterEstimator(frameDurationUsec,
		cfg.Settings.WindowSecondsForDesiredCalcOnTooManyStarves,
		cfg.Settings.WindowSecondsForDesiredReduction)
	s.starveCtl = NewStarveController(cfg.Settings.WindowSecondsForDesiredCalcOnTooManyStarves,
		cfg.Settings.WindowStarveThreshold)

	if cfg.Settings.DynamicJitterBuffers {
		s.depth.SetDesiredFrames(0)
	} else {
		s.depth.SetDesiredFrames(cfg.Settings.StaticDesiredJitterBufferFrames)
	}

	return s, nil
}

func (s *InboundStream) now() int64 { return s.clock() }

// ParseData decodes one packet and folds it into the ring, returning
// the number of bytes consumed. Malformed, late, duplicate, and
// unreasonable packets are each handled by their own path below.
func (s *InboundStream) ParseData(packet []byte) int {
	packetType, seqNum, rest, err := s.decoder.DecodeHeader(packet)
	if err != nil {
		return 0
	}
	consumed := len(packet) - len(rest)

	result := s.classify(seqNum)

	switch result.class {
	case classUnreasonable:
		s.Reset()
		return consumed

	case classDuplicate:
		return len(packet)

	case classLate:
		return consumed + s.handleLate(packetType, rest, seqNum)

	default: // classOnTime, classEarly
		return consumed + s.handleAccepted(packetType, rest, seqNum, result)
	}
}

func (s *InboundStream) classify(seqNum uint16) seqResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.Classify(seqNum)
}

// handleLate looks up the ring cursor reserved for seqNum (recorded by
// a prior handleAccepted, either as the packet's own slot or as a
// fully-written loss-fill slot) and back-writes into it if still
// addressable. A sequence number with no recorded slot - because its
// gap was elided rather than silence-padded - has nowhere to go and is
// dropped. Back-writing a late arrival restores correct playback order
// for the consumer instead of discarding data that's still usable.
func (s *InboundStream) handleLate(packetType byte, rest []byte, seqNum uint16) int {
	numAudioSamples, payloadAfterProps, err := s.decoder.ParseStreamProperties(packetType, rest)
	propsConsumed := len(rest) - len(payloadAfterProps)
	if err != nil {
		return propsConsumed
	}

	samples, err := s.decoder.ParseAudioData(packetType, payloadAfterProps, numAudioSamples)
	if err != nil {
		return propsConsumed
	}

	s.mu.Lock()
	cursor, ok := s.frameCursors[seqNum]
	if ok {
		delete(s.frameCursors, seqNum)
	}
	s.mu.Unlock()

	if ok {
		s.ring.WriteAt(cursor, samples)
	}

	return propsConsumed + len(payloadAfterProps)
}

func (s *InboundStream) handleAccepted(packetType byte, rest []byte, seqNum uint16, result seqResult) int {
	numAudioSamples, payloadAfterProps, err := s.decoder.ParseStreamProperties(packetType, rest)
	consumed := len(rest) - len(payloadAfterProps)
	if err != nil {
		return consumed
	}

	if result.class == classEarly && result.gap > 0 {
		n := int(result.gap) * numAudioSamples
		cursorBeforeFill := s.ring.WriteCursor()
		s.writeSamplesForDroppedPackets(n)
		cursorAfterFill := s.ring.WriteCursor()

		if cursorAfterFill-cursorBeforeFill == n {
			s.mu.Lock()
			for k := 0; k < int(result.gap); k++ {
				skippedSeq := seqNum - result.gap + uint16(k)
				s.frameCursors[skippedSeq] = cursorBeforeFill + k*numAudioSamples
			}
			s.pruneFrameCursorsLocked()
			s.mu.Unlock()
		}
	}

	samples, err := s.decoder.ParseAudioData(packetType, payloadAfterProps, numAudioSamples)
	if err != nil {
		return consumed
	}
	ownCursor := s.ring.WriteCursor()
	s.ring.WriteSamples(samples, len(samples))
	consumed += len(payloadAfterProps)

	s.mu.Lock()
	s.frameCursors[seqNum] = ownCursor
	s.pruneFrameCursorsLocked()
	s.mu.Unlock()

	now := s.now()
	s.packetReceivedUpdateTimingStats(now)
	s.growDesiredOnStarveWindow(now)
	s.trimOverDesired()
	s.framesAvailableChanged(now)

	return consumed
}

// pruneFrameCursorsLocked evicts cursors that have already been popped
// past, bounding the map's growth over a long-running stream. Caller
// must hold s.mu.
func (s *InboundStream) pruneFrameCursorsLocked() {
	if len(s.frameCursors) <= 4*s.ring.FrameCapacity() {
		return
	}
	readCursor := s.ring.ReadCursor()
	for seq, cursor := range s.frameCursors {
		if cursor < readCursor {
			delete(s.frameCursors, seq)
		}
	}
}

func (s *InboundStream) packetReceivedUpdateTimingStats(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.havePacketReceived {
		gapUsec := (now - s.lastPacketReceivedNsec) / 1000
		s.statsWindow.add(now, gapUsec)
	}
	s.estimator.RecordArrival(now)
	s.lastPacketReceivedNsec = now
	s.havePacketReceived = true
}

// estimatorCandidateLocked returns F or P per s.effective.UseStdDev.
// Caller must hold s.mu.
func (s *InboundStream) estimatorCandidateLocked() int {
	if s.effective.UseStdDev {
		return s.estimator.FramesUsingStdDev()
	}
	return s.estimator.FramesUsingMaxGap()
}

// growDesiredOnStarveWindow applies DepthPolicy's growth branch from
// parseData, called after every accepted packet so a starve streak is
// noticed without waiting for the next per-second tick.
func (s *InboundStream) growDesiredOnStarveWindow(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tooMany := s.starveCtl.TooManyStarves(now)
	in := depthPolicyInputs{
		dynamicJitterBuffers: s.effective.DynamicJitterBuffers,
		staticDesiredFrames:  s.effective.StaticDesiredJitterBufferFrames,
		tooManyStarves:       tooMany,
		candidateFrames:      s.estimatorCandidateLocked(),
		frameCapacity:        s.ring.FrameCapacity(),
		maxFramesOverDesired: s.effective.MaxFramesOverDesired,
	}
	s.depth.RecomputeOnGrowth(in)
}

// writeSamplesForDroppedPackets synthesizes loss-fill for n samples'
// worth of dropped packets, eliding the write entirely when the buffer
// is already deep enough to absorb the gap without silence.
func (s *InboundStream) writeSamplesForDroppedPackets(n int) {
	if n <= 0 {
		return
	}
	fa := s.ring.FramesAvailable()
	s.mu.Lock()
	cur := s.currentJitterBufferFrames
	s.mu.Unlock()

	_, dropped := s.lossFill.apply(s.ring, n, fa, cur)
	if dropped > 0 {
		s.mu.Lock()
		s.silentFramesDropped += dropped
		s.mu.Unlock()
	}
}

// trimOverDesired drops the oldest frames once the ring exceeds
// desiredFrames + maxFramesOverDesired, keeping a starved-then-flooded
// sender from growing the buffer's latency without bound.
func (s *InboundStream) trimOverDesired() {
	fa := s.ring.FramesAvailable()

	s.mu.Lock()
	desired := s.depth.DesiredFrames()
	maxOver := s.effective.MaxFramesOverDesired
	s.mu.Unlock()

	if fa > desired+maxOver {
		dropped := s.ring.DropOldestFrames(fa - desired)
		s.mu.Lock()
		s.oldFramesDropped += dropped
		s.mu.Unlock()
	}
}

// framesAvailableChanged feeds the time-weighted framesAvailable
// statistic and refreshes currentJitterBufferFrames.
func (s *InboundStream) framesAvailableChanged(now int64) {
	fa := s.ring.FramesAvailable()

	s.mu.Lock()
	s.framesAvailableStat.update(now, fa)
	s.currentJitterBufferFrames = int(s.framesAvailableStat.average())
	desired := s.depth.DesiredFrames()
	s.starveCtl.ClearIfCaughtUp(fa, desired)
	s.mu.Unlock()
}

// PopFrames pops up to maxFrames frames.
func (s *InboundStream) PopFrames(maxFrames int, allOrNothing bool, starveIfNoFramesPopped bool) int {
	popped := s.ring.PopFrames(maxFrames, allOrNothing)
	now := s.now()

	if popped == 0 {
		if starveIfNoFramesPopped {
			s.recordStarve(now)
		}
	} else {
		s.mu.Lock()
		s.hasStarted = true
		s.consecutiveNotMixedCount = 0
		s.mu.Unlock()
	}

	s.framesAvailableChanged(now)
	return popped
}

// PopSamples is the sample-granularity analog of PopFrames.
func (s *InboundStream) PopSamples(maxSamples int, allOrNothing bool, starveIfNoSamplesPopped bool) int {
	popped := s.ring.PopSamples(maxSamples, allOrNothing)
	now := s.now()

	if popped == 0 {
		if starveIfNoSamplesPopped {
			s.recordStarve(now)
		}
	} else {
		s.mu.Lock()
		s.hasStarted = true
		s.consecutiveNotMixedCount = 0
		s.mu.Unlock()
	}

	s.framesAvailableChanged(now)
	return popped
}

func (s *InboundStream) recordStarve(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.consecutiveNotMixedCount++
	tooMany := s.starveCtl.RecordStarve(now)
	if tooMany {
		in := depthPolicyInputs{
			dynamicJitterBuffers: s.effective.DynamicJitterBuffers,
			staticDesiredFrames:  s.effective.StaticDesiredJitterBufferFrames,
			tooManyStarves:       true,
			candidateFrames:      s.estimatorCandidateLocked(),
			frameCapacity:        s.ring.FrameCapacity(),
			maxFramesOverDesired: s.effective.MaxFramesOverDesired,
		}
		s.depth.RecomputeOnGrowth(in)
	}
}

// LastPopSucceeded reports whether the most recent pop produced any
// frames/samples.
func (s *InboundStream) LastPopSucceeded() bool { return s.ring.LastPopSucceeded() }

// GetLastPopOutput returns the samples produced by the most recent
// successful pop.
func (s *InboundStream) GetLastPopOutput() []int16 { return s.ring.LastPopOutput() }

// SetToStarved forces isStarved, for a consumer signalling silence
// externally.
func (s *InboundStream) SetToStarved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starveCtl.SetStarved()
}

// ClearBuffer drops all buffered frames without resetting stats.
func (s *InboundStream) ClearBuffer() {
	s.ring.Clear()
}

// Reset clears the buffer, resets all stats, and forces a sequence
// resync.
func (s *InboundStream) Reset() {
	s.ring.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq.Reset()
	s.estimator.Reset()
	s.starveCtl.Reset()
	s.statsWindow.reset()
	s.framesAvailableStat.reset()
	s.hasStarted = false
	s.consecutiveNotMixedCount = 0
	s.silentFramesDropped = 0
	s.oldFramesDropped = 0
	s.currentJitterBufferFrames = 0
	s.lastPacketReceivedNsec = 0
	s.havePacketReceived = false
	s.frameCursors = make(map[uint16]int)

	if s.effective.DynamicJitterBuffers {
		s.depth.SetDesiredFrames(0)
	} else {
		s.depth.SetDesiredFrames(s.effective.StaticDesiredJitterBufferFrames)
	}
}

// ResetStats resets counters without touching buffered audio or the
// sequence baseline.
func (s *InboundStream) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq.ResetCounters()
	s.estimator.Reset()
	s.starveCtl.Reset()
	s.statsWindow.reset()
	s.hasStarted = false
	s.consecutiveNotMixedCount = 0
	s.silentFramesDropped = 0
	s.oldFramesDropped = 0
}

// SetSettings publishes new Settings, effective on the next tick.
func (s *InboundStream) SetSettings(settings Settings) {
	s.pending.Store(&settings)
}

func (s *InboundStream) currentPending() Settings {
	p := s.pending.Load()
	if p == nil {
		return DefaultSettings()
	}
	return *p
}

func (s *InboundStream) mutatePending(f func(*Settings)) {
	cur := s.currentPending()
	f(&cur)
	s.pending.Store(&cur)
}

func (s *InboundStream) SetMaxFramesOverDesired(v int) {
	s.mutatePending(func(st *Settings) { st.MaxFramesOverDesired = v })
}

func (s *InboundStream) SetDynamicJitterBuffers(v bool) {
	s.mutatePending(func(st *Settings) { st.DynamicJitterBuffers = v })
}

func (s *InboundStream) SetStaticDesiredJitterBufferFrames(v int) {
	s.mutatePending(func(st *Settings) { st.StaticDesiredJitterBufferFrames = v })
}

func (s *InboundStream) SetUseStdDev(v bool) {
	s.mutatePending(func(st *Settings) { st.UseStdDev = v })
}

func (s *InboundStream) SetWindowStarveThreshold(v int) {
	s.mutatePending(func(st *Settings) { st.WindowStarveThreshold = v })
}

func (s *InboundStream) SetWindowSecondsForDesiredCalcOnTooManyStarves(v int) {
	s.mutatePending(func(st *Settings) { st.WindowSecondsForDesiredCalcOnTooManyStarves = v })
}

func (s *InboundStream) SetWindowSecondsForDesiredReduction(v int) {
	s.mutatePending(func(st *Settings) { st.WindowSecondsForDesiredReduction = v })
}

// PerSecondCallbackForUpdatingStats advances the windowed estimators,
// recomputes F and P, applies DepthPolicy's growth/shrink rules, and
// refreshes currentJitterBufferFrames.
func (s *InboundStream) PerSecondCallbackForUpdatingStats() {
	now := s.now()

	s.mu.Lock()
	s.effective = s.currentPending()

	s.estimator.SetWindowSeconds(s.effective.WindowSecondsForDesiredCalcOnTooManyStarves,
		s.effective.WindowSecondsForDesiredReduction)
	s.starveCtl.SetWindowSeconds(s.effective.WindowSecondsForDesiredCalcOnTooManyStarves)
	s.starveCtl.SetThreshold(s.effective.WindowStarveThreshold)

	s.estimator.Tick(now)
	s.statsWindow.prune(now)

	tooMany := s.starveCtl.TooManyStarves(now)
	noStarvesInWindow := s.starveCtl.CountInWindow(now) == 0

	in := depthPolicyInputs{
		dynamicJitterBuffers:     s.effective.DynamicJitterBuffers,
		staticDesiredFrames:      s.effective.StaticDesiredJitterBufferFrames,
		tooManyStarves:           tooMany,
		candidateFrames:          s.estimatorCandidateLocked(),
		reductionCandidateFrames: s.estimator.ReductionCandidateFrames(),
		haveReductionData:        noStarvesInWindow,
		frameCapacity:            s.ring.FrameCapacity(),
		maxFramesOverDesired:     s.effective.MaxFramesOverDesired,
	}
	s.depth.RecomputeOnTick(in)
	s.mu.Unlock()

	s.trimOverDesired()
	s.framesAvailableChanged(now)
}

// GetAudioStreamStats returns a snapshot of the stream's derived state
// and counters.
func (s *InboundStream) GetAudioStreamStats() AudioStreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return AudioStreamStats{
		DesiredFrames:        s.depth.DesiredFrames(),
		FramesAvailable:      s.ring.FramesAvailable(),
		FramesAvailableAvg:   s.framesAvailableStat.average(),
		StarveCount:          s.starveCtl.StarveCount(),
		SilentFramesDropped:  s.silentFramesDropped,
		OverflowCount:        s.ring.GetOverflowCount(),
		OldFramesDropped:     s.oldFramesDropped,
		PacketsReceived:      s.seq.Received(),
		TimeGapMinUsec:       s.statsWindow.minGap(),
		TimeGapMaxUsec:       s.statsWindow.maxGap(),
		TimeGapAvgUsec:       s.statsWindow.avg(),
		TimeGapStdDevUsec:    s.statsWindow.stddev(),
	}
}

// IsStarved reports whether the stream is currently starved.
func (s *InboundStream) IsStarved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starveCtl.IsStarved()
}

// HasStarted reports whether a successful pop has ever occurred.
func (s *InboundStream) HasStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasStarted
}

// GetDesiredJitterBufferFrames returns the current target depth.
func (s *InboundStream) GetDesiredJitterBufferFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth.DesiredFrames()
}

// GetFramesAvailable returns the ring's current frame count.
func (s *InboundStream) GetFramesAvailable() int { return s.ring.FramesAvailable() }

// GetStarveCount returns the cumulative starve count.
func (s *InboundStream) GetStarveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starveCtl.StarveCount()
}

// GetConsecutiveNotMixedCount returns how many starves have been
// recorded since the last successful pop. Failed pops made with
// starving disabled are not counted.
func (s *InboundStream) GetConsecutiveNotMixedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveNotMixedCount
}
