package jitter

// framesAvailableStatWindowUsec is the window over which
// currentJitterBufferFrames is refreshed from a time-weighted average
// of framesAvailable.
const framesAvailableStatWindowUsec = 2_000_000

// statsForStatsPacketWindowSeconds is the window used only for the
// timegap min/max/avg/stddev reported in AudioStreamStats, independent
// of the windows that feed DepthPolicy.
const statsForStatsPacketWindowSeconds = 30

// timeWeightedAvg integrates a step-valued series over time and
// flushes a windowed average, matching the source's
// TimeWeightedAvg<int>/_framesAvailableStat behavior: every time the
// window fills, the running average becomes the reported value and
// accumulation restarts.
type timeWeightedAvg struct {
	windowUsec int64

	haveSample      bool
	windowStartNsec int64
	lastValue       int
	lastSampleNsec  int64
	accumulated     float64 // sum of value * duration(ns) within the window

	reported float64
}

func newTimeWeightedAvg(windowUsec int64) *timeWeightedAvg {
	return &timeWeightedAvg{windowUsec: windowUsec}
}

// update records that the series held its previous value up to
// nowNsec, then changed to value.
func (t *timeWeightedAvg) update(nowNsec int64, value int) {
	if !t.haveSample {
		t.haveSample = true
		t.windowStartNsec = nowNsec
		t.lastSampleNsec = nowNsec
		t.lastValue = value
		return
	}

	dt := nowNsec - t.lastSampleNsec
	t.accumulated += float64(t.lastValue) * float64(dt)
	t.lastValue = value
	t.lastSampleNsec = nowNsec

	elapsed := nowNsec - t.windowStartNsec
	if elapsed >= t.windowUsec*1000 {
		if elapsed > 0 {
			t.reported = t.accumulated / float64(elapsed)
		}
		t.accumulated = 0
		t.windowStartNsec = nowNsec
	}
}

// average returns the most recently flushed time-weighted average.
func (t *timeWeightedAvg) average() float64 { return t.reported }

func (t *timeWeightedAvg) reset() {
	t.haveSample = false
	t.windowStartNsec = 0
	t.lastValue = 0
	t.lastSampleNsec = 0
	t.accumulated = 0
	t.reported = 0
}

// AudioStreamStats is a point-in-time snapshot of an InboundStream's
// derived state and counters.
type AudioStreamStats struct {
	DesiredFrames      int
	FramesAvailable    int
	FramesAvailableAvg float64

	StarveCount         int
	SilentFramesDropped int
	OverflowCount       int
	OldFramesDropped    int

	PacketsReceived int

	TimeGapMinUsec    int64
	TimeGapMaxUsec    int64
	TimeGapAvgUsec    float64
	TimeGapStdDevUsec float64
}
