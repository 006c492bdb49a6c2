package jitter

import (
	"math"

	"github.com/huandu/skiplist"
	"github.com/samber/lo"
)

// numStdDevsForDesiredJitter is the multiple of the timegap standard
// deviation used by the P (std-dev) estimator.
const numStdDevsForDesiredJitter = 3

// timegapWindow is a moving window of inter-arrival timegaps (in
// microseconds), ordered by arrival time so that entries older than
// the window can be pruned in front-to-back order, using the skiplist
// as a sorted pruning index (removeLessThan / Front / RemoveFront)
// retargeted from packet deltas to arrival-time timegaps.
type timegapWindow struct {
	entries *skiplist.SkipList // key: arrival time (ns), value: timegap (usec)

	windowUsec int64

	count int64
	sum   float64
	sumSq float64
	max   int64
	min   int64
}

func newTimegapWindow(windowUsec int64) *timegapWindow {
	return &timegapWindow{
		entries:    skiplist.New(skiplist.Int64),
		windowUsec: windowUsec,
		min:        math.MaxInt64,
	}
}

func (w *timegapWindow) add(arrivalNsec int64, timegapUsec int64) {
	w.entries.Set(arrivalNsec, timegapUsec)
	w.count++
	f := float64(timegapUsec)
	w.sum += f
	w.sumSq += f * f
	if timegapUsec > w.max {
		w.max = timegapUsec
	}
	if timegapUsec < w.min {
		w.min = timegapUsec
	}
}

// prune drops entries whose arrival time is older than nowNsec minus
// the window, recomputing the running aggregates from what remains.
// Pruning is O(window contents); that's fine here since this only
// runs from the once-a-second tick, not per-packet audio-frame work.
func (w *timegapWindow) prune(nowNsec int64) {
	cutoff := nowNsec - w.windowUsec*1000
	for {
		front := w.entries.Front()
		if front == nil || front.Key() == nil || front.Key().(int64) >= cutoff {
			break
		}
		w.entries.RemoveFront()
	}
	w.recompute()
}

func (w *timegapWindow) recompute() {
	w.count = 0
	w.sum = 0
	w.sumSq = 0
	w.max = 0
	w.min = math.MaxInt64
	for el := w.entries.Front(); el != nil; el = el.Next() {
		v := el.Value.(int64)
		w.count++
		f := float64(v)
		w.sum += f
		w.sumSq += f * f
		if v > w.max {
			w.max = v
		}
		if v < w.min {
			w.min = v
		}
	}
}

func (w *timegapWindow) reset() {
	w.entries = skiplist.New(skiplist.Int64)
	w.count = 0
	w.sum = 0
	w.sumSq = 0
	w.max = 0
	w.min = math.MaxInt64
}

func (w *timegapWindow) maxGap() int64 {
	if w.count == 0 {
		return 0
	}
	return w.max
}

func (w *timegapWindow) avg() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

func (w *timegapWindow) stddev() float64 {
	if w.count < 2 {
		return 0
	}
	mean := w.avg()
	variance := w.sumSq/float64(w.count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func (w *timegapWindow) minGap() int64 {
	if w.count == 0 {
		return 0
	}
	return w.min
}

// JitterEstimator maintains the two competing estimators of desired
// jitter-buffer depth (F: max-gap, P: std-dev) over the "too-many-
// starves" window, plus a third aggregator over the shorter reduction
// window used to compute a shrink candidate.
type JitterEstimator struct {
	longWindow      *timegapWindow
	reductionWindow *timegapWindow

	lastArrivalNsec int64
	haveLastArrival bool

	frameDurationUsec int64
}

// NewJitterEstimator constructs an estimator for frames of the given
// duration, with the two window sizes taken from Settings.
func NewJitterEstimator(frameDurationUsec int64, longWindowSeconds, reductionWindowSeconds int) *JitterEstimator {
	return &JitterEstimator{
		longWindow:        newTimegapWindow(int64(longWindowSeconds) * 1_000_000),
		reductionWindow:   newTimegapWindow(int64(reductionWindowSeconds) * 1_000_000),
		frameDurationUsec: frameDurationUsec,
	}
}

// SetWindowSeconds updates the two window sizes, effective on the next
// prune (called from the per-second tick).
func (j *JitterEstimator) SetWindowSeconds(longWindowSeconds, reductionWindowSeconds int) {
	j.longWindow.windowUsec = int64(longWindowSeconds) * 1_000_000
	j.reductionWindow.windowUsec = int64(reductionWindowSeconds) * 1_000_000
}

// RecordArrival feeds the estimator with the arrival of a non-
// duplicate accepted packet at nowNsec, computing the inter-arrival
// timegap since the previously accepted packet.
func (j *JitterEstimator) RecordArrival(nowNsec int64) {
	if !j.haveLastArrival {
		j.lastArrivalNsec = nowNsec
		j.haveLastArrival = true
		return
	}
	timegapUsec := (nowNsec - j.lastArrivalNsec) / 1000
	j.lastArrivalNsec = nowNsec

	j.longWindow.add(nowNsec, timegapUsec)
	j.reductionWindow.add(nowNsec, timegapUsec)
}

// Tick prunes both windows to nowNsec, dropping entries older than
// their respective window sizes.
func (j *JitterEstimator) Tick(nowNsec int64) {
	j.longWindow.prune(nowNsec)
	j.reductionWindow.prune(nowNsec)
}

// Reset clears all recorded timegaps and the arrival baseline.
func (j *JitterEstimator) Reset() {
	j.longWindow.reset()
	j.reductionWindow.reset()
	j.haveLastArrival = false
}

// FramesUsingMaxGap returns Freddy's method: ceil(maxGap /
// frameDuration) over the long window, unclamped.
func (j *JitterEstimator) FramesUsingMaxGap() int {
	if j.frameDurationUsec <= 0 {
		return 0
	}
	return int(ceilDiv(j.longWindow.maxGap(), j.frameDurationUsec))
}

// FramesUsingStdDev returns Philip's method: ceil(NUM_STDDEVS * stddev
// / frameDuration) over the long window, unclamped.
func (j *JitterEstimator) FramesUsingStdDev() int {
	if j.frameDurationUsec <= 0 {
		return 0
	}
	stddev := j.longWindow.stddev()
	return int(math.Ceil(numStdDevsForDesiredJitter * stddev / float64(j.frameDurationUsec)))
}

// ReductionCandidateFrames returns the shrink candidate derived from
// the reduction window's max gap.
func (j *JitterEstimator) ReductionCandidateFrames() int {
	if j.frameDurationUsec <= 0 {
		return 0
	}
	return int(ceilDiv(j.reductionWindow.maxGap(), j.frameDurationUsec))
}

// LongWindowSampleCount reports how many timegaps are currently in the
// long window.
func (j *JitterEstimator) LongWindowSampleCount() int64 {
	return j.longWindow.count
}

func ceilDiv(numerator, denominator int64) int64 {
	if denominator <= 0 {
		return 0
	}
	if numerator <= 0 {
		return 0
	}
	return lo.Max([]int64{(numerator + denominator - 1) / denominator, 0})
}
