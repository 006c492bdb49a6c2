package jitter

import "github.com/huandu/skiplist"

// desiredJitterBufferFramesPadding is added to the estimator's
// candidate when growing desiredFrames in response to too many
// starves, so the buffer doesn't immediately re-starve at the exact
// estimated depth.
const desiredJitterBufferFramesPadding = 1

// starveHistory is a ring of starve timestamps bounded to the
// too-many-starves window, pruned with the same skiplist-trim idiom
// used by JitterEstimator's windows.
type starveHistory struct {
	entries    *skiplist.SkipList // key: starve time (ns), value: struct{}{}
	windowUsec int64
	seq        int64 // disambiguates starves within the same nanosecond
}

func newStarveHistory(windowSeconds int) *starveHistory {
	return &starveHistory{
		entries:    skiplist.New(skiplist.Int64),
		windowUsec: int64(windowSeconds) * 1_000_000,
	}
}

func (h *starveHistory) setWindowSeconds(windowSeconds int) {
	h.windowUsec = int64(windowSeconds) * 1_000_000
}

func (h *starveHistory) record(nowNsec int64) {
	// nanosecond keys can collide under a tight starve loop in tests;
	// every key is offset by the running count of starves recorded
	// since the last reset, so equal timestamps get distinct keys. The
	// offset is a few nanoseconds per starve, negligible for windowing.
	key := nowNsec + h.seq
	h.seq++
	h.entries.Set(key, struct{}{})
}

func (h *starveHistory) countInWindow(nowNsec int64) int {
	cutoff := nowNsec - h.windowUsec*1000
	for {
		front := h.entries.Front()
		if front == nil || front.Key() == nil || front.Key().(int64) >= cutoff {
			break
		}
		h.entries.RemoveFront()
	}
	return h.entries.Len()
}

func (h *starveHistory) reset() {
	h.entries = skiplist.New(skiplist.Int64)
	h.seq = 0
}

// StarveController tracks starve events and decides when the stream
// has entered "too-many-starves" mode.
type StarveController struct {
	history   *starveHistory
	threshold int

	starveCount int
	isStarved   bool
}

// NewStarveController constructs a controller whose history spans
// windowSeconds and that considers windowStarveThreshold starves
// within that window to be "too many".
func NewStarveController(windowSeconds, windowStarveThreshold int) *StarveController {
	return &StarveController{
		history:   newStarveHistory(windowSeconds),
		threshold: windowStarveThreshold,
	}
}

// SetWindowSeconds updates the history window size.
func (c *StarveController) SetWindowSeconds(windowSeconds int) {
	c.history.setWindowSeconds(windowSeconds)
}

// SetThreshold updates the too-many-starves threshold.
func (c *StarveController) SetThreshold(threshold int) {
	c.threshold = threshold
}

// RecordStarve records a starve at nowNsec, incrementing starveCount
// and marking the stream as starved. Returns whether the stream is now
// in too-many-starves mode.
func (c *StarveController) RecordStarve(nowNsec int64) (tooManyStarves bool) {
	c.starveCount++
	c.isStarved = true
	c.history.record(nowNsec)
	return c.history.countInWindow(nowNsec) >= c.threshold
}

// ClearIfCaughtUp clears isStarved once framesAvailable has reached
// desiredFrames.
func (c *StarveController) ClearIfCaughtUp(framesAvailable, desiredFrames int) {
	if framesAvailable >= desiredFrames {
		c.isStarved = false
	}
}

// SetStarved forces isStarved true, for setToStarved().
func (c *StarveController) SetStarved() { c.isStarved = true }

// IsStarved reports the current starved state.
func (c *StarveController) IsStarved() bool { return c.isStarved }

// StarveCount returns the cumulative starve count.
func (c *StarveController) StarveCount() int { return c.starveCount }

// TooManyStarves reports whether the window currently holds at least
// threshold starves, without recording a new one.
func (c *StarveController) TooManyStarves(nowNsec int64) bool {
	return c.history.countInWindow(nowNsec) >= c.threshold
}

// CountInWindow returns the raw number of starves within the window,
// used by the reduction rule's "no starves occurred within the long
// window" check, which is a stricter condition than TooManyStarves's
// threshold comparison.
func (c *StarveController) CountInWindow(nowNsec int64) int {
	return c.history.countInWindow(nowNsec)
}

// Reset clears starve history and counters.
func (c *StarveController) Reset() {
	c.history.reset()
	c.starveCount = 0
	c.isStarved = false
}
