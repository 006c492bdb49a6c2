package jitter

import "sync"

// silencePool hands out zeroed []int16 scratch buffers for loss-fill
// synthesis, sized to the stream's frame length. Grounded on
// ifruns-audio/pool.PCMSize, which wraps sync.Pool around a fixed-size
// []int16 rather than reaching for a byte-oriented pool here.
type silencePool struct {
	frameSampleCount int
	pool             sync.Pool
}

func newSilencePool(frameSampleCount int) *silencePool {
	p := &silencePool{frameSampleCount: frameSampleCount}
	p.pool.New = func() interface{} {
		return make([]int16, frameSampleCount)
	}
	return p
}

// get returns a zeroed scratch buffer of exactly n samples. Buffers
// larger than a single frame are allocated directly rather than
// pooled, since loss bursts of many frames are rare and pooling every
// possible burst length would defeat the point.
func (p *silencePool) get(n int) []int16 {
	if n == p.frameSampleCount {
		buf := p.pool.Get().([]int16)
		for i := range buf {
			buf[i] = 0
		}
		return buf
	}
	return make([]int16, n)
}

func (p *silencePool) put(buf []int16) {
	if len(buf) == p.frameSampleCount {
		p.pool.Put(buf) //nolint:staticcheck // fixed-size slice, safe to reuse
	}
}

// lossFill decides how many silent samples to actually write for n
// samples' worth of dropped packets: if the buffer is already at or
// above the time-weighted current depth, silence is elided (dropped)
// to avoid compounding latency; otherwise the full n silent samples
// are written.
type lossFill struct {
	pool *silencePool
}

func newLossFill(frameSampleCount int) *lossFill {
	return &lossFill{pool: newSilencePool(frameSampleCount)}
}

// apply writes n silent samples to ring unless framesAvailable already
// meets or exceeds currentJitterBufferFrames, in which case it writes
// nothing and returns the number of samples elided (for
// silentFramesDropped accounting).
func (l *lossFill) apply(ring *RingBuffer, n int, framesAvailable, currentJitterBufferFrames int) (written, dropped int) {
	if n <= 0 {
		return 0, 0
	}
	if framesAvailable >= currentJitterBufferFrames {
		return 0, n
	}
	buf := l.pool.get(n)
	ring.WriteSamples(buf, n)
	l.pool.put(buf)
	return n, 0
}
