package jitter

import "sync"

// RingBuffer is a fixed-capacity circular store of interleaved audio
// samples, addressed in frames of frameSampleCount samples each.
//
// Writes are performed by the producer, pops by the consumer; both may
// run concurrently, so cursor mutation is guarded by a mutex rather
// than left lock-free — a flat slice has no natural CAS point for a
// two-cursor overwrite the way a timestamp-keyed skiplist does.
type RingBuffer struct {
	mu sync.Mutex

	frameSampleCount int
	frameCapacity    int

	samples []int16

	writeCursor int // absolute sample count written, monotonic
	readCursor  int // absolute sample count read, monotonic

	overflowCount int

	lastPopOutput    []int16
	lastPopSucceeded bool
}

// NewRingBuffer constructs a ring holding frameCapacity frames of
// frameSampleCount samples each. Both must be at least 1.
func NewRingBuffer(frameSampleCount, frameCapacity int) *RingBuffer {
	if frameSampleCount < 1 || frameCapacity < 1 {
		return nil
	}
	return &RingBuffer{
		frameSampleCount: frameSampleCount,
		frameCapacity:    frameCapacity,
		samples:          make([]int16, frameCapacity*frameSampleCount),
	}
}

func (r *RingBuffer) capacitySamples() int {
	return r.frameCapacity * r.frameSampleCount
}

// FrameSampleCount returns the number of samples per frame.
func (r *RingBuffer) FrameSampleCount() int { return r.frameSampleCount }

// FrameCapacity returns the total number of frames the ring can hold.
func (r *RingBuffer) FrameCapacity() int { return r.frameCapacity }

// FramesAvailable returns the number of complete frames currently
// buffered.
func (r *RingBuffer) FramesAvailable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.framesAvailableLocked()
}

func (r *RingBuffer) framesAvailableLocked() int {
	return (r.writeCursor - r.readCursor) / r.frameSampleCount
}

// SamplesAvailable returns the number of samples currently buffered.
func (r *RingBuffer) SamplesAvailable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeCursor - r.readCursor
}

// FramesRemaining returns how many more frames can be written before
// the write cursor would overtake the read cursor by more than the
// ring's capacity.
func (r *RingBuffer) FramesRemaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameCapacity - r.framesAvailableLocked()
}

// GetOverflowCount returns the number of overflow events observed so
// far (writes that forced the read cursor forward).
func (r *RingBuffer) GetOverflowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overflowCount
}

// WriteSamples copies n samples from src into the ring at the write
// cursor, advancing it by n. If the write would overtake the read
// cursor, the read cursor is advanced past the overwritten region and
// overflowCount is incremented.
func (r *RingBuffer) WriteSamples(src []int16, n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked(src, n)
}

// WriteSilent writes n silent (zero) samples at the write cursor.
func (r *RingBuffer) WriteSilent(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked(nil, n)
}

// writeLocked writes n samples (from src, or zeros if src is nil) at
// the write cursor. Caller holds r.mu.
func (r *RingBuffer) writeLocked(src []int16, n int) {
	capSamples := r.capacitySamples()
	if n > capSamples {
		// never write more than the ring can physically hold; keep
		// only the tail.
		if src != nil {
			src = src[len(src)-capSamples:]
		}
		n = capSamples
	}

	overwritten := (r.writeCursor + n) - (r.readCursor + capSamples)
	if overwritten > 0 {
		r.readCursor += overwritten
		r.overflowCount++
	}

	for i := 0; i < n; i++ {
		idx := (r.writeCursor + i) % capSamples
		if src != nil {
			r.samples[idx] = src[i]
		} else {
			r.samples[idx] = 0
		}
	}
	r.writeCursor += n
}

// WriteAt writes samples starting at an absolute sample cursor rather
// than the current write cursor, used for back-writing late packets
// into a historical slot. Returns false if the cursor no longer
// addresses a slot within the ring (already popped or not yet
// written).
func (r *RingBuffer) WriteAt(cursor int, src []int16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	capSamples := r.capacitySamples()
	if cursor < r.readCursor || cursor+len(src) > r.writeCursor+capSamples {
		return false
	}
	if cursor+len(src) > r.writeCursor {
		return false
	}
	for i, s := range src {
		idx := (cursor + i) % capSamples
		r.samples[idx] = s
	}
	return true
}

// ReadAt returns a copy of n samples starting at an absolute sample
// cursor, without moving any cursor. Used by the historical write-back
// path to check current contents before deciding to overwrite.
func (r *RingBuffer) ReadAt(cursor, n int) []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	capSamples := r.capacitySamples()
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		idx := (cursor + i) % capSamples
		out[i] = r.samples[idx]
	}
	return out
}

// WriteCursor returns the current absolute write cursor, for callers
// that need to compute historical offsets.
func (r *RingBuffer) WriteCursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeCursor
}

// ReadCursor returns the current absolute read cursor.
func (r *RingBuffer) ReadCursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readCursor
}

// PopFrames pops up to maxFrames frames. If allOrNothing is true and
// fewer than maxFrames are available, nothing is popped. Returns the
// number of frames actually popped.
func (r *RingBuffer) PopFrames(maxFrames int, allOrNothing bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	available := r.framesAvailableLocked()
	if allOrNothing && available < maxFrames {
		r.lastPopSucceeded = false
		return 0
	}

	toPop := maxFrames
	if toPop > available {
		toPop = available
	}
	if toPop <= 0 {
		r.lastPopSucceeded = false
		return 0
	}

	n := toPop * r.frameSampleCount
	out := make([]int16, n)
	capSamples := r.capacitySamples()
	for i := 0; i < n; i++ {
		out[i] = r.samples[(r.readCursor+i)%capSamples]
	}
	r.readCursor += n
	r.lastPopOutput = out
	r.lastPopSucceeded = true
	return toPop
}

// PopSamples pops up to maxSamples samples, honoring the same
// all-or-nothing contract as PopFrames but at sample granularity.
func (r *RingBuffer) PopSamples(maxSamples int, allOrNothing bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	available := r.writeCursor - r.readCursor
	if allOrNothing && available < maxSamples {
		r.lastPopSucceeded = false
		return 0
	}

	n := maxSamples
	if n > available {
		n = available
	}
	if n <= 0 {
		r.lastPopSucceeded = false
		return 0
	}

	out := make([]int16, n)
	capSamples := r.capacitySamples()
	for i := 0; i < n; i++ {
		out[i] = r.samples[(r.readCursor+i)%capSamples]
	}
	r.readCursor += n
	r.lastPopOutput = out
	r.lastPopSucceeded = true
	return n
}

// DropOldestFrames advances the read cursor by n frames without
// returning them, used to trim the ring back to desiredFrames.
func (r *RingBuffer) DropOldestFrames(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	available := r.framesAvailableLocked()
	if n > available {
		n = available
	}
	if n <= 0 {
		return 0
	}
	r.readCursor += n * r.frameSampleCount
	return n
}

// Clear drops all buffered frames without resetting overflow or pop
// history, moving the read cursor up to the write cursor.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readCursor = r.writeCursor
}

// LastPopOutput returns the samples produced by the most recent
// successful pop. It remains valid until the next pop or reset.
func (r *RingBuffer) LastPopOutput() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPopOutput
}

// LastPopSucceeded reports whether the most recent pop attempt
// produced any frames/samples.
func (r *RingBuffer) LastPopSucceeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPopSucceeded
}
