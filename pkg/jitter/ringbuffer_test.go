package jitter

import (
	"testing"

	assert "github.com/huandu/go-assert"
)

func samplesOf(vals ...int16) []int16 { return vals }

func TestRingBufferWritePopRoundTrip(t *testing.T) {
	r := NewRingBuffer(4, 10)

	r.WriteSamples(samplesOf(1, 2, 3, 4), 4)
	assert.Equal(t, r.FramesAvailable(), 1)

	popped := r.PopFrames(1, true)
	assert.Equal(t, popped, 1)
	assert.Equal(t, r.LastPopOutput(), samplesOf(1, 2, 3, 4))
	assert.Equal(t, r.FramesAvailable(), 0)
}

func TestRingBufferAllOrNothingWithheldWhenShort(t *testing.T) {
	r := NewRingBuffer(4, 10)
	r.WriteSamples(samplesOf(1, 2, 3, 4), 4)

	popped := r.PopFrames(2, true)
	assert.Equal(t, popped, 0)
	assert.Equal(t, r.LastPopSucceeded(), false)
	assert.Equal(t, r.FramesAvailable(), 1)
}

func TestRingBufferOverflowAdvancesReadCursor(t *testing.T) {
	r := NewRingBuffer(1, 4)

	for i := int16(0); i < 4; i++ {
		r.WriteSamples(samplesOf(i), 1)
	}
	assert.Equal(t, r.FramesAvailable(), 4)
	assert.Equal(t, r.GetOverflowCount(), 0)

	r.WriteSamples(samplesOf(4), 1)
	assert.Equal(t, r.FramesAvailable(), 4)
	assert.Equal(t, r.GetOverflowCount(), 1)

	popped := r.PopFrames(4, true)
	assert.Equal(t, popped, 4)
	assert.Equal(t, r.LastPopOutput(), samplesOf(1, 2, 3, 4))
}

func TestRingBufferDropOldestFrames(t *testing.T) {
	r := NewRingBuffer(1, 10)
	for i := int16(0); i < 5; i++ {
		r.WriteSamples(samplesOf(i), 1)
	}
	dropped := r.DropOldestFrames(3)
	assert.Equal(t, dropped, 3)
	assert.Equal(t, r.FramesAvailable(), 2)

	popped := r.PopFrames(2, true)
	assert.Equal(t, popped, 2)
	assert.Equal(t, r.LastPopOutput(), samplesOf(3, 4))
}

func TestRingBufferWriteAtHistoricalSlot(t *testing.T) {
	r := NewRingBuffer(1, 10)
	for i := int16(0); i < 3; i++ {
		r.WriteSamples(samplesOf(i), 1)
	}

	cursor := r.WriteCursor()
	ok := r.WriteAt(cursor-2, samplesOf(99))
	assert.Assert(t, ok)

	popped := r.PopFrames(3, true)
	assert.Equal(t, popped, 3)
	assert.Equal(t, r.LastPopOutput(), samplesOf(0, 99, 2))
}

func TestRingBufferWriteAtAlreadyPoppedIsRejected(t *testing.T) {
	r := NewRingBuffer(1, 10)
	r.WriteSamples(samplesOf(0), 1)
	r.WriteSamples(samplesOf(1), 1)
	r.PopFrames(1, true)

	ok := r.WriteAt(0, samplesOf(42))
	assert.Equal(t, ok, false)
}

func TestRingBufferInvariantFramesAvailableBounded(t *testing.T) {
	r := NewRingBuffer(2, 5)
	for i := 0; i < 100; i++ {
		r.WriteSamples(samplesOf(1, 2), 2)
		fa := r.FramesAvailable()
		assert.Assert(t, fa >= 0 && fa <= 5)
		if i%3 == 0 {
			r.PopFrames(1, false)
		}
	}
}

func TestNewRingBufferRejectsInvalidConstruction(t *testing.T) {
	assert.Equal(t, NewRingBuffer(0, 10), (*RingBuffer)(nil))
	assert.Equal(t, NewRingBuffer(10, 0), (*RingBuffer)(nil))
}
