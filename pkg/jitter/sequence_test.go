package jitter

import (
	"testing"

	assert "github.com/huandu/go-assert"
)

func TestSequenceTrackerFirstPacketIsOnTime(t *testing.T) {
	s := NewSequenceNumberStats()
	r := s.Classify(100)
	assert.Equal(t, r.class, classOnTime)
	assert.Equal(t, s.Received(), 1)
}

func TestSequenceTrackerInOrder(t *testing.T) {
	s := NewSequenceNumberStats()
	for i := uint16(0); i < 5; i++ {
		r := s.Classify(i)
		assert.Equal(t, r.class, classOnTime)
	}
	assert.Equal(t, s.Received(), 5)
	assert.Equal(t, s.Early(), 0)
	assert.Equal(t, s.Late(), 0)
}

func TestSequenceTrackerEarlyCountsGapAsLost(t *testing.T) {
	s := NewSequenceNumberStats()
	s.Classify(0)
	r := s.Classify(3)
	assert.Equal(t, r.class, classEarly)
	assert.Equal(t, r.gap, uint16(2)) // seqs 1 and 2 were skipped
	assert.Equal(t, s.Lost(), 2)
	assert.Equal(t, s.Early(), 1)
}

func TestSequenceTrackerLateWithinWindow(t *testing.T) {
	s := NewSequenceNumberStats()
	s.Classify(0)
	s.Classify(2) // early, expected becomes 3
	r := s.Classify(1)
	assert.Equal(t, r.class, classLate)
	assert.Equal(t, r.offset, uint16(2))
	assert.Equal(t, s.Late(), 1)
}

func TestSequenceTrackerDuplicate(t *testing.T) {
	s := NewSequenceNumberStats()
	s.Classify(0)
	s.Classify(1)
	r := s.Classify(1)
	assert.Equal(t, r.class, classDuplicate)
	assert.Equal(t, s.Duplicate(), 1)
}

func TestSequenceTrackerUnreasonableJump(t *testing.T) {
	s := NewSequenceNumberStats()
	s.Classify(0)
	s.Classify(1)
	r := s.Classify(50000)
	assert.Equal(t, r.class, classUnreasonable)
	assert.Equal(t, s.Unreasonable(), 1)
}

func TestSequenceTrackerResetClearsBaselineAndCounters(t *testing.T) {
	s := NewSequenceNumberStats()
	s.Classify(0)
	s.Classify(50000)
	s.Reset()
	assert.Equal(t, s.Received(), 0)
	assert.Equal(t, s.Unreasonable(), 0)

	r := s.Classify(7)
	assert.Equal(t, r.class, classOnTime)
}

func TestSequenceTrackerResetCountersKeepsBaseline(t *testing.T) {
	s := NewSequenceNumberStats()
	s.Classify(0)
	s.Classify(1)
	s.ResetCounters()
	assert.Equal(t, s.Received(), 0)

	r := s.Classify(2)
	assert.Equal(t, r.class, classOnTime)
}
