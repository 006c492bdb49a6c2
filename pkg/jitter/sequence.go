package jitter

// maxReasonableSeqGap bounds how far a sequence number may jump forward
// or backward from the expected value before it is considered a
// wraparound reset rather than loss/reorder.
const maxReasonableSeqGap = 1000

// seqClass classifies an arriving packet relative to the tracker's
// running expectation. Grounded on the wraparound-diff idiom in
// other_examples/uzadmin-ari-rtt-echo__sequence_tracker.go and
// other_examples/sebacius-switchboard__sequence.go, generalized from a
// loss counter into five-way classification.
type seqClass int

const (
	classOnTime seqClass = iota
	classEarly
	classLate
	classDuplicate
	classUnreasonable
)

// seqResult is the outcome of classifying one arriving sequence
// number.
type seqResult struct {
	class seqClass
	// gap is populated for classEarly: the number of packets between
	// the previous expectation and this one (>=1).
	gap uint16
	// offset is populated for classLate: how many packets behind the
	// current expectation this packet is (>=1).
	offset uint16
}

// SequenceNumberStats is a monotonic, wrap-safe 16-bit sequence number
// tracker with per-outcome counters.
type SequenceNumberStats struct {
	initialized bool
	lastSeen    uint16
	expected    uint16

	// recentlySeen holds the last few sequence numbers observed, used
	// only to distinguish a duplicate from a late-but-new packet.
	recentlySeen map[uint16]struct{}

	received     int
	unreasonable int
	early        int
	late         int
	lost         int
	duplicate    int
	reordered    int
}

// NewSequenceNumberStats constructs a tracker with all counters zeroed
// and no baseline set.
func NewSequenceNumberStats() *SequenceNumberStats {
	return &SequenceNumberStats{
		recentlySeen: make(map[uint16]struct{}, 64),
	}
}

// Reset clears the baseline and all counters, as if newly constructed.
func (s *SequenceNumberStats) Reset() {
	s.initialized = false
	s.lastSeen = 0
	s.expected = 0
	s.recentlySeen = make(map[uint16]struct{}, 64)
	s.received = 0
	s.unreasonable = 0
	s.early = 0
	s.late = 0
	s.lost = 0
	s.duplicate = 0
	s.reordered = 0
}

// Classify records the arrival of sequence number s and returns its
// classification. Counters are updated according to the outcome.
func (s *SequenceNumberStats) Classify(seq uint16) seqResult {
	s.received++

	if !s.initialized {
		s.initialized = true
		s.lastSeen = seq
		s.expected = seq + 1
		s.markSeen(seq)
		return seqResult{class: classOnTime}
	}

	if seq == s.expected {
		s.lastSeen = seq
		s.expected = seq + 1
		s.markSeen(seq)
		return seqResult{class: classOnTime}
	}

	if _, dup := s.recentlySeen[seq]; dup {
		s.duplicate++
		return seqResult{class: classDuplicate}
	}

	forwardGap := seq - s.expected   // uint16 wraparound distance forward
	backwardGap := s.expected - seq  // uint16 wraparound distance backward

	switch {
	case forwardGap != 0 && forwardGap <= maxReasonableSeqGap:
		// packet arrived ahead of expectation: the gap packets in
		// between are presumed lost (may later arrive as LATE).
		s.lost += int(forwardGap)
		s.early++
		s.lastSeen = seq
		s.expected = seq + 1
		s.markSeen(seq)
		return seqResult{class: classEarly, gap: forwardGap}

	case backwardGap != 0 && backwardGap <= maxReasonableSeqGap:
		s.late++
		s.reordered++
		s.markSeen(seq)
		return seqResult{class: classLate, offset: backwardGap}

	default:
		s.unreasonable++
		return seqResult{class: classUnreasonable}
	}
}

// markSeen remembers seq as recently observed for duplicate detection,
// bounding the memory of the set to a small trailing window.
func (s *SequenceNumberStats) markSeen(seq uint16) {
	s.recentlySeen[seq] = struct{}{}
	if len(s.recentlySeen) > 4*maxReasonableSeqGap {
		s.recentlySeen = make(map[uint16]struct{}, 64)
		s.recentlySeen[seq] = struct{}{}
	}
}

// ResetCounters zeroes every counter but keeps the current baseline
// (lastSeen/expected), used by InboundStream.ResetStats which must not
// disturb in-flight sequence tracking.
func (s *SequenceNumberStats) ResetCounters() {
	s.received = 0
	s.unreasonable = 0
	s.early = 0
	s.late = 0
	s.lost = 0
	s.duplicate = 0
	s.reordered = 0
}

func (s *SequenceNumberStats) Received() int     { return s.received }
func (s *SequenceNumberStats) Unreasonable() int { return s.unreasonable }
func (s *SequenceNumberStats) Early() int        { return s.early }
func (s *SequenceNumberStats) Late() int         { return s.late }
func (s *SequenceNumberStats) Lost() int         { return s.lost }
func (s *SequenceNumberStats) Duplicate() int    { return s.duplicate }
func (s *SequenceNumberStats) Reordered() int    { return s.reordered }
