package jitter

import "github.com/samber/lo"

// EstimatorMode names the two competing jitter estimators, a tagged
// variant in place of two estimator subclasses. DepthPolicy does not
// select by it: the caller picks F or P before filling candidateFrames.
type EstimatorMode int

const (
	// EstimatorMaxGap is Freddy's method.
	EstimatorMaxGap EstimatorMode = iota
	// EstimatorStdDev is Philip's method.
	EstimatorStdDev
)

// DepthPolicy combines the jitter estimator's candidate, starve
// history, and static/dynamic mode into the single desiredFrames
// value via an ordered set of rules.
type DepthPolicy struct {
	desiredFrames int
}

// depthPolicyInputs bundles everything DepthPolicy.Recompute needs,
// kept as a value type so callers don't have to expose their internal
// state to it.
type depthPolicyInputs struct {
	dynamicJitterBuffers     bool
	staticDesiredFrames      int
	mode                     EstimatorMode
	tooManyStarves           bool
	candidateFrames          int // F or P depending on mode
	reductionCandidateFrames int
	haveReductionData        bool
	frameCapacity            int
	maxFramesOverDesired     int
}

// candidate returns candidateFrames, the estimator output the caller
// already selected; mode is not consulted.
func (i depthPolicyInputs) candidate() int {
	return i.candidateFrames
}

func clampDesired(v, frameCapacity, maxFramesOverDesired int) int {
	hi := frameCapacity - maxFramesOverDesired
	if hi < 0 {
		hi = 0
	}
	return lo.Clamp(v, 0, hi)
}

// RecomputeOnGrowth applies the growth branch of the depth rules,
// invoked from parseData when a starve pushes the stream into
// too-many-starves mode. It never shrinks desiredFrames.
func (p *DepthPolicy) RecomputeOnGrowth(in depthPolicyInputs) int {
	if !in.dynamicJitterBuffers {
		p.desiredFrames = clampDesired(in.staticDesiredFrames, in.frameCapacity, in.maxFramesOverDesired)
		return p.desiredFrames
	}

	if in.tooManyStarves {
		grown := in.candidate() + desiredJitterBufferFramesPadding
		if grown > p.desiredFrames {
			p.desiredFrames = grown
		}
	}

	p.desiredFrames = clampDesired(p.desiredFrames, in.frameCapacity, in.maxFramesOverDesired)
	return p.desiredFrames
}

// RecomputeOnTick applies the full ordered rule set, invoked once per
// second: growth (if still in too-many-starves mode) takes priority,
// otherwise the reduction candidate may shrink desiredFrames.
func (p *DepthPolicy) RecomputeOnTick(in depthPolicyInputs) int {
	if !in.dynamicJitterBuffers {
		p.desiredFrames = clampDesired(in.staticDesiredFrames, in.frameCapacity, in.maxFramesOverDesired)
		return p.desiredFrames
	}

	if in.tooManyStarves {
		grown := in.candidate() + desiredJitterBufferFramesPadding
		if grown > p.desiredFrames {
			p.desiredFrames = grown
		}
	} else if in.haveReductionData {
		shrinkTo := clampDesired(in.reductionCandidateFrames, in.frameCapacity, in.maxFramesOverDesired)
		if shrinkTo < p.desiredFrames {
			p.desiredFrames = shrinkTo
		}
	}

	p.desiredFrames = clampDesired(p.desiredFrames, in.frameCapacity, in.maxFramesOverDesired)
	return p.desiredFrames
}

// DesiredFrames returns the current target depth.
func (p *DepthPolicy) DesiredFrames() int { return p.desiredFrames }

// SetDesiredFrames forces the target depth, used for static mode
// initialization and reset.
func (p *DepthPolicy) SetDesiredFrames(v int) { p.desiredFrames = v }
