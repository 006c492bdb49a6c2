package jitter

import (
	"testing"

	assert "github.com/huandu/go-assert"
)

func TestDepthPolicyStaticModePinsDesired(t *testing.T) {
	var p DepthPolicy
	in := depthPolicyInputs{
		dynamicJitterBuffers: false,
		staticDesiredFrames:  1,
		frameCapacity:        100,
		maxFramesOverDesired: 10,
	}
	got := p.RecomputeOnTick(in)
	assert.Equal(t, got, 1)
	assert.Equal(t, p.DesiredFrames(), 1)
}

func TestDepthPolicyGrowsOnTooManyStarves(t *testing.T) {
	var p DepthPolicy
	in := depthPolicyInputs{
		dynamicJitterBuffers: true,
		tooManyStarves:       true,
		candidateFrames:      5,
		frameCapacity:        100,
		maxFramesOverDesired: 10,
	}
	got := p.RecomputeOnGrowth(in)
	assert.Equal(t, got, 6) // candidate + padding
}

func TestDepthPolicyNeverShrinksOnGrowthBranch(t *testing.T) {
	var p DepthPolicy
	p.SetDesiredFrames(20)
	in := depthPolicyInputs{
		dynamicJitterBuffers: true,
		tooManyStarves:       true,
		candidateFrames:      2,
		frameCapacity:        100,
		maxFramesOverDesired: 10,
	}
	got := p.RecomputeOnGrowth(in)
	assert.Equal(t, got, 20)
}

func TestDepthPolicyShrinksOnTickWhenNoStarves(t *testing.T) {
	var p DepthPolicy
	p.SetDesiredFrames(10)
	in := depthPolicyInputs{
		dynamicJitterBuffers:     true,
		tooManyStarves:           false,
		haveReductionData:        true,
		reductionCandidateFrames: 3,
		frameCapacity:            100,
		maxFramesOverDesired:     10,
	}
	got := p.RecomputeOnTick(in)
	assert.Equal(t, got, 3)
}

func TestDepthPolicyDoesNotGrowOnTickReduction(t *testing.T) {
	var p DepthPolicy
	p.SetDesiredFrames(3)
	in := depthPolicyInputs{
		dynamicJitterBuffers:     true,
		tooManyStarves:           false,
		haveReductionData:        true,
		reductionCandidateFrames: 8,
		frameCapacity:            100,
		maxFramesOverDesired:     10,
	}
	got := p.RecomputeOnTick(in)
	assert.Equal(t, got, 3) // reduction only shrinks, never grows
}

func TestDepthPolicyClampsToFrameCapacity(t *testing.T) {
	var p DepthPolicy
	in := depthPolicyInputs{
		dynamicJitterBuffers: true,
		tooManyStarves:       true,
		candidateFrames:      1000,
		frameCapacity:        100,
		maxFramesOverDesired: 10,
	}
	got := p.RecomputeOnGrowth(in)
	assert.Equal(t, got, 90)
}
