package jitter

// Default values for Settings.
const (
	DefaultMaxFramesOverDesired                        = 10
	DefaultDynamicJitterBuffers                        = true
	DefaultStaticDesiredJitterBufferFrames             = 1
	DefaultUseStdDev                                   = false
	DefaultWindowStarveThreshold                       = 3
	DefaultWindowSecondsForDesiredCalcOnTooManyStarves = 50
	DefaultWindowSecondsForDesiredReduction            = 10
)

// Settings holds every tunable of the jitter buffer's depth policy.
// Settings are immutable once published: SetSettings/the granular
// setters build a new Settings value and publish it atomically, taking
// effect on the stream's next tick or parse.
type Settings struct {
	// MaxFramesOverDesired is the trim threshold: once the ring holds
	// more than DesiredFrames + MaxFramesOverDesired frames, the
	// oldest are dropped.
	MaxFramesOverDesired int `yaml:"maxFramesOverDesired,omitempty"`

	// DynamicJitterBuffers, if false, pins DesiredFrames to
	// StaticDesiredJitterBufferFrames.
	DynamicJitterBuffers bool `yaml:"dynamicJitterBuffers"`

	// StaticDesiredJitterBufferFrames is used only when
	// DynamicJitterBuffers is false.
	StaticDesiredJitterBufferFrames int `yaml:"staticDesiredJitterBufferFrames,omitempty"`

	// UseStdDev selects the P (std-dev) estimator over the F
	// (max-gap) estimator when DynamicJitterBuffers is true.
	UseStdDev bool `yaml:"useStdDev,omitempty"`

	// WindowStarveThreshold is the number of starves within the long
	// window that puts the stream into too-many-starves mode.
	WindowStarveThreshold int `yaml:"windowStarveThreshold,omitempty"`

	// WindowSecondsForDesiredCalcOnTooManyStarves is the long window
	// feeding both estimators and the starve history.
	WindowSecondsForDesiredCalcOnTooManyStarves int `yaml:"windowSecondsForDesiredCalcOnTooManyStarves,omitempty"`

	// WindowSecondsForDesiredReduction is the shorter window feeding
	// the shrink candidate. Deliberately kept independent of
	// WindowSecondsForDesiredCalcOnTooManyStarves rather than aliased
	// to it.
	WindowSecondsForDesiredReduction int `yaml:"windowSecondsForDesiredReduction,omitempty"`
}

// DefaultSettings returns Settings populated with defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxFramesOverDesired:                        DefaultMaxFramesOverDesired,
		DynamicJitterBuffers:                        DefaultDynamicJitterBuffers,
		StaticDesiredJitterBufferFrames:             DefaultStaticDesiredJitterBufferFrames,
		UseStdDev:                                   DefaultUseStdDev,
		WindowStarveThreshold:                       DefaultWindowStarveThreshold,
		WindowSecondsForDesiredCalcOnTooManyStarves: DefaultWindowSecondsForDesiredCalcOnTooManyStarves,
		WindowSecondsForDesiredReduction:            DefaultWindowSecondsForDesiredReduction,
	}
}
