package audio

// Sink is the external audio-output collaborator (spec.md §1, §6): "a
// minimal interface" standing in for the platform audio backend. Either
// style named in spec.md §6 is satisfiable by an implementation: a
// blocking WriteFrames, or — as the oto backend below does — a pull
// callback wired directly to the Ring.
type Sink interface {
	// Start begins pulling frames from the given Ring at SampleRate.
	Start(ring *Ring, sampleRate int) error
	// Stop halts playback; the Ring may continue to be written to, but
	// nothing will drain it until Start is called again.
	Stop()
	// Close releases backend resources. Safe to call after Stop or
	// without a prior Start.
	Close() error
}

// AnalogOutputMode selects how the 32 kHz internal stream reaches the
// sink (spec.md §4.7).
type AnalogOutputMode int

const (
	DigitalOnly AnalogOutputMode = iota
	Coarse
	Accurate
	Oversampled
)

// SampleRate returns the output sample rate for a mode.
func (m AnalogOutputMode) SampleRate() int {
	switch m {
	case Coarse:
		return 32000
	case Accurate:
		return 48000
	case Oversampled:
		return 96000
	default:
		return 32000
	}
}
