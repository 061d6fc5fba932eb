package synth

import "github.com/retrosynth/mt32emu-go/rom"

// TVF is the time-variant filter envelope generator (spec.md §4.2). Its
// output sets the cutoff of the Chamberlin state-variable low-pass in
// Partial.applyFilter (partial.go) rather than a biquad, since spec.md
// §4.2 specifies the envelope contract and leaves the exact filter
// topology unconstrained.
type TVF struct {
	Engine
}

func (t *TVF) Reset(pp rom.PartialParams, cap Capability) {
	target := clampInt(int(pp.FilterCutoff)+int(pp.FilterKeyfollow)*cap.keyDistanceFromC4()/32, 0, 155)
	keyTimeSub := int(pp.FilterKeyfollow) * cap.keyDistanceFromC4() / 16
	t.Engine.Reset(pp.TVFEnvLevel, pp.TVFEnvTime, target, keyTimeSub, 0)
}
