package synth

import "github.com/retrosynth/mt32emu-go/rom"

// TVP is the time-variant pitch envelope generator (spec.md §4.3): a
// slower-moving pitch offset layered under the pitch-bend, master-tune and
// LFO modulation that Synth.mixPart passes to Partial.nextRaw.
type TVP struct {
	Engine
}

func (t *TVP) Reset(pp rom.PartialParams, cap Capability) {
	target := clampInt(int(pp.PitchCoarse2u8())+int(pp.PitchKeyfollow)*cap.keyDistanceFromC4()/32, 0, 155)
	t.Engine.Reset(pp.TVPEnvLevel, pp.TVPEnvTime, target, 0, 0)
}
