package synth

import "github.com/retrosynth/mt32emu-go/rom"

// Capability is the small, read-only bundle of per-note context that the
// TVP/TVF/TVA wrappers need to compute their reset parameters (spec.md
// §4.9, Design Notes: "capability struct: {tables, key, velocity,
// expression, resonance, rhythmTemp}"). It is built once per Partial at
// note-on and never mutated afterward, mirroring the patch-cache
// immutability invariant in spec.md §4.8.
type Capability struct {
	Tables *rom.ControlROM

	Key        uint8 // MIDI key number, 0..127
	Velocity   uint8 // MIDI velocity, 0..127
	Expression uint8 // MIDI CC11, 0..127
	Resonance  uint8 // the partial structure's filter resonance, 0..127 domain
	RhythmTemp bool  // true if this note was routed through a rhythm timbre
}

// keyDistanceFromC4 is the signed key-follow distance used by the
// time/level keyfollow corrections (spec.md §4.1/§4.2/§4.3): middle C
// (MIDI key 60) is the reference point.
func (c Capability) keyDistanceFromC4() int {
	return int(c.Key) - 60
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
