package synth

import (
	"sync"

	"github.com/retrosynth/mt32emu-go/rom"
)

// TVA is the time-variant amplitude envelope generator (spec.md §4.1).
// Its output, after the ring-modulation/mix stage, directly scales a
// partial's waveform samples; the invariant in spec.md §8 ("TVA.current
// amplitude stays within [0,155] at every sample") is maintained entirely
// by the shared Engine.
type TVA struct {
	Engine
}

// biasLevelToAmpSubtractionCoeff matches a table in the control ROM
// (original_source/mt32emu/src/tva.cpp).
var biasLevelToAmpSubtractionCoeff = [13]int{255, 187, 137, 100, 74, 54, 40, 29, 21, 15, 10, 5, 0}

func multBias(biasLevel uint8, bias int) int {
	return (bias * biasLevelToAmpSubtractionCoeff[biasLevel]) >> 5
}

// biasPointDiagnosed latches the first note whose bias point has bit 6
// set, so the dead-branch diagnostic below fires once per process.
var biasPointDiagnosed sync.Once

// calcBiasAmpSubtraction replicates calcBiasAmpSubtraction in
// original_source/mt32emu/src/tva.cpp. There, the guard reads
// `if (biasPoint & 0x40 == 0)`, which C's precedence parses as
// `biasPoint & (0x40 == 0)` — always zero — so the first branch (bias =
// 33 - key) is dead and every call falls through to `bias = -31 - key`,
// negated to 31 + key. Bit 6 of the bias point is never consulted at
// runtime, and the subtraction is the same for every bias point. That is
// the behavior the shipped engine has, so it is the behavior kept here;
// the first note carrying a bit-6 bias point raises a diagnostic so the
// ambiguity is visible to the caller (spec.md §9).
func calcBiasAmpSubtraction(key, biasPoint, biasLevel uint8, warn func(string)) int {
	if biasPoint&0x40 != 0 {
		biasPointDiagnosed.Do(func() {
			if warn != nil {
				warn("tva: bias point has bit 6 set; reference engine never consults it (dead branch), applying bias 31+key")
			}
		})
	}
	bias := 31 + int(key)
	return multBias(biasLevel, bias)
}

// calcBiasAmpSubtractions folds both bias point/level pairs into one
// subtraction, saturating each term and the sum at 255 exactly as the
// reference does.
func calcBiasAmpSubtractions(key uint8, pp rom.PartialParams, warn func(string)) int {
	b1 := calcBiasAmpSubtraction(key, pp.BiasPoint1, pp.BiasLevel1, warn)
	if b1 > 255 {
		return 255
	}
	b2 := calcBiasAmpSubtraction(key, pp.BiasPoint2, pp.BiasLevel2, warn)
	if b2 > 255 {
		return 255
	}
	if b1+b2 > 255 {
		return 255
	}
	return b1 + b2
}

// Reset computes TVA's domain-specific starting target and corrections
// from the partial's ROM parameters and the note's Capability, then
// defers to Engine.Reset for the generic phase machinery. warn receives
// the bias-point diagnostic on first trigger.
func (t *TVA) Reset(pp rom.PartialParams, cap Capability, warn func(string)) {
	basicAmp := int(cap.Tables.VolumeToAmp[cap.Velocity&0x7F])

	biasAmpSubtraction := calcBiasAmpSubtractions(cap.Key, pp, warn)

	veloAmpSubtraction := (127 - int(cap.Velocity)) / 4
	veloAmpSubtraction = clampInt(veloAmpSubtraction, 0, 255)

	target := basicAmp - biasAmpSubtraction - veloAmpSubtraction - int(cap.Resonance)/2
	target = clampInt(target, 0, 155)

	var keyTimeSub int
	if pp.TVAEnvTimeKeyfollow != 0 {
		shift := 5 - int(pp.TVAEnvTimeKeyfollow)
		if shift < 0 {
			shift = 0
		}
		keyTimeSub = cap.keyDistanceFromC4() >> uint(shift)
	}
	veloTimeSub := (127 - int(cap.Velocity)) / 8

	t.Engine.Reset(pp.TVAEnvLevel, pp.TVAEnvTime, target, keyTimeSub, veloTimeSub)
}
