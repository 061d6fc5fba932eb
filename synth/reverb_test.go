package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func feedImpulseAndDecay(t *testing.T, r Reverb, frames int) []float64 {
	t.Helper()
	inL := make([]float64, frames)
	inR := make([]float64, frames)
	inL[0] = 1.0
	outL := make([]float64, frames)
	outR := make([]float64, frames)
	r.Process(inL, inR, outL, outR)
	return outL
}

func energyOf(samples []float64, from int) float64 {
	var e float64
	for _, s := range samples[from:] {
		e += s * s
	}
	return e
}

func TestReverbModels_TailDecaysTowardSilence(t *testing.T) {
	models := []Reverb{NewRoomReverb(), NewHallReverb(), NewPlateReverb(), NewTapDelayReverb()}
	for _, m := range models {
		m.SetParameters(4, 4)
		out := feedImpulseAndDecay(t, m, 30000)
		earlyEnergy := energyOf(out, 0)
		lateEnergy := energyOf(out, 20000)
		require.Greater(t, earlyEnergy, 0.0)
		require.Less(t, lateEnergy, earlyEnergy)
		for _, s := range out {
			require.False(t, math.IsNaN(s))
			require.False(t, math.IsInf(s, 0))
		}
	}
}

func TestReverbModels_SilentInputStaysNearSilent(t *testing.T) {
	models := []Reverb{NewRoomReverb(), NewHallReverb(), NewPlateReverb(), NewTapDelayReverb()}
	for _, m := range models {
		in := make([]float64, 1000)
		outL := make([]float64, 1000)
		outR := make([]float64, 1000)
		m.Process(in, in, outL, outR)
		for _, s := range outL {
			require.InDelta(t, 0, s, 1e-9)
		}
	}
}
