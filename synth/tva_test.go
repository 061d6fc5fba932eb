package synth

import (
	"testing"

	"github.com/retrosynth/mt32emu-go/rom"
	"github.com/stretchr/testify/require"
)

func TestCalcBiasAmpSubtraction_BiasPointNeverConsulted(t *testing.T) {
	// The reference engine's bias-point branch is dead (see the doc
	// comment on calcBiasAmpSubtraction): the subtraction depends only on
	// key and level, for every bias point including those with bit 6 set.
	want := (31 + 60) * biasLevelToAmpSubtractionCoeff[6] >> 5
	for _, point := range []uint8{0x00, 0x3F, 0x40, 0x7F} {
		require.Equal(t, want, calcBiasAmpSubtraction(60, point, 6, nil))
	}
}

func TestCalcBiasAmpSubtractions_SaturatesEachTermAndSum(t *testing.T) {
	// Level 0 has the largest coefficient (255); a high key pushes a
	// single term past 255, which saturates the whole subtraction.
	loud := rom.PartialParams{BiasLevel1: 0, BiasLevel2: 0}
	require.Equal(t, 255, calcBiasAmpSubtractions(127, loud, nil))

	// Level 12's coefficient is 0: no subtraction at all.
	quiet := rom.PartialParams{BiasLevel1: 12, BiasLevel2: 12}
	require.Equal(t, 0, calcBiasAmpSubtractions(60, quiet, nil))
}

func TestCalcBiasAmpSubtraction_WarnOnlyFiresForBitSixPoints(t *testing.T) {
	// The once-latch may already be spent by an earlier note in this
	// process; all that can be asserted portably is that clear bias
	// points never trigger it.
	fired := 0
	warn := func(string) { fired++ }
	calcBiasAmpSubtraction(60, 0x3F, 3, warn)
	require.Zero(t, fired)
}
