package synth

import (
	"testing"

	"github.com/retrosynth/mt32emu-go/midi"
	"github.com/stretchr/testify/require"
)

func dispatchCC(p *Part, pm *PartialManager, controller, value uint8) {
	msg := midi.ShortMessage{Status: 0xB0, Data1: controller, Data2: value}
	p.Dispatch(msg, pm, func(int) float64 { return 0.5 }, nil)
}

func TestPart_RPNZeroSetsPitchBendRange(t *testing.T) {
	p := NewPart(0, nil, nil)
	pm := NewPartialManager(4)

	require.Equal(t, uint8(2), p.BendRange)

	dispatchCC(p, pm, ccRPNMSB, 0)
	dispatchCC(p, pm, ccRPNLSB, 0)
	dispatchCC(p, pm, ccDataEntry, 12)
	require.Equal(t, uint8(12), p.BendRange)

	// Data entry with the null RPN selected must not touch the range.
	dispatchCC(p, pm, ccRPNMSB, 0x7F)
	dispatchCC(p, pm, ccRPNLSB, 0x7F)
	dispatchCC(p, pm, ccDataEntry, 3)
	require.Equal(t, uint8(12), p.BendRange)
}

func TestPart_DataEntryClampsBendRange(t *testing.T) {
	p := NewPart(0, nil, nil)
	pm := NewPartialManager(4)
	dispatchCC(p, pm, ccRPNMSB, 0)
	dispatchCC(p, pm, ccRPNLSB, 0)
	dispatchCC(p, pm, ccDataEntry, 127)
	require.Equal(t, uint8(24), p.BendRange)
}

func TestPart_BendRatioCoversConfiguredRange(t *testing.T) {
	p := NewPart(0, nil, nil)
	require.InDelta(t, 1.0, p.BendRatio(), 1e-12) // centered

	p.PitchBend = 16383 // max up, default 2-semitone range
	require.Greater(t, p.BendRatio(), 1.10)
	require.Less(t, p.BendRatio(), 1.13)

	p.PitchBend = 0 // max down
	require.Less(t, p.BendRatio(), 0.90)

	p.BendRange = 12
	p.PitchBend = 16383
	require.Greater(t, p.BendRatio(), 1.9) // nearly an octave up
}

func TestPart_VolumeAndExpressionCombineIntoMixGain(t *testing.T) {
	p := NewPart(0, nil, nil)
	pm := NewPartialManager(4)

	require.InDelta(t, 100.0/127.0, p.MixGain(), 1e-12)

	dispatchCC(p, pm, ccVolume, 127)
	dispatchCC(p, pm, ccExpression, 64)
	require.InDelta(t, 64.0/127.0, p.MixGain(), 1e-12)

	dispatchCC(p, pm, ccVolume, 0)
	require.Equal(t, 0.0, p.MixGain())
}

func TestPart_PanAndModulationControlChanges(t *testing.T) {
	p := NewPart(0, nil, nil)
	pm := NewPartialManager(4)

	dispatchCC(p, pm, ccPan, 0)
	require.Equal(t, uint8(0), p.Pan)
	dispatchCC(p, pm, ccModulation, 90)
	require.Equal(t, uint8(90), p.Modulation)
}

func TestPart_ResetAllControllersRestoresDefaults(t *testing.T) {
	p := NewPart(0, nil, nil)
	pm := NewPartialManager(4)

	dispatchCC(p, pm, ccExpression, 10)
	dispatchCC(p, pm, ccModulation, 70)
	p.PitchBend = 0
	dispatchCC(p, pm, ccSustainPedal, 127)

	dispatchCC(p, pm, ccResetAllControllers, 0)
	require.Equal(t, uint8(127), p.Expression)
	require.Equal(t, uint8(0), p.Modulation)
	require.Equal(t, 8192, p.PitchBend)
	require.False(t, p.PedalDown)
}

func TestPart_RhythmPartIsNumberEight(t *testing.T) {
	require.True(t, NewPart(8, nil, nil).RhythmPart)
	require.False(t, NewPart(0, nil, nil).RhythmPart)
}
