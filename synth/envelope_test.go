package synth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTables() EnvTables {
	var t EnvTables
	for i := range t.LogTime {
		t.LogTime[i] = uint8(i)
	}
	return t
}

func TestEngine_ResetSkipsPhaseZeroOnZeroTime(t *testing.T) {
	var e Engine
	levels := [7]uint8{20, 80, 60, 40, 0, 0, 0}
	times := [7]uint8{0, 10, 10, 10, 10, 10, 10}
	e.Reset(levels, times, 50, 0, 0)
	require.Equal(t, 1, e.Phase())
	require.Equal(t, 70, e.target) // startTarget(50) + envLevel[0](20)
}

func TestEngine_AmplitudeStaysWithinBounds(t *testing.T) {
	var e Engine
	levels := [7]uint8{155, 120, 90, 60, 0, 0, 0}
	times := [7]uint8{5, 5, 5, 5, 5, 5, 5}
	e.Reset(levels, times, 0, 0, 0)
	tables := testTables()

	for i := 0; i < 20000 && e.Playing(); i++ {
		amp := e.NextAmp(tables, nil)
		require.GreaterOrEqual(t, amp, 0.0)
		require.LessOrEqual(t, amp, 1.0)
		require.GreaterOrEqual(t, e.CurrentAmp(), 0)
		require.LessOrEqual(t, e.CurrentAmp(), 155)
	}
}

func TestEngine_ReachesPhaseFinishedEventually(t *testing.T) {
	var e Engine
	levels := [7]uint8{100, 80, 0, 0, 0, 0, 0}
	times := [7]uint8{1, 1, 1, 1, 1, 1, 1}
	e.Reset(levels, times, 0, 0, 0)
	e.SetSustainHeld(false)
	tables := testTables()

	for i := 0; i < 1_000_000 && e.Playing(); i++ {
		e.NextAmp(tables, nil)
	}
	require.False(t, e.Playing())
	require.Equal(t, phaseFinished, e.Phase())
}

func TestEngine_NextPhaseAfterFinishIsNoOpAndWarnsOnce(t *testing.T) {
	var e Engine
	levels := [7]uint8{0, 0, 0, 0, 0, 0, 0}
	times := [7]uint8{1, 1, 1, 1, 1, 1, 1}
	e.Reset(levels, times, 0, 0, 0)
	tables := testTables()

	warnCount := 0
	warn := func(string) { warnCount++ }
	for i := 0; i < 1000; i++ {
		e.NextAmp(tables, warn)
	}
	require.LessOrEqual(t, warnCount, 1)
}

func TestEngine_ForceReleaseReachesReleasePhase(t *testing.T) {
	var e Engine
	levels := [7]uint8{100, 100, 100, 100, 50, 0, 0}
	times := [7]uint8{0, 50, 50, 50, 50, 50, 50}
	e.Reset(levels, times, 0, 0, 0)
	tables := testTables()
	e.SetSustainHeld(true)

	// Drive into the sustain hold (phase 5).
	for i := 0; i < 100000 && e.Phase() < 5; i++ {
		e.NextAmp(tables, nil)
	}
	require.Equal(t, 5, e.Phase())

	// Key released, as Poly.FastRelease does before ForceRelease.
	e.SetSustainHeld(false)
	e.ForceRelease()
	e.NextAmp(tables, nil)
	require.Equal(t, 6, e.Phase())
}

func TestEngine_KillStopsImmediately(t *testing.T) {
	var e Engine
	levels := [7]uint8{100, 100, 100, 100, 50, 0, 0}
	times := [7]uint8{10, 10, 10, 10, 10, 10, 10}
	e.Reset(levels, times, 0, 0, 0)
	require.True(t, e.Playing())
	e.Kill()
	require.False(t, e.Playing())
}
