package synth

import (
	"testing"

	"github.com/retrosynth/mt32emu-go/audio"
	"github.com/stretchr/testify/require"
)

// Synthetic ROM byte layouts mirroring rom/control.go and rom/pcm.go's
// private offset constants, duplicated here since this package only sees
// rom's public Open* API (no test-only export seam is worth adding for
// two integer constants).
const (
	testNumTimbres       = 256
	testTimbreRecordSize = 58
	testTimbreTableOff   = 0x1000
	testPCMSlotCount     = 256
	testPCMSlotRecSize   = 12
	testPCMDataStart     = testPCMSlotCount * testPCMSlotRecSize
)

func syntheticControlROM() []byte {
	size := testTimbreTableOff + testNumTimbres*testTimbreRecordSize
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 5)
	}
	return data
}

func syntheticPCMROM() []byte {
	data := make([]byte, testPCMDataStart+4096)
	for i := range data {
		data[i] = byte(i * 3)
	}
	// Slot 0: start 0, len 64, not looped, 16-bit.
	data[0], data[1], data[2], data[3] = 0, 0, 0, 0
	data[8], data[9], data[10], data[11] = 64, 0, 0, 0
	return data
}

func openTestSynth(t *testing.T) *Synth {
	t.Helper()
	s, err := Open(Config{
		ControlROM:    syntheticControlROM(),
		PCMROM:        syntheticPCMROM(),
		PartialCount:  32,
		AcceptUnknown: true,
		AnalogMode:    audio.DigitalOnly,
	})
	require.NoError(t, err)
	return s
}

func TestSynth_OpenAndSilenceProducesZeroFrames(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	out := make([]audio.Frame, 256)
	s.Render(out)
	for _, f := range out {
		require.Equal(t, int16(0), f.L)
		require.Equal(t, int16(0), f.R)
	}
}

func TestSynth_RenderProducesExactlyRequestedFrames(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	for _, n := range []int{1, 16, 256, 1000} {
		out := make([]audio.Frame, n)
		s.Render(out)
		require.Len(t, out, n)
	}
}

func TestSynth_MiddleCNoteOnProducesNonSilentAudio(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	noteOn := uint32(0x90) | uint32(60)<<8 | uint32(100)<<16
	s.PlayMsg(noteOn, nil)

	out := make([]audio.Frame, 4096)
	s.Render(out)

	nonZero := false
	for _, f := range out {
		if f.L != 0 || f.R != 0 {
			nonZero = true
			break
		}
	}
	require.True(t, nonZero)
}

func TestSynth_NoteOffStartsRelease(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	noteOn := uint32(0x90) | uint32(60)<<8 | uint32(100)<<16
	s.PlayMsg(noteOn, nil)
	out := make([]audio.Frame, 128)
	s.Render(out)

	require.Len(t, s.parts[0].Polys(), 1)
	poly := s.parts[0].Polys()[0]
	require.Equal(t, PolyPlaying, poly.State())

	noteOff := uint32(0x80) | uint32(60)<<8
	s.PlayMsg(noteOff, nil)
	s.Render(out)

	require.Equal(t, PolyReleasing, poly.State())
}

func TestSynth_ReverbSysexChangesModel(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	before := s.reverb
	msg := buildWrite(t, 0x100000+1, []byte{2, 5, 3}) // mode=plate
	s.PlaySysex(msg, nil)

	require.NotSame(t, before, s.reverb)
	require.IsType(t, &PlateReverb{}, s.reverb)
}

func TestSynth_PartialStealingUnderSaturation(t *testing.T) {
	s, err := Open(Config{
		ControlROM:    syntheticControlROM(),
		PCMROM:        syntheticPCMROM(),
		PartialCount:  4,
		AcceptUnknown: true,
	})
	require.NoError(t, err)
	defer s.Close()

	for key := uint8(40); key < 50; key++ {
		msg := uint32(0x90) | uint32(key)<<8 | uint32(100)<<16
		s.PlayMsg(msg, nil)
	}
	require.LessOrEqual(t, s.PartialPoolFreeCount(), 4)
}

func TestSynth_RingBufferContinuityAcrossRenderCalls(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	ring := audio.NewRing(8192)
	for i := 0; i < 10; i++ {
		buf := make([]audio.Frame, 128)
		s.Render(buf)
		ring.Write(buf)
	}
	require.Equal(t, uint64(0), ring.PlayedFrames())
	require.Equal(t, 10*128, ring.Available())
}

func TestSynth_ScheduledEventAppliesBeforeItsFrame(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	ts := uint64(50)
	noteOn := uint32(0x90) | uint32(60)<<8 | uint32(100)<<16
	s.PlayMsg(noteOn, &ts)

	out := make([]audio.Frame, 200)
	s.Render(out)

	require.Len(t, s.parts[0].Polys(), 1)
}

func TestSynth_SustainPedalHoldsThenReleases(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	noteOn := uint32(0x90) | uint32(60)<<8 | uint32(100)<<16
	s.PlayMsg(noteOn, nil)
	pedalDown := uint32(0xB0) | uint32(64)<<8 | uint32(127)<<16
	s.PlayMsg(pedalDown, nil)
	noteOff := uint32(0x80) | uint32(60)<<8
	s.PlayMsg(noteOff, nil)

	poly := s.parts[0].Polys()[0]
	require.Equal(t, PolyHeld, poly.State())

	pedalUp := uint32(0xB0) | uint32(64)<<8
	s.PlayMsg(pedalUp, nil)
	require.Equal(t, PolyReleasing, poly.State())
}

func TestSynth_ChannelMapRoutesRhythmChannelToRhythmPart(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	noteOn := uint32(0x99) | uint32(40)<<8 | uint32(100)<<16 // channel 9
	s.PlayMsg(noteOn, nil)

	require.Len(t, s.parts[8].Polys(), 1)
	require.True(t, s.parts[8].RhythmPart)
	for i := 0; i < 8; i++ {
		require.Empty(t, s.parts[i].Polys())
	}
}

func TestSynth_MIDIDelayModeDefersUnstampedMessages(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	require.NoError(t, s.SetMIDIDelayMode(MIDIDelayShortMessagesOnly))

	noteOn := uint32(0x90) | uint32(60)<<8 | uint32(100)<<16
	s.PlayMsg(noteOn, nil)
	require.Empty(t, s.parts[0].Polys()) // not applied until render

	out := make([]audio.Frame, 8)
	s.Render(out)
	require.Len(t, s.parts[0].Polys(), 1)
}

func TestSynth_ConfigSettersRejectOutOfRange(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	var cfgErr *ErrConfigOutOfRange
	require.ErrorAs(t, s.SetDACInputMode(DACInputMode(99)), &cfgErr)
	require.ErrorAs(t, s.SetMIDIDelayMode(MIDIDelayMode(-1)), &cfgErr)
	require.NoError(t, s.SetDACInputMode(DACInputPure))
	require.NoError(t, s.SetMIDIDelayMode(MIDIDelayAll))
}

func TestSynth_PureDACModeHalvesOutputLevel(t *testing.T) {
	renderPeak := func(configure func(*Synth)) int16 {
		s := openTestSynth(t)
		defer s.Close()
		s.SetNiceAmpRampEnabled(false)
		s.SetOutputGain(0.05) // keep the mix well below clipping so halving is measurable
		configure(s)
		noteOn := uint32(0x90) | uint32(60)<<8 | uint32(127)<<16
		s.PlayMsg(noteOn, nil)
		out := make([]audio.Frame, 4096)
		s.Render(out)
		var peak int16
		for _, f := range out {
			if f.L > peak {
				peak = f.L
			}
		}
		return peak
	}

	nice := renderPeak(func(*Synth) {})
	pure := renderPeak(func(s *Synth) {
		require.NoError(t, s.SetDACInputMode(DACInputPure))
	})
	require.Greater(t, nice, int16(0))
	require.InDelta(t, float64(nice)/2, float64(pure), float64(nice)/8)
}

func TestSynth_MasterVolumeSysexSilencesOutput(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()
	s.SetNiceAmpRampEnabled(false)

	volAddr := uint32(0x100000) + 13 // system area master volume
	s.PlaySysex(buildWrite(t, volAddr, []byte{0}), nil)

	noteOn := uint32(0x90) | uint32(60)<<8 | uint32(127)<<16
	s.PlayMsg(noteOn, nil)
	out := make([]audio.Frame, 1024)
	s.Render(out)
	for _, f := range out {
		require.Equal(t, int16(0), f.L)
		require.Equal(t, int16(0), f.R)
	}
}

func TestSynth_SysexWriteReadRoundTrip(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	patchAddr := uint32(0x050000)
	payload := []byte{0x01, 0x22, 0x33, 0x44, 0x55}
	s.PlaySysex(buildWrite(t, patchAddr, payload), nil)

	got, err := s.ReadMemory(patchAddr, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestSynth_MultiMessageSysexChunkProcessesAll(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	a := buildWrite(t, 0x050000, []byte{0x11})
	b := buildWrite(t, 0x050001, []byte{0x22})
	s.PlaySysex(append(append([]byte(nil), a...), b...), nil)

	got, err := s.ReadMemory(0x050000, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x11, 0x22}, got)
}

func TestSynth_ResetPreservesSampleClock(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	out := make([]audio.Frame, 500)
	s.Render(out)
	before := s.Stats().CurrentFrame
	require.Equal(t, uint64(500), before)

	resetAddr := uint32(0x1FF000)
	s.PlaySysex(buildWrite(t, resetAddr, []byte{1}), nil)

	require.Equal(t, before, s.Stats().CurrentFrame)
	s.Render(out)
	require.Equal(t, before+500, s.Stats().CurrentFrame)
}

func TestSynth_StatsReflectsActivePolysAndPool(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	free := s.Stats().FreePartials
	require.Equal(t, 32, s.Stats().PartialCount)
	require.Equal(t, 32, free)

	noteOn := uint32(0x90) | uint32(60)<<8 | uint32(100)<<16
	s.PlayMsg(noteOn, nil)
	st := s.Stats()
	require.Equal(t, 1, st.ActivePolys[0])
	require.Less(t, st.FreePartials, free)
}

func TestSynth_NoteOffReturnsPoolToOriginalFreeCount(t *testing.T) {
	s := openTestSynth(t)
	defer s.Close()

	before := s.PartialPoolFreeCount()
	noteOn := uint32(0x90) | uint32(60)<<8 | uint32(100)<<16
	s.PlayMsg(noteOn, nil)
	noteOff := uint32(0x80) | uint32(60)<<8
	s.PlayMsg(noteOff, nil)

	out := make([]audio.Frame, 32000)
	for i := 0; i < 8 && s.PartialPoolFreeCount() != before; i++ {
		s.Render(out)
	}
	require.Equal(t, before, s.PartialPoolFreeCount())
}
