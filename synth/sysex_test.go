package synth

import (
	"testing"

	"github.com/retrosynth/mt32emu-go/memmap"
	"github.com/retrosynth/mt32emu-go/midi"
	"github.com/retrosynth/mt32emu-go/report"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []report.Event
}

func (r *recordingSink) Report(e report.Event) { r.events = append(r.events, e) }

func buildWrite(t *testing.T, addr uint32, data []byte) []byte {
	t.Helper()
	aH := byte((addr >> 14) & 0x7F)
	aM := byte((addr >> 7) & 0x7F)
	aL := byte(addr & 0x7F)
	addrAndData := append([]byte{aH, aM, aL}, data...)
	sum := 0
	for _, b := range addrAndData {
		sum += int(b)
	}
	cs := byte((128 - (sum % 128)) % 128)
	msg := append([]byte{0xF0, 0x41, 0x10, 0x16, 0x12}, addrAndData...)
	msg = append(msg, cs, 0xF7)
	return msg
}

func TestSysexHandler_ReverbSysexEmitsThreeEvents(t *testing.T) {
	mem := memmap.New()
	sink := &recordingSink{}
	h := NewSysexHandler(mem, sink, nil, nil)

	addr := memmap.RegionBase(memmap.System) + memmap.SysReverbMode
	msg := buildWrite(t, addr, []byte{2, 5, 3})
	h.HandleComplete(msg)

	require.Len(t, sink.events, 3)
	require.Equal(t, report.ReverbModeChanged, sink.events[0].Kind)
	require.Equal(t, 2, sink.events[0].Int)
	require.Equal(t, report.ReverbTimeChanged, sink.events[1].Kind)
	require.Equal(t, 5, sink.events[1].Int)
	require.Equal(t, report.ReverbLevelChanged, sink.events[2].Kind)
	require.Equal(t, 3, sink.events[2].Int)
}

func TestSysexHandler_ResetRegionTriggersCallback(t *testing.T) {
	mem := memmap.New()
	resetCalled := false
	h := NewSysexHandler(mem, nil, nil, func() { resetCalled = true })

	addr := memmap.RegionBase(memmap.Reset)
	msg := buildWrite(t, addr, []byte{1})
	h.HandleComplete(msg)

	require.True(t, resetCalled)
}

func TestSysexHandler_DisplayWriteEmitsLCDMessage(t *testing.T) {
	mem := memmap.New()
	sink := &recordingSink{}
	h := NewSysexHandler(mem, sink, nil, nil)

	addr := memmap.RegionBase(memmap.Display)
	msg := buildWrite(t, addr, []byte("HELLO"))
	h.HandleComplete(msg)

	require.Len(t, sink.events, 1)
	require.Equal(t, report.LCDMessage, sink.events[0].Kind)
	require.Equal(t, "HELLO", sink.events[0].Text)
}

func TestSysexHandler_ReverbOverriddenSuppressesCallback(t *testing.T) {
	mem := memmap.New()
	sink := &recordingSink{}
	h := NewSysexHandler(mem, sink, nil, nil)
	h.SetReverbOverridden(true)

	addr := memmap.RegionBase(memmap.System) + memmap.SysReverbMode
	msg := buildWrite(t, addr, []byte{1, 1, 1})
	h.HandleComplete(msg)

	require.Empty(t, sink.events)
}

func TestSysexHandler_SpanningTwoFeedCallsReassembles(t *testing.T) {
	mem := memmap.New()
	sink := &recordingSink{}
	h := NewSysexHandler(mem, sink, nil, nil)

	addr := memmap.RegionBase(memmap.Display)
	full := buildWrite(t, addr, []byte("HI"))

	var parser midi.Parser
	first, _ := parser.Feed(full[:5])
	require.Nil(t, first.Complete)
	second, _ := parser.Feed(full[5:])
	require.NotNil(t, second.Complete)

	h.HandleComplete(second.Complete)
	require.Len(t, sink.events, 1)
	require.Equal(t, "HI", sink.events[0].Text)
}
