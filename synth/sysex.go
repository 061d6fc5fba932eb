package synth

import (
	"github.com/retrosynth/mt32emu-go/memmap"
	"github.com/retrosynth/mt32emu-go/midi"
	"github.com/retrosynth/mt32emu-go/report"
)

// SysexHandler ties midi's wire decoding to memmap's address space and
// raises the side effects spec.md §4.5 specifies: reverb parameter
// changes, a full reset trigger, and LCD message events.
type SysexHandler struct {
	mem              *memmap.Map
	sink             report.Sink
	reverbOverridden bool

	onReverbParams func(mode, time, level uint8)
	onReset        func()
}

// NewSysexHandler builds a handler over mem, reporting to sink. onReverb
// and onReset are called for their respective side effects; either may be
// nil.
func NewSysexHandler(mem *memmap.Map, sink report.Sink, onReverb func(mode, time, level uint8), onReset func()) *SysexHandler {
	if sink == nil {
		sink = report.Discard
	}
	return &SysexHandler{mem: mem, sink: sink, onReverbParams: onReverb, onReset: onReset}
}

// SetReverbOverridden disables the automatic setReverbParameters side
// effect (spec.md §4.5: "unless reverbOverridden is set").
func (h *SysexHandler) SetReverbOverridden(v bool) { h.reverbOverridden = v }

// HandleComplete processes one fully-assembled SysEx message (start byte
// through F7 inclusive). Checksum and address failures discard the
// message with a debug diagnostic, never aborting the stream (spec.md
// §7: SysexChecksumInvalid / SysexAddressInvalid are recoverable).
func (h *SysexHandler) HandleComplete(msg []byte) {
	wm, err := midi.DecodeWrite(msg)
	if err != nil {
		if _, ok := err.(*midi.ErrNotRolandWrite); ok {
			return // silently dropped, per spec.md §6
		}
		h.sink.Report(report.Debug("sysex discarded: %v", err))
		return
	}
	h.applyWrite(wm)
}

func (h *SysexHandler) applyWrite(wm midi.WriteMessage) {
	region, offset, err := memmap.Locate(wm.Address)
	if err != nil {
		h.sink.Report(report.Debug("sysex discarded: %v", err))
		return
	}
	result, err := h.mem.Write(wm.Address, wm.Data)
	if err != nil {
		h.sink.Report(report.Debug("sysex discarded: %v", err))
		return
	}

	switch region {
	case memmap.System:
		h.handleSystemWrite(offset, result.Written)
	case memmap.Display:
		h.handleDisplayWrite(offset, wm.Data[:result.Written])
	case memmap.Reset:
		if h.onReset != nil {
			h.onReset()
		}
	}
}

func (h *SysexHandler) handleSystemWrite(offset uint32, n int) {
	sys := h.mem.Region(memmap.System)
	touchesReverb := false
	end := int(offset) + n
	for _, f := range []int{memmap.SysReverbMode, memmap.SysReverbTime, memmap.SysReverbLevel} {
		if f >= int(offset) && f < end {
			touchesReverb = true
		}
	}
	if touchesReverb && !h.reverbOverridden {
		mode, time, level := sys[memmap.SysReverbMode], sys[memmap.SysReverbTime], sys[memmap.SysReverbLevel]
		h.sink.Report(report.ReverbMode(int(mode)))
		h.sink.Report(report.ReverbTime(int(time)))
		h.sink.Report(report.ReverbLevel(int(level)))
		if h.onReverbParams != nil {
			h.onReverbParams(mode, time, level)
		}
	}
}

func (h *SysexHandler) handleDisplayWrite(offset uint32, data []byte) {
	text := sanitizeLCDText(data)
	h.sink.Report(report.LCD(text))
}

// sanitizeLCDText strips non-printable bytes from a display-area write,
// matching the MT-32's 20-character ASCII LCD.
func sanitizeLCDText(data []byte) string {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b >= 0x20 && b < 0x7F {
			out = append(out, b)
		} else if b == 0 {
			break
		}
	}
	return string(out)
}
