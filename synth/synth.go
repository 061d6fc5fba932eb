package synth

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/retrosynth/mt32emu-go/audio"
	"github.com/retrosynth/mt32emu-go/memmap"
	"github.com/retrosynth/mt32emu-go/midi"
	"github.com/retrosynth/mt32emu-go/report"
	"github.com/retrosynth/mt32emu-go/rom"
)

const numParts = 9 // 8 melodic parts + 1 rhythm part (spec.md §3)

// DACInputMode selects how the mixed signal is scaled and quantized on
// its way to the 16-bit output, trading headroom against level (spec.md
// §4.7's setDACInputMode).
type DACInputMode int

const (
	// DACInputNice drives the DAC at full scale; loud mixes may clip.
	DACInputNice DACInputMode = iota
	// DACInputPure halves the gain, giving the mix 6 dB more headroom
	// before it clips, at the cost of overall level.
	DACInputPure
	// DACInputGeneration1 emulates the first-generation DAC's truncated
	// low bit.
	DACInputGeneration1
	// DACInputGeneration2 emulates the later DAC's two truncated bits.
	DACInputGeneration2
)

// MIDIDelayMode controls whether non-timestamped events apply immediately
// or are deferred to the next rendered frame boundary (spec.md §4.7's
// setMIDIDelayMode).
type MIDIDelayMode int

const (
	MIDIDelayImmediate MIDIDelayMode = iota
	MIDIDelayShortMessagesOnly
	MIDIDelayAll
)

// ErrConfigOutOfRange reports an API argument outside its documented
// range (spec.md §7: ConfigOutOfRange — "rejected, caller informed").
type ErrConfigOutOfRange struct {
	Name  string
	Value int
}

func (e *ErrConfigOutOfRange) Error() string {
	return fmt.Sprintf("synth: %s value %d out of range", e.Name, e.Value)
}

// ErrSynthNotOpen is returned by API calls made after Close (spec.md §7:
// SynthNotOpen — "returned to caller; no state change"). The audio-path
// entry points (PlayMsg, PlaySysex, Render) instead no-op/render silence
// so a racing driver never has to handle an error mid-stream.
var ErrSynthNotOpen = errors.New("synth: not open")

// Synth is the public façade (spec.md §4.7): Open/Close/PlayMsg/PlaySysex
// /Render plus the live-parameter setters. It exclusively owns every
// Part, both ROM images, the reverb unit, and the partial pool (spec.md
// §3's ownership summary).
type Synth struct {
	mu sync.Mutex // protects configuration changes only (spec.md §5)

	// engineMu serializes MIDI/SysEx dispatch against Render so the
	// producer/consumer mode of spec.md §5 can deliver events from a
	// separate thread; in the mandatory single-caller mode it is
	// uncontended.
	engineMu sync.Mutex

	ctrl *rom.ControlROM
	pcm  *rom.PCMROM

	parts   [numParts]*Part
	partial *PartialManager
	mem     *memmap.Map
	sysex   *SysexHandler
	sysexIn midi.Parser
	sched   Scheduler
	sink    report.Sink

	reverb        Reverb
	reverbEnabled bool

	outputGain       float64
	reverbOutputGain float64
	reversedStereo   bool
	dacMode          DACInputMode
	delayMode        MIDIDelayMode
	niceAmpRamp      bool
	analogMode       audio.AnalogOutputMode

	// rampedGain is the slewed master gain when nice-amp-ramp is on;
	// negative means "not yet primed" so the first frame starts at target
	// instead of fading in from silence.
	rampedGain float64

	lfoPhase float64

	currentFrame uint64
	open         bool
}

// Config bundles Open's inputs (spec.md §4.7).
type Config struct {
	ControlROM    []byte
	PCMROM        []byte
	PartialCount  int
	AcceptUnknown bool
	AnalogMode    audio.AnalogOutputMode
	Sink          report.Sink
}

// Open validates and loads both ROM images, allocates the partial pool
// and parts, and selects a reverb model (spec.md §4.7: "Either fully
// opens or returns a detailed error").
func Open(cfg Config) (*Synth, error) {
	ctrl, err := rom.OpenControl(cfg.ControlROM, cfg.AcceptUnknown)
	if err != nil {
		return nil, fmt.Errorf("synth: open control ROM: %w", err)
	}
	pcm, err := rom.OpenPCM(cfg.PCMROM, cfg.AcceptUnknown)
	if err != nil {
		return nil, fmt.Errorf("synth: open PCM ROM: %w", err)
	}
	if err := rom.Validate(ctrl, pcm); err != nil {
		return nil, fmt.Errorf("synth: cross-ROM validation: %w", err)
	}

	n := cfg.PartialCount
	if n <= 0 {
		n = 32
	}
	sink := cfg.Sink
	if sink == nil {
		sink = report.Discard
	}

	s := &Synth{
		ctrl:             ctrl,
		pcm:              pcm,
		partial:          NewPartialManager(n),
		mem:              memmap.New(),
		sink:             sink,
		reverb:           NewRoomReverb(),
		reverbEnabled:    true,
		outputGain:       1.0,
		reverbOutputGain: 1.0,
		niceAmpRamp:      true,
		rampedGain:       -1,
		analogMode:       cfg.AnalogMode,
		open:             true,
	}
	for i := range s.parts {
		s.parts[i] = NewPart(i, ctrl, pcm)
	}
	s.sysex = NewSysexHandler(s.mem, sink, s.onReverbParamsChanged, s.resetAll)
	s.initSystemDefaults()

	return s, nil
}

// initSystemDefaults writes the power-on system-area values: centered
// master tune, room reverb at moderate time/level, the default
// part-to-channel map (melodic parts on channels 0-7, rhythm on 9), and
// full master volume.
func (s *Synth) initSystemDefaults() {
	sys := s.mem.Region(memmap.System)
	sys[memmap.SysMasterTune] = 64
	sys[memmap.SysReverbMode] = 0
	sys[memmap.SysReverbTime] = 5
	sys[memmap.SysReverbLevel] = 3
	for i := 0; i < numParts-1; i++ {
		sys[memmap.SysPartMapBase+i] = byte(i)
	}
	sys[memmap.SysPartMapBase+numParts-1] = 9 // rhythm part listens on channel 9
	sys[memmap.SysMasterVolume] = 100
}

// Close releases all resources; safe to call after a failed open or
// more than once (spec.md §4.7).
func (s *Synth) Close() {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	for i := range s.parts {
		s.parts[i] = NewPart(i, s.ctrl, s.pcm)
	}
	s.partial = NewPartialManager(s.partial.Len())
	s.open = false
}

// AnalogMode reports the output mode selected at Open, for callers
// wiring an audio.Resampler/Sink externally.
func (s *Synth) AnalogMode() audio.AnalogOutputMode { return s.analogMode }

// PartialPoolFreeCount reports how many partials are currently unowned
// (spec.md §8's "partial-pool free-count round-trip" property).
func (s *Synth) PartialPoolFreeCount() int {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	return s.partial.FreeCount()
}

// Stats is a point-in-time snapshot of the engine's live resources, for
// monitoring and for checking the invariants in spec.md §8.
type Stats struct {
	PartialCount int
	FreePartials int
	ActivePolys  [numParts]int
	CurrentFrame uint64
}

// Stats snapshots the engine's resource counters.
func (s *Synth) Stats() Stats {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	st := Stats{
		PartialCount: s.partial.Len(),
		FreePartials: s.partial.FreeCount(),
		CurrentFrame: s.currentFrame,
	}
	for i, p := range s.parts {
		st.ActivePolys[i] = len(p.Polys())
	}
	return st
}

// ReadMemory returns a copy of n bytes of the emulated address space
// starting at addr, clipped to the addressed region — the read half of
// spec.md §8's SysEx write/read round-trip property.
func (s *Synth) ReadMemory(addr uint32, n int) ([]byte, error) {
	if !s.open {
		return nil, ErrSynthNotOpen
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	return s.mem.Read(addr, n)
}

func (s *Synth) partPriority(part int) float64 {
	if part < 0 || part >= len(s.parts) || s.parts[part] == nil {
		return 0.5
	}
	return s.parts[part].Priority01()
}

func (s *Synth) onReverbParamsChanged(mode, time, level uint8) {
	switch mode {
	case 0:
		s.reverb = NewRoomReverb()
	case 1:
		s.reverb = NewHallReverb()
	case 2:
		s.reverb = NewPlateReverb()
	default:
		s.reverb = NewTapDelayReverb()
	}
	s.reverb.SetParameters(time, level)
}

// resetAll reinitializes every part, the pool, and the address space on a
// reset-region write. The sample-time counter deliberately survives: it
// is strictly non-decreasing across the synth's whole lifetime (spec.md
// §8).
func (s *Synth) resetAll() {
	for i := range s.parts {
		s.parts[i] = NewPart(i, s.ctrl, s.pcm)
	}
	s.partial = NewPartialManager(s.partial.Len())
	s.mem.Reset()
	s.initSystemDefaults()
	s.onReverbParamsChanged(0, 5, 3)
}

// PlayMsg queues (or immediately applies) a packed 32-bit MIDI short
// message (spec.md §4.7, §6). With a MIDI delay mode set, non-timestamped
// messages are deferred to the next frame boundary instead of applying
// mid-frame.
func (s *Synth) PlayMsg(packed uint32, timestamp *uint64) {
	if !s.open {
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if timestamp != nil {
		s.sched.ScheduleShort(*timestamp, packed)
		return
	}
	if s.delayMode != MIDIDelayImmediate {
		s.sched.ScheduleShort(s.currentFrame, packed)
		return
	}
	s.applyShort(packed)
}

// PlaySysex queues (or immediately applies) a raw SysEx byte slice
// (spec.md §4.7). Fragments are fed through the streaming parser so a
// caller may pass partial chunks across multiple calls.
func (s *Synth) PlaySysex(data []byte, timestamp *uint64) {
	if !s.open {
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if timestamp != nil {
		s.sched.ScheduleSysex(*timestamp, data)
		return
	}
	if s.delayMode == MIDIDelayAll {
		s.sched.ScheduleSysex(s.currentFrame, data)
		return
	}
	s.applySysex(data)
}

func (s *Synth) applyShort(packed uint32) {
	msg := midi.DecodeShort(packed)
	if !msg.IsChannelMessage() {
		return
	}
	ch := msg.Channel()
	// The system area's part-to-channel map decides which part (or
	// parts — several may share a channel) receives the message
	// (spec.md §3: "part-to-channel mapping" is a system-area field).
	sys := s.mem.Region(memmap.System)
	for i := 0; i < numParts; i++ {
		if sys[memmap.SysPartMapBase+i] == byte(ch) {
			s.parts[i].Dispatch(msg, s.partial, s.partPriority, s.warn)
		}
	}
}

func (s *Synth) applySysex(data []byte) {
	for len(data) > 0 {
		res, consumed := s.sysexIn.Feed(data)
		if res.Discarded {
			s.sink.Report(report.Debug("sysex: unterminated fragment discarded on new start byte"))
		}
		if res.Complete != nil {
			s.sysex.HandleComplete(res.Complete)
		}
		if consumed == 0 {
			break
		}
		data = data[consumed:]
	}
}

func (s *Synth) warn(msg string) {
	s.sink.Report(report.Debug("%s", msg))
}

// SetOutputGain sets the master output gain, taking effect on the next
// frame (spec.md §4.7).
func (s *Synth) SetOutputGain(g float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputGain = g
}

// SetReverbOutputGain sets the wet-signal gain.
func (s *Synth) SetReverbOutputGain(g float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverbOutputGain = g
}

// SetReversedStereo toggles the output channel swap.
func (s *Synth) SetReversedStereo(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reversedStereo = v
}

// SetDACInputMode selects the DAC headroom/quantization model, taking
// effect on the next frame.
func (s *Synth) SetDACInputMode(m DACInputMode) error {
	if m < DACInputNice || m > DACInputGeneration2 {
		return &ErrConfigOutOfRange{Name: "DACInputMode", Value: int(m)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dacMode = m
	return nil
}

// SetMIDIDelayMode controls deferral of non-timestamped events.
func (s *Synth) SetMIDIDelayMode(m MIDIDelayMode) error {
	if m < MIDIDelayImmediate || m > MIDIDelayAll {
		return &ErrConfigOutOfRange{Name: "MIDIDelayMode", Value: int(m)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayMode = m
	return nil
}

// SetNiceAmpRampEnabled toggles slewing of master-gain changes: enabled,
// a gain change glides over a few milliseconds instead of stepping, so
// live volume edits do not click.
func (s *Synth) SetNiceAmpRampEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.niceAmpRamp = v
}

// SetReverbOverridden disables the SysEx handler's automatic reverb
// parameter updates.
func (s *Synth) SetReverbOverridden(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sysex.SetReverbOverridden(v)
}

// SetReverbEnabled enables or disables the reverb mix entirely.
func (s *Synth) SetReverbEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverbEnabled = v
}

// gainFactor is the headroom scaling for the selected DAC mode.
func (m DACInputMode) gainFactor() float64 {
	if m == DACInputPure {
		return 0.5
	}
	return 1.0
}

// quantize applies the generation modes' truncated low bits.
func (m DACInputMode) quantize(v int16) int16 {
	switch m {
	case DACInputGeneration1:
		return v &^ 1
	case DACInputGeneration2:
		return v &^ 3
	default:
		return v
	}
}

const lfoRateHz = 6.0

// Render produces exactly len(out) stereo frames, consuming any
// scheduled events whose timestamp has arrived before each frame (spec.md
// §4.7's rendering algorithm contract).
func (s *Synth) Render(out []audio.Frame) {
	if !s.open {
		for i := range out {
			out[i] = audio.Frame{}
		}
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.mu.Lock()
	gain := s.outputGain
	reverbGain := s.reverbOutputGain
	reversed := s.reversedStereo
	reverbOn := s.reverbEnabled
	dacMode := s.dacMode
	niceRamp := s.niceAmpRamp
	s.mu.Unlock()

	dryL := make([]float64, 1)
	dryR := make([]float64, 1)
	wetL := make([]float64, 1)
	wetR := make([]float64, 1)

	for i := range out {
		for _, ev := range s.sched.PopDue(s.currentFrame) {
			if ev.isSysex {
				s.applySysex(ev.sysex)
			} else {
				s.applyShort(ev.short)
			}
		}

		sys := s.mem.Region(memmap.System)
		masterVol := float64(sys[memmap.SysMasterVolume]) / 100.0
		if masterVol > 1 {
			masterVol = 1
		}
		tuneRatio := math.Exp2((float64(sys[memmap.SysMasterTune]) - 64) / (64 * 12))

		target := gain * masterVol * dacMode.gainFactor()
		if s.rampedGain < 0 || !niceRamp {
			s.rampedGain = target
		} else if s.rampedGain < target {
			s.rampedGain = minFloat(s.rampedGain+0.002, target)
		} else if s.rampedGain > target {
			s.rampedGain = maxFloat(s.rampedGain-0.002, target)
		}

		s.lfoPhase += twoPi * lfoRateHz / nativeSampleRate
		if s.lfoPhase >= twoPi {
			s.lfoPhase -= twoPi
		}
		lfoSin := fastSin(s.lfoPhase)

		dryL[0], dryR[0] = 0, 0
		for _, part := range s.parts {
			l, r := s.mixPart(part, tuneRatio, lfoSin)
			dryL[0] += l
			dryR[0] += r
		}

		outL, outR := dryL[0], dryR[0]
		if reverbOn {
			s.reverb.Process(dryL, dryR, wetL, wetR)
			outL += wetL[0] * reverbGain
			outR += wetR[0] * reverbGain
		}
		outL *= s.rampedGain
		outR *= s.rampedGain

		if reversed {
			outL, outR = outR, outL
		}
		out[i] = audio.Frame{
			L: dacMode.quantize(clampFrame(outL)),
			R: dacMode.quantize(clampFrame(outR)),
		}

		s.currentFrame++
		for _, part := range s.parts {
			part.ReapFinishedPolys(s.partial)
		}
	}
}

// mixPart produces one stereo sample for every poly of a part, applying
// the part-level pitch modifiers (bend, tune, vibrato) and the live
// volume × expression gain.
func (s *Synth) mixPart(part *Part, tuneRatio, lfoSin float64) (l, r float64) {
	tables := EnvTables{LogTime: s.ctrl.EnvLogarithmicTime}
	partPan := float64(part.Pan) / 127.0
	mixGain := part.MixGain()

	vibDepth := float64(part.Modulation) / 127.0 * 0.3 // semitones
	ext := part.BendRatio() * tuneRatio * math.Exp2(vibDepth*lfoSin/12.0)

	for _, poly := range part.Polys() {
		handles := poly.PartialHandles
		for i := 0; i < len(handles); i++ {
			if !poly.Owns(s.partial, i) {
				continue // stolen for a newer note
			}
			pa := s.partial.Partial(handles[i])
			if !pa.active {
				continue
			}
			raw := pa.nextRaw(tables, ext, s.warn)
			ampGain := pa.nextGain(tables, s.warn)

			// A partial flagged ring-modulated multiplies into the next
			// partial's sample rather than mixing to the bus directly
			// (spec.md §4.2).
			if pa.params.RingModulated && i+1 < len(handles) && poly.Owns(s.partial, i+1) {
				next := s.partial.Partial(handles[i+1])
				if next.active {
					nextRaw := next.nextRaw(tables, ext, s.warn)
					nextGain := next.nextGain(tables, s.warn)
					raw *= nextRaw
					ampGain = (ampGain + nextGain) / 2
					i++ // consumed the paired partial
				}
			}

			pan := clampFloat(partPan+pa.PanBias(), 0, 1)
			sample := raw * ampGain * mixGain
			l += sample * (1 - pan)
			r += sample * pan
		}
	}
	return l, r
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampFrame(v float64) int16 {
	s := v * 32767
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}
