package synth

import (
	"math"

	"github.com/retrosynth/mt32emu-go/midi"
	"github.com/retrosynth/mt32emu-go/rom"
)

// Part keeps per-channel state and routes incoming MIDI to Polys (spec.md
// §4.4, §3: "Part — keeps per-channel state ... routes note on/off to
// polys"). A Part exclusively owns its Polys.
type Part struct {
	Number int // part number 0..8; part 8 is the rhythm part

	ctrl *rom.ControlROM
	pcm  *rom.PCMROM

	Program    uint8
	Expression uint8
	Volume     uint8
	Modulation uint8
	PitchBend  int     // 14-bit, center 8192
	BendRange  uint8   // semitones, set via RPN 0 (pitch bend sensitivity)
	Pan        uint8
	Priority   float64 // 0..1, set via SysEx part-priority area
	PedalDown  bool
	RhythmPart bool

	// Registered-parameter state for CC 100/101 + data entry (CC 6).
	// 0x7F/0x7F is the MIDI "null" RPN.
	rpnMSB uint8
	rpnLSB uint8

	polys []*Poly
}

// NewPart constructs a Part bound to ctrl/pcm for timbre and sample
// lookup.
func NewPart(number int, ctrl *rom.ControlROM, pcm *rom.PCMROM) *Part {
	return &Part{
		Number:     number,
		ctrl:       ctrl,
		pcm:        pcm,
		Expression: 127,
		Volume:     100,
		PitchBend:  8192,
		BendRange:  2,
		Pan:        64,
		Priority:   0.5,
		RhythmPart: number == 8,
		rpnMSB:     0x7F,
		rpnLSB:     0x7F,
	}
}

// Priority01 reports this part's stealing priority, used by
// PartialManager.Allocate's score function.
func (p *Part) Priority01() float64 { return p.Priority }

// PriorityLookup resolves a part number to its stealing priority. The
// Synth façade builds one closure over all its Parts and passes it to
// every Dispatch call (spec.md §4.3: "scores every active partial using
// age x (1 - part-priority)").
type PriorityLookup func(part int) float64

// Dispatch routes a decoded channel message to the appropriate handler
// (spec.md §4.4).
func (p *Part) Dispatch(msg midi.ShortMessage, pm *PartialManager, priority PriorityLookup, warn func(string)) {
	switch msg.Kind() {
	case midi.KindNoteOn:
		p.noteOn(msg.Data1, msg.Data2, pm, priority, warn)
	case midi.KindNoteOff:
		p.noteOff(msg.Data1, pm)
	case midi.KindControlChange:
		p.controlChange(msg.Data1, msg.Data2, pm)
	case midi.KindProgramChange:
		p.Program = msg.Data1
	case midi.KindPitchBend:
		p.PitchBend = msg.PitchBendValue()
	}
}

// BendRatio folds the 14-bit pitch-bend value and the RPN-configured
// bend range into a frequency multiplier, applied live to every sounding
// partial of this part.
func (p *Part) BendRatio() float64 {
	semis := float64(p.PitchBend-8192) / 8192.0 * float64(p.BendRange)
	return math.Exp2(semis / 12.0)
}

// MixGain is the part's live channel-volume × expression gain, applied
// at mix time rather than snapshotted so a CC 7/11 change is audible on
// already-sounding polys (spec.md §4.4: "recompute parameters on all
// active polys whose TVA depends on expression").
func (p *Part) MixGain() float64 {
	return float64(p.Volume) / 127.0 * float64(p.Expression) / 127.0
}

func (p *Part) timbreIndex() uint8 { return p.Program }

func (p *Part) noteOn(key, velocity uint8, pm *PartialManager, priority PriorityLookup, warn func(string)) {
	if velocity == 0 {
		p.noteOff(key, pm)
		return
	}
	timbre := p.ctrl.Timbres[p.timbreIndex()]
	count := 0
	for i := range timbre.PartialMute {
		if timbre.PartialMute[i] {
			count++
		}
	}
	if count == 0 {
		count = 1
	}

	handles, ok := pm.Allocate(p.Number, count, p.Priority, priority)
	if !ok {
		if warn != nil {
			warn("note-on dropped: partial allocation failed")
		}
		return
	}

	cap := Capability{
		Tables:     p.ctrl,
		Key:        key,
		Velocity:   velocity,
		Expression: p.Expression,
		RhythmTemp: p.RhythmPart,
	}
	pc := NewPatchCache(timbre, cap)

	stamps := make([]uint64, len(handles))
	for i, h := range handles {
		pp := pc.Partial(i)
		noteCap := pc.Capability
		noteCap.Resonance = pp.FilterResonance
		freqHz := partialHz(key, pp)
		wave := p.buildWave(pp, freqHz)
		pm.Partial(h).Reset(i, pp, noteCap, wave, freqHz, warn)
		stamps[i] = pm.StampOf(h)
	}

	poly := NewPoly(key, velocity, handles, stamps)
	p.polys = append(p.polys, poly)
}

// buildWave selects a synthesized oscillator or a PCM ROM reader per
// spec.md §4.4 ("choose waveform type and PCM slot").
func (p *Part) buildWave(pp rom.PartialParams, freqHz float64) *WaveGenerator {
	if pp.WaveformFlag != 1 || p.pcm == nil {
		return NewSynthesized(freqHz, nativeSampleRate)
	}
	slotIdx := int(pp.PCMSlot)
	data, err := p.pcm.Sample(slotIdx)
	if err != nil {
		return NewSynthesized(freqHz, nativeSampleRate)
	}
	return NewPCM(data, p.pcm.Slots[slotIdx], freqHz, nativeSampleRate, nativeSampleRate)
}

func (p *Part) noteOff(key uint8, pm *PartialManager) {
	for _, poly := range p.polys {
		if poly.Key == key && (poly.State() == PolyPlaying || poly.State() == PolyHeld) {
			poly.NoteOff(pm, p.PedalDown)
		}
	}
}

const (
	ccModulation          = 1
	ccDataEntry           = 6
	ccVolume              = 7
	ccPan                 = 10
	ccExpression          = 11
	ccSustainPedal        = 64
	ccRPNLSB              = 100
	ccRPNMSB              = 101
	ccResetAllControllers = 121
	ccAllSoundOff         = 120
	ccAllNotesOff         = 123
)

func (p *Part) controlChange(controller, value uint8, pm *PartialManager) {
	switch controller {
	case ccModulation:
		p.Modulation = value
	case ccVolume:
		p.Volume = value
	case ccPan:
		p.Pan = value
	case ccExpression:
		p.Expression = value
	case ccSustainPedal:
		down := value >= 64
		p.PedalDown = down
		if !down {
			for _, poly := range p.polys {
				poly.PedalRelease(pm)
			}
		}
	case ccRPNMSB:
		p.rpnMSB = value
	case ccRPNLSB:
		p.rpnLSB = value
	case ccDataEntry:
		// RPN 0,0 is pitch bend sensitivity in semitones (spec.md §3:
		// "pitch-bend (14-bit, mapped to cents via RPN 0)").
		if p.rpnMSB == 0 && p.rpnLSB == 0 {
			if value > 24 {
				value = 24
			}
			p.BendRange = value
		}
	case ccResetAllControllers:
		p.Expression = 127
		p.Modulation = 0
		p.PitchBend = 8192
		p.rpnMSB, p.rpnLSB = 0x7F, 0x7F
		if p.PedalDown {
			p.PedalDown = false
			for _, poly := range p.polys {
				poly.PedalRelease(pm)
			}
		}
	case ccAllNotesOff:
		for _, poly := range p.polys {
			poly.FastRelease(pm)
		}
	case ccAllSoundOff:
		for _, poly := range p.polys {
			poly.Kill(pm)
		}
	}
}

// ReapFinishedPolys removes polys that have finished, called once per
// render frame by the Synth façade.
func (p *Part) ReapFinishedPolys(pm *PartialManager) {
	for _, poly := range p.polys {
		poly.RefreshState(pm)
	}
	kept := p.polys[:0]
	for _, poly := range p.polys {
		if poly.State() != PolyFinished {
			kept = append(kept, poly)
		}
	}
	p.polys = kept
}

// Polys returns the part's currently tracked polys, for the Synth
// façade's per-sample mixing loop.
func (p *Part) Polys() []*Poly { return p.polys }

const nativeSampleRate = 32000.0

// keyToHz converts a MIDI key number to frequency using equal
// temperament, A4 (key 69) = 440Hz.
func keyToHz(key uint8) float64 {
	return 440.0 * math.Exp2((float64(key)-69.0)/12.0)
}

// partialHz applies a partial structure's coarse (semitone) and fine
// (cent) pitch offsets to the pressed key's nominal frequency.
func partialHz(key uint8, pp rom.PartialParams) float64 {
	semis := float64(pp.PitchCoarse) + float64(pp.PitchFine)/100.0
	return keyToHz(key) * math.Exp2(semis/12.0)
}
