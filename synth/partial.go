package synth

import (
	"math"

	"github.com/retrosynth/mt32emu-go/rom"
)

// Partial is one of up to four simultaneously-running oscillator+envelope
// chains that make up a Poly's voice (spec.md §4.4, GLOSSARY: "Partial").
// A Partial owns its own TVP/TVF/TVA triple and wave generator; ring
// modulation between two partials is resolved at mix time by
// Synth.mixPart, which pairs a partial with the next one of the same Poly
// (spec.md §4.4: "a partial flagged ring-modulated
// multiplies its raw waveform against the next partial in structure
// order instead of mixing directly to the output bus").
type Partial struct {
	index int // 0..3, this partial's slot within its Poly

	params rom.PartialParams
	cap    Capability

	tvp TVP
	tvf TVF
	tva TVA

	wave   *WaveGenerator
	baseHz float64

	// tvpCenter is the TVP envelope's resolved sustain level in [0,1]; the
	// per-sample pitch ratio is taken relative to it so a held note lands
	// on its nominal frequency and only envelope motion detunes.
	tvpCenter float64

	panBias float64 // -0.5..+0.5, added to the part's pan

	// Chamberlin state-variable low-pass state.
	filtLow  float64
	filtBand float64

	active bool
}

// Reset (re)starts the partial for a new note, per spec.md §4.4's
// partial-activation contract. baseHz is the note's nominal frequency
// after the partial's coarse/fine pitch offsets; wave must already be
// positioned at phase zero for it. warn receives TVA's bias-point
// diagnostic.
func (p *Partial) Reset(index int, pp rom.PartialParams, cap Capability, wave *WaveGenerator, baseHz float64, warn func(string)) {
	p.index = index
	p.params = pp
	p.cap = cap
	p.wave = wave
	p.baseHz = baseHz
	p.panBias = float64(pp.PanBias) / 16.0
	p.filtLow = 0
	p.filtBand = 0
	p.active = true

	p.tvp.Reset(pp, cap)
	p.tvf.Reset(pp, cap)
	p.tva.Reset(pp, cap, warn)
	// Sustain (phase 5) parks at the phase-4 level.
	p.tvpCenter = float64(clampInt(int(pp.TVPEnvLevel[4]), 0, 155)) / 155.0

	// The key is down: envelopes park in their sustain phase until
	// note-off (or pedal release) clears this.
	p.SetSustainHeld(true)
}

// Playing reports whether the partial's amplitude envelope has not yet
// reached phase 7 (spec.md §4.1/§4.4).
func (p *Partial) Playing() bool {
	return p.active && p.tva.Playing()
}

// SetSustainHeld propagates the part's sustain-pedal state to every
// envelope so phase 5 correctly decides whether to hold or fall to
// release (spec.md §4.1).
func (p *Partial) SetSustainHeld(held bool) {
	p.tvp.SetSustainHeld(held)
	p.tvf.SetSustainHeld(held)
	p.tva.SetSustainHeld(held)
}

// PanBias is this partial's own pan offset in [-0.5,+0.5], summed with
// the part's pan at mix time (spec.md §4.4: "the part's pan + the
// partial's own pan bias").
func (p *Partial) PanBias() float64 { return p.panBias }

// nextRaw advances the pitch and filter envelopes by one sample and
// produces the partial's filtered, unamplified waveform sample.
// externalRatio carries the part-level pitch modifiers (pitch bend,
// master tune, LFO vibrato); TVP's own offset is applied on top (spec.md
// §4.4: "advance phase accumulator by current pitch = base pitch + TVP
// output + pitch-bend + LFO").
func (p *Partial) nextRaw(tables EnvTables, externalRatio float64, warn func(string)) float64 {
	if !p.active {
		return 0
	}
	tvpOut := p.tvp.NextAmp(tables, warn)
	tvpRatio := math.Exp2((tvpOut - p.tvpCenter) * 2)
	p.wave.SetFrequency(p.baseHz * externalRatio * tvpRatio)

	raw := p.wave.Next()
	return p.applyFilter(raw, tables, warn)
}

// applyFilter runs the raw sample through a resonant low-pass whose
// cutoff tracks the TVF envelope (spec.md §4.4: "apply TVF (low-pass with
// resonance at filter cutoff = base cutoff + TVF output)").
func (p *Partial) applyFilter(x float64, tables EnvTables, warn func(string)) float64 {
	tvfOut := p.tvf.NextAmp(tables, warn)

	// Map the envelope's 0..1 domain onto ~100Hz..4.5kHz logarithmically;
	// the upper bound and the damping floor keep the Chamberlin
	// integrator stable at 32kHz.
	cutoffHz := 100 * math.Exp2(tvfOut*5.5)
	if cutoffHz > 4500 {
		cutoffHz = 4500
	}
	f := 2 * math.Sin(math.Pi*cutoffHz/nativeSampleRate)
	res := float64(p.params.FilterResonance&0x7F) / 127.0
	q := 1.0 - 0.5*res

	p.filtLow += f * p.filtBand
	high := x - p.filtLow - q*p.filtBand
	p.filtBand += f * high
	return p.filtLow
}

// nextGain advances TVA by one sample and returns the amplitude gain to
// apply to this sample's filtered waveform (spec.md §4.1/§4.2).
func (p *Partial) nextGain(tables EnvTables, warn func(string)) float64 {
	return p.tva.NextAmp(tables, warn)
}

// Stop forces the partial inactive immediately, used when the partial
// pool steals this slot for a higher-priority note (spec.md §4.5).
func (p *Partial) Stop() {
	p.active = false
}
