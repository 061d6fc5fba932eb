package synth

// Reverb is the common interface implemented by all four selectable
// reverb models (spec.md §4.6: "implementing the same interface
// process(inL,inR,outL,outR,frames) and setParameters(time,level)").
type Reverb interface {
	Process(inL, inR []float64, outL, outR []float64)
	SetParameters(time, level uint8)
}

// combFilter and allpassFilter are delay-line building blocks for a
// Schroeder reverberator, grounded on (*SoundChip).applyReverb's
// pre-delay/comb/allpass pipeline (audio_chip.go,
// IntuitionAmiga-IntuitionEngine), generalized from one mono channel to
// the four interchangeable stereo models spec.md §4.6 calls for.
type combFilter struct {
	buffer []float64
	decay  float64
	pos    int
}

func newCombFilter(delay int, decay float64) combFilter {
	return combFilter{buffer: make([]float64, delay), decay: decay}
}

func (c *combFilter) step(in float64) float64 {
	out := c.buffer[c.pos]
	c.buffer[c.pos] = in + out*c.decay
	c.pos = (c.pos + 1) % len(c.buffer)
	return out
}

type allpassFilter struct {
	buffer []float64
	coef   float64
	pos    int
}

func newAllpassFilter(delay int, coef float64) allpassFilter {
	return allpassFilter{buffer: make([]float64, delay), coef: coef}
}

func (a *allpassFilter) step(in float64) float64 {
	delayed := a.buffer[a.pos]
	a.buffer[a.pos] = in + delayed*a.coef
	out := delayed - in
	a.pos = (a.pos + 1) % len(a.buffer)
	return out
}

// schroederReverb implements one mono channel of a pre-delay + parallel
// comb + series allpass reverberator; stereo models run two independent
// instances with slightly detuned delay lengths for width.
type schroederReverb struct {
	preDelay    []float64
	preDelayPos int
	combs       []combFilter
	allpasses   []allpassFilter
	attenuation float64
}

func newSchroederReverb(preDelaySamples int, combDelays []int, combDecays []float64, allpassDelays []int, allpassCoef, attenuation float64) *schroederReverb {
	r := &schroederReverb{
		preDelay:    make([]float64, preDelaySamples),
		attenuation: attenuation,
	}
	for i, d := range combDelays {
		r.combs = append(r.combs, newCombFilter(d, combDecays[i]))
	}
	for _, d := range allpassDelays {
		r.allpasses = append(r.allpasses, newAllpassFilter(d, allpassCoef))
	}
	return r
}

func (r *schroederReverb) step(in float64) float64 {
	delayed := r.preDelay[r.preDelayPos]
	r.preDelay[r.preDelayPos] = in
	r.preDelayPos = (r.preDelayPos + 1) % len(r.preDelay)

	var out float64
	for i := range r.combs {
		out += r.combs[i].step(delayed)
	}
	for i := range r.allpasses {
		out = r.allpasses[i].step(out)
	}
	return out * r.attenuation
}

// timeLevelParams scales a reverb model's time/level knobs (0..7 domain,
// per spec.md §4.6's system-area write) into a decay/attenuation pair.
func timeLevelParams(time, level uint8) (decayScale, attenuation float64) {
	t := clampInt(int(time), 0, 7)
	l := clampInt(int(level), 0, 7)
	decayScale = 0.80 + 0.025*float64(t)
	attenuation = 0.15 + 0.10*float64(l)
	return
}

// RoomReverb models a small, tight space: short delays, fast decay.
type RoomReverb struct {
	l, r *schroederReverb
}

func NewRoomReverb() *RoomReverb {
	mk := func(detune int) *schroederReverb {
		return newSchroederReverb(
			8*32, // 8ms pre-delay at 32kHz
			[]int{797 + detune, 743 + detune, 967 + detune, 1061 + detune},
			[]float64{0.80, 0.78, 0.76, 0.74},
			[]int{149, 107},
			0.5, 0.25,
		)
	}
	return &RoomReverb{l: mk(0), r: mk(11)}
}

func (rv *RoomReverb) Process(inL, inR, outL, outR []float64) {
	for i := range inL {
		outL[i] = rv.l.step(inL[i])
		outR[i] = rv.r.step(inR[i])
	}
}

func (rv *RoomReverb) SetParameters(time, level uint8) {
	decay, atten := timeLevelParams(time, level)
	applyDecayAtten(rv.l, decay, atten)
	applyDecayAtten(rv.r, decay, atten)
}

// HallReverb models a large, reflective space: long delays, slow decay.
type HallReverb struct {
	l, r *schroederReverb
}

func NewHallReverb() *HallReverb {
	mk := func(detune int) *schroederReverb {
		return newSchroederReverb(
			20*32,
			[]int{1687 + detune, 1601 + detune, 2053 + detune, 2251 + detune},
			[]float64{0.97, 0.95, 0.93, 0.91},
			[]int{389, 307},
			0.5, 0.30,
		)
	}
	return &HallReverb{l: mk(0), r: mk(17)}
}

func (rv *HallReverb) Process(inL, inR, outL, outR []float64) {
	for i := range inL {
		outL[i] = rv.l.step(inL[i])
		outR[i] = rv.r.step(inR[i])
	}
}

func (rv *HallReverb) SetParameters(time, level uint8) {
	decay, atten := timeLevelParams(time, level)
	applyDecayAtten(rv.l, decay, atten)
	applyDecayAtten(rv.r, decay, atten)
}

// PlateReverb models a dense metallic plate: short, heavily diffused,
// high comb count.
type PlateReverb struct {
	l, r *schroederReverb
}

func NewPlateReverb() *PlateReverb {
	mk := func(detune int) *schroederReverb {
		return newSchroederReverb(
			4*32,
			[]int{1013 + detune, 1109 + detune, 1277 + detune, 1361 + detune, 1499 + detune},
			[]float64{0.90, 0.89, 0.88, 0.87, 0.86},
			[]int{223, 131},
			0.6, 0.22,
		)
	}
	return &PlateReverb{l: mk(0), r: mk(7)}
}

func (rv *PlateReverb) Process(inL, inR, outL, outR []float64) {
	for i := range inL {
		outL[i] = rv.l.step(inL[i])
		outR[i] = rv.r.step(inR[i])
	}
}

func (rv *PlateReverb) SetParameters(time, level uint8) {
	decay, atten := timeLevelParams(time, level)
	applyDecayAtten(rv.l, decay, atten)
	applyDecayAtten(rv.r, decay, atten)
}

// TapDelayReverb is the fourth model: a discrete multi-tap echo rather
// than a diffuse field, for the MT-32's distinctive "tap delay" mode.
type TapDelayReverb struct {
	bufL, bufR []float64
	pos        int
	taps       []int
	gains      []float64
	feedback   float64
}

func NewTapDelayReverb() *TapDelayReverb {
	const maxDelay = 24000 // 750ms at 32kHz
	return &TapDelayReverb{
		bufL:     make([]float64, maxDelay),
		bufR:     make([]float64, maxDelay),
		taps:     []int{4000, 8800, 13600, 19200},
		gains:    []float64{0.5, 0.35, 0.22, 0.12},
		feedback: 0.3,
	}
}

func (rv *TapDelayReverb) Process(inL, inR, outL, outR []float64) {
	n := len(rv.bufL)
	for i := range inL {
		var wetL, wetR float64
		for t, tap := range rv.taps {
			idx := (rv.pos - tap + n) % n
			wetL += rv.bufL[idx] * rv.gains[t]
			wetR += rv.bufR[idx] * rv.gains[t]
		}
		rv.bufL[rv.pos] = inL[i] + wetL*rv.feedback
		rv.bufR[rv.pos] = inR[i] + wetR*rv.feedback
		outL[i] = wetL
		outR[i] = wetR
		rv.pos = (rv.pos + 1) % n
	}
}

func (rv *TapDelayReverb) SetParameters(time, level uint8) {
	t := clampInt(int(time), 0, 7)
	l := clampInt(int(level), 0, 7)
	rv.feedback = 0.15 + 0.08*float64(t)
	scale := 0.08 + 0.05*float64(l)
	for i := range rv.gains {
		rv.gains[i] = scale / float64(i+1)
	}
}

func applyDecayAtten(r *schroederReverb, decayScale, attenuation float64) {
	for i := range r.combs {
		r.combs[i].decay = clampFloat(r.combs[i].decay*decayScale/0.9, 0, 0.995)
	}
	r.attenuation = attenuation
}

func clampFloat(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
