package synth

import (
	"math"

	"github.com/retrosynth/mt32emu-go/rom"
)

// sinLUTSize/sinLUT mirror the teacher's fastSin lookup table
// (audio_lut.go, IntuitionAmiga-IntuitionEngine), reused here for the
// synthesized-waveform partial generator (spec.md §4.4:
// "WaveformFlag==0 selects a synthesized waveform").
const (
	sinLUTSize = 8192
	sinLUTMask = sinLUTSize - 1
)

var sinLUT [sinLUTSize]float32

func init() {
	for i := 0; i < sinLUTSize; i++ {
		phase := float64(i) * 2 * math.Pi / float64(sinLUTSize)
		sinLUT[i] = float32(math.Sin(phase))
	}
}

const twoPi = 2 * math.Pi

// fastSin returns sin(phase) via linear-interpolated LUT lookup, phase in
// radians (any range; wrapped internally).
func fastSin(phase float64) float64 {
	if phase < 0 || phase >= twoPi {
		phase = math.Mod(phase, twoPi)
		if phase < 0 {
			phase += twoPi
		}
	}
	indexF := phase * (sinLUTSize / twoPi)
	index := int(indexF) & sinLUTMask
	frac := indexF - math.Floor(indexF)
	a := float64(sinLUT[index])
	b := float64(sinLUT[(index+1)&sinLUTMask])
	return a + (b-a)*frac
}

// WaveGenerator produces one partial's raw waveform samples: a
// synthesized sawtooth-family oscillator built from additive sine
// harmonics (WaveformFlag==0), or a ROM PCM sample reader
// (WaveformFlag==1), per spec.md §4.4.
type WaveGenerator struct {
	synthesized bool

	// Synthesized oscillator state.
	phase     float64
	freqHz    float64
	sampleHz  float64
	harmonics int

	// PCM playback state.
	pcm      []byte
	is12Bit  bool
	looped   bool
	loopAt   int
	pos      float64
	step     float64
}

// NewSynthesized builds an additive-sine oscillator seeded at freqHz,
// sampled at sampleHz: a fixed bank of six sine harmonics with 1/h
// amplitudes (a band-limited sawtooth). No ROM data shapes the harmonics.
func NewSynthesized(freqHz, sampleHz float64) *WaveGenerator {
	return &WaveGenerator{
		synthesized: true,
		freqHz:      freqHz,
		sampleHz:    sampleHz,
		harmonics:   6,
	}
}

// NewPCM builds a ROM-sample reader over data, honoring the slot's loop
// point and bit depth (spec.md §4.4).
func NewPCM(data []byte, slot rom.SampleSlot, freqHz, nativeHz, sampleHz float64) *WaveGenerator {
	loopAt := 0
	if slot.Looped {
		loopAt = int(slot.LoopAddr)
	}
	return &WaveGenerator{
		synthesized: false,
		pcm:         data,
		is12Bit:     slot.Is12Bit,
		looped:      slot.Looped,
		loopAt:      loopAt,
		sampleHz:    sampleHz,
		step:        freqHz / nativeHz * (nativeHz / sampleHz),
	}
}

// SetFrequency updates the oscillator/playback frequency, e.g. for
// pitch-bend or TVP modulation applied per sample.
func (w *WaveGenerator) SetFrequency(freqHz float64) {
	w.freqHz = freqHz
	if !w.synthesized && w.sampleHz > 0 {
		w.step = freqHz / w.sampleHz
	}
}

// Next produces the next raw sample in [-1,1], advancing internal phase
// by one sample period.
func (w *WaveGenerator) Next() float64 {
	if w.synthesized {
		return w.nextSynthesized()
	}
	return w.nextPCM()
}

func (w *WaveGenerator) nextSynthesized() float64 {
	var sum float64
	base := twoPi * w.freqHz / w.sampleHz
	for h := 1; h <= w.harmonics; h++ {
		sum += fastSin(w.phase*float64(h)) / float64(h)
	}
	w.phase += base
	if w.phase >= twoPi {
		w.phase -= twoPi
	}
	// Normalize the harmonic sum's approximate sawtooth amplitude.
	return sum * (2 / math.Pi)
}

func (w *WaveGenerator) nextPCM() float64 {
	if len(w.pcm) == 0 {
		return 0
	}
	sampleCount := len(w.pcm)
	if w.is12Bit {
		sampleCount = len(w.pcm) * 2 / 3
	} else {
		sampleCount = len(w.pcm) / 2
	}
	idx := int(w.pos)
	if idx >= sampleCount {
		if w.looped && sampleCount > 0 {
			span := sampleCount - w.loopAt
			if span <= 0 {
				span = sampleCount
			}
			idx = w.loopAt + (idx-w.loopAt)%span
		} else {
			return 0
		}
	}
	v := w.readSample(idx)
	w.pos += w.step
	return v
}

func (w *WaveGenerator) readSample(idx int) float64 {
	if w.is12Bit {
		return read12Bit(w.pcm, idx)
	}
	off := idx * 2
	if off+1 >= len(w.pcm) {
		return 0
	}
	raw := int16(uint16(w.pcm[off]) | uint16(w.pcm[off+1])<<8)
	return float64(raw) / 32768.0
}

// read12Bit unpacks a 12-bit sample from a 3-bytes-per-2-samples packed
// stream (spec.md §3): an even sample is byte 0 (high eight bits) then the
// high nibble of byte 1; an odd sample is the low nibble of byte 1 (high
// four bits) then byte 2.
func read12Bit(data []byte, idx int) float64 {
	byteOff := (idx / 2) * 3
	if byteOff+2 >= len(data) {
		return 0
	}
	var raw uint16
	if idx%2 == 0 {
		raw = uint16(data[byteOff])<<4 | uint16(data[byteOff+1])>>4
	} else {
		raw = uint16(data[byteOff+1]&0x0F)<<8 | uint16(data[byteOff+2])
	}
	signed := int16(raw<<4) >> 4 // sign-extend 12 -> 16
	return float64(signed) / 2048.0
}
