package rom

import "fmt"

// SampleSlot describes one attack/loop waveform sample in the PCM ROM.
type SampleSlot struct {
	StartAddr uint32
	LoopAddr  uint32 // 0 if non-looping
	Len       uint32
	Looped    bool
	Is12Bit   bool // true = 12-bit packed samples, false = 16-bit
}

const (
	pcmSlotTableOffset = 0x0000
	pcmSlotCount       = 256
	pcmSlotRecordSize  = 12
	pcmSampleDataStart = pcmSlotCount * pcmSlotRecordSize
)

// PCMROM is the parsed view over a PCM ROM image: a slot table followed by
// the raw sample data it indexes.
type PCMROM struct {
	Image Image
	Slots [pcmSlotCount]SampleSlot
}

func parsePCM(img Image) (*PCMROM, error) {
	need := pcmSampleDataStart
	if len(img.Data) < need {
		return nil, fmt.Errorf("rom: PCM image too small: have %d bytes, need %d", len(img.Data), need)
	}
	p := &PCMROM{Image: img}
	for i := 0; i < pcmSlotCount; i++ {
		off := pcmSlotTableOffset + i*pcmSlotRecordSize
		rec := img.Data[off : off+pcmSlotRecordSize]
		start := u32le(rec[0:4])
		loop := u32le(rec[4:8])
		length := u32le(rec[8:12]) &^ 0xC0000000
		flags := rec[11] >> 6
		p.Slots[i] = SampleSlot{
			StartAddr: start,
			LoopAddr:  loop,
			Len:       length,
			Looped:    flags&0x01 != 0,
			Is12Bit:   flags&0x02 != 0,
		}
	}
	return p, nil
}

func u32le(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// ErrSampleSlotMissing is returned when a control-ROM patch references a
// PCM sample slot that does not exist in the PCM ROM — a violation of the
// invariant in spec.md §3 ("a PCM sample slot referenced by a control-ROM
// patch must exist").
type ErrSampleSlotMissing struct {
	Slot int
}

func (e *ErrSampleSlotMissing) Error() string {
	return fmt.Sprintf("rom: PCM sample slot %d referenced but absent", e.Slot)
}

// Sample returns the raw sample bytes for slot, validating that the slot
// index is in range and the referenced region fits inside the image.
func (p *PCMROM) Sample(slot int) ([]byte, error) {
	if slot < 0 || slot >= pcmSlotCount {
		return nil, &ErrSampleSlotMissing{Slot: slot}
	}
	s := p.Slots[slot]
	start := pcmSampleDataStart + int(s.StartAddr)
	end := start + int(s.Len)
	if start < 0 || end > len(p.Image.Data) || end < start {
		return nil, &ErrSampleSlotMissing{Slot: slot}
	}
	return p.Image.Data[start:end], nil
}

// Validate checks that every PCM slot referenced by ctrl's timbres exists
// in p, per the cross-ROM invariant in spec.md §3.
func Validate(ctrl *ControlROM, p *PCMROM) error {
	for i := range ctrl.Timbres {
		for j := range ctrl.Timbres[i].Partials {
			pp := &ctrl.Timbres[i].Partials[j]
			if pp.WaveformFlag != 1 {
				continue
			}
			if _, err := p.Sample(int(pp.PCMSlot)); err != nil {
				return fmt.Errorf("timbre %d partial %d: %w", i, j, err)
			}
		}
	}
	return nil
}
