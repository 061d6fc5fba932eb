// Package memmap implements the emulated 24-bit MT-32 address space: a
// typed, region-clipped byte-addressable map used by the SysEx handler and
// by live parameter reads.
//
// Grounded on machine_bus.go's MapIO/region/fault-handling pattern
// (IntuitionAmiga-IntuitionEngine), generalized from a 32-bit CPU bus with
// callback-mapped MMIO windows to the MT-32's 21-bit region+offset SysEx
// addressing (spec.md §4.5).
package memmap

import "fmt"

// RegionID names one of the non-overlapping address-space regions in
// spec.md §3.
type RegionID int

const (
	PatchTemp RegionID = iota
	RhythmTemp
	TimbreTemp
	Patches
	Timbres
	System
	Display
	Reset
	numRegions
)

func (r RegionID) String() string {
	switch r {
	case PatchTemp:
		return "PatchTemp"
	case RhythmTemp:
		return "RhythmTemp"
	case TimbreTemp:
		return "TimbreTemp"
	case Patches:
		return "Patches"
	case Timbres:
		return "Timbres"
	case System:
		return "System"
	case Display:
		return "Display"
	case Reset:
		return "Reset"
	default:
		return "Unknown"
	}
}

type regionDef struct {
	base   uint32
	length uint32
}

// Region layout. Base addresses and sizes are this port's own documented
// convention (see rom/control.go's header comment on the same subject) —
// the MT-32's real SysEx address map is hardware-specific and not
// reproduced here; what spec.md requires and what this preserves is the
// *behavior*: non-overlapping regions, clipped writes, a reset trigger.
var layout = [numRegions]regionDef{
	PatchTemp:  {base: 0x030000, length: 9 * 16},
	RhythmTemp: {base: 0x030110, length: 85 * 4},
	TimbreTemp: {base: 0x040000, length: 8 * 246},
	Patches:    {base: 0x050000, length: 128 * 8},
	Timbres:    {base: 0x080000, length: 64 * 246},
	System:     {base: 0x100000, length: 23},
	Display:    {base: 0x1F0000, length: 20},
	Reset:      {base: 0x1FF000, length: 1},
}

// MaxAddress is the highest address any region occupies; SysEx addresses
// are 21-bit (three 7-bit bytes), so every region must fit under 1<<21.
const MaxAddress = 1 << 21

// System-area field offsets (spec.md §3: "master tuning, reverb
// mode/time/level, part-to-channel mapping, master volume").
const (
	SysMasterTune   = 0
	SysReverbMode   = 1
	SysReverbTime   = 2
	SysReverbLevel  = 3
	SysPartMapBase  = 4 // 9 bytes, one per part
	SysMasterVolume = 13
)

// Map is the full emulated address space: one backing buffer per region.
type Map struct {
	buf [numRegions][]byte
}

// New allocates a Map with every region zeroed.
func New() *Map {
	m := &Map{}
	for id := range layout {
		m.buf[id] = make([]byte, layout[id].length)
	}
	return m
}

// ErrAddressInvalid reports a SysEx/API address outside the whole address
// space (spec.md §7: SysexAddressInvalid).
type ErrAddressInvalid struct {
	Addr uint32
}

func (e *ErrAddressInvalid) Error() string {
	return fmt.Sprintf("memmap: address 0x%06X outside address space", e.Addr)
}

// Locate maps an absolute 24-bit address to a region and offset within it.
func Locate(addr uint32) (RegionID, uint32, error) {
	for id := range layout {
		d := layout[id]
		if addr >= d.base && addr < d.base+d.length {
			return RegionID(id), addr - d.base, nil
		}
	}
	return 0, 0, &ErrAddressInvalid{Addr: addr}
}

// RegionLen returns a region's byte length.
func RegionLen(id RegionID) uint32 { return layout[id].length }

// RegionBase returns a region's base address.
func RegionBase(id RegionID) uint32 { return layout[id].base }

// WriteResult reports what Write actually did, so callers (the SysEx
// handler) can raise the right side effects.
type WriteResult struct {
	Region    RegionID
	Offset    uint32
	Written   int // bytes actually written, after clipping
	Clipped   bool
}

// Write writes data starting at addr, clipped to the owning region's
// remaining length. Per spec.md §4.5, a write spanning a region boundary
// is never split across regions: bytes beyond the end of the addressed
// region are silently dropped, not carried into the next region.
func (m *Map) Write(addr uint32, data []byte) (WriteResult, error) {
	id, off, err := Locate(addr)
	if err != nil {
		return WriteResult{}, err
	}
	room := int(layout[id].length - off)
	n := len(data)
	clipped := false
	if n > room {
		n = room
		clipped = true
	}
	copy(m.buf[id][off:off+uint32(n)], data[:n])
	return WriteResult{Region: id, Offset: off, Written: n, Clipped: clipped}, nil
}

// Read returns a copy of n bytes starting at addr, clipped the same way
// Write is.
func (m *Map) Read(addr uint32, n int) ([]byte, error) {
	id, off, err := Locate(addr)
	if err != nil {
		return nil, err
	}
	room := int(layout[id].length - off)
	if n > room {
		n = room
	}
	out := make([]byte, n)
	copy(out, m.buf[id][off:off+uint32(n)])
	return out, nil
}

// Region returns a direct, mutable view of an entire region's backing
// buffer, for components (Part, Poly) that index into it structurally
// rather than through a raw address.
func (m *Map) Region(id RegionID) []byte { return m.buf[id] }

// Reset zeroes every region back to power-on state.
func (m *Map) Reset() {
	for id := range layout {
		for i := range m.buf[id] {
			m.buf[id][i] = 0
		}
	}
}
