package synth

import "github.com/retrosynth/mt32emu-go/rom"

// PatchCache is an immutable snapshot of the timbre and note context a
// Partial needs for its whole lifetime, taken once at note-on (spec.md
// §4.2: "Snapshot the patch cache (immutable while partial lives)";
// spec.md §5: "Patch caches are copy-on-write per poly, snapshotted at
// note-on"). Because rom.Timbre and Capability are plain value types,
// copying a PatchCache is already a deep, allocation-free snapshot — no
// partial can observe a later change to the part's live program or to
// the ROM.
type PatchCache struct {
	Timbre     rom.Timbre
	Capability Capability
}

// NewPatchCache snapshots timbre and cap by value.
func NewPatchCache(timbre rom.Timbre, cap Capability) PatchCache {
	return PatchCache{Timbre: timbre, Capability: cap}
}

// Partial returns the i-th partial structure's ROM parameters, wrapping
// around if the timbre defines fewer than i+1.
func (pc PatchCache) Partial(i int) rom.PartialParams {
	return pc.Timbre.Partials[i%len(pc.Timbre.Partials)]
}
