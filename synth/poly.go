package synth

// PolyState is a pressed key's lifecycle stage (spec.md §4.4).
type PolyState int

const (
	PolyPlaying PolyState = iota
	PolyHeld
	PolyReleasing
	PolyFinished
)

// Poly tracks one MIDI key-press across up to four partials (spec.md
// §3). It references its partials by pool handle plus grant stamp, never
// by pointer, so the pool remains the sole owner of partial storage and
// a handle that was stolen and re-granted to a newer note is simply
// ignored rather than dangling.
type Poly struct {
	Key      uint8
	Velocity uint8

	PartialHandles []int
	PartialStamps  []uint64
	state          PolyState
	pedalHeld      bool
}

// NewPoly starts a Poly in the Playing state, owning the given partial
// pool handles with their grant stamps.
func NewPoly(key, velocity uint8, handles []int, stamps []uint64) *Poly {
	return &Poly{Key: key, Velocity: velocity, PartialHandles: handles, PartialStamps: stamps, state: PolyPlaying}
}

// State returns the poly's current lifecycle stage.
func (p *Poly) State() PolyState { return p.state }

// Owns reports whether the i-th partial handle is still this poly's
// grant (not stolen for a newer note).
func (p *Poly) Owns(pm *PartialManager, i int) bool {
	return pm.Owns(p.PartialHandles[i], p.PartialStamps[i])
}

// NoteOff handles a note-off event: if the sustain pedal is currently
// held, the poly parks in Held; otherwise it begins releasing
// immediately (spec.md §4.4).
func (p *Poly) NoteOff(pm *PartialManager, pedalDown bool) {
	if p.state != PolyPlaying {
		return
	}
	if pedalDown {
		p.state = PolyHeld
		p.pedalHeld = true
		return
	}
	p.startReleasing(pm)
}

// PedalRelease transitions a Held poly to Releasing when the sustain
// pedal is lifted (spec.md §4.4).
func (p *Poly) PedalRelease(pm *PartialManager) {
	if p.state != PolyHeld {
		return
	}
	p.pedalHeld = false
	p.startReleasing(pm)
}

func (p *Poly) startReleasing(pm *PartialManager) {
	p.state = PolyReleasing
	for i, h := range p.PartialHandles {
		if p.Owns(pm, i) {
			pm.Partial(h).SetSustainHeld(false)
		}
	}
}

// FastRelease forces every owned envelope toward release immediately,
// used for "all notes off" (spec.md §4.4).
func (p *Poly) FastRelease(pm *PartialManager) {
	if p.state == PolyFinished {
		return
	}
	p.state = PolyReleasing
	for i, h := range p.PartialHandles {
		if !p.Owns(pm, i) {
			continue
		}
		part := pm.Partial(h)
		part.SetSustainHeld(false)
		part.tva.ForceRelease()
		part.tvf.ForceRelease()
		part.tvp.ForceRelease()
	}
}

// Kill terminates the poly and its partials immediately, used for "all
// sound off" (spec.md §4.4).
func (p *Poly) Kill(pm *PartialManager) {
	for i, h := range p.PartialHandles {
		if !p.Owns(pm, i) {
			continue
		}
		part := pm.Partial(h)
		part.tva.Kill()
		part.tvf.Kill()
		part.tvp.Kill()
		pm.Release(h)
	}
	p.state = PolyFinished
}

// RefreshState marks the poly Finished once every still-owned partial
// has stopped playing (spec.md §4.4: "* → Finished when all owned
// partials report finished").
func (p *Poly) RefreshState(pm *PartialManager) {
	if p.state == PolyFinished {
		return
	}
	for i, h := range p.PartialHandles {
		if p.Owns(pm, i) && pm.Partial(h).Playing() {
			return
		}
	}
	for i, h := range p.PartialHandles {
		if p.Owns(pm, i) {
			pm.Release(h)
		}
	}
	p.state = PolyFinished
}
