package synth

// PartialManager owns a fixed pool of Partials (spec.md §4.3: "Fixed pool
// of N partials, N ∈ {32, 48, ..., 256}, default 32 matching MT-32").
// Partial is indexed by integer handle rather than pointer so Poly/Part
// never hold a cyclic reference into the pool (spec.md §3's ownership
// summary: "Partial holds only a weak back-reference... to its Poly").
type PartialManager struct {
	partials []Partial
	owner    []int // owning part number, -1 if free
	age      []uint64
	clock    uint64
}

// NewPartialManager allocates a pool of n partials, all initially free.
func NewPartialManager(n int) *PartialManager {
	pm := &PartialManager{
		partials: make([]Partial, n),
		owner:    make([]int, n),
		age:      make([]uint64, n),
	}
	for i := range pm.owner {
		pm.owner[i] = -1
	}
	return pm
}

// Len reports the pool size.
func (pm *PartialManager) Len() int { return len(pm.partials) }

// FreeCount reports how many partials are currently unowned, used by
// spec.md §8's "partial-pool free-count round-trip" property.
func (pm *PartialManager) FreeCount() int {
	n := 0
	for _, o := range pm.owner {
		if o < 0 {
			n++
		}
	}
	return n
}

// Partial returns the partial at handle idx.
func (pm *PartialManager) Partial(idx int) *Partial { return &pm.partials[idx] }

// StampOf returns the grant stamp of the partial at idx: the pool clock
// value at which it was last granted. A (handle, stamp) pair uniquely
// identifies one grant, so a Poly holding a stamp can tell whether its
// partial was stolen and re-granted behind its back.
func (pm *PartialManager) StampOf(idx int) uint64 { return pm.age[idx] }

// Owns reports whether the partial at idx still belongs to the grant
// identified by stamp. False once the partial has been released or
// stolen for another note.
func (pm *PartialManager) Owns(idx int, stamp uint64) bool {
	return pm.owner[idx] >= 0 && pm.age[idx] == stamp
}

// Allocate finds count free partials, stealing from lower-priority active
// ones if necessary (spec.md §4.3). partNumber identifies the requesting
// part and is recorded as the owner of the granted partials; the
// requester's own partials are stealing candidates like any other.
// priorityScore is the
// requester's own priority (0..1, higher = more important) used against
// each candidate's age*(1-part-priority) score.
func (pm *PartialManager) Allocate(partNumber int, count int, priorityScore float64, partPriority func(part int) float64) ([]int, bool) {
	// Advance the logical clock once per request so "age" (ticks since a
	// partial was granted) is meaningful even across back-to-back
	// allocate calls with no rendered frames in between.
	pm.clock++

	free := make([]int, 0, count)
	for i, o := range pm.owner {
		if o < 0 {
			free = append(free, i)
			if len(free) == count {
				return pm.commit(free, partNumber), true
			}
		}
	}

	// Not enough free partials: steal the most stealable active ones.
	// Stealability is age × (1 − part-priority), so old notes on
	// low-priority parts go first; a victim is only taken when its
	// stealability exceeds the caller's priority complement, so a fresh
	// note on a high-priority part survives a low-priority requester.
	type candidate struct {
		idx   int
		score float64
	}
	candidates := make([]candidate, 0, len(pm.partials))
	for i, o := range pm.owner {
		if o < 0 {
			continue
		}
		score := float64(pm.clock-pm.age[i]) * (1 - partPriority(o))
		candidates = append(candidates, candidate{idx: i, score: score})
	}
	// Selection sort by (score desc, grant age asc, owner asc) — tie-break
	// per spec.md §4.3: "oldest partial, then lowest owning-part number".
	for i := 0; i < len(candidates); i++ {
		best := i
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[j], candidates[best]
			if a.score > b.score ||
				(a.score == b.score && pm.age[a.idx] < pm.age[b.idx]) ||
				(a.score == b.score && pm.age[a.idx] == pm.age[b.idx] && pm.owner[a.idx] < pm.owner[b.idx]) {
				best = j
			}
		}
		candidates[i], candidates[best] = candidates[best], candidates[i]
	}

	needed := count - len(free)
	if needed > len(candidates) {
		return nil, false
	}
	for i := 0; i < needed; i++ {
		if candidates[i].score <= 1-priorityScore {
			return nil, false
		}
	}
	for i := 0; i < needed; i++ {
		idx := candidates[i].idx
		pm.partials[idx].Stop()
		free = append(free, idx)
	}
	return pm.commit(free, partNumber), true
}

func (pm *PartialManager) commit(indices []int, partNumber int) []int {
	for _, idx := range indices {
		pm.owner[idx] = partNumber
		pm.age[idx] = pm.clock
	}
	out := make([]int, len(indices))
	copy(out, indices)
	return out
}

// Release returns a partial to the free pool. Called when a partial
// reports play=false and any ring-mod decay has finished (spec.md §4.2).
func (pm *PartialManager) Release(idx int) {
	pm.partials[idx].Stop()
	pm.owner[idx] = -1
}

// ReapFinished scans for owned-but-stopped partials and frees them,
// called once per rendered frame by the Synth façade.
func (pm *PartialManager) ReapFinished() {
	for i := range pm.partials {
		if pm.owner[i] >= 0 && !pm.partials[i].Playing() {
			pm.owner[i] = -1
		}
	}
}
