// Package synth implements the MT-32/CM-32L synthesis engine: the
// TVP/TVF/TVA envelope generators, partials, polys, parts, reverb models,
// and the Synth façade + scheduler (spec.md §4).
//
// Grounded on sid_engine.go's ADSR phase state machine
// (IntuitionAmiga-IntuitionEngine), generalized from the SID's 4-phase
// attack/decay/sustain/release into the MT-32's ROM-table-driven 7-phase
// form described in spec.md §4.1.
package synth

// phaseFinished is the terminal envelope phase (spec.md §4.1: "target_phase
// ∈ 0..7; 7 = finished").
const phaseFinished = 7

// EnvTables is the subset of ROM-derived tables an envelope generator
// needs: the logarithmic time table indexed by |level delta| (spec.md
// §4.1: "envLogarithmicTime is read-only from the ROM").
type EnvTables struct {
	LogTime [128]uint8
}

// samplesPerTimeUnit converts a ROM time-table unit into native-rate
// samples. The real hardware's unit-to-millisecond mapping is not
// reproduced bit-for-bit (see rom/control.go's header note); this port
// documents its own fixed conversion so envelope timing is at least
// internally consistent and testable against spec.md §8's boundary case
// ("envTime=0 with nonzero level delta: target reached in one frame").
const samplesPerTimeUnit = 32

// Engine is the shared 7-phase envelope state machine used by TVP, TVF,
// and TVA (spec.md §4.1). Domain-specific reset logic (bias/velocity/key
// corrections) lives in tvp.go/tvf.go/tva.go; this type only implements
// the phase machine itself.
type Engine struct {
	envLevel [7]int
	envTime  [7]uint8

	targetPhase  int
	current      int // fixed-point 16.16
	target       int // integer amplitude domain (0..155 for TVA)
	timeToTarget int8
	increment    int // fixed-point 16.16 per-sample step

	keyTimeSubtraction  int
	veloTimeSubtraction int // only TVA's phase 1 uses this (spec.md §4.1)

	sustainHeld bool
	held        bool // parked in phase 5 awaiting sustain release
	play        bool

	// Latches once nextPhase is called after the engine reached phase 7,
	// so the "refuse to advance" diagnostic (spec.md §4.1) fires only once
	// per partial rather than spamming the report sink.
	advanceAfterFinishWarned bool
}

// Reset starts the engine from phase 0 using levels/times captured from
// the patch cache at note-on. startTarget is the domain-specific initial
// target (spec.md §4.1: "targetAmp = basic amp − tvf.resonance/2 clamped
// to [0,155]" for TVA; TVP/TVF use their own domain's equivalent).
func (e *Engine) Reset(levels [7]uint8, times [7]uint8, startTarget int, keyTimeSub, veloTimeSub int) {
	for i := range levels {
		e.envLevel[i] = int(levels[i])
	}
	e.envTime = times
	e.keyTimeSubtraction = keyTimeSub
	e.veloTimeSubtraction = veloTimeSub
	e.sustainHeld = false
	e.held = false
	e.play = true
	e.advanceAfterFinishWarned = false

	e.current = 0
	e.target = startTarget
	e.targetPhase = 0
	e.timeToTarget = int8(clampByte(int(times[0]), 1, 127))

	if times[0] == 0 {
		// "the generator starts in phase 1 with targetAmp += envLevel[0]"
		e.targetPhase = 1
		e.target = clampByte(startTarget+int(levels[0]), 0, 155)
		e.timeToTarget = 1 // snap
	}
	e.recomputeIncrement()
}

// SetSustainHeld is called by the owning Poly when the sustain pedal's
// state affects whether phase 5 holds or falls straight to release
// (spec.md §4.1: "At phase 5, if sustain is not held the generator is
// forced into phase 6").
func (e *Engine) SetSustainHeld(held bool) { e.sustainHeld = held }

// Playing reports whether the envelope has not yet reached phase 7.
func (e *Engine) Playing() bool { return e.play && e.targetPhase < phaseFinished }

// Phase returns the current target phase, chiefly for tests and
// diagnostics.
func (e *Engine) Phase() int { return e.targetPhase }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clampByte(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// nextPhase implements spec.md §4.1's phase-transition contract. It is
// called by NextAmp whenever current reaches target (Reset's initial
// phase-1 skip sets its phase and target directly).
func (e *Engine) nextPhase(tables EnvTables, warn func(string)) {
	if e.targetPhase >= phaseFinished {
		if !e.advanceAfterFinishWarned && warn != nil {
			warn("nextPhase called after envelope reached phase 7")
			e.advanceAfterFinishWarned = true
		}
		return
	}

	e.targetPhase++
	if e.targetPhase >= phaseFinished {
		e.play = false
		return
	}

	if e.targetPhase >= 5 && e.envLevel[3] == 0 {
		// Nothing left to sustain or release from: the generator stops.
		e.play = false
		e.targetPhase = phaseFinished
		return
	}

	if e.targetPhase == 5 {
		if !e.sustainHeld {
			e.targetPhase = 6
			e.target = 0
			e.timeToTarget = int8(-clampByte(int(e.envTime[4]), 1, 127))
			e.recomputeIncrement()
			return
		}
		// Sustain: park at the current level until the key (or pedal)
		// lets go; NextAmp unparks into release.
		e.held = true
		e.increment = 0
		e.timeToTarget = 0
		return
	}

	newTargetAmp := e.envLevel[e.targetPhase]

	// "All levels zero from here" optimisation (spec.md §4.1): only the
	// ramp phases participate; the sustain target is always its own level.
	if e.targetPhase <= 3 {
		allZero := true
		for p := e.targetPhase; p <= 3; p++ {
			if e.envLevel[p] != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			newTargetAmp = 0
		}
	}

	envTimeSetting := int(e.envTime[e.targetPhase]) - e.keyTimeSubtraction
	if e.targetPhase == 1 {
		envTimeSetting -= e.veloTimeSubtraction
	}

	delta := newTargetAmp - e.target
	down := delta < 0
	magnitude := clampByte(abs(delta), 0, 127)

	var ttt int
	if envTimeSetting > 0 {
		ttt = int(tables.LogTime[magnitude]) - envTimeSetting
		if ttt < 1 {
			ttt = 1
		}
	} else {
		ttt = 1 // "snap": target reached in one frame
	}
	if ttt > 127 {
		ttt = 127
	}
	if down {
		e.timeToTarget = int8(-ttt)
	} else {
		e.timeToTarget = int8(ttt)
	}

	e.target = newTargetAmp
	e.recomputeIncrement()
}

func (e *Engine) recomputeIncrement() {
	ttt := int(e.timeToTarget)
	down := ttt < 0
	if down {
		ttt = -ttt
	}
	// timeToTarget of 1 signals "snap": the target is reached in a single
	// sample (spec.md §8's envTime=0 boundary case).
	samples := ttt * samplesPerTimeUnit
	if ttt <= 1 {
		samples = 1
	}
	delta := (e.target << 16) - e.current
	e.increment = delta / samples
	if e.increment == 0 {
		if delta > 0 {
			e.increment = 1
		} else if delta < 0 {
			e.increment = -1
		}
	}
}

// NextAmp advances the envelope by one sample and returns the updated
// amplitude as a linear gain in [0,1] (spec.md §4.1: "Return the updated
// amplitude for the current sample as a linear gain"). tables supplies the
// ROM logarithmic-time lookup; warn receives a diagnostic string on the
// "advance after finish" edge case (spec.md §4.1).
func (e *Engine) NextAmp(tables EnvTables, warn func(string)) float64 {
	if !e.Playing() {
		return 0
	}

	if e.held {
		if e.sustainHeld {
			return clampAmp01(e.current)
		}
		e.held = false
		e.targetPhase = 6
		e.target = 0
		e.timeToTarget = int8(-clampByte(int(e.envTime[4]), 1, 127))
		e.recomputeIncrement()
	}

	targetFixed := e.target << 16
	prevSign := e.current < targetFixed
	e.current += e.increment
	crossed := prevSign != (e.current < targetFixed)
	reachedExactly := e.current == targetFixed

	if crossed || reachedExactly || e.increment == 0 {
		e.current = targetFixed
		e.nextPhase(tables, warn)
	}

	return clampAmp01(e.current)
}

// clampAmp01 converts the 16.16 amplitude to a linear gain in [0,1],
// clamped to the 0..155 hardware domain.
func clampAmp01(currentFixed int) float64 {
	amp := float64(currentFixed) / 65536.0
	if amp < 0 {
		amp = 0
	}
	if amp > 155 {
		amp = 155
	}
	return amp / 155.0
}

// CurrentAmp returns the raw current amplitude in the engine's domain
// (0..155 for TVA), for invariant checks (spec.md §8).
func (e *Engine) CurrentAmp() int { return e.current >> 16 }

// ForceRelease fast-forwards the engine to the brink of phase 5 so the
// next NextAmp call immediately evaluates the sustain/release decision,
// used for "all notes off" (spec.md §4.4: "iterate polys and call
// fast-release... respectively").
func (e *Engine) ForceRelease() {
	if e.targetPhase >= 5 {
		return
	}
	e.targetPhase = 4
	e.current = e.target << 16
}

// Kill terminates the engine immediately without running through its
// remaining phases, used for "all sound off" (spec.md §4.4: "immediate-
// kill").
func (e *Engine) Kill() {
	e.play = false
	e.targetPhase = phaseFinished
}
