package synth

// scheduledEvent is one queued MIDI short message or SysEx blob, tagged
// with the absolute sample frame at which it must be applied (spec.md
// §4.7: "Queued if timestamp is in the future; applied in-order when the
// renderer reaches that frame").
type scheduledEvent struct {
	frame    uint64
	sequence uint64 // FIFO tie-break for equal timestamps (spec.md §5)
	isSysex  bool
	short    uint32
	sysex    []byte
}

// Scheduler is a FIFO-within-timestamp event queue. It is not
// thread-safe; Synth serializes every schedule and pop under its
// engineMu, so MIDI may arrive on a goroutine other than the renderer's
// (spec.md §5).
type Scheduler struct {
	pending  []scheduledEvent
	sequence uint64
}

// ScheduleShort queues a packed short message for frame (or immediately,
// if frame <= currentFrame when popped).
func (s *Scheduler) ScheduleShort(frame uint64, packed uint32) {
	s.sequence++
	s.pending = append(s.pending, scheduledEvent{frame: frame, sequence: s.sequence, short: packed})
}

// ScheduleSysex queues a raw SysEx byte slice for frame.
func (s *Scheduler) ScheduleSysex(frame uint64, data []byte) {
	s.sequence++
	cp := append([]byte(nil), data...)
	s.pending = append(s.pending, scheduledEvent{frame: frame, sequence: s.sequence, isSysex: true, sysex: cp})
}

// PopDue removes and returns every event whose frame <= currentFrame, in
// FIFO arrival order (spec.md §5: "Within a single frame, MIDI events
// apply in MIDI arrival order").
func (s *Scheduler) PopDue(currentFrame uint64) []scheduledEvent {
	if len(s.pending) == 0 {
		return nil
	}
	due := make([]scheduledEvent, 0, len(s.pending))
	rest := s.pending[:0]
	for _, e := range s.pending {
		if e.frame <= currentFrame {
			due = append(due, e)
		} else {
			rest = append(rest, e)
		}
	}
	s.pending = rest
	// Stable ordering by (frame, sequence) within the due set.
	for i := 1; i < len(due); i++ {
		for j := i; j > 0; j-- {
			a, b := due[j-1], due[j]
			if a.frame < b.frame || (a.frame == b.frame && a.sequence <= b.sequence) {
				break
			}
			due[j-1], due[j] = due[j], due[j-1]
		}
	}
	return due
}

// Pending reports how many events remain queued, for tests.
func (s *Scheduler) Pending() int { return len(s.pending) }
