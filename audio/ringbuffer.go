// Package audio implements the bounded SPSC frame ring between the
// synthesis renderer and the audio sink (spec.md §3, §5), the Sink
// backend abstraction, and the analog output resampler (spec.md §4.7).
//
// The ring buffer is grounded on audio_backend_oto.go's pull-model Read
// (IntuitionAmiga-IntuitionEngine), generalized from a single atomic chip
// pointer into a real bounded buffer with separate read/write cursors, per
// spec.md §9 ("replace with a documented SPSC ring buffer primitive whose
// contract the implementation must prove").
package audio

import "sync/atomic"

// Frame is one stereo sample pair at the internal 32 kHz rate.
type Frame struct {
	L, R int16
}

// Ring is a bounded single-producer/single-consumer ring of stereo
// frames. The renderer (producer) calls Write; the mixer callback
// (consumer) calls Read. Both may run on separate goroutines
// concurrently; neither blocks the other (spec.md §5: "consumers never
// block").
//
// Invariants (spec.md §3):
//   - the rendered-but-unplayed region is contiguous modulo len(buf)
//   - the consumer never reads the same frame twice
//   - the renderer never overwrites unplayed frames
//   - PlayedFrames is a strictly non-decreasing 64-bit counter
type Ring struct {
	buf []Frame

	writeCursor atomic.Uint64 // total frames ever written
	readCursor  atomic.Uint64 // total frames ever read

	underruns atomic.Uint64
}

// NewRing allocates a ring buffer holding capacity frames.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Ring{buf: make([]Frame, capacity)}
}

// Capacity returns the number of frames the ring can hold.
func (r *Ring) Capacity() int { return len(r.buf) }

// Available reports how many frames are pending for the consumer.
func (r *Ring) Available() int {
	return int(r.writeCursor.Load() - r.readCursor.Load())
}

// FreeSpace reports how many frames the producer may write without
// overwriting unplayed data.
func (r *Ring) FreeSpace() int {
	return len(r.buf) - r.Available()
}

// Write appends frames to the ring, blocking not at all: if there is
// insufficient free space the caller (the renderer) must wait via its own
// means (spec.md §5: "the producer may block-wait for buffer space in a
// condition variable"); Write here reports how many frames it could
// actually place so the caller can retry the remainder.
func (r *Ring) Write(frames []Frame) int {
	free := r.FreeSpace()
	n := len(frames)
	if n > free {
		n = free
	}
	base := r.writeCursor.Load()
	for i := 0; i < n; i++ {
		r.buf[(base+uint64(i))%uint64(len(r.buf))] = frames[i]
	}
	r.writeCursor.Add(uint64(n))
	return n
}

// Read drains up to len(dst) frames into dst, returning the number
// actually read. When fewer frames are available than requested, the
// remainder of dst is left untouched — callers needing zero-fill on
// underrun use ReadOrZero.
func (r *Ring) Read(dst []Frame) int {
	avail := r.Available()
	n := len(dst)
	if n > avail {
		n = avail
	}
	base := r.readCursor.Load()
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(base+uint64(i))%uint64(len(r.buf))]
	}
	r.readCursor.Add(uint64(n))
	return n
}

// ReadOrZero drains up to len(dst) frames, zero-filling any shortfall and
// bumping the underrun counter for the missing frames (spec.md §5, §7:
// RendererUnderrun). The ring has no notion of termination: a shortfall
// is counted as an underrun whether or not the producer has stopped.
func (r *Ring) ReadOrZero(dst []Frame) (read int, underran bool) {
	n := r.Read(dst)
	if n < len(dst) {
		for i := n; i < len(dst); i++ {
			dst[i] = Frame{}
		}
		r.underruns.Add(uint64(len(dst) - n))
		underran = true
	}
	return n, underran
}

// PlayedFrames is the strictly non-decreasing count of frames the
// consumer has read, i.e. the sample-time clock of spec.md §3.
func (r *Ring) PlayedFrames() uint64 { return r.readCursor.Load() }

// RenderedFrames is the strictly non-decreasing count of frames the
// producer has written.
func (r *Ring) RenderedFrames() uint64 { return r.writeCursor.Load() }

// Underruns is the cumulative count of zero-filled frames due to
// underrun.
func (r *Ring) Underruns() uint64 { return r.underruns.Load() }
