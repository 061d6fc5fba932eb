package audio

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// RenderFunc fills dst with exactly len(dst) freshly rendered frames. It is
// satisfied by (*synth.Synth).Render's stereo-frame form.
type RenderFunc func(dst []Frame)

// Pump is the optional producer/consumer wiring of spec.md §5: a renderer
// goroutine calls RenderFunc into block-sized chunks and writes them to a
// Ring; a Sink (already wired to the same Ring via Sink.Start) drains it
// independently. Pump owns only the renderer side's lifecycle.
//
// Grounded on the teacher's separation of SoundChip (producer-side DSP)
// from the oto backend (consumer-side pull), generalized into an explicit
// goroutine + errgroup so Stop can wait for clean shutdown instead of the
// teacher's fire-and-forget goroutines.
type Pump struct {
	ring      *Ring
	render    RenderFunc
	blockSize int

	onUnderrun    func(missedFrames uint64)
	seenUnderruns uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

// SetUnderrunFunc registers a diagnostic callback invoked from the
// renderer goroutine whenever the consumer has zero-filled frames since
// the last block (spec.md §7: RendererUnderrun is reported, never aborts
// the stream). Must be set before Start.
func (p *Pump) SetUnderrunFunc(f func(missedFrames uint64)) {
	p.onUnderrun = f
}

// NewPump builds a Pump that renders blockSize frames at a time into ring.
func NewPump(ring *Ring, render RenderFunc, blockSize int) *Pump {
	if blockSize <= 0 {
		blockSize = 256
	}
	return &Pump{ring: ring, render: render, blockSize: blockSize}
}

// Start begins the renderer goroutine. Calling Start twice without an
// intervening Stop is a programming error and panics, matching the
// teacher's single-owner goroutine lifecycle conventions.
func (p *Pump) Start(ctx context.Context) {
	if p.cancel != nil {
		panic("audio: Pump already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	p.group = g

	g.Go(func() error {
		buf := make([]Frame, p.blockSize)
		for {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			// Block-wait for space (spec.md §5: "the producer may
			// block-wait for buffer space"). A short poll interval
			// keeps termination latency low without a condvar wired
			// through the lock-free ring.
			for p.ring.FreeSpace() < p.blockSize {
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(time.Millisecond):
				}
			}
			p.render(buf)
			p.ring.Write(buf)

			if p.onUnderrun != nil {
				if u := p.ring.Underruns(); u > p.seenUnderruns {
					p.onUnderrun(u - p.seenUnderruns)
					p.seenUnderruns = u
				}
			}
		}
	})
}

// Stop signals the renderer to terminate at the next block boundary and
// waits for it to exit (spec.md §5: "close sets a termination flag
// observed by the renderer at block boundaries").
func (p *Pump) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	err := p.group.Wait()
	p.cancel = nil
	p.group = nil
	return err
}
