//go:build !headless

// backend_oto.go - oto/v3 real-time audio backend.
//
// Grounded on audio_backend_oto.go (IntuitionAmiga-IntuitionEngine): same
// pull-model Read([]byte), same atomic handoff of the thing being read
// from, same Start/Stop/Close/IsStarted surface — generalized from a
// single *SoundChip to the shared Ring so the backend has no synthesis
// knowledge at all.
package audio

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// OtoSink streams Ring frames to the OS mixer via oto.
type OtoSink struct {
	ctx    *oto.Context
	player *oto.Player

	ring      atomic.Pointer[Ring]
	sampleBuf []Frame

	mu      sync.Mutex
	started bool
}

// NewOtoSink constructs an oto context at sampleRate. The context is
// created eagerly so Start/Stop can be cheap; Close releases it.
func NewOtoSink(sampleRate int) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   0,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready
	return &OtoSink{ctx: ctx}, nil
}

// Read implements io.Reader for oto.Player: it drains the Ring,
// zero-filling on underrun per spec.md §5.
func (s *OtoSink) Read(p []byte) (int, error) {
	r := s.ring.Load()
	if r == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := len(p) / 4 // 4 bytes per stereo int16 frame
	if cap(s.sampleBuf) < n {
		s.sampleBuf = make([]Frame, n)
	}
	frames := s.sampleBuf[:n]
	r.ReadOrZero(frames)

	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&frames[0]))[:n*4])
	return n * 4, nil
}

func (s *OtoSink) Start(ring *Ring, sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring.Store(ring)
	if s.player == nil {
		s.player = s.ctx.NewPlayer(s)
	}
	if !s.started {
		s.player.Play()
		s.started = true
	}
	return nil
}

func (s *OtoSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started && s.player != nil {
		s.player.Pause()
		s.started = false
	}
}

func (s *OtoSink) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		err := s.player.Close()
		s.player = nil
		return err
	}
	return nil
}
