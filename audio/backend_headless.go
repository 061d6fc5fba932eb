//go:build headless

// backend_headless.go - no-op audio backend for headless builds and CI,
// mirroring audio_backend_headless.go's build-tag pairing with the oto
// backend (IntuitionAmiga-IntuitionEngine).
package audio

type OtoSink struct {
	started bool
}

func NewOtoSink(sampleRate int) (*OtoSink, error) {
	return &OtoSink{}, nil
}

func (s *OtoSink) Start(ring *Ring, sampleRate int) error {
	s.started = true
	return nil
}

func (s *OtoSink) Stop() {
	s.started = false
}

func (s *OtoSink) Close() error {
	s.started = false
	return nil
}
