// Command mt32play is a minimal example driver: it opens a control/PCM
// ROM pair, feeds short MIDI messages typed at stdin in "key velocity"
// pairs on channel 0, and streams the result to the OS mixer. It is not a
// front end — no sequencer, no GUI, no SysEx tooling beyond what Synth
// already exposes — analogous in scope to the teacher's small
// cmd/ie32to64 conversion tool.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/retrosynth/mt32emu-go/audio"
	"github.com/retrosynth/mt32emu-go/midi"
	"github.com/retrosynth/mt32emu-go/report"
	"github.com/retrosynth/mt32emu-go/synth"
	"github.com/spf13/pflag"
)

func main() {
	controlPath := pflag.StringP("control-rom", "c", "", "Path to the control ROM image (required)")
	pcmPath := pflag.StringP("pcm-rom", "p", "", "Path to the PCM ROM image (required)")
	partials := pflag.IntP("partials", "n", 32, "Partial pool size")
	acceptUnknown := pflag.Bool("accept-unknown-rom", false, "Accept ROM images with an unrecognised digest")
	analogMode := pflag.StringP("analog-mode", "a", "digital", "Output mode: digital, coarse, accurate, oversampled")
	cooperative := pflag.Bool("cooperative", false, "Render synchronously instead of via the background producer/consumer pump")
	blockSize := pflag.Int("block-size", 256, "Frames rendered per producer/consumer block")
	help := pflag.Bool("help", false, "Display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mt32play -c control.rom -p pcm.rom [options]\n\n")
		fmt.Fprintf(os.Stderr, "Reads \"key velocity\" pairs from stdin, one per line, plays them on\nchannel 0, and exits on EOF or Ctrl-C.\n\nOptions:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || *controlPath == "" || *pcmPath == "" {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	mode, err := parseAnalogMode(*analogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sink := report.NewLogSink(os.Stderr)

	ctrlData, err := os.ReadFile(*controlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	pcmData, err := os.ReadFile(*pcmPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	eng, err := synth.Open(synth.Config{
		ControlROM:    ctrlData,
		PCMROM:        pcmData,
		PartialCount:  *partials,
		AcceptUnknown: *acceptUnknown,
		AnalogMode:    mode,
		Sink:          sink,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open synth: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *cooperative {
		runCooperative(ctx, eng, mode)
	} else {
		runPumped(ctx, eng, sink, mode, *blockSize)
	}
}

func parseAnalogMode(s string) (audio.AnalogOutputMode, error) {
	switch strings.ToLower(s) {
	case "digital":
		return audio.DigitalOnly, nil
	case "coarse":
		return audio.Coarse, nil
	case "accurate":
		return audio.Accurate, nil
	case "oversampled":
		return audio.Oversampled, nil
	default:
		return 0, fmt.Errorf("unrecognised analog mode %q", s)
	}
}

// runPumped wires the producer/consumer path: a Pump goroutine renders
// into a Ring, an OtoSink drains it independently (spec.md §5).
func runPumped(ctx context.Context, eng *synth.Synth, sink report.Sink, mode audio.AnalogOutputMode, blockSize int) {
	ring := audio.NewRing(blockSize * 8)
	resampler := audio.NewResampler(mode)

	// The resampler can produce more output frames per native block than
	// the pump asks for in one call; pending carries the overflow so no
	// frame is ever dropped between blocks.
	var pending []audio.Frame
	render := func(dst []audio.Frame) {
		for {
			n := copy(dst, pending)
			pending = pending[n:]
			dst = dst[n:]
			if len(dst) == 0 {
				return
			}
			native := make([]audio.Frame, 256)
			eng.Render(native)
			out := make([]audio.Frame, 3*len(native)+8)
			m := resampler.Process(native, out)
			pending = out[:m]
		}
	}
	pump := audio.NewPump(ring, render, blockSize)
	pump.SetUnderrunFunc(func(missed uint64) {
		sink.Report(report.Debug("audio underrun: %d frames zero-filled", missed))
	})
	pump.Start(ctx)
	defer pump.Stop()

	audioSink, err := audio.NewOtoSink(mode.SampleRate())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open audio sink: %v\n", err)
		return
	}
	defer audioSink.Close()
	if err := audioSink.Start(ring, mode.SampleRate()); err != nil {
		fmt.Fprintf(os.Stderr, "error: start audio sink: %v\n", err)
		return
	}
	defer audioSink.Stop()

	readNotes(ctx, eng)
}

// runCooperative renders synchronously on the calling goroutine between
// reading each note, with no background pump — the "no producer/consumer
// split" mode spec.md §5 allows for single-threaded embedders.
func runCooperative(ctx context.Context, eng *synth.Synth, mode audio.AnalogOutputMode) {
	sink, err := audio.NewOtoSink(mode.SampleRate())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open audio sink: %v\n", err)
		return
	}
	defer sink.Close()

	ring := audio.NewRing(4096)
	if err := sink.Start(ring, mode.SampleRate()); err != nil {
		fmt.Fprintf(os.Stderr, "error: start audio sink: %v\n", err)
		return
	}
	defer sink.Stop()

	resampler := audio.NewResampler(mode)
	native := make([]audio.Frame, 256)
	out := make([]audio.Frame, 3*256+8)
	done := make(chan struct{})
	go func() {
		readNotes(ctx, eng)
		close(done)
	}()
	for {
		select {
		case <-done:
			return
		default:
		}
		eng.Render(native)
		n := resampler.Process(native, out)
		for ring.FreeSpace() < n {
			select {
			case <-done:
				return
			case <-time.After(time.Millisecond):
			}
		}
		ring.Write(out[:n])
	}
}

// readNotes parses "key velocity" lines from stdin until EOF or ctx is
// cancelled, dispatching each as an immediate (unscheduled) note-on
// followed by a note-off on the next line.
func readNotes(ctx context.Context, eng *synth.Synth) {
	scanner := bufio.NewScanner(os.Stdin)
	var lastKey uint8
	hasLast := false
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		key, err1 := strconv.Atoi(fields[0])
		vel, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil || key < 0 || key > 127 || vel < 0 || vel > 127 {
			continue
		}
		if hasLast {
			off := midi.EncodeShort(midi.ShortMessage{Status: 0x80, Data1: lastKey, Data2: 0})
			eng.PlayMsg(off, nil)
		}
		on := midi.EncodeShort(midi.ShortMessage{Status: 0x90, Data1: uint8(key), Data2: uint8(vel)})
		eng.PlayMsg(on, nil)
		lastKey, hasLast = uint8(key), true
	}
}
