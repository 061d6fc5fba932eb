package report

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LogSink backs Sink with a leveled, subsystem-tagged logger. Debug-level
// events are coalesced: repeated identical text within one second produces
// at most one log line, per spec.md §7 ("Debug-level events are coalesced").
type LogSink struct {
	logger *log.Logger

	mu       sync.Mutex
	lastText string
	lastAt   time.Time
}

// NewLogSink builds a LogSink writing to w (os.Stderr is the usual choice).
// Pass io.Discard to silence output while still exercising the coalescing
// logic in tests.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{
		logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Prefix:          "mt32",
		}),
	}
}

const coalesceWindow = time.Second

func (s *LogSink) Report(e Event) {
	if e.Kind == DebugMessage {
		s.mu.Lock()
		now := time.Now()
		if e.Text == s.lastText && now.Sub(s.lastAt) < coalesceWindow {
			s.mu.Unlock()
			return
		}
		s.lastText = e.Text
		s.lastAt = now
		s.mu.Unlock()
		s.logger.Debug(e.Text)
		return
	}

	switch e.Kind {
	case ControlROMError:
		s.logger.Error("control ROM load failed", "err", e.Err)
	case PCMROMError:
		s.logger.Error("PCM ROM load failed", "err", e.Err)
	case LCDMessage:
		s.logger.Info("LCD", "text", e.Text)
	case ReverbModeChanged:
		s.logger.Info("reverb mode changed", "mode", e.Int)
	case ReverbTimeChanged:
		s.logger.Info("reverb time changed", "time", e.Int)
	case ReverbLevelChanged:
		s.logger.Info("reverb level changed", "level", e.Int)
	default:
		s.logger.Warn("unrecognised report event", "kind", e.Kind)
	}
}
