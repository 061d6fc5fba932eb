// Package report carries structured diagnostic events out of the synthesis
// core. It is deliberately not a logging stream: callers that want no
// logging at all can still implement Sink and inspect events directly.
package report

import "fmt"

// Kind identifies the shape of an Event without resorting to a type switch
// on a dozen concrete struct types.
type Kind int

const (
	ControlROMError Kind = iota
	PCMROMError
	LCDMessage
	ReverbModeChanged
	ReverbTimeChanged
	ReverbLevelChanged
	DebugMessage
)

func (k Kind) String() string {
	switch k {
	case ControlROMError:
		return "ControlROMError"
	case PCMROMError:
		return "PCMROMError"
	case LCDMessage:
		return "LCDMessage"
	case ReverbModeChanged:
		return "ReverbModeChanged"
	case ReverbTimeChanged:
		return "ReverbTimeChanged"
	case ReverbLevelChanged:
		return "ReverbLevelChanged"
	case DebugMessage:
		return "DebugMessage"
	default:
		return "Unknown"
	}
}

// Event is a single report. Only the field relevant to Kind is populated;
// the rest are zero. This mirrors a tagged union without needing a dozen
// concrete event types threaded through the whole engine.
type Event struct {
	Kind   Kind
	Text   string // LCDMessage, DebugMessage
	Int    int    // ReverbModeChanged, ReverbTimeChanged, ReverbLevelChanged
	Err    error  // ControlROMError, PCMROMError
}

func (e Event) String() string {
	switch e.Kind {
	case ControlROMError, PCMROMError:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case LCDMessage, DebugMessage:
		return fmt.Sprintf("%s: %s", e.Kind, e.Text)
	case ReverbModeChanged, ReverbTimeChanged, ReverbLevelChanged:
		return fmt.Sprintf("%s: %d", e.Kind, e.Int)
	default:
		return e.Kind.String()
	}
}

// Sink receives report events. Implementations must not block the caller
// for long: Report is called from the audio render path for some event
// kinds (RendererUnderrun, SysexChecksumInvalid) and a slow sink would
// stall synthesis.
type Sink interface {
	Report(e Event)
}

// Discard is a Sink that drops every event. Useful as a default when the
// caller has not wired anything up yet.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Report(Event) {}

func LCD(text string) Event             { return Event{Kind: LCDMessage, Text: text} }
func Debug(format string, a ...any) Event {
	return Event{Kind: DebugMessage, Text: fmt.Sprintf(format, a...)}
}
func ControlError(err error) Event { return Event{Kind: ControlROMError, Err: err} }
func PCMError(err error) Event     { return Event{Kind: PCMROMError, Err: err} }
func ReverbMode(mode int) Event    { return Event{Kind: ReverbModeChanged, Int: mode} }
func ReverbTime(t int) Event       { return Event{Kind: ReverbTimeChanged, Int: t} }
func ReverbLevel(l int) Event      { return Event{Kind: ReverbLevelChanged, Int: l} }
