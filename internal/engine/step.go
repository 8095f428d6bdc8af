// Package engine runs build tasks and exposes everything they report as a
// lazily produced stream of Steps.
//
// Tasks execute strictly sequentially on the caller's goroutine. A Task may
// run child tasks through Run, which increases the nesting level used for
// indentation; the level never affects scheduling. Capture wraps a unit of
// work and returns a Stream whose Steps iterator executes the work while the
// consumer ranges over it, so a renderer prints steps as they occur.
package engine

import "fmt"

// Kind classifies a Step.
type Kind int

const (
	// KindInfo announces a new major unit of work.
	KindInfo Kind = iota
	// KindNotify reports a detail of the current unit of work.
	KindNotify
	// KindMessage is a debug annotation.
	KindMessage
	// KindProgress is a repeatable tick; consecutive ticks with the same
	// context replace each other.
	KindProgress
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindNotify:
		return "notify"
	case KindMessage:
		return "message"
	case KindProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Step is one record emitted while a task runs.
type Step struct {
	Kind    Kind
	Level   int
	Context string
	Message string
	Args    []any
}

// Text returns the message with its arguments applied.
func (s Step) Text() string {
	if len(s.Args) == 0 {
		return s.Message
	}
	return fmt.Sprintf(s.Message, s.Args...)
}
