package engine

import (
	"context"
	"iter"
)

// WorkFunc is the outermost unit of work wrapped by Capture.
type WorkFunc func(ctx context.Context, r *Runner) error

// Stream is a single-use, lazily produced sequence of steps.
type Stream struct {
	ctx      context.Context
	name     string
	work     WorkFunc
	err      error
	consumed bool
}

// Capture wraps work so that every step emitted by it, or by any task it
// runs, is yielded by the returned stream in execution order. Nothing runs
// until the stream is iterated.
func Capture(ctx context.Context, name string, work WorkFunc) *Stream {
	return &Stream{ctx: ctx, name: name, work: work}
}

// Steps returns the step iterator. The work runs inside the iteration;
// breaking out of the range makes every subsequent Run return ErrStopped.
// The iterator yields nothing after its first use.
func (s *Stream) Steps() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		if s.consumed {
			return
		}
		s.consumed = true

		root := &Runner{
			context: s.name,
			sink:    &sink{yield: yield},
		}
		s.err = s.work(s.ctx, root)
	}
}

// Err returns the error produced by the work once iteration has finished.
func (s *Stream) Err() error {
	return s.err
}

// Collect drains the stream into a slice.
func (s *Stream) Collect() ([]Step, error) {
	var steps []Step
	for step := range s.Steps() {
		steps = append(steps, step)
	}
	return steps, s.err
}
