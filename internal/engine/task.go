package engine

import (
	"context"
	"errors"
)

// ErrStopped is returned by Run once the consumer of the step stream has
// stopped iterating. The task is not started.
var ErrStopped = errors.New("engine: step consumer stopped")

// Task is a unit of work producing a typed result. Inputs are carried by the
// implementing value; Run must not keep state between invocations.
type Task[T any] interface {
	Name() string
	Run(ctx context.Context, r *Runner) (T, error)
}

// Runner is the handle a task uses to report steps and to run child tasks.
type Runner struct {
	level   int
	context string
	sink    *sink
}

type sink struct {
	yield   func(Step) bool
	stopped bool
}

// NewRunner returns a root runner that passes every step to fn. A nil fn
// discards steps.
func NewRunner(context string, fn func(Step)) *Runner {
	return &Runner{
		context: context,
		sink: &sink{yield: func(s Step) bool {
			if fn != nil {
				fn(s)
			}
			return true
		}},
	}
}

// Level is the nesting depth of the running task; the root is 0.
func (r *Runner) Level() int { return r.level }

// Context is the identity of the running task.
func (r *Runner) Context() string { return r.context }

// Stopped reports whether the step consumer has gone away.
func (r *Runner) Stopped() bool { return r.sink.stopped }

// Info emits a KindInfo step.
func (r *Runner) Info(msg string, args ...any) { r.emit(KindInfo, msg, args) }

// Notify emits a KindNotify step.
func (r *Runner) Notify(msg string, args ...any) { r.emit(KindNotify, msg, args) }

// Message emits a KindMessage step.
func (r *Runner) Message(msg string, args ...any) { r.emit(KindMessage, msg, args) }

// Progress emits a KindProgress step.
func (r *Runner) Progress(msg string, args ...any) { r.emit(KindProgress, msg, args) }

func (r *Runner) emit(kind Kind, msg string, args []any) {
	if r.sink.stopped {
		return
	}
	step := Step{
		Kind:    kind,
		Level:   r.level,
		Context: r.context,
		Message: msg,
		Args:    args,
	}
	if !r.sink.yield(step) {
		r.sink.stopped = true
	}
}

// Run executes task one level below r and returns its result. Errors are
// returned unchanged.
func Run[T any](ctx context.Context, r *Runner, task Task[T]) (T, error) {
	if r.sink.stopped {
		var zero T
		return zero, ErrStopped
	}
	child := &Runner{
		level:   r.level + 1,
		context: task.Name(),
		sink:    r.sink,
	}
	return task.Run(ctx, child)
}

type funcTask[T any] struct {
	name string
	fn   func(ctx context.Context, r *Runner) (T, error)
}

func (t funcTask[T]) Name() string { return t.name }

func (t funcTask[T]) Run(ctx context.Context, r *Runner) (T, error) {
	return t.fn(ctx, r)
}

// Func adapts a function to a Task.
func Func[T any](name string, fn func(ctx context.Context, r *Runner) (T, error)) Task[T] {
	return funcTask[T]{name: name, fn: fn}
}

// Do runs a task that produces no result.
func Do(ctx context.Context, r *Runner, name string, fn func(ctx context.Context, r *Runner) error) error {
	_, err := Run(ctx, r, Func(name, func(ctx context.Context, r *Runner) (struct{}, error) {
		return struct{}{}, fn(ctx, r)
	}))
	return err
}
