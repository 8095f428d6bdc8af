package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countTask struct {
	name  string
	n     int
	child Task[int]
}

func (t countTask) Name() string { return t.name }

func (t countTask) Run(ctx context.Context, r *Runner) (int, error) {
	r.Info("start %s", t.name)
	total := t.n
	if t.child != nil {
		v, err := Run(ctx, r, t.child)
		if err != nil {
			return 0, err
		}
		total += v
	}
	r.Notify("done")
	return total, nil
}

func TestStepText(t *testing.T) {
	assert.Equal(t, "plain %s", Step{Message: "plain %s"}.Text())
	assert.Equal(t, "copied 3 files", Step{Message: "copied %d files", Args: []any{3}}.Text())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "info", KindInfo.String())
	assert.Equal(t, "notify", KindNotify.String())
	assert.Equal(t, "message", KindMessage.String())
	assert.Equal(t, "progress", KindProgress.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestCaptureYieldsNestedStepsInCallOrder(t *testing.T) {
	task := countTask{name: "outer", n: 1, child: countTask{name: "inner", n: 2}}

	var result int
	stream := Capture(context.Background(), "workflow", func(ctx context.Context, r *Runner) error {
		r.Info("begin")
		v, err := Run(ctx, r, Task[int](task))
		result = v
		return err
	})

	steps, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, 3, result)

	type rec struct {
		kind  Kind
		level int
		ctx   string
		text  string
	}
	var got []rec
	for _, s := range steps {
		got = append(got, rec{s.Kind, s.Level, s.Context, s.Text()})
	}

	assert.Equal(t, []rec{
		{KindInfo, 0, "workflow", "begin"},
		{KindInfo, 1, "outer", "start outer"},
		{KindInfo, 2, "inner", "start inner"},
		{KindNotify, 2, "inner", "done"},
		{KindNotify, 1, "outer", "done"},
	}, got)
}

func TestSiblingsShareLevel(t *testing.T) {
	stream := Capture(context.Background(), "wf", func(ctx context.Context, r *Runner) error {
		if err := Do(ctx, r, "a", func(_ context.Context, r *Runner) error { r.Notify("a"); return nil }); err != nil {
			return err
		}
		return Do(ctx, r, "b", func(_ context.Context, r *Runner) error { r.Notify("b"); return nil })
	})

	steps, err := stream.Collect()
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, steps[0].Level, steps[1].Level)
	assert.Equal(t, "a", steps[0].Context)
	assert.Equal(t, "b", steps[1].Context)
}

func TestCaptureIsLazy(t *testing.T) {
	ran := false
	stream := Capture(context.Background(), "wf", func(ctx context.Context, r *Runner) error {
		ran = true
		return nil
	})
	assert.False(t, ran)

	for range stream.Steps() {
	}
	assert.True(t, ran)
}

func TestStepsInterleaveWithConsumer(t *testing.T) {
	var trace []string
	stream := Capture(context.Background(), "wf", func(ctx context.Context, r *Runner) error {
		trace = append(trace, "work:1")
		r.Info("one")
		trace = append(trace, "work:2")
		r.Info("two")
		return nil
	})

	for step := range stream.Steps() {
		trace = append(trace, "render:"+step.Text())
	}

	assert.Equal(t, []string{"work:1", "render:one", "work:2", "render:two"}, trace)
}

func TestErrorPropagatesUnchanged(t *testing.T) {
	sentinel := errors.New("disk full")
	stream := Capture(context.Background(), "wf", func(ctx context.Context, r *Runner) error {
		return Do(ctx, r, "outer", func(ctx context.Context, r *Runner) error {
			return Do(ctx, r, "inner", func(context.Context, *Runner) error { return sentinel })
		})
	})

	_, err := stream.Collect()
	assert.Same(t, sentinel, err)
}

func TestEarlyStopIsSafe(t *testing.T) {
	secondRan := false
	stream := Capture(context.Background(), "wf", func(ctx context.Context, r *Runner) error {
		if err := Do(ctx, r, "first", func(_ context.Context, r *Runner) error {
			r.Info("one")
			r.Info("two")
			return nil
		}); err != nil {
			return err
		}
		return Do(ctx, r, "second", func(context.Context, *Runner) error {
			secondRan = true
			return nil
		})
	})

	var seen []string
	for step := range stream.Steps() {
		seen = append(seen, step.Text())
		break
	}

	assert.Equal(t, []string{"one"}, seen)
	assert.False(t, secondRan)
	assert.ErrorIs(t, stream.Err(), ErrStopped)
}

func TestStreamIsSingleUse(t *testing.T) {
	calls := 0
	stream := Capture(context.Background(), "wf", func(ctx context.Context, r *Runner) error {
		calls++
		r.Info("x")
		return nil
	})

	first, _ := stream.Collect()
	second, _ := stream.Collect()
	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Equal(t, 1, calls)
}

func TestNewRunnerForwardsSteps(t *testing.T) {
	var got []Step
	r := NewRunner("root", func(s Step) { got = append(got, s) })
	r.Progress("%d bytes", 10)

	require.Len(t, got, 1)
	assert.Equal(t, KindProgress, got[0].Kind)
	assert.Equal(t, "root", got[0].Context)
	assert.Equal(t, "10 bytes", got[0].Text())

	assert.NotPanics(t, func() { NewRunner("nil", nil).Info("dropped") })
}
