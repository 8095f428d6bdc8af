package packer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
)

// DefaultPollInterval gives roughly three progress ticks per second.
const DefaultPollInterval = 333 * time.Millisecond

var glyphs = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// PackTask runs the packer and waits for it, reporting progress while it
// runs. Its result is the total time spent.
type PackTask struct {
	Packager       Packager
	DescriptorPath string
	PayloadPath    string
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
}

// Name implements engine.Task.
func (t *PackTask) Name() string { return "packer" }

// Run implements engine.Task.
func (t *PackTask) Run(ctx context.Context, r *engine.Runner) (time.Duration, error) {
	interval := t.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	start := time.Now()
	r.Info("Packing %s", filepath.Base(t.PayloadPath))

	proc, err := t.Packager.Pack(ctx, t.DescriptorPath)
	if err != nil {
		return 0, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

poll:
	for i := 0; !proc.Exited(); i++ {
		r.Progress("%s packing (%s)", glyphs[i%len(glyphs)], time.Since(start).Round(time.Second))
		select {
		case <-ticker.C:
		case <-ctx.Done():
			break poll
		}
	}

	code, output, err := proc.Wait()
	if err != nil {
		return 0, errors.NewProcessError(errors.ErrCodePackFailed, "packer did not complete", err).
			WithPath(t.DescriptorPath)
	}
	if code != 0 {
		msg := errors.NewOutputParser().Extract(output)
		if msg == "" {
			msg = fmt.Sprintf("packer exited with status %d", code)
		}
		return 0, errors.NewProcessError(errors.ErrCodePackFailed, msg, nil).
			WithPath(t.DescriptorPath).
			WithContext("exit_code", code)
	}

	elapsed := time.Since(start)
	r.Notify("Packed %s in %s", filepath.Base(t.PayloadPath), elapsed.Round(time.Millisecond))
	return elapsed, nil
}
