package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/watcher"
	"github.com/conneroisu/stubforge/internal/workflow"
	"github.com/spf13/cobra"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		compile bool
		delay   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Repack when sources change",
		Long: `Watch the project tree and rerun pack (or compile with --compile) after
every burst of changes. The output and work directories are not watched.
The project file is reloaded before each run.

Examples:
  stubforge watch
  stubforge watch --compile --delay 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWatch(cmd, compile, delay)
		},
	}

	cmd.Flags().BoolVar(&compile, "compile", false, "assemble binaries after packing")
	cmd.Flags().DurationVar(&delay, "delay", 300*time.Millisecond, "quiet period before a rebuild starts")

	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, compile bool, delay time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	w, err := watcher.New(delay, a.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	w.Ignore(cfg.Temp, cfg.Output)
	w.AddFilter(watcher.SourceFilter)
	w.AddFilter(watcher.NoEditorTempFilter)
	if err := w.AddRecursive(cfg.Root); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.Root, err)
	}

	name := "pack"
	if compile {
		name = "compile"
	}

	build := func(ctx context.Context) {
		cfg, err := a.loadConfig(ctx)
		if err != nil {
			a.renderer(cmd.OutOrStdout()).Error(err)
			return
		}
		// Failures are already rendered; watching continues.
		_ = a.runWorkflow(cmd, name, func(ctx context.Context, r *engine.Runner) error {
			if compile {
				return workflow.Compile(ctx, r, cfg, workflow.Options{})
			}
			return workflow.Pack(ctx, r, cfg, workflow.Options{})
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", cfg.Root)
	build(ctx)

	err = w.Run(ctx, func(ctx context.Context, changes []watcher.Change) error {
		for _, c := range changes {
			a.logger.Debug(ctx, "source changed", "op", c.Op.String(), "path", c.Path)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) changed\n", len(changes))
		build(ctx)
		return nil
	})
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
