package cmd

import (
	"context"

	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/workflow"
	"github.com/spf13/cobra"
)

func newPackCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pack",
		Short: "Build the .phar payload with Box",
		Long: `Regenerate box.json and the entrypoint stub when the project file changed,
download Box if needed and pack the application sources into the payload.

Examples:
  stubforge pack
  stubforge pack --box-version 4.6.6 --temp /tmp/stubforge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			return a.runWorkflow(cmd, "pack", func(ctx context.Context, r *engine.Runner) error {
				return workflow.Pack(ctx, r, cfg, workflow.Options{})
			})
		},
	}
}
