package cmd

import (
	"context"

	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/workflow"
	"github.com/spf13/cobra"
)

func newCompileCommand(a *app) *cobra.Command {
	var noPack bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Assemble native binaries for every target",
		Long: `Pack the application (unless --no-pack) and assemble one binary per
platform and architecture in the project file. Each target's output
directory is cleared first; the build stops at the first failing target.

Examples:
  stubforge compile
  stubforge compile --no-pack     # Reuse the existing payload`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			return a.runWorkflow(cmd, "compile", func(ctx context.Context, r *engine.Runner) error {
				return workflow.Compile(ctx, r, cfg, workflow.Options{NoPack: noPack})
			})
		},
	}

	cmd.Flags().BoolVar(&noPack, "no-pack", false, "reuse the existing payload instead of packing")

	return cmd
}
