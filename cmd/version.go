package cmd

import (
	"fmt"

	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand(a *app) *cobra.Command {
	var (
		format string
		short  bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version information for stubforge including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Host platform (OS/architecture)
- Box packer version in use

Examples:
  stubforge version                # Show version
  stubforge version --short        # Version number only
  stubforge version --format json  # Output as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format, formatText, formatJSON, formatYAML); err != nil {
				return err
			}

			boxVersion := a.v.GetString(config.KeyBoxVersion)
			if boxVersion == "" {
				boxVersion = config.DefaultBoxVersion
			}
			info := version.Get(boxVersion)
			out := cmd.OutOrStdout()

			if format != formatText {
				return writeStructured(out, format, info)
			}

			if short {
				fmt.Fprintln(out, info.Version)
				return nil
			}

			fmt.Fprintf(out, "stubforge %s\n", info.Short())
			if !info.BuildTime.IsZero() {
				fmt.Fprintf(out, "Built: %s\n", info.BuildTime.UTC().Format("2006-01-02 15:04:05 UTC"))
			}
			fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
			fmt.Fprintf(out, "Platform: %s\n", info.Platform)
			fmt.Fprintf(out, "Box: %s\n", info.BoxVersion)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&short, "short", false, "show the version number only")

	return cmd
}
