// Package cmd provides the stubforge command-line interface.
//
// Configuration is layered, highest priority first:
//  1. Command-line flags (--app, --entry, --box-version, --temp, ...)
//  2. STUBFORGE_<KEY> environment variables (STUBFORGE_BOX_VERSION, ...)
//  3. The project file: --config, STUBFORGE_CONFIG_FILE, or stubforge.json
//     in the working directory
//  4. Built-in defaults
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/logging"
	"github.com/conneroisu/stubforge/internal/render"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every command needs: the viper instance its flags are
// bound to and the invocation's logger.
type app struct {
	v      *viper.Viper
	logger logging.Logger
}

// reportedError marks an error already printed by the renderer.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), logger: logging.NopLogger{}}

	root := &cobra.Command{
		Use:   "stubforge",
		Short: "Package a PHP application into self-contained native binaries",
		Long: `stubforge packs a PHP application with Box and prepends a prebuilt static
runtime, producing one executable per target platform.

Quick Start:
  stubforge init                 Write a default stubforge.json
  stubforge pack                 Build the .phar payload
  stubforge compile              Pack and assemble binaries for every target
  stubforge editions             Show which runtime edition the project needs`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "project file (default is ./stubforge.json, can also use STUBFORGE_CONFIG_FILE)")
	pf.String("app", "", "application name, used for the binary name")
	pf.String("entry", "", "entrypoint relative to the project root")
	pf.String("box-version", config.DefaultBoxVersion, "Box packer version")
	pf.String("temp", "", "work directory for generated and downloaded files (default <root>/.stubforge)")
	pf.StringP("log-level", "l", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.BoolP("verbose", "v", false, "show debug steps")
	pf.Bool("no-color", false, "disable colored output")

	for key, flag := range map[string]string{
		config.KeyConfig:     "config",
		config.KeyName:       "app",
		config.KeyEntrypoint: "entry",
		config.KeyBoxVersion: "box-version",
		config.KeyTemp:       "temp",
		"log-level":          "log-level",
		"log-format":         "log-format",
		"verbose":            "verbose",
		"no-color":           "no-color",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		newInitCommand(a),
		newPackCommand(a),
		newCompileCommand(a),
		newWatchCommand(a),
		newEditionsCommand(a),
		newVersionCommand(a),
	)

	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		var reported reportedError
		if !stderrors.As(err, &reported) {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		}
		return 1
	}
	return 0
}

// initConfig wires environment variables and the logger. The project file
// itself is read by config.Load.
func (a *app) initConfig(cmd *cobra.Command) error {
	a.v.SetEnvPrefix("STUBFORGE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindEnv(config.KeyConfig, "STUBFORGE_CONFIG_FILE")

	runID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating run id: %w", err)
	}

	a.logger = logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(a.v.GetString("log-level")),
		Format: a.v.GetString("log-format"),
		Output: cmd.ErrOrStderr(),
	}).With("run_id", runID.String())

	return nil
}

// loadConfig resolves the build configuration.
func (a *app) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, err
	}
	a.logger.Debug(ctx, "configuration loaded",
		"root", cfg.Root, "config_file", cfg.ConfigFile, "targets", len(cfg.Targets))
	return cfg, nil
}

func (a *app) renderer(out io.Writer) *render.Renderer {
	colored := !a.v.GetBool("no-color") && color.SupportColor() && color.IsConsole(out)
	return render.New(out, render.Options{
		Verbose:     a.v.GetBool("verbose"),
		Color:       colored,
		Interactive: colored,
	})
}

// runWorkflow renders work's steps to the command output. Failures are
// printed once, with remediation, and returned as reported.
func (a *app) runWorkflow(cmd *cobra.Command, name string, work engine.WorkFunc) error {
	ctx := cmd.Context()
	perf := logging.StartOperation(a.logger, name)

	r := a.renderer(cmd.OutOrStdout())
	err := r.Consume(engine.Capture(ctx, name, work))
	perf.End(ctx, err)

	if err != nil {
		r.Error(err)
		return reportedError{err}
	}
	return nil
}
