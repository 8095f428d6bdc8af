package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func newInitCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default stubforge.json",
		Long: `Write a default project file for the application in the current directory.

The file lists the sources to pack, the runtime settings embedded in every
binary and the platforms to build for. An existing file is only replaced
after confirmation.

Examples:
  stubforge init                  # Create stubforge.json
  stubforge init --app shop       # Name the binary "shop"
  stubforge init --force          # Overwrite without asking`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing project file without asking")

	return cmd
}

func (a *app) runInit(cmd *cobra.Command, force bool) error {
	path := a.v.GetString(config.KeyConfig)
	if path == "" {
		path = config.DefaultConfigFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(abs); err == nil && !force {
		ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
			fmt.Sprintf("%s already exists. Overwrite it? (y/N): ", path))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted, project file left unchanged.")
			return nil
		}
	}

	name := a.v.GetString(config.KeyName)
	if name == "" {
		name = projectName(filepath.Dir(abs))
	}

	project := config.DefaultProject(name)
	if entry := a.v.GetString(config.KeyEntrypoint); entry != "" {
		project.Entrypoint = entry
		project.Build.Files = []string{entry}
	}

	data, err := project.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFile, abs, "cannot write project file", err)
	}

	a.logger.Info(cmd.Context(), "project file written", "path", abs, "name", name)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s for %q\n", path, name)
	return nil
}

// projectName derives a binary name from the project directory.
func projectName(dir string) string {
	name := cases.Lower(language.Und).String(filepath.Base(dir))
	name = strings.Join(strings.Fields(name), "-")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "app"
	}
	return name
}

// confirm asks question and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprint(out, question)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read input: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
