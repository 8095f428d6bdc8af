package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/stubforge/internal/edition"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type editionRow struct {
	Name         string   `json:"name" yaml:"name"`
	Capabilities int      `json:"capabilities" yaml:"capabilities"`
	Missing      []string `json:"missing" yaml:"missing"`
	Selected     bool     `json:"selected" yaml:"selected"`
}

type editionsReport struct {
	Required []string     `json:"required" yaml:"required"`
	Selected string       `json:"selected,omitempty" yaml:"selected,omitempty"`
	Missing  []string     `json:"missing,omitempty" yaml:"missing,omitempty"`
	Editions []editionRow `json:"editions" yaml:"editions"`
}

func newEditionsCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "editions",
		Short: "Show which runtime edition the project needs",
		Long: `List the runtime editions and the extensions each one lacks for this
project. The first edition that provides every required extension is the
one compile downloads.

Examples:
  stubforge editions
  stubforge editions --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(output, formatTable, formatJSON, formatYAML); err != nil {
				return err
			}

			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			report := buildEditionsReport(edition.Default, edition.Required(cfg.Capabilities))
			if output == formatTable {
				return writeEditionsTable(cmd.OutOrStdout(), report)
			}
			return writeStructured(cmd.OutOrStdout(), output, report)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table, json, yaml)")

	return cmd
}

func buildEditionsReport(reg edition.Registry, required []string) editionsReport {
	report := editionsReport{Required: required}

	selected, err := reg.Select(required)
	if err == nil {
		report.Selected = selected.Name
	} else {
		var e *errors.Error
		if stderrors.As(err, &e) {
			report.Missing, _ = e.Context["missing"].([]string)
		}
	}

	for _, ed := range reg {
		row := editionRow{
			Name:         ed.Name,
			Capabilities: len(ed.Capabilities),
			Missing:      []string{},
			Selected:     ed.Name == report.Selected,
		}
		for _, c := range required {
			if !ed.Has(c) {
				row.Missing = append(row.Missing, c)
			}
		}
		report.Editions = append(report.Editions, row)
	}

	return report
}

func writeEditionsTable(out io.Writer, report editionsReport) error {
	fmt.Fprintf(out, "Required: %s\n\n", strings.Join(report.Required, ", "))

	title := cases.Title(language.English)
	headers := []string{"edition", "extensions", "missing", "selected"}
	for i, h := range headers {
		headers[i] = title.String(h)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range report.Editions {
		missing := "-"
		if len(row.Missing) > 0 {
			missing = strings.Join(row.Missing, ", ")
		}
		mark := ""
		if row.Selected {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", row.Name, row.Capabilities, missing, mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if report.Selected == "" {
		fmt.Fprintf(out, "\nNo edition provides: %s\n", strings.Join(report.Missing, ", "))
	}
	return nil
}
