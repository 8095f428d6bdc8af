package descriptor

import (
	_ "embed"
	"strings"

	"github.com/conneroisu/stubforge/internal/config"
)

//go:embed entrypoint.php.tmpl
var entrypointTemplate string

// BuildEntrypointStub renders the entrypoint stub for cfg.
func BuildEntrypointStub(cfg *config.Config) string {
	return strings.NewReplacer(
		"{{APP_NAME}}", phpEscape(cfg.Name),
		"{{ENTRYPOINT}}", phpEscape(filepathToSlash(cfg.Entrypoint)),
		"{{MOUNTS}}", phpArray(cfg.Mounts),
	).Replace(entrypointTemplate)
}

// phpArray renders items as a PHP array literal of single-quoted strings.
func phpArray(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + phpEscape(filepathToSlash(item)) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// phpEscape escapes s for a single-quoted PHP string.
func phpEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
