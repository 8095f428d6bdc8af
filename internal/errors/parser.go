package errors

import (
	"regexp"
	"strings"
)

// outputPattern extracts a concise message from external tool output. It
// returns the message and true when it matched.
type outputPattern struct {
	name    string
	extract func(lines []string) (string, bool)
}

// OutputParser reduces noisy tool stderr to the single line that explains a
// failure. Patterns are tried in order; the first match wins.
type OutputParser struct {
	patterns []outputPattern
}

var (
	errorLineRegex  = regexp.MustCompile(`^\s*\[ERROR\]\s*(.+?)\s*$`)
	exceptionMarker = regexp.MustCompile(`^\s*In \S+ line \d+:\s*$`)
)

// NewOutputParser creates a parser for packer output.
func NewOutputParser() *OutputParser {
	return &OutputParser{
		patterns: []outputPattern{
			{name: "error-line", extract: extractErrorLine},
			{name: "exception-marker", extract: extractAfterMarker},
		},
	}
}

// Extract returns the best available message for output. When no pattern
// matches, the trimmed output itself is returned.
func (p *OutputParser) Extract(output string) string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	for _, pattern := range p.patterns {
		if msg, ok := pattern.extract(lines); ok {
			return msg
		}
	}

	return strings.TrimSpace(output)
}

func extractErrorLine(lines []string) (string, bool) {
	for _, line := range lines {
		if m := errorLineRegex.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// extractAfterMarker returns the first non-blank line following an
// "In File.php line N:" header.
func extractAfterMarker(lines []string) (string, bool) {
	for i, line := range lines {
		if !exceptionMarker.MatchString(line) {
			continue
		}
		for _, next := range lines[i+1:] {
			if trimmed := strings.TrimSpace(next); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}
