// Package validation provides checks applied to user-supplied paths, URLs and
// subprocess arguments before they reach the file system, the network or
// exec.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// shellMeta are characters that have no business in an argument passed to the
// packer.
var shellMeta = []string{";", "&", "|", "$", "`", "<", ">", "\n", "\r", "\x00"}

// ValidateArgument validates a subprocess argument.
func ValidateArgument(arg string) error {
	for _, char := range shellMeta {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}
	return nil
}

// ValidatePathArgument validates a file path passed to a subprocess without a
// shell. Only characters that would split or truncate the argument are
// rejected.
func ValidatePathArgument(arg string) error {
	if arg == "" {
		return fmt.Errorf("path argument cannot be empty")
	}
	if strings.ContainsAny(arg, "\x00\n\r") {
		return fmt.Errorf("path argument contains a control character: %q", arg)
	}
	return nil
}

// ValidateCommand validates a command name against an allowlist. Either the
// bare name or the base name of a path must be allowed.
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	name := strings.TrimSuffix(filepath.Base(command), ".exe")
	if !allowedCommands[command] && !allowedCommands[name] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	return nil
}

// ValidateRelativePath validates a project-relative path: it must be
// non-empty, relative and must not escape the project root.
func ValidateRelativePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if filepath.IsAbs(path) {
		return fmt.Errorf("path must be relative to the project root: %s", path)
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	if strings.ContainsAny(path, "\x00\n\r") {
		return fmt.Errorf("path contains control characters: %q", path)
	}

	return nil
}

// ValidateFileName validates a bare file name such as the application name
// used for the produced binary.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(name, `/\:*?"<>|`+"\x00") {
		return fmt.Errorf("name contains characters not allowed in file names: %q", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be %q", name)
	}
	return nil
}
