package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// DefaultConfigFile is the project file looked up in the working directory.
const DefaultConfigFile = "stubforge.json"

// ProjectFile is the on-disk project configuration.
type ProjectFile struct {
	Name       string                   `json:"name"`
	Arch       []string                 `json:"arch"`
	Platform   []string                 `json:"platform"`
	Entrypoint string                   `json:"entrypoint"`
	Output     string                   `json:"output,omitempty"`
	Build      BuildSection             `json:"build"`
	INI        INI                      `json:"ini,omitempty"`
	Extensions []string                 `json:"extensions,omitempty"`
	Mount      []string                 `json:"mount,omitempty"`
	Targets    map[string]TargetSection `json:"targets,omitempty"`
}

// BuildSection lists what goes into the source payload.
type BuildSection struct {
	Files       []string        `json:"files,omitempty"`
	Directories []string        `json:"directories,omitempty"`
	Finder      []FinderSection `json:"finder,omitempty"`
}

// FinderSection selects files by directory and name patterns.
type FinderSection struct {
	Directory    StringList `json:"directory"`
	NotDirectory StringList `json:"not-directory,omitempty"`
	Name         StringList `json:"name,omitempty"`
	NotName      StringList `json:"not-name,omitempty"`
}

// TargetSection holds per-target overrides keyed "<platform>-<arch>".
type TargetSection struct {
	INI      INI    `json:"ini,omitempty"`
	Sfx      string `json:"sfx,omitempty"`
	Prebuilt string `json:"prebuilt,omitempty"`
}

// StringList accepts either a single string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or an array of strings")
	}
	*s = many
	return nil
}

// ReadProjectFile decodes the project file at path.
func ReadProjectFile(path string) (*ProjectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var project ProjectFile
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return &project, nil
}

// DefaultProject returns the project written by `stubforge init`.
func DefaultProject(name string) *ProjectFile {
	return &ProjectFile{
		Name:       name,
		Arch:       []string{HostArch()},
		Platform:   []string{HostPlatform()},
		Entrypoint: "index.php",
		Output:     "build",
		Build: BuildSection{
			Files: []string{"index.php"},
			Finder: []FinderSection{{
				Directory:    StringList{"src", "vendor"},
				NotDirectory: StringList{"tests"},
				Name:         StringList{"*.php"},
			}},
		},
		INI: INI{
			{Key: "memory_limit", Value: "128M"},
			{Key: "display_errors", Value: false},
		},
	}
}

// Encode renders the project file as indented JSON.
func (p *ProjectFile) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// HostPlatform maps runtime.GOOS to a platform name.
func HostPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	default:
		return PlatformLinux
	}
}

// HostArch maps runtime.GOARCH to an architecture name.
func HostArch() string {
	if runtime.GOARCH == "arm64" {
		return ArchAArch64
	}
	return ArchAMD64
}
