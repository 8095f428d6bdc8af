// Package version reports the stubforge build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time with -ldflags "-X github.com/conneroisu/stubforge/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version    string    `json:"version" yaml:"version"`
	GitCommit  string    `json:"git_commit" yaml:"git_commit"`
	BuildTime  time.Time `json:"build_time,omitzero" yaml:"build_time,omitempty"`
	GoVersion  string    `json:"go_version" yaml:"go_version"`
	Platform   string    `json:"platform" yaml:"platform"`
	BoxVersion string    `json:"box_version" yaml:"box_version"`
}

// Get returns the build information. boxVersion is the packer version the
// current configuration resolves to.
func Get(boxVersion string) Info {
	return Info{
		Version:    resolveVersion(),
		GitCommit:  resolveCommit(),
		BuildTime:  parseBuildTime(BuildTime),
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		BoxVersion: boxVersion,
	}
}

// Short returns "<version> (<commit>)" or just the version.
func (i Info) Short() string {
	if len(i.GitCommit) >= 7 && i.GitCommit != "unknown" {
		return fmt.Sprintf("%s (%s)", i.Version, i.GitCommit[:7])
	}
	return i.Version
}

func resolveVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func resolveCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "unknown"
}

func parseBuildTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
