// Package config loads the immutable build configuration.
//
// Scalar options (name, entrypoint, output, temp, box-version, php, stub-url)
// are resolved through Viper, so command-line flags and STUBFORGE_*
// environment variables override the project file. Structured sections
// (build, ini, targets) are decoded straight from the project file JSON:
// runtime-setting keys contain dots and their order matters, neither of which
// survives Viper's key normalisation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/spf13/viper"
)

// Supported platforms and architectures.
const (
	PlatformLinux   = "linux"
	PlatformMacOS   = "macos"
	PlatformWindows = "windows"

	ArchAMD64   = "amd64"
	ArchAArch64 = "aarch64"
)

// Viper keys.
const (
	KeyConfig     = "config"
	KeyName       = "name"
	KeyEntrypoint = "entrypoint"
	KeyOutput     = "output"
	KeyTemp       = "temp"
	KeyBoxVersion = "box-version"
	KeyBoxURL     = "box-url"
	KeyPHP        = "php"
	KeyStubURL    = "stub-url"
	KeyPlatform   = "platform"
	KeyArch       = "arch"
	KeyExtensions = "extensions"
	KeyMount      = "mount"
)

// Defaults.
const (
	DefaultOutput     = "build"
	DefaultTemp       = ".stubforge"
	DefaultBoxVersion = "4.6.6"
	DefaultBoxURL     = "https://github.com/box-project/box/releases/download/%s/box.phar"
	DefaultPHP        = "php"
)

// InclusionKind tells which variant an Inclusion holds.
type InclusionKind int

const (
	InclusionFile InclusionKind = iota
	InclusionDirectory
	InclusionFinder
)

// Inclusion is one entry of the payload build list.
type Inclusion struct {
	Kind   InclusionKind
	Path   string
	Finder Finder
}

// Finder selects files below directories by name patterns.
type Finder struct {
	Directories    []string
	NotDirectories []string
	Names          []string
	NotNames       []string
}

// Target is one platform/architecture output.
type Target struct {
	Platform   string
	Arch       string
	OutputDir  string
	BinaryName string
	INI        INI
	// Stub is a custom runtime stub path; it bypasses edition selection.
	Stub string
	// Prebuilt is a vendor binary copied as-is instead of assembling one.
	Prebuilt string
}

// ID returns "<platform>-<arch>".
func (t Target) ID() string {
	return t.Platform + "-" + t.Arch
}

// BinaryPath is the final binary location.
func (t Target) BinaryPath() string {
	return filepath.Join(t.OutputDir, t.BinaryName)
}

// Config is the build configuration. It is created once per invocation and
// never modified.
type Config struct {
	// ConfigFile is the project file in use, empty when none exists.
	ConfigFile   string
	Root         string
	Name         string
	Entrypoint   string
	Output       string
	Temp         string
	BoxVersion   string
	BoxURL       string
	PHP          string
	StubURL      string
	Inclusions   []Inclusion
	INI          INI
	Capabilities []string
	Mounts       []string
	// Timestamp is the project file's modification time. Generated artifacts
	// older than it are rewritten.
	Timestamp time.Time
	Targets   []Target

	DescriptorPath string
	StubPath       string
	PayloadPath    string
}

// BoxPath is where the packer phar is cached.
func (c *Config) BoxPath() string {
	return filepath.Join(c.Temp, fmt.Sprintf("box-%s.phar", c.BoxVersion))
}

// BoxDownloadURL is where the packer phar is fetched from.
func (c *Config) BoxDownloadURL() string {
	return fmt.Sprintf(c.BoxURL, c.BoxVersion)
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyEntrypoint, "index.php")
	v.SetDefault(KeyOutput, DefaultOutput)
	v.SetDefault(KeyTemp, DefaultTemp)
	v.SetDefault(KeyBoxVersion, DefaultBoxVersion)
	v.SetDefault(KeyBoxURL, DefaultBoxURL)
	v.SetDefault(KeyPHP, DefaultPHP)
	v.SetDefault(KeyPlatform, []string{HostPlatform()})
	v.SetDefault(KeyArch, []string{HostArch()})
}

// Load resolves the configuration. The project file is v's "config" value
// when set (it must exist), otherwise stubforge.json in the working directory
// if present.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	path, explicit := v.GetString(KeyConfig), true
	if path == "" {
		path, explicit = DefaultConfigFile, false
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot resolve config path").WithPath(path)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeReadFile, ".", "cannot determine working directory", err)
	}

	cfg := &Config{
		Root:      cwd,
		Timestamp: time.Unix(0, 0),
	}
	project := &ProjectFile{}

	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && !info.IsDir():
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot read project file").WithPath(path)
		}
		project, err = ReadProjectFile(path)
		if err != nil {
			return nil, &errors.Error{
				Type:    errors.ErrorTypeConfig,
				Code:    errors.ErrCodeConfigInvalid,
				Message: "invalid project file",
				Path:    path,
				Cause:   err,
			}
		}
		cfg.ConfigFile = path
		cfg.Root = filepath.Dir(path)
		cfg.Timestamp = info.ModTime()
	case explicit:
		return nil, errors.NewIOError(errors.ErrCodeReadFile, path, "project file not found", statErr)
	}

	cfg.Name = v.GetString(KeyName)
	if cfg.Name == "" {
		cfg.Name = filepath.Base(cfg.Root)
	}
	cfg.Entrypoint = v.GetString(KeyEntrypoint)
	cfg.Output = cfg.resolve(v.GetString(KeyOutput))
	cfg.Temp = cfg.resolve(v.GetString(KeyTemp))
	cfg.BoxVersion = v.GetString(KeyBoxVersion)
	cfg.BoxURL = v.GetString(KeyBoxURL)
	cfg.PHP = v.GetString(KeyPHP)
	cfg.StubURL = v.GetString(KeyStubURL)
	cfg.Capabilities = v.GetStringSlice(KeyExtensions)
	cfg.Mounts = v.GetStringSlice(KeyMount)
	cfg.INI = project.INI
	cfg.Inclusions = inclusionsOf(project.Build)

	cfg.DescriptorPath = filepath.Join(cfg.Temp, "box.json")
	cfg.StubPath = filepath.Join(cfg.Temp, "entrypoint.php")
	cfg.PayloadPath = filepath.Join(cfg.Temp, cfg.Name+".phar")

	platforms := v.GetStringSlice(KeyPlatform)
	archs := v.GetStringSlice(KeyArch)

	if err := validate(cfg, platforms, archs, project.Targets); err != nil {
		return nil, err
	}

	cfg.Targets = buildTargets(cfg, platforms, archs, project.Targets)

	return cfg, nil
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

func inclusionsOf(build BuildSection) []Inclusion {
	var out []Inclusion
	for _, f := range build.Finder {
		out = append(out, Inclusion{
			Kind: InclusionFinder,
			Finder: Finder{
				Directories:    f.Directory,
				NotDirectories: f.NotDirectory,
				Names:          f.Name,
				NotNames:       f.NotName,
			},
		})
	}
	for _, file := range build.Files {
		out = append(out, Inclusion{Kind: InclusionFile, Path: file})
	}
	for _, dir := range build.Directories {
		out = append(out, Inclusion{Kind: InclusionDirectory, Path: dir})
	}
	return out
}

func buildTargets(cfg *Config, platforms, archs []string, sections map[string]TargetSection) []Target {
	targets := make([]Target, 0, len(platforms)*len(archs))
	for _, platform := range platforms {
		for _, arch := range archs {
			t := Target{
				Platform:   platform,
				Arch:       arch,
				BinaryName: cfg.Name,
			}
			if platform == PlatformWindows {
				t.BinaryName += ".exe"
			}
			t.OutputDir = filepath.Join(cfg.Output, t.ID())

			if section, ok := sections[t.ID()]; ok {
				t.INI = section.INI
				t.Stub = section.Sfx
				t.Prebuilt = section.Prebuilt
			}
			targets = append(targets, t)
		}
	}
	return targets
}
