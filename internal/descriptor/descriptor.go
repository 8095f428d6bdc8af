// Package descriptor generates the inputs of the external packer: the Box
// descriptor (box.json) and the PHP entrypoint stub embedded in the payload.
//
// Both files are rewritten only when they are missing or older than the
// project file. Rewriting them unconditionally would invalidate the packer's
// own caches on every run.
package descriptor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/conneroisu/stubforge/internal/filesystem"
)

// Fixed packer options.
const (
	Chmod       = "0644"
	Compression = "GZ"
)

// Descriptor is the Box configuration. Field order is the emitted key order.
type Descriptor struct {
	BasePath             string   `json:"base-path"`
	CheckRequirements    bool     `json:"check-requirements"`
	DumpAutoload         bool     `json:"dump-autoload"`
	Stub                 string   `json:"stub"`
	Output               string   `json:"output"`
	ExcludeComposerFiles bool     `json:"exclude-composer-files"`
	Main                 bool     `json:"main"`
	Chmod                string   `json:"chmod"`
	Compression          string   `json:"compression"`
	Finder               []Finder `json:"finder"`
	Files                []string `json:"files"`
	Directories          []string `json:"directories"`
}

// Finder is one Box finder entry.
type Finder struct {
	In      []string `json:"in"`
	Exclude []string `json:"exclude,omitempty"`
	Name    []string `json:"name,omitempty"`
	NotName []string `json:"notName,omitempty"`
}

// BuildDescriptor derives the descriptor from cfg.
func BuildDescriptor(cfg *config.Config) (*Descriptor, error) {
	if len(cfg.Inclusions) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeEmptyInclusions,
			"nothing to pack: the build section lists no files, directories or finders").
			WithPath(cfg.ConfigFile).
			WithRemediation(`add sources to stubforge.json, for example:

    "build": {"finder": [{"directory": ["src", "vendor"], "name": "*.php"}]}`)
	}

	d := &Descriptor{
		BasePath:             cfg.Root,
		Stub:                 cfg.StubPath,
		Output:               cfg.PayloadPath,
		ExcludeComposerFiles: true,
		Chmod:                Chmod,
		Compression:          Compression,
		Finder:               []Finder{},
		Files:                []string{},
		Directories:          []string{},
	}

	for _, inc := range cfg.Inclusions {
		switch inc.Kind {
		case config.InclusionFinder:
			d.Finder = append(d.Finder, Finder{
				In:      inc.Finder.Directories,
				Exclude: inc.Finder.NotDirectories,
				Name:    inc.Finder.Names,
				NotName: inc.Finder.NotNames,
			})
		case config.InclusionFile:
			d.Files = append(d.Files, inc.Path)
		case config.InclusionDirectory:
			d.Directories = append(d.Directories, inc.Path)
		}
	}
	d.Files = append(d.Files, cfg.Entrypoint)

	return d, nil
}

// Encode renders d as indented JSON.
func (d *Descriptor) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Stale reports whether the file at path must be regenerated: it is missing
// or was modified before timestamp.
func Stale(path string, timestamp time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.ModTime().Before(timestamp)
}

// WriteDescriptor writes cfg's descriptor to cfg.DescriptorPath when stale.
func WriteDescriptor(ctx context.Context, r *engine.Runner, cfg *config.Config) error {
	return engine.Do(ctx, r, "descriptor", func(ctx context.Context, r *engine.Runner) error {
		d, err := BuildDescriptor(cfg)
		if err != nil {
			return err
		}
		data, err := d.Encode()
		if err != nil {
			return errors.NewInternalError(errors.ErrCodeWriteFile, "cannot encode packer descriptor", err)
		}
		return writeIfStale(ctx, r, cfg.DescriptorPath, data, cfg.Timestamp)
	})
}

// WriteEntrypointStub writes cfg's entrypoint stub to cfg.StubPath when
// stale.
func WriteEntrypointStub(ctx context.Context, r *engine.Runner, cfg *config.Config) error {
	return engine.Do(ctx, r, "entrypoint", func(ctx context.Context, r *engine.Runner) error {
		return writeIfStale(ctx, r, cfg.StubPath, []byte(BuildEntrypointStub(cfg)), cfg.Timestamp)
	})
}

func writeIfStale(ctx context.Context, r *engine.Runner, path string, data []byte, timestamp time.Time) error {
	if !Stale(path, timestamp) {
		r.Notify("Using existing %s", filepath.Base(path))
		return nil
	}

	r.Notify("Generating %s", filepath.Base(path))
	if err := filesystem.CreateDirectory(ctx, r, filepath.Dir(path), false); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFile, path, "cannot write file", err)
	}
	return nil
}
