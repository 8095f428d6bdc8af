// Package workflow composes the build tasks into the Pack and Compile
// workflows run by the CLI.
package workflow

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/conneroisu/stubforge/internal/assembly"
	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/descriptor"
	"github.com/conneroisu/stubforge/internal/download"
	"github.com/conneroisu/stubforge/internal/edition"
	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/conneroisu/stubforge/internal/filesystem"
	"github.com/conneroisu/stubforge/internal/packer"
)

// Options adjusts how the workflows reach external collaborators.
type Options struct {
	// Packager defaults to Box run by cfg.PHP, downloading the phar first.
	Packager packer.Packager
	// Client is used for downloads; nil means http.DefaultClient.
	Client *http.Client
	// Editions defaults to edition.Default.
	Editions edition.Registry
	// NoPack makes Compile reuse the existing payload.
	NoPack bool
	// PollInterval is passed to the pack task.
	PollInterval time.Duration
}

func (o Options) editions() edition.Registry {
	if o.Editions == nil {
		return edition.Default
	}
	return o.Editions
}

// Pack regenerates stale packer inputs, runs the packer and checks that the
// payload was produced.
func Pack(ctx context.Context, r *engine.Runner, cfg *config.Config, opts Options) error {
	return engine.Do(ctx, r, "pack", func(ctx context.Context, r *engine.Runner) error {
		r.Info("Preparing %s", cfg.Name)

		if err := filesystem.CreateDirectory(ctx, r, cfg.Temp, false); err != nil {
			return err
		}

		packager := opts.Packager
		if packager == nil {
			if err := download.Download(ctx, r, opts.Client, cfg.BoxDownloadURL(), cfg.BoxPath()); err != nil {
				return err
			}
			packager = packer.NewBoxPackager(cfg.PHP, cfg.BoxPath(), cfg.Root)
		}

		if err := descriptor.WriteDescriptor(ctx, r, cfg); err != nil {
			return err
		}
		if err := descriptor.WriteEntrypointStub(ctx, r, cfg); err != nil {
			return err
		}

		if _, err := engine.Run[time.Duration](ctx, r, &packer.PackTask{
			Packager:       packager,
			DescriptorPath: cfg.DescriptorPath,
			PayloadPath:    cfg.PayloadPath,
			PollInterval:   opts.PollInterval,
		}); err != nil {
			return err
		}

		return requirePayload(cfg)
	})
}

// Compile packs (unless opts.NoPack) and then builds every target. It stops
// at the first target that fails; binaries already written for earlier
// targets are kept.
func Compile(ctx context.Context, r *engine.Runner, cfg *config.Config, opts Options) error {
	return engine.Do(ctx, r, "compile", func(ctx context.Context, r *engine.Runner) error {
		if opts.NoPack {
			r.Notify("Reusing %s", filepath.Base(cfg.PayloadPath))
			if err := requirePayload(cfg); err != nil {
				return err
			}
		} else if err := Pack(ctx, r, cfg, opts); err != nil {
			return err
		}

		selected, err := selectEdition(cfg, opts)
		if err != nil {
			return err
		}

		for _, target := range cfg.Targets {
			if err := compileTarget(ctx, r, cfg, opts, target, selected); err != nil {
				return err
			}
		}
		return nil
	})
}

// selectEdition resolves the edition once, but only when some target needs
// a stock stub.
func selectEdition(cfg *config.Config, opts Options) (*edition.Edition, error) {
	for _, target := range cfg.Targets {
		if target.Stub == "" && target.Prebuilt == "" {
			e, err := opts.editions().Select(edition.Required(cfg.Capabilities))
			if err != nil {
				return nil, err
			}
			return &e, nil
		}
	}
	return nil, nil
}

func compileTarget(ctx context.Context, r *engine.Runner, cfg *config.Config, opts Options, target config.Target, selected *edition.Edition) error {
	return engine.Do(ctx, r, "target", func(ctx context.Context, r *engine.Runner) error {
		r.Info("Building %s", target.ID())

		if err := filesystem.DeleteDirectory(ctx, r, target.OutputDir, true); err != nil {
			return err
		}
		if err := filesystem.CreateDirectory(ctx, r, target.OutputDir, false); err != nil {
			return err
		}

		if target.Prebuilt != "" {
			return installPrebuilt(ctx, r, cfg, target)
		}

		stubPath, err := edition.FindCustomStubOverride(cfg.Root, target)
		if err != nil {
			return err
		}
		if stubPath != "" {
			r.Notify("Using custom stub %s", stubPath)
		} else {
			stubPath, err = fetchStub(ctx, r, cfg, opts, target, *selected)
			if err != nil {
				return err
			}
		}

		if err := assembly.AssembleTarget(ctx, r, cfg, target, stubPath); err != nil {
			return err
		}
		r.Notify("Built %s", target.BinaryPath())
		return nil
	})
}

func fetchStub(ctx context.Context, r *engine.Runner, cfg *config.Config, opts Options, target config.Target, e edition.Edition) (string, error) {
	r.Notify("Using %s edition", e.Name)

	path := edition.StubFile(cfg.Temp, e, target)
	if filesystem.IsReadable(path) {
		return path, nil
	}

	uri, err := edition.StubURL(cfg.StubURL, e, target)
	if err != nil {
		return "", err
	}
	if err := download.Download(ctx, r, opts.Client, uri, path); err != nil {
		return "", err
	}
	return path, nil
}

// installPrebuilt copies a vendor binary in place of an assembled one.
func installPrebuilt(ctx context.Context, r *engine.Runner, cfg *config.Config, target config.Target) error {
	src := target.Prebuilt
	if !filepath.IsAbs(src) {
		src = filepath.Join(cfg.Root, src)
	}
	if !filesystem.IsReadable(src) {
		return errors.NewValidationError(errors.ErrCodeCustomStub,
			"prebuilt binary for "+target.ID()+" is not readable").
			WithPath(src).
			WithRemediation("check targets." + target.ID() + ".prebuilt in the project file")
	}

	r.Notify("Copying prebuilt %s", filepath.Base(src))
	if err := filesystem.CopyFile(ctx, r, src, target.BinaryPath()); err != nil {
		return err
	}
	if err := assembly.CopyMounts(ctx, r, cfg.Root, cfg.Mounts, target.OutputDir); err != nil {
		return err
	}
	return filesystem.ApplyPermissions(ctx, r, target.BinaryPath(), filesystem.ModeExecute)
}

func requirePayload(cfg *config.Config) error {
	if !filesystem.IsReadable(cfg.PayloadPath) {
		return errors.NewIOError(errors.ErrCodePayloadMissing, cfg.PayloadPath,
			"payload archive is missing; run `stubforge pack` first", nil)
	}
	return nil
}
