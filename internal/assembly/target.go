package assembly

import (
	"context"
	"os"
	"path/filepath"

	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/conneroisu/stubforge/internal/filesystem"
)

// AssembleTarget produces target's binary from stubPath and the packed
// payload, copies the mounts next to it and makes it executable.
func AssembleTarget(ctx context.Context, r *engine.Runner, cfg *config.Config, target config.Target, stubPath string) error {
	return engine.Do(ctx, r, target.ID(), func(ctx context.Context, r *engine.Runner) error {
		text := ConfigText(cfg.INI, target.INI)
		dst := target.BinaryPath()

		r.Info("Assembling %s", target.ID())
		layout, err := Assemble(ctx, r, dst, stubPath, text, cfg.PayloadPath)
		if err != nil {
			return err
		}
		if err := Verify(dst, layout, text); err != nil {
			return err
		}

		if err := CopyMounts(ctx, r, cfg.Root, cfg.Mounts, target.OutputDir); err != nil {
			return err
		}
		return filesystem.ApplyPermissions(ctx, r, dst, filesystem.ModeExecute)
	})
}

// CopyMounts copies each mount, a path relative to root, to the same
// relative path below outDir. Missing mounts are skipped.
func CopyMounts(ctx context.Context, r *engine.Runner, root string, mounts []string, outDir string) error {
	return engine.Do(ctx, r, "mounts", func(ctx context.Context, r *engine.Runner) error {
		for _, mount := range mounts {
			src := filepath.Join(root, mount)
			dst := filepath.Join(outDir, mount)

			info, err := os.Stat(src)
			switch {
			case os.IsNotExist(err):
				r.Notify("Skipping missing mount %s", mount)
				continue
			case err != nil:
				return errors.NewIOError(errors.ErrCodeReadFile, src, "cannot stat mount", err)
			}

			r.Notify("Mounting %s", mount)
			if info.IsDir() {
				err = filesystem.CopyFiles(ctx, r, src, dst)
			} else {
				err = copyMountFile(ctx, r, src, dst)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func copyMountFile(ctx context.Context, r *engine.Runner, src, dst string) error {
	if err := filesystem.CreateDirectory(ctx, r, filepath.Dir(dst), false); err != nil {
		return err
	}
	return filesystem.CopyFile(ctx, r, src, dst)
}
