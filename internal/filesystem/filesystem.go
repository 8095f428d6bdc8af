// Package filesystem provides the idempotent file-system primitives used by
// the pack and compile workflows. Each primitive runs as an engine task so
// its activity shows up in the step stream.
package filesystem

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
)

// Mode is a named permission mode.
type Mode struct {
	Name string
	Perm fs.FileMode
}

var (
	// ModeWrite grants read/write to everyone.
	ModeWrite = Mode{Name: "write", Perm: 0o666}
	// ModeExecute grants read/write/execute to everyone.
	ModeExecute = Mode{Name: "execute", Perm: 0o777}
)

const directoryPerm fs.FileMode = 0o755

// CreateDirectory creates path and its parents. An existing directory is left
// alone. When writable is set, ModeWrite is applied afterwards.
func CreateDirectory(ctx context.Context, r *engine.Runner, path string, writable bool) error {
	return engine.Do(ctx, r, "create-directory", func(ctx context.Context, r *engine.Runner) error {
		if isDir(path) {
			r.Message("directory %s exists", path)
			return nil
		}

		if err := os.MkdirAll(path, directoryPerm); err != nil && !isDir(path) {
			return errors.NewIOError(errors.ErrCodeCreateDirectory, path, "cannot create directory", err)
		}
		r.Message("created directory %s", path)

		if writable {
			return ApplyPermissions(ctx, r, path, ModeWrite)
		}
		return nil
	})
}

// DeleteDirectory removes everything below path, children before parents and
// files before directories. The root itself is removed only when removeSelf
// is set. A missing path is not an error.
func DeleteDirectory(ctx context.Context, r *engine.Runner, path string, removeSelf bool) error {
	return engine.Do(ctx, r, "delete-directory", func(ctx context.Context, r *engine.Runner) error {
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			r.Message("directory %s does not exist", path)
			return nil
		}

		if err := deleteChildren(path); err != nil {
			return err
		}

		if removeSelf {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.NewIOError(errors.ErrCodeDeleteDirectory, path, "cannot remove directory", err)
			}
		}
		r.Message("cleared directory %s", path)
		return nil
	})
}

func deleteChildren(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeDeleteDirectory, dir, "cannot read directory", err)
	}

	var subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.NewIOError(errors.ErrCodeDeleteDirectory, path, "cannot remove file", err)
		}
	}

	for _, sub := range subdirs {
		if err := deleteChildren(sub); err != nil {
			return err
		}
		if err := os.Remove(sub); err != nil && !os.IsNotExist(err) {
			return errors.NewIOError(errors.ErrCodeDeleteDirectory, sub, "cannot remove directory", err)
		}
	}
	return nil
}

// CopyFile copies src to dst, truncating dst and keeping src's permission
// bits. The destination directory must exist.
func CopyFile(ctx context.Context, r *engine.Runner, src, dst string) error {
	return engine.Do(ctx, r, "copy-file", func(_ context.Context, r *engine.Runner) error {
		if err := copyFile(src, dst); err != nil {
			return err
		}
		r.Message("copied %s to %s", src, dst)
		return nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeCopyFile, src, "cannot open source", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.NewIOError(errors.ErrCodeCopyFile, src, "cannot stat source", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.NewIOError(errors.ErrCodeCopyFile, dst, "cannot open destination", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.NewIOError(errors.ErrCodeCopyFile, dst, fmt.Sprintf("cannot copy from %s", src), err)
	}
	if err := out.Close(); err != nil {
		return errors.NewIOError(errors.ErrCodeCopyFile, dst, "cannot close destination", err)
	}
	return nil
}

// CopyFiles recreates srcDir's tree below dstDir. Directories are created only
// when a file needs them. Symbolic links are followed; a link back into a
// directory already being copied is skipped. A missing srcDir is not an error.
func CopyFiles(ctx context.Context, r *engine.Runner, srcDir, dstDir string) error {
	return engine.Do(ctx, r, "copy-files", func(_ context.Context, r *engine.Runner) error {
		if !isDir(srcDir) {
			r.Message("directory %s does not exist, nothing to copy", srcDir)
			return nil
		}

		c := &treeCopier{r: r, created: make(map[string]bool), visiting: make(map[string]bool)}
		if err := c.copyTree(srcDir, dstDir); err != nil {
			return err
		}

		r.Message("copied %d files from %s", c.count, srcDir)
		return nil
	})
}

type treeCopier struct {
	r        *engine.Runner
	created  map[string]bool
	visiting map[string]bool
	count    int
}

func (c *treeCopier) copyTree(srcDir, dstDir string) error {
	resolved, err := filepath.EvalSymlinks(srcDir)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeCopyFile, srcDir, "cannot resolve directory", err)
	}
	if c.visiting[resolved] {
		c.r.Message("skipping %s, it links back to %s", srcDir, resolved)
		return nil
	}
	c.visiting[resolved] = true
	defer delete(c.visiting, resolved)

	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.NewIOError(errors.ErrCodeCopyFile, path, "cannot walk directory", err)
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return errors.NewIOError(errors.ErrCodeCopyFile, path, "cannot resolve relative path", err)
		}
		target := filepath.Join(dstDir, rel)

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				return errors.NewIOError(errors.ErrCodeCopyFile, path, "cannot follow link", err)
			}
			if info.IsDir() {
				return c.copyTree(path, target)
			}
		}

		parent := filepath.Dir(target)
		if !c.created[parent] {
			if err := os.MkdirAll(parent, directoryPerm); err != nil {
				return errors.NewIOError(errors.ErrCodeCreateDirectory, parent, "cannot create directory", err)
			}
			c.created[parent] = true
		}

		if err := copyFile(path, target); err != nil {
			return err
		}
		c.count++
		return nil
	})
}

// ApplyPermissions sets mode on path. Directories keep their search bits.
func ApplyPermissions(ctx context.Context, r *engine.Runner, path string, mode Mode) error {
	return engine.Do(ctx, r, "apply-permissions", func(_ context.Context, r *engine.Runner) error {
		perm := mode.Perm
		if isDir(path) {
			perm |= 0o111
		}
		if err := os.Chmod(path, perm); err != nil {
			return errors.NewIOError(errors.ErrCodePermissions, path,
				fmt.Sprintf("cannot apply %q permissions (%04o)", mode.Name, mode.Perm), err)
		}
		r.Message("applied %s permissions to %s", mode.Name, path)
		return nil
	})
}

// IsReadable reports whether path is a regular file that can be opened.
func IsReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
