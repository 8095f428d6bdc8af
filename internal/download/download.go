// Package download fetches runtime assets (the packer phar, runtime stubs)
// into the work directory.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/conneroisu/stubforge/internal/filesystem"
	"github.com/conneroisu/stubforge/internal/validation"
	"github.com/ulikunitz/xz"
)

// Task downloads URL to Path. A readable file at Path counts as already
// downloaded, so Path only ever holds complete downloads.
type Task struct {
	URL  string
	Path string
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Name implements engine.Task.
func (t *Task) Name() string { return "download" }

// Run implements engine.Task. The result is the number of bytes received.
func (t *Task) Run(ctx context.Context, r *engine.Runner) (int64, error) {
	name := filepath.Base(t.Path)

	if filesystem.IsReadable(t.Path) {
		r.Notify("Using cached %s", name)
		return 0, nil
	}

	if err := validation.ValidateURL(t.URL); err != nil {
		return 0, errors.NewValidationError(errors.ErrCodeDownloadFailed, err.Error()).WithPath(t.URL)
	}

	r.Info("Downloading %s", name)
	r.Message("GET %s", t.URL)

	if err := filesystem.CreateDirectory(ctx, r, filepath.Dir(t.Path), false); err != nil {
		return 0, err
	}

	out, err := os.OpenFile(t.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errors.NewIOError(errors.ErrCodeWriteFile, t.Path, "cannot open download target", err)
	}
	if err := filesystem.LockExclusive(out); err != nil {
		out.Close()
		os.Remove(t.Path)
		return 0, err
	}

	received, err := t.fetch(ctx, r, out)
	if err != nil {
		filesystem.Unlock(out)
		out.Close()
		os.Remove(t.Path)
		return received, err
	}

	if err := filesystem.Unlock(out); err != nil {
		out.Close()
		return received, err
	}
	if err := out.Close(); err != nil {
		os.Remove(t.Path)
		return received, errors.NewIOError(errors.ErrCodeWriteFile, t.Path, "cannot close download target", err)
	}

	r.Notify("Downloaded %s (%s)", name, FormatBytes(received))
	return received, nil
}

// fetch streams the response body into w. Stream errors are returned
// unchanged.
func (t *Task) fetch(ctx context.Context, r *engine.Runner, w io.Writer) (int64, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return 0, errors.NewNetworkError(errors.ErrCodeDownloadFailed, "cannot create request", err).WithPath(t.URL)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.NewNetworkError(errors.ErrCodeDownloadFailed, "request failed", err).WithPath(t.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.NewNetworkError(errors.ErrCodeDownloadFailed,
			fmt.Sprintf("unexpected status %s", resp.Status), nil).WithPath(t.URL)
	}

	counter := &progressReader{r: resp.Body, runner: r, name: filepath.Base(t.Path), total: resp.ContentLength}
	var body io.Reader = counter
	if compressed(t.URL) {
		xr, err := xz.NewReader(counter)
		if err != nil {
			return counter.read, err
		}
		body = xr
	}

	buf := make([]byte, 32*1024)
	_, err = io.CopyBuffer(w, body, buf)
	return counter.read, err
}

func compressed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ".xz")
}

// progressReader emits a Progress step with the cumulative byte count for
// every chunk read.
type progressReader struct {
	r      io.Reader
	runner *engine.Runner
	name   string
	read   int64
	total  int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.total > 0 {
			p.runner.Progress("%s %s / %s", p.name, FormatBytes(p.read), FormatBytes(p.total))
		} else {
			p.runner.Progress("%s %s", p.name, FormatBytes(p.read))
		}
	}
	return n, err
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Download runs a Task fetching uri to dst below r.
func Download(ctx context.Context, r *engine.Runner, client *http.Client, uri, dst string) error {
	_, err := engine.Run[int64](ctx, r, &Task{URL: uri, Path: dst, Client: client})
	return err
}
