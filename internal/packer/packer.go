// Package packer drives the external tool that packs application sources
// into the payload archive.
package packer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	sferrors "github.com/conneroisu/stubforge/internal/errors"
	"github.com/conneroisu/stubforge/internal/validation"
)

// Process is a running packer invocation.
type Process interface {
	// Exited reports whether the process has terminated. It never blocks.
	Exited() bool
	// Wait blocks until the process terminates. err is set only when the
	// process could not run to completion; a non-zero exit is reported
	// through exitCode and output.
	Wait() (exitCode int, output string, err error)
}

// Packager starts the packer for a descriptor.
type Packager interface {
	Pack(ctx context.Context, descriptorPath string) (Process, error)
}

var allowedInterpreters = map[string]bool{
	"php":    true,
	"php8.1": true,
	"php8.2": true,
	"php8.3": true,
	"php8.4": true,
}

// BoxPackager runs the Box phar with a PHP interpreter.
type BoxPackager struct {
	php     string
	boxPath string
	dir     string
}

// NewBoxPackager creates a packager running boxPath with php in dir.
func NewBoxPackager(php, boxPath, dir string) *BoxPackager {
	return &BoxPackager{php: php, boxPath: boxPath, dir: dir}
}

func (bp *BoxPackager) args(descriptorPath string) []string {
	return []string{bp.boxPath, "compile", "--config=" + descriptorPath}
}

// Pack starts `php box.phar compile --config=<descriptorPath>`.
func (bp *BoxPackager) Pack(ctx context.Context, descriptorPath string) (Process, error) {
	if err := bp.validateCommand(descriptorPath); err != nil {
		return nil, sferrors.NewValidationError(sferrors.ErrCodeInvalidCommand, err.Error())
	}

	cmd := exec.CommandContext(ctx, bp.php, bp.args(descriptorPath)...)
	cmd.Dir = bp.dir

	p := &boxProcess{cmd: cmd, ctx: ctx, done: make(chan struct{})}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, sferrors.NewProcessError(sferrors.ErrCodePackFailed,
			fmt.Sprintf("cannot start %s", bp.php), err).WithPath(descriptorPath)
	}

	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// validateCommand checks the interpreter against the allowlist and the paths
// handed to it. No shell is involved, so paths may contain any printable
// character.
func (bp *BoxPackager) validateCommand(descriptorPath string) error {
	if err := validation.ValidateCommand(bp.php, allowedInterpreters); err != nil {
		return err
	}
	for _, path := range []string{bp.boxPath, descriptorPath} {
		if err := validation.ValidatePathArgument(path); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", path, err)
		}
	}
	return nil
}

type boxProcess struct {
	cmd    *exec.Cmd
	ctx    context.Context
	stdout bytes.Buffer
	stderr bytes.Buffer
	done   chan struct{}
	err    error
}

func (p *boxProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *boxProcess) Wait() (int, string, error) {
	<-p.done

	output := p.stderr.String()
	if output == "" {
		output = p.stdout.String()
	}

	if p.err == nil {
		return 0, output, nil
	}
	if p.ctx.Err() != nil {
		return -1, output, p.ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(p.err, &exitErr) {
		return exitErr.ExitCode(), output, nil
	}
	return -1, output, p.err
}
