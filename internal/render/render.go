// Package render prints the step stream of a workflow to the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/gookit/color"
)

var (
	infoStyle    = color.New(color.FgCyan, color.OpBold)
	notifyStyle  = color.New(color.FgGreen)
	messageStyle = color.New(color.FgGray)
	errorStyle   = color.New(color.FgRed, color.OpBold)
	hintStyle    = color.New(color.FgYellow)
)

// Options configures a Renderer.
type Options struct {
	// Verbose shows Message steps.
	Verbose bool
	// Color enables ANSI styling.
	Color bool
	// Interactive redraws progress ticks in place. Otherwise only the last
	// tick of a run is printed.
	Interactive bool
}

// Renderer writes steps to an output stream.
type Renderer struct {
	out  io.Writer
	opts Options

	// pending is the latest progress tick not yet terminated by a newline.
	pending     string
	pendingFrom string
}

// New creates a renderer writing to out.
func New(out io.Writer, opts Options) *Renderer {
	return &Renderer{out: out, opts: opts}
}

// Consume renders every step of stream and returns the work's error.
func (r *Renderer) Consume(stream *engine.Stream) error {
	for step := range stream.Steps() {
		r.Render(step)
	}
	r.Flush()
	return stream.Err()
}

// Render prints one step.
func (r *Renderer) Render(step engine.Step) {
	if step.Kind == engine.KindMessage && !r.opts.Verbose {
		return
	}

	line := indent(step.Level) + r.decorate(step)

	if step.Kind == engine.KindProgress {
		if r.pending != "" && r.pendingFrom != step.Context {
			r.Flush()
		}
		if r.opts.Interactive {
			fmt.Fprint(r.out, "\r\x1b[2K"+line)
		}
		r.pending, r.pendingFrom = line, step.Context
		return
	}

	r.Flush()
	fmt.Fprintln(r.out, line)
}

// Flush terminates a pending progress line.
func (r *Renderer) Flush() {
	if r.pending == "" {
		return
	}
	if r.opts.Interactive {
		fmt.Fprintln(r.out)
	} else {
		fmt.Fprintln(r.out, r.pending)
	}
	r.pending, r.pendingFrom = "", ""
}

// Error prints err and any remediation attached to it.
func (r *Renderer) Error(err error) {
	r.Flush()
	fmt.Fprintln(r.out, r.style(errorStyle, "error: ")+err.Error())
	if hint := errors.RemediationOf(err); hint != "" {
		for _, line := range strings.Split(hint, "\n") {
			fmt.Fprintln(r.out, "  "+r.style(hintStyle, line))
		}
	}
}

func (r *Renderer) decorate(step engine.Step) string {
	text := step.Text()
	switch step.Kind {
	case engine.KindInfo:
		return r.style(infoStyle, "==> "+text)
	case engine.KindNotify:
		return r.style(notifyStyle, "-> ") + text
	case engine.KindMessage:
		return r.style(messageStyle, "   "+text)
	default:
		return text
	}
}

func (r *Renderer) style(s color.Style, text string) string {
	if !r.opts.Color || text == "" {
		return text
	}
	return s.Sprint(text)
}

func indent(level int) string {
	if level <= 1 {
		return ""
	}
	return strings.Repeat("  ", level-1)
}
