// Package assembly writes the final per-target binaries.
//
// A binary is laid out as
//
//	[runtime stub][FD F6 69 E6][u32 big-endian length][config text][payload]
//
// The stub locates its configuration by scanning for the sentinel, reads the
// length-prefixed text and treats the remaining bytes as the payload archive.
package assembly

import (
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/conneroisu/stubforge/internal/filesystem"
)

// Sentinel separates the runtime stub from the configuration header.
var Sentinel = [4]byte{0xFD, 0xF6, 0x69, 0xE6}

// HeaderSize is the sentinel plus the length field.
const HeaderSize = len(Sentinel) + 4

// Layout describes where each section of an assembled binary starts.
type Layout struct {
	StubSize    int64
	HeaderAt    int64
	TextSize    int64
	PayloadAt   int64
	PayloadSize int64
}

// Size is the total binary size.
func (l Layout) Size() int64 {
	return l.PayloadAt + l.PayloadSize
}

// Assemble writes stub, header, text and payload to dst. dst is truncated and
// held under an exclusive lock while written; the inputs are read under
// shared locks. If an input cannot be read the partially written dst is left
// in place.
func Assemble(ctx context.Context, r *engine.Runner, dst, stubPath, text, payloadPath string) (Layout, error) {
	return engine.Run(ctx, r, engine.Func("assemble", func(ctx context.Context, r *engine.Runner) (Layout, error) {
		var layout Layout

		out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return layout, errors.NewIOError(errors.ErrCodeWriteFile, dst, "cannot open binary for writing", err)
		}
		defer out.Close()

		if err := filesystem.LockExclusive(out); err != nil {
			return layout, err
		}
		defer filesystem.Unlock(out)

		r.Notify("Writing runtime stub")
		if layout.StubSize, err = appendFile(out, stubPath); err != nil {
			return layout, err
		}

		r.Notify("Writing configuration header")
		layout.HeaderAt = layout.StubSize
		layout.TextSize = int64(len(text))
		if err := writeHeader(out, text); err != nil {
			return layout, errors.NewIOError(errors.ErrCodeWriteFile, dst, "cannot write configuration header", err)
		}

		r.Notify("Writing payload")
		layout.PayloadAt = layout.HeaderAt + int64(HeaderSize) + layout.TextSize
		if layout.PayloadSize, err = appendFile(out, payloadPath); err != nil {
			return layout, err
		}

		r.Message("%s: stub %d bytes, config %d bytes, payload %d bytes",
			dst, layout.StubSize, layout.TextSize, layout.PayloadSize)
		return layout, nil
	}))
}

// Encode returns the complete binary for in-memory inputs.
func Encode(stub []byte, text string, payload []byte) []byte {
	out := make([]byte, 0, len(stub)+HeaderSize+len(text)+len(payload))
	out = append(out, stub...)
	out = append(out, Sentinel[:]...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(text)))
	out = append(out, text...)
	return append(out, payload...)
}

func writeHeader(w io.Writer, text string) error {
	header := make([]byte, 0, HeaderSize+len(text))
	header = append(header, Sentinel[:]...)
	header = binary.BigEndian.AppendUint32(header, uint32(len(text)))
	header = append(header, text...)
	_, err := w.Write(header)
	return err
}

// appendFile copies src to w under a shared lock on src.
func appendFile(w io.Writer, src string) (int64, error) {
	in, err := filesystem.OpenShared(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	defer filesystem.Unlock(in)

	n, err := io.Copy(w, in)
	if err != nil {
		return n, errors.NewIOError(errors.ErrCodeCopyFile, src, "cannot append file", err)
	}
	return n, nil
}
