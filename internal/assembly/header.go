package assembly

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/stubforge/internal/errors"
)

// ReadHeader reads the configuration text whose header starts at offset.
func ReadHeader(r io.ReaderAt, offset int64) (string, error) {
	var head [HeaderSize]byte
	if _, err := r.ReadAt(head[:], offset); err != nil {
		return "", fmt.Errorf("reading header at %d: %w", offset, err)
	}
	if !bytes.Equal(head[:len(Sentinel)], Sentinel[:]) {
		return "", errors.NewValidationError(errors.ErrCodeHeaderMismatch,
			fmt.Sprintf("no sentinel at offset %d", offset))
	}

	size := binary.BigEndian.Uint32(head[len(Sentinel):])
	text := make([]byte, size)
	if _, err := r.ReadAt(text, offset+int64(HeaderSize)); err != nil {
		return "", fmt.Errorf("reading %d bytes of configuration: %w", size, err)
	}
	return string(text), nil
}

// Verify checks that the binary at path carries text at the position
// recorded in layout and has the expected total size.
func Verify(path string, layout Layout, text string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeReadFile, path, "cannot open binary", err)
	}
	defer f.Close()

	got, err := ReadHeader(f, layout.HeaderAt)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeHeaderMismatch, path, "invalid configuration header", err)
	}
	if got != text {
		return errors.NewIOError(errors.ErrCodeHeaderMismatch, path, "configuration header does not match", nil)
	}

	info, err := f.Stat()
	if err != nil {
		return errors.NewIOError(errors.ErrCodeReadFile, path, "cannot stat binary", err)
	}
	if info.Size() != layout.Size() {
		return errors.NewIOError(errors.ErrCodePayloadMissing, path,
			fmt.Sprintf("binary is %d bytes, expected %d", info.Size(), layout.Size()), nil)
	}
	return nil
}
