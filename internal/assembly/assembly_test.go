package assembly

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner() *engine.Runner {
	return engine.NewRunner("test", nil)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestConfigTextOrdering(t *testing.T) {
	global := config.INI{{Key: "memory_limit", Value: "128M"}}
	target := config.INI{{Key: "display_errors", Value: true}}

	assert.Equal(t, BaselineSetting+"\nmemory_limit=128M\ndisplay_errors=1\n", ConfigText(global, target))
}

func TestConfigText(t *testing.T) {
	tests := []struct {
		name     string
		global   config.INI
		target   config.INI
		expected string
	}{
		{
			name:     "empty",
			expected: "ffi.enable=1\n",
		},
		{
			name:     "false renders as zero",
			global:   config.INI{{Key: "display_errors", Value: false}},
			expected: "ffi.enable=1\ndisplay_errors=0\n",
		},
		{
			name: "numbers keep their literal form",
			global: config.INI{
				{Key: "max_execution_time", Value: json.Number("30")},
				{Key: "precision", Value: 14},
				{Key: "ratio", Value: 0.5},
			},
			expected: "ffi.enable=1\nmax_execution_time=30\nprecision=14\nratio=0.5\n",
		},
		{
			name: "target override keeps global position",
			global: config.INI{
				{Key: "memory_limit", Value: "128M"},
				{Key: "error_log", Value: "/var/log/php.log"},
			},
			target: config.INI{
				{Key: "opcache.enable", Value: true},
				{Key: "memory_limit", Value: "512M"},
			},
			expected: "ffi.enable=1\nmemory_limit=512M\nerror_log=/var/log/php.log\nopcache.enable=1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConfigText(tt.global, tt.target))
		})
	}
}

func TestAssembleLayout(t *testing.T) {
	dir := t.TempDir()
	stub := []byte("\x7fELF-stub-bytes")
	payload := []byte("<?php // payload")
	text := ConfigText(config.INI{{Key: "memory_limit", Value: "64M"}}, nil)

	stubPath := filepath.Join(dir, "stub.sfx")
	payloadPath := filepath.Join(dir, "app.phar")
	dst := filepath.Join(dir, "app")
	writeFile(t, stubPath, stub)
	writeFile(t, payloadPath, payload)

	layout, err := Assemble(context.Background(), newRunner(), dst, stubPath, text, payloadPath)
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, Encode(stub, text, payload), data)

	assert.Equal(t, int64(len(stub)), layout.StubSize)
	assert.Equal(t, int64(len(stub)), layout.HeaderAt)
	assert.Equal(t, int64(len(text)), layout.TextSize)
	assert.Equal(t, int64(len(payload)), layout.PayloadSize)
	assert.Equal(t, int64(len(data)), layout.Size())
	assert.Equal(t, payload, data[layout.PayloadAt:])

	got, err := ReadHeader(bytes.NewReader(data), layout.HeaderAt)
	require.NoError(t, err)
	assert.Equal(t, text, got)

	require.NoError(t, Verify(dst, layout, text))
}

func TestEncodeHeaderBytes(t *testing.T) {
	out := Encode([]byte("S"), "abc", []byte("P"))
	assert.Equal(t, []byte{'S', 0xFD, 0xF6, 0x69, 0xE6, 0, 0, 0, 3, 'a', 'b', 'c', 'P'}, out)
}

func TestAssembleTruncatesExisting(t *testing.T) {
	dir := t.TempDir()
	stubPath := filepath.Join(dir, "stub")
	payloadPath := filepath.Join(dir, "payload")
	dst := filepath.Join(dir, "out")
	writeFile(t, stubPath, []byte("s"))
	writeFile(t, payloadPath, []byte("p"))
	writeFile(t, dst, bytes.Repeat([]byte("x"), 4096))

	layout, err := Assemble(context.Background(), newRunner(), dst, stubPath, "t", payloadPath)
	require.NoError(t, err)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, layout.Size(), info.Size())
}

func TestAssembleMissingPayloadLeavesPartialFile(t *testing.T) {
	dir := t.TempDir()
	stubPath := filepath.Join(dir, "stub")
	dst := filepath.Join(dir, "out")
	writeFile(t, stubPath, []byte("stub"))

	_, err := Assemble(context.Background(), newRunner(), dst, stubPath, "t", filepath.Join(dir, "missing.phar"))
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
	assert.Contains(t, err.Error(), "missing.phar")

	data, readErr := os.ReadFile(dst)
	require.NoError(t, readErr)
	assert.True(t, bytes.HasPrefix(data, []byte("stub")))
}

func TestAssembleUnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	_, err := Assemble(context.Background(), newRunner(), filepath.Join(dir, "nope", "out"), "stub", "t", "payload")
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
}

func TestReadHeaderRejectsMissingSentinel(t *testing.T) {
	data := Encode([]byte("stub"), "text", nil)

	_, err := ReadHeader(bytes.NewReader(data), 0)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = ReadHeader(bytes.NewReader(data[:6]), 4)
	assert.Error(t, err)
}

func TestVerifyDetectsMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin")
	writeFile(t, path, Encode([]byte("stub"), "abc", []byte("payload")))

	layout := Layout{StubSize: 4, HeaderAt: 4, TextSize: 3, PayloadAt: 4 + int64(HeaderSize) + 3, PayloadSize: 7}
	require.NoError(t, Verify(path, layout, "abc"))

	assert.Error(t, Verify(path, layout, "abd"))

	layout.PayloadSize = 8
	assert.Error(t, Verify(path, layout, "abc"))
}

func TestCopyMounts(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), []byte("APP_ENV=prod"))
	writeFile(t, filepath.Join(root, "storage", "logs", "app.log"), []byte("log"))
	writeFile(t, filepath.Join(root, "config", "app.ini"), []byte("[app]"))

	mounts := []string{".env", "storage", "config/app.ini", "does-not-exist"}
	require.NoError(t, CopyMounts(context.Background(), newRunner(), root, mounts, out))

	assert.FileExists(t, filepath.Join(out, ".env"))
	assert.FileExists(t, filepath.Join(out, "storage", "logs", "app.log"))
	assert.FileExists(t, filepath.Join(out, "config", "app.ini"))
	assert.NoFileExists(t, filepath.Join(out, "does-not-exist"))
}

func TestAssembleTarget(t *testing.T) {
	root := t.TempDir()
	stubPath := filepath.Join(root, "stub.sfx")
	payloadPath := filepath.Join(root, ".stubforge", "app.phar")
	writeFile(t, stubPath, []byte("STUB"))
	writeFile(t, payloadPath, []byte("PHAR"))
	writeFile(t, filepath.Join(root, "public", "favicon.ico"), []byte("ico"))

	outDir := filepath.Join(root, "build", "linux-amd64")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	cfg := &config.Config{
		Root:        root,
		Name:        "app",
		INI:         config.INI{{Key: "memory_limit", Value: "64M"}},
		Mounts:      []string{"public"},
		PayloadPath: payloadPath,
	}
	target := config.Target{
		Platform:   config.PlatformLinux,
		Arch:       config.ArchAMD64,
		OutputDir:  outDir,
		BinaryName: "app",
		INI:        config.INI{{Key: "display_errors", Value: false}},
	}

	var steps []engine.Step
	r := engine.NewRunner("compile", func(s engine.Step) { steps = append(steps, s) })
	require.NoError(t, AssembleTarget(context.Background(), r, cfg, target, stubPath))

	data, err := os.ReadFile(target.BinaryPath())
	require.NoError(t, err)
	text := "ffi.enable=1\nmemory_limit=64M\ndisplay_errors=0\n"
	assert.Equal(t, Encode([]byte("STUB"), text, []byte("PHAR")), data)
	assert.FileExists(t, filepath.Join(outDir, "public", "favicon.ico"))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(target.BinaryPath())
		require.NoError(t, err)
		assert.NotZero(t, info.Mode().Perm()&0o100)
	}

	require.NotEmpty(t, steps)
	assert.Equal(t, engine.KindInfo, steps[0].Kind)
	assert.Equal(t, "Assembling linux-amd64", steps[0].Text())
	assert.Equal(t, 1, steps[0].Level)
}
