package descriptor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/engine"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfig() *config.Config {
	return &config.Config{
		Root:       "/project",
		Name:       "shop",
		Entrypoint: "index.php",
		Inclusions: []config.Inclusion{
			{Kind: config.InclusionFinder, Finder: config.Finder{
				Directories:    []string{"src", "vendor"},
				NotDirectories: []string{"tests"},
				Names:          []string{"*.php"},
			}},
			{Kind: config.InclusionFile, Path: "bootstrap.php"},
			{Kind: config.InclusionDirectory, Path: "config"},
		},
		Mounts:      []string{"storage", ".env"},
		StubPath:    "/project/.stubforge/entrypoint.php",
		PayloadPath: "/project/.stubforge/shop.phar",
	}
}

func TestBuildDescriptorGolden(t *testing.T) {
	d, err := BuildDescriptor(sampleConfig())
	require.NoError(t, err)

	data, err := d.Encode()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "descriptor", data)
}

func TestBuildDescriptorEmptyLists(t *testing.T) {
	cfg := sampleConfig()
	cfg.Inclusions = cfg.Inclusions[1:2]

	d, err := BuildDescriptor(cfg)
	require.NoError(t, err)

	data, err := d.Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["finder"])
	assert.Equal(t, []any{}, raw["directories"])
	assert.Equal(t, []any{"bootstrap.php", "index.php"}, raw["files"])
}

func TestBuildDescriptorRequiresInclusions(t *testing.T) {
	cfg := sampleConfig()
	cfg.Inclusions = nil

	_, err := BuildDescriptor(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.NotEmpty(t, errors.RemediationOf(err))
}

func TestBuildEntrypointStub(t *testing.T) {
	cfg := sampleConfig()
	cfg.Name = "o'brien"
	cfg.Entrypoint = "bin/console"

	stub := BuildEntrypointStub(cfg)

	assert.Contains(t, stub, `Phar::mapPhar('o\'brien.phar');`)
	assert.Contains(t, stub, `foreach (['storage', '.env'] as $stubforgeMount)`)
	assert.Contains(t, stub, `require 'phar://o\'brien.phar/bin/console';`)
	assert.Contains(t, stub, "__HALT_COMPILER();")
	assert.NotContains(t, stub, "{{")
}

func TestPHPArray(t *testing.T) {
	assert.Equal(t, "[]", phpArray(nil))
	assert.Equal(t, `['a', 'it\'s', 'conf/app.ini']`, phpArray([]string{"a", "it's", `conf\app.ini`}))
}

func TestStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.json")
	assert.True(t, Stale(path, time.Unix(0, 0)))

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	assert.False(t, Stale(path, time.Unix(0, 0)))
	assert.True(t, Stale(path, time.Now().Add(time.Hour)))
}

func TestWriteDescriptorStaleness(t *testing.T) {
	ctx := context.Background()
	temp := t.TempDir()

	cfg := sampleConfig()
	cfg.DescriptorPath = filepath.Join(temp, "gen", "box.json")
	cfg.Timestamp = time.Now().Add(-time.Hour)

	var steps []engine.Step
	r := engine.NewRunner("test", func(s engine.Step) { steps = append(steps, s) })

	require.NoError(t, WriteDescriptor(ctx, r, cfg))
	require.FileExists(t, cfg.DescriptorPath)
	assert.Equal(t, "Generating box.json", steps[0].Text())

	// A fresh file is left untouched.
	require.NoError(t, os.WriteFile(cfg.DescriptorPath, []byte("sentinel"), 0o644))
	steps = nil
	require.NoError(t, WriteDescriptor(ctx, r, cfg))
	data, err := os.ReadFile(cfg.DescriptorPath)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", string(data))
	assert.Equal(t, "Using existing box.json", steps[0].Text())

	// A newer project file forces regeneration.
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(cfg.DescriptorPath, old, old))
	require.NoError(t, WriteDescriptor(ctx, r, cfg))
	data, err = os.ReadFile(cfg.DescriptorPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"base-path": "/project"`)
}

func TestWriteEntrypointStub(t *testing.T) {
	cfg := sampleConfig()
	cfg.StubPath = filepath.Join(t.TempDir(), "entrypoint.php")

	require.NoError(t, WriteEntrypointStub(context.Background(), engine.NewRunner("test", nil), cfg))

	data, err := os.ReadFile(cfg.StubPath)
	require.NoError(t, err)
	assert.Equal(t, BuildEntrypointStub(cfg), string(data))
}
