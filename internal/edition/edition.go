// Package edition selects the runtime stub variant a target is assembled
// from.
package edition

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/conneroisu/stubforge/internal/config"
	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/conneroisu/stubforge/internal/filesystem"
)

// Edition is a named runtime stub variant with a fixed capability set.
type Edition struct {
	Name         string
	Capabilities []string
}

// Has reports whether the edition provides capability.
func (e Edition) Has(capability string) bool {
	return slices.Contains(e.Capabilities, capability)
}

// BuiltinAlways are provided by every runtime and never decide an edition.
var BuiltinAlways = []string{
	"core", "date", "hash", "json", "pcre", "random", "reflection", "spl", "standard",
}

// Baseline are required by the stub loader itself.
var Baseline = []string{"ffi", "phar"}

var (
	minimal = []string{"ffi", "phar", "ctype", "iconv", "mbstring", "filter", "tokenizer"}

	standard = append(slices.Clone(minimal),
		"openssl", "curl", "sockets", "zlib", "sodium", "fileinfo",
		"pdo", "pdo_sqlite", "sqlite3",
		"xml", "dom", "simplexml", "xmlreader", "xmlwriter", "bcmath")

	full = append(slices.Clone(standard),
		"gd", "zip", "bz2", "exif", "pdo_mysql", "pdo_pgsql", "pgsql", "mysqli",
		"redis", "intl", "readline", "opcache")
)

// Registry is an ordered list of editions; selection scans it front to back.
type Registry []Edition

// Default is the registry shipped with stubforge, in priority order.
var Default = Registry{
	{Name: "minimal", Capabilities: minimal},
	{Name: "standard", Capabilities: standard},
	{Name: "full", Capabilities: full},
}

// Lookup returns the edition called name.
func (reg Registry) Lookup(name string) (Edition, bool) {
	for _, e := range reg {
		if e.Name == name {
			return e, true
		}
	}
	return Edition{}, false
}

// Required returns the capabilities an edition must provide for caps: the
// baseline plus caps, de-duplicated and without the builtin ones.
func Required(caps []string) []string {
	var required []string
	for _, c := range slices.Concat(Baseline, caps) {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || slices.Contains(BuiltinAlways, c) || slices.Contains(required, c) {
			continue
		}
		required = append(required, c)
	}
	return required
}

// Select returns the first edition providing every capability in required.
func (reg Registry) Select(required []string) (Edition, error) {
	var covered []string
	for _, e := range reg {
		if containsAll(e.Capabilities, required) {
			return e, nil
		}
		covered = append(covered, e.Capabilities...)
	}

	var missing []string
	for _, c := range required {
		if !slices.Contains(covered, c) {
			missing = append(missing, c)
		}
	}

	return Edition{}, errors.NewValidationError(errors.ErrCodeNoEdition,
		fmt.Sprintf("no edition provides the required extensions; missing: %s", strings.Join(missing, ", "))).
		WithContext("missing", missing).
		WithRemediation(`build a runtime stub with these extensions (for example with static-php-cli)
and point the target at it in stubforge.json:

    "targets": {"<platform>-<arch>": {"sfx": "path/to/custom.sfx"}}`)
}

// SelectEdition selects the default edition for the project capabilities
// caps.
func SelectEdition(caps []string) (Edition, error) {
	return Default.Select(Required(caps))
}

// FindCustomStubOverride resolves target's custom stub, first relative to root
// and then as given. It returns "" when the target names none.
func FindCustomStubOverride(root string, target config.Target) (string, error) {
	if target.Stub == "" {
		return "", nil
	}

	if !filepath.IsAbs(target.Stub) {
		candidate := filepath.Join(root, target.Stub)
		if filesystem.IsReadable(candidate) {
			return candidate, nil
		}
	}
	if filesystem.IsReadable(target.Stub) {
		return target.Stub, nil
	}

	return "", errors.NewValidationError(errors.ErrCodeCustomStub,
		fmt.Sprintf("custom runtime stub for %s is not readable", target.ID())).
		WithPath(target.Stub).
		WithRemediation(fmt.Sprintf("check targets.%s.sfx in the project file", target.ID()))
}

// StubFile is where the stub of edition e for target is cached.
func StubFile(temp string, e Edition, target config.Target) string {
	return filepath.Join(temp, "stubs", e.Name, target.ID()+".sfx")
}

// StubURL is where the stub of edition e for target is downloaded from.
func StubURL(base string, e Edition, target config.Target) (string, error) {
	if base == "" {
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("runtime stub for edition %s (%s) is not cached and no stub-url is configured", e.Name, target.ID())).
			WithRemediation("set stub-url in stubforge.json, STUBFORGE_STUB_URL, or place the stub in the cache directory")
	}
	return url.JoinPath(base, e.Name, target.ID()+".sfx")
}

func containsAll(set, items []string) bool {
	for _, item := range items {
		if !slices.Contains(set, item) {
			return false
		}
	}
	return true
}
