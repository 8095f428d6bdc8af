package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/conneroisu/stubforge/internal/errors"
	"github.com/conneroisu/stubforge/internal/validation"
)

var (
	validPlatforms = []string{PlatformLinux, PlatformMacOS, PlatformWindows}
	validArchs     = []string{ArchAMD64, ArchAArch64}
)

func validate(cfg *Config, platforms, archs []string, sections map[string]TargetSection) error {
	var errs errors.ValidationErrorCollection

	if err := validation.ValidateFileName(cfg.Name); err != nil {
		errs.AddField("name", cfg.Name, err.Error(), "use --app to set a plain file name")
	}

	if err := validation.ValidateRelativePath(cfg.Entrypoint); err != nil {
		errs.AddField("entrypoint", cfg.Entrypoint, err.Error(), "set entrypoint relative to the project root")
	}

	if cfg.BoxVersion == "" {
		errs.AddField("box-version", cfg.BoxVersion, "cannot be empty")
	}

	if cfg.StubURL != "" {
		if err := validation.ValidateURL(cfg.StubURL); err != nil {
			errs.AddField("stub-url", cfg.StubURL, err.Error())
		}
	}

	if len(platforms) == 0 {
		errs.AddField("platform", platforms, "at least one platform is required")
	}
	for _, p := range platforms {
		if !slices.Contains(validPlatforms, p) {
			errs.AddField("platform", p, "unknown platform",
				fmt.Sprintf("supported platforms: %s", strings.Join(validPlatforms, ", ")))
		}
	}

	if len(archs) == 0 {
		errs.AddField("arch", archs, "at least one architecture is required")
	}
	for _, a := range archs {
		if !slices.Contains(validArchs, a) {
			errs.AddField("arch", a, "unknown architecture",
				fmt.Sprintf("supported architectures: %s", strings.Join(validArchs, ", ")))
		}
	}

	for _, mount := range cfg.Mounts {
		if err := validation.ValidateRelativePath(mount); err != nil {
			errs.AddField("mount", mount, err.Error())
		}
	}

	for _, inc := range cfg.Inclusions {
		paths := []string{inc.Path}
		if inc.Kind == InclusionFinder {
			paths = inc.Finder.Directories
		}
		for _, p := range paths {
			if err := validation.ValidateRelativePath(p); err != nil {
				errs.AddField("build", p, err.Error())
			}
		}
	}

	for id := range sections {
		if !targetEnumerated(id, platforms, archs) {
			errs.AddField("targets", id, "does not match any configured platform-arch pair")
		}
	}

	return errs.ToError()
}

func targetEnumerated(id string, platforms, archs []string) bool {
	for _, p := range platforms {
		for _, a := range archs {
			if id == p+"-"+a {
				return true
			}
		}
	}
	return false
}
