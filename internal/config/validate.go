// Package config provides configuration management for Packforge.
package config

import (
	"fmt"
	"slices"
	"strings"
	"text/template"

	pferrors "github.com/packforge/packforge/internal/errors"
)

// Validator checks a loaded configuration for problems. Hard problems fail
// validation; warnings flag settings that will bite later (a missing release
// path only matters once someone releases).
type Validator struct {
	problems []string
	warnings []string
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *Validator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// Validate validates the configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validatePackages(cfg.Packages)
	v.validateResolver(cfg.Resolver)
	v.validateBuild(cfg.Build)
	v.validateVCS(cfg.VCS)
	v.validateRelease(cfg.Release)
	v.validateOutput(cfg.Output)

	if len(v.problems) > 0 {
		return pferrors.Validation("config.Validate",
			fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(v.problems, "\n  - ")))
	}
	return nil
}

// Warnings returns the warnings collected by the last Validate call.
func (v *Validator) Warnings() []string {
	return v.warnings
}

func (v *Validator) validatePackages(cfg PackagesConfig) {
	if cfg.LocalPath == "" {
		v.addf("packages.local_path: must not be empty")
	}
	if cfg.ReleasePath == "" {
		v.warnf("packages.release_path is not set, releasing will fail until it is")
	}
}

func (v *Validator) validateResolver(cfg ResolverConfig) {
	if cfg.Command == "" {
		v.warnf("resolver.command is not set, builds will fail until it is")
	}
	if cfg.Timeout < 0 {
		v.addf("resolver.timeout: must not be negative, got %v", cfg.Timeout)
	}
}

func (v *Validator) validateBuild(cfg BuildConfig) {
	if cfg.Directory == "" {
		v.addf("build.directory: must not be empty")
	}
	if cfg.System == "" {
		v.addf("build.system: must not be empty")
	}
}

func (v *Validator) validateVCS(cfg VCSConfig) {
	if cfg.TagTemplate == "" {
		v.addf("vcs.tag_template: must not be empty")
		return
	}
	if _, err := template.New("tag").Option("missingkey=error").Parse(cfg.TagTemplate); err != nil {
		v.addf("vcs.tag_template: %v", err)
	}
}

func (v *Validator) validateRelease(cfg ReleaseConfig) {
	if cfg.MaxChangelogChars < 0 {
		v.addf("release.max_changelog_chars: must not be negative, got %d", cfg.MaxChangelogChars)
	}
	for i, name := range cfg.Hooks {
		if strings.TrimSpace(name) == "" {
			v.addf("release.hooks[%d]: hook name must not be empty", i)
		}
	}
}

func (v *Validator) validateOutput(cfg OutputConfig) {
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, cfg.Format) {
		v.addf("output.format: must be one of %v, got %q", validFormats, cfg.Format)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.LogLevel) {
		v.addf("output.log_level: must be one of %v, got %q", validLevels, cfg.LogLevel)
	}
}
