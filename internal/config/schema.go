// Package config provides configuration management for Packforge.
package config

import (
	"time"
)

// Config is the root configuration for Packforge.
type Config struct {
	// Packages configures the package repositories.
	Packages PackagesConfig `mapstructure:"packages" json:"packages"`
	// Resolver configures the external resolution engine.
	Resolver ResolverConfig `mapstructure:"resolver" json:"resolver"`
	// Build configures build execution.
	Build BuildConfig `mapstructure:"build" json:"build"`
	// VCS configures version control integration.
	VCS VCSConfig `mapstructure:"vcs" json:"vcs"`
	// Release configures release safety checks and hooks.
	Release ReleaseConfig `mapstructure:"release" json:"release"`
	// Hooks configures hook loading.
	Hooks HooksConfig `mapstructure:"hooks" json:"hooks"`
	// Output configures output settings.
	Output OutputConfig `mapstructure:"output" json:"output"`
}

// PackagesConfig configures the package repositories.
type PackagesConfig struct {
	// LocalPath is the repository local builds install into.
	LocalPath string `mapstructure:"local_path" json:"local_path"`
	// ReleasePath is the shared repository releases install into.
	ReleasePath string `mapstructure:"release_path" json:"release_path"`
	// NonLocalPaths are additional read-only repositories consulted
	// during resolution, highest priority first.
	NonLocalPaths []string `mapstructure:"non_local_paths" json:"non_local_paths,omitempty"`
}

// ResolverConfig configures the external resolution engine.
type ResolverConfig struct {
	// Command is the engine executable. Requests are written to its
	// stdin as JSON and the outcome read from its stdout.
	Command string `mapstructure:"command" json:"command"`
	// Args are fixed arguments passed to the engine.
	Args []string `mapstructure:"args" json:"args,omitempty"`
	// Timeout bounds a single resolution. Zero disables the bound.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// BuildConfig configures build execution.
type BuildConfig struct {
	// Directory is the build scratch directory, relative to the
	// package root.
	Directory string `mapstructure:"directory" json:"directory"`
	// System is the build system to invoke ("command").
	System string `mapstructure:"system" json:"system"`
}

// VCSConfig configures version control integration.
type VCSConfig struct {
	// Type selects the adapter. Empty auto-detects from the working
	// copy.
	Type string `mapstructure:"type" json:"type,omitempty"`
	// TagTemplate renders the release tag name from the package. The
	// package's name and version are available as {{.Name}} and
	// {{.Version}}.
	TagTemplate string `mapstructure:"tag_template" json:"tag_template"`
	// PushTags pushes release tags to the remote after creating them.
	PushTags bool `mapstructure:"push_tags" json:"push_tags"`
	// Remote is the remote tags are pushed to.
	Remote string `mapstructure:"remote" json:"remote"`
	// TaggerName and TaggerEmail identify the tag author.
	TaggerName  string `mapstructure:"tagger_name" json:"tagger_name,omitempty"`
	TaggerEmail string `mapstructure:"tagger_email" json:"tagger_email,omitempty"`
}

// ReleaseConfig configures release safety checks.
type ReleaseConfig struct {
	// CheckTag fails pre-release when the release tag already exists.
	CheckTag bool `mapstructure:"check_tag" json:"check_tag"`
	// EnsureLatest fails pre-release when an already-released version
	// is newer than the one being released.
	EnsureLatest bool `mapstructure:"ensure_latest" json:"ensure_latest"`
	// SkipRepoErrors downgrades repository errors during release to
	// logged warnings. Build, resolve, and hook failures still fail
	// the release.
	SkipRepoErrors bool `mapstructure:"skip_repo_errors" json:"skip_repo_errors"`
	// MaxChangelogChars truncates the changelog recorded with a
	// release. Zero disables truncation.
	MaxChangelogChars int `mapstructure:"max_changelog_chars" json:"max_changelog_chars"`
	// Hooks names the release hooks to run, in order. Builtin hooks
	// are resolved first, then executables in the hooks directory.
	Hooks []string `mapstructure:"hooks" json:"hooks,omitempty"`
}

// HooksConfig configures hook loading.
type HooksConfig struct {
	// Dir is the directory hook plugin executables are loaded from.
	Dir string `mapstructure:"dir" json:"dir"`
	// Command configures the builtin "command" hook.
	Command CommandHookConfig `mapstructure:"command" json:"command,omitempty"`
}

// CommandHookConfig configures the builtin command hook: shell commands
// run per release event.
type CommandHookConfig struct {
	// PreBuild, PreRelease, PostRelease, and ReleaseCancelled list the
	// commands run for each event, in order.
	PreBuild         []string `mapstructure:"pre_build" json:"pre_build,omitempty"`
	PreRelease       []string `mapstructure:"pre_release" json:"pre_release,omitempty"`
	PostRelease      []string `mapstructure:"post_release" json:"post_release,omitempty"`
	ReleaseCancelled []string `mapstructure:"release_cancelled" json:"release_cancelled,omitempty"`
	// CancelOnError turns a failing command into a release veto
	// instead of a logged warning.
	CancelOnError bool `mapstructure:"cancel_on_error" json:"cancel_on_error"`
}

// OutputConfig configures output settings.
type OutputConfig struct {
	// Format is the log output format (text, json).
	Format string `mapstructure:"format" json:"format"`
	// Color enables colored terminal output.
	Color bool `mapstructure:"color" json:"color"`
	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose" json:"verbose"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Packages: PackagesConfig{
			LocalPath:   "~/packages",
			ReleasePath: "",
		},
		Resolver: ResolverConfig{
			Timeout: 10 * time.Minute,
		},
		Build: BuildConfig{
			Directory: "build",
			System:    "command",
		},
		VCS: VCSConfig{
			TagTemplate: "{{.Name}}-{{.Version}}",
			PushTags:    false,
			Remote:      "origin",
		},
		Release: ReleaseConfig{
			CheckTag:          true,
			EnsureLatest:      true,
			SkipRepoErrors:    false,
			MaxChangelogChars: 65536,
		},
		Hooks: HooksConfig{
			Dir: ".packforge/hooks",
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    true,
			Verbose:  false,
			LogLevel: "info",
		},
	}
}
