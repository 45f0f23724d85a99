// Package config provides configuration management for Packforge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	pferrors "github.com/packforge/packforge/internal/errors"
)

// ConfigFileNames are the base names searched for a config file.
var ConfigFileNames = []string{"packforge", ".packforge"}

// ConfigFileExtensions are the extensions searched for a config file.
var ConfigFileExtensions = []string{"yaml", "yml"}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Loader handles configuration loading and merging.
type Loader struct {
	v           *viper.Viper
	configPath  string
	searchPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("PACKFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:           v,
		searchPaths: []string{"."},
	}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithSearchPaths adds directories to search for config files.
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	l.searchPaths = append(l.searchPaths, paths...)
	return l
}

// Load loads the configuration.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	path := l.configPath
	if path == "" {
		// Absence of a config file is not an error, defaults apply.
		path = findConfigIn(l.searchPaths)
	}
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, pferrors.ConfigWrap(
				fmt.Errorf("reading config file %s: %w", path, err), op, "failed to load config file")
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, pferrors.ConfigWrap(err, op, "failed to unmarshal config")
	}

	expandPaths(cfg)

	return cfg, nil
}

// setDefaults sets default values using Viper.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("packages.local_path", defaults.Packages.LocalPath)
	l.v.SetDefault("packages.release_path", defaults.Packages.ReleasePath)

	l.v.SetDefault("resolver.timeout", defaults.Resolver.Timeout)

	l.v.SetDefault("build.directory", defaults.Build.Directory)
	l.v.SetDefault("build.system", defaults.Build.System)

	l.v.SetDefault("vcs.tag_template", defaults.VCS.TagTemplate)
	l.v.SetDefault("vcs.push_tags", defaults.VCS.PushTags)
	l.v.SetDefault("vcs.remote", defaults.VCS.Remote)

	l.v.SetDefault("release.check_tag", defaults.Release.CheckTag)
	l.v.SetDefault("release.ensure_latest", defaults.Release.EnsureLatest)
	l.v.SetDefault("release.skip_repo_errors", defaults.Release.SkipRepoErrors)
	l.v.SetDefault("release.max_changelog_chars", defaults.Release.MaxChangelogChars)

	l.v.SetDefault("hooks.dir", defaults.Hooks.Dir)

	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.color", defaults.Output.Color)
	l.v.SetDefault("output.verbose", defaults.Output.Verbose)
	l.v.SetDefault("output.log_level", defaults.Output.LogLevel)
}

// findConfigIn returns the first config file found under dirs, or "".
// Plain names are preferred over dotfiles, yaml over yml.
func findConfigIn(dirs []string) string {
	for _, dir := range dirs {
		for _, name := range ConfigFileNames {
			for _, ext := range ConfigFileExtensions {
				candidate := filepath.Join(dir, name+"."+ext)
				if _, err := os.Stat(candidate); err == nil {
					return candidate
				}
			}
		}
	}
	return ""
}

// expandPaths expands environment variables and the home shorthand in
// path-valued settings.
func expandPaths(cfg *Config) {
	cfg.Packages.LocalPath = expandPath(cfg.Packages.LocalPath)
	cfg.Packages.ReleasePath = expandPath(cfg.Packages.ReleasePath)
	for i, p := range cfg.Packages.NonLocalPaths {
		cfg.Packages.NonLocalPaths[i] = expandPath(p)
	}
	cfg.Resolver.Command = expandPath(cfg.Resolver.Command)
	cfg.Hooks.Dir = expandPath(cfg.Hooks.Dir)
}

// expandPath expands ${VAR}, ${VAR:-default}, and a leading ~ in a path.
func expandPath(s string) string {
	if s == "" {
		return s
	}

	s = envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, fallback := groups[1], groups[2]
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})

	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s[1:], "/"))
		}
	}
	return s
}

// GetConfigPath returns the path to the loaded config file, if any.
func (l *Loader) GetConfigPath() string {
	return l.v.ConfigFileUsed()
}

// WriteConfig writes the configuration to a file.
func WriteConfig(cfg *Config, path string) error {
	const op = "config.WriteConfig"

	v := viper.New()
	v.Set("packages", cfg.Packages)
	v.Set("resolver", cfg.Resolver)
	v.Set("build", cfg.Build)
	v.Set("vcs", cfg.VCS)
	v.Set("release", cfg.Release)
	v.Set("hooks", cfg.Hooks)
	v.Set("output", cfg.Output)

	if err := v.WriteConfigAs(path); err != nil {
		return pferrors.ConfigWrap(err, op, "failed to write config file")
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to a file.
func WriteDefaultConfig(path string) error {
	return WriteConfig(DefaultConfig(), path)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// LoadFromDirectory loads configuration from a directory.
func LoadFromDirectory(dir string) (*Config, error) {
	return NewLoader().WithSearchPaths(dir).Load()
}

// FindConfigFile searches for a config file and returns its path.
func FindConfigFile(searchPaths ...string) (string, error) {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}
	if found := findConfigIn(searchPaths); found != "" {
		return found, nil
	}
	return "", pferrors.NotFound("config.FindConfigFile", "no config file found")
}

// ConfigExists returns true if a config file exists in the given directory.
func ConfigExists(dir string) bool {
	_, err := FindConfigFile(dir)
	return err == nil
}
