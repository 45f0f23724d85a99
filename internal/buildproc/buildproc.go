// Package buildproc orchestrates the build and release life-cycle of a
// package across its variants. It sequences the resolution engine, the
// build system, the version control adapter, and the release hooks, and
// enforces the release-safety invariants between them.
package buildproc

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/packforge/packforge/internal/buildsys"
	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/hooks"
	"github.com/packforge/packforge/internal/observability"
	"github.com/packforge/packforge/internal/pkgmeta"
	"github.com/packforge/packforge/internal/resolver"
	"github.com/packforge/packforge/internal/vcs"
)

// BuildProcess builds and releases one package. Implementations are
// strategies registered by name; "local" is the default.
type BuildProcess interface {
	Build(ctx context.Context, opts BuildOptions) (*BuildResult, error)
	Release(ctx context.Context, opts ReleaseOptions) (*ReleaseResult, error)
}

// Config wires a build process to its collaborators. One Config is
// constructed per run and passed down; there is no ambient state.
type Config struct {
	// WorkingDir is the package source checkout being built.
	WorkingDir string
	// Package is the loaded package metadata.
	Package *pkgmeta.Package
	// Resolver turns requirement lists into build contexts.
	Resolver resolver.Resolver
	// BuildSystem invokes the package's build tool for one variant.
	BuildSystem buildsys.BuildSystem
	// VCS is the version control adapter bound to WorkingDir. Optional;
	// release requires it, build never touches it.
	VCS vcs.Adapter
	// Hooks are the loaded release hooks, in load order.
	Hooks []hooks.ReleaseHook
	// HookRunner delivers lifecycle events to Hooks.
	HookRunner *hooks.Runner

	Logger  *log.Logger
	Output  io.Writer
	Metrics *observability.Metrics

	// LocalPackagesPath is where local builds install to.
	LocalPackagesPath string
	// ReleasePackagesPath is where releases install to and where the
	// guard scans for already-released versions.
	ReleasePackagesPath string
	// NonLocalPaths are the shared package search paths.
	NonLocalPaths []string
	// BuildDirectory is the build scratch directory, relative to
	// WorkingDir unless absolute.
	BuildDirectory string

	// TagTemplate renders the release tag name from the package fields.
	TagTemplate string
	// CheckTag enables the tag-collision guard check.
	CheckTag bool
	// IgnoreExistingTag skips the tag-collision check for this run.
	IgnoreExistingTag bool
	// EnsureLatest fails the release when a newer version is already
	// released.
	EnsureLatest bool
	// SkipErrors downgrades VCS errors in guard checks and tagging to
	// logged warnings. It never applies to any other error class.
	SkipErrors bool
	// MaxChangelogChars bounds the changelog stored in release records.
	// Zero or negative means unbounded.
	MaxChangelogChars int
}

// Factory constructs a registered build process strategy.
type Factory func(cfg Config) (BuildProcess, error)

var (
	processMu sync.RWMutex
	processes = make(map[string]Factory)
)

// RegisterProcess makes a build process strategy available under name.
// It panics if name is already taken.
func RegisterProcess(name string, factory Factory) {
	processMu.Lock()
	defer processMu.Unlock()

	if _, dup := processes[name]; dup {
		panic(fmt.Sprintf("buildproc: RegisterProcess called twice for %q", name))
	}
	processes[name] = factory
}

// NewProcess constructs the strategy registered under name.
func NewProcess(name string, cfg Config) (BuildProcess, error) {
	const op = "buildproc.NewProcess"

	processMu.RLock()
	factory, ok := processes[name]
	processMu.RUnlock()

	if !ok {
		return nil, pferrors.Buildf(op, "unknown build process %q, available: %s",
			name, strings.Join(ProcessNames(), ", "))
	}
	return factory(cfg)
}

// ProcessNames returns the registered strategy names, sorted.
func ProcessNames() []string {
	processMu.RLock()
	defer processMu.RUnlock()

	names := make([]string, 0, len(processes))
	for name := range processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
