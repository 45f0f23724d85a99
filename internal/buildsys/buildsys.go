// Package buildsys invokes the build tool for one variant. Build systems
// are registered by name; the "command" system runs the package's declared
// build command through the shell inside the resolved environment.
package buildsys

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/pkgmeta"
	"github.com/packforge/packforge/internal/resolver"
)

// Options carries the per-invocation build parameters.
type Options struct {
	// BuildPath is the variant's build directory. The caller creates it
	// and persists the build context there before Build runs, so build
	// systems must not remove it.
	BuildPath string
	// InstallPath is where the built payload lands when Install is set.
	InstallPath string
	// Clean asks the build tool for a from-scratch build.
	Clean bool
	// Install installs the payload after a successful build.
	Install bool
	// Output receives the build tool's combined output. Nil discards it.
	Output io.Writer
}

// Result describes a finished build.
type Result struct {
	// EnvScript is the path of the environment script written into the
	// build directory, empty if the system produced none.
	EnvScript string
}

// BuildSystem builds one variant inside a resolved environment.
type BuildSystem interface {
	// Name identifies the system in configuration.
	Name() string
	// Build compiles variant inside bctx, installing when opts.Install
	// is set. Failures carry the build error kind.
	Build(ctx context.Context, variant *pkgmeta.Variant, bctx *resolver.BuildContext, opts Options) (*Result, error)
}

// Factory constructs a registered build system.
type Factory func(logger *log.Logger) BuildSystem

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register makes a build system available under name. Registering the
// same name twice panics.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("buildsys: duplicate registration for %q", name))
	}
	registry[name] = f
}

// New constructs the build system registered under name.
func New(name string, logger *log.Logger) (BuildSystem, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, pferrors.Build("buildsys.New",
			fmt.Sprintf("unknown build system %q (available: %s)", name, strings.Join(Names(), ", ")))
	}
	return f(logger), nil
}

// Names lists the registered build systems in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
