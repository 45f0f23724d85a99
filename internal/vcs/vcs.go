// Package vcs defines the version control surface Packforge needs during
// a release: repository state validation, tag queries, tag creation,
// revisions, and changelogs. Concrete adapters register themselves by
// name; detection walks the registered adapters looking for their
// repository markers.
package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/fileutil"
)

// Adapter is one version control system bound to a working copy.
type Adapter interface {
	// Name identifies the adapter ("git").
	Name() string
	// Root is the absolute path of the working copy root.
	Root() string
	// ValidateRepoState fails when the working copy is not fit to
	// release from, for example when it has uncommitted changes.
	ValidateRepoState(ctx context.Context) error
	// TagExists reports whether a tag with the given name exists.
	TagExists(ctx context.Context, name string) (bool, error)
	// CreateReleaseTag tags the current revision with name, carrying
	// message when the backend supports annotated tags.
	CreateReleaseTag(ctx context.Context, name, message string) error
	// CurrentRevision returns an opaque identifier for the current
	// working copy revision.
	CurrentRevision(ctx context.Context) (string, error)
	// Changelog renders the commits since sinceRevision, or the full
	// history when sinceRevision is empty.
	Changelog(ctx context.Context, sinceRevision string) (string, error)
}

// Options carries adapter settings shared by all backends.
type Options struct {
	// Remote is the remote tags are pushed to. Empty means the
	// backend's conventional default.
	Remote string
	// PushTags pushes release tags after creating them.
	PushTags bool
	// TaggerName and TaggerEmail identify the tag author.
	TaggerName  string
	TaggerEmail string
}

// Factory constructs an adapter bound to the working copy at path.
type Factory func(path string, opts Options, logger *log.Logger) (Adapter, error)

type registration struct {
	marker  string
	factory Factory
}

var (
	mu       sync.RWMutex
	registry = make(map[string]registration)
)

// Register makes an adapter type available under name. The marker is a
// directory whose presence identifies a working copy of this type.
// Registering the same name twice panics.
func Register(name, marker string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("vcs: duplicate registration for %q", name))
	}
	registry[name] = registration{marker: marker, factory: f}
}

// New constructs the adapter registered under name for the working copy
// at path.
func New(name, path string, opts Options, logger *log.Logger) (Adapter, error) {
	mu.RLock()
	reg, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, pferrors.VCS("vcs.New", fmt.Sprintf("unknown vcs type %q", name))
	}
	return reg.factory(path, opts, logger)
}

// Detect finds the adapter type whose marker is present at path and
// constructs it. Adapters are probed in name order.
func Detect(path string, opts Options, logger *log.Logger) (Adapter, error) {
	mu.RLock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	regs := make([]registration, len(names))
	for i, n := range names {
		regs[i] = registry[n]
	}
	mu.RUnlock()

	for _, reg := range regs {
		if fileutil.IsDir(filepath.Join(path, reg.marker)) {
			return reg.factory(path, opts, logger)
		}
	}
	return nil, pferrors.VCS("vcs.Detect", fmt.Sprintf("no repository found at %s", path))
}
