package resolver

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/fileutil"
	"github.com/packforge/packforge/internal/pkgmeta"
)

// ContextFileName is the file a build context is persisted to inside a
// variant's build directory.
const ContextFileName = "build.rctx"

// maxContextSize bounds context file reads.
const maxContextSize = 8 << 20

// Status is the outcome of a resolution attempt.
type Status string

const (
	// StatusSolved means the engine produced a usable environment.
	StatusSolved Status = "solved"
	// StatusFailed means resolution failed for an unspecified reason.
	StatusFailed Status = "failed"
	// StatusUnsatisfiable means the requirements conflict.
	StatusUnsatisfiable Status = "unsatisfiable"
	// StatusAborted means resolution was interrupted.
	StatusAborted Status = "aborted"
)

// ResolvedPackage is one package selected by the engine.
type ResolvedPackage struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Root    string `yaml:"root" json:"root"`
}

// BuildContext is the resolved environment for one variant. It is created
// fresh per resolution attempt and persisted to disk before its status is
// inspected, so failed resolutions remain inspectable.
type BuildContext struct {
	Status             Status                `yaml:"status"`
	Requests           []pkgmeta.Requirement `yaml:"requests"`
	SearchPaths        []string              `yaml:"search_paths"`
	Building           bool                  `yaml:"building"`
	CreatedAt          time.Time             `yaml:"created_at"`
	Resolved           []ResolvedPackage     `yaml:"resolved,omitempty"`
	Environ            map[string]string     `yaml:"environ,omitempty"`
	FailureDescription string                `yaml:"failure,omitempty"`
}

// Solved reports whether the context is usable for building.
func (c *BuildContext) Solved() bool {
	return c.Status == StatusSolved
}

// EnvironList returns the resolved environment as KEY=VALUE pairs in
// stable order, suitable for exec.Cmd.
func (c *BuildContext) EnvironList() []string {
	keys := make([]string, 0, len(c.Environ))
	for k := range c.Environ {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, len(keys))
	for i, k := range keys {
		env[i] = fmt.Sprintf("%s=%s", k, c.Environ[k])
	}
	return env
}

// Save persists the context to path. The write is atomic so a context
// file is never observable half-written.
func (c *BuildContext) Save(path string) error {
	const op = "resolver.Save"

	data, err := yaml.Marshal(c)
	if err != nil {
		return pferrors.InternalWrap(err, op, "failed to marshal build context")
	}
	if err := fileutil.AtomicWriteFile(path, data, 0o644); err != nil {
		return pferrors.IOWrap(err, op, fmt.Sprintf("failed to write %s", path))
	}
	return nil
}

// LoadContext reads a persisted build context.
func LoadContext(path string) (*BuildContext, error) {
	const op = "resolver.LoadContext"

	data, err := fileutil.ReadFileLimited(path, maxContextSize)
	if err != nil {
		return nil, pferrors.IOWrap(err, op, fmt.Sprintf("failed to read %s", path))
	}
	var c BuildContext
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, pferrors.IOWrap(err, op, fmt.Sprintf("failed to parse %s", path))
	}
	return &c, nil
}
