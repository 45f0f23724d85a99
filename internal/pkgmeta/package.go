// Package pkgmeta defines the package metadata model for Packforge.
// A Package describes the thing being built or released: identity,
// requirements, declared variants, and per-package configuration
// overrides. Packages are loaded once per invocation and never mutated.
package pkgmeta

import (
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// Requirement is a single dependency request, passed opaquely to the
// resolution engine (for example "python-3.11" or "boost-1.82+<2").
type Requirement string

// Overrides holds per-package configuration overrides from package.toml.
// Unset fields fall back to the tool configuration.
type Overrides struct {
	// ReleaseHooks names the hooks to run for this package.
	ReleaseHooks []string `toml:"release_hooks,omitempty"`
	// TagTemplate overrides the release tag name template.
	TagTemplate string `toml:"tag_template,omitempty"`
	// MaxChangelogChars overrides the changelog truncation limit.
	// Zero disables truncation; nil means unset.
	MaxChangelogChars *int `toml:"max_changelog_chars,omitempty"`
	// CheckTag overrides whether pre-release checks for tag collisions.
	CheckTag *bool `toml:"check_tag,omitempty"`
}

// Package is the immutable metadata of one package.
type Package struct {
	Name                 string
	Version              *semver.Version
	UUID                 string
	Description          string
	Authors              []string
	Requires             []Requirement
	BuildRequires        []Requirement
	PrivateBuildRequires []Requirement
	BuildCommand         string
	Config               Overrides

	// Revision is the VCS revision recorded at release time. Empty for
	// packages loaded from a working directory.
	Revision string
	// Location is the directory the package was loaded from.
	Location string

	variants []*Variant
}

// QualifiedName returns "name-version".
func (p *Package) QualifiedName() string {
	if p.Version == nil {
		return p.Name
	}
	return fmt.Sprintf("%s-%s", p.Name, p.Version)
}

// Variants returns the package's variants in declaration order. A package
// that declares no variant requirement sets has exactly one implicit
// variant with no extra requirements.
func (p *Package) Variants() []*Variant {
	return p.variants
}

// NumVariants returns the number of variants.
func (p *Package) NumVariants() int {
	return len(p.variants)
}

// Variant returns the variant at the given index.
func (p *Package) Variant(index int) (*Variant, bool) {
	if index < 0 || index >= len(p.variants) {
		return nil, false
	}
	return p.variants[index], true
}

// InstallPath returns the installation directory for this package under
// the given repository root: <root>/<name>/<version>.
func (p *Package) InstallPath(root string) string {
	if p.Version == nil {
		return filepath.Join(root, p.Name)
	}
	return filepath.Join(root, p.Name, p.Version.String())
}

// setVariants wires the variant list from declared requirement sets.
func (p *Package) setVariants(sets [][]Requirement) {
	if len(sets) == 0 {
		p.variants = []*Variant{{Index: 0, pkg: p}}
		return
	}
	p.variants = make([]*Variant, len(sets))
	for i, reqs := range sets {
		p.variants[i] = &Variant{Index: i, Requires: reqs, pkg: p}
	}
}

// Variant is one buildable configuration of a package, identified by its
// zero-based position in the package's variant sequence.
type Variant struct {
	// Index is the variant's position in the declaration order.
	Index int
	// Requires holds the variant-specific requirements, on top of the
	// package-level requirement lists.
	Requires []Requirement

	pkg *Package
}

// Package returns the owning package.
func (v *Variant) Package() *Package {
	return v.pkg
}

// QualifiedName returns "name-version[index]".
func (v *Variant) QualifiedName() string {
	return fmt.Sprintf("%s[%d]", v.pkg.QualifiedName(), v.Index)
}

// FullRequires assembles the complete requirement list for resolving this
// variant: package requirements, variant requirements, and optionally the
// build-time and private build-time requirement lists.
func (v *Variant) FullRequires(buildRequires, privateBuildRequires bool) []Requirement {
	reqs := make([]Requirement, 0,
		len(v.pkg.Requires)+len(v.Requires)+len(v.pkg.BuildRequires)+len(v.pkg.PrivateBuildRequires))
	reqs = append(reqs, v.pkg.Requires...)
	reqs = append(reqs, v.Requires...)
	if buildRequires {
		reqs = append(reqs, v.pkg.BuildRequires...)
	}
	if privateBuildRequires {
		reqs = append(reqs, v.pkg.PrivateBuildRequires...)
	}
	return reqs
}

// Subpath returns the variant's install subdirectory relative to the
// package install path, one path segment per variant requirement.
// Packages without declared variants install at the package root.
func (v *Variant) Subpath() string {
	if len(v.Requires) == 0 {
		return ""
	}
	parts := make([]string, len(v.Requires))
	for i, r := range v.Requires {
		parts[i] = string(r)
	}
	return filepath.Join(parts...)
}
