package pkgmeta

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/fileutil"
)

// SaveDefinition writes pkg's definition into dir as package.toml,
// stamped with revision when one is given. Installed and released
// definitions are read back through Load, so the file carries every
// field the loader understands.
func SaveDefinition(pkg *Package, dir, revision string) error {
	const op = "pkgmeta.SaveDefinition"

	m := toManifest(pkg)
	m.Revision = revision

	data, err := toml.Marshal(m)
	if err != nil {
		return pferrors.MetadataWrap(err, op,
			fmt.Sprintf("failed to encode definition for %s", pkg.QualifiedName()))
	}

	path := filepath.Join(dir, MetadataFile)
	if err := fileutil.AtomicWriteFile(path, data, 0o644); err != nil {
		return pferrors.IOWrap(err, op, fmt.Sprintf("failed to write %s", path))
	}
	return nil
}

// toManifest converts a Package back to its on-disk layout.
func toManifest(pkg *Package) *manifest {
	m := &manifest{
		Name:                 pkg.Name,
		UUID:                 pkg.UUID,
		Description:          pkg.Description,
		Authors:              pkg.Authors,
		Requires:             fromRequirements(pkg.Requires),
		BuildRequires:        fromRequirements(pkg.BuildRequires),
		PrivateBuildRequires: fromRequirements(pkg.PrivateBuildRequires),
		Config:               pkg.Config,
	}
	if pkg.Version != nil {
		m.Version = pkg.Version.String()
	}
	m.Build.Command = pkg.BuildCommand

	// A single variant with no requirements is the implicit one Load
	// fabricates for packages that declare none.
	if len(pkg.variants) > 1 || (len(pkg.variants) == 1 && len(pkg.variants[0].Requires) > 0) {
		m.Variants = make([][]string, len(pkg.variants))
		for i, v := range pkg.variants {
			m.Variants[i] = fromRequirements(v.Requires)
		}
	}
	return m
}

func fromRequirements(in []Requirement) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, r := range in {
		out[i] = string(r)
	}
	return out
}
