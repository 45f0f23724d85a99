package pkgmeta

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/fileutil"
)

// MetadataFile is the package definition file name.
const MetadataFile = "package.toml"

// maxMetadataSize bounds metadata reads; definitions are small and
// anything larger is treated as corrupt.
const maxMetadataSize = 1 << 20

var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// manifest mirrors the on-disk package.toml layout. It is shared by the
// loader and by SaveDefinition, which writes installed definitions back
// in the same layout.
type manifest struct {
	Name                 string     `toml:"name"`
	Version              string     `toml:"version"`
	UUID                 string     `toml:"uuid,omitempty"`
	Description          string     `toml:"description,omitempty"`
	Authors              []string   `toml:"authors,omitempty"`
	Requires             []string   `toml:"requires,omitempty"`
	BuildRequires        []string   `toml:"build_requires,omitempty"`
	PrivateBuildRequires []string   `toml:"private_build_requires,omitempty"`
	Variants             [][]string `toml:"variants,omitempty"`
	Revision             string     `toml:"revision,omitempty"`

	Build struct {
		Command string `toml:"command,omitempty"`
	} `toml:"build,omitempty"`

	Config Overrides `toml:"config,omitempty"`
}

// Load reads and validates the package definition in dir.
func Load(dir string) (*Package, error) {
	const op = "pkgmeta.Load"

	path := filepath.Join(dir, MetadataFile)
	data, err := fileutil.ReadFileLimited(path, maxMetadataSize)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pferrors.NotFound(op, fmt.Sprintf("no %s in %s", MetadataFile, dir))
		}
		return nil, pferrors.IOWrap(err, op, fmt.Sprintf("failed to read %s", path))
	}

	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, pferrors.MetadataWrap(err, op, fmt.Sprintf("failed to parse %s", path))
	}

	pkg, err := fromManifest(&m)
	if err != nil {
		return nil, err
	}
	pkg.Location = dir
	return pkg, nil
}

func fromManifest(m *manifest) (*Package, error) {
	const op = "pkgmeta.Load"

	if m.Name == "" {
		return nil, pferrors.Metadata(op, "package name is required")
	}
	if !namePattern.MatchString(m.Name) {
		return nil, pferrors.Metadata(op, fmt.Sprintf("invalid package name %q", m.Name))
	}
	if m.Version == "" {
		return nil, pferrors.Metadata(op, fmt.Sprintf("package %s declares no version", m.Name))
	}

	version, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, pferrors.MetadataWrap(err, op, fmt.Sprintf("invalid version %q for package %s", m.Version, m.Name))
	}

	if m.UUID != "" {
		if _, err := uuid.Parse(m.UUID); err != nil {
			return nil, pferrors.MetadataWrap(err, op, fmt.Sprintf("invalid uuid for package %s", m.Name))
		}
	}

	pkg := &Package{
		Name:                 m.Name,
		Version:              version,
		UUID:                 m.UUID,
		Description:          m.Description,
		Authors:              m.Authors,
		Requires:             toRequirements(m.Requires),
		BuildRequires:        toRequirements(m.BuildRequires),
		PrivateBuildRequires: toRequirements(m.PrivateBuildRequires),
		BuildCommand:         m.Build.Command,
		Config:               m.Config,
		Revision:             m.Revision,
	}

	sets := make([][]Requirement, len(m.Variants))
	for i, vs := range m.Variants {
		if len(vs) == 0 {
			return nil, pferrors.Metadata(op, fmt.Sprintf("package %s variant %d is empty", m.Name, i))
		}
		sets[i] = toRequirements(vs)
	}
	pkg.setVariants(sets)

	return pkg, nil
}

func toRequirements(in []string) []Requirement {
	if len(in) == 0 {
		return nil
	}
	out := make([]Requirement, len(in))
	for i, s := range in {
		out[i] = Requirement(s)
	}
	return out
}
