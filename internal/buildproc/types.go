package buildproc

// BuildType selects which package search paths resolution uses. It has
// no other effect.
type BuildType int

const (
	// BuildTypeLocal resolves against the local packages path plus the
	// nonlocal paths.
	BuildTypeLocal BuildType = iota
	// BuildTypeCentral resolves against the nonlocal paths only.
	BuildTypeCentral
)

func (t BuildType) String() string {
	switch t {
	case BuildTypeLocal:
		return "local"
	case BuildTypeCentral:
		return "central"
	default:
		return "unknown"
	}
}

// BuildOptions control a single build invocation.
type BuildOptions struct {
	// InstallPath overrides the local packages path as the install root.
	InstallPath string
	// Clean wipes each variant's build directory before building.
	Clean bool
	// Install installs each built variant into the install root.
	Install bool
	// Variants filters which variant indices are built. Empty means all.
	Variants []int
}

// ReleaseOptions control a single release invocation.
type ReleaseOptions struct {
	// Message is the release message recorded in the VCS tag and handed
	// to hooks.
	Message string
	// Variants filters which variant indices are released. Empty means
	// all.
	Variants []int
}

// VariantResult describes one built variant.
type VariantResult struct {
	// Variant is the variant's declaration index.
	Variant int
	// BuildPath is the directory the variant was built in.
	BuildPath string
	// InstallPath is where the variant was installed, empty for
	// build-only runs.
	InstallPath string
	// ContextFile is the persisted build context path.
	ContextFile string
	// EnvScript is the build environment script the build system wrote,
	// if any.
	EnvScript string
}

// BuildResult is the outcome of a successful build.
type BuildResult struct {
	Package  string
	Visited  int
	Variants []VariantResult
}

// ReleaseResult is the auditable outcome of a successful release.
type ReleaseResult struct {
	Package          string
	Version          string
	TagName          string
	Revision         string
	Changelog        string
	PreviousVersion  string
	PreviousRevision string
	Visited          int
	Variants         []VariantResult
	Transitions      []Transition
}

// releaseData is the audit information assembled before a release is
// announced to hooks.
type releaseData struct {
	revision         string
	changelog        string
	previousVersion  string
	previousRevision string
}
