package buildproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/packforge/packforge/internal/buildsys"
	"github.com/packforge/packforge/internal/observability"
	"github.com/packforge/packforge/internal/pkgmeta"
	"github.com/packforge/packforge/internal/resolver"
	"github.com/packforge/packforge/pkg/hook"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

func loadPackage(t *testing.T, manifest string) *pkgmeta.Package {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, pkgmeta.MetadataFile), []byte(manifest), 0o644))
	pkg, err := pkgmeta.Load(dir)
	require.NoError(t, err)
	return pkg
}

// writeReleased fabricates a released package under root, laid out the
// way the release repository expects it.
func writeReleased(t *testing.T, root, name, version, uuid, revision string) string {
	t.Helper()
	dir := filepath.Join(root, name, version)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := fmt.Sprintf("name = %q\nversion = %q\n", name, version)
	if uuid != "" {
		manifest += fmt.Sprintf("uuid = %q\n", uuid)
	}
	if revision != "" {
		manifest += fmt.Sprintf("revision = %q\n", revision)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, pkgmeta.MetadataFile), []byte(manifest), 0o644))
	return dir
}

// fakeResolver returns canned contexts and records every request.
type fakeResolver struct {
	status   resolver.Status
	failure  string
	err      error
	requests []resolver.Request
}

func (f *fakeResolver) Resolve(_ context.Context, req resolver.Request) (*resolver.BuildContext, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == "" {
		status = resolver.StatusSolved
	}
	return &resolver.BuildContext{
		Status:             status,
		Requests:           req.Requirements,
		SearchPaths:        req.SearchPaths,
		Building:           req.Building,
		FailureDescription: f.failure,
	}, nil
}

// fakeBuildSystem records invocations and can fail a specific variant.
type fakeBuildSystem struct {
	name      string
	err       error
	failAfter int
	envScript string
	variants  []string
	builds    []buildsys.Options
}

func (f *fakeBuildSystem) Name() string {
	if f.name == "" {
		return "command"
	}
	return f.name
}

func (f *fakeBuildSystem) Build(_ context.Context, variant *pkgmeta.Variant, _ *resolver.BuildContext, opts buildsys.Options) (*buildsys.Result, error) {
	f.variants = append(f.variants, variant.QualifiedName())
	f.builds = append(f.builds, opts)
	if f.err != nil && len(f.builds) > f.failAfter {
		return nil, f.err
	}
	return &buildsys.Result{EnvScript: f.envScript}, nil
}

// fakeVCS answers repository queries with canned data and records tags.
type fakeVCS struct {
	root string

	validateErr  error
	tagExistsErr error
	tagErr       error
	revisionErr  error
	changelogErr error

	tagExists bool
	revision  string
	changelog string

	tags        []string
	tagMessages []string
}

func (f *fakeVCS) Name() string { return "git" }
func (f *fakeVCS) Root() string { return f.root }

func (f *fakeVCS) ValidateRepoState(context.Context) error { return f.validateErr }

func (f *fakeVCS) TagExists(_ context.Context, _ string) (bool, error) {
	return f.tagExists, f.tagExistsErr
}

func (f *fakeVCS) CreateReleaseTag(_ context.Context, name, message string) error {
	if f.tagErr != nil {
		return f.tagErr
	}
	f.tags = append(f.tags, name)
	f.tagMessages = append(f.tagMessages, message)
	return nil
}

func (f *fakeVCS) CurrentRevision(context.Context) (string, error) {
	return f.revision, f.revisionErr
}

func (f *fakeVCS) Changelog(context.Context, string) (string, error) {
	return f.changelog, f.changelogErr
}

// journalHook records the events it receives, in order, and can veto or
// fail a configured event.
type journalHook struct {
	name      string
	cancelOn  hook.Event
	failOn    hook.Event
	failErr   error
	events    []hook.Event
	lastCtx   hook.Context
	callCount int
}

func (j *journalHook) Name() string { return j.name }

func (j *journalHook) handle(event hook.Event, hctx hook.Context) error {
	j.callCount++
	j.events = append(j.events, event)
	j.lastCtx = hctx
	if event == j.cancelOn {
		return hook.Cancel("vetoed by %s", j.name)
	}
	if event == j.failOn {
		return j.failErr
	}
	return nil
}

func (j *journalHook) PreBuild(_ context.Context, hctx hook.Context) error {
	return j.handle(hook.EventPreBuild, hctx)
}

func (j *journalHook) PreRelease(_ context.Context, hctx hook.Context) error {
	return j.handle(hook.EventPreRelease, hctx)
}

func (j *journalHook) PostRelease(_ context.Context, hctx hook.Context) error {
	return j.handle(hook.EventPostRelease, hctx)
}

func (j *journalHook) ReleaseCancelled(_ context.Context, hctx hook.Context) error {
	return j.handle(hook.EventReleaseCancelled, hctx)
}

const testManifest = `
name = "maya"
version = "2024.1.0"
uuid = "8e0c2b1a-4b4e-4f58-9d3c-6e7c1a2b3c4d"
requires = ["python-3.11"]
build_requires = ["cmake-3.27"]
variants = [["platform-linux"], ["platform-windows"], ["platform-osx"]]
`

// testManifestAt is testManifest at a different version.
func testManifestAt(version string) string {
	return strings.Replace(testManifest, "2024.1.0", version, 1)
}

// newTestConfig wires a Config against fakes and temp directories. The
// returned fakes can be reconfigured before constructing the process.
func newTestConfig(t *testing.T) (Config, *fakeResolver, *fakeBuildSystem, *fakeVCS) {
	t.Helper()

	workingDir := t.TempDir()
	pkg := loadPackageAt(t, workingDir, testManifest)

	res := &fakeResolver{}
	bs := &fakeBuildSystem{}
	vc := &fakeVCS{root: workingDir, revision: "rev-head"}

	cfg := Config{
		WorkingDir:          workingDir,
		Package:             pkg,
		Resolver:            res,
		BuildSystem:         bs,
		VCS:                 vc,
		Logger:              discardLogger(),
		Output:              io.Discard,
		Metrics:             observability.NewMetrics("test"),
		LocalPackagesPath:   t.TempDir(),
		ReleasePackagesPath: t.TempDir(),
		NonLocalPaths:       []string{"/shared/packages"},
		CheckTag:            true,
		EnsureLatest:        true,
	}
	return cfg, res, bs, vc
}

func loadPackageAt(t *testing.T, dir, manifest string) *pkgmeta.Package {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, pkgmeta.MetadataFile), []byte(manifest), 0o644))
	pkg, err := pkgmeta.Load(dir)
	require.NoError(t, err)
	return pkg
}
