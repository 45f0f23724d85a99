package integration

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/packforge/packforge/internal/buildproc"
	"github.com/packforge/packforge/internal/buildsys"
	"github.com/packforge/packforge/internal/config"
	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/hooks"
	"github.com/packforge/packforge/internal/observability"
	"github.com/packforge/packforge/internal/pkgmeta"
	"github.com/packforge/packforge/internal/resolver"
	"github.com/packforge/packforge/internal/vcs"
	"github.com/packforge/packforge/internal/vcs/git"
)

// buildScript writes the resolved marker into the build directory and
// installs it when asked to.
const buildScript = `echo "$RESOLVED_MARKER" > artifact.txt && ` +
	`if [ "$PACKFORGE_INSTALL" = "1" ]; then cp artifact.txt "$PACKFORGE_INSTALL_PATH/"; fi`

// workflowEnv holds the real collaborators wired against a test repo.
type workflowEnv struct {
	repo    *TestRepo
	cfg     buildproc.Config
	central string
	local   string
}

func newWorkflowEnv(t *testing.T, buildCommand string) *workflowEnv {
	t.Helper()
	RequireGit(t)

	repo := NewTestRepo(t)
	repo.WriteManifest("maya", "2024.1.0", buildCommand)
	repo.Commit("initial import")

	return wireWorkflow(t, repo)
}

// wireWorkflow assembles a buildproc.Config from real components: the
// git adapter, the command build system, a subprocess resolution engine,
// and the builtin record hook.
func wireWorkflow(t *testing.T, repo *TestRepo) *workflowEnv {
	t.Helper()

	logger := discardLogger()

	pkg, err := pkgmeta.Load(repo.Dir)
	if err != nil {
		t.Fatalf("pkgmeta.Load failed: %v", err)
	}

	adapter, err := git.New(repo.Dir, vcs.Options{}, logger)
	if err != nil {
		t.Fatalf("git.New failed: %v", err)
	}

	bs, err := buildsys.New(buildsys.SystemCommand, logger)
	if err != nil {
		t.Fatalf("buildsys.New failed: %v", err)
	}

	manager := hooks.NewManager(config.DefaultConfig(), logger)
	t.Cleanup(manager.Close)
	loaded, err := manager.Load([]string{hooks.RecordHookName})
	if err != nil {
		t.Fatalf("hooks.Load failed: %v", err)
	}

	env := &workflowEnv{
		repo:    repo,
		central: t.TempDir(),
		local:   t.TempDir(),
	}
	env.cfg = buildproc.Config{
		WorkingDir:          repo.Dir,
		Package:             pkg,
		Resolver:            resolver.NewExecResolver(WriteSolver(t), nil, 30*time.Second, logger),
		BuildSystem:         bs,
		VCS:                 adapter,
		Hooks:               loaded,
		HookRunner:          hooks.NewRunner(logger),
		Logger:              logger,
		Output:              io.Discard,
		Metrics:             observability.NewMetrics("integration"),
		LocalPackagesPath:   env.local,
		ReleasePackagesPath: env.central,
		NonLocalPaths:       []string{env.central},
		BuildDirectory:      "build",
		CheckTag:            true,
		EnsureLatest:        true,
	}
	return env
}

func (e *workflowEnv) process(t *testing.T) buildproc.BuildProcess {
	t.Helper()
	proc, err := buildproc.NewProcess(buildproc.ProcessLocal, e.cfg)
	if err != nil {
		t.Fatalf("buildproc.NewProcess failed: %v", err)
	}
	return proc
}

// reload re-reads the package manifest after the test edited it.
func (e *workflowEnv) reload(t *testing.T) {
	t.Helper()
	pkg, err := pkgmeta.Load(e.repo.Dir)
	if err != nil {
		t.Fatalf("pkgmeta.Load failed: %v", err)
	}
	e.cfg.Package = pkg
}

func TestBuildWorkflowInstallsVariant(t *testing.T) {
	env := newWorkflowEnv(t, buildScript)

	result, err := env.process(t).Build(context.Background(), buildproc.BuildOptions{Install: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if result.Package != "maya-2024.1.0" {
		t.Errorf("result package = %q, want maya-2024.1.0", result.Package)
	}
	if result.Visited != 1 {
		t.Errorf("visited %d variants, want 1", result.Visited)
	}

	versionDir := filepath.Join(env.local, "maya", "2024.1.0")

	artifact, err := os.ReadFile(filepath.Join(versionDir, "platform-linux", "artifact.txt"))
	if err != nil {
		t.Fatalf("installed artifact missing: %v", err)
	}
	if got := strings.TrimSpace(string(artifact)); got != "from-engine" {
		t.Errorf("artifact content = %q, want the resolved environment marker", got)
	}

	bctx, err := resolver.LoadContext(result.Variants[0].ContextFile)
	if err != nil {
		t.Fatalf("persisted build context unreadable: %v", err)
	}
	if !bctx.Solved() {
		t.Errorf("persisted context status = %q, want solved", bctx.Status)
	}
	if bctx.Environ["RESOLVED_MARKER"] != "from-engine" {
		t.Errorf("context environ = %v, want the engine's marker", bctx.Environ)
	}

	if _, err := os.Stat(result.Variants[0].EnvScript); err != nil {
		t.Errorf("environment script missing: %v", err)
	}

	installed, err := pkgmeta.Load(versionDir)
	if err != nil {
		t.Fatalf("installed definition unreadable: %v", err)
	}
	if installed.Revision != "" {
		t.Errorf("local install stamped revision %q, want none", installed.Revision)
	}
}

func TestReleaseWorkflow(t *testing.T) {
	env := newWorkflowEnv(t, buildScript)
	env.repo.WriteFile("src/main.cpp", "int main() {}")
	head := env.repo.Commit("add importer")

	result, err := env.process(t).Release(context.Background(),
		buildproc.ReleaseOptions{Message: "first drop"})
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if result.TagName != "maya-2024.1.0" {
		t.Errorf("tag name = %q, want maya-2024.1.0", result.TagName)
	}
	if !env.repo.HasTag("maya-2024.1.0") {
		t.Error("release tag missing from the repository")
	}
	if got := env.repo.TagMessage("maya-2024.1.0"); got != "first drop" {
		t.Errorf("tag message = %q, want the release message", got)
	}
	if result.Revision != head {
		t.Errorf("result revision = %q, want HEAD %q", result.Revision, head)
	}
	if result.PreviousVersion != "" {
		t.Errorf("previous version = %q, want none on a first release", result.PreviousVersion)
	}
	if !strings.Contains(result.Changelog, "add importer") {
		t.Errorf("changelog %q should list the commit subjects", result.Changelog)
	}
	if len(result.Transitions) != 6 {
		t.Errorf("release recorded %d transitions, want 6", len(result.Transitions))
	}

	versionDir := filepath.Join(env.central, "maya", "2024.1.0")
	if _, err := os.Stat(filepath.Join(versionDir, "platform-linux", "artifact.txt")); err != nil {
		t.Errorf("released artifact missing: %v", err)
	}

	released, err := pkgmeta.Load(versionDir)
	if err != nil {
		t.Fatalf("released definition unreadable: %v", err)
	}
	if released.Revision != head {
		t.Errorf("released definition revision = %q, want %q", released.Revision, head)
	}

	record, err := os.ReadFile(filepath.Join(versionDir, hooks.RecordFileName))
	if err != nil {
		t.Fatalf("release record missing: %v", err)
	}
	for _, want := range []string{"package: maya", "version: 2024.1.0", "tag_name: maya-2024.1.0"} {
		if !strings.Contains(string(record), want) {
			t.Errorf("release record should contain %q:\n%s", want, record)
		}
	}
}

func TestReleaseSequenceTracksPreviousRelease(t *testing.T) {
	env := newWorkflowEnv(t, buildScript)

	if _, err := env.process(t).Release(context.Background(),
		buildproc.ReleaseOptions{Message: "first"}); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	firstHead := env.repo.HeadHash()

	env.repo.WriteManifest("maya", "2024.2.0", buildScript)
	env.repo.Commit("bump to 2024.2.0")
	env.reload(t)

	result, err := env.process(t).Release(context.Background(),
		buildproc.ReleaseOptions{Message: "second"})
	if err != nil {
		t.Fatalf("second release failed: %v", err)
	}

	if result.PreviousVersion != "2024.1.0" {
		t.Errorf("previous version = %q, want 2024.1.0", result.PreviousVersion)
	}
	if result.PreviousRevision != firstHead {
		t.Errorf("previous revision = %q, want %q", result.PreviousRevision, firstHead)
	}
	if !strings.Contains(result.Changelog, "bump to 2024.2.0") {
		t.Errorf("changelog %q should list the new commit", result.Changelog)
	}
	if strings.Contains(result.Changelog, "initial import") {
		t.Errorf("changelog %q should stop at the previous release", result.Changelog)
	}
	if !env.repo.HasTag("maya-2024.2.0") {
		t.Error("second release tag missing")
	}
}

func TestReleaseRejectsExistingTag(t *testing.T) {
	env := newWorkflowEnv(t, buildScript)
	env.repo.Tag("maya-2024.1.0")

	_, err := env.process(t).Release(context.Background(), buildproc.ReleaseOptions{})
	if err == nil {
		t.Fatal("Release succeeded over an existing tag")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error %q should report the tag collision", err)
	}
	if pferrors.GetKind(err) != pferrors.KindRelease {
		t.Errorf("error kind = %v, want KindRelease", pferrors.GetKind(err))
	}
}

func TestReleaseRejectsSupersededVersion(t *testing.T) {
	env := newWorkflowEnv(t, buildScript)

	if _, err := env.process(t).Release(context.Background(), buildproc.ReleaseOptions{}); err != nil {
		t.Fatalf("first release failed: %v", err)
	}

	env.repo.WriteManifest("maya", "2024.0.9", buildScript)
	env.repo.Commit("downgrade to 2024.0.9")
	env.reload(t)

	_, err := env.process(t).Release(context.Background(), buildproc.ReleaseOptions{})
	if err == nil {
		t.Fatal("Release of a superseded version succeeded")
	}
	if !strings.Contains(err.Error(), "newer version is already released") {
		t.Errorf("error %q should cite the newer release", err)
	}
	if env.repo.HasTag("maya-2024.0.9") {
		t.Error("superseded release still created a tag")
	}
}

func TestReleaseRejectsDirtyWorktree(t *testing.T) {
	env := newWorkflowEnv(t, buildScript)
	env.repo.WriteFile("uncommitted.txt", "scratch")

	_, err := env.process(t).Release(context.Background(), buildproc.ReleaseOptions{})
	if err == nil {
		t.Fatal("Release succeeded from a dirty worktree")
	}
	if !strings.Contains(err.Error(), "uncommitted") {
		t.Errorf("error %q should report the dirty worktree", err)
	}
	if env.repo.HasTag("maya-2024.1.0") {
		t.Error("failed release still created a tag")
	}
}

func TestReleaseFailedBuildCreatesNoTag(t *testing.T) {
	env := newWorkflowEnv(t, "exit 1")

	_, err := env.process(t).Release(context.Background(), buildproc.ReleaseOptions{})
	if err == nil {
		t.Fatal("Release succeeded despite the failing build command")
	}
	if pferrors.GetKind(err) != pferrors.KindBuild {
		t.Errorf("error kind = %v, want KindBuild", pferrors.GetKind(err))
	}
	if env.repo.HasTag("maya-2024.1.0") {
		t.Error("failed release still created a tag")
	}
	if _, statErr := os.Stat(filepath.Join(env.central, "maya", "2024.1.0", pkgmeta.MetadataFile)); statErr == nil {
		t.Error("failed release still installed the definition")
	}
}

func TestBuildWorkflowUnresolvableContextStaysOnDisk(t *testing.T) {
	env := newWorkflowEnv(t, buildScript)

	failing := filepath.Join(t.TempDir(), "solver")
	script := "#!/bin/sh\ncat >/dev/null\n" +
		"echo '{\"status\":\"unsatisfiable\",\"failure\":\"python-3.11 conflicts with python-2.7\"}'\n"
	if err := os.WriteFile(failing, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write solver stub: %v", err)
	}
	env.cfg.Resolver = resolver.NewExecResolver(failing, nil, 30*time.Second, discardLogger())

	_, err := env.process(t).Build(context.Background(), buildproc.BuildOptions{})
	if err == nil {
		t.Fatal("Build succeeded with an unsatisfiable resolve")
	}
	if pferrors.GetKind(err) != pferrors.KindResolve {
		t.Errorf("error kind = %v, want KindResolve", pferrors.GetKind(err))
	}

	contextFile := filepath.Join(env.repo.Dir, "build", "platform-linux", resolver.ContextFileName)
	bctx, loadErr := resolver.LoadContext(contextFile)
	if loadErr != nil {
		t.Fatalf("failed resolve left no context file: %v", loadErr)
	}
	if bctx.Solved() {
		t.Error("persisted context claims to be solved")
	}
	if !strings.Contains(bctx.FailureDescription, "conflicts") {
		t.Errorf("persisted failure = %q, want the engine's description", bctx.FailureDescription)
	}
}
