package buildproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/log"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/fileutil"
	"github.com/packforge/packforge/internal/hooks"
	"github.com/packforge/packforge/internal/observability"
	"github.com/packforge/packforge/internal/pkgmeta"
	"github.com/packforge/packforge/internal/resolver"
	"github.com/packforge/packforge/internal/vcs"
	"github.com/packforge/packforge/pkg/hook"
)

// fallbackTagName is used when the tag template renders to nothing.
const fallbackTagName = "unversioned"

// defaultTagTemplate renders "name-version".
const defaultTagTemplate = "{{.Name}}-{{.Version}}"

// Helper carries the logic shared by all build process strategies: the
// variant walker glue, the build context factory, the release guard, tag
// naming, release-data assembly, and hook dispatch.
type Helper struct {
	cfg    Config
	logger *log.Logger
}

func newHelper(cfg Config) (*Helper, error) {
	const op = "buildproc.New"

	if cfg.Package == nil {
		return nil, pferrors.Build(op, "no package metadata provided")
	}
	if cfg.Resolver == nil {
		return nil, pferrors.Build(op, "no resolver provided")
	}
	if cfg.BuildSystem == nil {
		return nil, pferrors.Build(op, "no build system provided")
	}
	if cfg.WorkingDir == "" {
		return nil, pferrors.Build(op, "no working directory provided")
	}

	if cfg.BuildDirectory == "" {
		cfg.BuildDirectory = "build"
	}
	if cfg.TagTemplate == "" {
		cfg.TagTemplate = defaultTagTemplate
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.Global()
	}
	if cfg.HookRunner == nil {
		cfg.HookRunner = hooks.NewRunner(cfg.Logger)
	}

	// Per-package settings override the tool configuration.
	overrides := cfg.Package.Config
	if overrides.TagTemplate != "" {
		cfg.TagTemplate = overrides.TagTemplate
	}
	if overrides.MaxChangelogChars != nil {
		cfg.MaxChangelogChars = *overrides.MaxChangelogChars
	}
	if overrides.CheckTag != nil {
		cfg.CheckTag = *overrides.CheckTag
	}

	if cfg.VCS != nil {
		workingDir, err := canonicalPath(cfg.WorkingDir)
		if err != nil {
			return nil, pferrors.BuildWrap(err, op, "invalid working directory")
		}
		repoRoot, err := canonicalPath(cfg.VCS.Root())
		if err != nil {
			return nil, pferrors.BuildWrap(err, op, "invalid repository root")
		}
		if repoRoot != workingDir {
			return nil, pferrors.Buildf(op,
				"version control adapter is bound to %s, not the working directory %s",
				repoRoot, workingDir)
		}
	}

	return &Helper{cfg: cfg, logger: cfg.Logger}, nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

func (h *Helper) metrics() *observability.Metrics { return h.cfg.Metrics }

// header writes an underlined progress line to the configured output.
func (h *Helper) header(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(h.cfg.Output, "\n%s\n%s\n", msg, strings.Repeat("-", len(msg)))
}

// skipHeader reports a variant excluded by the requested filter.
func (h *Helper) skipHeader(position, total int) {
	h.header("Skipping %d/%d...", position, total)
}

// buildRoot returns the absolute build scratch directory.
func (h *Helper) buildRoot() string {
	if filepath.IsAbs(h.cfg.BuildDirectory) {
		return h.cfg.BuildDirectory
	}
	return filepath.Join(h.cfg.WorkingDir, h.cfg.BuildDirectory)
}

// variantBuildPath returns the build directory for one variant. Variant
// requirement sets get their own subdirectories; the implicit sole
// variant builds in the root.
func (h *Helper) variantBuildPath(variant *pkgmeta.Variant) string {
	if subpath := variant.Subpath(); subpath != "" {
		return filepath.Join(h.buildRoot(), subpath)
	}
	return h.buildRoot()
}

// installDefinition writes the package definition into the install
// repository, making the package visible to repository scans. Releases
// stamp the definition with the revision they were cut from.
func (h *Helper) installDefinition(installRoot, revision string) error {
	const op = "buildproc.installDefinition"

	dir := h.cfg.Package.InstallPath(installRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pferrors.IOWrap(err, op, "failed to create install path")
	}
	return pkgmeta.SaveDefinition(h.cfg.Package, dir, revision)
}

// searchPaths selects the resolution search paths for a build type. This
// is the only behavior BuildType carries.
func (h *Helper) searchPaths(buildType BuildType) []string {
	if buildType == BuildTypeLocal {
		paths := make([]string, 0, len(h.cfg.NonLocalPaths)+1)
		paths = append(paths, h.cfg.LocalPackagesPath)
		return append(paths, h.cfg.NonLocalPaths...)
	}
	return append([]string(nil), h.cfg.NonLocalPaths...)
}

// createBuildContext resolves the variant's full requirement list into a
// build context and persists it under buildPath. The context file is
// written before the status is inspected, so failed resolutions stay on
// disk for debugging. A non-solved status returns the failed context
// together with a resolve error.
func (h *Helper) createBuildContext(ctx context.Context, variant *pkgmeta.Variant, buildType BuildType, buildPath string) (*resolver.BuildContext, string, error) {
	const op = "buildproc.CreateBuildContext"

	requests := variant.FullRequires(true, true)
	searchPaths := h.searchPaths(buildType)

	h.logger.Debug("resolving build context",
		"variant", variant.QualifiedName(),
		"build_type", buildType.String(),
		"requests", len(requests))

	start := time.Now()
	bctx, err := h.cfg.Resolver.Resolve(ctx, resolver.Request{
		Requirements: requests,
		SearchPaths:  searchPaths,
		Building:     true,
	})
	if err != nil {
		h.metrics().RecordResolve(false, time.Since(start))
		return nil, "", pferrors.ResolveWrap(err, op,
			fmt.Sprintf("failed to resolve build context for %s", variant.QualifiedName()))
	}

	path := filepath.Join(buildPath, resolver.ContextFileName)
	if err := bctx.Save(path); err != nil {
		h.metrics().RecordResolve(false, time.Since(start))
		return nil, "", err
	}

	if !bctx.Solved() {
		h.metrics().RecordResolve(false, time.Since(start))
		resolveErr := pferrors.Resolve(op,
			fmt.Sprintf("could not resolve build context for %s: %s", variant.QualifiedName(), bctx.Status)).
			WithDetail("context_file", path)
		if bctx.FailureDescription != "" {
			resolveErr = resolveErr.WithDetail("failure", bctx.FailureDescription)
		}
		return bctx, path, resolveErr
	}

	h.metrics().RecordResolve(true, time.Since(start))
	return bctx, path, nil
}

// currentTagName renders the configured tag-name template against the
// package fields. A malformed template is a release error; an empty
// render falls back to "unversioned". Pure for unchanged package state.
func (h *Helper) currentTagName() (string, error) {
	const op = "buildproc.CurrentTagName"

	tmpl, err := template.New("tag").Option("missingkey=error").Parse(h.cfg.TagTemplate)
	if err != nil {
		return "", pferrors.ReleaseWrap(err, op, "malformed tag name template")
	}

	data := struct {
		Name      string
		Version   string
		Qualified string
	}{
		Name:      h.cfg.Package.Name,
		Version:   h.cfg.Package.Version.String(),
		Qualified: h.cfg.Package.QualifiedName(),
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", pferrors.ReleaseWrap(err, op, "failed to render tag name template")
	}

	name := strings.TrimSpace(sb.String())
	if name == "" {
		return fallbackTagName, nil
	}
	return name, nil
}

// repoOperation runs fn under the skip-errors policy: a VCS-kinded error
// is downgraded to a logged warning when SkipErrors is set. Every other
// error class propagates regardless of the flag.
func (h *Helper) repoOperation(label string, fn func() error) error {
	return vcs.RunScoped(h.logger, h.cfg.SkipErrors, label, fn)
}

// releasedPackages lists the released versions of this package, newest
// first. The listing is read fresh on every call.
func (h *Helper) releasedPackages(ctx context.Context) ([]*pkgmeta.Package, error) {
	repo := pkgmeta.NewRepository(h.cfg.ReleasePackagesPath)
	return repo.ListReleased(ctx, h.cfg.Package.Name)
}

// previousRelease returns the newest released package whose version is
// strictly less than the candidate's, or nil.
func (h *Helper) previousRelease(ctx context.Context) (*pkgmeta.Package, error) {
	released, err := h.releasedPackages(ctx)
	if err != nil {
		return nil, err
	}
	for _, rp := range released {
		if rp.Version.LessThan(h.cfg.Package.Version) {
			return rp, nil
		}
	}
	return nil, nil
}

// preRelease runs the release-safety checks, in this order: release path
// existence, repository state, tag collision, identity match against the
// latest released package, and the monotonic-version check.
func (h *Helper) preRelease(ctx context.Context) error {
	const op = "buildproc.PreRelease"
	pkg := h.cfg.Package

	if !fileutil.IsDir(h.cfg.ReleasePackagesPath) {
		return pferrors.Releasef(op, "release path does not exist: %s", h.cfg.ReleasePackagesPath)
	}

	if err := h.repoOperation("validate repository state", func() error {
		return h.cfg.VCS.ValidateRepoState(ctx)
	}); err != nil {
		return err
	}

	if h.cfg.CheckTag && !h.cfg.IgnoreExistingTag {
		tagName, err := h.currentTagName()
		if err != nil {
			return err
		}
		if err := h.repoOperation("check release tag", func() error {
			exists, err := h.cfg.VCS.TagExists(ctx, tagName)
			if err != nil {
				return err
			}
			if exists {
				return pferrors.Releasef(op, "cannot release: tag %q already exists in the repository", tagName)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	released, err := h.releasedPackages(ctx)
	if err != nil {
		return err
	}
	if len(released) == 0 {
		return nil
	}

	latest := released[0]
	if pkg.UUID != "" && latest.UUID != "" && pkg.UUID != latest.UUID {
		return pferrors.Releasef(op,
			"cannot release %s: UUID mismatch with the released package at %s, the name belongs to a different package",
			pkg.QualifiedName(), latest.Location)
	}

	if h.cfg.EnsureLatest {
		for _, rp := range released {
			if !rp.Version.GreaterThan(pkg.Version) {
				break
			}
			return pferrors.Releasef(op,
				"cannot release %s: a newer version is already released at %s",
				pkg.QualifiedName(), rp.Location)
		}
	}

	return nil
}

// postRelease creates the release tag, subject to the skip-errors policy.
func (h *Helper) postRelease(ctx context.Context, tagName, message string) error {
	return h.repoOperation("create release tag", func() error {
		return h.cfg.VCS.CreateReleaseTag(ctx, tagName, message)
	})
}

// releaseData assembles the audit information for the release: previous
// version and revision, current revision, and the bounded changelog.
// The VCS queries run under the skip-errors policy.
func (h *Helper) releaseData(ctx context.Context) (releaseData, error) {
	var data releaseData

	prev, err := h.previousRelease(ctx)
	if err != nil {
		return data, err
	}
	if prev != nil {
		data.previousVersion = prev.Version.String()
		data.previousRevision = prev.Revision
	}

	if err := h.repoOperation("query current revision", func() error {
		revision, err := h.cfg.VCS.CurrentRevision(ctx)
		if err != nil {
			return err
		}
		data.revision = revision
		return nil
	}); err != nil {
		return data, err
	}

	if err := h.repoOperation("collect changelog", func() error {
		changelog, err := h.cfg.VCS.Changelog(ctx, data.previousRevision)
		if err != nil {
			return err
		}
		data.changelog = truncateChangelog(changelog, h.cfg.MaxChangelogChars)
		return nil
	}); err != nil {
		return data, err
	}

	return data, nil
}

// truncateChangelog bounds text to maxChars characters plus a 3-character
// ellipsis. Text within maxChars+3 is returned unmodified, since the
// marker would not make it any shorter.
func truncateChangelog(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars+3 {
		return text
	}
	return string(runes[:maxChars]) + "..."
}

// runHooks delivers event to the loaded hooks in load order.
func (h *Helper) runHooks(ctx context.Context, event hook.Event, hctx hook.Context) error {
	if len(h.cfg.Hooks) == 0 {
		return nil
	}
	err := h.cfg.HookRunner.Run(ctx, event, h.cfg.Hooks, hctx)
	h.metrics().RecordHookRun(err == nil)
	return err
}

// hookContext stamps the run-invariant fields onto a hook context.
func (h *Helper) hookContext(base hook.Context) hook.Context {
	base.User = currentUser()
	base.PackageName = h.cfg.Package.Name
	base.PackageVersion = h.cfg.Package.Version.String()
	base.SourcePath = h.cfg.WorkingDir
	return base
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
