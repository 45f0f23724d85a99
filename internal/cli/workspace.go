package cli

import (
	"fmt"
	"path/filepath"

	"github.com/packforge/packforge/internal/buildproc"
	"github.com/packforge/packforge/internal/buildsys"
	"github.com/packforge/packforge/internal/hooks"
	"github.com/packforge/packforge/internal/observability"
	"github.com/packforge/packforge/internal/pkgmeta"
	"github.com/packforge/packforge/internal/resolver"
	"github.com/packforge/packforge/internal/vcs"
	// Adapters register themselves; the import wires git detection in.
	_ "github.com/packforge/packforge/internal/vcs/git"
)

// workspace is a package working directory with its metadata loaded.
// Commands open one workspace and wire their collaborators from it.
type workspace struct {
	dir string
	pkg *pkgmeta.Package
}

// openWorkspace loads the package at the directory named by args, or the
// current directory when no argument is given.
func openWorkspace(args []string) (*workspace, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	pkg, err := pkgmeta.Load(abs)
	if err != nil {
		return nil, err
	}

	logger.Debug("loaded package",
		"package", pkg.QualifiedName(),
		"variants", pkg.NumVariants(),
		"dir", abs)

	return &workspace{dir: abs, pkg: pkg}, nil
}

// reload re-reads the package metadata, picking up edits to package.toml.
func (w *workspace) reload() error {
	pkg, err := pkgmeta.Load(w.dir)
	if err != nil {
		return err
	}
	w.pkg = pkg
	return nil
}

// hookNames resolves which hooks to load: the package override when set,
// otherwise the tool configuration.
func (w *workspace) hookNames() []string {
	if len(w.pkg.Config.ReleaseHooks) > 0 {
		return w.pkg.Config.ReleaseHooks
	}
	return cfg.Release.Hooks
}

// loadHooks loads the configured release hooks. The returned manager owns
// any plugin subprocesses and must be closed after the run.
func (w *workspace) loadHooks() ([]hooks.ReleaseHook, *hooks.Manager, error) {
	manager := hooks.NewManager(cfg, logger)
	loaded, err := manager.Load(w.hookNames())
	if err != nil {
		manager.Close()
		return nil, nil, err
	}
	return loaded, manager, nil
}

// newResolver constructs the resolution engine client.
func (w *workspace) newResolver() resolver.Resolver {
	return resolver.NewExecResolver(cfg.Resolver.Command, cfg.Resolver.Args, cfg.Resolver.Timeout, logger)
}

// newBuildSystem constructs the configured build system.
func (w *workspace) newBuildSystem() (buildsys.BuildSystem, error) {
	return buildsys.New(cfg.Build.System, logger)
}

// openVCS binds a version control adapter to the workspace. The
// configured type wins; otherwise the adapter is detected from the
// working copy.
func (w *workspace) openVCS() (vcs.Adapter, error) {
	opts := vcs.Options{
		Remote:      cfg.VCS.Remote,
		PushTags:    cfg.VCS.PushTags,
		TaggerName:  cfg.VCS.TaggerName,
		TaggerEmail: cfg.VCS.TaggerEmail,
	}
	if cfg.VCS.Type != "" {
		return vcs.New(cfg.VCS.Type, w.dir, opts, logger)
	}
	return vcs.Detect(w.dir, opts, logger)
}

// processConfig assembles the orchestrator wiring for this workspace.
func (w *workspace) processConfig(adapter vcs.Adapter, loaded []hooks.ReleaseHook) (buildproc.Config, error) {
	rsl := w.newResolver()
	bs, err := w.newBuildSystem()
	if err != nil {
		return buildproc.Config{}, err
	}

	return buildproc.Config{
		WorkingDir:          w.dir,
		Package:             w.pkg,
		Resolver:            rsl,
		BuildSystem:         bs,
		VCS:                 adapter,
		Hooks:               loaded,
		Logger:              logger,
		Output:              rootCmd.OutOrStdout(),
		Metrics:             observability.Global(),
		LocalPackagesPath:   cfg.Packages.LocalPath,
		ReleasePackagesPath: cfg.Packages.ReleasePath,
		NonLocalPaths:       cfg.Packages.NonLocalPaths,
		BuildDirectory:      cfg.Build.Directory,
		TagTemplate:         cfg.VCS.TagTemplate,
		CheckTag:            cfg.Release.CheckTag,
		EnsureLatest:        cfg.Release.EnsureLatest,
		SkipErrors:          cfg.Release.SkipRepoErrors,
		MaxChangelogChars:   cfg.Release.MaxChangelogChars,
	}, nil
}

// variantBuildDir returns the build directory of one variant, mirroring
// the orchestrator's layout.
func (w *workspace) variantBuildDir(variant *pkgmeta.Variant) string {
	dir := cfg.Build.Directory
	if dir == "" {
		dir = "build"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(w.dir, dir)
	}
	if subpath := variant.Subpath(); subpath != "" {
		return filepath.Join(dir, subpath)
	}
	return dir
}

