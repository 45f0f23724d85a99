package buildproc

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/packforge/packforge/internal/buildsys"
	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/pkgmeta"
	"github.com/packforge/packforge/pkg/hook"
)

// ProcessLocal builds variants on the machine the tool runs on.
const ProcessLocal = "local"

func init() {
	RegisterProcess(ProcessLocal, NewLocalProcess)
}

// LocalProcess runs every variant build in-process on the local host,
// one variant at a time, in declaration order.
type LocalProcess struct {
	*Helper
}

// NewLocalProcess constructs the local build process strategy.
func NewLocalProcess(cfg Config) (BuildProcess, error) {
	helper, err := newHelper(cfg)
	if err != nil {
		return nil, err
	}
	return &LocalProcess{Helper: helper}, nil
}

// Build builds the package's variants into the local package path, or
// into opts.InstallPath when set. It never touches version control.
func (p *LocalProcess) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	p.metrics().IncrementActiveOperations()
	defer p.metrics().DecrementActiveOperations()

	start := time.Now()
	result, err := p.buildVariants(ctx, opts)
	p.metrics().RecordBuild(err == nil, time.Since(start))
	return result, err
}

func (p *LocalProcess) buildVariants(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	pkg := p.cfg.Package
	p.header("Building %s...", pkg.QualifiedName())

	installRoot := opts.InstallPath
	if installRoot == "" {
		installRoot = p.cfg.LocalPackagesPath
	}

	hctx := p.hookContext(hook.Context{
		InstallPath: pkg.InstallPath(installRoot),
		Variants:    opts.Variants,
	})
	if err := p.runHooks(ctx, hook.EventPreBuild, hctx); err != nil {
		return nil, err
	}

	visited, variants, err := VisitVariants(pkg, opts.Variants, p.skipHeader,
		func(variant *pkgmeta.Variant) (VariantResult, error) {
			return p.buildVariant(ctx, variant, BuildTypeLocal, installRoot, opts.Clean, opts.Install)
		})
	if err != nil {
		return nil, err
	}

	if opts.Install {
		if err := p.installDefinition(installRoot, ""); err != nil {
			return nil, err
		}
	}

	return &BuildResult{
		Package:  pkg.QualifiedName(),
		Visited:  visited,
		Variants: variants,
	}, nil
}

// buildVariant prepares the variant's build directory, resolves and
// persists its build context, and hands off to the build system.
func (p *LocalProcess) buildVariant(ctx context.Context, variant *pkgmeta.Variant, buildType BuildType, installRoot string, clean, install bool) (VariantResult, error) {
	const op = "buildproc.BuildVariant"

	p.header("Building variant %s...", variant.QualifiedName())

	buildPath := p.variantBuildPath(variant)
	if clean {
		if err := os.RemoveAll(buildPath); err != nil {
			return VariantResult{}, pferrors.IOWrap(err, op, "failed to clean build directory")
		}
	}
	if err := os.MkdirAll(buildPath, 0o755); err != nil {
		return VariantResult{}, pferrors.IOWrap(err, op, "failed to create build directory")
	}

	bctx, contextFile, err := p.createBuildContext(ctx, variant, buildType, buildPath)
	if err != nil {
		return VariantResult{}, err
	}

	var installPath string
	if install {
		installPath = filepath.Join(p.cfg.Package.InstallPath(installRoot), variant.Subpath())
	}

	start := time.Now()
	built, err := p.cfg.BuildSystem.Build(ctx, variant, bctx, buildsys.Options{
		BuildPath:   buildPath,
		InstallPath: installPath,
		Clean:       clean,
		Install:     install,
		Output:      p.cfg.Output,
	})
	p.metrics().RecordVariantBuild(p.cfg.BuildSystem.Name(), time.Since(start))
	if err != nil {
		return VariantResult{}, err
	}

	result := VariantResult{
		Variant:     variant.Index,
		BuildPath:   buildPath,
		InstallPath: installPath,
		ContextFile: contextFile,
	}
	if built != nil {
		result.EnvScript = built.EnvScript
	}
	return result, nil
}

// Release guards, builds, and tags a release of the package. The stages
// run strictly in order; a failure after the announcement stage runs the
// cancellation hooks but never rolls back variants already installed.
func (p *LocalProcess) Release(ctx context.Context, opts ReleaseOptions) (*ReleaseResult, error) {
	const op = "buildproc.Release"

	if p.cfg.VCS == nil {
		return nil, pferrors.Release(op, "cannot release: no version control adapter is bound to the working directory")
	}

	machine, err := newReleaseMachine()
	if err != nil {
		return nil, err
	}

	p.metrics().IncrementActiveOperations()
	defer p.metrics().DecrementActiveOperations()

	start := time.Now()
	result, err := p.runRelease(ctx, machine, opts)
	p.metrics().RecordRelease(err == nil, time.Since(start))
	return result, err
}

func (p *LocalProcess) runRelease(ctx context.Context, machine *releaseMachine, opts ReleaseOptions) (*ReleaseResult, error) {
	pkg := p.cfg.Package
	p.header("Releasing %s...", pkg.QualifiedName())

	if err := machine.fire(eventGuard); err != nil {
		return nil, err
	}
	if err := p.preRelease(ctx); err != nil {
		machine.cancel()
		return nil, err
	}
	tagName, err := p.currentTagName()
	if err != nil {
		machine.cancel()
		return nil, err
	}

	if err := machine.fire(eventRecord); err != nil {
		return nil, err
	}
	data, err := p.releaseData(ctx)
	if err != nil {
		machine.cancel()
		return nil, err
	}

	hctx := p.hookContext(hook.Context{
		InstallPath:      pkg.InstallPath(p.cfg.ReleasePackagesPath),
		Variants:         opts.Variants,
		ReleaseMessage:   opts.Message,
		VCS:              p.cfg.VCS.Name(),
		Revision:         data.revision,
		Changelog:        data.changelog,
		TagName:          tagName,
		PreviousVersion:  data.previousVersion,
		PreviousRevision: data.previousRevision,
	})

	if err := machine.fire(eventHook); err != nil {
		return nil, err
	}
	// A veto here means the release was never announced, so the
	// cancellation hooks do not run.
	if err := p.runHooks(ctx, hook.EventPreRelease, hctx); err != nil {
		machine.cancel()
		return nil, err
	}

	if err := machine.fire(eventBuild); err != nil {
		return nil, err
	}
	visited, variants, err := VisitVariants(pkg, opts.Variants, p.skipHeader,
		func(variant *pkgmeta.Variant) (VariantResult, error) {
			return p.buildVariant(ctx, variant, BuildTypeCentral, p.cfg.ReleasePackagesPath, false, true)
		})
	if err != nil {
		p.cancelRelease(ctx, machine, hctx)
		return nil, err
	}
	if err := p.installDefinition(p.cfg.ReleasePackagesPath, data.revision); err != nil {
		p.cancelRelease(ctx, machine, hctx)
		return nil, err
	}

	if err := machine.fire(eventTag); err != nil {
		return nil, err
	}
	if err := p.postRelease(ctx, tagName, opts.Message); err != nil {
		p.cancelRelease(ctx, machine, hctx)
		return nil, err
	}

	// The tag exists now. A post-release hook failure is reported but
	// nothing is rolled back and the cancellation hooks stay silent.
	if err := p.runHooks(ctx, hook.EventPostRelease, hctx); err != nil {
		machine.cancel()
		return nil, err
	}

	if err := machine.fire(eventFinish); err != nil {
		return nil, err
	}

	return &ReleaseResult{
		Package:          pkg.QualifiedName(),
		Version:          pkg.Version.String(),
		TagName:          tagName,
		Revision:         data.revision,
		Changelog:        data.changelog,
		PreviousVersion:  data.previousVersion,
		PreviousRevision: data.previousRevision,
		Visited:          visited,
		Variants:         variants,
		Transitions:      machine.transitions(),
	}, nil
}

// cancelRelease notifies hooks that an announced release fell through,
// then parks the machine in the cancelled stage.
func (p *LocalProcess) cancelRelease(ctx context.Context, machine *releaseMachine, hctx hook.Context) {
	if err := p.runHooks(ctx, hook.EventReleaseCancelled, hctx); err != nil {
		p.logger.Warn("release cancellation hooks failed", "error", err)
	}
	machine.cancel()
}
