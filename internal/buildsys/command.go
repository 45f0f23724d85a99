package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/fileutil"
	"github.com/packforge/packforge/internal/pkgmeta"
	"github.com/packforge/packforge/internal/resolver"
)

// SystemCommand names the build system that runs the package's declared
// build command through the shell.
const SystemCommand = "command"

// envScriptName is the environment dump written into the build directory
// so a failed build can be reproduced by sourcing it.
const envScriptName = "build-env.sh"

func init() {
	Register(SystemCommand, func(logger *log.Logger) BuildSystem {
		return &commandSystem{logger: logger}
	})
}

type commandSystem struct {
	logger *log.Logger
}

func (s *commandSystem) Name() string { return SystemCommand }

// Build runs the package's build command with the resolved environment
// applied on top of the parent process environment. Build parameters are
// passed through PACKFORGE_* variables.
func (s *commandSystem) Build(ctx context.Context, variant *pkgmeta.Variant, bctx *resolver.BuildContext, opts Options) (*Result, error) {
	const op = "buildsys.Build"

	pkg := variant.Package()
	command := strings.TrimSpace(pkg.BuildCommand)
	if command == "" {
		return nil, pferrors.Build(op, fmt.Sprintf("%s declares no build command", pkg.QualifiedName()))
	}

	if err := os.MkdirAll(opts.BuildPath, 0o755); err != nil {
		return nil, pferrors.BuildWrap(err, op, "failed to create build directory")
	}
	if opts.Install {
		if err := os.MkdirAll(opts.InstallPath, 0o755); err != nil {
			return nil, pferrors.BuildWrap(err, op, "failed to create install path")
		}
	}

	extra := append(bctx.EnvironList(), invocationVars(variant, opts)...)

	scriptPath := filepath.Join(opts.BuildPath, envScriptName)
	if err := writeEnvScript(scriptPath, extra); err != nil {
		return nil, err
	}

	s.logger.Debug("running build command",
		"variant", variant.QualifiedName(),
		"command", command,
		"build_path", opts.BuildPath,
		"install", opts.Install)

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command) // #nosec G204 -- command comes from package metadata
	cmd.Dir = opts.BuildPath
	cmd.Env = append(os.Environ(), extra...)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, pferrors.BuildWrap(ctx.Err(), op,
				fmt.Sprintf("build of %s interrupted", variant.QualifiedName()))
		}
		return nil, pferrors.BuildWrap(err, op,
			fmt.Sprintf("build command failed for %s", variant.QualifiedName()))
	}
	return &Result{EnvScript: scriptPath}, nil
}

// invocationVars describes the current build to the build command.
func invocationVars(variant *pkgmeta.Variant, opts Options) []string {
	pkg := variant.Package()
	return []string{
		"PACKFORGE_BUILD_PATH=" + opts.BuildPath,
		"PACKFORGE_INSTALL_PATH=" + opts.InstallPath,
		"PACKFORGE_SOURCE_PATH=" + pkg.Location,
		"PACKFORGE_PACKAGE_NAME=" + pkg.Name,
		"PACKFORGE_PACKAGE_VERSION=" + pkg.Version.String(),
		"PACKFORGE_VARIANT_INDEX=" + strconv.Itoa(variant.Index),
		"PACKFORGE_VARIANT_REQUIRES=" + joinRequirements(variant.Requires),
		"PACKFORGE_INSTALL=" + boolFlag(opts.Install),
		"PACKFORGE_CLEAN=" + boolFlag(opts.Clean),
	}
}

func joinRequirements(reqs []pkgmeta.Requirement) string {
	parts := make([]string, len(reqs))
	for i, r := range reqs {
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// writeEnvScript dumps KEY=VALUE pairs as a sourceable shell script.
func writeEnvScript(path string, env []string) error {
	const op = "buildsys.writeEnvScript"

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, kv := range env {
		name, value, _ := strings.Cut(kv, "=")
		fmt.Fprintf(&b, "export %s=%q\n", name, value)
	}
	if err := fileutil.AtomicWriteFile(path, []byte(b.String()), 0o755); err != nil {
		return pferrors.IOWrap(err, op, "failed to write environment script")
	}
	return nil
}
