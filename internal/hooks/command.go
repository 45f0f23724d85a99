package hooks

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/packforge/packforge/internal/config"
	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/pkg/hook"
)

// CommandHookName is the configuration name of the builtin command hook.
const CommandHookName = "command"

// commandHook runs shell command lists from the tool configuration for
// each lifecycle event. The hook context is exported to the commands as
// PACKFORGE_* environment variables.
type commandHook struct {
	cfg    config.CommandHookConfig
	logger *log.Logger
}

func newCommandHook(cfg config.CommandHookConfig, logger *log.Logger) *commandHook {
	return &commandHook{cfg: cfg, logger: logger}
}

func (h *commandHook) Name() string { return CommandHookName }

func (h *commandHook) PreBuild(ctx context.Context, hctx hook.Context) error {
	return h.run(ctx, hook.EventPreBuild, h.cfg.PreBuild, hctx)
}

func (h *commandHook) PreRelease(ctx context.Context, hctx hook.Context) error {
	return h.run(ctx, hook.EventPreRelease, h.cfg.PreRelease, hctx)
}

func (h *commandHook) PostRelease(ctx context.Context, hctx hook.Context) error {
	return h.run(ctx, hook.EventPostRelease, h.cfg.PostRelease, hctx)
}

func (h *commandHook) ReleaseCancelled(ctx context.Context, hctx hook.Context) error {
	return h.run(ctx, hook.EventReleaseCancelled, h.cfg.ReleaseCancelled, hctx)
}

func (h *commandHook) run(ctx context.Context, event hook.Event, commands []string, hctx hook.Context) error {
	const op = "hooks.command"

	env := append(os.Environ(), commandEnv(event, hctx)...)
	for _, command := range commands {
		command = strings.TrimSpace(command)
		if command == "" {
			continue
		}

		h.logger.Debug("running hook command", "event", string(event), "command", command)

		cmd := exec.CommandContext(ctx, "sh", "-c", command) // #nosec G204 -- command comes from tool config
		cmd.Env = env
		if hctx.SourcePath != "" {
			cmd.Dir = hctx.SourcePath
		}

		out, err := cmd.CombinedOutput()
		if err == nil {
			continue
		}

		msg := fmt.Sprintf("hook command %q failed", command)
		if h.cfg.CancelOnError {
			return pferrors.HookCancelWrap(err, op, msg).
				WithDetail("output", strings.TrimSpace(string(out)))
		}
		return pferrors.PluginWrap(err, op, msg).
			WithDetail("output", strings.TrimSpace(string(out)))
	}

	return nil
}

// commandEnv flattens a hook context into environment variables.
func commandEnv(event hook.Event, hctx hook.Context) []string {
	variants := make([]string, len(hctx.Variants))
	for i, v := range hctx.Variants {
		variants[i] = strconv.Itoa(v)
	}

	pairs := []struct{ key, value string }{
		{"PACKFORGE_HOOK_EVENT", string(event)},
		{"PACKFORGE_USER", hctx.User},
		{"PACKFORGE_PACKAGE_NAME", hctx.PackageName},
		{"PACKFORGE_PACKAGE_VERSION", hctx.PackageVersion},
		{"PACKFORGE_SOURCE_PATH", hctx.SourcePath},
		{"PACKFORGE_INSTALL_PATH", hctx.InstallPath},
		{"PACKFORGE_VARIANTS", strings.Join(variants, " ")},
		{"PACKFORGE_RELEASE_MESSAGE", hctx.ReleaseMessage},
		{"PACKFORGE_VCS", hctx.VCS},
		{"PACKFORGE_REVISION", hctx.Revision},
		{"PACKFORGE_CHANGELOG", hctx.Changelog},
		{"PACKFORGE_TAG_NAME", hctx.TagName},
		{"PACKFORGE_PREVIOUS_VERSION", hctx.PreviousVersion},
		{"PACKFORGE_PREVIOUS_REVISION", hctx.PreviousRevision},
	}

	env := make([]string, 0, len(pairs))
	for _, p := range pairs {
		env = append(env, p.key+"="+p.value)
	}
	return env
}
