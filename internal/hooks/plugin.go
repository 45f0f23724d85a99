package hooks

import (
	"context"
	"errors"
	"fmt"

	goplugin "github.com/hashicorp/go-plugin"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/pkg/hook"
)

// pluginHook adapts an external hook process to the ReleaseHook
// interface. Cancelling replies become hook-cancel errors and other
// remote failures become plugin errors. Transport faults stay outside
// the Packforge taxonomy so the runner propagates them: a hook that
// crashes mid-call cannot be told apart from one that never worked.
type pluginHook struct {
	name   string
	client *goplugin.Client
	impl   hook.Hook
}

func (p *pluginHook) Name() string { return p.name }

func (p *pluginHook) PreBuild(ctx context.Context, hctx hook.Context) error {
	return p.handle(ctx, hook.EventPreBuild, hctx)
}

func (p *pluginHook) PreRelease(ctx context.Context, hctx hook.Context) error {
	return p.handle(ctx, hook.EventPreRelease, hctx)
}

func (p *pluginHook) PostRelease(ctx context.Context, hctx hook.Context) error {
	return p.handle(ctx, hook.EventPostRelease, hctx)
}

func (p *pluginHook) ReleaseCancelled(ctx context.Context, hctx hook.Context) error {
	return p.handle(ctx, hook.EventReleaseCancelled, hctx)
}

func (p *pluginHook) handle(ctx context.Context, event hook.Event, hctx hook.Context) error {
	const op = "hooks.plugin"

	// The net/rpc transport has no context support, so cancellation is
	// only observed between calls.
	if err := ctx.Err(); err != nil {
		return pferrors.Wrap(err, pferrors.KindCanceled, op, "hook call interrupted")
	}

	err := p.impl.Handle(event, hctx)
	if err == nil {
		return nil
	}

	var cancel *hook.CancelError
	if errors.As(err, &cancel) {
		return pferrors.HookCancelWrap(err, op, fmt.Sprintf("%q requested cancellation", p.name))
	}

	var remote *hook.RemoteError
	if errors.As(err, &remote) {
		return pferrors.PluginWrap(err, op, fmt.Sprintf("hook %q failed", p.name))
	}

	return fmt.Errorf("hook %q: %w", p.name, err)
}
