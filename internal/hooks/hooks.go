// Package hooks loads and runs release lifecycle hooks. Hooks observe
// the build and release flow at fixed points and may veto it; names in
// the release configuration resolve to builtins or to external plugin
// executables.
package hooks

import (
	"context"
	"fmt"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/pkg/hook"
)

// ReleaseHook receives lifecycle notifications during builds and releases.
// Implementations embed Base and override only the events they care about.
type ReleaseHook interface {
	// Name identifies the hook in configuration and logs.
	Name() string

	PreBuild(ctx context.Context, hctx hook.Context) error
	PreRelease(ctx context.Context, hctx hook.Context) error
	PostRelease(ctx context.Context, hctx hook.Context) error
	ReleaseCancelled(ctx context.Context, hctx hook.Context) error
}

// Base is a no-op ReleaseHook for embedding.
type Base struct{}

func (Base) PreBuild(context.Context, hook.Context) error         { return nil }
func (Base) PreRelease(context.Context, hook.Context) error       { return nil }
func (Base) PostRelease(context.Context, hook.Context) error      { return nil }
func (Base) ReleaseCancelled(context.Context, hook.Context) error { return nil }

// dispatch routes an event to the matching ReleaseHook method.
func dispatch(ctx context.Context, h ReleaseHook, event hook.Event, hctx hook.Context) error {
	switch event {
	case hook.EventPreBuild:
		return h.PreBuild(ctx, hctx)
	case hook.EventPreRelease:
		return h.PreRelease(ctx, hctx)
	case hook.EventPostRelease:
		return h.PostRelease(ctx, hctx)
	case hook.EventReleaseCancelled:
		return h.ReleaseCancelled(ctx, hctx)
	default:
		return pferrors.Plugin("hooks.dispatch", fmt.Sprintf("unknown hook event %q", event))
	}
}

// eventNoun names the operation a cancelling hook interrupted.
func eventNoun(event hook.Event) string {
	if event == hook.EventPreBuild {
		return "build"
	}
	return "release"
}
