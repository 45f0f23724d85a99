package hooks

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/pkg/hook"
)

// Runner delivers lifecycle events to hooks in declaration order.
//
// A cancelling hook aborts the run and surfaces as a release error, even
// when the caller asked for repository errors to be skipped. Any other
// Packforge error from a hook is logged at debug level and the run moves
// on to the next hook. Errors outside the Packforge taxonomy indicate a
// broken hook and propagate unchanged.
type Runner struct {
	logger *log.Logger
}

// NewRunner returns a Runner logging through logger.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{logger: logger}
}

// Run sends event to each hook in order, applying the failure policy
// per hook. The returned error is nil unless a hook cancelled the run
// or failed in a way hooks are not allowed to fail.
func (r *Runner) Run(ctx context.Context, event hook.Event, hooks []ReleaseHook, hctx hook.Context) error {
	const op = "hooks.Run"

	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			return pferrors.Wrap(err, pferrors.KindCanceled, op, "hook run interrupted")
		}

		err := dispatch(ctx, h, event, hctx)
		if err == nil {
			continue
		}

		if pferrors.IsKind(err, pferrors.KindHookCancel) {
			return pferrors.ReleaseWrap(err, op,
				fmt.Sprintf("%s cancelled by %q hook", eventNoun(event), h.Name()))
		}

		if pferrors.IsDomain(err) {
			r.logger.Debug("hook failed", "hook", h.Name(), "event", string(event), "error", err)
			continue
		}

		return err
	}

	return nil
}
