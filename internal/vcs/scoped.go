package vcs

import (
	"github.com/charmbracelet/log"

	pferrors "github.com/packforge/packforge/internal/errors"
)

// RunScoped runs fn and, when skipErrors is set, downgrades a vcs-kinded
// failure to a logged warning and reports success. Errors of any other
// kind always propagate unchanged, so a permissive release never
// swallows build, resolve, or hook failures.
func RunScoped(logger *log.Logger, skipErrors bool, label string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if skipErrors && pferrors.GetKind(err) == pferrors.KindVCS {
		logger.Warn("ignoring repository error", "operation", label, "error", err)
		return nil
	}
	return err
}
