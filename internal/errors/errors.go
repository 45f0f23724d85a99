// Package errors provides structured error types for Packforge.
// It implements error classification, wrapping, and policy checks the
// rest of the codebase branches on.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of an error.
type Kind uint8

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindConfig indicates a configuration error.
	KindConfig
	// KindMetadata indicates a package metadata error.
	KindMetadata
	// KindBuild indicates a build orchestration or build-tool error.
	KindBuild
	// KindResolve indicates a failed build-environment resolution.
	KindResolve
	// KindRelease indicates a violated release-safety invariant.
	KindRelease
	// KindVCS indicates a version-control adapter error.
	KindVCS
	// KindHookCancel indicates a release hook vetoed the operation.
	KindHookCancel
	// KindPlugin indicates a hook plugin error.
	KindPlugin
	// KindState indicates a lifecycle state error.
	KindState
	// KindIO indicates a file I/O error.
	KindIO
	// KindValidation indicates a validation error.
	KindValidation
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindCanceled indicates the operation was canceled.
	KindCanceled
	// KindInternal indicates an internal error.
	KindInternal
)

var kindNames = [...]string{
	KindUnknown:    "unknown",
	KindConfig:     "configuration",
	KindMetadata:   "metadata",
	KindBuild:      "build",
	KindResolve:    "resolve",
	KindRelease:    "release",
	KindVCS:        "vcs",
	KindHookCancel: "hook_cancel",
	KindPlugin:     "plugin",
	KindState:      "state",
	KindIO:         "io",
	KindValidation: "validation",
	KindNotFound:   "not_found",
	KindCanceled:   "canceled",
	KindInternal:   "internal",
}

// String returns a human-readable string for the error kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is the standard error type for Packforge.
type Error struct {
	// Kind is the category of the error.
	Kind Kind
	// Op is the operation being performed when the error occurred.
	Op string
	// Message is a human-readable error message.
	Message string
	// Err is the underlying error.
	Err error
	// Recoverable indicates if the error can be recovered from.
	Recoverable bool
	// Details contains additional context about the error.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, e.Message)
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches this error.
// For *Error targets without an Op, only the Kind is compared
// (sentinel error pattern); otherwise both Kind and Op must match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op
}

// WithDetails adds details to the error and returns the modified error.
func (e *Error) WithDetails(details map[string]any) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// WithDetail adds a single detail to the error and returns the modified error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// mk is the shared constructor behind the per-kind helpers.
func mk(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return mk(kind, "", message)
}

// Newf creates a new Error with the given kind and formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return mk(kind, "", fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, kind Kind, op string, message string) *Error {
	e := mk(kind, op, message)
	e.Err = err
	return e
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, op string, format string, args ...any) *Error {
	return Wrap(err, kind, op, fmt.Sprintf(format, args...))
}

// GetKind returns the Kind of an error.
// If the error is not an *Error, it returns KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// IsDomain reports whether err (or anything it wraps) is a Packforge error.
// Hook failures that are not domain errors are treated as hook author bugs
// and propagate instead of being downgraded.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// IsRecoverable returns true if the error is recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable
	}
	return false
}

// Common error constructors for frequently used error types.

// Config creates a configuration error.
func Config(op, message string) *Error {
	return mk(KindConfig, op, message)
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(err error, op, message string) *Error {
	return Wrap(err, KindConfig, op, message)
}

// Metadata creates a package metadata error.
func Metadata(op, message string) *Error {
	return mk(KindMetadata, op, message)
}

// MetadataWrap wraps an error as a package metadata error.
func MetadataWrap(err error, op, message string) *Error {
	return Wrap(err, KindMetadata, op, message)
}

// Build creates a build error.
func Build(op, message string) *Error {
	return mk(KindBuild, op, message)
}

// Buildf creates a build error with a formatted message.
func Buildf(op, format string, args ...any) *Error {
	return mk(KindBuild, op, fmt.Sprintf(format, args...))
}

// BuildWrap wraps an error as a build error.
func BuildWrap(err error, op, message string) *Error {
	return Wrap(err, KindBuild, op, message)
}

// Resolve creates a resolution error.
func Resolve(op, message string) *Error {
	return mk(KindResolve, op, message)
}

// ResolveWrap wraps an error as a resolution error.
func ResolveWrap(err error, op, message string) *Error {
	return Wrap(err, KindResolve, op, message)
}

// Release creates a release error.
func Release(op, message string) *Error {
	return mk(KindRelease, op, message)
}

// Releasef creates a release error with a formatted message.
func Releasef(op, format string, args ...any) *Error {
	return mk(KindRelease, op, fmt.Sprintf(format, args...))
}

// ReleaseWrap wraps an error as a release error.
func ReleaseWrap(err error, op, message string) *Error {
	return Wrap(err, KindRelease, op, message)
}

// VCS creates a version-control error. VCS errors are the only kind
// the scoped repository operation may downgrade to a warning.
func VCS(op, message string) *Error {
	e := mk(KindVCS, op, message)
	e.Recoverable = true
	return e
}

// VCSWrap wraps an error as a version-control error.
func VCSWrap(err error, op, message string) *Error {
	e := Wrap(err, KindVCS, op, message)
	e.Recoverable = true
	return e
}

// HookCancel creates a hook veto error. The hook runner converts it
// into a release error naming the offending hook and event.
func HookCancel(op, message string) *Error {
	return mk(KindHookCancel, op, message)
}

// HookCancelWrap wraps an error as a hook veto error.
func HookCancelWrap(err error, op, message string) *Error {
	return Wrap(err, KindHookCancel, op, message)
}

// Plugin creates a plugin error.
func Plugin(op, message string) *Error {
	return mk(KindPlugin, op, message)
}

// PluginWrap wraps an error as a plugin error.
func PluginWrap(err error, op, message string) *Error {
	return Wrap(err, KindPlugin, op, message)
}

// State creates a lifecycle state error.
func State(op, message string) *Error {
	return mk(KindState, op, message)
}

// IO creates an I/O error.
func IO(op, message string) *Error {
	return mk(KindIO, op, message)
}

// IOWrap wraps an error as an I/O error.
func IOWrap(err error, op, message string) *Error {
	return Wrap(err, KindIO, op, message)
}

// Validation creates a validation error.
func Validation(op, message string) *Error {
	e := mk(KindValidation, op, message)
	e.Recoverable = true
	return e
}

// ValidationWrap wraps an error as a validation error.
func ValidationWrap(err error, op, message string) *Error {
	e := Wrap(err, KindValidation, op, message)
	e.Recoverable = true
	return e
}

// NotFound creates a not found error.
func NotFound(op, message string) *Error {
	return mk(KindNotFound, op, message)
}

// NotFoundWrap wraps an error as a not found error.
func NotFoundWrap(err error, op, message string) *Error {
	return Wrap(err, KindNotFound, op, message)
}

// Internal creates an internal error.
func Internal(op, message string) *Error {
	return mk(KindInternal, op, message)
}

// InternalWrap wraps an error as an internal error.
func InternalWrap(err error, op, message string) *Error {
	return Wrap(err, KindInternal, op, message)
}
