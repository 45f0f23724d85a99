// Package hook provides the public interface for Packforge release
// hooks. Hook authors implement Hook and call Serve from their main
// function to expose the hook as a standalone plugin executable.
package hook

import (
	"fmt"
)

// Event is a point in the build/release life-cycle where hooks run.
type Event string

const (
	// EventPreBuild runs before any variant of a build is built.
	EventPreBuild Event = "pre_build"
	// EventPreRelease runs after the release safety checks pass and
	// before any variant is built.
	EventPreRelease Event = "pre_release"
	// EventPostRelease runs after the release tag is created.
	EventPostRelease Event = "post_release"
	// EventReleaseCancelled runs when a release fails after it was
	// announced to the pre-release hooks.
	EventReleaseCancelled Event = "release_cancelled"
)

// AllEvents returns the events in life-cycle order.
func AllEvents() []Event {
	return []Event{EventPreBuild, EventPreRelease, EventPostRelease, EventReleaseCancelled}
}

// Hook is the interface hook plugins implement.
type Hook interface {
	// Name identifies the hook in logs and veto messages.
	Name() string
	// Handle is invoked once per event. Returning an error produced by
	// Cancel vetoes the triggering operation; any other error is
	// reported and the operation continues.
	Handle(event Event, hctx Context) error
}

// Context describes the operation that triggered the event. Release
// fields are empty for pre-build events.
type Context struct {
	// User is the account running the operation.
	User string `json:"user"`
	// PackageName and PackageVersion identify the package.
	PackageName    string `json:"package_name"`
	PackageVersion string `json:"package_version"`
	// SourcePath is the package working directory.
	SourcePath string `json:"source_path"`
	// InstallPath is the repository variants install into.
	InstallPath string `json:"install_path"`
	// Variants are the requested variant indices. Empty means all.
	Variants []int `json:"variants,omitempty"`
	// ReleaseMessage is the operator-supplied release message.
	ReleaseMessage string `json:"release_message,omitempty"`
	// VCS names the version control adapter backing the release.
	VCS string `json:"vcs,omitempty"`
	// Revision is the working copy revision being released.
	Revision string `json:"revision,omitempty"`
	// Changelog lists the changes since the previous release.
	Changelog string `json:"changelog,omitempty"`
	// TagName is the release tag.
	TagName string `json:"tag_name,omitempty"`
	// PreviousVersion and PreviousRevision describe the newest earlier
	// release. Both are empty on a first release.
	PreviousVersion  string `json:"previous_version,omitempty"`
	PreviousRevision string `json:"previous_revision,omitempty"`
}

// CancelError vetoes the operation that triggered the event.
type CancelError struct {
	Message string
}

// Error implements the error interface.
func (e *CancelError) Error() string {
	return e.Message
}

// Cancel returns an error that vetoes the triggering build or release.
func Cancel(format string, args ...any) error {
	return &CancelError{Message: fmt.Sprintf(format, args...)}
}

// RemoteError is a non-vetoing failure reported by a hook plugin.
type RemoteError struct {
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return e.Message
}
