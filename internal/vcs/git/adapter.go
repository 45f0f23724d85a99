// Package git implements the vcs adapter for git working copies on top
// of go-git.
package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/vcs"
)

// Name is the adapter's registry name.
const Name = "git"

const (
	marker        = ".git"
	defaultRemote = "origin"

	pushAttempts     = 3
	pushInitialDelay = 500 * time.Millisecond
	pushMaxDelay     = 10 * time.Second
)

// errStopIteration signals early termination of commit iteration.
var errStopIteration = errors.New("stop iteration")

func init() {
	vcs.Register(Name, marker, func(path string, opts vcs.Options, logger *log.Logger) (vcs.Adapter, error) {
		return New(path, opts, logger)
	})
}

// Adapter is a git working copy.
type Adapter struct {
	root     string
	repo     *git.Repository
	worktree *git.Worktree
	opts     vcs.Options
	logger   *log.Logger
	push     retry.Retry[struct{}]
}

// New opens the git working copy at path.
func New(path string, opts vcs.Options, logger *log.Logger) (*Adapter, error) {
	const op = "git.New"

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, pferrors.VCSWrap(err, op, "failed to resolve repository path")
	}

	repo, err := git.PlainOpen(absPath)
	if err != nil {
		return nil, pferrors.VCSWrap(err, op, fmt.Sprintf("failed to open repository at %s", absPath))
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, pferrors.VCSWrap(err, op, "failed to get worktree")
	}

	return &Adapter{
		root:     worktree.Filesystem.Root(),
		repo:     repo,
		worktree: worktree,
		opts:     opts,
		logger:   logger,
		push: retry.New[struct{}](retry.Config{
			MaxAttempts:   pushAttempts,
			InitialDelay:  pushInitialDelay,
			MaxDelay:      pushMaxDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			Jitter:        true,
			IsRetryable:   isRetryablePushError,
		}),
	}, nil
}

// Name implements vcs.Adapter.
func (a *Adapter) Name() string { return Name }

// Root implements vcs.Adapter.
func (a *Adapter) Root() string { return a.root }

// ValidateRepoState fails when the working tree has uncommitted or
// untracked changes.
func (a *Adapter) ValidateRepoState(_ context.Context) error {
	const op = "git.ValidateRepoState"

	status, err := a.worktree.Status()
	if err != nil {
		return pferrors.VCSWrap(err, op, "failed to get worktree status")
	}
	if !status.IsClean() {
		return pferrors.VCS(op, "working tree has uncommitted changes, commit or stash them before releasing")
	}
	return nil
}

// TagExists implements vcs.Adapter.
func (a *Adapter) TagExists(_ context.Context, name string) (bool, error) {
	const op = "git.TagExists"

	_, err := a.repo.Tag(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, git.ErrTagNotFound):
		return false, nil
	default:
		return false, pferrors.VCSWrap(err, op, fmt.Sprintf("failed to look up tag %s", name))
	}
}

// CurrentRevision returns the HEAD commit hash.
func (a *Adapter) CurrentRevision(_ context.Context) (string, error) {
	const op = "git.CurrentRevision"

	head, err := a.repo.Head()
	if err != nil {
		return "", pferrors.VCSWrap(err, op, "failed to get HEAD")
	}
	return head.Hash().String(), nil
}

// CreateReleaseTag creates an annotated tag at HEAD and pushes it when
// tag pushing is enabled.
func (a *Adapter) CreateReleaseTag(ctx context.Context, name, message string) error {
	const op = "git.CreateReleaseTag"

	head, err := a.repo.Head()
	if err != nil {
		return pferrors.VCSWrap(err, op, "failed to get HEAD")
	}

	if message == "" {
		message = name
	}
	_, err = a.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Message: message,
		Tagger:  a.tagger(),
	})
	if err != nil {
		return pferrors.VCSWrap(err, op, fmt.Sprintf("failed to create tag %s", name))
	}

	a.logger.Debug("created release tag", "tag", name, "revision", head.Hash().String())

	if !a.opts.PushTags {
		return nil
	}
	return a.pushTag(ctx, name)
}

// Changelog renders one line per commit from HEAD back to sinceRevision
// (exclusive), or the full history when sinceRevision is empty.
func (a *Adapter) Changelog(ctx context.Context, sinceRevision string) (string, error) {
	const op = "git.Changelog"

	head, err := a.repo.Head()
	if err != nil {
		return "", pferrors.VCSWrap(err, op, "failed to get HEAD")
	}

	var stopAt plumbing.Hash
	if sinceRevision != "" {
		stopAt, err = a.resolveRef(sinceRevision)
		if err != nil {
			return "", pferrors.VCSWrap(err, op, fmt.Sprintf("failed to resolve revision %s", sinceRevision))
		}
	}

	iter, err := a.repo.Log(&git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return "", pferrors.VCSWrap(err, op, "failed to get log iterator")
	}
	defer iter.Close()

	var b strings.Builder
	err = iter.ForEach(func(c *object.Commit) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if sinceRevision != "" && c.Hash == stopAt {
			return errStopIteration
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		fmt.Fprintf(&b, "%s %s\n", c.Hash.String()[:7], subject)
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		if ctx.Err() != nil {
			return "", pferrors.VCSWrap(ctx.Err(), op, "operation canceled")
		}
		return "", pferrors.VCSWrap(err, op, "failed to iterate commits")
	}
	return b.String(), nil
}

func (a *Adapter) pushTag(ctx context.Context, name string) error {
	const op = "git.pushTag"

	remote := a.opts.Remote
	if remote == "" {
		remote = defaultRemote
	}
	refSpec := config.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", name, name))

	_, err := a.push.Do(ctx, func(context.Context) (struct{}, error) {
		err := a.repo.Push(&git.PushOptions{
			RemoteName: remote,
			RefSpecs:   []config.RefSpec{refSpec},
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return pferrors.VCSWrap(err, op, fmt.Sprintf("failed to push tag %s to %s", name, remote))
	}

	a.logger.Debug("pushed release tag", "tag", name, "remote", remote)
	return nil
}

func (a *Adapter) tagger() *object.Signature {
	name := a.opts.TaggerName
	if name == "" {
		name = "packforge"
	}
	email := a.opts.TaggerEmail
	if email == "" {
		email = "packforge@localhost"
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

func (a *Adapter) resolveRef(ref string) (plumbing.Hash, error) {
	if plumbing.IsHash(ref) {
		return plumbing.NewHash(ref), nil
	}
	resolved, err := a.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve reference %s: %w", ref, err)
	}
	return *resolved, nil
}

// isRetryablePushError reports whether a push failure is worth retrying.
func isRetryablePushError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary") ||
		strings.Contains(errStr, "unreachable") ||
		strings.Contains(errStr, "early eof")
}

var _ vcs.Adapter = (*Adapter)(nil)
