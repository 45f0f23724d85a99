package git

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/vcs"
)

// testRepo builds throwaway git repositories for adapter tests.
type testRepo struct {
	t       *testing.T
	dir     string
	repo    *gogit.Repository
	commits int
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	return &testRepo{t: t, dir: dir, repo: repo}
}

// commit writes a file and commits it, with a strictly increasing
// committer time so log ordering is deterministic.
func (r *testRepo) commit(message string) string {
	r.t.Helper()

	r.commits++
	name := "file.txt"
	require.NoError(r.t, os.WriteFile(filepath.Join(r.dir, name), []byte(message), 0o644))

	worktree, err := r.repo.Worktree()
	require.NoError(r.t, err)
	_, err = worktree.Add(name)
	require.NoError(r.t, err)

	when := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(r.commits) * time.Minute)
	sig := &object.Signature{Name: "Test Author", Email: "test@example.com", When: when}
	hash, err := worktree.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(r.t, err)
	return hash.String()
}

func (r *testRepo) adapter(opts vcs.Options) *Adapter {
	r.t.Helper()

	a, err := New(r.dir, opts, log.New(io.Discard))
	require.NoError(r.t, err)
	return a
}

func TestNewNotARepository(t *testing.T) {
	_, err := New(t.TempDir(), vcs.Options{}, log.New(io.Discard))
	require.Error(t, err)
	assert.Equal(t, pferrors.KindVCS, pferrors.GetKind(err))
}

func TestValidateRepoState(t *testing.T) {
	repo := newTestRepo(t)
	repo.commit("initial commit")
	a := repo.adapter(vcs.Options{})

	require.NoError(t, a.ValidateRepoState(context.Background()))

	// An untracked file makes the tree unfit to release from.
	require.NoError(t, os.WriteFile(filepath.Join(repo.dir, "scratch.txt"), []byte("wip"), 0o644))

	err := a.ValidateRepoState(context.Background())
	require.Error(t, err)
	assert.Equal(t, pferrors.KindVCS, pferrors.GetKind(err))
	assert.ErrorContains(t, err, "uncommitted changes")
}

func TestCurrentRevision(t *testing.T) {
	repo := newTestRepo(t)
	hash := repo.commit("initial commit")
	a := repo.adapter(vcs.Options{})

	rev, err := a.CurrentRevision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, rev)
}

func TestTagLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	repo.commit("initial commit")
	a := repo.adapter(vcs.Options{TaggerName: "Release Bot", TaggerEmail: "bot@example.com"})

	exists, err := a.TagExists(context.Background(), "maya-2024.1.0")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, a.CreateReleaseTag(context.Background(), "maya-2024.1.0", "released maya-2024.1.0"))

	exists, err = a.TagExists(context.Background(), "maya-2024.1.0")
	require.NoError(t, err)
	assert.True(t, exists)

	// The tag is annotated and carries the release message.
	ref, err := repo.repo.Tag("maya-2024.1.0")
	require.NoError(t, err)
	obj, err := repo.repo.TagObject(ref.Hash())
	require.NoError(t, err)
	assert.Equal(t, "released maya-2024.1.0", obj.Message)
	assert.Equal(t, "Release Bot", obj.Tagger.Name)
}

func TestCreateReleaseTagCollision(t *testing.T) {
	repo := newTestRepo(t)
	repo.commit("initial commit")
	a := repo.adapter(vcs.Options{})

	require.NoError(t, a.CreateReleaseTag(context.Background(), "v1", ""))

	err := a.CreateReleaseTag(context.Background(), "v1", "")
	require.Error(t, err)
	assert.Equal(t, pferrors.KindVCS, pferrors.GetKind(err))
}

func TestChangelog(t *testing.T) {
	repo := newTestRepo(t)
	first := repo.commit("first: scaffolding")
	repo.commit("second: add build step")
	repo.commit("third: fix install path")
	a := repo.adapter(vcs.Options{})

	full, err := a.Changelog(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, full, "first: scaffolding")
	assert.Contains(t, full, "second: add build step")
	assert.Contains(t, full, "third: fix install path")

	since, err := a.Changelog(context.Background(), first)
	require.NoError(t, err)
	assert.NotContains(t, since, "first: scaffolding")
	assert.Contains(t, since, "second: add build step")
	assert.Contains(t, since, "third: fix install path")
}

func TestChangelogBadRevision(t *testing.T) {
	repo := newTestRepo(t)
	repo.commit("initial commit")
	a := repo.adapter(vcs.Options{})

	_, err := a.Changelog(context.Background(), "refs/tags/never-existed")
	require.Error(t, err)
	assert.Equal(t, pferrors.KindVCS, pferrors.GetKind(err))
}

func TestDetectFindsGit(t *testing.T) {
	repo := newTestRepo(t)
	repo.commit("initial commit")

	a, err := vcs.Detect(repo.dir, vcs.Options{}, log.New(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, Name, a.Name())
}

func TestIsRetryablePushError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"auth failure", errors.New("authentication required"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryablePushError(tt.err))
		})
	}
}
