package vcs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/packforge/packforge/internal/errors"
)

type fakeAdapter struct {
	name string
	root string
}

func (f *fakeAdapter) Name() string                                  { return f.name }
func (f *fakeAdapter) Root() string                                  { return f.root }
func (f *fakeAdapter) ValidateRepoState(context.Context) error       { return nil }
func (f *fakeAdapter) TagExists(context.Context, string) (bool, error) { return false, nil }
func (f *fakeAdapter) CreateReleaseTag(context.Context, string, string) error { return nil }
func (f *fakeAdapter) CurrentRevision(context.Context) (string, error) { return "rev", nil }
func (f *fakeAdapter) Changelog(context.Context, string) (string, error) { return "", nil }

func fakeFactory(name string) Factory {
	return func(path string, _ Options, _ *log.Logger) (Adapter, error) {
		return &fakeAdapter{name: name, root: path}, nil
	}
}

func TestRegistryNewAndDetect(t *testing.T) {
	Register("fakevcs", ".fakevcs", fakeFactory("fakevcs"))

	logger := log.New(io.Discard)

	a, err := New("fakevcs", "/work/pkg", Options{}, logger)
	require.NoError(t, err)
	assert.Equal(t, "fakevcs", a.Name())
	assert.Equal(t, "/work/pkg", a.Root())

	_, err = New("cvs", "/work/pkg", Options{}, logger)
	require.Error(t, err)
	assert.Equal(t, pferrors.KindVCS, pferrors.GetKind(err))

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".fakevcs"), 0o755))

	detected, err := Detect(dir, Options{}, logger)
	require.NoError(t, err)
	assert.Equal(t, "fakevcs", detected.Name())

	_, err = Detect(t.TempDir(), Options{}, logger)
	require.Error(t, err)
	assert.Equal(t, pferrors.KindVCS, pferrors.GetKind(err))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("dupvcs", ".dupvcs", fakeFactory("dupvcs"))
	assert.Panics(t, func() {
		Register("dupvcs", ".dupvcs", fakeFactory("dupvcs"))
	})
}

func TestRunScopedSkipsOnlyRepoErrors(t *testing.T) {
	vcsErr := pferrors.VCS("test", "remote unreachable")
	releaseErr := pferrors.Release("test", "version regression")

	tests := []struct {
		name       string
		skipErrors bool
		err        error
		wantErr    error
	}{
		{"no error", true, nil, nil},
		{"vcs error skipped", true, vcsErr, nil},
		{"vcs error propagates without skip", false, vcsErr, vcsErr},
		{"release error never skipped", true, releaseErr, releaseErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := log.New(&buf)

			err := RunScoped(logger, tt.skipErrors, "tag creation", func() error {
				return tt.err
			})

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantErr, err)
			}

			if tt.err != nil && tt.wantErr == nil {
				assert.Contains(t, buf.String(), "ignoring repository error")
				assert.Contains(t, buf.String(), "tag creation")
			} else {
				assert.NotContains(t, buf.String(), "ignoring repository error")
			}
		})
	}
}
