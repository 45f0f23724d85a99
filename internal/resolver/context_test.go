package resolver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/pkgmeta"
)

func TestContextSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ContextFileName)

	original := &BuildContext{
		Status:      StatusSolved,
		Requests:    []pkgmeta.Requirement{"python-3.11", "cmake-3.27"},
		SearchPaths: []string{"/repo/local", "/repo/released"},
		Building:    true,
		CreatedAt:   time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Resolved: []ResolvedPackage{
			{Name: "python", Version: "3.11.4", Root: "/repo/released/python/3.11.4"},
			{Name: "cmake", Version: "3.27.0", Root: "/repo/released/cmake/3.27.0"},
		},
		Environ: map[string]string{
			"PATH":       "/repo/released/python/3.11.4/bin",
			"PYTHONPATH": "/repo/released/python/3.11.4/lib",
		},
	}

	require.NoError(t, original.Save(path))

	loaded, err := LoadContext(path)
	require.NoError(t, err)

	assert.Equal(t, original.Status, loaded.Status)
	assert.Equal(t, original.Requests, loaded.Requests)
	assert.Equal(t, original.SearchPaths, loaded.SearchPaths)
	assert.Equal(t, original.Building, loaded.Building)
	assert.True(t, original.CreatedAt.Equal(loaded.CreatedAt))
	assert.Equal(t, original.Resolved, loaded.Resolved)
	assert.Equal(t, original.Environ, loaded.Environ)
	assert.Empty(t, loaded.FailureDescription)
}

func TestContextSaveFailedResolution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ContextFileName)

	failed := &BuildContext{
		Status:             StatusUnsatisfiable,
		Requests:           []pkgmeta.Requirement{"python-3.11", "python-2.7"},
		SearchPaths:        []string{"/repo/released"},
		Building:           true,
		CreatedAt:          time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		FailureDescription: "python-3.11 conflicts with python-2.7",
	}

	require.NoError(t, failed.Save(path))

	loaded, err := LoadContext(path)
	require.NoError(t, err)

	assert.False(t, loaded.Solved())
	assert.Equal(t, StatusUnsatisfiable, loaded.Status)
	assert.Equal(t, "python-3.11 conflicts with python-2.7", loaded.FailureDescription)
	assert.Empty(t, loaded.Resolved)
}

func TestContextSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ContextFileName)

	first := &BuildContext{Status: StatusSolved, CreatedAt: time.Now().UTC()}
	require.NoError(t, first.Save(path))

	second := &BuildContext{Status: StatusFailed, CreatedAt: time.Now().UTC()}
	require.NoError(t, second.Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "overwrite must not leave temp files behind")

	loaded, err := LoadContext(path)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, loaded.Status)
}

func TestLoadContextMissing(t *testing.T) {
	_, err := LoadContext(filepath.Join(t.TempDir(), "nope", ContextFileName))
	require.Error(t, err)
	assert.Equal(t, pferrors.KindIO, pferrors.GetKind(err))
}

func TestLoadContextGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), ContextFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: [::"), 0o644))

	_, err := LoadContext(path)
	require.Error(t, err)
	assert.Equal(t, pferrors.KindIO, pferrors.GetKind(err))
}

func TestSolved(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusSolved, true},
		{StatusFailed, false},
		{StatusUnsatisfiable, false},
		{StatusAborted, false},
	}

	for _, tt := range tests {
		c := &BuildContext{Status: tt.status}
		assert.Equal(t, tt.want, c.Solved(), "status %q", tt.status)
	}
}

func TestEnvironListSorted(t *testing.T) {
	c := &BuildContext{
		Environ: map[string]string{
			"ZED":  "last",
			"PATH": "/usr/bin",
			"ACK":  "first",
		},
	}

	assert.Equal(t, []string{"ACK=first", "PATH=/usr/bin", "ZED=last"}, c.EnvironList())
}

func TestEnvironListEmpty(t *testing.T) {
	c := &BuildContext{}
	assert.Empty(t, c.EnvironList())
}
