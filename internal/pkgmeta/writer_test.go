package pkgmeta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveDefinitionRoundTrip(t *testing.T) {
	pkg, err := Load(writeManifest(t, fullManifest))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, SaveDefinition(pkg, dir, "rev-42"))

	saved, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, pkg.Name, saved.Name)
	assert.Equal(t, pkg.Version.String(), saved.Version.String())
	assert.Equal(t, pkg.UUID, saved.UUID)
	assert.Equal(t, pkg.Description, saved.Description)
	assert.Equal(t, pkg.Authors, saved.Authors)
	assert.Equal(t, pkg.Requires, saved.Requires)
	assert.Equal(t, pkg.BuildRequires, saved.BuildRequires)
	assert.Equal(t, pkg.PrivateBuildRequires, saved.PrivateBuildRequires)
	assert.Equal(t, pkg.BuildCommand, saved.BuildCommand)
	assert.Equal(t, "rev-42", saved.Revision)

	require.Equal(t, pkg.NumVariants(), saved.NumVariants())
	for i, variant := range pkg.Variants() {
		assert.Equal(t, variant.Requires, saved.Variants()[i].Requires)
	}

	assert.Equal(t, pkg.Config.ReleaseHooks, saved.Config.ReleaseHooks)
	assert.Equal(t, pkg.Config.TagTemplate, saved.Config.TagTemplate)
	require.NotNil(t, saved.Config.MaxChangelogChars)
	assert.Equal(t, *pkg.Config.MaxChangelogChars, *saved.Config.MaxChangelogChars)
	require.NotNil(t, saved.Config.CheckTag)
	assert.Equal(t, *pkg.Config.CheckTag, *saved.Config.CheckTag)
}

func TestSaveDefinitionImplicitVariant(t *testing.T) {
	pkg, err := Load(writeManifest(t, "name = \"tiny\"\nversion = \"0.1.0\"\n"))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, SaveDefinition(pkg, dir, ""))

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "variants")
	assert.NotContains(t, string(data), "revision")

	saved, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.NumVariants())
	assert.Empty(t, saved.Variants()[0].Requires)
}

func TestSaveDefinitionOmitsEmptyFields(t *testing.T) {
	pkg, err := Load(writeManifest(t, "name = \"tiny\"\nversion = \"0.1.0\"\n"))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, SaveDefinition(pkg, dir, ""))

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "uuid")
	assert.NotContains(t, content, "description")
	assert.NotContains(t, content, "requires")
	assert.NotContains(t, content, "command")
}

func TestSaveDefinitionStampsRevision(t *testing.T) {
	pkg, err := Load(writeManifest(t, "name = \"tiny\"\nversion = \"0.1.0\"\n"))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, SaveDefinition(pkg, dir, "deadbeef"))

	saved, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", saved.Revision)
}

func TestSaveDefinitionUnwritableDir(t *testing.T) {
	pkg, err := Load(writeManifest(t, "name = \"tiny\"\nversion = \"0.1.0\"\n"))
	require.NoError(t, err)

	err = SaveDefinition(pkg, filepath.Join(t.TempDir(), "missing", "nested"), "")
	require.Error(t, err)
}
