package pyproject

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(content), 0o600))
	return dir
}

func TestLoad_DeclaredBackend(t *testing.T) {
	dir := writeProject(t, `
[build-system]
requires = ["hatchling>=1.20"]
build-backend = "hatchling.build"
`)

	bs, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "hatchling.build", bs.BuildBackend)
	assert.Equal(t, []string{"hatchling>=1.20"}, bs.Requires)
	assert.Empty(t, bs.BackendPath)
}

func TestLoad_BackendPath(t *testing.T) {
	dir := writeProject(t, `
[build-system]
requires = []
build-backend = "local_backend"
backend-path = ["_custom_build"]
`)

	bs, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "local_backend", bs.BuildBackend)
	assert.Equal(t, []string{"_custom_build"}, bs.BackendPath)
	// A declared empty requires stays empty; the backend comes from the
	// backend-path, not from an implied setuptools install.
	assert.Empty(t, bs.Requires)
}

func TestLoad_DeclaredEmptyRequiresStaysEmpty(t *testing.T) {
	dir := writeProject(t, `
[build-system]
requires = []
build-backend = "flit_core.buildapi"
`)

	bs, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "flit_core.buildapi", bs.BuildBackend)
	assert.Empty(t, bs.Requires)
}

func TestLoad_NoBuildSystemTable(t *testing.T) {
	dir := writeProject(t, `
[project]
name = "mypkg"
version = "1.0"
`)

	bs, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, LegacyBackend, bs.BuildBackend)
	assert.Equal(t, []string{"setuptools>=40.8.0"}, bs.Requires)
}

func TestLoad_MissingFile(t *testing.T) {
	bs, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, LegacyBackend, bs.BuildBackend)
}

func TestLoad_MissingBackendKeepsRequires(t *testing.T) {
	dir := writeProject(t, `
[build-system]
requires = ["setuptools>=61", "wheel"]
`)

	bs, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, LegacyBackend, bs.BuildBackend)
	assert.Equal(t, []string{"setuptools>=61", "wheel"}, bs.Requires)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := writeProject(t, "[build-system\nrequires = [")
	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pyproject.toml")
}
