package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLeftoverWorkspacesFindsOnlyWorkspaceDirs(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "workspace_abcd1234"), 0o700))
	require.NoError(t, os.Mkdir(filepath.Join(base, "not-a-workspace"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(base, "workspace_file"), []byte("x"), 0o600))

	got, err := ListLeftoverWorkspaces(base)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(base, "workspace_abcd1234")}, got)
}

func TestListLeftoverWorkspacesMissingBaseIsEmpty(t *testing.T) {
	got, err := ListLeftoverWorkspaces(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCleanLeftoverWorkspacesRemovesDirectories(t *testing.T) {
	base := t.TempDir()
	ws := filepath.Join(base, "workspace_dead")
	require.NoError(t, os.MkdirAll(ws, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "note.md"), []byte("leftover"), 0o600))

	require.NoError(t, CleanLeftoverWorkspaces([]string{ws}))

	_, err := os.Stat(ws)
	assert.True(t, os.IsNotExist(err))
}
