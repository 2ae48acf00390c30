package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCrashRecoveryLeftoverWorkspace exercises the §4.10 protocol: a
// process unlocks a vault, writes a note, and then "crashes" (exits
// without calling Lock). A fresh process start scans the workspace base
// directory, finds the leftover, and only removes it once the caller
// explicitly consents; the encrypted vault itself is untouched and
// re-unlockable throughout.
func TestCrashRecoveryLeftoverWorkspace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	cfg := testConfig(t)
	ctx := context.Background()
	password := []byte("correct horse battery staple")

	h, err := Create(ctx, dir, "Notes", password, cfg, nil)
	require.NoError(t, err)

	sess, err := h.Unlock(ctx, password, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(sess.WorkspacePath(), "draft.md"), []byte("unsaved"), 0o600))

	// Simulate a crash: the process exits here in the real world. We just
	// stop calling session methods and let the workspace directory sit on
	// disk, exactly as §4.10 describes.
	leftoverPath := sess.WorkspacePath()

	found, err := ListLeftoverWorkspaces(cfg.WorkspaceBaseDir)
	require.NoError(t, err)
	require.Equal(t, []string{leftoverPath}, found)

	// The vault itself must still be valid and unlockable while the
	// leftover sits there unresolved.
	sess2, err := h.Unlock(ctx, password, nil)
	require.NoError(t, err)
	entries, err := os.ReadDir(sess2.WorkspacePath())
	require.NoError(t, err)
	assert.Empty(t, entries) // the crashed edit was never locked in
	require.NoError(t, sess2.Lock(ctx, nil))

	require.NoError(t, CleanLeftoverWorkspaces(found))
	_, err = os.Stat(leftoverPath)
	assert.True(t, os.IsNotExist(err))

	stillThere, err := ListLeftoverWorkspaces(cfg.WorkspaceBaseDir)
	require.NoError(t, err)
	assert.Empty(t, stillThere)
}

// TestUnlockWithCorruptedIndexSurfacesInvalidPassword checks that §4.6's
// load() path collapses index corruption into the same InvalidPassword
// kind as a wrong password, per the spec's no-oracle requirement.
func TestUnlockWithCorruptedIndexSurfacesInvalidPassword(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	ctx := context.Background()
	password := []byte("correct horse battery staple")
	cfg := testConfig(t)

	h, err := Create(ctx, dir, "Notes", password, cfg, nil)
	require.NoError(t, err)

	indexPath := filepath.Join(dir, indexFileName)
	data, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(indexPath, data, 0o600))

	_, err = h.Unlock(ctx, password, nil)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidPassword, kind)
}
