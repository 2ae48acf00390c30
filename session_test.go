package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDetectsTamperedBlobOnNextUnlock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	ctx := context.Background()
	password := []byte("correct horse battery staple")

	h, err := Create(ctx, dir, "Notes", password, testConfig(t), nil)
	require.NoError(t, err)
	sess, err := h.Unlock(ctx, password, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(sess.WorkspacePath(), "a.md"), []byte("content"), 0o600))
	require.NoError(t, sess.Lock(ctx, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".enc" && e.Name() != indexFileName {
			blobPath := filepath.Join(dir, e.Name())
			data, err := os.ReadFile(blobPath)
			require.NoError(t, err)
			data[len(data)-1] ^= 0xFF
			require.NoError(t, os.WriteFile(blobPath, data, 0o600))
		}
	}

	_, err = h.Unlock(ctx, password, nil)
	require.Error(t, err)
}

func TestRenameDoesNotChangeCiphertextBlob(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	ctx := context.Background()
	password := []byte("correct horse battery staple")

	h, err := Create(ctx, dir, "Notes", password, testConfig(t), nil)
	require.NoError(t, err)
	sess, err := h.Unlock(ctx, password, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(sess.WorkspacePath(), "a.md"), []byte("content"), 0o600))
	require.NoError(t, sess.Lock(ctx, nil))

	blobName := func() string {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			if filepath.Ext(e.Name()) == ".enc" && e.Name() != indexFileName {
				return e.Name()
			}
		}
		t.Fatal("no file blob found")
		return ""
	}
	before := blobName()

	sess2, err := h.Unlock(ctx, password, nil)
	require.NoError(t, err)
	require.NoError(t, os.Rename(
		filepath.Join(sess2.WorkspacePath(), "a.md"),
		filepath.Join(sess2.WorkspacePath(), "b.md"),
	))
	require.NoError(t, sess2.Lock(ctx, nil))

	after := blobName()
	assert.Equal(t, before, after)

	sess3, err := h.Unlock(ctx, password, nil)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(sess3.WorkspacePath(), "b.md"))
	require.NoError(t, err)
	require.NoError(t, sess3.Lock(ctx, nil))
}

func TestLaunchEditorWithoutConfiguredPathFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	ctx := context.Background()
	h, err := Create(ctx, dir, "Notes", []byte("pw"), testConfig(t), nil)
	require.NoError(t, err)
	sess, err := h.Unlock(ctx, []byte("pw"), nil)
	require.NoError(t, err)

	err = sess.LaunchEditor()
	require.Error(t, err)
	require.NoError(t, sess.Lock(ctx, nil))
}

func TestForceUnlockDeleteWorkspaceDiscardsChanges(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	ctx := context.Background()
	password := []byte("pw")
	h, err := Create(ctx, dir, "Notes", password, testConfig(t), nil)
	require.NoError(t, err)
	sess, err := h.Unlock(ctx, password, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(sess.WorkspacePath(), "a.md"), []byte("x"), 0o600))
	require.NoError(t, sess.ForceUnlockDeleteWorkspace())
	assert.False(t, sess.IsUnlocked())

	sess2, err := h.Unlock(ctx, password, nil)
	require.NoError(t, err)
	entries, err := os.ReadDir(sess2.WorkspacePath())
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, sess2.Lock(ctx, nil))
}
