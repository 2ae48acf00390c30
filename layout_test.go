package vault

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadIdentityRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := newLayout(dir)

	var id VaultIdentifier
	for i := range id {
		id[i] = byte(i)
	}

	require.NoError(t, writeIdentity(l, id))
	assert.True(t, IsVault(dir))

	got, err := readIdentity(l)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestIsVaultFalseWithoutIdentityFile(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsVault(dir))
}

func TestIsVaultFalseOnMalformedIdentityFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, identityFileName), []byte("not hex"), 0o600))
	assert.False(t, IsVault(dir))
}

func TestDirIsEmptyTreatsMissingAsEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	empty, err := dirIsEmpty(dir)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestDirIsEmptyFalseWhenPopulated(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), []byte("y"), 0o600))
	empty, err := dirIsEmpty(dir)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestBlobPathIsHexFileID(t *testing.T) {
	l := newLayout("/tmp/vault")
	var id [FileIDSize]byte
	id[0] = 0xAB
	want := filepath.Join("/tmp/vault", hex.EncodeToString(id[:])+".enc")
	assert.Equal(t, want, l.blobPath(id))
}
