package vaultindex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idFor(b byte) FileID {
	var id FileID
	for i := range id {
		id[i] = b
	}
	return id
}

func TestAddFindRemoveFile(t *testing.T) {
	tr := NewTree("Notes")

	_, err := tr.AddFile("", "Ideas.md", idFor(1), [32]byte{0xAA})
	require.NoError(t, err)

	n, ok := tr.FindByPath("Ideas.md")
	require.True(t, ok)
	assert.Equal(t, KindFile, n.Kind)

	_, err = tr.AddFile("", "Ideas.md", idFor(2), [32]byte{0xBB})
	assert.ErrorIs(t, err, ErrExists)

	removed, err := tr.Remove("Ideas.md")
	require.NoError(t, err)
	assert.Equal(t, []FileID{idFor(1)}, removed)

	_, ok = tr.FindByPath("Ideas.md")
	assert.False(t, ok)
	_, ok = tr.ByID(idFor(1))
	assert.False(t, ok)
}

func TestRenamePreservesIdentifier(t *testing.T) {
	tr := NewTree("Notes")
	_, err := tr.AddFile("", "Ideas.md", idFor(7), [32]byte{})
	require.NoError(t, err)

	require.NoError(t, tr.Rename("Ideas.md", "Thoughts.md"))

	_, ok := tr.FindByPath("Ideas.md")
	assert.False(t, ok)

	n, ok := tr.FindByPath("Thoughts.md")
	require.True(t, ok)
	assert.Equal(t, idFor(7), n.ID)
}

func TestEnsureFoldersAndNestedAddFile(t *testing.T) {
	tr := NewTree("Notes")
	_, err := tr.EnsureFolders("Projects/Alpha")
	require.NoError(t, err)

	_, err = tr.AddFile("Projects/Alpha", "plan.md", idFor(3), [32]byte{})
	require.NoError(t, err)

	n, ok := tr.FindByPath("Projects/Alpha/plan.md")
	require.True(t, ok)
	assert.Equal(t, KindFile, n.Kind)
}

func TestRemoveFolderCollectsDescendantFileIDs(t *testing.T) {
	tr := NewTree("Notes")
	_, err := tr.EnsureFolders("Projects")
	require.NoError(t, err)
	_, err = tr.AddFile("Projects", "a.md", idFor(1), [32]byte{})
	require.NoError(t, err)
	_, err = tr.AddFile("Projects", "b.md", idFor(2), [32]byte{})
	require.NoError(t, err)

	removed, err := tr.Remove("Projects")
	require.NoError(t, err)
	assert.ElementsMatch(t, []FileID{idFor(1), idFor(2)}, removed)

	_, ok := tr.ByID(idFor(1))
	assert.False(t, ok)
	_, ok = tr.ByID(idFor(2))
	assert.False(t, ok)
}

func TestAddFolderDuplicateNameFails(t *testing.T) {
	tr := NewTree("Notes")
	_, err := tr.AddFolder("", "Projects")
	require.NoError(t, err)
	_, err = tr.AddFolder("", "Projects")
	assert.ErrorIs(t, err, ErrExists)
}

func TestJSONRoundTripRebuildsIndex(t *testing.T) {
	tr := NewTree("Notes")
	_, err := tr.EnsureFolders("Projects")
	require.NoError(t, err)
	_, err = tr.AddFile("Projects", "a.md", idFor(9), [32]byte{0x01, 0x02})
	require.NoError(t, err)

	data, err := json.Marshal(tr)
	require.NoError(t, err)

	var out Tree
	require.NoError(t, json.Unmarshal(data, &out))

	n, ok := out.FindByPath("Projects/a.md")
	require.True(t, ok)
	assert.Equal(t, idFor(9), n.ID)

	byID, ok := out.ByID(idFor(9))
	require.True(t, ok)
	assert.Equal(t, n, byID)
}

func TestFindByPathEmptyResolvesToRoot(t *testing.T) {
	tr := NewTree("Notes")
	n, ok := tr.FindByPath("")
	require.True(t, ok)
	assert.Equal(t, KindFolder, n.Kind)
	assert.Equal(t, "Notes", n.Name)
}

func TestNameComparisonIsCaseSensitive(t *testing.T) {
	tr := NewTree("Notes")
	_, err := tr.AddFile("", "Ideas.md", idFor(1), [32]byte{})
	require.NoError(t, err)
	_, ok := tr.FindByPath("ideas.md")
	assert.False(t, ok)
}
