package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashHexRoundTrip(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(i)
	}
	got, err := HashFromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHashFromBytesLength(t *testing.T) {
	_, err := HashFromBytes(make([]byte, 31))
	assert.Error(t, err)
	_, err = HashFromBytes(make([]byte, 33))
	assert.Error(t, err)
	_, err = HashFromBytes(make([]byte, 32))
	assert.NoError(t, err)
}

func TestHashIsZero(t *testing.T) {
	var h Hash
	assert.True(t, h.IsZero())
	h[31] = 1
	assert.False(t, h.IsZero())
}

func TestCommitIDIsRoot(t *testing.T) {
	var id CommitID
	assert.True(t, id.IsRoot())
	id[0] = 1
	assert.False(t, id.IsRoot())
}

func TestMergedTreeID(t *testing.T) {
	single := ResolvedTree(TreeID{1})
	assert.False(t, single.UsesConflictFormat())
	id, ok := single.Resolved()
	assert.True(t, ok)
	assert.Equal(t, TreeID{1}, id)

	_, err := ConflictedTree(nil)
	assert.Error(t, err)
	_, err = ConflictedTree([]TreeID{{1}, {2}})
	assert.Error(t, err)

	conflicted, err := ConflictedTree([]TreeID{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.True(t, conflicted.UsesConflictFormat())
	_, ok = conflicted.Resolved()
	assert.False(t, ok)

	signed := conflicted.SignedTerms()
	require.Len(t, signed, 3)
	assert.Equal(t, Positive, signed[0].Sign)
	assert.Equal(t, Negative, signed[1].Sign)
	assert.Equal(t, Positive, signed[2].Sign)
}

func TestTreeValueConstructors(t *testing.T) {
	v := FileValue(FileID{1}, true)
	assert.Equal(t, TreeValueFile, v.Kind)
	assert.True(t, v.Executable)
	assert.False(t, v.IsAbsent())

	assert.True(t, TreeValue{}.IsAbsent())
	assert.NotEqual(t, FileValue(FileID{1}, true), FileValue(FileID{1}, false))
}

func TestTreeValueKindStrings(t *testing.T) {
	assert.Equal(t, "Absent", TreeValueAbsent.String())
	assert.Equal(t, "File", TreeValueFile.String())
	assert.Equal(t, "Symlink", TreeValueSymlink.String())
	assert.Equal(t, "Subtree", TreeValueSubtree.String())
	assert.Equal(t, "Conflict", TreeValueConflict.String())
}
