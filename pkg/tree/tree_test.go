package tree

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cultivate-vcs/cultivate/internal/keyValStore"
	"github.com/cultivate-vcs/cultivate/internal/objectStore"
	"github.com/cultivate-vcs/cultivate/pkg/types"
)

func newTestStore(t *testing.T) *objectStore.ObjectStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:  []string{t.TempDir()},
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return objectStore.New(kv, logger)
}

func fileValue(t *testing.T, s *objectStore.ObjectStore, content string) types.TreeValue {
	t.Helper()
	id, err := s.WriteFile(types.File{Content: []byte(content)})
	require.NoError(t, err)
	return types.FileValue(id, false)
}

func TestLookup(t *testing.T) {
	v := types.SubtreeValue(types.TreeID{})
	tree := types.Tree{Entries: []types.TreeEntry{
		{Name: "a", Value: v},
		{Name: "c", Value: v},
	}}

	got, ok := Lookup(tree, "a")
	assert.True(t, ok)
	assert.Equal(t, v, got)

	got, ok = Lookup(tree, "b")
	assert.False(t, ok)
	assert.True(t, got.IsAbsent())
}

func TestWithEntry(t *testing.T) {
	v1 := types.SymlinkValue(types.SymlinkID{1})
	v2 := types.SymlinkValue(types.SymlinkID{2})

	var tree types.Tree
	tree = WithEntry(tree, "b", v1)
	tree = WithEntry(tree, "a", v1)
	tree = WithEntry(tree, "c", v1)
	require.Equal(t, []string{"a", "b", "c"}, entryNames(tree))

	// Replace keeps the order and leaves the original untouched.
	replaced := WithEntry(tree, "b", v2)
	got, _ := Lookup(replaced, "b")
	assert.Equal(t, v2, got)
	got, _ = Lookup(tree, "b")
	assert.Equal(t, v1, got)

	// Absent removes.
	removed := WithEntry(tree, "b", types.TreeValue{})
	assert.Equal(t, []string{"a", "c"}, entryNames(removed))
	assert.Equal(t, []string{"a", "b", "c"}, entryNames(tree))

	// Removing a missing entry is a no-op.
	same := WithEntry(tree, "zz", types.TreeValue{})
	assert.True(t, same.Equal(tree))
}

func entryNames(t types.Tree) []string {
	out := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		out = append(out, e.Name)
	}
	return out
}

func TestMergeDisjointEdits(t *testing.T) {
	s := newTestStore(t)
	base := types.Tree{Entries: []types.TreeEntry{
		{Name: "a", Value: fileValue(t, s, "a0")},
		{Name: "b", Value: fileValue(t, s, "b0")},
	}}
	sideA := WithEntry(base, "a", fileValue(t, s, "a1"))
	sideB := WithEntry(base, "b", fileValue(t, s, "b1"))

	merged, err := Merge(s, base, sideA, sideB)
	require.NoError(t, err)

	got, _ := Lookup(merged, "a")
	assert.Equal(t, fileValue(t, s, "a1"), got)
	got, _ = Lookup(merged, "b")
	assert.Equal(t, fileValue(t, s, "b1"), got)
}

func TestMergeSameChangeBothSides(t *testing.T) {
	s := newTestStore(t)
	base := types.Tree{Entries: []types.TreeEntry{
		{Name: "a", Value: fileValue(t, s, "old")},
	}}
	changed := WithEntry(base, "a", fileValue(t, s, "new"))

	merged, err := Merge(s, base, changed, changed)
	require.NoError(t, err)
	got, _ := Lookup(merged, "a")
	assert.Equal(t, fileValue(t, s, "new"), got)
}

func TestMergeDivergentChangeConflicts(t *testing.T) {
	s := newTestStore(t)
	baseV := fileValue(t, s, "base")
	aV := fileValue(t, s, "ours")
	bV := fileValue(t, s, "theirs")

	base := types.Tree{Entries: []types.TreeEntry{{Name: "f", Value: baseV}}}
	merged, err := Merge(s, base, WithEntry(base, "f", aV), WithEntry(base, "f", bV))
	require.NoError(t, err)

	got, ok := Lookup(merged, "f")
	require.True(t, ok)
	require.Equal(t, types.TreeValueConflict, got.Kind)

	conflict, err := s.ReadConflict(got.ConflictID)
	require.NoError(t, err)
	assert.Equal(t, []types.TreeValue{baseV}, conflict.Removes)
	assert.Equal(t, []types.TreeValue{aV, bV}, conflict.Adds)
}

func TestMergeDeleteVersusModify(t *testing.T) {
	s := newTestStore(t)
	baseV := fileValue(t, s, "base")
	modV := fileValue(t, s, "modified")

	base := types.Tree{Entries: []types.TreeEntry{{Name: "f", Value: baseV}}}
	deleted := WithEntry(base, "f", types.TreeValue{})
	modified := WithEntry(base, "f", modV)

	merged, err := Merge(s, base, deleted, modified)
	require.NoError(t, err)
	got, ok := Lookup(merged, "f")
	require.True(t, ok)
	require.Equal(t, types.TreeValueConflict, got.Kind)

	conflict, err := s.ReadConflict(got.ConflictID)
	require.NoError(t, err)
	assert.Equal(t, []types.TreeValue{baseV}, conflict.Removes)
	assert.Equal(t, []types.TreeValue{modV}, conflict.Adds)
}

func TestMergeBothDelete(t *testing.T) {
	s := newTestStore(t)
	base := types.Tree{Entries: []types.TreeEntry{{Name: "f", Value: fileValue(t, s, "gone")}}}
	deleted := WithEntry(base, "f", types.TreeValue{})

	merged, err := Merge(s, base, deleted, deleted)
	require.NoError(t, err)
	assert.True(t, merged.IsEmpty())
}

func TestMergeRecursesIntoSubtrees(t *testing.T) {
	s := newTestStore(t)

	subBase := types.Tree{Entries: []types.TreeEntry{
		{Name: "x", Value: fileValue(t, s, "x0")},
		{Name: "y", Value: fileValue(t, s, "y0")},
	}}
	writeSub := func(tr types.Tree) types.TreeValue {
		id, err := s.WriteTree(tr)
		require.NoError(t, err)
		return types.SubtreeValue(id)
	}

	base := types.Tree{Entries: []types.TreeEntry{{Name: "dir", Value: writeSub(subBase)}}}
	sideA := types.Tree{Entries: []types.TreeEntry{{Name: "dir", Value: writeSub(WithEntry(subBase, "x", fileValue(t, s, "x1")))}}}
	sideB := types.Tree{Entries: []types.TreeEntry{{Name: "dir", Value: writeSub(WithEntry(subBase, "y", fileValue(t, s, "y1")))}}}

	merged, err := Merge(s, base, sideA, sideB)
	require.NoError(t, err)
	got, ok := Lookup(merged, "dir")
	require.True(t, ok)
	require.Equal(t, types.TreeValueSubtree, got.Kind)

	sub, err := s.ReadTree(got.TreeID)
	require.NoError(t, err)
	x, _ := Lookup(sub, "x")
	assert.Equal(t, fileValue(t, s, "x1"), x)
	y, _ := Lookup(sub, "y")
	assert.Equal(t, fileValue(t, s, "y1"), y)
}

func TestMergeDropsEmptiedSubtree(t *testing.T) {
	s := newTestStore(t)

	sub := types.Tree{Entries: []types.TreeEntry{{Name: "x", Value: fileValue(t, s, "x")}}}
	subID, err := s.WriteTree(sub)
	require.NoError(t, err)

	base := types.Tree{Entries: []types.TreeEntry{{Name: "dir", Value: types.SubtreeValue(subID)}}}
	sideA := types.Tree{Entries: []types.TreeEntry{{Name: "dir", Value: types.SubtreeValue(s.EmptyTreeID())}}}

	merged, err := Merge(s, base, sideA, base)
	require.NoError(t, err)
	assert.True(t, merged.IsEmpty())
}

// Re-merging a conflicted tree against a resolution collapses the conflict.
func TestMergeResolvesExistingConflict(t *testing.T) {
	s := newTestStore(t)
	baseV := fileValue(t, s, "base")
	aV := fileValue(t, s, "ours")
	bV := fileValue(t, s, "theirs")
	resolvedV := fileValue(t, s, "settled")

	base := types.Tree{Entries: []types.TreeEntry{{Name: "f", Value: baseV}}}
	conflicted, err := Merge(s, base, WithEntry(base, "f", aV), WithEntry(base, "f", bV))
	require.NoError(t, err)
	cv, _ := Lookup(conflicted, "f")
	require.Equal(t, types.TreeValueConflict, cv.Kind)

	resolution := WithEntry(conflicted, "f", resolvedV)
	merged, err := Merge(s, conflicted, resolution, conflicted)
	require.NoError(t, err)

	got, _ := Lookup(merged, "f")
	assert.Equal(t, resolvedV, got)
}

func TestFlattenSingleTerm(t *testing.T) {
	s := newTestStore(t)
	tree := types.Tree{Entries: []types.TreeEntry{{Name: "a", Value: fileValue(t, s, "a")}}}
	id, err := s.WriteTree(tree)
	require.NoError(t, err)

	flat, err := Flatten(s, []types.TreeID{id})
	require.NoError(t, err)
	assert.True(t, flat.Equal(tree))
}

func TestFlattenRejectsEvenLength(t *testing.T) {
	s := newTestStore(t)
	_, err := Flatten(s, []types.TreeID{s.EmptyTreeID(), s.EmptyTreeID()})
	assert.Error(t, err)
	_, err = Flatten(s, nil)
	assert.Error(t, err)
}

func TestFlattenAutoResolves(t *testing.T) {
	s := newTestStore(t)
	base := types.Tree{Entries: []types.TreeEntry{
		{Name: "a", Value: fileValue(t, s, "a0")},
		{Name: "b", Value: fileValue(t, s, "b0")},
	}}
	sideA := WithEntry(base, "a", fileValue(t, s, "a1"))
	sideB := WithEntry(base, "b", fileValue(t, s, "b1"))

	ids := make([]types.TreeID, 3)
	for i, tr := range []types.Tree{sideA, base, sideB} {
		id, err := s.WriteTree(tr)
		require.NoError(t, err)
		ids[i] = id
	}

	flat, err := Flatten(s, ids)
	require.NoError(t, err)
	a, _ := Lookup(flat, "a")
	assert.Equal(t, fileValue(t, s, "a1"), a)
	b, _ := Lookup(flat, "b")
	assert.Equal(t, fileValue(t, s, "b1"), b)
}

func TestFlattenKeepsRealConflict(t *testing.T) {
	s := newTestStore(t)
	base := types.Tree{Entries: []types.TreeEntry{{Name: "f", Value: fileValue(t, s, "base")}}}
	sideA := WithEntry(base, "f", fileValue(t, s, "ours"))
	sideB := WithEntry(base, "f", fileValue(t, s, "theirs"))

	ids := make([]types.TreeID, 3)
	for i, tr := range []types.Tree{sideA, base, sideB} {
		id, err := s.WriteTree(tr)
		require.NoError(t, err)
		ids[i] = id
	}

	flat, err := Flatten(s, ids)
	require.NoError(t, err)
	got, ok := Lookup(flat, "f")
	require.True(t, ok)
	assert.Equal(t, types.TreeValueConflict, got.Kind)
}
