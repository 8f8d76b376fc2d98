package objectStore

import (
	"crypto/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cultivate-vcs/cultivate/internal/codec"
	"github.com/cultivate-vcs/cultivate/internal/keyValStore"
	"github.com/cultivate-vcs/cultivate/pkg/types"
)

func newTestStore(t *testing.T) *ObjectStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:  []string{t.TempDir()},
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return New(kv, logger)
}

func TestFileRoundTrip(t *testing.T) {
	s := newTestStore(t)

	f := types.File{Content: []byte("hello, store")}
	id, err := s.WriteFile(f)
	require.NoError(t, err)

	got, err := s.ReadFile(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(f))
}

func TestLargeFileRoundTrip(t *testing.T) {
	s := newTestStore(t)

	// Larger than one chunk, so the manifest spans several chunks.
	content := make([]byte, 3*1024*1024)
	_, err := rand.Read(content)
	require.NoError(t, err)

	id, err := s.WriteFile(types.File{Content: content})
	require.NoError(t, err)

	got, err := s.ReadFile(id)
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
}

func TestWriteFileIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	f := types.File{Content: []byte("same bytes")}
	id1, err := s.WriteFile(f)
	require.NoError(t, err)
	id2, err := s.WriteFile(f)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestSymlinkRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id, err := s.WriteSymlink(types.Symlink{Target: "../target"})
	require.NoError(t, err)
	got, err := s.ReadSymlink(id)
	require.NoError(t, err)
	assert.Equal(t, "../target", got.Target)
}

func TestTreeRoundTrip(t *testing.T) {
	s := newTestStore(t)

	fileID, err := s.WriteFile(types.File{Content: []byte("x")})
	require.NoError(t, err)
	tree := types.Tree{Entries: []types.TreeEntry{
		{Name: "a", Value: types.FileValue(fileID, false)},
	}}

	id, err := s.WriteTree(tree)
	require.NoError(t, err)
	got, err := s.ReadTree(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(tree))
}

// Identical content written twice, even concurrently, converges on one id.
func TestIdenticalWritesConverge(t *testing.T) {
	s := newTestStore(t)

	tree := types.Tree{Entries: []types.TreeEntry{
		{Name: "a", Value: types.SubtreeValue(s.EmptyTreeID())},
	}}

	type result struct {
		id  types.TreeID
		err error
	}
	results := make(chan result, 8)
	for i := 0; i < 8; i++ {
		go func() {
			id, err := s.WriteTree(tree)
			results <- result{id, err}
		}()
	}
	first := <-results
	require.NoError(t, first.err)
	for i := 1; i < 8; i++ {
		r := <-results
		require.NoError(t, r.err)
		assert.Equal(t, first.id, r.id)
	}
}

func TestEmptyTreeReadableFromFreshStore(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ReadTree(s.EmptyTreeID())
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	has, err := s.HasTree(s.EmptyTreeID())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestConflictRoundTrip(t *testing.T) {
	s := newTestStore(t)

	aID, err := s.WriteFile(types.File{Content: []byte("ours")})
	require.NoError(t, err)
	bID, err := s.WriteFile(types.File{Content: []byte("theirs")})
	require.NoError(t, err)
	baseID, err := s.WriteFile(types.File{Content: []byte("base")})
	require.NoError(t, err)

	c := types.Conflict{
		Removes: []types.TreeValue{types.FileValue(baseID, false)},
		Adds:    []types.TreeValue{types.FileValue(aID, false), types.FileValue(bID, false)},
	}
	id, err := s.WriteConflict(c)
	require.NoError(t, err)
	got, err := s.ReadConflict(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(c))
}

func TestCommitRoundTrip(t *testing.T) {
	s := newTestStore(t)

	c := types.Commit{
		Parents:  []types.CommitID{{}},
		RootTree: types.ResolvedTree(s.EmptyTreeID()),
		ChangeID: types.ChangeID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		Author:   types.Signature{Name: "a", Email: "a@example.com"},
	}
	id, err := s.WriteCommit(c)
	require.NoError(t, err)
	got, err := s.ReadCommit(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(c))
}

func TestReadMissingObject(t *testing.T) {
	s := newTestStore(t)

	var id types.TreeID
	id[0] = 0xab
	_, err := s.ReadTree(id)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.ReadFile(types.FileID(id))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

// Flipping stored bytes must surface as corruption, not as a wrong object.
func TestCorruptedObjectDetected(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:  []string{t.TempDir()},
		Logger: logger,
	})
	require.NoError(t, err)
	defer kv.Close()
	s := New(kv, logger)

	symID, err := s.WriteSymlink(types.Symlink{Target: "somewhere"})
	require.NoError(t, err)

	raw, err := kv.Read(objectKey(prefixSymlink, types.Hash(symID)))
	require.NoError(t, err)
	raw[0] ^= 0xff
	require.NoError(t, kv.Write(objectKey(prefixSymlink, types.Hash(symID)), raw))

	_, err = s.ReadSymlink(symID)
	assert.ErrorIs(t, err, types.ErrCorruptObject)
}

func TestHasObject(t *testing.T) {
	s := newTestStore(t)

	id, err := s.WriteFile(types.File{Content: []byte("here")})
	require.NoError(t, err)

	has, err := s.HasFile(id)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasFile(types.FileID(codec.Digest([]byte("not written"))))
	require.NoError(t, err)
	assert.False(t, has)
}
