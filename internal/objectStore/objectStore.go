// Package objectStore persists the immutable object kinds (File, Symlink,
// Tree, Conflict, Commit) in the key-value store, addressed by content
// digest. Writes are idempotent upserts; no delete or update surface exists.
package objectStore

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cultivate-vcs/cultivate/internal/codec"
	"github.com/cultivate-vcs/cultivate/internal/keyValStore"
	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// Key prefixes namespace the digest space per object kind.
const (
	prefixFile     = "file:"
	prefixSymlink  = "symlink:"
	prefixTree     = "tree:"
	prefixConflict = "conflict:"
	prefixCommit   = "commit:"
	prefixChunk    = "chunk:"
)

type ObjectStore struct {
	kv  *keyValStore.KeyValStore
	log *logrus.Logger
}

func New(kv *keyValStore.KeyValStore, logger *logrus.Logger) *ObjectStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &ObjectStore{kv: kv, log: logger}
}

func objectKey(prefix string, h types.Hash) []byte {
	return append([]byte(prefix), h.Bytes()...)
}

// EmptyTreeID returns the id of the canonical zero-entry tree. The tree is
// readable whether or not it was ever written.
func (s *ObjectStore) EmptyTreeID() types.TreeID {
	return codec.EmptyTreeID()
}

// WriteFile chunks and persists the file payload and its manifest, returning
// the digest of the canonical file serialization.
func (s *ObjectStore) WriteFile(f types.File) (types.FileID, error) {
	data, err := codec.SerializeFile(f)
	if err != nil {
		return types.FileID{}, fmt.Errorf("serialize file: %w", err)
	}
	id := types.FileID(codec.Digest(data))

	key := objectKey(prefixFile, types.Hash(id))
	exists, err := s.kv.Exists(key)
	if err != nil {
		return types.FileID{}, fmt.Errorf("check file %s: %w", id, err)
	}
	if exists {
		return id, nil
	}

	manifest, err := s.writeChunks(f.Content)
	if err != nil {
		return types.FileID{}, fmt.Errorf("write file %s: %w", id, err)
	}
	if err := s.kv.WriteIfAbsent(key, manifest.serialize()); err != nil {
		return types.FileID{}, fmt.Errorf("write file %s: %w", id, err)
	}
	s.log.WithFields(logrus.Fields{
		"id":     id.String(),
		"size":   len(f.Content),
		"chunks": len(manifest.chunks),
	}).Debug("stored file object")
	return id, nil
}

// ReadFile reassembles a file from its manifest and chunks and verifies the
// result against the requested id.
func (s *ObjectStore) ReadFile(id types.FileID) (types.File, error) {
	raw, err := s.kv.Read(objectKey(prefixFile, types.Hash(id)))
	if err != nil {
		return types.File{}, fmt.Errorf("read file %s: %w", id, err)
	}
	m, err := parseManifest(raw)
	if err != nil {
		return types.File{}, fmt.Errorf("read file %s: %w", id, err)
	}
	content, err := s.readChunks(m)
	if err != nil {
		return types.File{}, fmt.Errorf("read file %s: %w", id, err)
	}

	f := types.File{Content: content}
	data, err := codec.SerializeFile(f)
	if err != nil {
		return types.File{}, fmt.Errorf("read file %s: %w", id, err)
	}
	if types.FileID(codec.Digest(data)) != id {
		return types.File{}, fmt.Errorf("read file %s: reassembled content does not match id: %w", id, types.ErrCorruptObject)
	}
	return f, nil
}

// WriteSymlink persists a symlink object.
func (s *ObjectStore) WriteSymlink(sl types.Symlink) (types.SymlinkID, error) {
	data, err := codec.SerializeSymlink(sl)
	if err != nil {
		return types.SymlinkID{}, fmt.Errorf("serialize symlink: %w", err)
	}
	id := types.SymlinkID(codec.Digest(data))
	if err := s.kv.WriteIfAbsent(objectKey(prefixSymlink, types.Hash(id)), data); err != nil {
		return types.SymlinkID{}, fmt.Errorf("write symlink %s: %w", id, err)
	}
	return id, nil
}

// ReadSymlink loads a symlink object.
func (s *ObjectStore) ReadSymlink(id types.SymlinkID) (types.Symlink, error) {
	raw, err := s.readVerified(prefixSymlink, types.Hash(id))
	if err != nil {
		return types.Symlink{}, fmt.Errorf("read symlink %s: %w", id, err)
	}
	sl, err := codec.DeserializeSymlink(raw)
	if err != nil {
		return types.Symlink{}, fmt.Errorf("read symlink %s: %w", id, err)
	}
	return sl, nil
}

// WriteTree persists a tree in canonical serialization.
func (s *ObjectStore) WriteTree(t types.Tree) (types.TreeID, error) {
	data, err := codec.SerializeTree(t)
	if err != nil {
		return types.TreeID{}, fmt.Errorf("serialize tree: %w", err)
	}
	id := types.TreeID(codec.Digest(data))
	if err := s.kv.WriteIfAbsent(objectKey(prefixTree, types.Hash(id)), data); err != nil {
		return types.TreeID{}, fmt.Errorf("write tree %s: %w", id, err)
	}
	return id, nil
}

// ReadTree loads a tree. The canonical empty tree resolves even on a fresh
// store that never wrote it.
func (s *ObjectStore) ReadTree(id types.TreeID) (types.Tree, error) {
	raw, err := s.readVerified(prefixTree, types.Hash(id))
	if err != nil {
		if id == codec.EmptyTreeID() {
			return types.Tree{}, nil
		}
		return types.Tree{}, fmt.Errorf("read tree %s: %w", id, err)
	}
	t, err := codec.DeserializeTree(raw)
	if err != nil {
		return types.Tree{}, fmt.Errorf("read tree %s: %w", id, err)
	}
	return t, nil
}

// WriteConflict persists a conflict side-table object.
func (s *ObjectStore) WriteConflict(c types.Conflict) (types.ConflictID, error) {
	data, err := codec.SerializeConflict(c)
	if err != nil {
		return types.ConflictID{}, fmt.Errorf("serialize conflict: %w", err)
	}
	id := types.ConflictID(codec.Digest(data))
	if err := s.kv.WriteIfAbsent(objectKey(prefixConflict, types.Hash(id)), data); err != nil {
		return types.ConflictID{}, fmt.Errorf("write conflict %s: %w", id, err)
	}
	return id, nil
}

// ReadConflict loads a conflict side-table object.
func (s *ObjectStore) ReadConflict(id types.ConflictID) (types.Conflict, error) {
	raw, err := s.readVerified(prefixConflict, types.Hash(id))
	if err != nil {
		return types.Conflict{}, fmt.Errorf("read conflict %s: %w", id, err)
	}
	c, err := codec.DeserializeConflict(raw)
	if err != nil {
		return types.Conflict{}, fmt.Errorf("read conflict %s: %w", id, err)
	}
	return c, nil
}

// WriteCommit persists a commit. Referential validation lives in the commit
// graph, not here.
func (s *ObjectStore) WriteCommit(c types.Commit) (types.CommitID, error) {
	data, err := codec.SerializeCommit(c)
	if err != nil {
		return types.CommitID{}, fmt.Errorf("serialize commit: %w", err)
	}
	id := types.CommitID(codec.Digest(data))
	if err := s.kv.WriteIfAbsent(objectKey(prefixCommit, types.Hash(id)), data); err != nil {
		return types.CommitID{}, fmt.Errorf("write commit %s: %w", id, err)
	}
	return id, nil
}

// ReadCommit loads a commit object.
func (s *ObjectStore) ReadCommit(id types.CommitID) (types.Commit, error) {
	raw, err := s.readVerified(prefixCommit, types.Hash(id))
	if err != nil {
		return types.Commit{}, fmt.Errorf("read commit %s: %w", id, err)
	}
	c, err := codec.DeserializeCommit(raw)
	if err != nil {
		return types.Commit{}, fmt.Errorf("read commit %s: %w", id, err)
	}
	return c, nil
}

// HasFile reports whether a file with the given id has been written.
func (s *ObjectStore) HasFile(id types.FileID) (bool, error) {
	return s.kv.Exists(objectKey(prefixFile, types.Hash(id)))
}

func (s *ObjectStore) HasSymlink(id types.SymlinkID) (bool, error) {
	return s.kv.Exists(objectKey(prefixSymlink, types.Hash(id)))
}

// HasTree treats the canonical empty tree as always present.
func (s *ObjectStore) HasTree(id types.TreeID) (bool, error) {
	if id == codec.EmptyTreeID() {
		return true, nil
	}
	return s.kv.Exists(objectKey(prefixTree, types.Hash(id)))
}

func (s *ObjectStore) HasConflict(id types.ConflictID) (bool, error) {
	return s.kv.Exists(objectKey(prefixConflict, types.Hash(id)))
}

func (s *ObjectStore) HasCommit(id types.CommitID) (bool, error) {
	return s.kv.Exists(objectKey(prefixCommit, types.Hash(id)))
}

// readVerified loads raw object bytes and re-digests them, catching
// persistence-layer corruption before deserialization is attempted.
func (s *ObjectStore) readVerified(prefix string, h types.Hash) ([]byte, error) {
	raw, err := s.kv.Read(objectKey(prefix, h))
	if err != nil {
		return nil, err
	}
	if codec.Digest(raw) != h {
		return nil, fmt.Errorf("stored bytes do not match digest: %w", types.ErrCorruptObject)
	}
	return raw, nil
}
