// Package commitGraph validates and exposes commit linkage. It is the one
// place referential integrity is enforced: a commit referencing an id the
// store has never seen is rejected at write time, which also makes cycles
// structurally impossible.
package commitGraph

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cultivate-vcs/cultivate/internal/objectStore"
	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// ChangeIDLength is the length of change ids this graph hands out for the
// virtual root commit.
const ChangeIDLength = 16

type Graph struct {
	store *objectStore.ObjectStore
	log   *logrus.Logger
}

func New(store *objectStore.ObjectStore, logger *logrus.Logger) *Graph {
	if logger == nil {
		logger = logrus.New()
	}
	return &Graph{store: store, log: logger}
}

// RootCommitID is the all-zero id of the virtual root commit. The root
// commit is never written to the store; every other commit descends from it.
func RootCommitID() types.CommitID {
	return types.CommitID{}
}

// RootChangeID is the all-zero change id of the virtual root commit.
func RootChangeID() types.ChangeID {
	return make(types.ChangeID, ChangeIDLength)
}

// rootCommit materializes the virtual root commit: no parents, empty tree.
func (g *Graph) rootCommit() types.Commit {
	return types.Commit{
		RootTree: types.ResolvedTree(g.store.EmptyTreeID()),
		ChangeID: RootChangeID(),
	}
}

// WriteCommit validates structural invariants and persists the commit.
// Every referenced parent, predecessor and root-tree term must already exist
// in the store, otherwise the write is rejected with ErrDanglingReference
// and nothing is persisted.
func (g *Graph) WriteCommit(c types.Commit) (types.CommitID, error) {
	if len(c.Parents) == 0 {
		return types.CommitID{}, fmt.Errorf("cannot write a commit with no parents")
	}
	if c.RootTree.IsZero() {
		return types.CommitID{}, fmt.Errorf("cannot write a commit without a root tree")
	}

	for _, p := range c.Parents {
		if err := g.checkCommitRef("parent", p); err != nil {
			return types.CommitID{}, err
		}
	}
	for _, p := range c.Predecessors {
		if err := g.checkCommitRef("predecessor", p); err != nil {
			return types.CommitID{}, err
		}
	}
	for _, t := range c.RootTree.Terms() {
		ok, err := g.store.HasTree(t)
		if err != nil {
			return types.CommitID{}, fmt.Errorf("check root tree %s: %w", t, err)
		}
		if !ok {
			return types.CommitID{}, fmt.Errorf("root tree %s: %w", t, types.ErrDanglingReference)
		}
	}

	id, err := g.store.WriteCommit(c)
	if err != nil {
		return types.CommitID{}, err
	}
	g.log.WithFields(logrus.Fields{
		"id":      id.String(),
		"parents": len(c.Parents),
	}).Debug("stored commit")
	return id, nil
}

// ReadCommit loads a commit. The virtual root commit resolves without a
// store access.
func (g *Graph) ReadCommit(id types.CommitID) (types.Commit, error) {
	if id.IsRoot() {
		return g.rootCommit(), nil
	}
	return g.store.ReadCommit(id)
}

func (g *Graph) checkCommitRef(kind string, id types.CommitID) error {
	// The virtual root commit always exists.
	if id.IsRoot() {
		return nil
	}
	ok, err := g.store.HasCommit(id)
	if err != nil {
		return fmt.Errorf("check %s %s: %w", kind, id, err)
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, types.ErrDanglingReference)
	}
	return nil
}
