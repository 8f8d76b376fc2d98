// Package checkoutState keeps the mutable per-working-copy record: the last
// recorded operation id, workspace id and tree id. Updates for one working
// copy path are linearizable; distinct paths are fully independent.
package checkoutState

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cultivate-vcs/cultivate/internal/codec"
	"github.com/cultivate-vcs/cultivate/internal/keyValStore"
	"github.com/cultivate-vcs/cultivate/pkg/types"
)

const keyPrefix = "checkout:"

type Manager struct {
	kv  *keyValStore.KeyValStore
	log *logrus.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(kv *keyValStore.KeyValStore, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		kv:    kv,
		log:   logger,
		locks: make(map[string]*sync.Mutex),
	}
}

func stateKey(workingCopyPath string) []byte {
	return []byte(keyPrefix + workingCopyPath)
}

// pathLock returns the mutex guarding one working copy path, creating it on
// first use.
func (m *Manager) pathLock(workingCopyPath string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[workingCopyPath]
	if !ok {
		l = &sync.Mutex{}
		m.locks[workingCopyPath] = l
	}
	return l
}

// Get returns the checkout state for a working copy path, or
// ErrNotInitialized if none was ever recorded.
func (m *Manager) Get(workingCopyPath string) (types.CheckoutState, error) {
	rec, err := m.read(workingCopyPath)
	if err != nil {
		return types.CheckoutState{}, err
	}
	return types.CheckoutState{
		OperationID: rec.opID,
		WorkspaceID: rec.workspaceID,
	}, nil
}

// Set validates and records the checkout state, preserving the current tree
// id (the empty tree for a fresh working copy). The overwrite is atomic: a
// concurrent reader observes either the old or the new record in full.
func (m *Manager) Set(workingCopyPath string, state types.CheckoutState) error {
	if len(state.OperationID) == 0 {
		return fmt.Errorf("operation id must not be empty")
	}
	if state.WorkspaceID == "" {
		return fmt.Errorf("workspace id must not be empty")
	}

	lock := m.pathLock(workingCopyPath)
	lock.Lock()
	defer lock.Unlock()

	treeID := codec.EmptyTreeID()
	if rec, err := m.read(workingCopyPath); err == nil {
		treeID = rec.treeID
	}

	rec := record{
		opID:        state.OperationID,
		workspaceID: state.WorkspaceID,
		treeID:      treeID,
	}
	if err := m.kv.Write(stateKey(workingCopyPath), rec.serialize()); err != nil {
		return fmt.Errorf("write checkout state for %s: %w", workingCopyPath, err)
	}
	m.log.WithFields(logrus.Fields{
		"workingCopy": workingCopyPath,
		"workspace":   string(state.WorkspaceID),
	}).Debug("checkout state updated")
	return nil
}

// TreeID returns the tree the working copy was last synchronized against.
func (m *Manager) TreeID(workingCopyPath string) (types.TreeID, error) {
	rec, err := m.read(workingCopyPath)
	if err != nil {
		return types.TreeID{}, err
	}
	return rec.treeID, nil
}

// SetTreeID advances the recorded tree id, leaving operation and workspace
// untouched. The working copy must already be initialized.
func (m *Manager) SetTreeID(workingCopyPath string, treeID types.TreeID) error {
	lock := m.pathLock(workingCopyPath)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.read(workingCopyPath)
	if err != nil {
		return err
	}
	rec.treeID = treeID
	if err := m.kv.Write(stateKey(workingCopyPath), rec.serialize()); err != nil {
		return fmt.Errorf("write checkout state for %s: %w", workingCopyPath, err)
	}
	return nil
}

func (m *Manager) read(workingCopyPath string) (record, error) {
	raw, err := m.kv.Read(stateKey(workingCopyPath))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return record{}, fmt.Errorf("checkout state for %s: %w", workingCopyPath, types.ErrNotInitialized)
		}
		return record{}, fmt.Errorf("read checkout state for %s: %w", workingCopyPath, err)
	}
	rec, err := parseRecord(raw)
	if err != nil {
		return record{}, fmt.Errorf("checkout state for %s: %w", workingCopyPath, err)
	}
	return rec, nil
}
