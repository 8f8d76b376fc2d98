// Package cultivate is a content-addressable object store and working-copy
// synchronizer for a distributed, conflict-aware version control tool.
// Objects (files, symlinks, trees, conflicts, commits) are immutable and
// addressed by the BLAKE3 digest of their canonical encoding; merge
// conflicts are first-class stored values instead of textual markers.
package cultivate

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cultivate-vcs/cultivate/internal/checkoutState"
	"github.com/cultivate-vcs/cultivate/internal/codec"
	"github.com/cultivate-vcs/cultivate/internal/commitGraph"
	"github.com/cultivate-vcs/cultivate/internal/keyValStore"
	"github.com/cultivate-vcs/cultivate/internal/objectStore"
	"github.com/cultivate-vcs/cultivate/internal/snapshot"
	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// Config configures a Backend instance. Only Paths[0] is used at the
// moment; future versions may use multiple paths for sharding or tiering.
type Config struct {
	// Paths contains data directories. Currently only Paths[0] is used.
	Paths []string
	// MinimumFreeGB is a free-space threshold checked before the store opens.
	MinimumFreeGB int
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *logrus.Logger
	// Concurrency bounds the workers used for snapshot hashing. If 0, a
	// value derived from the machine's core count is used.
	Concurrency int
	// GarbageCollectionInterval is how often the value log is compacted.
	// If 0, background garbage collection is disabled.
	GarbageCollectionInterval time.Duration
}

// Backend is the main handle. It owns the KV store and the lifecycle of the
// object store, the checkout state manager and the snapshotter built on top.
type Backend struct {
	log    *logrus.Logger
	config Config

	kv          *keyValStore.KeyValStore
	objects     *objectStore.ObjectStore
	checkouts   *checkoutState.Manager
	commits     *commitGraph.Graph
	snapshotter *snapshot.Snapshotter

	gcStop    chan struct{}
	closeOnce sync.Once
}

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// New opens the object store under conf.Paths[0], creating it if needed,
// and returns a ready Backend. Reopening an existing directory yields the
// same stored objects and checkout state.
func New(conf Config) (*Backend, error) {
	if len(conf.Paths) == 0 {
		return nil, fmt.Errorf("at least one path must be provided in config")
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}
	if conf.Concurrency < 1 {
		conf.Concurrency = advisedConcurrency()
	}

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:            conf.Paths,
		MinimumFreeSpace: conf.MinimumFreeGB,
		Logger:           conf.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating KeyValStore: %w", err)
	}

	objects := objectStore.New(kv, conf.Logger)
	checkouts := checkoutState.New(kv, conf.Logger)

	b := &Backend{
		log:         conf.Logger,
		config:      conf,
		kv:          kv,
		objects:     objects,
		checkouts:   checkouts,
		commits:     commitGraph.New(objects, conf.Logger),
		snapshotter: snapshot.NewSnapshotter(objects, checkouts, conf.Logger, conf.Concurrency),
		gcStop:      make(chan struct{}),
	}

	if conf.GarbageCollectionInterval > 0 {
		go b.runGarbageCollection()
	}
	return b, nil
}

// Close releases the underlying store. The Backend must not be used after.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.gcStop)
		err = b.kv.Close()
	})
	return err
}

func (b *Backend) runGarbageCollection() {
	ticker := time.NewTicker(b.config.GarbageCollectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := b.kv.Clean(); err != nil {
				b.log.Error("Error during garbage collection: ", err)
			}
		case <-b.gcStop:
			return
		}
	}
}

// Concurrency returns the worker bound snapshot hashing runs with. Callers
// may use it to size their own parallelism against this store.
func (b *Backend) Concurrency() int {
	return b.config.Concurrency
}

// GetEmptyTreeID returns the id of the tree with no entries. It is a pure
// function of the encoding and needs no store access; the empty tree is
// readable even from a store it was never written to.
func (b *Backend) GetEmptyTreeID() types.TreeID {
	return codec.EmptyTreeID()
}

// SetCheckoutState records which operation and workspace the working copy
// at workingCopyPath is checked out at. On first initialization the
// working copy's tree state starts as the empty tree; later calls keep the
// current tree state.
func (b *Backend) SetCheckoutState(workingCopyPath string, state types.CheckoutState) error {
	return b.checkouts.Set(workingCopyPath, state)
}

// GetCheckoutState returns the recorded checkout state of a working copy,
// or types.ErrNotInitialized if SetCheckoutState was never called for it.
func (b *Backend) GetCheckoutState(workingCopyPath string) (types.CheckoutState, error) {
	return b.checkouts.Get(workingCopyPath)
}

// GetTreeState returns the root tree id last recorded for the working copy.
func (b *Backend) GetTreeState(workingCopyPath string) (types.TreeID, error) {
	return b.checkouts.TreeID(workingCopyPath)
}

// Snapshot walks the live working copy at workingCopyPath, stores every
// changed object and records the resulting root tree id, which it returns.
// Running it twice without touching the working copy returns the same id
// without writing anything.
func (b *Backend) Snapshot(workingCopyPath string) (types.TreeID, error) {
	return b.snapshotter.Snapshot(snapshot.OSFilesystem{}, workingCopyPath)
}

// SnapshotFilesystem is Snapshot against a caller-provided filesystem view.
func (b *Backend) SnapshotFilesystem(fsys snapshot.Filesystem, workingCopyPath string) (types.TreeID, error) {
	return b.snapshotter.Snapshot(fsys, workingCopyPath)
}

func (b *Backend) WriteFile(file types.File) (types.FileID, error) {
	return b.objects.WriteFile(file)
}

func (b *Backend) ReadFile(id types.FileID) (types.File, error) {
	return b.objects.ReadFile(id)
}

func (b *Backend) WriteSymlink(symlink types.Symlink) (types.SymlinkID, error) {
	return b.objects.WriteSymlink(symlink)
}

func (b *Backend) ReadSymlink(id types.SymlinkID) (types.Symlink, error) {
	return b.objects.ReadSymlink(id)
}

func (b *Backend) WriteTree(tree types.Tree) (types.TreeID, error) {
	return b.objects.WriteTree(tree)
}

func (b *Backend) ReadTree(id types.TreeID) (types.Tree, error) {
	return b.objects.ReadTree(id)
}

func (b *Backend) WriteConflict(conflict types.Conflict) (types.ConflictID, error) {
	return b.objects.WriteConflict(conflict)
}

func (b *Backend) ReadConflict(id types.ConflictID) (types.Conflict, error) {
	return b.objects.ReadConflict(id)
}

// WriteCommit validates the commit's references and stores it. Commits
// must name at least one parent; the root commit id is always a valid
// parent even though it is never stored.
func (b *Backend) WriteCommit(commit types.Commit) (types.CommitID, error) {
	return b.commits.WriteCommit(commit)
}

func (b *Backend) ReadCommit(id types.CommitID) (types.Commit, error) {
	return b.commits.ReadCommit(id)
}

// RootCommitID returns the id of the virtual root commit every history
// bottoms out in.
func (b *Backend) RootCommitID() types.CommitID {
	return commitGraph.RootCommitID()
}

// RootChangeID returns the change id of the virtual root commit.
func (b *Backend) RootChangeID() types.ChangeID {
	return commitGraph.RootChangeID()
}
