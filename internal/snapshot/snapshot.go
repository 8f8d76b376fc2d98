package snapshot

import (
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cultivate-vcs/cultivate/internal/checkoutState"
	"github.com/cultivate-vcs/cultivate/internal/codec"
	"github.com/cultivate-vcs/cultivate/internal/objectStore"
	"github.com/cultivate-vcs/cultivate/pkg/tree"
	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// Snapshotter captures the live state of a working copy into the object
// store and advances the recorded tree id of that working copy.
type Snapshotter struct {
	store   *objectStore.ObjectStore
	state   *checkoutState.Manager
	log     *logrus.Logger
	workers int
}

func NewSnapshotter(store *objectStore.ObjectStore, state *checkoutState.Manager, logger *logrus.Logger, workers int) *Snapshotter {
	if workers < 1 {
		workers = 1
	}
	return &Snapshotter{store: store, state: state, log: logger, workers: workers}
}

// Snapshot walks the working copy at workingCopyPath, writes every changed
// object and returns the new root tree id. When nothing changed, the
// recorded id is returned and no object or state write happens. On a
// filesystem error the recorded state is left untouched.
func (s *Snapshotter) Snapshot(fsys Filesystem, workingCopyPath string) (types.TreeID, error) {
	recordedID, err := s.state.TreeID(workingCopyPath)
	if err != nil {
		return types.TreeID{}, err
	}
	recorded, err := s.store.ReadTree(recordedID)
	if err != nil {
		return types.TreeID{}, err
	}
	newID, err := s.snapshotDir(fsys, workingCopyPath, recordedID, recorded)
	if err != nil {
		return types.TreeID{}, err
	}
	if newID != recordedID {
		if err := s.state.SetTreeID(workingCopyPath, newID); err != nil {
			return types.TreeID{}, err
		}
		s.log.WithFields(logrus.Fields{
			"workingCopy": workingCopyPath,
			"tree":        types.Hash(newID).String(),
		}).Info("Snapshot recorded new tree")
	}
	return newID, nil
}

type fileJob struct {
	entry    DirEntry
	path     string
	recorded types.TreeValue
}

type fileResult struct {
	name  string
	value types.TreeValue
	err   error
}

func (s *Snapshotter) snapshotDir(fsys Filesystem, dir string, recordedID types.TreeID, recorded types.Tree) (types.TreeID, error) {
	diskEntries, err := fsys.List(dir)
	if err != nil {
		return types.TreeID{}, err
	}

	var jobs []fileJob
	values := make(map[string]types.TreeValue)

	for _, de := range diskEntries {
		recordedValue, _ := tree.Lookup(recorded, de.Name)
		path := filepath.Join(dir, de.Name)
		switch de.Kind {
		case KindFile:
			jobs = append(jobs, fileJob{entry: de, path: path, recorded: recordedValue})
		case KindSymlink:
			value, err := s.snapshotSymlink(fsys, path, recordedValue)
			if err != nil {
				return types.TreeID{}, err
			}
			if !value.IsAbsent() {
				values[de.Name] = value
			}
		case KindDir:
			value, err := s.snapshotSubdir(fsys, path, recordedValue)
			if err != nil {
				return types.TreeID{}, err
			}
			if !value.IsAbsent() {
				values[de.Name] = value
			}
		}
	}

	results, err := s.runFileJobs(fsys, jobs)
	if err != nil {
		return types.TreeID{}, err
	}
	for name, value := range results {
		values[name] = value
	}

	var newTree types.Tree
	for _, de := range diskEntries {
		if value, ok := values[de.Name]; ok {
			newTree.Entries = append(newTree.Entries, types.TreeEntry{Name: de.Name, Value: value})
		}
	}
	// Recorded entries with no counterpart on disk are dropped.

	if newTree.Equal(recorded) {
		return recordedID, nil
	}
	return s.store.WriteTree(newTree)
}

// runFileJobs hashes and stores the regular files of one directory with a
// bounded number of workers.
func (s *Snapshotter) runFileJobs(fsys Filesystem, jobs []fileJob) (map[string]types.TreeValue, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)
	results := make(chan fileResult, len(jobs))

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job fileJob) {
			defer wg.Done()
			defer func() { <-sem }()
			value, err := s.snapshotFile(fsys, job)
			results <- fileResult{name: job.entry.Name, value: value, err: err}
		}(job)
	}
	wg.Wait()
	close(results)

	out := make(map[string]types.TreeValue, len(jobs))
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		if !res.value.IsAbsent() {
			out[res.name] = res.value
		}
	}
	return out, nil
}

func (s *Snapshotter) snapshotFile(fsys Filesystem, job fileJob) (types.TreeValue, error) {
	content, err := fsys.ReadFile(job.path)
	if err != nil {
		return types.TreeValue{}, err
	}
	encoded, err := codec.SerializeFile(types.File{Content: content})
	if err != nil {
		return types.TreeValue{}, err
	}
	diskID := types.FileID(codec.Digest(encoded))

	switch job.recorded.Kind {
	case types.TreeValueFile:
		if job.recorded.FileID == diskID && job.recorded.Executable == job.entry.Executable {
			return job.recorded, nil
		}
	case types.TreeValueConflict:
		conflict, err := s.store.ReadConflict(job.recorded.ConflictID)
		if err != nil {
			return types.TreeValue{}, err
		}
		for _, add := range conflict.Adds {
			if add.Kind == types.TreeValueFile && add.FileID == diskID && add.Executable == job.entry.Executable {
				// Disk still holds one of the conflicted contents.
				return job.recorded, nil
			}
		}
		// The user wrote something new over the conflict: it is resolved.
	}

	id, err := s.store.WriteFile(types.File{Content: content})
	if err != nil {
		return types.TreeValue{}, err
	}
	value := types.FileValue(id, job.entry.Executable)

	if kindMismatch(job.recorded, types.TreeValueFile) {
		return s.mismatchConflict(job.recorded, value)
	}
	return value, nil
}

func (s *Snapshotter) snapshotSymlink(fsys Filesystem, path string, recorded types.TreeValue) (types.TreeValue, error) {
	target, err := fsys.ReadSymlink(path)
	if err != nil {
		return types.TreeValue{}, err
	}
	encoded, err := codec.SerializeSymlink(types.Symlink{Target: target})
	if err != nil {
		return types.TreeValue{}, err
	}
	diskID := types.SymlinkID(codec.Digest(encoded))

	switch recorded.Kind {
	case types.TreeValueSymlink:
		if recorded.SymlinkID == diskID {
			return recorded, nil
		}
	case types.TreeValueConflict:
		conflict, err := s.store.ReadConflict(recorded.ConflictID)
		if err != nil {
			return types.TreeValue{}, err
		}
		for _, add := range conflict.Adds {
			if add.Kind == types.TreeValueSymlink && add.SymlinkID == diskID {
				return recorded, nil
			}
		}
	}

	id, err := s.store.WriteSymlink(types.Symlink{Target: target})
	if err != nil {
		return types.TreeValue{}, err
	}
	value := types.SymlinkValue(id)

	if kindMismatch(recorded, types.TreeValueSymlink) {
		return s.mismatchConflict(recorded, value)
	}
	return value, nil
}

func (s *Snapshotter) snapshotSubdir(fsys Filesystem, path string, recorded types.TreeValue) (types.TreeValue, error) {
	subID := codec.EmptyTreeID()
	if recorded.Kind == types.TreeValueSubtree {
		subID = recorded.TreeID
	}
	subTree, err := s.store.ReadTree(subID)
	if err != nil {
		return types.TreeValue{}, err
	}
	newSubID, err := s.snapshotDir(fsys, path, subID, subTree)
	if err != nil {
		return types.TreeValue{}, err
	}

	if kindMismatch(recorded, types.TreeValueSubtree) {
		if newSubID == codec.EmptyTreeID() {
			// An empty directory carries no content to conflict with.
			return recorded, nil
		}
		return s.mismatchConflict(recorded, types.SubtreeValue(newSubID))
	}
	if newSubID == codec.EmptyTreeID() {
		// Empty directories are not represented.
		return types.TreeValue{}, nil
	}
	return types.SubtreeValue(newSubID), nil
}

// kindMismatch reports whether recorded holds a present value of a kind
// other than disk's. Absent entries are additions, not mismatches, and a
// recorded conflict is handled by the per-kind resolution checks.
func kindMismatch(recorded types.TreeValue, disk types.TreeValueKind) bool {
	if recorded.IsAbsent() || recorded.Kind == types.TreeValueConflict {
		return false
	}
	return recorded.Kind != disk
}

// mismatchConflict records that the disk now holds a value of a different
// kind than the one checked out, keeping both sides.
func (s *Snapshotter) mismatchConflict(recorded, disk types.TreeValue) (types.TreeValue, error) {
	id, err := s.store.WriteConflict(types.Conflict{Adds: []types.TreeValue{recorded, disk}})
	if err != nil {
		return types.TreeValue{}, err
	}
	s.log.WithField("kinds", recorded.Kind.String()+"/"+disk.Kind.String()).Warn("Entry changed kind on disk, keeping both sides as a conflict")
	return types.ConflictValue(id), nil
}
