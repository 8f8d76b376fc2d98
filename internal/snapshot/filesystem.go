package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// EntryKind is the on-disk kind of a directory entry.
type EntryKind uint8

const (
	KindFile EntryKind = iota + 1
	KindSymlink
	KindDir
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "File"
	case KindSymlink:
		return "Symlink"
	case KindDir:
		return "Dir"
	}
	return "Unknown"
}

// DirEntry describes one entry of a live directory.
type DirEntry struct {
	Name       string
	Kind       EntryKind
	Executable bool
}

// Filesystem is the live filesystem view the snapshotter walks. The OS
// implementation is the production one; tests substitute an in-memory fake.
type Filesystem interface {
	// List returns the entries under dir, sorted by name. Entries that are
	// neither regular files, symlinks nor directories are not returned.
	List(dir string) ([]DirEntry, error)
	ReadFile(path string) ([]byte, error)
	ReadSymlink(path string) (string, error)
}

// OSFilesystem reads the real filesystem rooted at the working copy.
type OSFilesystem struct{}

func (OSFilesystem) List(dir string) ([]DirEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %v: %w", dir, err, types.ErrSnapshotIO)
	}
	var out []DirEntry
	for _, de := range dirEntries {
		switch {
		case de.Type()&os.ModeSymlink != 0:
			out = append(out, DirEntry{Name: de.Name(), Kind: KindSymlink})
		case de.IsDir():
			out = append(out, DirEntry{Name: de.Name(), Kind: KindDir})
		case de.Type().IsRegular():
			info, err := de.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %v: %w", filepath.Join(dir, de.Name()), err, types.ErrSnapshotIO)
			}
			out = append(out, DirEntry{
				Name:       de.Name(),
				Kind:       KindFile,
				Executable: info.Mode()&0o111 != 0,
			})
		default:
			// Sockets, devices and the like are not versioned.
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (OSFilesystem) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, types.ErrSnapshotIO)
	}
	return data, nil
}

func (OSFilesystem) ReadSymlink(path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("readlink %s: %v: %w", path, err, types.ErrSnapshotIO)
	}
	return target, nil
}
