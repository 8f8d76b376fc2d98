// Package types provides the object model shared by all engine packages:
// content digests, typed ids, trees with native conflict representation,
// commits and checkout state.
package types

import "bytes"

// File is a raw byte payload. The executable flag travels with the tree entry
// referencing the file, not with the file object itself.
type File struct {
	Content []byte
}

// Symlink is a single link target. Immutable once written.
type Symlink struct {
	Target string
}

// TreeValueKind discriminates the TreeValue union. The zero value is Absent,
// which is never stored; it marks "no entry" in lookups and removals.
type TreeValueKind uint8

const (
	TreeValueAbsent TreeValueKind = iota
	TreeValueFile
	TreeValueSymlink
	TreeValueSubtree
	TreeValueConflict
)

func (k TreeValueKind) String() string {
	switch k {
	case TreeValueAbsent:
		return "Absent"
	case TreeValueFile:
		return "File"
	case TreeValueSymlink:
		return "Symlink"
	case TreeValueSubtree:
		return "Subtree"
	case TreeValueConflict:
		return "Conflict"
	}
	return "Unknown"
}

// TreeValue is a tagged union over the possible targets of a tree entry.
// Exactly one variant is populated, selected by Kind.
type TreeValue struct {
	Kind       TreeValueKind
	FileID     FileID
	Executable bool
	SymlinkID  SymlinkID
	TreeID     TreeID
	ConflictID ConflictID
}

func FileValue(id FileID, executable bool) TreeValue {
	return TreeValue{Kind: TreeValueFile, FileID: id, Executable: executable}
}

func SymlinkValue(id SymlinkID) TreeValue {
	return TreeValue{Kind: TreeValueSymlink, SymlinkID: id}
}

func SubtreeValue(id TreeID) TreeValue {
	return TreeValue{Kind: TreeValueSubtree, TreeID: id}
}

func ConflictValue(id ConflictID) TreeValue {
	return TreeValue{Kind: TreeValueConflict, ConflictID: id}
}

// IsAbsent reports whether the value marks a missing entry.
func (v TreeValue) IsAbsent() bool { return v.Kind == TreeValueAbsent }

// Equal compares two values including the executable bit for files.
func (v TreeValue) Equal(o TreeValue) bool {
	return v == o
}

// TreeEntry is a named slot in a Tree.
type TreeEntry struct {
	Name  string
	Value TreeValue
}

// Tree is an ordered-by-name, unique-by-name mapping from entry name to
// TreeValue. Trees are immutable values: packages operating on trees return
// new trees instead of mutating their input.
type Tree struct {
	Entries []TreeEntry
}

// IsEmpty reports whether the tree has no entries.
func (t Tree) IsEmpty() bool { return len(t.Entries) == 0 }

// Equal compares two trees entry-wise.
func (t Tree) Equal(o Tree) bool {
	if len(t.Entries) != len(o.Entries) {
		return false
	}
	for i := range t.Entries {
		if t.Entries[i] != o.Entries[i] {
			return false
		}
	}
	return true
}

// Conflict records the unresolved alternatives for a path: values removed by
// the merge on one axis and values added on the other. A two-sided conflict
// with no common base has two adds and no removes.
type Conflict struct {
	Removes []TreeValue
	Adds    []TreeValue
}

// Equal compares two conflicts term-wise.
func (c Conflict) Equal(o Conflict) bool {
	if len(c.Removes) != len(o.Removes) || len(c.Adds) != len(o.Adds) {
		return false
	}
	for i := range c.Removes {
		if c.Removes[i] != o.Removes[i] {
			return false
		}
	}
	for i := range c.Adds {
		if c.Adds[i] != o.Adds[i] {
			return false
		}
	}
	return true
}

// Equal compares file payloads.
func (f File) Equal(o File) bool { return bytes.Equal(f.Content, o.Content) }
