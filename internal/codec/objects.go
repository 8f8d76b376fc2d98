package codec

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// Field numbers are fixed forever; changing one changes every digest.
const (
	fileFieldContent = 1

	symlinkFieldTarget = 1

	treeFieldEntry = 1

	entryFieldName  = 1
	entryFieldValue = 2

	valueFieldFile       = 2
	valueFieldSymlinkID  = 3
	valueFieldTreeID     = 4
	valueFieldConflictID = 6

	fileValueFieldID         = 1
	fileValueFieldExecutable = 2

	conflictFieldRemoves = 1
	conflictFieldAdds    = 2
)

func corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", types.ErrCorruptObject, fmt.Sprintf(format, args...))
}

// SerializeFile encodes a file payload.
func SerializeFile(f types.File) ([]byte, error) {
	var b []byte
	if len(f.Content) > 0 {
		b = protowire.AppendTag(b, fileFieldContent, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Content)
	}
	return b, nil
}

// DeserializeFile is the left inverse of SerializeFile.
func DeserializeFile(data []byte) (types.File, error) {
	var f types.File
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.File{}, corrupt("file: bad tag")
		}
		data = data[n:]
		switch {
		case num == fileFieldContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return types.File{}, corrupt("file: truncated content")
			}
			f.Content = append([]byte(nil), v...)
			data = data[n:]
		default:
			return types.File{}, corrupt("file: unexpected field %d", num)
		}
	}
	return f, nil
}

// SerializeSymlink encodes a symlink target.
func SerializeSymlink(s types.Symlink) ([]byte, error) {
	var b []byte
	if s.Target != "" {
		b = protowire.AppendTag(b, symlinkFieldTarget, protowire.BytesType)
		b = protowire.AppendString(b, s.Target)
	}
	return b, nil
}

// DeserializeSymlink is the left inverse of SerializeSymlink.
func DeserializeSymlink(data []byte) (types.Symlink, error) {
	var s types.Symlink
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.Symlink{}, corrupt("symlink: bad tag")
		}
		data = data[n:]
		switch {
		case num == symlinkFieldTarget && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return types.Symlink{}, corrupt("symlink: truncated target")
			}
			s.Target = v
			data = data[n:]
		default:
			return types.Symlink{}, corrupt("symlink: unexpected field %d", num)
		}
	}
	return s, nil
}

func appendTreeValue(b []byte, v types.TreeValue) ([]byte, error) {
	switch v.Kind {
	case types.TreeValueFile:
		var fv []byte
		fv = protowire.AppendTag(fv, fileValueFieldID, protowire.BytesType)
		fv = protowire.AppendBytes(fv, v.FileID.Bytes())
		if v.Executable {
			fv = protowire.AppendTag(fv, fileValueFieldExecutable, protowire.VarintType)
			fv = protowire.AppendVarint(fv, 1)
		}
		b = protowire.AppendTag(b, valueFieldFile, protowire.BytesType)
		b = protowire.AppendBytes(b, fv)
	case types.TreeValueSymlink:
		b = protowire.AppendTag(b, valueFieldSymlinkID, protowire.BytesType)
		b = protowire.AppendBytes(b, v.SymlinkID.Bytes())
	case types.TreeValueSubtree:
		b = protowire.AppendTag(b, valueFieldTreeID, protowire.BytesType)
		b = protowire.AppendBytes(b, v.TreeID.Bytes())
	case types.TreeValueConflict:
		b = protowire.AppendTag(b, valueFieldConflictID, protowire.BytesType)
		b = protowire.AppendBytes(b, v.ConflictID.Bytes())
	default:
		return nil, fmt.Errorf("cannot serialize tree value of kind %s", v.Kind)
	}
	return b, nil
}

func parseFileValue(data []byte) (types.TreeValue, error) {
	var (
		id   types.FileID
		exec bool
		seen bool
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.TreeValue{}, corrupt("tree value: bad file tag")
		}
		data = data[n:]
		switch {
		case num == fileValueFieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return types.TreeValue{}, corrupt("tree value: truncated file id")
			}
			var err error
			id, err = types.FileIDFromBytes(v)
			if err != nil {
				return types.TreeValue{}, corrupt("tree value: %v", err)
			}
			seen = true
			data = data[n:]
		case num == fileValueFieldExecutable && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return types.TreeValue{}, corrupt("tree value: truncated executable flag")
			}
			exec = v != 0
			data = data[n:]
		default:
			return types.TreeValue{}, corrupt("tree value: unexpected file field %d", num)
		}
	}
	if !seen {
		return types.TreeValue{}, corrupt("tree value: file variant without id")
	}
	return types.FileValue(id, exec), nil
}

// parseTreeValue enforces the oneof contract: exactly one variant set.
func parseTreeValue(data []byte) (types.TreeValue, error) {
	var (
		value    types.TreeValue
		variants int
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.TreeValue{}, corrupt("tree value: bad tag")
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return types.TreeValue{}, corrupt("tree value: unexpected wire type for field %d", num)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return types.TreeValue{}, corrupt("tree value: truncated field %d", num)
		}
		data = data[n:]

		switch num {
		case valueFieldFile:
			fv, err := parseFileValue(v)
			if err != nil {
				return types.TreeValue{}, err
			}
			value = fv
		case valueFieldSymlinkID:
			id, err := types.SymlinkIDFromBytes(v)
			if err != nil {
				return types.TreeValue{}, corrupt("tree value: %v", err)
			}
			value = types.SymlinkValue(id)
		case valueFieldTreeID:
			id, err := types.TreeIDFromBytes(v)
			if err != nil {
				return types.TreeValue{}, corrupt("tree value: %v", err)
			}
			value = types.SubtreeValue(id)
		case valueFieldConflictID:
			id, err := types.ConflictIDFromBytes(v)
			if err != nil {
				return types.TreeValue{}, corrupt("tree value: %v", err)
			}
			value = types.ConflictValue(id)
		default:
			return types.TreeValue{}, corrupt("tree value: unexpected field %d", num)
		}
		variants++
	}
	if variants != 1 {
		return types.TreeValue{}, corrupt("tree value: %d variants set", variants)
	}
	return value, nil
}

// SerializeTree encodes the tree canonically: entries sorted by name
// regardless of the order they were built in. Duplicate names and absent
// values are rejected.
func SerializeTree(t types.Tree) ([]byte, error) {
	entries := make([]types.TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var b []byte
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("tree entry with empty name")
		}
		if i > 0 && entries[i-1].Name == e.Name {
			return nil, fmt.Errorf("duplicate tree entry %q", e.Name)
		}
		var eb []byte
		eb = protowire.AppendTag(eb, entryFieldName, protowire.BytesType)
		eb = protowire.AppendString(eb, e.Name)
		vb, err := appendTreeValue(nil, e.Value)
		if err != nil {
			return nil, fmt.Errorf("tree entry %q: %w", e.Name, err)
		}
		eb = protowire.AppendTag(eb, entryFieldValue, protowire.BytesType)
		eb = protowire.AppendBytes(eb, vb)

		b = protowire.AppendTag(b, treeFieldEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, eb)
	}
	return b, nil
}

func parseTreeEntry(data []byte) (types.TreeEntry, error) {
	var (
		entry    types.TreeEntry
		hasValue bool
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.TreeEntry{}, corrupt("tree entry: bad tag")
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return types.TreeEntry{}, corrupt("tree entry: unexpected wire type for field %d", num)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return types.TreeEntry{}, corrupt("tree entry: truncated field %d", num)
		}
		data = data[n:]

		switch num {
		case entryFieldName:
			entry.Name = string(v)
		case entryFieldValue:
			value, err := parseTreeValue(v)
			if err != nil {
				return types.TreeEntry{}, err
			}
			entry.Value = value
			hasValue = true
		default:
			return types.TreeEntry{}, corrupt("tree entry: unexpected field %d", num)
		}
	}
	if entry.Name == "" {
		return types.TreeEntry{}, corrupt("tree entry without name")
	}
	if !hasValue {
		return types.TreeEntry{}, corrupt("tree entry %q without value", entry.Name)
	}
	return entry, nil
}

// DeserializeTree is the left inverse of SerializeTree. Input must be in
// canonical form: names strictly increasing.
func DeserializeTree(data []byte) (types.Tree, error) {
	var t types.Tree
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.Tree{}, corrupt("tree: bad tag")
		}
		data = data[n:]
		if num != treeFieldEntry || typ != protowire.BytesType {
			return types.Tree{}, corrupt("tree: unexpected field %d", num)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return types.Tree{}, corrupt("tree: truncated entry")
		}
		data = data[n:]

		entry, err := parseTreeEntry(v)
		if err != nil {
			return types.Tree{}, err
		}
		if len(t.Entries) > 0 && t.Entries[len(t.Entries)-1].Name >= entry.Name {
			return types.Tree{}, corrupt("tree: entries not in canonical order at %q", entry.Name)
		}
		t.Entries = append(t.Entries, entry)
	}
	return t, nil
}

// SerializeConflict encodes the removes/adds term lists in order.
func SerializeConflict(c types.Conflict) ([]byte, error) {
	var b []byte
	for _, v := range c.Removes {
		vb, err := appendTreeValue(nil, v)
		if err != nil {
			return nil, fmt.Errorf("conflict remove: %w", err)
		}
		b = protowire.AppendTag(b, conflictFieldRemoves, protowire.BytesType)
		b = protowire.AppendBytes(b, vb)
	}
	for _, v := range c.Adds {
		vb, err := appendTreeValue(nil, v)
		if err != nil {
			return nil, fmt.Errorf("conflict add: %w", err)
		}
		b = protowire.AppendTag(b, conflictFieldAdds, protowire.BytesType)
		b = protowire.AppendBytes(b, vb)
	}
	return b, nil
}

// DeserializeConflict is the left inverse of SerializeConflict.
func DeserializeConflict(data []byte) (types.Conflict, error) {
	var c types.Conflict
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.Conflict{}, corrupt("conflict: bad tag")
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return types.Conflict{}, corrupt("conflict: unexpected wire type for field %d", num)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return types.Conflict{}, corrupt("conflict: truncated term")
		}
		data = data[n:]

		value, err := parseTreeValue(v)
		if err != nil {
			return types.Conflict{}, err
		}
		switch num {
		case conflictFieldRemoves:
			c.Removes = append(c.Removes, value)
		case conflictFieldAdds:
			c.Adds = append(c.Adds, value)
		default:
			return types.Conflict{}, corrupt("conflict: unexpected field %d", num)
		}
	}
	return c, nil
}
