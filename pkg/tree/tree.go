// Package tree builds, reads and merges Tree values. Trees are persistent
// values: every operation returns a new tree and never mutates its input.
package tree

import (
	"sort"

	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// Lookup returns the value stored under name, or an absent value.
func Lookup(t types.Tree, name string) (types.TreeValue, bool) {
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if i < len(t.Entries) && t.Entries[i].Name == name {
		return t.Entries[i].Value, true
	}
	return types.TreeValue{}, false
}

// WithEntry returns a new tree with the entry set or replaced. An absent
// value removes the entry. The receiver tree is left untouched; unchanged
// entries are shared between old and new tree.
func WithEntry(t types.Tree, name string, value types.TreeValue) types.Tree {
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	found := i < len(t.Entries) && t.Entries[i].Name == name

	switch {
	case value.IsAbsent() && !found:
		return t
	case value.IsAbsent():
		entries := make([]types.TreeEntry, 0, len(t.Entries)-1)
		entries = append(entries, t.Entries[:i]...)
		entries = append(entries, t.Entries[i+1:]...)
		return types.Tree{Entries: entries}
	case found:
		entries := make([]types.TreeEntry, len(t.Entries))
		copy(entries, t.Entries)
		entries[i].Value = value
		return types.Tree{Entries: entries}
	default:
		entries := make([]types.TreeEntry, 0, len(t.Entries)+1)
		entries = append(entries, t.Entries[:i]...)
		entries = append(entries, types.TreeEntry{Name: name, Value: value})
		entries = append(entries, t.Entries[i:]...)
		return types.Tree{Entries: entries}
	}
}

// Names returns the sorted union of entry names across the given trees.
func names(trees ...types.Tree) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range trees {
		for _, e := range t.Entries {
			if _, ok := seen[e.Name]; !ok {
				seen[e.Name] = struct{}{}
				out = append(out, e.Name)
			}
		}
	}
	sort.Strings(out)
	return out
}
