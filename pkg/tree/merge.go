package tree

import (
	"fmt"

	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// Store is the object store access the merge algebra needs: loading subtrees
// for recursion and writing the trees and conflict objects it produces.
type Store interface {
	ReadTree(types.TreeID) (types.Tree, error)
	WriteTree(types.Tree) (types.TreeID, error)
	ReadConflict(types.ConflictID) (types.Conflict, error)
	WriteConflict(types.Conflict) (types.ConflictID, error)
	EmptyTreeID() types.TreeID
}

// Merge computes the entry-wise three-way merge of sideA and sideB against
// base. Entries where both sides diverge from the base and from each other
// become conflict entries; diverging subtrees are merged recursively so only
// genuinely different leaf values conflict.
func Merge(store Store, base, sideA, sideB types.Tree) (types.Tree, error) {
	return mergeTrees(store, []types.Tree{base}, []types.Tree{sideA, sideB})
}

// Flatten resolves an odd-length alternating-sign root-tree sequence
// (term 0 positive, term 1 negative, ...) into one concrete tree:
// entries where the terms cancel to a single value are auto-resolved, the
// rest become conflict entries.
func Flatten(store Store, terms []types.TreeID) (types.Tree, error) {
	if len(terms) == 0 || len(terms)%2 == 0 {
		return types.Tree{}, fmt.Errorf("tree term sequence length must be odd and >= 1, got %d", len(terms))
	}
	var removes, adds []types.Tree
	for i, id := range terms {
		t, err := store.ReadTree(id)
		if err != nil {
			return types.Tree{}, fmt.Errorf("flatten term %d: %w", i, err)
		}
		if i%2 == 0 {
			adds = append(adds, t)
		} else {
			removes = append(removes, t)
		}
	}
	return mergeTrees(store, removes, adds)
}

// mergeTrees resolves "adds minus removes" entry-wise. The term lists keep
// the invariant len(adds) == len(removes)+1, with absent values standing in
// for missing entries.
func mergeTrees(store Store, removes, adds []types.Tree) (types.Tree, error) {
	all := make([]types.Tree, 0, len(removes)+len(adds))
	all = append(all, removes...)
	all = append(all, adds...)

	var merged types.Tree
	for _, name := range names(all...) {
		removeVals := make([]types.TreeValue, len(removes))
		for i, t := range removes {
			removeVals[i], _ = Lookup(t, name)
		}
		addVals := make([]types.TreeValue, len(adds))
		for i, t := range adds {
			addVals[i], _ = Lookup(t, name)
		}

		value, err := resolveTerms(store, removeVals, addVals)
		if err != nil {
			return types.Tree{}, fmt.Errorf("merge entry %q: %w", name, err)
		}
		if !value.IsAbsent() {
			merged.Entries = append(merged.Entries, types.TreeEntry{Name: name, Value: value})
		}
	}
	return merged, nil
}

// resolveTerms reduces one entry's signed value terms to a single value where
// possible, recursing into subtrees, and materializes a conflict object for
// what remains.
func resolveTerms(store Store, removes, adds []types.TreeValue) (types.TreeValue, error) {
	removes, adds, err := expandConflicts(store, removes, adds)
	if err != nil {
		return types.TreeValue{}, err
	}
	removes, adds = cancelTerms(removes, adds)

	// All positive terms agreeing means every side made the same change;
	// the single-add case after cancellation is the ordinary resolution.
	if len(adds) > 0 && allEqual(adds) {
		v := adds[0]
		// Canonical trees carry no empty subtrees.
		if v.Kind == types.TreeValueSubtree && v.TreeID == store.EmptyTreeID() {
			return types.TreeValue{}, nil
		}
		return v, nil
	}

	if allSubtrees(removes, adds) {
		subRemoves := make([]types.Tree, len(removes))
		for i, v := range removes {
			t, err := loadSubtree(store, v)
			if err != nil {
				return types.TreeValue{}, err
			}
			subRemoves[i] = t
		}
		subAdds := make([]types.Tree, len(adds))
		for i, v := range adds {
			t, err := loadSubtree(store, v)
			if err != nil {
				return types.TreeValue{}, err
			}
			subAdds[i] = t
		}
		sub, err := mergeTrees(store, subRemoves, subAdds)
		if err != nil {
			return types.TreeValue{}, err
		}
		if sub.IsEmpty() {
			return types.TreeValue{}, nil
		}
		id, err := store.WriteTree(sub)
		if err != nil {
			return types.TreeValue{}, err
		}
		return types.SubtreeValue(id), nil
	}

	conflict := types.Conflict{}
	for _, v := range removes {
		if !v.IsAbsent() {
			conflict.Removes = append(conflict.Removes, v)
		}
	}
	for _, v := range adds {
		if !v.IsAbsent() {
			conflict.Adds = append(conflict.Adds, v)
		}
	}
	id, err := store.WriteConflict(conflict)
	if err != nil {
		return types.TreeValue{}, err
	}
	return types.ConflictValue(id), nil
}

// expandConflicts splices referenced conflict objects into the term lists so
// nested conflicts never occur. A conflict on the remove side contributes its
// terms negated.
func expandConflicts(store Store, removes, adds []types.TreeValue) ([]types.TreeValue, []types.TreeValue, error) {
	outRemoves := make([]types.TreeValue, 0, len(removes))
	outAdds := make([]types.TreeValue, 0, len(adds))
	for _, v := range adds {
		if v.Kind != types.TreeValueConflict {
			outAdds = append(outAdds, v)
			continue
		}
		c, err := store.ReadConflict(v.ConflictID)
		if err != nil {
			return nil, nil, err
		}
		outAdds = append(outAdds, c.Adds...)
		outRemoves = append(outRemoves, c.Removes...)
	}
	for _, v := range removes {
		if v.Kind != types.TreeValueConflict {
			outRemoves = append(outRemoves, v)
			continue
		}
		c, err := store.ReadConflict(v.ConflictID)
		if err != nil {
			return nil, nil, err
		}
		outRemoves = append(outRemoves, c.Adds...)
		outAdds = append(outAdds, c.Removes...)
	}
	return outRemoves, outAdds, nil
}

// cancelTerms drops matching positive/negative pairs. It preserves the
// len(adds) == len(removes)+1 invariant when the input satisfies it.
func cancelTerms(removes, adds []types.TreeValue) ([]types.TreeValue, []types.TreeValue) {
	usedAdd := make([]bool, len(adds))
	usedRemove := make([]bool, len(removes))
	for i, r := range removes {
		for j, a := range adds {
			if !usedAdd[j] && !usedRemove[i] && r.Equal(a) {
				usedAdd[j] = true
				usedRemove[i] = true
				break
			}
		}
	}
	var outRemoves, outAdds []types.TreeValue
	for i, r := range removes {
		if !usedRemove[i] {
			outRemoves = append(outRemoves, r)
		}
	}
	for j, a := range adds {
		if !usedAdd[j] {
			outAdds = append(outAdds, a)
		}
	}
	return outRemoves, outAdds
}

func allEqual(vals []types.TreeValue) bool {
	for _, v := range vals[1:] {
		if !v.Equal(vals[0]) {
			return false
		}
	}
	return true
}

// allSubtrees reports whether every non-absent term is a subtree, with at
// least one subtree present.
func allSubtrees(removes, adds []types.TreeValue) bool {
	subtrees := 0
	for _, v := range removes {
		switch v.Kind {
		case types.TreeValueSubtree:
			subtrees++
		case types.TreeValueAbsent:
		default:
			return false
		}
	}
	for _, v := range adds {
		switch v.Kind {
		case types.TreeValueSubtree:
			subtrees++
		case types.TreeValueAbsent:
		default:
			return false
		}
	}
	return subtrees > 0
}

func loadSubtree(store Store, v types.TreeValue) (types.Tree, error) {
	if v.IsAbsent() {
		return types.Tree{}, nil
	}
	return store.ReadTree(v.TreeID)
}
