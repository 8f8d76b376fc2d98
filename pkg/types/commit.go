package types

import (
	"bytes"
	"fmt"
)

// Sign is the polarity of a term in a conflicted root-tree sequence.
type Sign int8

const (
	Positive Sign = 1
	Negative Sign = -1
)

// SignedTerm pairs a root-tree term with its polarity.
type SignedTerm struct {
	Sign Sign
	ID   TreeID
}

// MergedTreeID is the root-tree reference of a commit: either a single
// resolved tree, or an odd-length alternating sum of trees (term 0 positive,
// term 1 negative, ...) representing an unresolved tree-level merge.
type MergedTreeID struct {
	terms      []TreeID
	conflicted bool
}

// ResolvedTree wraps a single tree id in the legacy, non-conflicted form.
func ResolvedTree(id TreeID) MergedTreeID {
	return MergedTreeID{terms: []TreeID{id}}
}

// ConflictedTree builds the tree-conflict form from a flat alternating-sign
// sequence. The sequence length must be odd and at least one.
func ConflictedTree(terms []TreeID) (MergedTreeID, error) {
	if len(terms) == 0 || len(terms)%2 == 0 {
		return MergedTreeID{}, fmt.Errorf("root tree sequence length must be odd and >= 1, got %d", len(terms))
	}
	cp := make([]TreeID, len(terms))
	copy(cp, terms)
	return MergedTreeID{terms: cp, conflicted: true}, nil
}

// UsesConflictFormat reports whether the id uses the tree-conflict encoding.
// A false value is the legacy encoding where conflicts live in ConflictId
// entries inside a single tree.
func (m MergedTreeID) UsesConflictFormat() bool { return m.conflicted }

// Terms returns the flat alternating-sign term sequence.
func (m MergedTreeID) Terms() []TreeID {
	cp := make([]TreeID, len(m.terms))
	copy(cp, m.terms)
	return cp
}

// SignedTerms returns the terms with their polarity made explicit, signs
// alternating starting at Positive.
func (m MergedTreeID) SignedTerms() []SignedTerm {
	out := make([]SignedTerm, len(m.terms))
	for i, id := range m.terms {
		sign := Positive
		if i%2 == 1 {
			sign = Negative
		}
		out[i] = SignedTerm{Sign: sign, ID: id}
	}
	return out
}

// Resolved returns the single tree id and true when the sequence denotes an
// ordinary, non-conflicted tree.
func (m MergedTreeID) Resolved() (TreeID, bool) {
	if len(m.terms) == 1 {
		return m.terms[0], true
	}
	return TreeID{}, false
}

// IsZero reports whether the id was never populated.
func (m MergedTreeID) IsZero() bool { return len(m.terms) == 0 }

func (m MergedTreeID) Equal(o MergedTreeID) bool {
	if m.conflicted != o.conflicted || len(m.terms) != len(o.terms) {
		return false
	}
	for i := range m.terms {
		if m.terms[i] != o.terms[i] {
			return false
		}
	}
	return true
}

// Timestamp is milliseconds since the Unix epoch plus the author's timezone
// offset in minutes. Opaque to the core.
type Timestamp struct {
	MillisSinceEpoch int64
	TzOffset         int32
}

// Signature names the author or committer of a commit.
type Signature struct {
	Name      string
	Email     string
	Timestamp Timestamp
}

// Commit is a DAG node. Parents are the graph edges; Predecessors record
// prior versions of the same logical change across history rewrites and are
// semantically separate from parents.
type Commit struct {
	Parents      []CommitID
	Predecessors []CommitID
	RootTree     MergedTreeID
	ChangeID     ChangeID
	Description  string
	Author       Signature
	Committer    Signature
	// SecureSig is an optional signature blob, opaque to the core.
	SecureSig []byte
}

func (c Commit) Equal(o Commit) bool {
	if len(c.Parents) != len(o.Parents) || len(c.Predecessors) != len(o.Predecessors) {
		return false
	}
	for i := range c.Parents {
		if c.Parents[i] != o.Parents[i] {
			return false
		}
	}
	for i := range c.Predecessors {
		if c.Predecessors[i] != o.Predecessors[i] {
			return false
		}
	}
	return c.RootTree.Equal(o.RootTree) &&
		bytes.Equal(c.ChangeID, o.ChangeID) &&
		c.Description == o.Description &&
		c.Author == o.Author &&
		c.Committer == o.Committer &&
		bytes.Equal(c.SecureSig, o.SecureSig)
}
