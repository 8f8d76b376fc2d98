package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cultivate-vcs/cultivate/pkg/types"
)

const (
	commitFieldParents            = 2
	commitFieldPredecessors       = 3
	commitFieldRootTree           = 4
	commitFieldChangeID           = 5
	commitFieldDescription        = 6
	commitFieldAuthor             = 7
	commitFieldCommitter          = 8
	commitFieldTreeConflictFormat = 9
	commitFieldSecureSig          = 10

	signatureFieldName      = 1
	signatureFieldEmail     = 2
	signatureFieldTimestamp = 3

	timestampFieldMillis   = 1
	timestampFieldTzOffset = 2
)

func appendSignature(b []byte, s types.Signature) []byte {
	var sb []byte
	if s.Name != "" {
		sb = protowire.AppendTag(sb, signatureFieldName, protowire.BytesType)
		sb = protowire.AppendString(sb, s.Name)
	}
	if s.Email != "" {
		sb = protowire.AppendTag(sb, signatureFieldEmail, protowire.BytesType)
		sb = protowire.AppendString(sb, s.Email)
	}
	if s.Timestamp != (types.Timestamp{}) {
		var tb []byte
		if s.Timestamp.MillisSinceEpoch != 0 {
			tb = protowire.AppendTag(tb, timestampFieldMillis, protowire.VarintType)
			tb = protowire.AppendVarint(tb, uint64(s.Timestamp.MillisSinceEpoch))
		}
		if s.Timestamp.TzOffset != 0 {
			tb = protowire.AppendTag(tb, timestampFieldTzOffset, protowire.VarintType)
			tb = protowire.AppendVarint(tb, uint64(int64(s.Timestamp.TzOffset)))
		}
		sb = protowire.AppendTag(sb, signatureFieldTimestamp, protowire.BytesType)
		sb = protowire.AppendBytes(sb, tb)
	}
	return append(b, sb...)
}

func parseTimestamp(data []byte) (types.Timestamp, error) {
	var ts types.Timestamp
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.Timestamp{}, corrupt("timestamp: bad tag")
		}
		data = data[n:]
		if typ != protowire.VarintType {
			return types.Timestamp{}, corrupt("timestamp: unexpected wire type for field %d", num)
		}
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return types.Timestamp{}, corrupt("timestamp: truncated field %d", num)
		}
		data = data[n:]
		switch num {
		case timestampFieldMillis:
			ts.MillisSinceEpoch = int64(v)
		case timestampFieldTzOffset:
			ts.TzOffset = int32(int64(v))
		default:
			return types.Timestamp{}, corrupt("timestamp: unexpected field %d", num)
		}
	}
	return ts, nil
}

func parseSignature(data []byte) (types.Signature, error) {
	var s types.Signature
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.Signature{}, corrupt("signature: bad tag")
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return types.Signature{}, corrupt("signature: unexpected wire type for field %d", num)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return types.Signature{}, corrupt("signature: truncated field %d", num)
		}
		data = data[n:]
		switch num {
		case signatureFieldName:
			s.Name = string(v)
		case signatureFieldEmail:
			s.Email = string(v)
		case signatureFieldTimestamp:
			ts, err := parseTimestamp(v)
			if err != nil {
				return types.Signature{}, err
			}
			s.Timestamp = ts
		default:
			return types.Signature{}, corrupt("signature: unexpected field %d", num)
		}
	}
	return s, nil
}

// SerializeCommit encodes a commit. The root tree is flattened to its
// alternating-sign term sequence; the tree-conflict flag records which
// encoding the sequence uses.
func SerializeCommit(c types.Commit) ([]byte, error) {
	if c.RootTree.IsZero() {
		return nil, fmt.Errorf("commit without root tree")
	}

	var b []byte
	for _, p := range c.Parents {
		b = protowire.AppendTag(b, commitFieldParents, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Bytes())
	}
	for _, p := range c.Predecessors {
		b = protowire.AppendTag(b, commitFieldPredecessors, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Bytes())
	}
	for _, t := range c.RootTree.Terms() {
		b = protowire.AppendTag(b, commitFieldRootTree, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Bytes())
	}
	if len(c.ChangeID) > 0 {
		b = protowire.AppendTag(b, commitFieldChangeID, protowire.BytesType)
		b = protowire.AppendBytes(b, c.ChangeID)
	}
	if c.Description != "" {
		b = protowire.AppendTag(b, commitFieldDescription, protowire.BytesType)
		b = protowire.AppendString(b, c.Description)
	}
	if c.Author != (types.Signature{}) {
		var sb []byte
		sb = appendSignature(sb, c.Author)
		b = protowire.AppendTag(b, commitFieldAuthor, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}
	if c.Committer != (types.Signature{}) {
		var sb []byte
		sb = appendSignature(sb, c.Committer)
		b = protowire.AppendTag(b, commitFieldCommitter, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}
	if c.RootTree.UsesConflictFormat() {
		b = protowire.AppendTag(b, commitFieldTreeConflictFormat, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if len(c.SecureSig) > 0 {
		b = protowire.AppendTag(b, commitFieldSecureSig, protowire.BytesType)
		b = protowire.AppendBytes(b, c.SecureSig)
	}
	return b, nil
}

// DeserializeCommit is the left inverse of SerializeCommit.
func DeserializeCommit(data []byte) (types.Commit, error) {
	var (
		c              types.Commit
		rootTerms      []types.TreeID
		conflictFormat bool
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return types.Commit{}, corrupt("commit: bad tag")
		}
		data = data[n:]

		if num == commitFieldTreeConflictFormat {
			if typ != protowire.VarintType {
				return types.Commit{}, corrupt("commit: unexpected wire type for conflict flag")
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return types.Commit{}, corrupt("commit: truncated conflict flag")
			}
			conflictFormat = v != 0
			data = data[n:]
			continue
		}

		if typ != protowire.BytesType {
			return types.Commit{}, corrupt("commit: unexpected wire type for field %d", num)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return types.Commit{}, corrupt("commit: truncated field %d", num)
		}
		data = data[n:]

		switch num {
		case commitFieldParents:
			id, err := types.CommitIDFromBytes(v)
			if err != nil {
				return types.Commit{}, corrupt("commit parent: %v", err)
			}
			c.Parents = append(c.Parents, id)
		case commitFieldPredecessors:
			id, err := types.CommitIDFromBytes(v)
			if err != nil {
				return types.Commit{}, corrupt("commit predecessor: %v", err)
			}
			c.Predecessors = append(c.Predecessors, id)
		case commitFieldRootTree:
			id, err := types.TreeIDFromBytes(v)
			if err != nil {
				return types.Commit{}, corrupt("commit root tree: %v", err)
			}
			rootTerms = append(rootTerms, id)
		case commitFieldChangeID:
			c.ChangeID = append(types.ChangeID(nil), v...)
		case commitFieldDescription:
			c.Description = string(v)
		case commitFieldAuthor:
			s, err := parseSignature(v)
			if err != nil {
				return types.Commit{}, err
			}
			c.Author = s
		case commitFieldCommitter:
			s, err := parseSignature(v)
			if err != nil {
				return types.Commit{}, err
			}
			c.Committer = s
		case commitFieldSecureSig:
			c.SecureSig = append([]byte(nil), v...)
		default:
			return types.Commit{}, corrupt("commit: unexpected field %d", num)
		}
	}

	switch {
	case conflictFormat:
		root, err := types.ConflictedTree(rootTerms)
		if err != nil {
			return types.Commit{}, corrupt("commit: %v", err)
		}
		c.RootTree = root
	case len(rootTerms) == 1:
		c.RootTree = types.ResolvedTree(rootTerms[0])
	default:
		return types.Commit{}, corrupt("commit: legacy root tree must have exactly one term, got %d", len(rootTerms))
	}
	return c, nil
}
