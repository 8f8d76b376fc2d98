// Package codec implements the canonical binary serialization for store
// objects and the content digest over serialized bytes. Serialization uses
// the protobuf wire format with a fixed field schema; tree entries are
// emitted in strictly increasing name order so semantically equal trees built
// in any order digest identically.
package codec

import (
	"sync"

	"lukechampine.com/blake3"

	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// Digest computes the BLAKE3-256 content digest of serialized object bytes.
func Digest(data []byte) types.Hash {
	return types.Hash(blake3.Sum256(data))
}

var (
	emptyTreeOnce sync.Once
	emptyTreeID   types.TreeID
)

// EmptyTreeID returns the id of the canonical zero-entry tree. It is a pure
// function of the codec and never requires a prior store write.
func EmptyTreeID() types.TreeID {
	emptyTreeOnce.Do(func() {
		data, err := SerializeTree(types.Tree{})
		if err != nil {
			// The empty tree always serializes.
			panic(err)
		}
		emptyTreeID = types.TreeID(Digest(data))
	})
	return emptyTreeID
}
