package types

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a content digest.
const HashSize = 32

// Hash is a BLAKE3-256 digest over the canonical serialization of exactly one
// object kind. It doubles as the object's address in the store.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero reports whether the hash is the all-zero value. The all-zero hash is
// never produced by the digest function and is reserved for the virtual root
// commit.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashFromBytes converts a raw byte slice into a Hash. The slice must be
// exactly HashSize bytes long.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid byte length for Hash: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a hex-encoded Hash as produced by String.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex for Hash: %w", err)
	}
	return HashFromBytes(b)
}
