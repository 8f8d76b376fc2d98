package types

// Typed id wrappers. All ids share the Hash representation but are distinct
// types so a CommitID cannot be passed where a TreeID is expected.

// FileID identifies an immutable File object.
type FileID Hash

func (id FileID) String() string { return Hash(id).String() }
func (id FileID) Bytes() []byte  { return Hash(id).Bytes() }

// SymlinkID identifies an immutable Symlink object.
type SymlinkID Hash

func (id SymlinkID) String() string { return Hash(id).String() }
func (id SymlinkID) Bytes() []byte  { return Hash(id).Bytes() }

// TreeID identifies an immutable Tree object.
type TreeID Hash

func (id TreeID) String() string { return Hash(id).String() }
func (id TreeID) Bytes() []byte  { return Hash(id).Bytes() }

// ConflictID identifies an immutable Conflict object, the side table recording
// unresolved alternatives for a path.
type ConflictID Hash

func (id ConflictID) String() string { return Hash(id).String() }
func (id ConflictID) Bytes() []byte  { return Hash(id).Bytes() }

// CommitID identifies an immutable Commit object. It changes whenever the
// commit content changes; see ChangeID for the stable identity of a logical
// change.
type CommitID Hash

func (id CommitID) String() string { return Hash(id).String() }
func (id CommitID) Bytes() []byte  { return Hash(id).Bytes() }

// IsRoot reports whether the id names the virtual root commit, which is never
// written to the store.
func (id CommitID) IsRoot() bool { return Hash(id).IsZero() }

// ChangeID is a store-independent stable identifier for a logical change
// across history rewrites. Caller supplied and opaque to the core.
type ChangeID []byte

// OperationID is an opaque log-position identifier owned by the external
// operation log.
type OperationID []byte

// WorkspaceID is an opaque string identifying a logical workspace within the
// store.
type WorkspaceID string

func FileIDFromBytes(b []byte) (FileID, error) {
	h, err := HashFromBytes(b)
	return FileID(h), err
}

func SymlinkIDFromBytes(b []byte) (SymlinkID, error) {
	h, err := HashFromBytes(b)
	return SymlinkID(h), err
}

func TreeIDFromBytes(b []byte) (TreeID, error) {
	h, err := HashFromBytes(b)
	return TreeID(h), err
}

func ConflictIDFromBytes(b []byte) (ConflictID, error) {
	h, err := HashFromBytes(b)
	return ConflictID(h), err
}

func CommitIDFromBytes(b []byte) (CommitID, error) {
	h, err := HashFromBytes(b)
	return CommitID(h), err
}
