package types

import "errors"

// Error taxonomy shared by all engine packages. Callers match with errors.Is;
// packages add context with fmt.Errorf("...: %w", err).
var (
	// ErrNotFound: the referenced object id was never written. Absence is
	// semantically meaningful and never retried internally.
	ErrNotFound = errors.New("cultivate: object not found")

	// ErrCorruptObject: stored or incoming bytes fail schema validation.
	ErrCorruptObject = errors.New("cultivate: corrupt object")

	// ErrDanglingReference: a commit references an id not present in the
	// store. Raised at write time; the write is rejected entirely.
	ErrDanglingReference = errors.New("cultivate: dangling reference")

	// ErrNotInitialized: checkout state requested for a working copy that was
	// never initialized. Distinct from ErrNotFound so callers can tell "never
	// initialized" from "deleted/corrupted".
	ErrNotInitialized = errors.New("cultivate: working copy not initialized")

	// ErrSnapshotIO: a filesystem read failed during a snapshot. The snapshot
	// is aborted; prior checkout state and all prior objects stay intact.
	ErrSnapshotIO = errors.New("cultivate: snapshot i/o error")
)
