package bulkwriter

import "errors"

// Sentinel errors for the writer's lifecycle and mode invariants, per
// spec §7. Element-level failures (duplicate source id, unresolved
// way-node, invalid coordinate/user id, unsupported member kind) are
// typed errors returned by the sub-packages that detect them
// (idalloc.DuplicateSourceIDError, emitter.UnresolvedWayNodeError,
// emitter.InvalidCoordinateError, changeset.InvalidUserIDError,
// emitter.UnsupportedElementKindError). WritePartial returns them
// unwrapped; Finalize wraps them with %w. Either way callers can
// errors.As against them.
var (
	ErrAlreadyOpen        = errors.New("bulkwriter: writer already open")
	ErrNotOpen            = errors.New("bulkwriter: writer not open")
	ErrUnsupportedURL     = errors.New("bulkwriter: unsupported database url")
	ErrUpdateNotSupported = errors.New("bulkwriter: updates and deletes are not supported")
)
