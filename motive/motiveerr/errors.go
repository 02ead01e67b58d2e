// Package motiveerr declares the sentinel errors surfaced by the motive
// runtime. Callers compare against these with errors.Is; call sites wrap
// them with fmt.Errorf("...: %w", ...) to attach context.
package motiveerr

import "errors"

var (
	// ErrDetachedHandle is returned when an operation targets a handle that
	// is default-constructed, moved-from, or whose processor was reset.
	ErrDetachedHandle = errors.New("motive: handle is detached")

	// ErrHierarchyMismatch is returned when binding an animation to a rig
	// whose bone_parents differ, outside the single-bone special case.
	ErrHierarchyMismatch = errors.New("motive: animation hierarchy does not match rig")

	// ErrInvalidTarget is returned for a target with a non-positive future
	// waypoint time, or a waypoint sequence with non-monotone times.
	ErrInvalidTarget = errors.New("motive: invalid target")

	// ErrUnknownType is returned when a processor factory was never
	// registered for the requested MotivatorType.
	ErrUnknownType = errors.New("motive: unknown motivator type")

	// ErrIndexOutOfRange is returned for an out-of-range child or bone index.
	ErrIndexOutOfRange = errors.New("motive: index out of range")

	// ErrInvalidWeights is returned when blend weights do not sum to a
	// positive total.
	ErrInvalidWeights = errors.New("motive: blend weights must sum to a positive total")

	// ErrOpInsertionUnsupported is returned when a blend_to on a rotation-
	// style matrix composer would need to insert an operation id the
	// composer doesn't already have. Matrix-style composers are
	// layout-sensitive (operation order is not commutative), so insertion
	// during blend is refused rather than silently re-ordering; SQT
	// composers don't have this restriction.
	ErrOpInsertionUnsupported = errors.New("motive: matrix composer blend may not insert a new operation id")
)
