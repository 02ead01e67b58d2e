package motive

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/motive-go/motive/motivecurve"
	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// SplineHandle is an exclusive, non-copyable-by-convention capability to
// drive one spline-backed value (or a packed group of `dim` of them). Copy
// a SplineHandle only via Move; taking the zero value or a moved-from handle
// yields Valid() == false.
//
// Mechanics: the handle does not store its index directly. It shares a
// heap-allocated cell with the owning processor's back-pointer table, so
// that when the processor relocates the slot (e.g. during Defragment) it can
// update the handle's index in place without the handle itself moving.
type SplineHandle struct {
	proc *splineProcessor
	cell *int
}

// NewSplineHandle allocates a scalar (dim=1) spline-driven value on eng.
func NewSplineHandle(eng *Engine, init SplineInit) (SplineHandle, error) {
	return NewSplineHandleDim(eng, init, 1)
}

// NewSplineHandleDim allocates a dim-wide packed group of spline-driven
// values (e.g. dim=3 for a vector), all sharing init's range/modular flag.
func NewSplineHandleDim(eng *Engine, init SplineInit, dim int) (SplineHandle, error) {
	p, err := eng.splineProcessor()
	if err != nil {
		return SplineHandle{}, err
	}
	first, err := p.allocate(init, dim)
	if err != nil {
		return SplineHandle{}, err
	}
	cell := new(int)
	*cell = first
	p.bindCell(first, cell)
	return SplineHandle{proc: p, cell: cell}, nil
}

// Valid reports whether the handle currently references a live slot.
func (h *SplineHandle) Valid() bool {
	return h.proc != nil && h.cell != nil && h.proc.ValidIndex(*h.cell)
}

// Move transfers ownership of the underlying slot to the returned handle and
// detaches the receiver.
func (h *SplineHandle) Move() SplineHandle {
	moved := SplineHandle{proc: h.proc, cell: h.cell}
	h.proc, h.cell = nil, nil
	return moved
}

// Release frees the handle's slot. After Release the handle is detached.
func (h *SplineHandle) Release() {
	if h.proc == nil {
		return
	}
	h.proc.free(*h.cell)
	h.proc, h.cell = nil, nil
}

// Dim returns the number of consecutive slots this handle occupies, or 0 if
// detached.
func (h *SplineHandle) Dim() int {
	if !h.Valid() {
		return 0
	}
	return h.proc.Dimensions(*h.cell)
}

func (h *SplineHandle) warnDetached(op string) {
	log.Printf("motive: %s called on detached spline handle", op)
}

// Value returns the current value of component 0. Calling this on a
// detached handle logs a warning and returns the zero value, per the
// misuse-of-detached-handle error policy.
func (h *SplineHandle) Value() float32 { return h.ValueAt(0) }

func (h *SplineHandle) ValueAt(component int) float32 {
	if !h.Valid() {
		h.warnDetached("Value")
		return 0
	}
	return h.proc.value(*h.cell + component)
}

func (h *SplineHandle) Velocity() float32 { return h.VelocityAt(0) }

func (h *SplineHandle) VelocityAt(component int) float32 {
	if !h.Valid() {
		h.warnDetached("Velocity")
		return 0
	}
	return h.proc.velocity(*h.cell + component)
}

func (h *SplineHandle) Direction() float32 {
	if !h.Valid() {
		h.warnDetached("Direction")
		return 0
	}
	return h.proc.direction(*h.cell)
}

func (h *SplineHandle) TargetValue() float32 {
	if !h.Valid() {
		h.warnDetached("TargetValue")
		return 0
	}
	return h.proc.targetValue(*h.cell)
}

func (h *SplineHandle) TargetVelocity() float32 {
	if !h.Valid() {
		h.warnDetached("TargetVelocity")
		return 0
	}
	return h.proc.targetVelocity(*h.cell)
}

func (h *SplineHandle) Difference() float32 {
	if !h.Valid() {
		h.warnDetached("Difference")
		return 0
	}
	return h.proc.difference(*h.cell)
}

func (h *SplineHandle) TargetTime() Time {
	if !h.Valid() {
		h.warnDetached("TargetTime")
		return 0
	}
	return h.proc.targetTime(*h.cell)
}

func (h *SplineHandle) SplineTime() Time {
	if !h.Valid() {
		h.warnDetached("SplineTime")
		return 0
	}
	return h.proc.splineTime(*h.cell)
}

// SetSpline binds an externally-owned curve to the handle. The caller must
// ensure curve outlives the bind.
func (h *SplineHandle) SetSpline(curve motivecurve.Curve, playback Playback) error {
	if !h.Valid() {
		return fmt.Errorf("SetSpline: %w", motiveerr.ErrDetachedHandle)
	}
	h.proc.setSpline(*h.cell, curve, playback)
	return nil
}

// SetSplines binds one externally-owned curve per slot of a packed handle.
// len(curves) must equal Dim(); all slots share one playback descriptor.
func (h *SplineHandle) SetSplines(curves []motivecurve.Curve, playback Playback) error {
	if !h.Valid() {
		return fmt.Errorf("SetSplines: %w", motiveerr.ErrDetachedHandle)
	}
	if dim := h.proc.Dimensions(*h.cell); len(curves) != dim {
		return fmt.Errorf("SetSplines: %d curves for a %d-wide handle: %w", len(curves), dim, motiveerr.ErrIndexOutOfRange)
	}
	for i, c := range curves {
		h.proc.setSpline(*h.cell+i, c, playback)
	}
	return nil
}

// SetTargets synthesizes one inline spline per slot of a packed handle.
// len(targets) must equal Dim(). The call is refused whole — no slot
// changes — if any target is invalid.
func (h *SplineHandle) SetTargets(targets []Target1f) error {
	if !h.Valid() {
		return fmt.Errorf("SetTargets: %w", motiveerr.ErrDetachedHandle)
	}
	if dim := h.proc.Dimensions(*h.cell); len(targets) != dim {
		return fmt.Errorf("SetTargets: %d targets for a %d-wide handle: %w", len(targets), dim, motiveerr.ErrIndexOutOfRange)
	}
	for i, t := range targets {
		if t.NumNodes() == 0 {
			return fmt.Errorf("SetTargets: target %d: %w", i, motiveerr.ErrInvalidTarget)
		}
	}
	for i, t := range targets {
		if err := h.proc.setTarget(*h.cell+i, t); err != nil {
			return fmt.Errorf("SetTargets: target %d: %w", i, err)
		}
	}
	return nil
}

// SetTarget synthesizes an inline spline toward t. See SplineProcessor's
// target synthesis algorithm.
func (h *SplineHandle) SetTarget(t Target1f) error {
	if !h.Valid() {
		return fmt.Errorf("SetTarget: %w", motiveerr.ErrDetachedHandle)
	}
	return h.proc.setTarget(*h.cell, t)
}

func (h *SplineHandle) SetSplineTime(t Time) error {
	if !h.Valid() {
		return fmt.Errorf("SetSplineTime: %w", motiveerr.ErrDetachedHandle)
	}
	h.proc.setSplineTime(*h.cell, t)
	return nil
}

func (h *SplineHandle) SetPlaybackRate(rate float32) error {
	if !h.Valid() {
		return fmt.Errorf("SetPlaybackRate: %w", motiveerr.ErrDetachedHandle)
	}
	h.proc.setPlaybackRate(*h.cell, rate)
	return nil
}

func (h *SplineHandle) SetRepeat(repeat bool) error {
	if !h.Valid() {
		return fmt.Errorf("SetRepeat: %w", motiveerr.ErrDetachedHandle)
	}
	h.proc.setRepeat(*h.cell, repeat)
	return nil
}
