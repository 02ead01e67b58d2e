package motive

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// MatrixHandle is an exclusive, non-copyable-by-convention capability to
// drive one matrix composer — a rotation-style composer if NewMatrixHandle
// was used, an SQT composer if NewSQTHandle was. Same move/cell mechanics as
// SplineHandle: copy only via Move.
type MatrixHandle struct {
	proc *matrixProcessor
	cell *int
}

// NewMatrixHandle allocates a rotation-style matrix composer from ops. Ops
// must not contain quaternion operations; use NewSQTHandle for those.
func NewMatrixHandle(eng *Engine, ops []MatrixOpInit) (MatrixHandle, error) {
	return newComposerHandle(eng, false, ops)
}

// NewSQTHandle allocates an SQT (translate/quaternion/scale) composer.
func NewSQTHandle(eng *Engine, ops []MatrixOpInit) (MatrixHandle, error) {
	return newComposerHandle(eng, true, ops)
}

func newComposerHandle(eng *Engine, sqt bool, ops []MatrixOpInit) (MatrixHandle, error) {
	p, err := eng.matrixProcessor(sqt)
	if err != nil {
		return MatrixHandle{}, err
	}
	first, err := p.allocate(ops)
	if err != nil {
		return MatrixHandle{}, err
	}
	cell := new(int)
	*cell = first
	p.bindCell(first, cell)
	return MatrixHandle{proc: p, cell: cell}, nil
}

func (h *MatrixHandle) Valid() bool {
	return h.proc != nil && h.cell != nil && h.proc.ValidIndex(*h.cell)
}

func (h *MatrixHandle) Move() MatrixHandle {
	moved := MatrixHandle{proc: h.proc, cell: h.cell}
	h.proc, h.cell = nil, nil
	return moved
}

func (h *MatrixHandle) Release() {
	if h.proc == nil {
		return
	}
	h.proc.free(*h.cell)
	h.proc, h.cell = nil, nil
}

func (h *MatrixHandle) warnDetached(op string) {
	log.Printf("motive: %s called on detached matrix handle", op)
}

// Value returns the composer's current 4x4 result matrix, flattened
// column-major.
func (h *MatrixHandle) Value() [16]float32 {
	if !h.Valid() {
		h.warnDetached("Value")
		var identity [16]float32
		identity[0], identity[5], identity[10], identity[15] = 1, 1, 1, 1
		return identity
	}
	return h.proc.data(*h.cell).value
}

// TRS returns the composer's current translation, quaternion (x,y,z,w), and
// scale — decomposed post-hoc for a rotation-style composer, gathered
// directly for an SQT composer.
func (h *MatrixHandle) TRS() (translation [3]float32, quaternion [4]float32, scale [3]float32) {
	if !h.Valid() {
		h.warnDetached("TRS")
		return [3]float32{}, [4]float32{0, 0, 0, 1}, [3]float32{1, 1, 1}
	}
	d := h.proc.data(*h.cell)
	return d.trans, d.quat, d.scale
}

// ChildValue returns the current value of the operation with the given id,
// or 0 if no such id is present.
func (h *MatrixHandle) ChildValue(id uint8) float32 {
	if !h.Valid() {
		h.warnDetached("ChildValue")
		return 0
	}
	v, _ := h.proc.data(*h.cell).childValue(id)
	return v
}

// SetChildValue overwrites the operation with the given id to a constant
// value, releasing any spline driving it. Reports false if no such id exists.
func (h *MatrixHandle) SetChildValue(id uint8, value float32) bool {
	if !h.Valid() {
		h.warnDetached("SetChildValue")
		return false
	}
	return h.proc.data(*h.cell).setChildValue(id, value)
}

// SetChildTarget synthesizes a spline driving the operation with the given
// id toward t.
func (h *MatrixHandle) SetChildTarget(id uint8, t Target1f) error {
	if !h.Valid() {
		return fmt.Errorf("SetChildTarget: %w", motiveerr.ErrDetachedHandle)
	}
	return h.proc.data(*h.cell).setChildTarget(h.proc.eng, id, t)
}

// BlendToOps merges newOps into the composer per matrixComposerData.blendToOps.
func (h *MatrixHandle) BlendToOps(newOps []MatrixOpInit, playback Playback) error {
	if !h.Valid() {
		return fmt.Errorf("BlendToOps: %w", motiveerr.ErrDetachedHandle)
	}
	return h.proc.data(*h.cell).blendToOps(h.proc.eng, newOps, playback)
}

// SetPlaybackRate rescales every operation driven by a composer-owned
// spline. Operations reading a borrowed spline reference are left as they
// are.
func (h *MatrixHandle) SetPlaybackRate(rate float32) error {
	if !h.Valid() {
		return fmt.Errorf("SetPlaybackRate: %w", motiveerr.ErrDetachedHandle)
	}
	h.proc.data(*h.cell).setPlaybackRate(rate)
	return nil
}

// TimeRemaining is the longest time-remaining across the composer's
// operations — the composer isn't settled until all of them are.
func (h *MatrixHandle) TimeRemaining() Time {
	if !h.Valid() {
		h.warnDetached("TimeRemaining")
		return 0
	}
	return h.proc.data(*h.cell).timeRemaining()
}
