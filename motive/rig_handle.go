package motive

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/motive-go/internal/mat4"
	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// RigHandle is an exclusive, non-copyable-by-convention capability to drive
// one bone hierarchy.
type RigHandle struct {
	proc *rigProcessor
	cell *int
}

// NewRigHandle allocates a rig bound to init.DefiningAnimation's bone ops.
func NewRigHandle(eng *Engine, init RigInit) (RigHandle, error) {
	p, err := eng.rigProcessor()
	if err != nil {
		return RigHandle{}, err
	}
	first, err := p.allocate(init)
	if err != nil {
		return RigHandle{}, err
	}
	cell := new(int)
	*cell = first
	p.bindCell(first, cell)
	return RigHandle{proc: p, cell: cell}, nil
}

func (h *RigHandle) Valid() bool {
	return h.proc != nil && h.cell != nil && h.proc.ValidIndex(*h.cell)
}

func (h *RigHandle) Move() RigHandle {
	moved := RigHandle{proc: h.proc, cell: h.cell}
	h.proc, h.cell = nil, nil
	return moved
}

func (h *RigHandle) Release() {
	if h.proc == nil {
		return
	}
	h.proc.free(*h.cell)
	h.proc, h.cell = nil, nil
}

func (h *RigHandle) warnDetached(op string) {
	log.Printf("motive: %s called on detached rig handle", op)
}

// NumBones returns the rig's bone count, or 0 if detached.
func (h *RigHandle) NumBones() int {
	if !h.Valid() {
		return 0
	}
	return h.proc.data(*h.cell).numBones
}

// Global returns bone b's current global-space transform.
func (h *RigHandle) Global(bone int) [16]float32 {
	if !h.Valid() {
		h.warnDetached("Global")
		var identity [16]float32
		identity[0], identity[5], identity[10], identity[15] = 1, 1, 1, 1
		return identity
	}
	d := h.proc.data(*h.cell)
	if bone < 0 || bone >= d.numBones {
		log.Printf("motive: Global(%d) out of range", bone)
		var identity [16]float32
		identity[0], identity[5], identity[10], identity[15] = 1, 1, 1, 1
		return identity
	}
	return d.globals[bone]
}

// InverseGlobal returns the inverse of bone b's current global-space
// transform, the same way engine/camera/camera.go derives its own
// inverse-projection matrix from the live projection matrix with a single
// Invert4 call rather than tracking the inverse as separate state. A host
// attaching a world-space object to a bone, or capturing a bind-pose inverse
// for GPU skinning while the rig sits at rest, converts through this rather
// than re-deriving the inverse itself. ok is false if the transform is
// singular, in which case out is left unchanged.
func (h *RigHandle) InverseGlobal(bone int) (out [16]float32, ok bool) {
	g := h.Global(bone)
	ok = mat4.Invert4(out[:], g[:])
	return out, ok
}

// RootMotion returns the root-motion bone's local transform, verbatim,
// undisturbed by the hierarchy traversal. Identity if the rig declares no
// root-motion bone.
func (h *RigHandle) RootMotion() [16]float32 {
	if !h.Valid() {
		h.warnDetached("RootMotion")
		var identity [16]float32
		identity[0], identity[5], identity[10], identity[15] = 1, 1, 1, 1
		return identity
	}
	return h.proc.data(*h.cell).rootLocal
}

// BlendToAnim blends the rig to a single animation. See rigData.blendToAnim.
func (h *RigHandle) BlendToAnim(anim *Animation, playback Playback) error {
	if !h.Valid() {
		return fmt.Errorf("BlendToAnim: %w", motiveerr.ErrDetachedHandle)
	}
	return h.proc.data(*h.cell).blendToAnim(h.proc.eng, anim, playback)
}

// BlendToAnims cross-fades the rig across multiple concurrently-playing
// animations. See rigData.blendToAnims.
func (h *RigHandle) BlendToAnims(anims []*Animation, playbacks []Playback, weights []float32) error {
	if !h.Valid() {
		return fmt.Errorf("BlendToAnims: %w", motiveerr.ErrDetachedHandle)
	}
	return h.proc.data(*h.cell).blendToAnims(h.proc.eng, anims, playbacks, weights)
}

// EndTime returns when the rig's current clip ends: the latest
// StartTime+Duration across the bound animations and their playbacks.
func (h *RigHandle) EndTime() Time {
	if !h.Valid() {
		h.warnDetached("EndTime")
		return 0
	}
	return h.proc.data(*h.cell).endTime
}

// TimeRemaining is the longest time-remaining across every bone's composer.
func (h *RigHandle) TimeRemaining() Time {
	if !h.Valid() {
		h.warnDetached("TimeRemaining")
		return 0
	}
	return h.proc.data(*h.cell).timeRemaining()
}

// DebugCSVHeader returns a CSV header row naming every (bone, op) column of
// the rig's current (single) animation. Offline inspection only, not a
// stable ABI.
func (h *RigHandle) DebugCSVHeader() string {
	if !h.Valid() {
		h.warnDetached("DebugCSVHeader")
		return ""
	}
	return h.proc.data(*h.cell).debugCSVHeader()
}

// DebugCSVRow returns the current frame's values for DebugCSVHeader's
// columns, angles converted to degrees.
func (h *RigHandle) DebugCSVRow() string {
	if !h.Valid() {
		h.warnDetached("DebugCSVRow")
		return ""
	}
	return h.proc.data(*h.cell).debugCSVRow()
}
