package motive

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/motive-go/motive/internal/indexpool"
	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// overshootSettleEpsilon is how close |diff| and |velocity| must be to zero
// before a slot reports settled.
var overshootSettleEpsilon float32 = 1e-3

// OvershootInit configures a new overshoot-driven value: its range, whether
// it wraps, and the integrator's four tuning constants.
type OvershootInit struct {
	YRange                   Range
	Modular                  bool
	MaxVelocity              float32
	MaxDelta                 float32
	AccelPerDifference       float32
	WrongDirectionMultiplier float32
}

type overshootSlot struct {
	init                        OvershootInit
	value, velocity             float32
	targetValue, targetVelocity float32
}

// overshootProcessor is the priority-1 processor: a simple spring-like
// integrator rather than a spline evaluator, ported from
// src/motive/processor/overshoot_processor.cpp. Acceleration is proportional
// to the current distance from target; a slot moving the wrong way gets its
// acceleration boosted by WrongDirectionMultiplier so it turns around faster
// instead of coasting past the target first.
type overshootProcessor struct {
	eng     *Engine
	ranges  *indexpool.Allocator
	slots   []overshootSlot
	backptr []*int
}

var _ Processor = (*overshootProcessor)(nil)

func newOvershootProcessor(eng *Engine) Processor {
	p := &overshootProcessor{eng: eng}
	p.ranges = indexpool.New(p.onResize, p.onMove)
	return p
}

func (p *overshootProcessor) Type() MotivatorType { return TypeOvershoot }
func (p *overshootProcessor) Priority() int       { return 1 }

func (p *overshootProcessor) onResize(n int) {
	for len(p.slots) < n {
		p.slots = append(p.slots, overshootSlot{})
	}
	for len(p.backptr) < n {
		p.backptr = append(p.backptr, nil)
	}
}

func (p *overshootProcessor) onMove(src indexpool.Range, target int) {
	for i := 0; i < src.Count; i++ {
		from, to := src.First+i, target+i
		p.slots[to] = p.slots[from]
		p.backptr[to] = p.backptr[from]
		if p.backptr[to] != nil {
			*p.backptr[to] = to
		}
		p.backptr[from] = nil
		p.slots[from] = overshootSlot{}
	}
}

func (p *overshootProcessor) Advance(dt Time) {
	p.ranges.Defragment()
	fdt := float32(dt)
	n := p.ranges.NumActiveSlots()
	for i := 0; i < n; i++ {
		s := &p.slots[i]

		diff := s.targetValue - s.value
		if s.init.Modular {
			diff = wrapToRange(diff, s.init.YRange.Length())
		}

		accel := diff * s.init.AccelPerDifference
		if signOf(diff) != 0 && signOf(s.velocity) != 0 && signOf(diff) != signOf(s.velocity) {
			accel *= s.init.WrongDirectionMultiplier
		}

		s.velocity += accel * fdt
		s.velocity = clampAbs(s.velocity, s.init.MaxVelocity)

		delta := clampAbs(s.velocity*fdt, s.init.MaxDelta)
		s.value += delta
		if s.init.Modular {
			s.value = s.init.YRange.Normalize(s.value)
		}
	}
}

func signOf(v float32) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clampAbs(v, limit float32) float32 {
	if limit <= 0 {
		return v
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

func wrapToRange(diff, length float32) float32 {
	if length <= 0 {
		return diff
	}
	for diff > length/2 {
		diff -= length
	}
	for diff <= -length/2 {
		diff += length
	}
	return diff
}

func (p *overshootProcessor) resetAll() {
	p.slots = nil
	p.backptr = nil
	p.ranges = indexpool.New(p.onResize, p.onMove)
}

func (p *overshootProcessor) ValidIndex(first int) bool { return p.ranges.ValidIndex(first) }

func (p *overshootProcessor) allocate(init OvershootInit) (int, error) {
	first, err := p.ranges.Alloc(1)
	if err != nil {
		return 0, err
	}
	p.slots[first] = overshootSlot{init: init, targetValue: init.YRange.Start}
	return first, nil
}

func (p *overshootProcessor) bindCell(first int, cell *int) { p.backptr[first] = cell }

func (p *overshootProcessor) free(first int) {
	p.slots[first] = overshootSlot{}
	p.backptr[first] = nil
	p.ranges.Free(first)
}

// settled reports whether the slot's distance from target and velocity are
// both within overshootSettleEpsilon of zero.
func (p *overshootProcessor) settled(index int) bool {
	s := &p.slots[index]
	diff := s.targetValue - s.value
	if s.init.Modular {
		diff = wrapToRange(diff, s.init.YRange.Length())
	}
	return absF(diff) < overshootSettleEpsilon && absF(s.velocity) < overshootSettleEpsilon
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// OvershootHandle is an exclusive, non-copyable-by-convention capability to
// drive one overshoot-integrated value.
type OvershootHandle struct {
	proc *overshootProcessor
	cell *int
}

// NewOvershootHandle allocates an overshoot-driven value on eng.
func NewOvershootHandle(eng *Engine, init OvershootInit) (OvershootHandle, error) {
	p, err := eng.overshootProcessor()
	if err != nil {
		return OvershootHandle{}, err
	}
	first, err := p.allocate(init)
	if err != nil {
		return OvershootHandle{}, err
	}
	cell := new(int)
	*cell = first
	p.bindCell(first, cell)
	return OvershootHandle{proc: p, cell: cell}, nil
}

func (h *OvershootHandle) Valid() bool {
	return h.proc != nil && h.cell != nil && h.proc.ValidIndex(*h.cell)
}

func (h *OvershootHandle) Move() OvershootHandle {
	moved := OvershootHandle{proc: h.proc, cell: h.cell}
	h.proc, h.cell = nil, nil
	return moved
}

func (h *OvershootHandle) Release() {
	if h.proc == nil {
		return
	}
	h.proc.free(*h.cell)
	h.proc, h.cell = nil, nil
}

func (h *OvershootHandle) warnDetached(op string) {
	log.Printf("motive: %s called on detached overshoot handle", op)
}

func (h *OvershootHandle) Value() float32 {
	if !h.Valid() {
		h.warnDetached("Value")
		return 0
	}
	return h.proc.slots[*h.cell].value
}

func (h *OvershootHandle) Velocity() float32 {
	if !h.Valid() {
		h.warnDetached("Velocity")
		return 0
	}
	return h.proc.slots[*h.cell].velocity
}

// SetTarget sets the value the slot accelerates toward and records velocity
// as its target velocity. Advance steers by the value difference only; the
// target velocity does not affect the integration.
func (h *OvershootHandle) SetTarget(value, velocity float32) error {
	if !h.Valid() {
		return fmt.Errorf("SetTarget: %w", motiveerr.ErrDetachedHandle)
	}
	s := &h.proc.slots[*h.cell]
	s.targetValue, s.targetVelocity = value, velocity
	return nil
}

// Settled reports whether the slot has converged to its target.
func (h *OvershootHandle) Settled() bool {
	if !h.Valid() {
		h.warnDetached("Settled")
		return false
	}
	return h.proc.settled(*h.cell)
}
