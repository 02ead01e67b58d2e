package motive

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/motive-go/motive/motivecurve"
)

// OpType identifies one primitive transform a matrix operation applies.
// Quaternion components are only legal inside an SQT composer; rotate-about-
// axis operations are only legal inside a rotation-style matrix composer.
// A single composer is one or the other, never both.
type OpType int

const (
	RotateAboutX OpType = iota
	RotateAboutY
	RotateAboutZ
	TranslateX
	TranslateY
	TranslateZ
	ScaleX
	ScaleY
	ScaleZ
	ScaleUniform
	QuaternionW
	QuaternionX
	QuaternionY
	QuaternionZ
)

// InvalidMatrixOpID is the sentinel id meaning "no operation".
const InvalidMatrixOpID uint8 = 255

// MaxMatrixOpID is the highest id a caller may assign to a real operation.
const MaxMatrixOpID uint8 = 254

// matrixBlendEpsilon is the tolerance BlendToOp uses to decide a spline
// driver has effectively already reached a constant target, and can
// collapse to it immediately rather than spawning a near-zero-length blend.
// The source this was ported from (matrix_op.h) hardcodes 1e-3; it is
// exposed here as a tunable rather than re-hardcoded, per an explicitly
// preserved open question (see DESIGN.md).
var matrixBlendEpsilon float32 = 0.001

func (t OpType) IsRotate() bool {
	return t == RotateAboutX || t == RotateAboutY || t == RotateAboutZ
}

func (t OpType) IsTranslate() bool {
	return t == TranslateX || t == TranslateY || t == TranslateZ
}

func (t OpType) IsScale() bool {
	return t == ScaleX || t == ScaleY || t == ScaleZ || t == ScaleUniform
}

func (t OpType) IsQuaternion() bool {
	return t == QuaternionW || t == QuaternionX || t == QuaternionY || t == QuaternionZ
}

// DefaultValue is the identity value for the operation's type: 1 for scale
// and the quaternion w component, 0 for everything else.
func (t OpType) DefaultValue() float32 {
	if t.IsScale() || t == QuaternionW {
		return 1
	}
	return 0
}

func defaultRangeForOp(t OpType) Range {
	if t.IsRotate() {
		return Range{Start: -float32(math.Pi), End: float32(math.Pi)}
	}
	return Range{Start: -1e6, End: 1e6}
}

// DriverKind tags which of the four driver shapes a MatrixOpInit carries.
type DriverKind int

const (
	DriverConstant DriverKind = iota
	DriverSpline
	DriverTarget
	DriverCurve
)

// MatrixOpInit describes one operation to add to a composer: its stable id
// (used to match operations across animations during a blend), its type,
// and its driver (a tagged sum of constant / spline-handle reference /
// waypoint target / curve reference — the Go analogue of
// MatrixOperationInit's C++ union). A Spline driver borrows a caller-owned
// handle and reads whatever it currently produces; Target and Curve drivers
// instead have the composer synthesize and own a spline internally.
type MatrixOpInit struct {
	ID     uint8
	Type   OpType
	Kind   DriverKind
	Const  float32
	Spline *SplineHandle
	Curve  Curve
	Target Target1f
}

// ConstOp builds a constant-driven operation init.
func ConstOp(id uint8, t OpType, value float32) MatrixOpInit {
	return MatrixOpInit{ID: id, Type: t, Kind: DriverConstant, Const: value}
}

// SplineOp builds an operation init driven by a caller-owned spline handle.
// The composer borrows the handle — it never retargets or releases it — and
// the caller must keep it alive and attached for as long as the op uses it;
// a detached reference falls back to the op type's default value.
func SplineOp(id uint8, t OpType, spline *SplineHandle) MatrixOpInit {
	return MatrixOpInit{ID: id, Type: t, Kind: DriverSpline, Spline: spline}
}

// TargetOp builds a waypoint-target-driven operation init.
func TargetOp(id uint8, t OpType, target Target1f) MatrixOpInit {
	return MatrixOpInit{ID: id, Type: t, Kind: DriverTarget, Target: target}
}

// CurveOp builds a curve-driven operation init. The caller guarantees curve
// outlives the bind.
func CurveOp(id uint8, t OpType, curve Curve) MatrixOpInit {
	return MatrixOpInit{ID: id, Type: t, Kind: DriverCurve, Curve: curve}
}

// Curve re-exports motivecurve.Curve so callers composing MatrixOpInit
// values don't need to import motivecurve directly.
type Curve = motivecurve.Curve

// validateOps enforces the composer-construction invariants on an op list:
// every id is a real one (<= MaxMatrixOpID), ids appear in non-decreasing
// order, and the op types match the composer's style — an SQT composer may
// not hold rotate-about-axis ops, a rotation-style composer may not hold
// quaternion components.
func validateOps(sqt bool, ops []MatrixOpInit) error {
	for i, op := range ops {
		if op.ID > MaxMatrixOpID {
			return fmt.Errorf("op %d: id %d exceeds max id %d", i, op.ID, MaxMatrixOpID)
		}
		if i > 0 && op.ID < ops[i-1].ID {
			return fmt.Errorf("op %d: id %d out of order after id %d", i, op.ID, ops[i-1].ID)
		}
		if sqt && op.Type.IsRotate() {
			return fmt.Errorf("op %d: rotate-about-axis ops are not valid in an SQT composer", i)
		}
		if !sqt && op.Type.IsQuaternion() {
			return fmt.Errorf("op %d: quaternion ops are not valid in a rotation-style composer", i)
		}
	}
	return nil
}

func floatsClose(a, b, epsilon float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= epsilon
}

// matrixOperation is the live, per-composer state for one operation: a
// constant value, a composer-owned spline handle driving it, or a borrowed
// reference to a caller-owned spline handle. spline is owned (released with
// the op); ref is borrowed and only ever read.
type matrixOperation struct {
	id     uint8
	typ    OpType
	spline SplineHandle
	ref    *SplineHandle
	value  float32
}

func newMatrixOperation(init MatrixOpInit) matrixOperation {
	op := matrixOperation{id: init.ID, typ: init.Type}
	switch init.Kind {
	case DriverConstant:
		op.value = init.Const
	case DriverSpline:
		op.ref = init.Spline
		op.value = init.Type.DefaultValue()
	default:
		op.value = init.Type.DefaultValue()
	}
	return op
}

// currentValue returns the op's current driver value: the referenced
// caller-owned spline if one is attached, else the owned spline if one is
// live, else the stored constant.
func (op *matrixOperation) currentValue() float32 {
	if op.ref != nil && op.ref.Valid() {
		return op.ref.Value()
	}
	if op.spline.Valid() {
		return op.spline.Value()
	}
	return op.value
}

func (op *matrixOperation) currentVelocity() float32 {
	if op.ref != nil && op.ref.Valid() {
		return op.ref.Velocity()
	}
	if op.spline.Valid() {
		return op.spline.Velocity()
	}
	return 0
}

func (op *matrixOperation) setValue(v float32) {
	op.ref = nil
	if op.spline.Valid() {
		op.spline.Release()
	}
	op.value = v
}

func (op *matrixOperation) setTarget(eng *Engine, t Target1f) error {
	if op.ref != nil {
		op.value = op.currentValue()
		op.ref = nil
	}
	if err := op.ensureSpline(eng); err != nil {
		return err
	}
	return op.spline.SetTarget(t)
}

func (op *matrixOperation) ensureSpline(eng *Engine) error {
	if op.spline.Valid() {
		return nil
	}
	h, err := NewSplineHandle(eng, SplineInit{YRange: defaultRangeForOp(op.typ), Modular: op.typ.IsRotate()})
	if err != nil {
		return err
	}
	op.spline = h
	return op.spline.SetTarget(Current1f(op.value, 0))
}

func (op *matrixOperation) release() {
	op.ref = nil
	if op.spline.Valid() {
		op.spline.Release()
	}
}

func (op *matrixOperation) timeRemaining() Time {
	if op.ref != nil && op.ref.Valid() {
		return op.ref.TargetTime()
	}
	if op.spline.Valid() {
		return op.spline.TargetTime()
	}
	return 0
}

// blendTo applies the exact epsilon-collapse/re-initialize rule from
// matrix_op.h's MatrixOperation::BlendToOp:
//   - new driver constant, current driver a spline with value/velocity
//     already ~= the constant: collapse immediately, freeing the spline.
//   - new driver constant otherwise (spline driver, or no blend time): set
//     the spline's target to (value, velocity=0, time=blend_duration), or
//     collapse immediately if blend_duration <= 0.
//   - new driver a target or curve: if currently constant, first
//     instantiate a spline initialized at the current constant, then apply
//     the new driver.
//   - new driver a spline reference: adopt it directly, dropping any owned
//     spline; the reference's own playback is the caller's business.
//
// Blending away from a spline reference first carries its current value and
// velocity into op state (an owned spline when the velocity is nonzero), so
// the transition starts where the borrowed handle left off; the borrowed
// handle itself is never retargeted or released.
func (op *matrixOperation) blendTo(eng *Engine, newInit MatrixOpInit, playback Playback) error {
	if newInit.Kind == DriverSpline {
		if op.spline.Valid() {
			op.spline.Release()
		}
		op.ref = newInit.Spline
		op.value = op.typ.DefaultValue()
		return nil
	}
	if op.ref != nil {
		value, velocity := op.currentValue(), op.currentVelocity()
		op.ref = nil
		op.value = value
		if !op.spline.Valid() && !floatsClose(velocity, 0, matrixBlendEpsilon) {
			h, err := NewSplineHandle(eng, SplineInit{YRange: defaultRangeForOp(op.typ), Modular: op.typ.IsRotate()})
			if err != nil {
				return err
			}
			if err := h.SetTarget(Current1f(value, velocity)); err != nil {
				h.Release()
				return err
			}
			op.spline = h
		}
	}

	switch newInit.Kind {
	case DriverConstant:
		if op.spline.Valid() {
			value := op.spline.Value()
			velocity := op.spline.Velocity()
			collapsed := floatsClose(value, newInit.Const, matrixBlendEpsilon) && floatsClose(velocity, 0, matrixBlendEpsilon)
			if collapsed || playback.BlendInDuration <= 0 {
				op.spline.Release()
				op.value = newInit.Const
				return nil
			}
			target, err := Target1fAt(newInit.Const, 0, playback.BlendInDuration, DirectionDirect)
			if err != nil {
				return err
			}
			return op.spline.SetTarget(target)
		}
		// Constant to constant: still a blend, not a snap, when a blend
		// duration was requested and the values actually differ.
		if playback.BlendInDuration <= 0 || floatsClose(op.value, newInit.Const, matrixBlendEpsilon) {
			op.value = newInit.Const
			return nil
		}
		if err := op.ensureSpline(eng); err != nil {
			return err
		}
		target, err := Target1fAt(newInit.Const, 0, playback.BlendInDuration, DirectionDirect)
		if err != nil {
			return err
		}
		return op.spline.SetTarget(target)

	case DriverTarget:
		if err := op.ensureSpline(eng); err != nil {
			return err
		}
		return op.spline.SetTarget(newInit.Target)

	case DriverCurve:
		if err := op.ensureSpline(eng); err != nil {
			return err
		}
		return op.spline.SetSpline(newInit.Curve, playback)
	}
	return nil
}

// blendToDefault blends the operation back toward its type's identity value
// over blendDuration, used when an existing op has no counterpart in the new
// animation.
func (op *matrixOperation) blendToDefault(eng *Engine, blendDuration Time) error {
	return op.blendTo(eng, ConstOp(op.id, op.typ, op.typ.DefaultValue()), Playback{BlendInDuration: blendDuration, PlaybackRate: 1})
}
