package motive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRotateTranslateMatrix checks a two-op composer against the
// hand-computed product Ry(pi/3) * Tz(1).
func TestRotateTranslateMatrix(t *testing.T) {
	eng := NewEngine()
	h, err := NewMatrixHandle(eng, []MatrixOpInit{
		ConstOp(0, RotateAboutY, float32(math.Pi)/3),
		ConstOp(1, TranslateZ, 1.0),
	})
	require.NoError(t, err)

	eng.Advance(1)

	cos, sin := float32(0.5), float32(math.Sqrt(3))/2
	expected := [16]float32{
		cos, 0, -sin, 0,
		0, 1, 0, 0,
		sin, 0, cos, 0,
		sin, 0, cos, 1,
	}

	got := h.Value()
	for i := range expected {
		require.InDeltaf(t, expected[i], got[i], 1e-3, "element %d", i)
	}
}

// TestMatrixBlendConstantCollapse verifies that blending a spline-driven op
// that has already settled near a new constant collapses immediately rather
// than spawning a near-zero-length spline (matrix_op.h's epsilon rule).
func TestMatrixBlendConstantCollapse(t *testing.T) {
	eng := NewEngine()
	h, err := NewMatrixHandle(eng, []MatrixOpInit{ConstOp(0, TranslateX, 2.0)})
	require.NoError(t, err)

	target, err := NewTarget1f(Node1f{Value: 2.0 + matrixBlendEpsilon/2, Velocity: 0, Time: 1})
	require.NoError(t, err)
	require.NoError(t, h.SetChildTarget(0, target))
	eng.Advance(1)

	require.NoError(t, h.BlendToOps([]MatrixOpInit{ConstOp(0, TranslateX, 2.0)}, Playback{PlaybackRate: 1, BlendInDuration: 5}))
	require.Equal(t, Time(0), h.TimeRemaining())
}

// TestMatrixBlendToDefault verifies an op with no counterpart in the new
// animation decays toward its type's default (0 for translate).
func TestMatrixBlendToDefault(t *testing.T) {
	eng := NewEngine()
	h, err := NewMatrixHandle(eng, []MatrixOpInit{ConstOp(0, TranslateX, 5.0)})
	require.NoError(t, err)

	require.NoError(t, h.BlendToOps(nil, Playback{PlaybackRate: 1, BlendInDuration: 0}))
	eng.Advance(1)
	require.InDelta(t, 0, h.ChildValue(0), 1e-6)
}

// TestMatrixInsertionRejectedOnRotationComposer verifies the rule
// that rotation-style composers refuse to insert an unmatched new op id.
func TestMatrixInsertionRejectedOnRotationComposer(t *testing.T) {
	eng := NewEngine()
	h, err := NewMatrixHandle(eng, []MatrixOpInit{ConstOp(0, TranslateX, 1)})
	require.NoError(t, err)

	err = h.BlendToOps([]MatrixOpInit{ConstOp(0, TranslateX, 1), ConstOp(1, TranslateY, 2)}, DefaultPlayback())
	require.Error(t, err)
}

// TestSplineRefDriverReadsCallerOwnedHandle verifies an op bound to a
// caller-owned spline handle tracks that handle's value without taking
// ownership: blending the op away, or releasing the composer, leaves the
// borrowed handle alive and untouched.
func TestSplineRefDriverReadsCallerOwnedHandle(t *testing.T) {
	eng := NewEngine()
	driver, err := NewSplineHandle(eng, SplineInit{YRange: Range{Start: -1e6, End: 1e6}})
	require.NoError(t, err)
	require.NoError(t, driver.SetTarget(Current1f(4, 0)))

	h, err := NewMatrixHandle(eng, []MatrixOpInit{SplineOp(0, TranslateX, &driver)})
	require.NoError(t, err)

	eng.Advance(1)
	require.InDelta(t, 4, h.ChildValue(0), 1e-6)
	require.InDelta(t, 4, h.Value()[12], 1e-6)

	// The composer tracks the handle's motion frame to frame.
	target, err := NewTarget1f(Node1f{Value: 6, Time: 1})
	require.NoError(t, err)
	require.NoError(t, driver.SetTarget(target))
	eng.Advance(1)
	require.InDelta(t, 6, h.ChildValue(0), 1e-3)

	// Blending away from the reference never retargets or releases it.
	require.NoError(t, h.BlendToOps([]MatrixOpInit{ConstOp(0, TranslateX, 0)}, Playback{PlaybackRate: 1, BlendInDuration: 0}))
	require.True(t, driver.Valid())
	require.InDelta(t, 6, driver.Value(), 1e-3)
	eng.Advance(1)
	require.InDelta(t, 0, h.ChildValue(0), 1e-6)

	h.Release()
	require.True(t, driver.Valid(), "composer release must not free a borrowed handle")
}

// TestComposerRejectsMixedStyles verifies a composer is rotation-style or
// SQT-style, never both: quaternion ops are refused by NewMatrixHandle and
// rotate ops by NewSQTHandle, at construction time.
func TestComposerRejectsMixedStyles(t *testing.T) {
	eng := NewEngine()

	_, err := NewMatrixHandle(eng, []MatrixOpInit{ConstOp(0, QuaternionW, 1)})
	require.Error(t, err)

	_, err = NewSQTHandle(eng, []MatrixOpInit{ConstOp(0, RotateAboutX, 0)})
	require.Error(t, err)
}

// TestComposerRejectsOutOfOrderIDs verifies the op-id ordering invariant is
// enforced at construction, not just during blends.
func TestComposerRejectsOutOfOrderIDs(t *testing.T) {
	eng := NewEngine()
	_, err := NewMatrixHandle(eng, []MatrixOpInit{
		ConstOp(2, TranslateX, 1),
		ConstOp(1, TranslateY, 1),
	})
	require.Error(t, err)
}

// TestConstantToConstantBlendIsSmooth verifies a constant-driven op blends
// toward a new constant over the requested duration rather than snapping.
func TestConstantToConstantBlendIsSmooth(t *testing.T) {
	eng := NewEngine()
	h, err := NewMatrixHandle(eng, []MatrixOpInit{ConstOp(0, TranslateX, 0)})
	require.NoError(t, err)

	require.NoError(t, h.BlendToOps([]MatrixOpInit{ConstOp(0, TranslateX, 10)}, Playback{PlaybackRate: 1, BlendInDuration: 2}))

	eng.Advance(1)
	require.InDelta(t, 5, h.ChildValue(0), 1e-3, "halfway through the blend")

	eng.Advance(1)
	require.InDelta(t, 10, h.ChildValue(0), 1e-3, "blend complete")
}

// TestSQTHemisphereAlignment verifies the pre-blend quaternion hemisphere
// check: a new animation whose first-sample quaternion dots negative against
// the current one has every quaternion component negated so the blend takes
// the short arc.
func TestSQTHemisphereAlignment(t *testing.T) {
	eng := NewEngine()
	h, err := NewSQTHandle(eng, []MatrixOpInit{ConstOp(3, QuaternionW, 1)})
	require.NoError(t, err)

	require.NoError(t, h.BlendToOps([]MatrixOpInit{ConstOp(3, QuaternionW, -0.9)}, Playback{PlaybackRate: 1}))
	require.InDelta(t, 0.9, h.ChildValue(3), 1e-6)
}

// TestSQTInsertionAllowed verifies SQT composers, unlike rotation-style
// ones, may insert a new operation id during blend.
func TestSQTInsertionAllowed(t *testing.T) {
	eng := NewEngine()
	h, err := NewSQTHandle(eng, []MatrixOpInit{ConstOp(0, TranslateX, 1)})
	require.NoError(t, err)

	err = h.BlendToOps([]MatrixOpInit{ConstOp(0, TranslateX, 1), ConstOp(1, ScaleUniform, 2)}, Playback{PlaybackRate: 1, BlendInDuration: 0})
	require.NoError(t, err)
	eng.Advance(1)
	require.InDelta(t, 2, h.ChildValue(1), 1e-6)
}
