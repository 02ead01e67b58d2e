package motive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/motive-go/motive/motivecurve"
)

func newConstantCurve(t *testing.T, y float32) *motivecurve.CompactSpline {
	t.Helper()
	c, err := motivecurve.NewCompactSplineFromNodes(
		[]motivecurve.Node{{X: 0, Y: y}, {X: 10, Y: y}},
		motivecurve.Range{Start: -1e6, End: 1e6},
		false,
	)
	require.NoError(t, err)
	return c
}

// TestSplineHandleMoveTransfersOwnership verifies the move-only handle
// contract: after Move, the source is detached and the destination owns the
// slot exclusively.
func TestSplineHandleMoveTransfersOwnership(t *testing.T) {
	eng := NewEngine()
	h, err := NewSplineHandle(eng, SplineInit{YRange: Range{Start: -1e6, End: 1e6}})
	require.NoError(t, err)
	require.NoError(t, h.SetTarget(Current1f(4, 0)))

	moved := h.Move()

	require.False(t, h.Valid(), "source handle must be detached after Move")
	require.True(t, moved.Valid())
	require.InDelta(t, 4, moved.Value(), 1e-6)
}

// TestDetachedSplineHandleAccessorsAreSafe verifies the documented misuse
// policy: reading a detached handle returns the zero value rather than
// panicking or corrupting processor state.
func TestDetachedSplineHandleAccessorsAreSafe(t *testing.T) {
	var h SplineHandle
	require.False(t, h.Valid())
	require.Equal(t, float32(0), h.Value())
	require.Equal(t, float32(0), h.Velocity())
	require.Equal(t, 0, h.Dim())
	require.Error(t, h.SetSplineTime(1))
	require.Error(t, h.SetTarget(Current1f(1, 0)))
}

// TestReleaseFreesSlotForReuse verifies that a released handle's slot can
// be reallocated, and that the released handle itself stays detached.
func TestReleaseFreesSlotForReuse(t *testing.T) {
	eng := NewEngine()
	h1, err := NewSplineHandle(eng, SplineInit{YRange: Range{Start: -1e6, End: 1e6}})
	require.NoError(t, err)
	h1.Release()
	require.False(t, h1.Valid())

	h2, err := NewSplineHandle(eng, SplineInit{YRange: Range{Start: -1e6, End: 1e6}})
	require.NoError(t, err)
	require.True(t, h2.Valid())
}

// TestPackedHandleSetTargets drives a 3-wide packed handle, one target per
// component, and verifies a length mismatch refuses the whole call.
func TestPackedHandleSetTargets(t *testing.T) {
	eng := NewEngine()
	h, err := NewSplineHandleDim(eng, SplineInit{YRange: Range{Start: -1e6, End: 1e6}}, 3)
	require.NoError(t, err)
	require.Equal(t, 3, h.Dim())

	targets := []Target1f{Current1f(1, 0), Current1f(2, 0), Current1f(3, 0)}
	require.NoError(t, h.SetTargets(targets))
	for i := 0; i < 3; i++ {
		require.InDeltaf(t, float32(i+1), h.ValueAt(i), 1e-6, "component %d", i)
	}

	require.Error(t, h.SetTargets(targets[:2]), "target count must match Dim")
}

// TestPackedHandleSetSplines binds one curve per component of a packed
// handle under a shared playback descriptor.
func TestPackedHandleSetSplines(t *testing.T) {
	eng := NewEngine()
	h, err := NewSplineHandleDim(eng, SplineInit{YRange: Range{Start: -1e6, End: 1e6}}, 2)
	require.NoError(t, err)

	curves := []Curve{newConstantCurve(t, 5), newConstantCurve(t, 8)}
	require.NoError(t, h.SetSplines(curves, DefaultPlayback()))

	eng.Advance(1)
	require.InDelta(t, 5, h.ValueAt(0), 1e-6)
	require.InDelta(t, 8, h.ValueAt(1), 1e-6)

	require.Error(t, h.SetSplines(curves[:1], DefaultPlayback()))
}

// TestBackPointerBijectionUnderChurn exercises the live-slot invariant: after
// any sequence of creations, releases, and advances (which defragment), each
// live handle's index cell is exactly the processor's back-pointer for that
// index.
func TestBackPointerBijectionUnderChurn(t *testing.T) {
	eng := NewEngine()
	handles := make([]SplineHandle, 16)
	for i := range handles {
		h, err := NewSplineHandle(eng, SplineInit{YRange: Range{Start: -1e6, End: 1e6}})
		require.NoError(t, err)
		require.NoError(t, h.SetTarget(Current1f(float32(i), 0)))
		handles[i] = h
	}

	for i := 0; i < len(handles); i += 3 {
		handles[i].Release()
	}
	eng.Advance(1)

	for i := 4; i < 8; i++ {
		h, err := NewSplineHandle(eng, SplineInit{YRange: Range{Start: -1e6, End: 1e6}})
		require.NoError(t, err)
		require.NoError(t, h.SetTarget(Current1f(100+float32(i), 0)))
		handles = append(handles, h)
	}
	eng.Advance(1)

	sp, err := eng.splineProcessor()
	require.NoError(t, err)
	live := 0
	for i := range handles {
		if !handles[i].Valid() {
			continue
		}
		live++
		idx := *handles[i].cell
		require.Samef(t, handles[i].cell, sp.backptr[idx], "handle %d back-pointer", i)
	}
	require.Equal(t, live, sp.ranges.NumActiveSlots())

	// Survivors keep the values they were set to before the churn.
	for i := 1; i < 16; i++ {
		if i%3 == 0 {
			continue
		}
		require.InDeltaf(t, float32(i), handles[i].Value(), 1e-6, "handle %d value survived defragmentation", i)
	}
}

// TestMatrixHandleMoveTransfersOwnership mirrors the spline case for
// MatrixHandle.
func TestMatrixHandleMoveTransfersOwnership(t *testing.T) {
	eng := NewEngine()
	h, err := NewMatrixHandle(eng, []MatrixOpInit{ConstOp(0, TranslateX, 2)})
	require.NoError(t, err)

	moved := h.Move()
	require.False(t, h.Valid())
	require.True(t, moved.Valid())
	require.InDelta(t, 2, moved.ChildValue(0), 1e-6)
}

// TestRigHandleMoveTransfersOwnership mirrors the spline case for
// RigHandle.
func TestRigHandleMoveTransfersOwnership(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone}
	anim := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 1)}}}
	h, err := NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)

	moved := h.Move()
	require.False(t, h.Valid())
	require.True(t, moved.Valid())
	require.Equal(t, 1, moved.NumBones())
}
