package motive

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRigSingleAnimationTraversal checks the hierarchy traversal: each
// bone's global translation accumulates its ancestors' locals.
func TestRigSingleAnimationTraversal(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone, 0, 1}
	anim := &Animation{
		Duration:    1,
		BoneParents: boneParents,
		Bones: [][]MatrixOpInit{
			{ConstOp(0, TranslateX, 1)},
			{ConstOp(0, TranslateX, 2)},
			{ConstOp(0, TranslateX, 3)},
		},
	}

	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)
	require.NoError(t, rig.BlendToAnim(anim, DefaultPlayback()))

	eng.Advance(1)

	expected := [][3]float32{{1, 0, 0}, {3, 0, 0}, {6, 0, 0}}
	for b, want := range expected {
		g := rig.Global(b)
		got := [3]float32{g[12], g[13], g[14]}
		for i := 0; i < 3; i++ {
			require.InDeltaf(t, want[i], got[i], 1e-4, "bone %d component %d", b, i)
		}
	}
}

// TestRigBlendTwoAnimationsEqualWeight checks that two equally-weighted
// animations average their bone transforms.
func TestRigBlendTwoAnimationsEqualWeight(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone}
	animA := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 10)}}}
	animB := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 20)}}}

	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: animA, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)

	require.NoError(t, rig.BlendToAnims(
		[]*Animation{animA, animB},
		[]Playback{DefaultPlayback(), DefaultPlayback()},
		[]float32{0.5, 0.5},
	))

	eng.Advance(1)

	g := rig.Global(0)
	require.InDelta(t, 15, g[12], 1e-3)
}

// TestRigBlendToAnimsClonesComposersIndependently verifies growing from one
// animation to two deep-clones the previous composer set: each animation's
// splines must advance independently, not share slots.
func TestRigBlendToAnimsClonesComposersIndependently(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone}
	animA := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 10)}}}
	animB := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 20)}}}
	animC := &Animation{Duration: 2, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 30)}}}

	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: animA, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)

	// Put the bone's op mid-blend so its driver is a live spline when the
	// rig grows to two animations.
	require.NoError(t, rig.BlendToAnim(animC, Playback{PlaybackRate: 1, BlendInDuration: 2}))
	eng.Advance(1)

	require.NoError(t, rig.BlendToAnims(
		[]*Animation{animA, animB},
		[]Playback{
			{PlaybackRate: 1, BlendInDuration: 1},
			{PlaybackRate: 1, BlendInDuration: 1},
		},
		[]float32{0.5, 0.5},
	))

	eng.Advance(1)

	g := rig.Global(0)
	require.InDelta(t, 15, g[12], 1e-2, "animation A must settle at 10 and B at 20; a shared spline slot would drag both to one target")
}

// TestRigBlendWeightsAreNormalized verifies weights that don't sum to 1 are
// normalized before blending.
func TestRigBlendWeightsAreNormalized(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone}
	animA := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 10)}}}
	animB := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 20)}}}

	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: animA, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)
	require.NoError(t, rig.BlendToAnims(
		[]*Animation{animA, animB},
		[]Playback{DefaultPlayback(), DefaultPlayback()},
		[]float32{1, 3},
	))

	eng.Advance(1)

	g := rig.Global(0)
	require.InDelta(t, 0.25*10+0.75*20, g[12], 1e-3)
}

// TestRigInitValidation verifies construction-time invariants: parent
// indices below their bone, a root-motion bone inside the hierarchy, and op
// styles matching the rig's composer style.
func TestRigInitValidation(t *testing.T) {
	eng := NewEngine()

	anim := &Animation{Duration: 1, BoneParents: []int{InvalidBone, 0}, Bones: [][]MatrixOpInit{{}, {}}}

	_, err := NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: []int{InvalidBone, 1}, RootMotionBone: InvalidBone})
	require.Error(t, err, "parent index must be lower than its bone index")

	_, err = NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: []int{InvalidBone, 0}, RootMotionBone: 5})
	require.Error(t, err, "root-motion bone must be a real bone")

	quatAnim := &Animation{
		Duration:    1,
		BoneParents: []int{InvalidBone},
		Bones:       [][]MatrixOpInit{{ConstOp(0, QuaternionW, 1)}},
	}
	_, err = NewRigHandle(eng, RigInit{DefiningAnimation: quatAnim, BoneParents: []int{InvalidBone}, RootMotionBone: InvalidBone})
	require.Error(t, err, "quaternion ops need an SQT rig")
	_, err = NewRigHandle(eng, RigInit{DefiningAnimation: quatAnim, BoneParents: []int{InvalidBone}, RootMotionBone: InvalidBone, SQT: true})
	require.NoError(t, err)
}

// TestRigDebugCSV verifies the offline debug surface: one header column per
// (bone, op), rotate values converted to degrees in the row.
func TestRigDebugCSV(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone, 0}
	anim := &Animation{
		Duration:    1,
		BoneParents: boneParents,
		Bones: [][]MatrixOpInit{
			{ConstOp(0, RotateAboutY, 0.5)},
			{ConstOp(1, TranslateX, 2)},
		},
	}
	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)
	eng.Advance(1)

	require.Equal(t, "bone0.op0,bone1.op1", rig.DebugCSVHeader())

	cols := strings.Split(rig.DebugCSVRow(), ",")
	require.Len(t, cols, 2)
	deg, err := strconv.ParseFloat(cols[0], 32)
	require.NoError(t, err)
	require.InDelta(t, 0.5*180/math.Pi, deg, 1e-3)
	tx, err := strconv.ParseFloat(cols[1], 32)
	require.NoError(t, err)
	require.InDelta(t, 2, tx, 1e-4)
}

// TestRigHierarchyMismatchRejected verifies the bind-time hierarchy
// check, with the single-bone special case allowed through.
func TestRigHierarchyMismatchRejected(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone, 0}
	anim := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 0)}, {}}}
	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)

	mismatched := &Animation{Duration: 1, BoneParents: []int{InvalidBone, InvalidBone}, Bones: [][]MatrixOpInit{{}, {}}}
	err = rig.BlendToAnim(mismatched, DefaultPlayback())
	require.Error(t, err)

	singleBone := &Animation{Duration: 1, BoneParents: []int{InvalidBone}, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 1)}}}
	require.NoError(t, rig.BlendToAnim(singleBone, DefaultPlayback()))
}

// TestRigRootMotionExtraction verifies the root-motion bone's local
// transform is split out verbatim and replaced with identity in the
// hierarchy.
func TestRigRootMotionExtraction(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone, 0}
	anim := &Animation{
		Duration:    1,
		BoneParents: boneParents,
		Bones: [][]MatrixOpInit{
			{ConstOp(0, TranslateX, 5)},
			{ConstOp(0, TranslateX, 1)},
		},
	}

	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: boneParents, RootMotionBone: 0})
	require.NoError(t, err)
	require.NoError(t, rig.BlendToAnim(anim, DefaultPlayback()))

	eng.Advance(1)

	root := rig.RootMotion()
	require.InDelta(t, 5, root[12], 1e-4)

	childGlobal := rig.Global(1)
	require.InDelta(t, 1, childGlobal[12], 1e-4, "child should inherit identity in place of the root-motion bone")
}

// TestRigInverseGlobalRoundTrips verifies InverseGlobal(b) composed back with
// Global(b) recovers identity, the same round trip engine/camera's own
// Invert4-derived inverse-projection matrix must satisfy against its source.
func TestRigInverseGlobalRoundTrips(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone, 0}
	anim := &Animation{
		Duration:    1,
		BoneParents: boneParents,
		Bones: [][]MatrixOpInit{
			{ConstOp(0, TranslateX, 4), ConstOp(1, RotateAboutY, 0.7)},
			{ConstOp(0, TranslateZ, -2), ConstOp(1, ScaleUniform, 2)},
		},
	}

	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)
	require.NoError(t, rig.BlendToAnim(anim, DefaultPlayback()))
	eng.Advance(1)

	for b := 0; b < 2; b++ {
		g := rig.Global(b)
		inv, ok := rig.InverseGlobal(b)
		require.True(t, ok, "bone %d global transform should be invertible", b)

		identity := mulMat4(g, inv)
		want := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
		for i := range want {
			require.InDeltaf(t, want[i], identity[i], 1e-3, "bone %d element %d", b, i)
		}
	}
}

func TestRigInvalidWeightsRejected(t *testing.T) {
	eng := NewEngine()
	boneParents := []int{InvalidBone}
	anim := &Animation{Duration: 1, BoneParents: boneParents, Bones: [][]MatrixOpInit{{ConstOp(0, TranslateX, 1)}}}
	rig, err := NewRigHandle(eng, RigInit{DefiningAnimation: anim, BoneParents: boneParents, RootMotionBone: InvalidBone})
	require.NoError(t, err)

	err = rig.BlendToAnims([]*Animation{anim}, []Playback{DefaultPlayback()}, []float32{0})
	require.Error(t, err)
}
