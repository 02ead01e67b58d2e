package gpuexport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/motive-go/motive"
)

type fakeRig struct {
	globals [][16]float32
}

func (r *fakeRig) NumBones() int               { return len(r.globals) }
func (r *fakeRig) Global(bone int) [16]float32 { return r.globals[bone] }

func identity() [16]float32 {
	var m [16]float32
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

func translate(x, y, z float32) [16]float32 {
	m := identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

func TestPackBoneMatricesRoundTripsTranslation(t *testing.T) {
	rig := &fakeRig{globals: [][16]float32{translate(1, 2, 3), translate(4, 5, 6)}}
	infos := PackBoneMatrices(rig, []int{motive.InvalidBone, 0})

	require.Len(t, infos, 2)
	require.InDelta(t, 1, infos[0].LocalTranslation[0], 1e-5)
	require.InDelta(t, 2, infos[0].LocalTranslation[1], 1e-5)
	require.InDelta(t, 3, infos[0].LocalTranslation[2], 1e-5)
	require.Equal(t, int32(motive.InvalidBone), infos[0].ParentIndex)
	require.Equal(t, int32(0), infos[1].ParentIndex)

	// A pure translation has identity rotation and unit scale.
	require.InDelta(t, 1, infos[0].LocalRotation[3], 1e-5, "w component of identity quaternion")
	require.InDelta(t, 1, infos[0].LocalScale[0], 1e-5)
}

func TestGPUBoneInfoMarshalProducesExpectedLength(t *testing.T) {
	info := GPUBoneInfo{GlobalMatrix: identity(), LocalScale: [3]float32{1, 1, 1}, LocalRotation: [4]float32{0, 0, 0, 1}}
	buf := info.Marshal()
	require.Len(t, buf, 112)
}

func TestMarshalBoneMatricesConcatenatesAllBones(t *testing.T) {
	rig := &fakeRig{globals: [][16]float32{identity(), identity(), identity()}}
	buf := MarshalBoneMatrices(rig, []int{motive.InvalidBone, 0, 1})
	require.Len(t, buf, 3*112)
}
