// Package gpuexport flattens a Rig's per-frame global bone transforms into
// the GPU buffer layout a skeletal-animation compute shader expects, so a
// host built on github.com/cogentcore/webgpu (the library
// engine/renderer/animator/skeletal_animator_backend.go and gpu_types.go use
// for their own skeletal animator backend) can upload Motive's output
// without writing its own packing code.
//
// The core engine stays renderer-agnostic — it does not own or render
// meshes — so this package is an optional, separately importable adapter
// and is never referenced from package motive.
package gpuexport

import (
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/motive-go/internal/mat4"
	"github.com/Carmen-Shannon/motive-go/motive"
)

// GPUBoneInfo is the GPU-aligned representation of a single bone's current
// global transform, parent index, and decomposed TRS, matching the
// reference GPUBoneInfo layout (112 bytes, std430-aligned) field-for-field
// so a host already wired to that struct can reuse its shader bindings
// unchanged.
type GPUBoneInfo struct {
	GlobalMatrix     [16]float32 // offset 0, size 64 (mat4x4<f32>)
	LocalTranslation [3]float32  // offset 64, size 12 (vec3<f32>)
	ParentIndex      int32       // offset 76, size 4 (fills vec3 gap)
	LocalScale       [3]float32  // offset 80, size 12 (vec3<f32>)
	_padScale        float32     // offset 92, size 4 (align vec4 to 16)
	LocalRotation    [4]float32  // offset 96, size 16 (vec4<f32>, quaternion x,y,z,w)
}

// Size returns the size in bytes of one GPUBoneInfo.
func (b *GPUBoneInfo) Size() int { return 112 }

// Marshal serializes b into a 112-byte buffer ready for
// wgpu.Queue.WriteBuffer, by reinterpreting b's own memory rather than
// packing it field-by-field: every field is a 4-byte-aligned float32 or
// int32, so the struct already has the packed std430 layout its doc comment
// promises, and mat4.SliceToBytes's zero-copy unsafe.Slice reinterpretation
// applies directly.
func (b *GPUBoneInfo) Marshal() []byte {
	return mat4.SliceToBytes([]GPUBoneInfo{*b})
}

// RigSource is the subset of motive.RigHandle this package depends on, so
// callers can pack from a *motive.RigHandle directly without this package
// importing anything beyond the read-only accessors it needs.
type RigSource interface {
	NumBones() int
	Global(bone int) [16]float32
}

// PackBoneMatrices flattens every bone's current global transform (plus the
// decomposed translation/rotation/scale a compute shader also consumes)
// into one []GPUBoneInfo, ordered by bone index. boneParents must
// be the same bone-parent array the rig was constructed with (ParentIndex
// is informational only; Motive has already applied parenting into
// GlobalMatrix).
func PackBoneMatrices(rig RigSource, boneParents []int) []GPUBoneInfo {
	n := rig.NumBones()
	out := make([]GPUBoneInfo, n)
	for b := 0; b < n; b++ {
		m := rig.Global(b)
		parent := int32(motive.InvalidBone)
		if b < len(boneParents) {
			parent = int32(boneParents[b])
		}
		trans, rot, scale := decomposeTRS(m)
		out[b] = GPUBoneInfo{
			GlobalMatrix:     m,
			LocalTranslation: trans,
			ParentIndex:      parent,
			LocalScale:       scale,
			LocalRotation:    rot,
		}
	}
	return out
}

// MarshalBoneMatrices packs rig's bone matrices and serializes the whole
// slice in one mat4.SliceToBytes call, suitable for a single
// wgpu.Queue.WriteBuffer call.
func MarshalBoneMatrices(rig RigSource, boneParents []int) []byte {
	infos := PackBoneMatrices(rig, boneParents)
	return mat4.SliceToBytes(infos)
}

// decomposeTRS recovers translation, a unit quaternion (x,y,z,w), and scale
// from a column-major 4x4, mirroring matrixComposerData's own decompose
// logic so a renderer sees the same TRS Motive computed internally.
func decomposeTRS(m [16]float32) (trans [3]float32, quat [4]float32, scale [3]float32) {
	trans = [3]float32{m[12], m[13], m[14]}

	c0 := [3]float32{m[0], m[1], m[2]}
	c1 := [3]float32{m[4], m[5], m[6]}
	c2 := [3]float32{m[8], m[9], m[10]}

	sx := vecLen(c0)
	sy := vecLen(c1)
	sz := vecLen(c2)
	scale = [3]float32{sx, sy, sz}

	if sx > 0 {
		c0 = [3]float32{c0[0] / sx, c0[1] / sx, c0[2] / sx}
	}
	if sy > 0 {
		c1 = [3]float32{c1[0] / sy, c1[1] / sy, c1[2] / sy}
	}
	if sz > 0 {
		c2 = [3]float32{c2[0] / sz, c2[1] / sz, c2[2] / sz}
	}

	trace := c0[0] + c1[1] + c2[2]
	switch {
	case trace > 0:
		s := float32(math.Sqrt(float64(trace+1))) * 2
		quat = [4]float32{(c1[2] - c2[1]) / s, (c2[0] - c0[2]) / s, (c0[1] - c1[0]) / s, 0.25 * s}
	case c0[0] > c1[1] && c0[0] > c2[2]:
		s := float32(math.Sqrt(float64(1+c0[0]-c1[1]-c2[2]))) * 2
		quat = [4]float32{0.25 * s, (c1[0] + c0[1]) / s, (c2[0] + c0[2]) / s, (c1[2] - c2[1]) / s}
	case c1[1] > c2[2]:
		s := float32(math.Sqrt(float64(1+c1[1]-c0[0]-c2[2]))) * 2
		quat = [4]float32{(c1[0] + c0[1]) / s, 0.25 * s, (c2[1] + c1[2]) / s, (c2[0] - c0[2]) / s}
	default:
		s := float32(math.Sqrt(float64(1+c2[2]-c0[0]-c1[1]))) * 2
		quat = [4]float32{(c2[0] + c0[2]) / s, (c2[1] + c1[2]) / s, 0.25 * s, (c0[1] - c1[0]) / s}
	}
	return
}

func vecLen(v [3]float32) float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

// WriteBoneBuffer packs rig's current bone matrices and uploads them to buf
// at byteOffset in a single call, the same queue.WriteBuffer(buf, offset,
// data) shape a wgpu-based renderer backend uses for its own per-frame
// vertex and uniform uploads.
func WriteBoneBuffer(queue *wgpu.Queue, buf *wgpu.Buffer, byteOffset uint64, rig RigSource, boneParents []int) {
	queue.WriteBuffer(buf, byteOffset, MarshalBoneMatrices(rig, boneParents))
}
