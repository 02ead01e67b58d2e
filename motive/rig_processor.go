package motive

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/motive-go/internal/mat4"
	"github.com/Carmen-Shannon/motive-go/motive/internal/indexpool"
	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// InvalidBone is the root-parent / no-root-motion-bone sentinel.
const InvalidBone = -1

// Animation is the borrowed, caller-owned source of matrix-op lists played by
// a rig: one op list per bone, plus the duration of the clip and the bone
// hierarchy it was authored against (checked at bind time). A rig's defining
// animation is the union of every operation the rig can ever play; any
// animation subsequently bound must agree with the rig's hierarchy, with the
// single-bone exception below.
type Animation struct {
	Duration    Time
	BoneParents []int
	Bones       [][]MatrixOpInit
}

// OpsForBone returns the op list for bone b, or nil if the animation doesn't
// drive that bone (it decays to its defaults).
func (a *Animation) OpsForBone(b int) []MatrixOpInit {
	if b < 0 || b >= len(a.Bones) {
		return nil
	}
	return a.Bones[b]
}

func (a *Animation) numBones() int { return len(a.BoneParents) }

// compatibleHierarchy reports whether anim can drive a rig with the given
// bone-parent array: either an exact element-wise match, or anim has exactly
// one bone (it only ever animates the root).
func compatibleHierarchy(rigParents, animParents []int) bool {
	if len(animParents) == 1 {
		return true
	}
	if len(animParents) != len(rigParents) {
		return false
	}
	for i := range rigParents {
		if rigParents[i] != animParents[i] {
			return false
		}
	}
	return true
}

// RigInit configures a new rig: its defining animation (initial per-bone ops
// are read from it), the bone-parent hierarchy (its length is the rig's bone
// count; parent[i] < i; InvalidBone marks a root), an optional root-motion bone,
// and whether each bone's composer is SQT-style (translate/quat/scale) or
// rotation-style (rotate/translate/scale). A rig's composer style is fixed
// at construction; every animation bound to it must use ops that style
// supports.
type RigInit struct {
	DefiningAnimation *Animation
	BoneParents       []int
	RootMotionBone    int
	SQT               bool
}

type rigData struct {
	definingAnim   *Animation
	boneParents    []int
	rootMotionBone int
	numBones       int
	numAnims       int
	useSQT         bool
	composers      []matrixComposerData
	weights        []float32
	globals        [][16]float32
	rootLocal      [16]float32
	startTime      Time
	endTime        Time
}

func (d *rigData) reset() {
	for i := range d.composers {
		d.composers[i].reset()
	}
	*d = rigData{}
}

func (d *rigData) initialize(init RigInit) {
	d.definingAnim = init.DefiningAnimation
	d.boneParents = append([]int(nil), init.BoneParents...)
	d.rootMotionBone = init.RootMotionBone
	d.numBones = len(init.BoneParents)
	d.useSQT = init.SQT
	d.numAnims = 1
	d.weights = []float32{1}
	d.composers = make([]matrixComposerData, d.numBones)
	for b := 0; b < d.numBones; b++ {
		d.composers[b].initialize(d.useSQT, init.DefiningAnimation.OpsForBone(b))
	}
	d.globals = make([][16]float32, d.numBones)
	mat4.Identity(d.rootLocal[:])
}

func (d *rigData) bone(anim, b int) *matrixComposerData {
	return &d.composers[anim*d.numBones+b]
}

// blendToAnim implements the single-animation blend: shrink to one
// concurrent animation, blend every bone's composer
// toward anim's ops for that bone (bones past anim's bone count decay to
// defaults), and set the clip's end time.
func (d *rigData) blendToAnim(eng *Engine, anim *Animation, playback Playback) error {
	if !compatibleHierarchy(d.boneParents, anim.BoneParents) {
		return fmt.Errorf("blendToAnim: %w", motiveerr.ErrHierarchyMismatch)
	}

	if d.numAnims != 1 {
		// Animation 0's composers carry forward; the rest release their
		// spline slots before being dropped.
		for i := d.numBones; i < len(d.composers); i++ {
			d.composers[i].reset()
		}
		d.composers = append([]matrixComposerData(nil), d.composers[:d.numBones]...)
		d.numAnims = 1
	}
	d.weights = []float32{1}

	for b := 0; b < d.numBones; b++ {
		if err := d.composers[b].blendToOps(eng, anim.OpsForBone(b), playback); err != nil {
			return fmt.Errorf("blendToAnim(bone=%d): %w", b, err)
		}
	}

	d.startTime = playback.StartTime
	d.endTime = playback.StartTime + anim.Duration
	return nil
}

// blendToAnims implements the cross-fade blend: normalizes weights, grows
// the composer array to numBones*len(anims), seeding new slots either by
// cloning the single previous composer set (if the rig was single-animation)
// or from the defining animation's default ops, then blends every
// (animation, bone) pair toward its new ops.
func (d *rigData) blendToAnims(eng *Engine, anims []*Animation, playbacks []Playback, weights []float32) error {
	if len(anims) != len(playbacks) || len(anims) != len(weights) || len(anims) == 0 {
		return fmt.Errorf("blendToAnims: anims/playbacks/weights length mismatch")
	}
	var total float32
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("blendToAnims: %w", motiveerr.ErrInvalidWeights)
	}
	normalized := make([]float32, len(weights))
	for i, w := range weights {
		normalized[i] = w / total
	}

	for _, anim := range anims {
		if !compatibleHierarchy(d.boneParents, anim.BoneParents) {
			return fmt.Errorf("blendToAnims: %w", motiveerr.ErrHierarchyMismatch)
		}
	}

	// Composers up to the smaller of the old and new animation counts carry
	// forward in place. Slots extending past the previous count are seeded
	// with independent deep clones of the single previous composer set (so
	// each animation's splines advance separately) when the rig was
	// single-animation, or from the defining animation's default ops
	// otherwise. Dropped composers release their spline slots.
	keep := d.numAnims
	if keep > len(anims) {
		keep = len(anims)
	}
	newComposers := make([]matrixComposerData, d.numBones*len(anims))
	copy(newComposers[:keep*d.numBones], d.composers[:keep*d.numBones])
	for i := keep * d.numBones; i < len(d.composers); i++ {
		d.composers[i].reset()
	}
	for a := keep; a < len(anims); a++ {
		for b := 0; b < d.numBones; b++ {
			var nc matrixComposerData
			if d.numAnims == 1 {
				var err error
				nc, err = d.composers[b].clone(eng)
				if err != nil {
					return fmt.Errorf("blendToAnims(anim=%d,bone=%d): %w", a, b, err)
				}
			} else {
				nc.initialize(d.useSQT, d.definingAnim.OpsForBone(b))
			}
			newComposers[a*d.numBones+b] = nc
		}
	}
	d.composers = newComposers
	d.numAnims = len(anims)
	d.weights = normalized

	var maxEnd Time
	for a, anim := range anims {
		for b := 0; b < d.numBones; b++ {
			if err := d.bone(a, b).blendToOps(eng, anim.OpsForBone(b), playbacks[a]); err != nil {
				return fmt.Errorf("blendToAnims(anim=%d,bone=%d): %w", a, b, err)
			}
		}
		end := playbacks[a].StartTime + anim.Duration
		if end > maxEnd {
			maxEnd = end
		}
	}
	d.startTime = playbacks[0].StartTime
	d.endTime = maxEnd
	return nil
}

// advance recomputes every composer's cached matrix/TRS and then walks the
// hierarchy once in ascending bone order (safe: parent[b] < b always),
// multiplying parent global by child local. In the multi-animation case,
// each bone's local transform is a weighted blend across concurrently
// playing animations: translation and scale average linearly; quaternions
// are aligned to the first animation's hemisphere (same rule as an SQT
// blend) before averaging, then renormalized.
func (d *rigData) advance() {
	for i := range d.composers {
		d.composers[i].update()
	}

	for b := 0; b < d.numBones; b++ {
		var local [16]float32
		if d.numAnims == 1 {
			local = d.bone(0, b).value
		} else {
			local = d.blendedLocal(b)
		}

		if b == d.rootMotionBone {
			d.rootLocal = local
			mat4.Identity(local[:])
		}

		if d.boneParents[b] == InvalidBone {
			d.globals[b] = local
		} else {
			d.globals[b] = mulMat4(d.globals[d.boneParents[b]], local)
		}
	}
}

func (d *rigData) blendedLocal(b int) [16]float32 {
	var trans, scale [3]float32
	var refQuat [4]float32
	var quatSum [4]float32
	haveRef := false

	for a := 0; a < d.numAnims; a++ {
		c := d.bone(a, b)
		w := d.weights[a]
		trans[0] += c.trans[0] * w
		trans[1] += c.trans[1] * w
		trans[2] += c.trans[2] * w
		scale[0] += c.scale[0] * w
		scale[1] += c.scale[1] * w
		scale[2] += c.scale[2] * w

		q := c.quat
		if !haveRef {
			refQuat = q
			haveRef = true
		} else if dotQuat(q, refQuat) < 0 {
			q = [4]float32{-q[0], -q[1], -q[2], -q[3]}
		}
		quatSum[0] += q[0] * w
		quatSum[1] += q[1] * w
		quatSum[2] += q[2] * w
		quatSum[3] += q[3] * w
	}

	return composeTRS(trans, normalizeQuat(quatSum), scale)
}

func dotQuat(a, b [4]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
}

func normalizeQuat(q [4]float32) [4]float32 {
	n := float32(math.Sqrt(float64(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])))
	if n <= 0 {
		return [4]float32{0, 0, 0, 1}
	}
	return [4]float32{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

func mulMat4(a, b [16]float32) [16]float32 {
	var out [16]float32
	mat4.Mul4(out[:], a[:], b[:])
	return out
}

func (d *rigData) timeRemaining() Time {
	var max Time
	for i := range d.composers {
		if r := d.composers[i].timeRemaining(); r > max {
			max = r
		}
	}
	return max
}

// debugCSVHeader lists one column per (bone, op) pair of the single active
// animation, in the form "bone<N>.op<ID>".
func (d *rigData) debugCSVHeader() string {
	var sb strings.Builder
	first := true
	for b := 0; b < d.numBones; b++ {
		for _, op := range d.bone(0, b).ops {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			sb.WriteString("bone")
			sb.WriteString(strconv.Itoa(b))
			sb.WriteString(".op")
			sb.WriteString(strconv.Itoa(int(op.id)))
		}
	}
	return sb.String()
}

// debugCSVRow lists each (bone, op)'s current value, converting rotate ops
// to degrees for readability.
func (d *rigData) debugCSVRow() string {
	var sb strings.Builder
	first := true
	for b := 0; b < d.numBones; b++ {
		for i := range d.bone(0, b).ops {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			op := &d.bone(0, b).ops[i]
			v := op.currentValue()
			if op.typ.IsRotate() {
				v = v * 180 / float32(math.Pi)
			}
			sb.WriteString(strconv.FormatFloat(float64(v), 'f', 4, 32))
		}
	}
	return sb.String()
}

// rigProcessor is the priority-3 processor. Unlike the other processors it
// doesn't route bone composers through the standalone matrixProcessor: a
// rig's composer array is entirely its own (struct-of-arrays over bones and
// concurrent animations), so it embeds matrixComposerData
// values directly rather than allocating MatrixHandles.
type rigProcessor struct {
	eng     *Engine
	ranges  *indexpool.Allocator
	slots   []rigData
	backptr []*int
}

var _ Processor = (*rigProcessor)(nil)

func newRigProcessor(eng *Engine) Processor {
	p := &rigProcessor{eng: eng}
	p.ranges = indexpool.New(p.onResize, p.onMove)
	return p
}

func (p *rigProcessor) Type() MotivatorType { return TypeRig }
func (p *rigProcessor) Priority() int       { return 3 }

func (p *rigProcessor) onResize(n int) {
	for len(p.slots) < n {
		p.slots = append(p.slots, rigData{})
	}
	for len(p.backptr) < n {
		p.backptr = append(p.backptr, nil)
	}
}

func (p *rigProcessor) onMove(src indexpool.Range, target int) {
	for i := 0; i < src.Count; i++ {
		from, to := src.First+i, target+i
		p.slots[to] = p.slots[from]
		p.backptr[to] = p.backptr[from]
		if p.backptr[to] != nil {
			*p.backptr[to] = to
		}
		p.backptr[from] = nil
		p.slots[from] = rigData{}
	}
}

func (p *rigProcessor) Advance(dt Time) {
	p.ranges.Defragment()
	n := p.ranges.NumActiveSlots()
	for i := 0; i < n; i++ {
		p.slots[i].advance()
	}
}

func (p *rigProcessor) resetAll() {
	p.slots = nil
	p.backptr = nil
	p.ranges = indexpool.New(p.onResize, p.onMove)
}

func (p *rigProcessor) ValidIndex(first int) bool { return p.ranges.ValidIndex(first) }

func (p *rigProcessor) allocate(init RigInit) (int, error) {
	if init.DefiningAnimation == nil {
		return 0, fmt.Errorf("rig: defining animation is required")
	}
	for i, parent := range init.BoneParents {
		if parent != InvalidBone && (parent < 0 || parent >= i) {
			return 0, fmt.Errorf("rig: bone %d parent %d must be a lower bone index or InvalidBone: %w", i, parent, motiveerr.ErrIndexOutOfRange)
		}
	}
	if init.RootMotionBone != InvalidBone && (init.RootMotionBone < 0 || init.RootMotionBone >= len(init.BoneParents)) {
		return 0, fmt.Errorf("rig: root-motion bone %d: %w", init.RootMotionBone, motiveerr.ErrIndexOutOfRange)
	}
	if !compatibleHierarchy(init.BoneParents, init.DefiningAnimation.BoneParents) {
		return 0, fmt.Errorf("rig: defining animation: %w", motiveerr.ErrHierarchyMismatch)
	}
	for b := 0; b < len(init.BoneParents); b++ {
		if err := validateOps(init.SQT, init.DefiningAnimation.OpsForBone(b)); err != nil {
			return 0, fmt.Errorf("rig: defining animation bone %d: %w", b, err)
		}
	}
	first, err := p.ranges.Alloc(1)
	if err != nil {
		return 0, err
	}
	p.slots[first] = rigData{}
	p.slots[first].initialize(init)
	return first, nil
}

func (p *rigProcessor) bindCell(first int, cell *int) { p.backptr[first] = cell }

func (p *rigProcessor) free(first int) {
	p.slots[first].reset()
	p.backptr[first] = nil
	p.ranges.Free(first)
}

func (p *rigProcessor) data(index int) *rigData { return &p.slots[index] }
