package motive

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/motive-go/internal/mat4"
	"github.com/Carmen-Shannon/motive-go/motive/internal/indexpool"
	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// matrixComposerData is the live state of one matrix composer: an ordered
// list of operations (ordered by id; for a rotation-style composer the order
// also determines column-rotation order, since matrix composition is not
// commutative), plus the cached result.
type matrixComposerData struct {
	sqt   bool
	ops   []matrixOperation
	trans [3]float32
	quat  [4]float32 // x, y, z, w
	scale [3]float32
	value [16]float32
}

func (d *matrixComposerData) reset() {
	for i := range d.ops {
		d.ops[i].release()
	}
	d.ops = nil
	d.trans = [3]float32{}
	d.quat = [4]float32{0, 0, 0, 1}
	d.scale = [3]float32{1, 1, 1}
	mat4.Identity(d.value[:])
}

func (d *matrixComposerData) initialize(sqt bool, ops []MatrixOpInit) {
	d.sqt = sqt
	d.ops = make([]matrixOperation, len(ops))
	for i, o := range ops {
		d.ops[i] = newMatrixOperation(o)
	}
	d.update()
}

// update recomputes the cached result matrix (and, for consumers that want
// the decomposed form — principally the rig processor's multi-animation
// blend — the translation/quaternion/scale triple) from the composer's
// current operation values.
func (d *matrixComposerData) update() {
	if d.sqt {
		d.trans, d.quat, d.scale = gatherSQT(d.ops)
		d.value = composeTRS(d.trans, d.quat, d.scale)
		return
	}
	d.value = calculateResultMatrix(d.ops)
	d.trans, d.quat, d.scale = decomposeMatrix(d.value)
}

// clone returns a deep copy of the composer. Spline-driven ops get a fresh
// spline handle seeded from the source's current value and velocity, so the
// clone animates independently of the original; constant-driven ops copy
// their value. The cached matrix/TRS carries over as-is.
func (d *matrixComposerData) clone(eng *Engine) (matrixComposerData, error) {
	out := *d
	out.ops = make([]matrixOperation, len(d.ops))
	for i := range d.ops {
		src := &d.ops[i]
		// A borrowed spline reference is read-only, so clones may share it.
		op := matrixOperation{id: src.id, typ: src.typ, ref: src.ref, value: src.value}
		if src.spline.Valid() {
			h, err := NewSplineHandle(eng, SplineInit{YRange: defaultRangeForOp(src.typ), Modular: src.typ.IsRotate()})
			if err != nil {
				return matrixComposerData{}, err
			}
			if err := h.SetTarget(Current1f(src.spline.Value(), src.spline.Velocity())); err != nil {
				h.Release()
				return matrixComposerData{}, err
			}
			op.spline = h
			op.value = src.spline.Value()
		}
		out.ops[i] = op
	}
	return out, nil
}

func (d *matrixComposerData) timeRemaining() Time {
	var max Time
	for i := range d.ops {
		if r := d.ops[i].timeRemaining(); r > max {
			max = r
		}
	}
	return max
}

func (d *matrixComposerData) childValue(id uint8) (float32, bool) {
	for i := range d.ops {
		if d.ops[i].id == id {
			return d.ops[i].currentValue(), true
		}
	}
	return 0, false
}

func (d *matrixComposerData) setChildValue(id uint8, v float32) bool {
	for i := range d.ops {
		if d.ops[i].id == id {
			d.ops[i].setValue(v)
			return true
		}
	}
	return false
}

func (d *matrixComposerData) setChildTarget(eng *Engine, id uint8, t Target1f) error {
	for i := range d.ops {
		if d.ops[i].id == id {
			return d.ops[i].setTarget(eng, t)
		}
	}
	return fmt.Errorf("SetChildTarget(id=%d): %w", id, motiveerr.ErrIndexOutOfRange)
}

func (d *matrixComposerData) setPlaybackRate(rate float32) {
	for i := range d.ops {
		if d.ops[i].spline.Valid() {
			_ = d.ops[i].spline.SetPlaybackRate(rate)
		}
	}
}

// blendToOps merges newOps (ascending, unique ids) into the composer's
// existing ops, blending matched ids toward the new driver, blending
// unmatched existing ids back toward their default, and — SQT composers
// only — inserting unmatched new ids starting from their default.
// Rotation-style composers reject an insertion: their operations compose in
// a fixed, order-sensitive sequence, so silently appending one would change
// every later column's basis.
func (d *matrixComposerData) blendToOps(eng *Engine, newOps []MatrixOpInit, playback Playback) error {
	if err := validateOps(d.sqt, newOps); err != nil {
		return fmt.Errorf("blendToOps: %w", err)
	}
	for i := 1; i < len(newOps); i++ {
		if newOps[i].ID <= newOps[i-1].ID {
			return fmt.Errorf("blendToOps: op ids must be ascending and unique")
		}
	}

	if !d.sqt {
		existing := make(map[uint8]bool, len(d.ops))
		for i := range d.ops {
			existing[d.ops[i].id] = true
		}
		for _, no := range newOps {
			if !existing[no.ID] {
				return fmt.Errorf("blendToOps(id=%d): %w", no.ID, motiveerr.ErrOpInsertionUnsupported)
			}
		}
	} else {
		newOps = d.alignQuaternionHemisphere(newOps)
	}

	merged := make([]matrixOperation, 0, len(d.ops)+len(newOps))
	i, j := 0, 0
	for i < len(d.ops) || j < len(newOps) {
		switch {
		case i < len(d.ops) && (j >= len(newOps) || d.ops[i].id < newOps[j].ID):
			op := d.ops[i]
			if err := op.blendToDefault(eng, playback.BlendInDuration); err != nil {
				return err
			}
			merged = append(merged, op)
			i++
		case j < len(newOps) && (i >= len(d.ops) || newOps[j].ID < d.ops[i].id):
			no := newOps[j]
			op := newMatrixOperation(ConstOp(no.ID, no.Type, no.Type.DefaultValue()))
			if err := op.blendTo(eng, no, playback); err != nil {
				return err
			}
			merged = append(merged, op)
			j++
		default:
			op := d.ops[i]
			if err := op.blendTo(eng, newOps[j], playback); err != nil {
				return err
			}
			merged = append(merged, op)
			i++
			j++
		}
	}
	d.ops = merged
	return nil
}

// alignQuaternionHemisphere flips the sign of every quaternion component in
// newOps when the dot product between the composer's current quaternion and
// the new animation's first-sampled quaternion is negative, so the spline
// interpolates along the shorter arc instead of visibly snapping. Only
// constant- and target-driven quaternion ops can be flipped this way (an
// externally-owned curve's samples or spline handle's values aren't ours to
// rewrite); curve- and spline-reference-driven quaternion ops are left
// unaligned.
func (d *matrixComposerData) alignQuaternionHemisphere(newOps []MatrixOpInit) []MatrixOpInit {
	cur := d.quat
	next, ok := firstSampleQuat(newOps)
	if !ok {
		return newOps
	}
	dot := cur[0]*next[0] + cur[1]*next[1] + cur[2]*next[2] + cur[3]*next[3]
	if dot >= 0 {
		return newOps
	}
	out := make([]MatrixOpInit, len(newOps))
	copy(out, newOps)
	for i := range out {
		if out[i].Type.IsQuaternion() {
			out[i] = negateOpInit(out[i])
		}
	}
	return out
}

func negateOpInit(op MatrixOpInit) MatrixOpInit {
	switch op.Kind {
	case DriverConstant:
		op.Const = -op.Const
	case DriverTarget:
		for i := 0; i < op.Target.NumNodes(); i++ {
			n := op.Target.Node(i)
			n.Value = -n.Value
			n.Velocity = -n.Velocity
			op.Target.nodes[i] = n
		}
	}
	return op
}

func firstSampleQuat(ops []MatrixOpInit) ([4]float32, bool) {
	q := [4]float32{0, 0, 0, 1}
	found := false
	for _, op := range ops {
		if !op.Type.IsQuaternion() {
			continue
		}
		found = true
		var v float32
		switch op.Kind {
		case DriverConstant:
			v = op.Const
		case DriverSpline:
			if op.Spline != nil && op.Spline.Valid() {
				v = op.Spline.Value()
			}
		case DriverTarget:
			v = op.Target.Node(0).Value
		case DriverCurve:
			if op.Curve != nil {
				ys, _ := op.Curve.EvaluateRange(op.Curve.StartX(), 0, 1)
				v = ys[0]
			}
		}
		switch op.Type {
		case QuaternionX:
			q[0] = v
		case QuaternionY:
			q[1] = v
		case QuaternionZ:
			q[2] = v
		case QuaternionW:
			q[3] = v
		}
	}
	return q, found
}

// calculateResultMatrix composes a rotation-style matrix by walking the
// operation list in order and mutating three orthonormal basis columns plus
// a translation column, per matrix_processor.cpp's CalculateResultMatrix:
// rotate ops rotate a pair of columns about the implicit third axis,
// translate ops add a scaled column into the translation column, and scale
// ops scale a column (or all three, for uniform scale) in place.
func calculateResultMatrix(ops []matrixOperation) [16]float32 {
	c0 := [3]float32{1, 0, 0}
	c1 := [3]float32{0, 1, 0}
	c2 := [3]float32{0, 0, 1}
	c3 := [3]float32{0, 0, 0}

	for i := range ops {
		v := ops[i].currentValue()
		switch ops[i].typ {
		case RotateAboutX:
			rotateColumns(&c1, &c2, v)
		case RotateAboutY:
			rotateColumns(&c2, &c0, v)
		case RotateAboutZ:
			rotateColumns(&c0, &c1, v)
		case TranslateX:
			addScaled(&c3, c0, v)
		case TranslateY:
			addScaled(&c3, c1, v)
		case TranslateZ:
			addScaled(&c3, c2, v)
		case ScaleX:
			scaleVec(&c0, v)
		case ScaleY:
			scaleVec(&c1, v)
		case ScaleZ:
			scaleVec(&c2, v)
		case ScaleUniform:
			scaleVec(&c0, v)
			scaleVec(&c1, v)
			scaleVec(&c2, v)
		}
	}

	var out [16]float32
	out[0], out[1], out[2], out[3] = c0[0], c0[1], c0[2], 0
	out[4], out[5], out[6], out[7] = c1[0], c1[1], c1[2], 0
	out[8], out[9], out[10], out[11] = c2[0], c2[1], c2[2], 0
	out[12], out[13], out[14], out[15] = c3[0], c3[1], c3[2], 1
	return out
}

func rotateColumns(a, b *[3]float32, radians float32) {
	s, c := float32(math.Sin(float64(radians))), float32(math.Cos(float64(radians)))
	na := [3]float32{c*a[0] + s*b[0], c*a[1] + s*b[1], c*a[2] + s*b[2]}
	nb := [3]float32{c*b[0] - s*a[0], c*b[1] - s*a[1], c*b[2] - s*a[2]}
	*a, *b = na, nb
}

func addScaled(dst *[3]float32, v [3]float32, scale float32) {
	dst[0] += v[0] * scale
	dst[1] += v[1] * scale
	dst[2] += v[2] * scale
}

func scaleVec(v *[3]float32, scale float32) {
	v[0] *= scale
	v[1] *= scale
	v[2] *= scale
}

// gatherSQT reads an SQT composer's ops directly into translation,
// quaternion, and scale, skipping the matrix round-trip entirely: an SQT
// composer never has column-rotation ops, so there's nothing to decompose.
func gatherSQT(ops []matrixOperation) (trans [3]float32, quat [4]float32, scale [3]float32) {
	quat = [4]float32{0, 0, 0, 1}
	scale = [3]float32{1, 1, 1}
	for i := range ops {
		v := ops[i].currentValue()
		switch ops[i].typ {
		case TranslateX:
			trans[0] = v
		case TranslateY:
			trans[1] = v
		case TranslateZ:
			trans[2] = v
		case QuaternionX:
			quat[0] = v
		case QuaternionY:
			quat[1] = v
		case QuaternionZ:
			quat[2] = v
		case QuaternionW:
			quat[3] = v
		case ScaleX:
			scale[0] = v
		case ScaleY:
			scale[1] = v
		case ScaleZ:
			scale[2] = v
		case ScaleUniform:
			scale[0], scale[1], scale[2] = v, v, v
		}
	}
	return
}

// composeTRS builds a column-major 4x4 from a translation, a (possibly
// unnormalized) quaternion (x, y, z, w), and a per-axis scale.
func composeTRS(trans [3]float32, quat [4]float32, scale [3]float32) [16]float32 {
	x, y, z, w := quat[0], quat[1], quat[2], quat[3]
	n := float32(math.Sqrt(float64(x*x + y*y + z*z + w*w)))
	if n > 0 {
		x, y, z, w = x/n, y/n, z/n, w/n
	} else {
		x, y, z, w = 0, 0, 0, 1
	}

	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	c0 := [3]float32{1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy)}
	c1 := [3]float32{2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx)}
	c2 := [3]float32{2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy)}

	scaleVec(&c0, scale[0])
	scaleVec(&c1, scale[1])
	scaleVec(&c2, scale[2])

	var out [16]float32
	out[0], out[1], out[2], out[3] = c0[0], c0[1], c0[2], 0
	out[4], out[5], out[6], out[7] = c1[0], c1[1], c1[2], 0
	out[8], out[9], out[10], out[11] = c2[0], c2[1], c2[2], 0
	out[12], out[13], out[14], out[15] = trans[0], trans[1], trans[2], 1
	return out
}

// decomposeMatrix recovers translation, rotation (as a unit quaternion), and
// scale from a composed result matrix, used so a rotation-style composer can
// still hand a rig a TRS triple for multi-animation blending even though its
// ops never thought in those terms.
func decomposeMatrix(m [16]float32) (trans [3]float32, quat [4]float32, scale [3]float32) {
	trans = [3]float32{m[12], m[13], m[14]}

	c0 := [3]float32{m[0], m[1], m[2]}
	c1 := [3]float32{m[4], m[5], m[6]}
	c2 := [3]float32{m[8], m[9], m[10]}

	sx := vecLen(c0)
	sy := vecLen(c1)
	sz := vecLen(c2)
	scale = [3]float32{sx, sy, sz}

	if sx > 0 {
		scaleVec(&c0, 1/sx)
	}
	if sy > 0 {
		scaleVec(&c1, 1/sy)
	}
	if sz > 0 {
		scaleVec(&c2, 1/sz)
	}

	trace := c0[0] + c1[1] + c2[2]
	switch {
	case trace > 0:
		s := float32(math.Sqrt(float64(trace+1))) * 2
		quat = [4]float32{
			(c1[2] - c2[1]) / s,
			(c2[0] - c0[2]) / s,
			(c0[1] - c1[0]) / s,
			0.25 * s,
		}
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

// matrixProcessor is the priority-2 processor backing both MotivatorTypes
// TypeMatrix (rotation-style composers) and TypeSQT (translate/quaternion/
// scale composers): the two share this implementation, parameterized by the
// sqt flag stored on each composer, rather than duplicating it the way the
// C++ original's MatrixMotiveProcessor and SQTMotiveProcessor classes do —
// Go favors one parameterized type over two near-identical ones.
type matrixProcessor struct {
	eng     *Engine
	sqt     bool
	ranges  *indexpool.Allocator
	slots   []matrixComposerData
	backptr []*int
}

var _ Processor = (*matrixProcessor)(nil)

// newMatrixProcessorFactory returns a ProcessorFactory bound to sqt; it's
// called once per variant from this package's init().
func newMatrixProcessorFactory(sqt bool) ProcessorFactory {
	return func(eng *Engine) Processor {
		p := &matrixProcessor{eng: eng, sqt: sqt}
		p.ranges = indexpool.New(p.onResize, p.onMove)
		return p
	}
}

func (p *matrixProcessor) Type() MotivatorType {
	if p.sqt {
		return TypeSQT
	}
	return TypeMatrix
}
func (p *matrixProcessor) Priority() int { return 2 }

func (p *matrixProcessor) onResize(n int) {
	for len(p.slots) < n {
		p.slots = append(p.slots, matrixComposerData{sqt: p.sqt})
	}
	for len(p.backptr) < n {
		p.backptr = append(p.backptr, nil)
	}
}

func (p *matrixProcessor) onMove(src indexpool.Range, target int) {
	for i := 0; i < src.Count; i++ {
		from, to := src.First+i, target+i
		p.slots[to] = p.slots[from]
		p.backptr[to] = p.backptr[from]
		if p.backptr[to] != nil {
			*p.backptr[to] = to
		}
		p.backptr[from] = nil
		p.slots[from] = matrixComposerData{sqt: p.sqt}
	}
}

func (p *matrixProcessor) Advance(dt Time) {
	p.ranges.Defragment()
	n := p.ranges.NumActiveSlots()
	for i := 0; i < n; i++ {
		p.slots[i].update()
	}
}

func (p *matrixProcessor) resetAll() {
	p.slots = nil
	p.backptr = nil
	p.ranges = indexpool.New(p.onResize, p.onMove)
}

func (p *matrixProcessor) ValidIndex(first int) bool { return p.ranges.ValidIndex(first) }

func (p *matrixProcessor) allocate(ops []MatrixOpInit) (int, error) {
	if err := validateOps(p.sqt, ops); err != nil {
		return 0, err
	}
	first, err := p.ranges.Alloc(1)
	if err != nil {
		return 0, err
	}
	p.slots[first] = matrixComposerData{}
	p.slots[first].initialize(p.sqt, ops)
	return first, nil
}

func (p *matrixProcessor) bindCell(first int, cell *int) { p.backptr[first] = cell }

func (p *matrixProcessor) free(first int) {
	p.slots[first].reset()
	p.backptr[first] = nil
	p.ranges.Free(first)
}

func (p *matrixProcessor) data(index int) *matrixComposerData { return &p.slots[index] }
