// Package motivecurve provides the opaque curve/spline collaborator the
// spline processor consumes. The production spline math and storage format
// are explicitly out of scope for this repository's core; CompactSpline
// here is a self-contained cubic Hermite evaluator sufficient to drive the
// spline processor and its tests without depending on an external spline
// library. Callers that already own a richer curve asset pipeline can
// supply their own Curve implementation.
package motivecurve

import "sort"

// Node is one time-ordered keyframe of a curve: a value and its derivative
// at a given x.
type Node struct {
	X    float32
	Y    float32
	DyDx float32
}

// Range is an inclusive-start, exclusive-end value range, used both as a
// curve's y-range and as the wrap interval for modular arithmetic.
type Range struct {
	Start float32
	End   float32
}

// Length returns End - Start.
func (r Range) Length() float32 { return r.End - r.Start }

// Contains reports whether y falls within [Start, End).
func (r Range) Contains(y float32) bool { return y >= r.Start && y < r.End }

// Normalize wraps y into [Start, End) by adding or subtracting multiples of
// Length. Ranges with non-positive length return y unchanged.
func (r Range) Normalize(y float32) float32 {
	length := r.Length()
	if length <= 0 {
		return y
	}
	for y < r.Start {
		y += length
	}
	for y >= r.End {
		y -= length
	}
	return y
}

// Lengthen returns a copy of r expanded symmetrically so its length is
// multiplied by factor (factor >= 1), matching CalculateYRange's buffer
// widening for synthesized target splines.
func (r Range) Lengthen(factor float32) Range {
	if factor <= 1 {
		return r
	}
	length := r.Length()
	extra := length * (factor - 1) / 2
	return Range{Start: r.Start - extra, End: r.End + extra}
}

// Curve is the external evaluator contract the spline processor depends on.
type Curve interface {
	StartX() float32
	EndX() float32
	YRange() Range
	IsModular() bool
	NodeCount() int
	NodeAt(i int) Node
	// EvaluateRange bulk-samples count points starting at startX, stepX
	// apart, returning parallel y and dy/dx slices.
	EvaluateRange(startX, stepX float32, count int) (y, dydx []float32)
}

var _ Curve = (*CompactSpline)(nil)

// CompactSpline is a reusable cubic-Hermite spline. Instances are drawn from
// a processor-local pool (the motive spline processor's allocateSpline and
// freeSpline) and reinitialized via Init
// rather than reallocated, to avoid per-target allocation churn.
type CompactSpline struct {
	yRange       Range
	xGranularity float32
	modular      bool
	nodes        []Node
}

// NewCompactSpline returns an empty, uninitialized spline ready for Init.
func NewCompactSpline() *CompactSpline {
	return &CompactSpline{}
}

// NewCompactSplineFromNodes builds a spline from nodes already in ascending
// x order. Duplicate x values are rejected.
func NewCompactSplineFromNodes(nodes []Node, yRange Range, modular bool) (*CompactSpline, error) {
	for i := 1; i < len(nodes); i++ {
		if nodes[i].X <= nodes[i-1].X {
			return nil, errDuplicateOrUnorderedX
		}
	}
	s := &CompactSpline{yRange: yRange, modular: modular}
	s.nodes = append(s.nodes, nodes...)
	return s, nil
}

// RecommendXGranularity picks a quantization step proportional to the
// curve's total x extent.
func RecommendXGranularity(endX float32) float32 {
	if endX <= 0 {
		return 1
	}
	return endX / 128
}

// Init resets the spline to hold up to maxNodes nodes spanning yRange, ready
// for a fresh sequence of AddNode calls. The underlying storage is reused
// when it already has sufficient capacity.
func (s *CompactSpline) Init(yRange Range, xGranularity float32, maxNodes int) {
	s.yRange = yRange
	s.xGranularity = xGranularity
	if cap(s.nodes) < maxNodes {
		s.nodes = make([]Node, 0, maxNodes)
	} else {
		s.nodes = s.nodes[:0]
	}
}

// SetModular marks whether y values on this spline wrap within YRange.
func (s *CompactSpline) SetModular(modular bool) { s.modular = modular }

// AddNode appends a node. x values must be added in strictly ascending order.
func (s *CompactSpline) AddNode(x, y, dydx float32) {
	s.nodes = append(s.nodes, Node{X: x, Y: y, DyDx: dydx})
}

func (s *CompactSpline) StartX() float32 {
	if len(s.nodes) == 0 {
		return 0
	}
	return s.nodes[0].X
}

func (s *CompactSpline) EndX() float32 {
	if len(s.nodes) == 0 {
		return 0
	}
	return s.nodes[len(s.nodes)-1].X
}

func (s *CompactSpline) YRange() Range    { return s.yRange }
func (s *CompactSpline) IsModular() bool  { return s.modular }
func (s *CompactSpline) NodeCount() int   { return len(s.nodes) }
func (s *CompactSpline) NodeAt(i int) Node { return s.nodes[i] }

// Evaluate samples the spline at x, clamping to the first/last node outside
// its domain and cubic-Hermite-interpolating between the bracketing nodes
// otherwise.
func (s *CompactSpline) Evaluate(x float32) (y, dydx float32) {
	n := len(s.nodes)
	switch {
	case n == 0:
		return 0, 0
	case n == 1:
		return s.nodes[0].Y, s.nodes[0].DyDx
	}

	if x <= s.nodes[0].X {
		return s.nodes[0].Y, s.nodes[0].DyDx
	}
	if x >= s.nodes[n-1].X {
		return s.nodes[n-1].Y, s.nodes[n-1].DyDx
	}

	i := sort.Search(n, func(i int) bool { return s.nodes[i].X > x }) - 1
	if i < 0 {
		i = 0
	}
	a, b := s.nodes[i], s.nodes[i+1]
	dx := b.X - a.X
	if dx <= 0 {
		return a.Y, a.DyDx
	}
	t := (x - a.X) / dx

	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	y = h00*a.Y + h10*dx*a.DyDx + h01*b.Y + h11*dx*b.DyDx

	dh00 := 6*t2 - 6*t
	dh10 := 3*t2 - 4*t + 1
	dh01 := -6*t2 + 6*t
	dh11 := 3*t2 - 2*t
	dydx = (dh00*a.Y+dh10*dx*a.DyDx+dh01*b.Y+dh11*dx*b.DyDx) / dx

	return y, dydx
}

// EvaluateRange bulk-samples the spline, suitable for the spline processor's
// per-frame step.
func (s *CompactSpline) EvaluateRange(startX, stepX float32, count int) (ys, dydxs []float32) {
	ys = make([]float32, count)
	dydxs = make([]float32, count)
	x := startX
	for i := 0; i < count; i++ {
		ys[i], dydxs[i] = s.Evaluate(x)
		x += stepX
	}
	return ys, dydxs
}
