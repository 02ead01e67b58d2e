package motivecurve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCompactSplineFromNodesRejectsDuplicateX(t *testing.T) {
	_, err := NewCompactSplineFromNodes(
		[]Node{{X: 0, Y: 0}, {X: 0, Y: 1}},
		Range{Start: -1, End: 1},
		false,
	)
	require.Error(t, err)

	_, err = NewCompactSplineFromNodes(
		[]Node{{X: 1, Y: 0}, {X: 0, Y: 1}},
		Range{Start: -1, End: 1},
		false,
	)
	require.Error(t, err, "x values must be strictly ascending")
}

func TestCompactSplineEvaluateInterpolatesBetweenNodes(t *testing.T) {
	s, err := NewCompactSplineFromNodes(
		[]Node{{X: 0, Y: 0, DyDx: 1}, {X: 1, Y: 1, DyDx: 1}},
		Range{Start: -10, End: 10},
		false,
	)
	require.NoError(t, err)

	y, _ := s.Evaluate(0)
	require.InDelta(t, 0, y, 1e-6)
	y, _ = s.Evaluate(1)
	require.InDelta(t, 1, y, 1e-6)

	// A straight-line Hermite segment (matching endpoint slopes) should
	// reproduce the line exactly at its midpoint.
	y, _ = s.Evaluate(0.5)
	require.InDelta(t, 0.5, y, 1e-6)
}

func TestCompactSplineEvaluateClampsOutsideDomain(t *testing.T) {
	s, err := NewCompactSplineFromNodes(
		[]Node{{X: 0, Y: 5, DyDx: 0}, {X: 1, Y: 9, DyDx: 0}},
		Range{Start: -10, End: 10},
		false,
	)
	require.NoError(t, err)

	y, _ := s.Evaluate(-5)
	require.InDelta(t, 5, y, 1e-6)
	y, _ = s.Evaluate(5)
	require.InDelta(t, 9, y, 1e-6)
}

func TestRangeNormalizeWrapsIntoHalfOpenInterval(t *testing.T) {
	r := Range{Start: -1, End: 1}
	require.InDelta(t, 0, r.Normalize(0), 1e-6)
	require.InDelta(t, -0.5, r.Normalize(1.5), 1e-6)
	require.InDelta(t, 0.5, r.Normalize(-1.5), 1e-6)
	require.True(t, r.Contains(r.Normalize(1.5)))
}

func TestRangeLengthenWidensSymmetrically(t *testing.T) {
	r := Range{Start: -1, End: 1}
	wide := r.Lengthen(2)
	require.InDelta(t, -2, wide.Start, 1e-6)
	require.InDelta(t, 2, wide.End, 1e-6)

	unchanged := r.Lengthen(1)
	require.Equal(t, r, unchanged)
}
