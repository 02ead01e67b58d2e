package motive

import (
	"fmt"

	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// maxTargetNodes bounds the number of waypoints a Target1f can hold, matching
// the fixed-size (no heap allocation) waypoint array of the collaborator
// this was ported from.
const maxTargetNodes = 3

// Target1f is a sequence of 1..maxTargetNodes waypoints describing where a
// one-dimensional value should go. If the first waypoint has Time == 0 it
// overrides the current state (value/velocity snap to it); otherwise the
// current state is preserved and the sequence describes future motion.
type Target1f struct {
	nodes [maxTargetNodes]Node1f
	count int
}

// Current1f returns a target that immediately overrides the current value
// and velocity, with no future motion.
func Current1f(value, velocity float32) Target1f {
	return Target1f{nodes: [maxTargetNodes]Node1f{{Value: value, Velocity: velocity, Time: 0}}, count: 1}
}

// Target1fAt returns a single-waypoint target reached at targetTime, leaving
// the current value/velocity as the implicit start condition. targetTime
// must be > 0.
func Target1fAt(value, velocity float32, targetTime Time, direction Direction) (Target1f, error) {
	if targetTime <= 0 {
		return Target1f{}, fmt.Errorf("%w: target time %v must be positive", motiveerr.ErrInvalidTarget, targetTime)
	}
	return NewTarget1f(Node1f{Value: value, Velocity: velocity, Time: targetTime, Direction: direction})
}

// NewTarget1f validates and constructs a waypoint sequence. Rules:
//   - 1 to maxTargetNodes waypoints.
//   - The first waypoint may have Time == 0 (current-state override); every
//     other waypoint (and a first waypoint that isn't an override) must have
//     a strictly positive time, strictly greater than the previous waypoint's
//     time.
func NewTarget1f(nodes ...Node1f) (Target1f, error) {
	if len(nodes) == 0 || len(nodes) > maxTargetNodes {
		return Target1f{}, fmt.Errorf("%w: target must have 1-%d waypoints, got %d", motiveerr.ErrInvalidTarget, maxTargetNodes, len(nodes))
	}

	prev := Time(0)
	for i, n := range nodes {
		isOverride := i == 0 && n.Time == 0
		if isOverride {
			prev = n.Time
			continue
		}
		if n.Time <= 0 {
			return Target1f{}, fmt.Errorf("%w: waypoint %d has non-positive time %v", motiveerr.ErrInvalidTarget, i, n.Time)
		}
		if i > 0 && n.Time <= prev {
			return Target1f{}, fmt.Errorf("%w: waypoint %d time %v does not strictly increase from %v", motiveerr.ErrInvalidTarget, i, n.Time, prev)
		}
		prev = n.Time
	}

	t := Target1f{count: len(nodes)}
	copy(t.nodes[:], nodes)
	return t, nil
}

// NumNodes returns the number of waypoints in the target.
func (t Target1f) NumNodes() int { return t.count }

// Node returns the i'th waypoint.
func (t Target1f) Node(i int) Node1f { return t.nodes[i] }

// EndTime returns the time of the final waypoint.
func (t Target1f) EndTime() Time {
	if t.count == 0 {
		return 0
	}
	return t.nodes[t.count-1].Time
}

// ValueRange returns the union of startValue and every waypoint's value,
// used to size a synthesized spline's y-range.
func (t Target1f) ValueRange(startValue float32) Range {
	lo, hi := startValue, startValue
	for i := 0; i < t.count; i++ {
		v := t.nodes[i].Value
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return Range{Start: lo, End: hi}
}
