package motive

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/motive-go/motive/internal/indexpool"
	"github.com/Carmen-Shannon/motive-go/motive/motivecurve"
	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// splineAdvanceChunk is the number of slots handed to one worker task (the
// last chunk of a frame may be smaller). At or below this many active slots,
// dispatch overhead would exceed the work itself, so Advance steps them on
// its own goroutine.
const splineAdvanceChunk = 256

// SplineInit configures a new spline handle: the declared value range and
// whether values wrap (modular arithmetic) within it.
type SplineInit struct {
	YRange  Range
	Modular bool
}

type splineSlot struct {
	curve        motivecurve.Curve
	local        *motivecurve.CompactSpline
	x            float32
	yRange       Range
	modular      bool
	playbackRate float32
	repeat       bool
	y, dy        float32
}

// splineProcessor is the priority-0 processor: it drives scalar values along
// curves, synthesizing an inline cubic spline when the caller supplies a
// waypoint target instead of an explicit curve. Ported from
// src/motive/processor/smooth_processor.cpp.
type splineProcessor struct {
	eng         *Engine
	ranges      *indexpool.Allocator
	slots       []splineSlot
	backptr     []*int
	pool        []*motivecurve.CompactSpline
	workers     int
	computePool worker.DynamicWorkerPool
}

var _ Processor = (*splineProcessor)(nil)

func newSplineProcessor(eng *Engine) Processor {
	p := &splineProcessor{eng: eng}
	p.ranges = indexpool.New(p.onResize, p.onMove)
	// Mirrors engine/scene/scene.go's own compute pool: one worker per spare
	// core, a queue sized with headroom for a busy frame's slot count, and a
	// bounded timeout so a stalled curve evaluation can't wedge Advance.
	p.workers = max(runtime.NumCPU()-1, 1)
	p.computePool = worker.NewDynamicWorkerPool(p.workers, 256, 1*time.Second)
	return p
}

func (p *splineProcessor) Type() MotivatorType { return TypeSpline }
func (p *splineProcessor) Priority() int       { return 0 }

func (p *splineProcessor) onResize(n int) {
	for len(p.slots) < n {
		p.slots = append(p.slots, splineSlot{playbackRate: 1})
	}
	for len(p.backptr) < n {
		p.backptr = append(p.backptr, nil)
	}
}

func (p *splineProcessor) onMove(src indexpool.Range, target int) {
	for i := 0; i < src.Count; i++ {
		from, to := src.First+i, target+i
		p.slots[to] = p.slots[from]
		p.backptr[to] = p.backptr[from]
		if p.backptr[to] != nil {
			*p.backptr[to] = to
		}
		p.backptr[from] = nil
		p.slots[from] = splineSlot{}
	}
}

// Advance steps every active slot's spline parameter and re-evaluates its
// cached value/derivative. Defragment runs first, per the ordering guarantee
// that defragmentation happens at the start of a processor's Advance.
//
// Each slot's curve evaluation only touches that slot, so a busy frame's
// active range is split into contiguous chunks and fanned across
// computePool, the same worker.DynamicWorkerPool engine/scene/scene.go uses
// to parallelize its own independent per-animator frame prep. A WaitGroup
// provides the barrier: pool.Wait() blocks until every worker idles out,
// which is the wrong shape for a per-frame call that must return as soon as
// this frame's work — and nothing more — is done.
func (p *splineProcessor) Advance(dt Time) {
	p.ranges.Defragment()
	fdt := float32(dt)
	n := p.ranges.NumActiveSlots()

	if n <= splineAdvanceChunk || p.workers <= 1 {
		p.advanceRange(0, n, fdt)
		return
	}

	chunks := (n + splineAdvanceChunk - 1) / splineAdvanceChunk
	var wg sync.WaitGroup
	for c := 0; c < chunks; c++ {
		start := c * splineAdvanceChunk
		end := start + splineAdvanceChunk
		if end > n {
			end = n
		}
		wg.Add(1)
		taskID := c
		p.computePool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				p.advanceRange(start, end, fdt)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// advanceRange steps slots [start, end) in place. Disjoint ranges touch
// disjoint slots and indexpool state only Defragment mutates, so concurrent
// calls across non-overlapping ranges are safe.
func (p *splineProcessor) advanceRange(start, end int, fdt float32) {
	for i := start; i < end; i++ {
		s := &p.slots[i]
		if s.curve == nil {
			continue
		}
		s.x += fdt * s.playbackRate

		startX, endX := s.curve.StartX(), s.curve.EndX()
		if s.repeat && endX > startX {
			length := endX - startX
			for s.x >= endX {
				s.x -= length
			}
			for s.x < startX {
				s.x += length
			}
		}

		ys, dys := s.curve.EvaluateRange(s.x, 0, 1)
		s.y, s.dy = ys[0], dys[0]
		if s.modular {
			s.y = s.yRange.Normalize(s.y)
		}
	}
}

func (p *splineProcessor) resetAll() {
	p.slots = nil
	p.backptr = nil
	p.pool = nil
	p.ranges = indexpool.New(p.onResize, p.onMove)
}

func (p *splineProcessor) ValidIndex(first int) bool { return p.ranges.ValidIndex(first) }
func (p *splineProcessor) Dimensions(first int) int  { return p.ranges.CountForIndex(first) }

func (p *splineProcessor) allocate(init SplineInit, dim int) (int, error) {
	first, err := p.ranges.Alloc(dim)
	if err != nil {
		return 0, err
	}
	for i := 0; i < dim; i++ {
		p.slots[first+i] = splineSlot{yRange: init.YRange, modular: init.Modular, playbackRate: 1}
	}
	return first, nil
}

func (p *splineProcessor) bindCell(first int, cell *int) { p.backptr[first] = cell }

func (p *splineProcessor) free(first int) {
	width := p.ranges.CountForIndex(first)
	for i := 0; i < width; i++ {
		idx := first + i
		if p.slots[idx].local != nil {
			p.freeSpline(p.slots[idx].local)
		}
		p.slots[idx] = splineSlot{}
		p.backptr[idx] = nil
	}
	p.ranges.Free(first)
}

func (p *splineProcessor) allocateSpline() *motivecurve.CompactSpline {
	if len(p.pool) == 0 {
		return motivecurve.NewCompactSpline()
	}
	last := len(p.pool) - 1
	s := p.pool[last]
	p.pool = p.pool[:last]
	return s
}

func (p *splineProcessor) freeSpline(s *motivecurve.CompactSpline) {
	if s != nil {
		p.pool = append(p.pool, s)
	}
}

// --- component accessors (component is an offset within a dim-wide handle) ---

func (p *splineProcessor) value(index int) float32    { return p.slots[index].y }
func (p *splineProcessor) velocity(index int) float32 { return p.slots[index].dy * p.slots[index].playbackRate }
func (p *splineProcessor) direction(index int) float32 { return p.slots[index].dy }

func (p *splineProcessor) targetValue(index int) float32 {
	s := &p.slots[index]
	if s.curve == nil || s.curve.NodeCount() == 0 {
		return s.y
	}
	return s.curve.NodeAt(s.curve.NodeCount() - 1).Y
}

func (p *splineProcessor) targetVelocity(index int) float32 {
	s := &p.slots[index]
	if s.curve == nil || s.curve.NodeCount() == 0 {
		return 0
	}
	return s.curve.NodeAt(s.curve.NodeCount() - 1).DyDx
}

func (p *splineProcessor) difference(index int) float32 {
	s := &p.slots[index]
	diff := p.targetValue(index) - s.y
	if !s.modular {
		return diff
	}
	length := s.yRange.Length()
	if length <= 0 {
		return diff
	}
	for diff > length/2 {
		diff -= length
	}
	for diff <= -length/2 {
		diff += length
	}
	return diff
}

func (p *splineProcessor) targetTime(index int) Time {
	s := &p.slots[index]
	if s.curve == nil {
		return 0
	}
	return Time(s.curve.EndX() - s.x)
}

func (p *splineProcessor) splineTime(index int) Time { return Time(p.slots[index].x) }

// --- mutators ---

func (p *splineProcessor) setSpline(index int, curve motivecurve.Curve, playback Playback) {
	s := &p.slots[index]
	if s.local != nil {
		p.freeSpline(s.local)
		s.local = nil
	}
	s.curve = curve
	s.x = float32(playback.StartTime)
	s.repeat = playback.Repeat
	s.playbackRate = playback.PlaybackRate
	if s.playbackRate == 0 {
		s.playbackRate = 1
	}
	if curve != nil {
		ys, dys := curve.EvaluateRange(s.x, 0, 1)
		s.y, s.dy = ys[0], dys[0]
		if s.modular {
			s.y = s.yRange.Normalize(s.y)
		}
	}
}

func (p *splineProcessor) setTarget(index int, t Target1f) error {
	if t.NumNodes() == 0 {
		return fmt.Errorf("%w: empty target", motiveerr.ErrInvalidTarget)
	}
	s := &p.slots[index]

	node0 := t.Node(0)
	overrideCurrent := node0.Time == 0
	var startY, startDy float32
	startNodeIdx := 0
	if overrideCurrent {
		startY, startDy = node0.Value, node0.Velocity
		startNodeIdx = 1
	} else {
		startY, startDy = s.y, s.dy
	}

	local := s.local
	if local == nil {
		local = p.allocateSpline()
	}

	endX := float32(t.EndTime())
	yRange := p.calculateYRange(s, t, startY)
	gran := motivecurve.RecommendXGranularity(endX)
	local.Init(yRange, gran, 2*maxTargetNodes+1)
	local.SetModular(s.modular)
	local.AddNode(0, startY, startDy)

	prevY := startY
	for i := startNodeIdx; i < t.NumNodes(); i++ {
		n := t.Node(i)
		y := p.nextY(s, prevY, n.Value, n.Direction)
		local.AddNode(float32(n.Time), y, n.Velocity)
		prevY = y
	}

	s.local = local
	s.curve = local
	s.x = 0
	s.repeat = false
	if s.playbackRate == 0 {
		s.playbackRate = 1
	}
	s.y, s.dy = startY, startDy
	if s.modular {
		s.y = s.yRange.Normalize(s.y)
	}
	return nil
}

func (p *splineProcessor) calculateYRange(s *splineSlot, t Target1f, startY float32) Range {
	if s.modular {
		return s.yRange.Lengthen(float32(t.NumNodes()))
	}
	return t.ValueRange(startY).Lengthen(1.2)
}

// nextY picks the y-value to record for a waypoint so that the synthesized
// spline node is numerically continuous with prevY, honoring the waypoint's
// modular direction request. Evaluated samples are normalized back into
// yRange on every Advance, so nodes are free to live outside it.
func (p *splineProcessor) nextY(s *splineSlot, prevY, targetY float32, dir Direction) float32 {
	if !s.modular {
		return targetY
	}
	length := s.yRange.Length()
	if length <= 0 {
		return targetY
	}

	base := targetY
	for base-prevY > length/2 {
		base -= length
	}
	for prevY-base > length/2 {
		base += length
	}

	switch dir {
	case DirectionFarthest:
		if base >= prevY {
			return base - length
		}
		return base + length
	case DirectionPositive:
		if base < prevY {
			return base + length
		}
		return base
	case DirectionNegative:
		if base > prevY {
			return base - length
		}
		return base
	case DirectionDirect:
		return targetY
	default: // DirectionClosest
		return base
	}
}

func (p *splineProcessor) setSplineTime(index int, t Time) {
	s := &p.slots[index]
	s.x = float32(t)
	if s.curve != nil {
		ys, dys := s.curve.EvaluateRange(s.x, 0, 1)
		s.y, s.dy = ys[0], dys[0]
		if s.modular {
			s.y = s.yRange.Normalize(s.y)
		}
	}
}

func (p *splineProcessor) setPlaybackRate(index int, rate float32) {
	if rate == 0 {
		rate = 1
	}
	p.slots[index].playbackRate = rate
}

func (p *splineProcessor) setRepeat(index int, repeat bool) { p.slots[index].repeat = repeat }
