// Package indexpool implements the dense index allocator shared by every
// processor: it hands out contiguous index ranges, recycles freed ranges,
// and compacts active ranges toward zero on Defragment. Owners are notified
// of capacity growth and of data relocation via the two callbacks supplied
// to New, mirroring the "resize" and "move" callback pair the motive
// processors depend on to keep their parallel arrays coherent.
package indexpool

import "sort"

// Range is a contiguous span of indices [First, First+Count).
type Range struct {
	First int
	Count int
}

// ResizeFunc is invoked when the allocator must grow its backing capacity.
// The owner should grow its parallel arrays to numIndices and leave the new
// slots in a reset state.
type ResizeFunc func(numIndices int)

// MoveFunc is invoked during Defragment to relocate a range of active data
// from source to a new starting index target. The target is always below
// source.First, and the two ranges overlap when the gap being filled is
// narrower than the range, so the owner copies slots in ascending order.
type MoveFunc func(source Range, target int)

// Allocator hands out dense, variable-width index ranges. It is not
// safe for concurrent use; each processor owns exactly one and drives it
// from the engine's single advancing thread.
type Allocator struct {
	total    int
	free     []Range // sorted ascending by First, merged, never touching
	active   map[int]int
	onResize ResizeFunc
	onMove   MoveFunc
}

// New constructs an empty Allocator. onResize and onMove must not be nil.
func New(onResize ResizeFunc, onMove MoveFunc) *Allocator {
	return &Allocator{
		active:   make(map[int]int),
		onResize: onResize,
		onMove:   onMove,
	}
}

// Alloc returns a freshly active range [first, first+width) marked active.
// It reuses recycled space if a first-fit gap exists; otherwise it grows
// the backing capacity and invokes the resize callback.
func (a *Allocator) Alloc(width int) (first int, err error) {
	if width <= 0 {
		return 0, errWidth
	}
	for i, r := range a.free {
		if r.Count < width {
			continue
		}
		first = r.First
		if r.Count == width {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = Range{First: r.First + width, Count: r.Count - width}
		}
		a.active[first] = width
		return first, nil
	}

	first = a.total
	a.total += width
	a.onResize(a.total)
	a.active[first] = width
	return first, nil
}

// Free marks the range starting at first inactive, making it available for
// reuse by a future Alloc. Freeing an index that is not currently active is
// a no-op.
func (a *Allocator) Free(first int) {
	width, ok := a.active[first]
	if !ok {
		return
	}
	delete(a.active, first)
	a.insertFree(Range{First: first, Count: width})
}

func (a *Allocator) insertFree(r Range) {
	idx := sort.Search(len(a.free), func(i int) bool { return a.free[i].First >= r.First })
	a.free = append(a.free, Range{})
	copy(a.free[idx+1:], a.free[idx:])
	a.free[idx] = r

	if idx+1 < len(a.free) && a.free[idx].First+a.free[idx].Count == a.free[idx+1].First {
		a.free[idx].Count += a.free[idx+1].Count
		a.free = append(a.free[:idx+1], a.free[idx+2:]...)
	}
	if idx > 0 && a.free[idx-1].First+a.free[idx-1].Count == a.free[idx].First {
		a.free[idx-1].Count += a.free[idx].Count
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	}
}

// ValidIndex reports whether first is the start of a currently active range.
func (a *Allocator) ValidIndex(first int) bool {
	_, ok := a.active[first]
	return ok
}

// CountForIndex returns the width of the active range starting at first, or
// 0 if first is not active.
func (a *Allocator) CountForIndex(first int) int {
	return a.active[first]
}

// NumActiveSlots returns the total number of individual indices currently
// active, summed across all active ranges (not the number of ranges).
func (a *Allocator) NumActiveSlots() int {
	n := 0
	for _, w := range a.active {
		n += w
	}
	return n
}

// Defragment moves every active range into the lowest available position,
// in ascending order of current First, so that after it returns active
// ranges occupy exactly [0, NumActiveSlots()). Ranges that do not need to
// move are not passed to the move callback.
func (a *Allocator) Defragment() {
	if len(a.active) == 0 {
		a.free = nil
		if a.total > 0 {
			a.free = []Range{{First: 0, Count: a.total}}
		}
		return
	}

	firsts := make([]int, 0, len(a.active))
	for f := range a.active {
		firsts = append(firsts, f)
	}
	sort.Ints(firsts)

	target := 0
	newActive := make(map[int]int, len(a.active))
	for _, f := range firsts {
		count := a.active[f]
		if f != target {
			a.onMove(Range{First: f, Count: count}, target)
		}
		newActive[target] = count
		target += count
	}
	a.active = newActive

	a.free = nil
	if target < a.total {
		a.free = []Range{{First: target, Count: a.total - target}}
	}
}

// Total returns the current backing capacity (active + free slots).
func (a *Allocator) Total() int { return a.total }
