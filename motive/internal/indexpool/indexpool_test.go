package indexpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocGrowsAndReuses(t *testing.T) {
	var resized int
	a := New(func(n int) { resized = n }, func(Range, int) { t.Fatal("unexpected move") })

	i0, err := a.Alloc(1)
	require.NoError(t, err)
	require.Equal(t, 0, i0)
	require.Equal(t, 1, resized)

	i1, err := a.Alloc(3)
	require.NoError(t, err)
	require.Equal(t, 1, i1)
	require.Equal(t, 4, resized)

	a.Free(i0)
	i2, err := a.Alloc(1)
	require.NoError(t, err)
	require.Equal(t, i0, i2, "freed slot should be reused before growing")
	require.Equal(t, 4, resized, "reusing a free slot must not resize")
}

func TestDefragmentCompactsAndCallsMove(t *testing.T) {
	a := New(func(int) {}, nil)
	var moves []Range
	var targets []int
	a.onMove = func(src Range, target int) {
		moves = append(moves, src)
		targets = append(targets, target)
	}

	h0, _ := a.Alloc(1)
	h1, _ := a.Alloc(1)
	h2, _ := a.Alloc(1)
	h3, _ := a.Alloc(1)
	_ = h0

	a.Free(h1)

	require.Equal(t, 3, a.NumActiveSlots())

	a.Defragment()

	require.Equal(t, 3, a.NumActiveSlots())
	require.True(t, a.ValidIndex(0))
	require.True(t, a.ValidIndex(1))
	require.True(t, a.ValidIndex(2))
	require.False(t, a.ValidIndex(3))
	require.Equal(t, []Range{{First: h2, Count: 1}, {First: h3, Count: 1}}, moves, "h2 and h3 should each be relocated once")
	require.Equal(t, []int{h1, h2}, targets, "h2 should have moved down to fill the gap left by h1")
	require.False(t, a.ValidIndex(h3))
	require.NotEmpty(t, moves, "defragment should report at least one relocation")
}

func TestFreeUnknownIndexIsNoop(t *testing.T) {
	a := New(func(int) {}, func(Range, int) {})
	a.Free(42)
	require.Equal(t, 0, a.NumActiveSlots())
}
