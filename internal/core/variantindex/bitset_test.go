package variantindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitsetSetContains(t *testing.T) {
	b := NewBitset(10)
	b = b.Set(3).Set(7)
	require.True(t, b.Contains(3))
	require.True(t, b.Contains(7))
	require.False(t, b.Contains(4))
	require.Equal(t, 2, b.PopCount())
}

func TestBitsetUnionIntersectComplement(t *testing.T) {
	a := NewBitset(8).Set(0).Set(1)
	b := NewBitset(8).Set(1).Set(2)
	require.Equal(t, []int{0, 1, 2}, a.Union(b).Indices())
	require.Equal(t, []int{1}, a.Intersect(b).Indices())
	comp := a.Complement()
	require.False(t, comp.Contains(0))
	require.True(t, comp.Contains(2))
}

func TestBitsetFullAndEmpty(t *testing.T) {
	full := FullBitset(70)
	require.True(t, full.IsFull())
	require.Equal(t, 70, full.PopCount())
	empty := NewBitset(70)
	require.True(t, empty.IsEmpty())
}

func TestBitsetSingleton(t *testing.T) {
	b := NewBitset(5).Set(2)
	idx, ok := b.Singleton()
	require.True(t, ok)
	require.Equal(t, 2, idx)
	b = b.Set(3)
	_, ok = b.Singleton()
	require.False(t, ok)
}

func TestBitsetEqualAcrossWordBoundary(t *testing.T) {
	a := FullBitset(130)
	b := FullBitset(130)
	require.True(t, a.Equal(b))
	b = b.Clear(129)
	require.False(t, a.Equal(b))
}
