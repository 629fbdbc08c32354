package variantindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubsetCanonicalization(t *testing.T) {
	empty := FromBitset(NewBitset(5))
	require.Equal(t, SubsetEmpty, empty.Kind())

	full := FromBitset(FullBitset(5))
	require.Equal(t, SubsetFull, full.Kind())

	partial := FromBitset(NewBitset(5).Set(1))
	require.Equal(t, SubsetDiscrete, partial.Kind())
}

func TestSubsetUnionIntersectComplement(t *testing.T) {
	a := Singleton(5, 0)
	b := Singleton(5, 1)
	union := Union(a, b, 5)
	require.True(t, union.Contains(0))
	require.True(t, union.Contains(1))
	require.False(t, union.Contains(2))

	inter := Intersect(a, b, 5)
	require.True(t, inter.IsEmpty())

	comp := Complement(a, 5)
	require.False(t, comp.Contains(0))
	require.True(t, comp.Contains(1))
}

func TestSubsetFullShortCircuitsUnion(t *testing.T) {
	full := Full(5)
	empty := Empty()
	require.True(t, Union(full, empty, 5).IsFull())
	require.True(t, Intersect(full, empty, 5).IsEmpty())
}

func TestSubsetEqual(t *testing.T) {
	a := Singleton(5, 2)
	b := Singleton(5, 2)
	require.True(t, Equal(a, b))
	require.False(t, Equal(a, Singleton(5, 3)))
	require.True(t, Equal(Empty(), Empty()))
}

func TestSubsetSingletonIndex(t *testing.T) {
	s := Singleton(5, 3)
	idx, ok := s.SingletonIndex()
	require.True(t, ok)
	require.Equal(t, 3, idx)

	_, ok = Full(5).SingletonIndex()
	require.False(t, ok)
}
