package variantindex

// SubsetKind discriminates a VariantSetSubset's representation. Empty
// and Full are kept as distinct tags so Equal/IsEmpty/IsFull are O(1)
// for them. Empty holds no Bitset; Full still carries a materialized
// all-ones Bitset of its catalog size.
type SubsetKind int

const (
	SubsetEmpty SubsetKind = iota
	SubsetFull
	SubsetDiscrete
)

// Subset is a per-package "acceptable variants" set: either provably
// empty, provably the full catalog, or an explicit Bitset over variant
// indices. Discrete never legally holds an all-zero or all-one bitset —
// those are canonicalized to SubsetEmpty/SubsetFull by every
// constructor and operation in this file, which is the invariant the
// solver's equality and emptiness checks rely on.
type Subset struct {
	kind SubsetKind
	bits Bitset
}

// Empty returns the canonical empty subset.
func Empty() Subset { return Subset{kind: SubsetEmpty} }

// Full returns the canonical full subset over a catalog of the given
// size.
func Full(capacity int) Subset {
	if capacity == 0 {
		return Empty()
	}
	return Subset{kind: SubsetFull, bits: FullBitset(capacity)}
}

// FromBitset builds a Subset from an explicit Bitset, canonicalizing
// all-zero to Empty and all-one to Full.
func FromBitset(b Bitset) Subset {
	if b.IsEmpty() {
		return Empty()
	}
	if b.IsFull() {
		return Subset{kind: SubsetFull, bits: b}
	}
	return Subset{kind: SubsetDiscrete, bits: b}
}

// Singleton returns the subset containing exactly index i out of a
// catalog of size capacity.
func Singleton(capacity, i int) Subset {
	return FromBitset(NewBitset(capacity).Set(i))
}

// Kind reports the subset's representation tag.
func (s Subset) Kind() SubsetKind { return s.kind }

// IsEmpty reports whether the subset admits no variants.
func (s Subset) IsEmpty() bool { return s.kind == SubsetEmpty }

// IsFull reports whether the subset admits the entire catalog.
func (s Subset) IsFull() bool { return s.kind == SubsetFull }

// Contains reports whether variant index i is admitted.
func (s Subset) Contains(i int) bool {
	switch s.kind {
	case SubsetEmpty:
		return false
	case SubsetFull:
		return i >= 0 && i < s.bits.Capacity()
	default:
		return s.bits.Contains(i)
	}
}

// Bits materializes the subset as an explicit Bitset of the given
// catalog size, used at boundaries (the solver's candidate
// enumeration, tests) that need to enumerate indices.
func (s Subset) Bits(capacity int) Bitset {
	switch s.kind {
	case SubsetEmpty:
		return NewBitset(capacity)
	case SubsetFull:
		return FullBitset(capacity)
	default:
		return s.bits
	}
}

// Union returns the set union of a and b over a catalog of the given
// size.
func Union(a, b Subset, capacity int) Subset {
	if a.kind == SubsetFull || b.kind == SubsetFull {
		return Full(capacity)
	}
	if a.kind == SubsetEmpty {
		return b
	}
	if b.kind == SubsetEmpty {
		return a
	}
	return FromBitset(a.bits.Union(b.bits))
}

// Intersect returns the set intersection of a and b over a catalog of
// the given size.
func Intersect(a, b Subset, capacity int) Subset {
	if a.kind == SubsetEmpty || b.kind == SubsetEmpty {
		return Empty()
	}
	if a.kind == SubsetFull {
		return b
	}
	if b.kind == SubsetFull {
		return a
	}
	return FromBitset(a.bits.Intersect(b.bits))
}

// Complement returns the set complement of s over a catalog of the
// given size.
func Complement(s Subset, capacity int) Subset {
	switch s.kind {
	case SubsetEmpty:
		return Full(capacity)
	case SubsetFull:
		return Empty()
	default:
		return FromBitset(s.bits.Complement())
	}
}

// Equal reports whether a and b admit exactly the same variants. Any
// two SubsetFull (or two SubsetEmpty) values compare equal without
// looking at their bitsets, so capacities are not compared; callers
// always pass the same capacity within one VariantSet.
func Equal(a, b Subset) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == SubsetDiscrete {
		return a.bits.Equal(b.bits)
	}
	return true
}

// PopCount returns how many variants the subset admits.
func (s Subset) PopCount(capacity int) int {
	switch s.kind {
	case SubsetEmpty:
		return 0
	case SubsetFull:
		return capacity
	default:
		return s.bits.PopCount()
	}
}

// SingletonIndex reports the single admitted variant index, if the
// subset admits exactly one.
func (s Subset) SingletonIndex() (int, bool) {
	if s.kind != SubsetDiscrete {
		return -1, false
	}
	return s.bits.Singleton()
}
