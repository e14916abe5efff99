// Package bitset provides dense, integer-indexed node sets and the
// quorum-slice containment test built on top of them. It is the
// performance-critical inner structure the quorum-intersection checker
// (qintersection) runs its graph search over: nodes are numbered 0..N
// once, up front, and every set operation afterwards is a bitset op
// instead of a map lookup.
package bitset

import (
	bbs "github.com/bits-and-blooms/bitset"
)

// Set is a dense set of small non-negative integers, backed by
// github.com/bits-and-blooms/bitset.
type Set struct {
	bits *bbs.BitSet
}

// New returns an empty set with room for indices in [0, capacity).
func New(capacity uint) *Set {
	return &Set{bits: bbs.New(capacity)}
}

// NewWith returns a set containing exactly the given indices.
func NewWith(indices ...uint) *Set {
	s := New(0)
	for _, i := range indices {
		s.Add(i)
	}
	return s
}

// Add puts i into the set.
func (s *Set) Add(i uint) {
	s.bits.Set(i)
}

// Remove takes i out of the set.
func (s *Set) Remove(i uint) {
	s.bits.Clear(i)
}

// Test reports whether i is in the set.
func (s *Set) Test(i uint) bool {
	if s == nil {
		return false
	}
	return s.bits.Test(i)
}

// Count returns the number of set bits.
func (s *Set) Count() uint {
	if s == nil {
		return 0
	}
	return s.bits.Count()
}

// Any reports whether the set is non-empty.
func (s *Set) Any() bool {
	return s != nil && s.bits.Any()
}

// None reports whether the set is empty.
func (s *Set) None() bool {
	return s == nil || s.bits.None()
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	if s == nil {
		return New(0)
	}
	return &Set{bits: s.bits.Clone()}
}

// Union returns a new set containing every index in s or other.
func (s *Set) Union(other *Set) *Set {
	if s == nil {
		return other.Clone()
	}
	if other == nil {
		return s.Clone()
	}
	return &Set{bits: s.bits.Union(other.bits)}
}

// Intersection returns a new set containing every index in both s and other.
func (s *Set) Intersection(other *Set) *Set {
	if s == nil || other == nil {
		return New(0)
	}
	return &Set{bits: s.bits.Intersection(other.bits)}
}

// Difference returns a new set containing every index in s but not other.
func (s *Set) Difference(other *Set) *Set {
	if s == nil {
		return New(0)
	}
	if other == nil {
		return s.Clone()
	}
	return &Set{bits: s.bits.Difference(other.bits)}
}

// Equal reports whether s and other contain the same indices.
func (s *Set) Equal(other *Set) bool {
	if s.None() && other.None() {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	return s.bits.Equal(other.bits)
}

// IsSubsetOf reports whether every index in s is also in other.
func (s *Set) IsSubsetOf(other *Set) bool {
	if s.None() {
		return true
	}
	if other == nil {
		return false
	}
	return other.bits.IsSuperSet(s.bits)
}

// ForEach calls fn once for every index in the set, in ascending order.
func (s *Set) ForEach(fn func(uint)) {
	if s == nil {
		return
	}
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		fn(i)
	}
}

// Slice returns the set's indices in ascending order.
func (s *Set) Slice() []uint {
	out := make([]uint, 0, s.Count())
	s.ForEach(func(i uint) { out = append(out, i) })
	return out
}
