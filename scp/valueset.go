package scp

import (
	"github.com/emirpasic/gods/sets/treeset"

	"github.com/bosagora/agora/ids"
)

// ValueSet is the ordered `set<Value>` construct spec.md §9 calls for:
// nomination's votes/accepted/candidates sets, backed by
// github.com/emirpasic/gods/sets/treeset and keyed by the host-supplied
// CompareValues order rather than value identity (DESIGN NOTES:
// "std::set<ValueWrapperPtr> with a custom comparator becomes an
// ordered container keyed by the host-provided total order").
type ValueSet struct {
	tree *treeset.Set
	cmp  func(a, b ids.Value) int
}

// NewValueSet returns an empty set ordered by cmp.
func NewValueSet(cmp func(a, b ids.Value) int) *ValueSet {
	return &ValueSet{
		tree: treeset.NewWith(func(a, b interface{}) int {
			return cmp(a.(ids.Value), b.(ids.Value))
		}),
		cmp: cmp,
	}
}

// Add inserts v, returning whether the set changed.
func (vs *ValueSet) Add(v ids.Value) bool {
	if vs.tree.Contains(v) {
		return false
	}
	vs.tree.Add(v)
	return true
}

// Contains reports whether v is in the set.
func (vs *ValueSet) Contains(v ids.Value) bool {
	if vs == nil {
		return false
	}
	return vs.tree.Contains(v)
}

// Size returns the number of values in the set.
func (vs *ValueSet) Size() int {
	if vs == nil {
		return 0
	}
	return vs.tree.Size()
}

// Values returns the set's contents in ascending cmp order.
func (vs *ValueSet) Values() []ids.Value {
	if vs == nil {
		return nil
	}
	raw := vs.tree.Values()
	out := make([]ids.Value, len(raw))
	for i, v := range raw {
		out[i] = v.(ids.Value)
	}
	return out
}
