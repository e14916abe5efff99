// Package qset implements the quorum-set tree: its sanity checks and its
// normalization rules. Every other package treats a QuorumSet as an
// opaque, already-sane value handed to it by this package.
package qset

import "github.com/bosagora/agora/ids"

// QuorumSet is a tree: a threshold over a flat list of validators and a
// list of nested inner quorum sets. A quorum-slice of a QuorumSet is any
// choice of `Threshold` elements from `Validators ∪ InnerSets` such that
// each chosen inner set is itself satisfied, recursively.
type QuorumSet struct {
	Threshold  uint32
	Validators []ids.NodeID
	InnerSets  []QuorumSet
}

// Entries returns the total number of direct entries (validators plus
// inner sets) at this level of the tree.
func (q QuorumSet) Entries() int {
	return len(q.Validators) + len(q.InnerSets)
}

// CountValidators returns the total number of validators anywhere in the
// tree, counting duplicates (a sane tree has none).
func (q QuorumSet) CountValidators() int {
	n := len(q.Validators)
	for _, inner := range q.InnerSets {
		n += inner.CountValidators()
	}
	return n
}

// IsSane enforces the invariants of spec.md §3: depth <= 2, threshold in
// range, total validator count in [1, 1000], no duplicate NodeID anywhere
// in the tree. When extraChecks is set, it additionally requires the
// threshold to be at least as large as the v-blocking threshold
// (totEntries - threshold + 1), biasing configuration toward safety.
//
// The reason strings match stellar-core's QuorumSetUtils.cpp verbatim,
// since spec.md's S6 scenario checks them literally.
func IsSane(q QuorumSet, extraChecks bool) (bool, string) {
	known := make(map[ids.NodeID]bool)
	count := 0
	ok, reason := checkSanity(q, 0, extraChecks, known, &count)
	if !ok {
		return false, reason
	}
	if count < 1 {
		return false, "Number of validator nodes is zero"
	}
	if count > 1000 {
		return false, "Number of validator nodes exceeds the limit of 1000"
	}
	return true, ""
}

func checkSanity(q QuorumSet, depth int, extraChecks bool, known map[ids.NodeID]bool, count *int) (bool, string) {
	if depth > 2 {
		return false, "Cannot have sub-quorums with depth exceeding 2 levels"
	}
	if q.Threshold < 1 {
		return false, "The threshold for a quorum must equal at least 1"
	}

	totEntries := uint32(q.Entries())
	vBlockingSize := totEntries - q.Threshold + 1
	*count += len(q.Validators)

	if q.Threshold > totEntries {
		return false, "The threshold for a quorum exceeds total number of entries"
	}
	if extraChecks && q.Threshold < vBlockingSize {
		return false, "Extra check: the threshold for a quorum is too low"
	}

	for _, n := range q.Validators {
		if known[n] {
			return false, "A duplicate node was configured within another quorum"
		}
		known[n] = true
	}

	for _, inner := range q.InnerSets {
		if ok, reason := checkSanity(inner, depth+1, extraChecks, known, count); !ok {
			return false, reason
		}
	}

	return true, ""
}

// Normalize performs the three transforms from spec.md §3:
//   - (a) removes idToRemove wherever it appears, reducing thresholds
//     of any level it was removed from by the count removed;
//   - (b) inlines singleton inner sets ({t:1, [X], []}) into the outer
//     validator list;
//   - (c) collapses a wrapper {t:1, [], [X]} to X.
//
// Normalize is idempotent: running it again on its own output is a no-op.
// If idToRemove is nil, only (b) and (c) are performed.
func Normalize(q QuorumSet, idToRemove *ids.NodeID) QuorumSet {
	if idToRemove != nil {
		var kept []ids.NodeID
		removed := 0
		for _, n := range q.Validators {
			if n == *idToRemove {
				removed++
				continue
			}
			kept = append(kept, n)
		}
		q.Validators = kept
		q.Threshold -= uint32(removed)
	}

	var inner []QuorumSet
	for _, child := range q.InnerSets {
		child = Normalize(child, idToRemove)
		if child.Threshold == 1 && len(child.Validators) == 1 && len(child.InnerSets) == 0 {
			q.Validators = append(q.Validators, child.Validators[0])
			continue
		}
		inner = append(inner, child)
	}
	q.InnerSets = inner

	if q.Threshold == 1 && len(q.Validators) == 0 && len(q.InnerSets) == 1 {
		return q.InnerSets[len(q.InnerSets)-1]
	}
	return q
}

// Weight returns the probability that n appears in a random quorum slice
// of q, descending the tree per spec.md §4.3: each child contributes
// threshold/|entries| scaled by the parent's weight. A node absent from
// the tree has weight 0.
func Weight(q QuorumSet, n ids.NodeID) float64 {
	entries := q.Entries()
	if entries == 0 {
		return 0
	}
	frac := float64(q.Threshold) / float64(entries)
	for _, v := range q.Validators {
		if v == n {
			return frac
		}
	}
	for _, inner := range q.InnerSets {
		if w := Weight(inner, n); w > 0 {
			return frac * w
		}
	}
	return 0
}

// Contains reports whether n appears anywhere in the tree.
func Contains(q QuorumSet, n ids.NodeID) bool {
	for _, v := range q.Validators {
		if v == n {
			return true
		}
	}
	for _, inner := range q.InnerSets {
		if Contains(inner, n) {
			return true
		}
	}
	return false
}

// AllValidators returns every NodeID in the tree, in tree order.
func AllValidators(q QuorumSet) []ids.NodeID {
	out := append([]ids.NodeID{}, q.Validators...)
	for _, inner := range q.InnerSets {
		out = append(out, AllValidators(inner)...)
	}
	return out
}

// IsQuorumSlice reports whether the node set members (by membership test
// "in") forms a satisfying quorum-slice of q: a choice of q.Threshold
// elements from q.Validators ∪ q.InnerSets such that each chosen inner
// set is itself satisfied, recursively. Since federated voting only ever
// asks "does my full quorum set accept slice S", rather than enumerating
// individual slices, this checks the stronger and equivalent condition:
// at least Threshold of the direct entries are themselves satisfied by
// `in` (a validator entry is satisfied iff in(v); an inner-set entry is
// satisfied iff it recursively IsQuorumSlice's).
func IsQuorumSlice(q QuorumSet, in func(ids.NodeID) bool) bool {
	count := uint32(0)
	for _, v := range q.Validators {
		if in(v) {
			count++
		}
	}
	for _, inner := range q.InnerSets {
		if IsQuorumSlice(inner, in) {
			count++
		}
	}
	return count >= q.Threshold
}

// IsVBlocking reports whether the node set tested by `in` intersects
// every quorum-slice of q: at every level, the number of entries NOT in
// the set must be strictly less than the threshold (spec.md §4.1).
func IsVBlocking(q QuorumSet, in func(ids.NodeID) bool) bool {
	if q.Threshold == 0 {
		return false
	}
	// notIn counts the entries that leave an "escape route" around the
	// set under test: validators not in it, and inner sets that are
	// themselves not v-blocked by it. If there are still >= Threshold
	// such entries, a slice can be built entirely out of them, so the
	// set does not block every slice.
	notIn := uint32(0)
	for _, v := range q.Validators {
		if !in(v) {
			notIn++
		}
	}
	for _, inner := range q.InnerSets {
		if !IsVBlocking(inner, in) {
			notIn++
		}
	}
	return notIn < q.Threshold
}
