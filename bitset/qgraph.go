package bitset

// QGraph is a node-index-flattened quorum set: the same tree shape as
// qset.QuorumSet, but with validators replaced by dense indices so that
// containment tests run as bitset operations instead of map lookups.
// qintersection builds one QGraph per node in the network it is
// analyzing.
type QGraph struct {
	Threshold uint32
	Nodes     *Set    // direct validator entries, by index
	Inner     []QGraph // nested inner sets

	// AllSuccessors is Nodes ∪ (every Inner[i].AllSuccessors), the set of
	// every node index reachable from this entry in one quorum-slice
	// expansion. It is precomputed at build time since the Tarjan SCC
	// pass over the quorum graph (qintersection) calls it once per edge.
	AllSuccessors *Set
}

// ContainsQuorumSlice reports whether `committed` contains a
// quorum-slice of this QGraph: at least Threshold of the direct entries
// are themselves satisfied by committed (a validator entry is satisfied
// iff it is in committed; an inner-set entry is satisfied iff it
// recursively contains a slice of committed).
//
// The short-circuiting here mirrors the fail-fast counters in
// QuorumIntersectionCheckerImpl.cpp's containsQuorumSlice: stop counting
// successes as soon as Threshold is reached, and stop as soon as the
// remaining entries can no longer reach Threshold.
func (g QGraph) ContainsQuorumSlice(committed *Set) bool {
	need := g.Threshold
	remaining := uint32(len(g.Inner)) + uint32(countNodes(g.Nodes))
	if need == 0 {
		return true
	}
	success := uint32(0)
	fail := uint32(0)
	failLimit := remaining - need

	// Count validator successes by iterating committed ∩ Nodes size; the
	// rest are immediate failures.
	hits := g.Nodes.Intersection(committed).Count()
	success += uint32(hits)
	fail += uint32(countNodes(g.Nodes)) - uint32(hits)
	if success >= need {
		return true
	}
	if fail > failLimit {
		return false
	}

	for _, inner := range g.Inner {
		if inner.ContainsQuorumSlice(committed) {
			success++
			if success >= need {
				return true
			}
		} else {
			fail++
			if fail > failLimit {
				return false
			}
		}
	}
	return success >= need
}

func countNodes(s *Set) int {
	return int(s.Count())
}
