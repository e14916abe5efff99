package qintersection

import "github.com/bosagora/agora/bitset"

// enumerate is the branch-and-bound minimal-quorum search of spec.md
// §4.6 step 4: state (committed, remaining), both bitsets, with
// committed ∩ remaining = ∅ and committed ∪ remaining ⊆ maxSCC.
func (c *Checker) enumerate(maxSCC, committed, remaining *bitset.Set) {
	if c.splitA != nil {
		return
	}
	c.stats.CallsStarted++

	// X1: committed has grown past half the SCC plus one — no minimal
	// quorum can still be found down this branch.
	if committed.Count() > maxSCC.Count()/2+1 {
		c.stats.EarlyExit1s++
		c.stats.Terminations++
		return
	}

	union := committed.Union(remaining)
	contracted := c.graph.ContractToMaximalQuorum(union)

	// X2.1: no quorum at all reachable from here.
	if contracted.None() {
		c.stats.EarlyExit21s++
		c.stats.Terminations++
		return
	}
	// X2.2: the reachable quorum no longer contains everything already
	// committed to — this branch can never complete.
	if !committed.IsSubsetOf(contracted) {
		c.stats.EarlyExit22s++
		c.stats.Terminations++
		return
	}

	if c.graph.IsQuorum(committed) {
		if c.graph.IsMinimalQuorum(committed) {
			// X3.1: committed is a minimal quorum. Check whether the
			// rest of the SCC still contains a quorum disjoint from it.
			rest := maxSCC.Difference(committed)
			other := c.graph.ContractToMaximalQuorum(rest)
			if other.Any() {
				c.splitA = committed.Clone()
				c.splitB = other
				c.stats.Terminations++
				c.logger.Logf("qintersection", "enumerate", "early exit: found two disjoint quorums, intersection fails")
				return
			}
			c.recordMinimalQuorum(committed)
			c.stats.EarlyExit31s++
			c.stats.Terminations++
			return
		}
		// X3.2: a quorum, but not minimal — a minimal sub-quorum of it
		// is found (or will be found) on a different branch.
		c.stats.EarlyExit32s++
		c.stats.Terminations++
		return
	}

	if remaining.None() {
		c.stats.Terminations++
		return
	}

	split := c.pickSplitNode(remaining)
	withoutSplit := remaining.Clone()
	withoutSplit.Remove(split)

	c.enumerate(maxSCC, committed, withoutSplit)
	if c.splitA != nil {
		return
	}

	withSplit := committed.Clone()
	withSplit.Add(split)
	c.enumerate(maxSCC, withSplit, withoutSplit)
}

func (c *Checker) recordMinimalQuorum(q *bitset.Set) {
	c.minimalQuorums = append(c.minimalQuorums, q.Clone())
	size := int(q.Count())
	if len(c.minimalQuorums) == 1 || size < c.stats.MinQuorumsSeen {
		c.stats.MinQuorumsSeen = size
	}
	if len(c.minimalQuorums) > c.stats.MaxQuorumsSeen {
		c.stats.MaxQuorumsSeen = len(c.minimalQuorums)
	}
}

// pickSplitNode picks the remaining node most depended-upon by the rest
// of remaining (highest in-degree), breaking ties with the checker's
// seeded PRNG (spec.md §9).
func (c *Checker) pickSplitNode(remaining *bitset.Set) uint {
	var best []uint
	bestDegree := -1
	remaining.ForEach(func(candidate uint) {
		degree := 0
		remaining.ForEach(func(i uint) {
			if i != candidate && c.graph.Successors(i).Test(candidate) {
				degree++
			}
		})
		switch {
		case degree > bestDegree:
			bestDegree = degree
			best = []uint{candidate}
		case degree == bestDegree:
			best = append(best, candidate)
		}
	})
	return best[c.rng.Intn(len(best))]
}
