package scp

import (
	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
)

// LocalNode is this engine's own identity and quorum configuration
// (spec.md §4.1, §4.5).
type LocalNode struct {
	NodeID      ids.NodeID
	IsValidator bool
	QSet        qset.QuorumSet
	QSetHash    ids.Hash
}

// IsVBlocking reports whether nodeSet is v-blocking for self: it
// intersects every quorum-slice of self's quorum set.
func (ln *LocalNode) IsVBlocking(nodeSet map[ids.NodeID]bool) bool {
	return qset.IsVBlocking(ln.QSet, func(n ids.NodeID) bool { return nodeSet[n] })
}

// GetQSetFunc resolves a node's current quorum set, used by IsQuorum and
// ContractToMaximalQuorum below. Slot wires this to the per-protocol
// latest-statement cache (nomination.go / ballot.go).
type GetQSetFunc func(ids.NodeID) (qset.QuorumSet, bool)

// IsQuorum reports whether u is a quorum: non-empty, and for every
// n ∈ u, u contains a quorum-slice of Q(n). getQSet resolves each
// member's quorum set; a node whose quorum set cannot be resolved makes
// u fail (it cannot be shown to be a quorum without that information).
func IsQuorum(u map[ids.NodeID]bool, getQSet GetQSetFunc) bool {
	if len(u) == 0 {
		return false
	}
	for n := range u {
		q, ok := getQSet(n)
		if !ok {
			return false
		}
		if !qset.IsQuorumSlice(q, func(m ids.NodeID) bool { return u[m] }) {
			return false
		}
	}
	return true
}

// ContractToMaximalQuorum iteratively removes nodes whose quorum slice
// is not contained in the current set, until a fixed point, returning
// the greatest quorum ⊆ u (possibly empty). u is not mutated.
func ContractToMaximalQuorum(u map[ids.NodeID]bool, getQSet GetQSetFunc) map[ids.NodeID]bool {
	cur := make(map[ids.NodeID]bool, len(u))
	for n := range u {
		cur[n] = true
	}
	for {
		changed := false
		for n := range cur {
			q, ok := getQSet(n)
			if !ok || !qset.IsQuorumSlice(q, func(m ids.NodeID) bool { return cur[m] }) {
				delete(cur, n)
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return cur
}

// FederatedAccept implements the two-stage accept predicate of
// spec.md §4.1: either (i) the set of candidates that voted-for-or-
// accepted the statement is a quorum, or (ii) the set of candidates
// that have already accepted it is v-blocking for self.
func FederatedAccept(
	candidates []ids.NodeID,
	votedOrAccepted func(ids.NodeID) bool,
	accepted func(ids.NodeID) bool,
	self *LocalNode,
	getQSet GetQSetFunc,
) bool {
	ratified := make(map[ids.NodeID]bool)
	for _, n := range candidates {
		if votedOrAccepted(n) {
			ratified[n] = true
		}
	}
	if IsQuorum(ratified, getQSet) {
		return true
	}

	blockers := make(map[ids.NodeID]bool)
	for _, n := range candidates {
		if accepted(n) {
			blockers[n] = true
		}
	}
	return self.IsVBlocking(blockers)
}

// FederatedConfirm implements spec.md §4.1's confirm predicate: some
// quorum contains a node whose latest statement accepts the statement.
func FederatedConfirm(
	candidates []ids.NodeID,
	accepted func(ids.NodeID) bool,
	getQSet GetQSetFunc,
) bool {
	ratified := make(map[ids.NodeID]bool)
	for _, n := range candidates {
		if accepted(n) {
			ratified[n] = true
		}
	}
	return IsQuorum(ratified, getQSet)
}
