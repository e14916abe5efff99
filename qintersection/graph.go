// Package qintersection implements the offline quorum-intersection
// checker (spec.md §4.6): given a network's declared quorum sets, it
// enumerates the minimal quorums of the largest strongly-connected
// component of the "who-can-this-node's-acceptance-depend-on" graph and
// reports whether every pair of quorums necessarily intersects.
package qintersection

import (
	"sort"

	"github.com/bosagora/agora/bitset"
	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
)

// QuorumMap is the checker's input. A nil value for a present key means
// "known to exist but no configuration seen" (spec.md §4.6).
type QuorumMap map[ids.NodeID]*qset.QuorumSet

// Graph is a QuorumMap flattened into a dense, integer-indexed form:
// every node with a present QuorumSet is numbered 0..N-1 and its tree is
// reduced to a bitset.QGraph.
type Graph struct {
	Nodes   []ids.NodeID
	indexOf map[ids.NodeID]uint
	QGraphs []bitset.QGraph
}

// BuildGraph numbers every node with a present QuorumSet (in NodeID
// order, for determinism) and flattens its tree. References to nodes
// whose QuorumSet is missing are dropped from validator lists rather
// than decrementing the enclosing threshold — such a node can never
// vote, so the slot it would have filled simply cannot be satisfied by
// it (spec.md §4.6).
func BuildGraph(qm QuorumMap) *Graph {
	var present []ids.NodeID
	for n, q := range qm {
		if q != nil {
			present = append(present, n)
		}
	}
	sort.Slice(present, func(i, j int) bool { return present[i] < present[j] })

	g := &Graph{Nodes: present, indexOf: make(map[ids.NodeID]uint, len(present))}
	for i, n := range present {
		g.indexOf[n] = uint(i)
	}
	g.QGraphs = make([]bitset.QGraph, len(present))
	for i, n := range present {
		g.QGraphs[i] = g.flatten(*qm[n])
	}
	return g
}

func (g *Graph) flatten(q qset.QuorumSet) bitset.QGraph {
	nodes := bitset.New(uint(len(g.Nodes)))
	for _, v := range q.Validators {
		if idx, ok := g.indexOf[v]; ok {
			nodes.Add(idx)
		}
	}
	inner := make([]bitset.QGraph, 0, len(q.InnerSets))
	for _, sub := range q.InnerSets {
		inner = append(inner, g.flatten(sub))
	}
	all := nodes.Clone()
	for _, in := range inner {
		all = all.Union(in.AllSuccessors)
	}
	return bitset.QGraph{Threshold: q.Threshold, Nodes: nodes, Inner: inner, AllSuccessors: all}
}

// Len returns the number of numbered nodes.
func (g *Graph) Len() int { return len(g.Nodes) }

// Successors returns the bitset of nodes directly reachable from i
// (i's flattened quorum set's allSuccessors).
func (g *Graph) Successors(i uint) *bitset.Set {
	return g.QGraphs[i].AllSuccessors
}

// IsQuorum reports whether u is non-empty and every member's flattened
// quorum set is satisfied by u (spec.md §4.1, over the bitset graph).
func (g *Graph) IsQuorum(u *bitset.Set) bool {
	if u.None() {
		return false
	}
	ok := true
	u.ForEach(func(i uint) {
		if !g.QGraphs[i].ContainsQuorumSlice(u) {
			ok = false
		}
	})
	return ok
}

// ContractToMaximalQuorum iteratively drops members whose quorum slice
// isn't satisfied by the current set, to a fixed point (spec.md §4.1).
// u is not mutated.
func (g *Graph) ContractToMaximalQuorum(u *bitset.Set) *bitset.Set {
	cur := u.Clone()
	for {
		var drop []uint
		cur.ForEach(func(i uint) {
			if !g.QGraphs[i].ContainsQuorumSlice(cur) {
				drop = append(drop, i)
			}
		})
		if len(drop) == 0 {
			break
		}
		for _, i := range drop {
			cur.Remove(i)
		}
	}
	return cur
}

// IsMinimalQuorum reports whether q is a quorum with no proper
// sub-quorum (testable property 7, spec.md §8).
func (g *Graph) IsMinimalQuorum(q *bitset.Set) bool {
	if !g.IsQuorum(q) {
		return false
	}
	minimal := true
	q.ForEach(func(i uint) {
		sub := q.Clone()
		sub.Remove(i)
		if g.IsQuorum(sub) {
			minimal = false
		}
	})
	return minimal
}
