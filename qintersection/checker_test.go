package qintersection

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/bosagora/agora/bitset"
	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
)

func nid(n uint64) ids.NodeID { return ids.NodeID(n) }

// TestQuorumIntersectionHolds is scenario S4 (spec.md §8): four nodes,
// each requiring 3-of-4, must enjoy quorum intersection.
func TestQuorumIntersectionHolds(t *testing.T) {
	all := []ids.NodeID{nid(1), nid(2), nid(3), nid(4)}
	qm := make(QuorumMap)
	for _, n := range all {
		q := qset.QuorumSet{Threshold: 3, Validators: all}
		qm[n] = &q
	}

	result := NetworkEnjoysQuorumIntersection(qm)
	if !result.EnjoysIntersection {
		t.Fatalf("expected quorum intersection to hold, got split %v / %v", result.SplitA, result.SplitB)
	}
	if len(result.MinimalQuorums) == 0 {
		t.Fatalf("expected at least one minimal quorum to be found")
	}
	if len(result.SplitA) != 0 || len(result.SplitB) != 0 {
		t.Fatalf("expected no split witnesses when intersection holds")
	}
}

// TestQuorumIntersectionFails is scenario S5 (spec.md §8): two disjoint
// 2-of-3 cliques with no cross-edges must fail to intersect.
func TestQuorumIntersectionFails(t *testing.T) {
	a, b, c := nid(1), nid(2), nid(3)
	d, e, f := nid(4), nid(5), nid(6)

	qm := QuorumMap{
		a: &qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{a, b, c}},
		b: &qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{a, b, c}},
		c: &qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{a, b, c}},
		d: &qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{d, e, f}},
		e: &qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{d, e, f}},
		f: &qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{d, e, f}},
	}

	result := NetworkEnjoysQuorumIntersection(qm)
	if result.EnjoysIntersection {
		t.Fatalf("expected quorum intersection to fail for two disjoint cliques: %s", spew.Sdump(result))
	}
	if len(result.SplitA) == 0 || len(result.SplitB) == 0 {
		t.Fatalf("expected non-empty disjoint-quorum witnesses, got %v / %v", result.SplitA, result.SplitB)
	}
	overlap := false
	for _, x := range result.SplitA {
		for _, y := range result.SplitB {
			if x == y {
				overlap = true
			}
		}
	}
	if overlap {
		t.Fatalf("split witnesses must be disjoint: %v / %v", result.SplitA, result.SplitB)
	}
}

// TestMissingQuorumSetTreatedAsDead verifies spec.md §4.6's handling of
// a QuorumMap entry with a nil QuorumSet: it is dropped from dependents'
// validator lists without decrementing their threshold, rather than
// causing a panic or being silently counted as present.
func TestMissingQuorumSetTreatedAsDead(t *testing.T) {
	a, b, missing := nid(1), nid(2), nid(3)
	qm := QuorumMap{
		a:       &qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{a, b, missing}},
		b:       &qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{a, b, missing}},
		missing: nil,
	}
	g := BuildGraph(qm)
	if g.Len() != 2 {
		t.Fatalf("expected only 2 numbered nodes (missing dropped), got %d", g.Len())
	}
	// a and b's threshold stays 2 even though missing is unreachable,
	// so {a,b} must still need both of them to form a quorum.
	onlyA := bitset.New(uint(g.Len()))
	for i, gn := range g.Nodes {
		if gn == a {
			onlyA.Add(uint(i))
		}
	}
	if g.IsQuorum(onlyA) {
		t.Fatalf("expected {a} alone to not be a quorum once missing is dropped")
	}
}
