package qset

import (
	"testing"

	"github.com/bosagora/agora/ids"
)

func nid(n uint64) ids.NodeID { return ids.NodeID(n) }

// TestSanityThresholdExceedsEntries is scenario S6 (spec.md §8):
// threshold exceeds total entries must be rejected.
func TestSanityThresholdExceedsEntries(t *testing.T) {
	q := QuorumSet{Threshold: 3, Validators: []ids.NodeID{nid(1), nid(2)}}
	ok, reason := IsSane(q, false)
	if ok {
		t.Fatalf("expected insane quorum set, got sane")
	}
	if reason == "" {
		t.Fatalf("expected a non-empty reason string")
	}
}

func TestSanityOK(t *testing.T) {
	q := QuorumSet{Threshold: 2, Validators: []ids.NodeID{nid(1), nid(2), nid(3)}}
	ok, reason := IsSane(q, false)
	if !ok {
		t.Fatalf("expected sane quorum set, got insane: %s", reason)
	}
}

func TestSanityDuplicateNode(t *testing.T) {
	q := QuorumSet{
		Threshold:  2,
		Validators: []ids.NodeID{nid(1)},
		InnerSets: []QuorumSet{
			{Threshold: 1, Validators: []ids.NodeID{nid(1), nid(2)}},
		},
	}
	if ok, _ := IsSane(q, false); ok {
		t.Fatalf("expected insane quorum set due to duplicate node")
	}
}

// TestSanityDepthExceeded nests inner sets down to depth 3 (the root is
// depth 0), one level past the deepest IsSane accepts.
func TestSanityDepthExceeded(t *testing.T) {
	q := QuorumSet{
		Threshold: 1,
		InnerSets: []QuorumSet{{
			Threshold: 1,
			InnerSets: []QuorumSet{{
				Threshold: 1,
				InnerSets: []QuorumSet{{
					Threshold:  1,
					Validators: []ids.NodeID{nid(1)},
				}},
			}},
		}},
	}
	if ok, _ := IsSane(q, false); ok {
		t.Fatalf("expected insane quorum set due to excess depth")
	}
}

func TestSanityExtraChecksVBlockingThreshold(t *testing.T) {
	q := QuorumSet{Threshold: 1, Validators: []ids.NodeID{nid(1), nid(2), nid(3)}}
	if ok, _ := IsSane(q, false); !ok {
		t.Fatalf("expected sane without extra checks")
	}
	if ok, _ := IsSane(q, true); ok {
		t.Fatalf("expected insane under extra checks (threshold too low relative to v-blocking size)")
	}
}

func TestNormalizeRemovesNode(t *testing.T) {
	q := QuorumSet{Threshold: 3, Validators: []ids.NodeID{nid(1), nid(2), nid(3)}}
	removed := nid(2)
	got := Normalize(q, &removed)
	if len(got.Validators) != 2 || got.Threshold != 2 {
		t.Fatalf("normalize remove: got %+v", got)
	}
}

func TestNormalizeInlinesSingletonInner(t *testing.T) {
	q := QuorumSet{
		Threshold:  1,
		Validators: []ids.NodeID{nid(1)},
		InnerSets: []QuorumSet{
			{Threshold: 1, Validators: []ids.NodeID{nid(2)}},
		},
	}
	got := Normalize(q, nil)
	if len(got.InnerSets) != 0 || len(got.Validators) != 2 {
		t.Fatalf("expected singleton inner set inlined, got %+v", got)
	}
}

func TestNormalizeCollapsesWrapper(t *testing.T) {
	inner := QuorumSet{Threshold: 2, Validators: []ids.NodeID{nid(1), nid(2), nid(3)}}
	q := QuorumSet{Threshold: 1, InnerSets: []QuorumSet{inner}}
	got := Normalize(q, nil)
	if got.Threshold != 2 || len(got.Validators) != 3 {
		t.Fatalf("expected wrapper collapsed to inner set, got %+v", got)
	}
}

// TestNormalizeIdempotent is testable property 5 (spec.md §8).
func TestNormalizeIdempotent(t *testing.T) {
	q := QuorumSet{
		Threshold:  1,
		Validators: []ids.NodeID{nid(1)},
		InnerSets: []QuorumSet{
			{Threshold: 1, Validators: []ids.NodeID{nid(2)}},
			{Threshold: 2, Validators: []ids.NodeID{nid(3), nid(4), nid(5)}},
		},
	}
	once := Normalize(q, nil)
	twice := Normalize(once, nil)
	if !quorumSetsEqual(once, twice) {
		t.Fatalf("normalize not idempotent: once=%+v twice=%+v", once, twice)
	}
}

func quorumSetsEqual(a, b QuorumSet) bool {
	if a.Threshold != b.Threshold || len(a.Validators) != len(b.Validators) || len(a.InnerSets) != len(b.InnerSets) {
		return false
	}
	for i := range a.Validators {
		if a.Validators[i] != b.Validators[i] {
			return false
		}
	}
	for i := range a.InnerSets {
		if !quorumSetsEqual(a.InnerSets[i], b.InnerSets[i]) {
			return false
		}
	}
	return true
}

func TestWeightAndContains(t *testing.T) {
	q := QuorumSet{Threshold: 2, Validators: []ids.NodeID{nid(1), nid(2), nid(3)}}
	if !Contains(q, nid(1)) {
		t.Fatalf("expected node 1 in tree")
	}
	if Contains(q, nid(9)) {
		t.Fatalf("expected node 9 absent")
	}
	w := Weight(q, nid(1))
	want := 2.0 / 3.0
	if w < want-1e-9 || w > want+1e-9 {
		t.Fatalf("weight = %v, want %v", w, want)
	}
	if Weight(q, nid(9)) != 0 {
		t.Fatalf("expected zero weight for absent node")
	}
}

func TestAllValidators(t *testing.T) {
	q := QuorumSet{
		Threshold:  2,
		Validators: []ids.NodeID{nid(1)},
		InnerSets: []QuorumSet{
			{Threshold: 1, Validators: []ids.NodeID{nid(2), nid(3)}},
		},
	}
	got := AllValidators(q)
	if len(got) != 3 {
		t.Fatalf("expected 3 validators total, got %d", len(got))
	}
}

func TestIsQuorumSliceAndVBlocking(t *testing.T) {
	q := QuorumSet{Threshold: 2, Validators: []ids.NodeID{nid(1), nid(2), nid(3)}}
	in := func(n ids.NodeID) bool { return n == nid(1) || n == nid(2) }
	if !IsQuorumSlice(q, in) {
		t.Fatalf("expected {1,2} to be a satisfying slice of a 2-of-3 set")
	}
	notEnough := func(n ids.NodeID) bool { return n == nid(1) }
	if IsQuorumSlice(q, notEnough) {
		t.Fatalf("expected {1} to not satisfy a 2-of-3 set")
	}

	// A 2-of-3 set is v-blocked by any 2 of its validators (leaves only
	// 1 escape route, below the threshold of 2).
	if !IsVBlocking(q, in) {
		t.Fatalf("expected {1,2} to be v-blocking for a 2-of-3 set")
	}
	if IsVBlocking(q, notEnough) {
		t.Fatalf("expected {1} to not be v-blocking for a 2-of-3 set")
	}
}
