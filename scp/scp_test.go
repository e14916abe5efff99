package scp

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
	"github.com/bosagora/agora/util"
)

// sharedQSHash stands in for "hash of the (identical) quorum set every
// node in a symmetric test network advertises" — in production this is
// the host's hash of the serialized QuorumSet; here any stable value
// that every driver in the network agrees to resolve to the same
// QuorumSet will do.
func sharedQSHash() ids.Hash {
	return hashFor(ids.NodeID(0xcafe))
}

// scenarioNode bundles one participant's Engine with the testDriver
// that backs it, for the multi-node scenario tests below.
type scenarioNode struct {
	id     ids.NodeID
	driver *testDriver
	engine *Engine
}

// newScenarioNetwork builds one Engine per id, all sharing qs as their
// quorum set, and wires each node's EmitEnvelope to deliver synchronously
// to every other node's ReceiveEnvelope — the reentrant, single-threaded
// delivery model spec.md §5 requires hosts to support.
func newScenarioNetwork(ids_ []ids.NodeID, qs qset.QuorumSet) map[ids.NodeID]*scenarioNode {
	h := sharedQSHash()
	nodes := make(map[ids.NodeID]*scenarioNode, len(ids_))
	for _, id := range ids_ {
		d := newTestDriver(util.NewKeyPair())
		d.qsets[h] = qs
		nodes[id] = &scenarioNode{id: id, driver: d, engine: NewEngine(id, true, qs, h, d, util.NopLogger{})}
	}
	for id, n := range nodes {
		localID := id
		n.driver.onEmit = func(env *Envelope) {
			for otherID, other := range nodes {
				if otherID == localID {
					continue
				}
				other.engine.ReceiveEnvelope(env)
			}
		}
	}
	return nodes
}

// TestTwoNodeCannotAgree is scenario S1 (spec.md §8): nodes {A,B} each
// require both validators to agree. A nominates; B only ever reacts to
// A's statement and never nominates on its own, so the 2-of-2 quorum is
// never reached and nothing externalizes. A is node 2 because node 2 has
// the higher round-1 priority for slot 1, so A leads round 1 and votes
// for its own value.
func TestTwoNodeCannotAgree(t *testing.T) {
	a, b := ids.NodeID(2), ids.NodeID(1)
	qs := qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{a, b}}
	nodes := newScenarioNetwork([]ids.NodeID{a, b}, qs)

	valueX := ids.Value("x")
	nodes[a].engine.Nominate(1, valueX, nil)

	if len(nodes[b].driver.emitted) != 0 {
		t.Fatalf("expected B to emit nothing on its own, got %d envelopes", len(nodes[b].driver.emitted))
	}
	for id, n := range nodes {
		st := n.engine.GetExternalizingState(1)
		if st.Externalized {
			t.Fatalf("node %v externalized unexpectedly", id)
		}
		slot := n.engine.slots[1]
		if slot.nomination.candidates.Size() != 0 {
			t.Fatalf("node %v expected empty candidates, got %d", id, slot.nomination.candidates.Size())
		}
	}
	if !nodes[a].engine.slots[1].nomination.votes.Contains(valueX) {
		t.Fatalf("expected A to have voted for x locally")
	}
}

// TestThreeNodeHappyPath is scenario S2 (spec.md §8): three nodes each
// requiring 2-of-3 all nominate the same value and must converge all the
// way to EXTERNALIZE on it, firing ValueExternalized exactly once each.
func TestThreeNodeHappyPath(t *testing.T) {
	a, b, c := ids.NodeID(1), ids.NodeID(2), ids.NodeID(3)
	qs := qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{a, b, c}}
	nodes := newScenarioNetwork([]ids.NodeID{a, b, c}, qs)

	valueX := ids.Value("x")
	const maxRounds = 200
	for round := 0; round < maxRounds; round++ {
		done := true
		for _, n := range nodes {
			if !n.engine.GetExternalizingState(1).Externalized {
				n.engine.Nominate(1, valueX, nil)
				done = false
			}
		}
		if done {
			break
		}
	}

	for id, n := range nodes {
		st := n.engine.GetExternalizingState(1)
		if !st.Externalized {
			t.Fatalf("node %v never externalized: %s", id, spew.Sdump(n.engine.slots[1]))
		}
		if st.Phase != PhaseExternalize {
			t.Fatalf("node %v expected PhaseExternalize, got %v", id, st.Phase)
		}
		if !st.Value.Equal(valueX) {
			t.Fatalf("node %v externalized %q, want %q", id, st.Value, valueX)
		}
		if len(n.driver.externalizedValues) != 1 {
			t.Fatalf("node %v expected ValueExternalized exactly once, fired %d times", id, len(n.driver.externalizedValues))
		}
	}
}

// TestBallotBumpByVBlocking is scenario S3 (spec.md §8): once A has a
// live ballot (1,x) in PREPARE, receiving PREPARE statements from a
// v-blocking set (here {B,C} against A's 2-of-3 quorum set) advertising
// counter 5 must jump A's working ballot to (5,x). The same statements
// make {B,C} a quorum voting prepare(5,x), so A accepts it and p becomes
// (5,x).
func TestBallotBumpByVBlocking(t *testing.T) {
	a, b, c := ids.NodeID(1), ids.NodeID(2), ids.NodeID(3)
	qs := qset.QuorumSet{Threshold: 2, Validators: []ids.NodeID{a, b, c}}
	self := newTestLocalNode(a, qs)
	driver := newTestDriver(util.NewKeyPair())
	resolveQS := func(ids.Hash) (qset.QuorumSet, bool) { return qs, true }

	bp := NewBallotProtocol(1, self, driver, util.NopLogger{}, resolveQS, func(ids.Value) {})
	bp.BumpState(ids.Value("x"))
	if bp.Phase() != PhasePrepare || !bp.CurrentBallot().Equal(Ballot{Counter: 1, Value: ids.Value("x")}) {
		t.Fatalf("expected A to start at ballot (1,x), got %v phase %v", bp.CurrentBallot(), bp.Phase())
	}

	mkPrepare := func(n ids.NodeID, counter uint32) *Envelope {
		return &Envelope{Statement: &PrepareStatement{
			Node: n, Slot: 1, QuorumSetHash: sharedQSHash(),
			B: Ballot{Counter: counter, Value: ids.Value("x")},
		}}
	}

	bp.ProcessEnvelope(mkPrepare(b, 5))
	bp.ProcessEnvelope(mkPrepare(c, 5))

	want := Ballot{Counter: 5, Value: ids.Value("x")}
	if !bp.CurrentBallot().Equal(want) {
		t.Fatalf("expected A's counter to jump to 5, got %v", bp.CurrentBallot())
	}
	if !bp.p.Equal(want) {
		t.Fatalf("expected p to be (5,x), got %v", bp.p)
	}
	if bp.Phase() != PhasePrepare {
		t.Fatalf("expected A to remain in PREPARE, got %v", bp.Phase())
	}

	last := driver.emitted[len(driver.emitted)-1]
	prep, ok := last.Statement.(*PrepareStatement)
	if !ok {
		t.Fatalf("expected last emitted statement to be PREPARE, got %T", last.Statement)
	}
	if prep.B.Counter != 5 {
		t.Fatalf("expected emitted PREPARE to carry counter 5, got %d", prep.B.Counter)
	}
}
