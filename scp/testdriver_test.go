package scp

import (
	"sort"
	"time"

	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
	"github.com/bosagora/agora/util"
)

// testDriver is the reference Driver used by this package's scenario
// tests: ed25519 signing via util.KeyPair (SPEC_FULL.md §6), a
// byte-lexicographic compareValues, and a hand-fired timer registry in
// place of a real wall clock.
type testDriver struct {
	BaseObserver

	kp     *util.KeyPair
	qsets  map[ids.Hash]qset.QuorumSet
	timers map[TimerID]func()

	// onEmit, if set, is called in addition to recording into emitted;
	// the multi-node scenario tests use it to wire synchronous envelope
	// delivery between a fixed set of engines.
	onEmit func(*Envelope)

	emitted            []*Envelope
	externalizedValues []ids.Value
}

func newTestDriver(kp *util.KeyPair) *testDriver {
	return &testDriver{
		kp:     kp,
		qsets:  make(map[ids.Hash]qset.QuorumSet),
		timers: make(map[TimerID]func()),
	}
}

func (d *testDriver) SignEnvelope(env *Envelope) ids.Signature {
	return ids.Signature(d.kp.Sign([]byte(env.Statement.String())))
}

func (d *testDriver) VerifyEnvelope(env *Envelope) bool { return true }

func (d *testDriver) GetQuorumSet(h ids.Hash) (qset.QuorumSet, bool) {
	q, ok := d.qsets[h]
	return q, ok
}

func (d *testDriver) EmitEnvelope(env *Envelope) {
	d.emitted = append(d.emitted, env)
	if d.onEmit != nil {
		d.onEmit(env)
	}
}

func (d *testDriver) ValidateValue(slot uint64, v ids.Value, nomination bool) ValidationLevel {
	return ValueFullyValid
}

func (d *testDriver) ExtractValidValue(slot uint64, v ids.Value) (ids.Value, bool) {
	return v, true
}

func (d *testDriver) CombineCandidates(slot uint64, candidates []ids.Value) ids.Value {
	out := append([]ids.Value{}, candidates...)
	sort.Slice(out, func(i, j int) bool { return string(out[i]) < string(out[j]) })
	return out[0]
}

func (d *testDriver) CompareValues(slot uint64, prev ids.Value, round uint32, v1, v2 ids.Value) int {
	s1, s2 := string(v1), string(v2)
	switch {
	case s1 < s2:
		return -1
	case s1 > s2:
		return 1
	}
	return 0
}

func (d *testDriver) ComputeTimeout(counter uint32) time.Duration {
	if counter > 1800 {
		counter = 1800
	}
	return time.Duration(counter) * time.Second
}

func (d *testDriver) SetupTimer(slot uint64, timerID TimerID, delay time.Duration, cb func()) {
	d.timers[timerID] = cb
}

func (d *testDriver) ValueExternalized(slot uint64, v ids.Value) {
	d.externalizedValues = append(d.externalizedValues, v)
}

func (d *testDriver) fireTimer(id TimerID) {
	if cb, ok := d.timers[id]; ok {
		cb()
	}
}

// hashFor derives a stand-in quorum-set hash for tests: distinct nodes
// never collide, and it's stable across calls for the same node.
func hashFor(n ids.NodeID) ids.Hash {
	var h ids.Hash
	for i := 0; i < 8; i++ {
		h[i] = byte(n >> (8 * uint(i)))
	}
	return h
}

func newTestLocalNode(id ids.NodeID, qs qset.QuorumSet) *LocalNode {
	return &LocalNode{NodeID: id, IsValidator: true, QSet: qs, QSetHash: hashFor(id)}
}
