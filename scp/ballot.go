package scp

import (
	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
	"github.com/bosagora/agora/util"
)

// Phase is one of the three ballot-protocol phases, spec.md §4.4. Once
// in PhaseExternalize, the phase never changes again.
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseConfirm
	PhaseExternalize
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "PREPARE"
	case PhaseConfirm:
		return "CONFIRM"
	case PhaseExternalize:
		return "EXTERNALIZE"
	}
	return "UNKNOWN"
}

// BallotProtocol is the three-phase PREPARE -> CONFIRM -> EXTERNALIZE
// state machine (spec.md §4.4), the engine's largest single component.
// It is grounded directly on the teacher's BallotState
// (network/scp.go), generalized from the teacher's string-quorum-slice
// model to the NodeID/QuorumSet/Ballot model spec.md describes.
type BallotProtocol struct {
	slotIndex   uint64
	self        *LocalNode
	driver      Driver
	logger      util.Logger
	resolveQS   func(ids.Hash) (qset.QuorumSet, bool)
	onExternalize func(ids.Value)

	phase Phase

	b      Ballot // current working ballot; IsNull() before the protocol starts
	p      Ballot // highest accepted-prepared ballot
	pPrime Ballot // second-highest, incompatible with p
	c      Ballot // low end of the accepted/confirmed commit range
	h      Ballot // high end of the accepted/confirmed commit range
	z      *ids.Value

	workingValue ids.Value

	heardFromQuorum      bool
	firedHeardFromQuorum map[uint32]bool

	latestEnvelopes map[ids.NodeID]*Envelope
	lastEmitted     Statement
}

// NewBallotProtocol constructs an idle ballot protocol for one slot.
// onExternalize, supplied by the owning Slot, is invoked exactly once,
// the moment the protocol reaches PhaseExternalize.
func NewBallotProtocol(
	slotIndex uint64,
	self *LocalNode,
	driver Driver,
	logger util.Logger,
	resolveQS func(ids.Hash) (qset.QuorumSet, bool),
	onExternalize func(ids.Value),
) *BallotProtocol {
	return &BallotProtocol{
		slotIndex:            slotIndex,
		self:                 self,
		driver:               driver,
		logger:               logger,
		resolveQS:            resolveQS,
		onExternalize:        onExternalize,
		latestEnvelopes:      make(map[ids.NodeID]*Envelope),
		firedHeardFromQuorum: make(map[uint32]bool),
	}
}

// Phase returns the protocol's current phase.
func (bp *BallotProtocol) Phase() Phase { return bp.phase }

// CurrentBallot returns the working ballot b.
func (bp *BallotProtocol) CurrentBallot() Ballot { return bp.b }

// BumpState starts the protocol (b null -> (1, z??value)) or bumps it
// (b.counter+1, z??value), per spec.md §4.4's entry point. Slot calls
// this when the composite candidate first becomes available, and again
// whenever the ballot timer fires.
func (bp *BallotProtocol) BumpState(value ids.Value) {
	if bp.phase == PhaseExternalize {
		return
	}
	bp.workingValue = value
	v := value
	if bp.z != nil {
		v = *bp.z
	}
	if bp.b.IsNull() {
		bp.b = Ballot{Counter: 1, Value: v}
	} else {
		bp.b = Ballot{Counter: bp.b.Counter + 1, Value: v}
	}
	bp.checkInvariants()
	bp.driver.StartedBallotProtocol(bp.slotIndex, bp.b)
	bp.armTimer()
	bp.emit()
}

func (bp *BallotProtocol) armTimer() {
	if bp.phase == PhaseExternalize || bp.b.IsNull() {
		return
	}
	delay := bp.driver.ComputeTimeout(bp.b.Counter)
	bp.driver.SetupTimer(bp.slotIndex, BallotTimer, delay, func() {
		bp.BumpState(bp.workingValue)
	})
}

func (bp *BallotProtocol) knownNodes() []ids.NodeID {
	out := make([]ids.NodeID, 0, len(bp.latestEnvelopes)+1)
	out = append(out, bp.self.NodeID)
	for n := range bp.latestEnvelopes {
		out = append(out, n)
	}
	return out
}

func (bp *BallotProtocol) envelopeFor(n ids.NodeID) (*Envelope, bool) {
	if n == bp.self.NodeID {
		if bp.lastEmitted == nil {
			return nil, false
		}
		return &Envelope{Statement: bp.lastEmitted}, true
	}
	env, ok := bp.latestEnvelopes[n]
	return env, ok
}

func (bp *BallotProtocol) getQSetFor(n ids.NodeID) (qset.QuorumSet, bool) {
	if n == bp.self.NodeID {
		return bp.self.QSet, true
	}
	env, ok := bp.latestEnvelopes[n]
	if !ok {
		return qset.QuorumSet{}, false
	}
	h, ok := QuorumSetHash(env.Statement)
	if !ok {
		return qset.QuorumSet{}, false
	}
	return bp.resolveQS(h)
}

// nodeVotesOrAcceptsPrepare implements the first bullet list of
// spec.md §4.4's attempt-accept-prepared.
func (bp *BallotProtocol) nodeVotesOrAcceptsPrepare(n ids.NodeID, q Ballot) bool {
	env, ok := bp.envelopeFor(n)
	if !ok {
		return false
	}
	switch st := env.Statement.(type) {
	case *PrepareStatement:
		if !st.B.AtLeast(q) {
			return false
		}
		if st.B.Value.Equal(q.Value) {
			return true
		}
		if st.Prepared != nil && st.Prepared.Value.Equal(q.Value) {
			return true
		}
		incompatible := (st.Prepared == nil || !st.Prepared.Value.Equal(q.Value)) &&
			(st.PreparedPrime == nil || !st.PreparedPrime.Value.Equal(q.Value))
		return incompatible
	case *ConfirmStatement:
		return st.Ballot.Value.Equal(q.Value) && st.Ballot.Counter >= q.Counter
	case *ExternalizeStatement:
		return st.Commit.Value.Equal(q.Value)
	}
	return false
}

// nodeAcceptsPrepare reports whether n's latest statement has already
// accepted prepare(q): p or p' dominates q for PREPARE nodes; any
// CONFIRM/EXTERNALIZE node with the same value has necessarily already
// accepted prepare for it.
func (bp *BallotProtocol) nodeAcceptsPrepare(n ids.NodeID, q Ballot) bool {
	env, ok := bp.envelopeFor(n)
	if !ok {
		return false
	}
	switch st := env.Statement.(type) {
	case *PrepareStatement:
		if st.Prepared != nil && st.Prepared.AtLeast(q) && st.Prepared.Value.Equal(q.Value) {
			return true
		}
		if st.PreparedPrime != nil && st.PreparedPrime.AtLeast(q) && st.PreparedPrime.Value.Equal(q.Value) {
			return true
		}
		return false
	case *ConfirmStatement:
		return st.Ballot.Value.Equal(q.Value)
	case *ExternalizeStatement:
		return st.Commit.Value.Equal(q.Value)
	}
	return false
}

// acceptedAbort reports whether self has already accepted the abort of
// ballot (n, x): in PREPARE, iff p or p' dominates n with a different
// value; past PREPARE, self has accepted the abort of everything but
// its own working value.
func (bp *BallotProtocol) acceptedAbort(n uint32, x ids.Value) bool {
	if bp.phase != PhasePrepare {
		return !bp.b.Value.Equal(x)
	}
	if !bp.p.IsNull() && bp.p.Counter >= n && !bp.p.Value.Equal(x) {
		return true
	}
	if !bp.pPrime.IsNull() && bp.pPrime.Counter >= n && !bp.pPrime.Value.Equal(x) {
		return true
	}
	return false
}

// attemptAcceptPrepared is spec.md §4.4's "Attempt-accept-prepared".
func (bp *BallotProtocol) attemptAcceptPrepared(q Ballot) bool {
	if bp.phase != PhasePrepare || q.Counter == 0 {
		return false
	}
	if !bp.p.IsNull() && bp.p.AtLeast(q) && bp.p.Value.Equal(q.Value) {
		return false
	}
	if !bp.pPrime.IsNull() && bp.pPrime.AtLeast(q) {
		// Either it's already p' (nothing new), or it's an older ballot
		// number we don't care about even if accepted.
		return false
	}

	candidates := bp.knownNodes()
	if !FederatedAccept(candidates,
		func(n ids.NodeID) bool { return bp.nodeVotesOrAcceptsPrepare(n, q) },
		func(n ids.NodeID) bool { return bp.nodeAcceptsPrepare(n, q) },
		bp.self, bp.getQSetFor) {
		return false
	}

	bp.driver.AcceptedBallotPrepared(bp.slotIndex, q)

	if !bp.b.IsNull() && bp.b.Counter <= q.Counter && !bp.b.Value.Equal(q.Value) {
		// Accepting this prepare means b's commit vote must be aborted.
		bp.c = Ballot{}
		bp.b = q
	}

	switch {
	case bp.p.IsNull():
		bp.p = q
	case bp.p.Value.Equal(q.Value):
		bp.p = q
	case q.Counter >= bp.p.Counter:
		bp.pPrime = bp.p
		bp.p = q
	default:
		bp.pPrime = q
	}

	if !bp.b.IsNull() {
		for bp.c.Counter != 0 && bp.acceptedAbort(bp.c.Counter, bp.b.Value) {
			bp.c.Counter++
			if bp.c.Counter > bp.h.Counter {
				bp.c = Ballot{}
			}
		}
	}

	bp.checkInvariants()
	return true
}

// attemptConfirmPrepared is spec.md §4.4's "Attempt-confirm-prepared".
func (bp *BallotProtocol) attemptConfirmPrepared(q Ballot) bool {
	if bp.phase != PhasePrepare || bp.h.Counter >= q.Counter {
		return false
	}

	candidates := bp.knownNodes()
	accepted := func(n ids.NodeID) bool {
		if n == bp.self.NodeID {
			return (!bp.p.IsNull() && bp.p.AtLeast(q) && bp.p.Value.Equal(q.Value)) ||
				(!bp.pPrime.IsNull() && bp.pPrime.AtLeast(q) && bp.pPrime.Value.Equal(q.Value))
		}
		return bp.nodeAcceptsPrepare(n, q)
	}
	if !FederatedConfirm(candidates, accepted, bp.getQSetFor) {
		return false
	}

	bp.driver.ConfirmedBallotPrepared(bp.slotIndex, q)

	if bp.c.Counter != 0 && !bp.b.Value.Equal(q.Value) {
		bp.fail("confirmed a prepared ballot contradicting an active commit vote")
	}

	bp.h = q
	v := q.Value
	bp.z = &v
	if bp.b.IsNull() {
		bp.b = q
	}
	if bp.c.Counter == 0 && bp.b.Value.Equal(q.Value) {
		if bp.acceptedAbort(q.Counter, q.Value) {
			// already accepted the abort of this, nothing to commit
		} else if bp.b.Counter > q.Counter {
			// already past this ballot number
		} else {
			bp.c = Ballot{Counter: bp.b.Counter, Value: bp.b.Value}
		}
	}

	bp.checkInvariants()
	return true
}

func (bp *BallotProtocol) nodeVotesOrAcceptsCommit(n ids.NodeID, counter uint32, x ids.Value) bool {
	env, ok := bp.envelopeFor(n)
	if !ok {
		return false
	}
	switch st := env.Statement.(type) {
	case *PrepareStatement:
		return st.B.Value.Equal(x) && st.NC != 0 && st.NC <= counter && counter <= st.NH
	case *ConfirmStatement:
		return st.Ballot.Value.Equal(x) && st.NCommit <= counter && counter <= st.NH
	case *ExternalizeStatement:
		return st.Commit.Value.Equal(x) && st.Commit.Counter <= counter
	}
	return false
}

func (bp *BallotProtocol) nodeAcceptsCommit(n ids.NodeID, counter uint32, x ids.Value) bool {
	env, ok := bp.envelopeFor(n)
	if !ok {
		return false
	}
	switch st := env.Statement.(type) {
	case *ConfirmStatement:
		return st.Ballot.Value.Equal(x) && st.NCommit <= counter && counter <= st.NH
	case *ExternalizeStatement:
		return st.Commit.Value.Equal(x) && st.Commit.Counter <= counter
	}
	return false
}

// attemptAcceptCommit is spec.md §4.4's "Attempt-accept-commit",
// specialized to a single candidate counter rather than a full
// interval [n,m] (n==m here), matching the teacher's
// MaybeAcceptAsCommitted (network/scp.go); see DESIGN.md.
func (bp *BallotProtocol) attemptAcceptCommit(q Ballot) bool {
	counter, x := q.Counter, q.Value
	if bp.phase == PhaseExternalize {
		return false
	}
	if bp.phase == PhaseConfirm && bp.c.Counter <= counter && counter <= bp.h.Counter {
		return false
	}

	selfVotes := bp.phase == PhasePrepare && !bp.b.IsNull() && bp.b.Value.Equal(x) &&
		bp.c.Counter != 0 && bp.c.Counter <= counter && counter <= bp.h.Counter

	candidates := bp.knownNodes()
	votedOrAccepted := func(n ids.NodeID) bool {
		if n == bp.self.NodeID {
			return selfVotes
		}
		return bp.nodeVotesOrAcceptsCommit(n, counter, x)
	}
	accepted := func(n ids.NodeID) bool {
		if n == bp.self.NodeID {
			return false
		}
		return bp.nodeAcceptsCommit(n, counter, x)
	}
	if !FederatedAccept(candidates, votedOrAccepted, accepted, bp.self, bp.getQSetFor) {
		return false
	}

	bp.driver.AcceptedCommit(bp.slotIndex, q)

	bp.phase = PhaseConfirm
	if bp.b.IsNull() || !bp.b.Value.Equal(x) {
		bp.b = Ballot{Counter: counter, Value: x}
		bp.c = Ballot{Counter: counter, Value: x}
		bp.h = Ballot{Counter: counter, Value: x}
		v := x
		bp.z = &v
	} else {
		if bp.c.Counter == 0 || counter < bp.c.Counter {
			bp.c = Ballot{Counter: counter, Value: x}
		}
		if counter > bp.h.Counter {
			bp.h = Ballot{Counter: counter, Value: x}
		}
	}

	bp.checkInvariants()
	return true
}

// attemptConfirmCommit is spec.md §4.4's "Attempt-confirm-commit": on
// confirm, freeze c/h and externalize. Once PhaseExternalize is
// reached it never re-enters ballot processing for this slot.
func (bp *BallotProtocol) attemptConfirmCommit(q Ballot) bool {
	if bp.phase == PhasePrepare || bp.phase == PhaseExternalize {
		return false
	}
	counter, x := q.Counter, q.Value
	if bp.b.IsNull() || !bp.b.Value.Equal(x) {
		return false
	}

	selfAccepts := bp.c.Counter <= counter && counter <= bp.h.Counter
	candidates := bp.knownNodes()
	accepted := func(n ids.NodeID) bool {
		if n == bp.self.NodeID {
			return selfAccepts
		}
		return bp.nodeAcceptsCommit(n, counter, x)
	}
	if !FederatedConfirm(candidates, accepted, bp.getQSetFor) {
		return false
	}

	bp.phase = PhaseExternalize
	bp.c = Ballot{Counter: counter, Value: x}
	bp.h = Ballot{Counter: counter, Value: x}
	bp.checkInvariants()
	bp.driver.ValueExternalized(bp.slotIndex, x)
	if bp.onExternalize != nil {
		bp.onExternalize(x)
	}
	return true
}

// ballotCounterOf returns the counter a statement's ballot field
// carries, treating EXTERNALIZE as permanently ahead of any live ballot.
func ballotCounterOf(s Statement) (uint32, bool) {
	switch st := s.(type) {
	case *PrepareStatement:
		return st.B.Counter, true
	case *ConfirmStatement:
		return st.Ballot.Counter, true
	case *ExternalizeStatement:
		return Infinity, true
	}
	return 0, false
}

// maybeBumpToVBlockingCounter implements spec.md §4.4's timer-adjacent
// jump rule: when a v-blocking set of nodes has strictly higher
// ballot.counter than self, self jumps to the smallest counter in that
// set greater than its own.
func (bp *BallotProtocol) maybeBumpToVBlockingCounter() bool {
	if bp.b.IsNull() || bp.phase == PhaseExternalize {
		return false
	}
	higher := make(map[ids.NodeID]bool)
	counters := make(map[ids.NodeID]uint32)
	for n, env := range bp.latestEnvelopes {
		if c, ok := ballotCounterOf(env.Statement); ok && c > bp.b.Counter {
			higher[n] = true
			counters[n] = c
		}
	}
	if !bp.self.IsVBlocking(higher) {
		return false
	}
	var best uint32
	first := true
	for n := range higher {
		if first || counters[n] < best {
			best = counters[n]
			first = false
		}
	}
	v := bp.b.Value
	if bp.z != nil {
		v = *bp.z
	}
	bp.b = Ballot{Counter: best, Value: v}
	bp.checkInvariants()
	return true
}

// heardFromQuorumCheck implements the "heard from quorum" half of
// spec.md §4.4's Timer section.
func (bp *BallotProtocol) heardFromQuorumCheck() {
	if bp.b.IsNull() {
		return
	}
	atLeast := map[ids.NodeID]bool{bp.self.NodeID: true}
	for n, env := range bp.latestEnvelopes {
		if c, ok := ballotCounterOf(env.Statement); ok && c >= bp.b.Counter {
			atLeast[n] = true
		}
	}
	if !IsQuorum(atLeast, bp.getQSetFor) {
		return
	}
	bp.heardFromQuorum = true
	if !bp.firedHeardFromQuorum[bp.b.Counter] {
		bp.firedHeardFromQuorum[bp.b.Counter] = true
		bp.driver.BallotDidHearFromQuorum(bp.slotIndex, bp.b)
	}
	bp.armTimer()
}

// candidateBallotsFrom gathers the ballot tuples spec.md §4.4 says to
// test: those appearing directly as a ballot, prepared, preparedPrime,
// or commit field of the just-received statement. This mirrors the
// teacher's Handle, which investigates exactly the tuples named by the
// incoming message rather than rescanning the whole cache.
func candidateBallotsFrom(s Statement) []Ballot {
	switch st := s.(type) {
	case *PrepareStatement:
		out := []Ballot{st.B}
		if st.Prepared != nil {
			out = append(out, *st.Prepared)
		}
		if st.PreparedPrime != nil {
			out = append(out, *st.PreparedPrime)
		}
		return out
	case *ConfirmStatement:
		return []Ballot{st.Ballot, {Counter: st.NPrepared, Value: st.Ballot.Value}}
	case *ExternalizeStatement:
		return []Ballot{st.Commit}
	}
	return nil
}

func isBallotSane(s Statement) bool {
	switch st := s.(type) {
	case *PrepareStatement:
		if st.B.Counter == 0 {
			return false
		}
		if st.NC > st.NH || st.NH > st.B.Counter {
			return false
		}
		if st.Prepared != nil && st.PreparedPrime != nil {
			if st.PreparedPrime.Counter >= st.Prepared.Counter {
				return false
			}
			if st.Prepared.Value.Equal(st.PreparedPrime.Value) {
				return false
			}
		}
		return true
	case *ConfirmStatement:
		if st.Ballot.Counter == 0 {
			return false
		}
		return st.NPrepared <= st.NCommit && st.NCommit <= st.NH && st.NH <= st.Ballot.Counter
	case *ExternalizeStatement:
		return st.Commit.Counter != 0 && st.Commit.Counter <= st.NH
	}
	return false
}

func statementRank(s Statement) int {
	switch s.(type) {
	case *PrepareStatement:
		return 0
	case *ConfirmStatement:
		return 1
	case *ExternalizeStatement:
		return 2
	}
	return -1
}

// isNewerBallotStatement reports whether n supersedes o: a later phase,
// or the same phase with more information (spec.md §5: "statements from
// one node are processed in receipt order; only the latest per (node,
// protocol) is retained").
func isNewerBallotStatement(o, n Statement) bool {
	or, nr := statementRank(o), statementRank(n)
	if nr != or {
		return nr > or
	}
	switch old := o.(type) {
	case *PrepareStatement:
		nw := n.(*PrepareStatement)
		return CompareBallots(nw.B, old.B) > 0 || nw.NH > old.NH
	case *ConfirmStatement:
		nw := n.(*ConfirmStatement)
		return nw.NH > old.NH || (nw.NH == old.NH && nw.NCommit > old.NCommit)
	case *ExternalizeStatement:
		return false
	}
	return true
}

// ProcessEnvelope handles an incoming PREPARE/CONFIRM/EXTERNALIZE
// statement per spec.md §4.4.
func (bp *BallotProtocol) ProcessEnvelope(env *Envelope) EnvelopeState {
	st := env.Statement
	switch st.(type) {
	case *PrepareStatement, *ConfirmStatement, *ExternalizeStatement:
	default:
		return EnvelopeInvalid
	}
	if !isBallotSane(st) {
		return EnvelopeInvalid
	}
	if h, ok := QuorumSetHash(st); ok {
		if _, known := bp.resolveQS(h); !known {
			return EnvelopeInvalid
		}
	}

	node := st.NodeID()
	if old, had := bp.latestEnvelopes[node]; had && !isNewerBallotStatement(old.Statement, st) {
		return EnvelopeValid
	}
	bp.latestEnvelopes[node] = env

	if bp.phase == PhaseExternalize {
		return EnvelopeValid
	}

	bp.heardFromQuorumCheck()

	changed := false
	for _, q := range candidateBallotsFrom(st) {
		if bp.attemptAcceptPrepared(q) {
			changed = true
		}
		if bp.attemptConfirmPrepared(q) {
			changed = true
		}
		if bp.attemptAcceptCommit(q) {
			changed = true
		}
		if bp.attemptConfirmCommit(q) {
			changed = true
		}
		if bp.phase == PhaseExternalize {
			break
		}
	}

	for bp.phase != PhaseExternalize && bp.maybeBumpToVBlockingCounter() {
		changed = true
		q := bp.b
		bp.attemptAcceptPrepared(q)
		bp.attemptConfirmPrepared(q)
		bp.attemptAcceptCommit(q)
		bp.attemptConfirmCommit(q)
	}

	if changed {
		bp.emit()
	}
	return EnvelopeValid
}

func (bp *BallotProtocol) buildStatement() Statement {
	switch bp.phase {
	case PhasePrepare:
		st := &PrepareStatement{
			Node: bp.self.NodeID, Slot: bp.slotIndex, QuorumSetHash: bp.self.QSetHash,
			B: bp.b, NC: bp.c.Counter, NH: bp.h.Counter,
		}
		if !bp.p.IsNull() {
			p := bp.p
			st.Prepared = &p
		}
		if !bp.pPrime.IsNull() {
			pp := bp.pPrime
			st.PreparedPrime = &pp
		}
		return st
	case PhaseConfirm:
		return &ConfirmStatement{
			Node: bp.self.NodeID, Slot: bp.slotIndex, QuorumSetHash: bp.self.QSetHash,
			Ballot:    Ballot{Counter: bp.h.Counter, Value: bp.h.Value},
			NPrepared: bp.p.Counter, NCommit: bp.c.Counter, NH: bp.h.Counter,
		}
	case PhaseExternalize:
		return &ExternalizeStatement{
			Node: bp.self.NodeID, Slot: bp.slotIndex,
			Commit: bp.c, NH: bp.h.Counter, CommitQuorumSetHash: bp.self.QSetHash,
		}
	}
	return nil
}

func statementsEqualBallot(a, b Statement) bool {
	switch av := a.(type) {
	case *PrepareStatement:
		bv, ok := b.(*PrepareStatement)
		if !ok {
			return false
		}
		return av.B.Equal(bv.B) && ballotPtrEqual(av.Prepared, bv.Prepared) &&
			ballotPtrEqual(av.PreparedPrime, bv.PreparedPrime) && av.NC == bv.NC && av.NH == bv.NH
	case *ConfirmStatement:
		bv, ok := b.(*ConfirmStatement)
		if !ok {
			return false
		}
		return av.Ballot.Equal(bv.Ballot) && av.NPrepared == bv.NPrepared && av.NCommit == bv.NCommit && av.NH == bv.NH
	case *ExternalizeStatement:
		bv, ok := b.(*ExternalizeStatement)
		if !ok {
			return false
		}
		return av.Commit.Equal(bv.Commit) && av.NH == bv.NH
	}
	return false
}

func ballotPtrEqual(a, b *Ballot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// emit re-emits the current state's statement, idempotently: re-running
// emit without an intervening state change is a no-op (spec.md §8,
// testable property 4).
func (bp *BallotProtocol) emit() {
	if bp.b.IsNull() {
		return
	}
	st := bp.buildStatement()
	if bp.lastEmitted != nil && statementsEqualBallot(bp.lastEmitted, st) {
		return
	}
	bp.lastEmitted = st
	env := &Envelope{Statement: st}
	env.Signature = bp.driver.SignEnvelope(env)
	bp.latestEnvelopes[bp.self.NodeID] = env
	bp.driver.EmitEnvelope(env)
}

// fail raises an InvariantViolation carrying a full state dump
// (scp/debug.go's Show), matching the teacher's habit of logging a
// fatal line backed by a spew-dumped state before giving up
// (consensus/chain.go's log.Printf/spew.Sdump pair, short of the
// log.Fatalf exit since this is a library, not a standalone process).
func (bp *BallotProtocol) fail(reason string) {
	bp.logger.Logf("scp", util.Shorten(bp.self.NodeID.String()), "invariant violation: %s", reason)
	panic(InvariantViolation{Reason: reason, State: bp.Show()})
}

// checkInvariants enforces spec.md §4.4's continuously-maintained
// invariants. A violation is fatal: it indicates a bug or memory
// corruption, per spec.md §7, so it panics with InvariantViolation
// rather than returning an error.
func (bp *BallotProtocol) checkInvariants() {
	if !bp.p.IsNull() && !bp.pPrime.IsNull() {
		if bp.p.Value.Equal(bp.pPrime.Value) {
			bp.fail("p and p' must not be compatible")
		}
		if bp.pPrime.Counter >= bp.p.Counter {
			bp.fail("p' must have a strictly lower counter than p")
		}
	}
	if bp.c.Counter != 0 {
		if bp.c.Counter > bp.h.Counter {
			bp.fail("c must be <= h")
		}
		if bp.h.Counter > bp.b.Counter {
			bp.fail("h must be <= b")
		}
		if !bp.c.Value.Equal(bp.h.Value) {
			bp.fail("c and h must share a value")
		}
	}
	if bp.phase == PhaseConfirm && bp.c.Counter == 0 {
		bp.fail("c must be non-null once in CONFIRM")
	}
	if bp.phase == PhaseExternalize && !bp.h.Equal(bp.c) {
		bp.fail("h must equal c once EXTERNALIZE")
	}
}

// Equal reports whether two ballots are identical in counter and value.
func (a Ballot) Equal(b Ballot) bool {
	return a.Counter == b.Counter && a.Value.Equal(b.Value)
}
