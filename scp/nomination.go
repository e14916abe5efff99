package scp

import (
	"time"

	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
	"github.com/bosagora/agora/util"
)

// baseNominationTimeoutSeconds is the fixed part of the nomination
// re-bump timer: base_timeout + round seconds, spec.md §4.3.
const baseNominationTimeoutSeconds = 1

// NominationProtocol runs the per-slot nomination rounds that converge
// on a single composite candidate value (spec.md §4.3).
type NominationProtocol struct {
	slotIndex uint64
	self      *LocalNode
	driver    Driver
	logger    util.Logger
	resolveQS func(ids.Hash) (qset.QuorumSet, bool)
	onCandidate func(ids.Value)

	round            uint32
	votes            *ValueSet
	accepted         *ValueSet
	candidates       *ValueSet
	latestCompositeCandidate ids.Value
	haveComposite    bool
	roundLeaders     map[ids.NodeID]bool
	nominationStarted bool
	externalized     bool

	previousValue ids.Value
	cmpPrev       ids.Value
	cmpRound      uint32

	latestEnvelopes map[ids.NodeID]*Envelope
	lastEmitted     *NominateStatement
}

// NewNominationProtocol constructs an idle nomination protocol for one
// slot. onCandidate, supplied by the owning Slot, is invoked every time
// latestCompositeCandidate is recomputed, handing the new composite to
// the ballot protocol.
func NewNominationProtocol(
	slotIndex uint64,
	self *LocalNode,
	driver Driver,
	logger util.Logger,
	resolveQS func(ids.Hash) (qset.QuorumSet, bool),
	onCandidate func(ids.Value),
) *NominationProtocol {
	return &NominationProtocol{
		slotIndex:       slotIndex,
		self:            self,
		driver:          driver,
		logger:          logger,
		resolveQS:       resolveQS,
		onCandidate:     onCandidate,
		latestEnvelopes: make(map[ids.NodeID]*Envelope),
	}
}

// cmp is the comparator used to keep votes/accepted/candidates
// internally ordered. gods/treeset requires a stable comparator for the
// lifetime of the set; driver.CompareValues is round-biased (spec.md
// §4.3), so the round and previous-value arguments are pinned at the
// values in effect when nomination first started for this slot rather
// than re-bound on every round bump.
func (np *NominationProtocol) cmp(a, b ids.Value) int {
	return np.driver.CompareValues(np.slotIndex, np.cmpPrev, np.cmpRound, a, b)
}

// Externalize marks this protocol's slot as decided; nomination stops
// contributing once the ballot protocol has externalized (spec.md §4.3).
func (np *NominationProtocol) Externalize() {
	np.externalized = true
}

// LatestCompositeCandidate returns the latest confirmed composite value
// and whether one has ever been computed.
func (np *NominationProtocol) LatestCompositeCandidate() (ids.Value, bool) {
	return np.latestCompositeCandidate, np.haveComposite
}

func (np *NominationProtocol) ensureStarted(previousValue ids.Value) {
	if np.nominationStarted {
		return
	}
	np.nominationStarted = true
	np.votes = NewValueSet(np.cmp)
	np.accepted = NewValueSet(np.cmp)
	np.candidates = NewValueSet(np.cmp)
	np.roundLeaders = make(map[ids.NodeID]bool)
	np.previousValue = previousValue
	np.cmpPrev = previousValue
	np.cmpRound = 1
}

// updateRoundLeaders recomputes the priority/neighbor hashes (spec.md
// §4.3) for every node in self's quorum set and sets roundLeaders to
// the neighbors maximizing priority.
func (np *NominationProtocol) updateRoundLeaders() {
	leaders := make(map[ids.NodeID]bool)
	var best uint64
	first := true
	for _, v := range qset.AllValidators(np.self.QSet) {
		w := qset.Weight(np.self.QSet, v)
		if !neighbor(np.slotIndex, np.previousValue, np.round, v, w) {
			continue
		}
		p := priority(np.slotIndex, np.previousValue, np.round, v)
		switch {
		case first || p > best:
			best = p
			first = false
			leaders = map[ids.NodeID]bool{v: true}
		case p == best:
			leaders[v] = true
		}
	}
	np.roundLeaders = leaders
}

// Nominate starts (round=1) or bumps (round+=1) the nomination process
// for value, given the previously externalized value for the slot. It
// returns whether any local state changed.
func (np *NominationProtocol) Nominate(value ids.Value, previousValue ids.Value) bool {
	if np.externalized {
		return false
	}
	first := !np.nominationStarted
	np.ensureStarted(previousValue)
	if first {
		np.round = 1
	} else {
		np.round++
	}
	np.previousValue = previousValue
	np.updateRoundLeaders()

	updated := false
	if np.roundLeaders[np.self.NodeID] {
		if np.driver.ValidateValue(np.slotIndex, value, true) == ValueInvalid {
			np.logger.Logf("nomination", util.Shorten(np.self.NodeID.String()), "host rejected local nomination value, dropping")
		} else if np.votes.Add(value) {
			updated = true
		}
	}
	for leader := range np.roundLeaders {
		if leader == np.self.NodeID {
			continue
		}
		env, ok := np.latestEnvelopes[leader]
		if !ok {
			continue
		}
		st := env.Statement.(*NominateStatement)
		for _, v := range st.Accepted {
			if np.driver.ValidateValue(np.slotIndex, v, true) == ValueInvalid {
				continue
			}
			if np.votes.Add(v) {
				updated = true
			}
		}
	}

	delay := time.Duration(baseNominationTimeoutSeconds+np.round) * time.Second
	round := np.round
	np.driver.SetupTimer(np.slotIndex, NominationTimer, delay, func() {
		np.Nominate(value, np.previousValue)
	})
	_ = round

	if updated {
		np.driver.NominatingValue(np.slotIndex, value)
		np.emit()
	}
	return updated
}

// nodeVotesOrAccepts reports whether n's latest statement lists x in
// either its votes or its accepted list (self consults its own sets).
func (np *NominationProtocol) nodeVotesOrAccepts(n ids.NodeID, x ids.Value) bool {
	if n == np.self.NodeID {
		return (np.votes != nil && np.votes.Contains(x)) || (np.accepted != nil && np.accepted.Contains(x))
	}
	env, ok := np.latestEnvelopes[n]
	if !ok {
		return false
	}
	st := env.Statement.(*NominateStatement)
	return hasValue(st.Votes, x, np.cmp) || hasValue(st.Accepted, x, np.cmp)
}

// nodeAccepts reports whether n's latest statement lists x as accepted.
func (np *NominationProtocol) nodeAccepts(n ids.NodeID, x ids.Value) bool {
	if n == np.self.NodeID {
		return np.accepted != nil && np.accepted.Contains(x)
	}
	env, ok := np.latestEnvelopes[n]
	if !ok {
		return false
	}
	st := env.Statement.(*NominateStatement)
	return hasValue(st.Accepted, x, np.cmp)
}

func (np *NominationProtocol) getQSetFor(n ids.NodeID) (qset.QuorumSet, bool) {
	if n == np.self.NodeID {
		return np.self.QSet, true
	}
	env, ok := np.latestEnvelopes[n]
	if !ok {
		return qset.QuorumSet{}, false
	}
	st := env.Statement.(*NominateStatement)
	return np.resolveQS(st.QuorumSetHash)
}

// knownNodes returns self plus every node we've heard a NOMINATE from.
func (np *NominationProtocol) knownNodes() []ids.NodeID {
	out := make([]ids.NodeID, 0, len(np.latestEnvelopes)+1)
	out = append(out, np.self.NodeID)
	for n := range np.latestEnvelopes {
		out = append(out, n)
	}
	return out
}

// isNominationSane enforces spec.md §4.3's sanity rule: votes and
// accepted are not both empty, and each is sorted and deduplicated
// under cmp.
func isNominationSane(st *NominateStatement, cmp func(a, b ids.Value) int) bool {
	if len(st.Votes) == 0 && len(st.Accepted) == 0 {
		return false
	}
	if !sortedNoDupes(st.Votes, cmp) || !sortedNoDupes(st.Accepted, cmp) {
		return false
	}
	return true
}

func sortedNoDupes(vs []ids.Value, cmp func(a, b ids.Value) int) bool {
	for i := 1; i < len(vs); i++ {
		if cmp(vs[i-1], vs[i]) >= 0 {
			return false
		}
	}
	return true
}

// ProcessEnvelope handles an incoming NOMINATE statement, per the
// algorithm in spec.md §4.3. It returns the envelope's acceptance
// outcome; EnvelopeInvalid statements cause no state change.
func (np *NominationProtocol) ProcessEnvelope(env *Envelope) EnvelopeState {
	st, ok := env.Statement.(*NominateStatement)
	if !ok {
		return EnvelopeInvalid
	}
	if !isNominationSane(st, np.cmp) {
		return EnvelopeInvalid
	}
	if np.externalized {
		return EnvelopeValid
	}
	np.ensureStarted(np.previousValue)

	node := st.Node
	if old, had := np.latestEnvelopes[node]; had {
		oldSt := old.Statement.(*NominateStatement)
		if len(st.Votes) < len(oldSt.Votes) || len(st.Accepted) < len(oldSt.Accepted) {
			return EnvelopeInvalid
		}
		if len(st.Votes) == len(oldSt.Votes) && len(st.Accepted) == len(oldSt.Accepted) {
			return EnvelopeValid
		}
	}
	np.latestEnvelopes[node] = env

	candidates := np.knownNodes()
	changed := false

	union := make([]ids.Value, 0, len(st.Votes)+len(st.Accepted))
	union = append(union, st.Votes...)
	for _, a := range st.Accepted {
		if !hasValue(union, a, np.cmp) {
			union = append(union, a)
		}
	}

	// HostRejectedValue (spec.md §7): a value the host's ValidateValue
	// rejects outright is dropped here, before it can ever be voted or
	// accepted — a byzantine peer cannot force a malformed value through
	// federated accept just by putting it in a NOMINATE statement.
	for _, x := range union {
		if np.accepted.Contains(x) {
			continue
		}
		if np.driver.ValidateValue(np.slotIndex, x, true) == ValueInvalid {
			np.logger.Logf("nomination", util.Shorten(st.Node.String()), "host rejected nominated value from peer, dropping")
			continue
		}
		votedOrAccepted := func(n ids.NodeID) bool { return np.nodeVotesOrAccepts(n, x) }
		accepted := func(n ids.NodeID) bool { return np.nodeAccepts(n, x) }
		if FederatedAccept(candidates, votedOrAccepted, accepted, np.self, np.getQSetFor) {
			np.accepted.Add(x)
			np.votes.Add(x)
			changed = true
		}
	}

	for _, x := range np.accepted.Values() {
		if np.candidates.Contains(x) {
			continue
		}
		accepted := func(n ids.NodeID) bool { return np.nodeAccepts(n, x) }
		if !FederatedConfirm(candidates, accepted, np.getQSetFor) {
			continue
		}
		// A MaybeValid value may be voted and accepted during nomination,
		// but spec.md §7 only lets it reach candidates (and from there,
		// externalization) once ExtractValidValue coerces it to a fully
		// valid one; a value that cannot be extracted never becomes a
		// candidate.
		cv := x
		if np.driver.ValidateValue(np.slotIndex, x, true) == ValueMaybeValid {
			extracted, ok := np.driver.ExtractValidValue(np.slotIndex, x)
			if !ok {
				np.logger.Logf("nomination", util.Shorten(np.self.NodeID.String()), "could not extract a fully valid value, candidate dropped")
				continue
			}
			cv = extracted
		}
		np.candidates.Add(cv)
		changed = true
		np.recomputeComposite()
	}

	if changed {
		np.emit()
	}
	return EnvelopeValid
}

func (np *NominationProtocol) recomputeComposite() {
	vals := np.candidates.Values()
	composite := np.driver.CombineCandidates(np.slotIndex, vals)
	np.latestCompositeCandidate = composite
	np.haveComposite = true
	np.driver.UpdatedCandidateValue(np.slotIndex, composite)
	if np.onCandidate != nil {
		np.onCandidate(composite)
	}
}

func (np *NominationProtocol) emit() {
	st := &NominateStatement{
		Node:          np.self.NodeID,
		Slot:          np.slotIndex,
		QuorumSetHash: np.self.QSetHash,
		Votes:         np.votes.Values(),
		Accepted:      np.accepted.Values(),
	}
	if np.lastEmitted != nil && statementsEqual(np.lastEmitted, st, np.cmp) {
		return
	}
	np.lastEmitted = st
	env := &Envelope{Statement: st}
	env.Signature = np.driver.SignEnvelope(env)
	np.latestEnvelopes[np.self.NodeID] = env
	np.driver.EmitEnvelope(env)
}

func statementsEqual(a, b *NominateStatement, cmp func(x, y ids.Value) int) bool {
	if len(a.Votes) != len(b.Votes) || len(a.Accepted) != len(b.Accepted) {
		return false
	}
	for i := range a.Votes {
		if cmp(a.Votes[i], b.Votes[i]) != 0 {
			return false
		}
	}
	for i := range a.Accepted {
		if cmp(a.Accepted[i], b.Accepted[i]) != 0 {
			return false
		}
	}
	return true
}
