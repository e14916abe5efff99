package scp

import (
	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
	"github.com/bosagora/agora/util"
)

// Slot owns the nomination and ballot protocols for a single slot index,
// plus the quorum-set cache both protocols resolve `quorumSetHash`
// references against (spec.md §3, §4.5).
type Slot struct {
	index  uint64
	self   *LocalNode
	driver Driver
	logger util.Logger

	quorumSets map[ids.Hash]qset.QuorumSet

	nomination *NominationProtocol
	ballot     *BallotProtocol

	gotFirstCandidate bool
	externalized      bool
	externalValue     ids.Value
}

// NewSlot wires a fresh Slot: nomination's composite-candidate callback
// feeds the ballot protocol's entry point, and the ballot protocol's
// externalize callback stops nomination from contributing further
// (spec.md §4.3: "Nomination stops contributing once the ballot
// protocol has externalized").
func NewSlot(index uint64, self *LocalNode, driver Driver, logger util.Logger) *Slot {
	s := &Slot{
		index:      index,
		self:       self,
		driver:     driver,
		logger:     logger,
		quorumSets: make(map[ids.Hash]qset.QuorumSet),
	}
	s.quorumSets[self.QSetHash] = self.QSet
	s.ballot = NewBallotProtocol(index, self, driver, logger, s.resolveQSet, s.onExternalize)
	s.nomination = NewNominationProtocol(index, self, driver, logger, s.resolveQSet, s.onCandidate)
	return s
}

func (s *Slot) resolveQSet(h ids.Hash) (qset.QuorumSet, bool) {
	if q, ok := s.quorumSets[h]; ok {
		return q, true
	}
	q, ok := s.driver.GetQuorumSet(h)
	if !ok {
		return qset.QuorumSet{}, false
	}
	s.quorumSets[h] = q
	return q, true
}

func (s *Slot) onCandidate(v ids.Value) {
	if s.gotFirstCandidate {
		return
	}
	s.gotFirstCandidate = true
	s.ballot.BumpState(v)
}

func (s *Slot) onExternalize(v ids.Value) {
	s.externalized = true
	s.externalValue = v
	s.nomination.Externalize()
}

// Nominate boots or bumps nomination for this slot.
func (s *Slot) Nominate(value, previousValue ids.Value) bool {
	return s.nomination.Nominate(value, previousValue)
}

// ReceiveEnvelope verifies and dispatches an incoming envelope to the
// slot's nomination or ballot protocol by pledge type (spec.md §4.5).
func (s *Slot) ReceiveEnvelope(env *Envelope) EnvelopeState {
	if env.Statement.NodeID() == s.self.NodeID {
		return EnvelopeSkippedSelf
	}
	if !s.driver.VerifyEnvelope(env) {
		s.logger.Logf("scp", util.Shorten(env.Statement.NodeID().String()), "rejected envelope: signature verification failed")
		return EnvelopeInvalid
	}
	var state EnvelopeState
	switch env.Statement.(type) {
	case *NominateStatement:
		state = s.nomination.ProcessEnvelope(env)
	case *PrepareStatement, *ConfirmStatement, *ExternalizeStatement:
		state = s.ballot.ProcessEnvelope(env)
	default:
		state = EnvelopeInvalid
	}
	if state == EnvelopeInvalid {
		s.logger.Logf("scp", util.Shorten(env.Statement.NodeID().String()), "rejected envelope: malformed or insane statement")
	}
	return state
}

// IsExternalized reports whether this slot has reached EXTERNALIZE.
func (s *Slot) IsExternalized() bool { return s.externalized }

// ExternalizedValue returns the decided value, if any.
func (s *Slot) ExternalizedValue() (ids.Value, bool) {
	return s.externalValue, s.externalized
}

// GetLatestMessagesSend returns self's own latest nomination and ballot
// envelopes for this slot, for a host resuming or flooding state.
func (s *Slot) GetLatestMessagesSend() []*Envelope {
	var out []*Envelope
	if env, ok := s.nomination.latestEnvelopes[s.self.NodeID]; ok {
		out = append(out, env)
	}
	if env, ok := s.ballot.latestEnvelopes[s.self.NodeID]; ok {
		out = append(out, env)
	}
	return out
}

// SetStateFromEnvelope seeds this slot's own latest-statement cache
// from a previously-emitted envelope of self's, without running it
// through federated voting again — used by a host restoring state
// after a restart (spec.md §4.5).
func (s *Slot) SetStateFromEnvelope(env *Envelope) {
	if env.Statement.NodeID() != s.self.NodeID {
		return
	}
	switch env.Statement.(type) {
	case *NominateStatement:
		s.nomination.latestEnvelopes[s.self.NodeID] = env
	case *PrepareStatement, *ConfirmStatement, *ExternalizeStatement:
		s.ballot.latestEnvelopes[s.self.NodeID] = env
		if ex, ok := env.Statement.(*ExternalizeStatement); ok {
			s.ballot.phase = PhaseExternalize
			s.ballot.c = ex.Commit
			s.ballot.h = Ballot{Counter: ex.NH, Value: ex.Commit.Value}
			s.externalized = true
			s.externalValue = ex.Commit.Value
		}
	}
}

// ExternalizingState is the introspection snapshot getExternalizingState
// exposes: the slot's phase and decided value, if any (spec.md §4.5).
type ExternalizingState struct {
	SlotIndex    uint64
	Phase        Phase
	Externalized bool
	Value        ids.Value
}

// GetExternalizingState reports this slot's current ballot phase and,
// once reached, its decided value.
func (s *Slot) GetExternalizingState() ExternalizingState {
	return ExternalizingState{
		SlotIndex:    s.index,
		Phase:        s.ballot.phase,
		Externalized: s.externalized,
		Value:        s.externalValue,
	}
}
