package scp

import (
	"time"

	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
)

// ValidationLevel is the result of the host's ValidateValue, spec.md §6.
type ValidationLevel int

const (
	ValueInvalid ValidationLevel = iota
	ValueMaybeValid
	ValueFullyValid
)

// EnvelopeState is the outcome of Engine.ReceiveEnvelope, spec.md §4.5.
type EnvelopeState int

const (
	EnvelopeValid EnvelopeState = iota
	EnvelopeInvalid
	EnvelopeSkippedSelf
)

// TimerID distinguishes the nomination timer from the ballot timer so a
// host can arm/cancel them independently (spec.md §4.3, §4.4).
type TimerID int

const (
	NominationTimer TimerID = iota
	BallotTimer
)

// Driver is the capability interface the host application must supply.
// It plays the role of stellar-core's SCPDriver virtual-dispatch class
// (spec.md §9): every operation the core needs from the outside world —
// signing, verification, timers, value semantics — is a method here.
// There is no process-wide global standing in for any of it.
type Driver interface {
	// SignEnvelope signs env.Statement and returns the signature to
	// attach before it is emitted.
	SignEnvelope(env *Envelope) ids.Signature

	// VerifyEnvelope checks env.Signature against env.Statement.
	VerifyEnvelope(env *Envelope) bool

	// GetQuorumSet resolves a quorum-set hash referenced by an incoming
	// statement. ok is false if the host hasn't (yet) supplied it. The
	// ballot protocol then rejects the statement as EnvelopeInvalid, and
	// the nomination protocol cannot count its sender towards a quorum.
	// The statement is not buffered: once the host supplies the set, the
	// statement has to be received again.
	GetQuorumSet(hash ids.Hash) (qset.QuorumSet, bool)

	// EmitEnvelope hands a freshly-signed envelope to the host for
	// transmission. May be called reentrantly from within ReceiveEnvelope.
	EmitEnvelope(env *Envelope)

	// ValidateValue judges whether v is an acceptable application value.
	// nomination is true when called from the nomination protocol (where
	// MaybeValid is acceptable) and false from the ballot protocol (where
	// only FullyValid may externalize).
	ValidateValue(slot uint64, v ids.Value, nomination bool) ValidationLevel

	// ExtractValidValue coerces a MaybeValid value into a FullyValid one,
	// or reports that it cannot.
	ExtractValidValue(slot uint64, v ids.Value) (ids.Value, bool)

	// CombineCandidates deterministically composes a set of confirmed
	// nomination candidates into the single value the ballot protocol
	// will vote on.
	CombineCandidates(slot uint64, candidates []ids.Value) ids.Value

	// CompareValues is the deterministic, round-biased total order used
	// to sort NOMINATE vote/accept lists and to order ValueSets.
	CompareValues(slot uint64, prev ids.Value, round uint32, v1, v2 ids.Value) int

	// ComputeTimeout returns the ballot-protocol timer duration for the
	// given ballot counter (spec.md §4.4: min(counter, 1800) seconds).
	ComputeTimeout(counter uint32) time.Duration

	// SetupTimer arms (or, with a zero delay, cancels) a timer for the
	// given slot/timer id. Arming a new timer for the same (slot, id)
	// supersedes any previously armed one.
	SetupTimer(slot uint64, timerID TimerID, delay time.Duration, cb func())

	Observer
}

// Observer is the set of optional host callbacks fired as the protocol
// advances. A host with nothing to do for a given hook embeds
// BaseObserver and only overrides the ones it cares about.
type Observer interface {
	ValueExternalized(slot uint64, v ids.Value)
	NominatingValue(slot uint64, v ids.Value)
	UpdatedCandidateValue(slot uint64, v ids.Value)
	StartedBallotProtocol(slot uint64, b Ballot)
	AcceptedBallotPrepared(slot uint64, b Ballot)
	ConfirmedBallotPrepared(slot uint64, b Ballot)
	AcceptedCommit(slot uint64, b Ballot)
	BallotDidHearFromQuorum(slot uint64, b Ballot)
}

// BaseObserver implements Observer with no-ops. Embed it in a Driver
// implementation to pick and choose which hooks to override, mirroring
// spec.md §9's "thin adapter" design note for the virtual-dispatch
// SCPDriver surface.
type BaseObserver struct{}

func (BaseObserver) ValueExternalized(uint64, ids.Value)        {}
func (BaseObserver) NominatingValue(uint64, ids.Value)           {}
func (BaseObserver) UpdatedCandidateValue(uint64, ids.Value)     {}
func (BaseObserver) StartedBallotProtocol(uint64, Ballot)        {}
func (BaseObserver) AcceptedBallotPrepared(uint64, Ballot)       {}
func (BaseObserver) ConfirmedBallotPrepared(uint64, Ballot)      {}
func (BaseObserver) AcceptedCommit(uint64, Ballot)               {}
func (BaseObserver) BallotDidHearFromQuorum(uint64, Ballot)      {}
