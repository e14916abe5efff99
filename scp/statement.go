// Package scp implements the per-slot nomination and ballot state
// machines of the federated Byzantine agreement protocol (spec.md §4),
// plus the Slot/SCP top-level that owns them and routes envelopes.
package scp

import (
	"fmt"

	"github.com/bosagora/agora/ids"
)

// StatementType tags the four pledge variants an SCPStatement can carry.
type StatementType int

const (
	PrepareType StatementType = iota
	ConfirmType
	ExternalizeType
	NominateType
)

func (t StatementType) String() string {
	switch t {
	case PrepareType:
		return "PREPARE"
	case ConfirmType:
		return "CONFIRM"
	case ExternalizeType:
		return "EXTERNALIZE"
	case NominateType:
		return "NOMINATE"
	default:
		return "UNKNOWN"
	}
}

// Infinity is the ballot counter stellar-core calls UINT32_MAX, used by
// CONFIRM/EXTERNALIZE statements to mean "h.counter is effectively
// unbounded" once a value has externalized.
const Infinity uint32 = ^uint32(0)

// Ballot is a (counter, value) pair. A zero counter means "null" / no
// ballot; counter zero is never emitted on the wire.
type Ballot struct {
	Counter uint32
	Value   ids.Value
}

// IsNull reports whether b is the absent ballot.
func (b Ballot) IsNull() bool {
	return b.Counter == 0
}

// Compatible reports whether a and b carry the same value (vacuously
// true if either is null, matching stellar-core's areBallotsCompatible).
func (a Ballot) Compatible(b Ballot) bool {
	if a.IsNull() || b.IsNull() {
		return true
	}
	return a.Value.Equal(b.Value)
}

// CompareBallots orders ballots lexicographically: counter, then value.
// Returns -1, 0, or 1.
func CompareBallots(a, b Ballot) int {
	switch {
	case a.Counter < b.Counter:
		return -1
	case a.Counter > b.Counter:
		return 1
	}
	switch {
	case string(a.Value) < string(b.Value):
		return -1
	case string(a.Value) > string(b.Value):
		return 1
	}
	return 0
}

// LessThan reports whether a < b under CompareBallots.
func (a Ballot) LessThan(b Ballot) bool { return CompareBallots(a, b) < 0 }

// AtLeast reports whether a >= b under CompareBallots.
func (a Ballot) AtLeast(b Ballot) bool { return CompareBallots(a, b) >= 0 }

// Statement is the common surface of the four pledge variants. Pledges
// is a tagged sum type in spec.md §3; here it is expressed as an
// interface with one concrete type per variant, the way the teacher
// expresses its PrepareMessage/ConfirmMessage/ExternalizeMessage/
// NominationMessage as distinct structs behind a common Message
// interface (network/scp.go).
type Statement interface {
	NodeID() ids.NodeID
	SlotIndex() uint64
	Type() StatementType
	fmt.Stringer
}

// PrepareStatement is the PREPARE pledge.
type PrepareStatement struct {
	Node          ids.NodeID
	Slot          uint64
	QuorumSetHash ids.Hash
	B             Ballot
	Prepared      *Ballot
	PreparedPrime *Ballot
	NC            uint32
	NH            uint32
}

func (s *PrepareStatement) NodeID() ids.NodeID    { return s.Node }
func (s *PrepareStatement) SlotIndex() uint64     { return s.Slot }
func (s *PrepareStatement) Type() StatementType   { return PrepareType }
func (s *PrepareStatement) String() string {
	return fmt.Sprintf("PREPARE b=%v p=%v p'=%v c=%d h=%d", s.B, s.Prepared, s.PreparedPrime, s.NC, s.NH)
}

// ConfirmStatement is the CONFIRM pledge. Ballot.Counter is Infinity
// once h.Counter has reached Infinity (spec.md §4.4 emission rules).
type ConfirmStatement struct {
	Node          ids.NodeID
	Slot          uint64
	QuorumSetHash ids.Hash
	Ballot        Ballot
	NPrepared     uint32
	NCommit       uint32
	NH            uint32
}

func (s *ConfirmStatement) NodeID() ids.NodeID  { return s.Node }
func (s *ConfirmStatement) SlotIndex() uint64   { return s.Slot }
func (s *ConfirmStatement) Type() StatementType { return ConfirmType }
func (s *ConfirmStatement) String() string {
	return fmt.Sprintf("CONFIRM b=%v np=%d nc=%d nh=%d", s.Ballot, s.NPrepared, s.NCommit, s.NH)
}

// ExternalizeStatement is the EXTERNALIZE pledge, the terminal phase.
type ExternalizeStatement struct {
	Node                ids.NodeID
	Slot                uint64
	Commit              Ballot
	NH                  uint32
	CommitQuorumSetHash ids.Hash
}

func (s *ExternalizeStatement) NodeID() ids.NodeID  { return s.Node }
func (s *ExternalizeStatement) SlotIndex() uint64   { return s.Slot }
func (s *ExternalizeStatement) Type() StatementType { return ExternalizeType }
func (s *ExternalizeStatement) String() string {
	return fmt.Sprintf("EXTERNALIZE commit=%v nh=%d", s.Commit, s.NH)
}

// NominateStatement is the NOMINATE pledge. Votes and Accepted must be
// sorted by the host's CompareValues order and deduplicated.
type NominateStatement struct {
	Node          ids.NodeID
	Slot          uint64
	QuorumSetHash ids.Hash
	Votes         []ids.Value
	Accepted      []ids.Value
}

func (s *NominateStatement) NodeID() ids.NodeID  { return s.Node }
func (s *NominateStatement) SlotIndex() uint64   { return s.Slot }
func (s *NominateStatement) Type() StatementType { return NominateType }
func (s *NominateStatement) String() string {
	return fmt.Sprintf("NOMINATE votes=%v accepted=%v", s.Votes, s.Accepted)
}

// Envelope pairs a statement with its (opaque, host-verified) signature.
type Envelope struct {
	Statement Statement
	Signature ids.Signature
}

// QuorumSetHash returns the quorum-set hash referenced by the
// envelope's statement, regardless of pledge type.
func QuorumSetHash(s Statement) (ids.Hash, bool) {
	switch st := s.(type) {
	case *PrepareStatement:
		return st.QuorumSetHash, true
	case *ConfirmStatement:
		return st.QuorumSetHash, true
	case *ExternalizeStatement:
		return st.CommitQuorumSetHash, true
	case *NominateStatement:
		return st.QuorumSetHash, true
	}
	return ids.Hash{}, false
}

// hasValue reports whether vs contains v, using the host comparator.
func hasValue(vs []ids.Value, v ids.Value, cmp func(a, b ids.Value) int) bool {
	for _, x := range vs {
		if cmp(x, v) == 0 {
			return true
		}
	}
	return false
}
