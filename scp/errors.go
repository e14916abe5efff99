package scp

import "fmt"

// InvariantViolation signals that an internal protocol invariant
// (spec.md §4.4's continuously-maintained ballot invariants, or §4.1's
// quorum-set invariants) has been broken. It is always a bug, never a
// byzantine-input condition, so it is raised as a panic rather than an
// error return, matching the teacher's AssertValid (log.Fatalf) for the
// same class of defect. A host embedding this engine should treat a
// recovered InvariantViolation as fatal to the process, not retryable.
type InvariantViolation struct {
	Reason string
	// State is a spew.Sdump of the ballot protocol at the moment the
	// invariant broke (scp/debug.go's BallotProtocol.Show), matching the
	// teacher's habit of dumping full state via spew before logging a
	// corruption (consensus/chain.go).
	State string
}

func (e InvariantViolation) Error() string {
	return fmt.Sprintf("scp: invariant violation: %s\n%s", e.Reason, e.State)
}

// NewInvariantViolation constructs an InvariantViolation with reason and
// no state dump, for callers that have no BallotProtocol to render.
func NewInvariantViolation(reason string) InvariantViolation {
	return InvariantViolation{Reason: reason}
}
