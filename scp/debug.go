package scp

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/bosagora/agora/ids"
)

// Show renders a ballot protocol's full internal state for diagnostics,
// the way the teacher's consensus.Chain dumps itself via spew.Sdump
// (consensus/chain.go) before logging a corruption. It is invoked from
// checkInvariants' panic path so an InvariantViolation carries a full
// state dump rather than just the violated-rule string.
func (bp *BallotProtocol) Show() string {
	return spew.Sdump(struct {
		Phase      Phase
		B, P, P1   Ballot
		C, H       Ballot
		Z          *ids.Value
	}{bp.phase, bp.b, bp.p, bp.pPrime, bp.c, bp.h, bp.z})
}
