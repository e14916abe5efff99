package scp

import (
	"crypto/sha512"
	"encoding/binary"

	"github.com/bosagora/agora/ids"
)

// Domain separation constants for hashHelper, spec.md §4.3/§6.
const (
	domainNeighbor byte = 1
	domainPriority byte = 2
	domainValue    byte = 3
)

// hashHelper is the 64-bit truncation of SHA-512 over the XDR-encoded
// arguments that spec.md §4.3 and §6 specify: big-endian 8-byte prefix
// of the digest.
func hashHelper(slotIndex uint64, prev ids.Value, domain byte, round uint32, node ids.NodeID) uint64 {
	sum := sha512.Sum512(encodeArgs(slotIndex, prev, domain, round, node))
	return binary.BigEndian.Uint64(sum[:8])
}

// neighbor reports whether v is a neighbor of self at round r: the
// H(slot, prev, 1, r, v) hash, read as a fraction of 2^64, falls below
// v's weight in self's quorum set.
func neighbor(slotIndex uint64, prev ids.Value, round uint32, v ids.NodeID, weight float64) bool {
	h := hashHelper(slotIndex, prev, domainNeighbor, round, v)
	threshold := weight * float64(^uint64(0))
	return float64(h) < threshold
}

// priority computes H(slot, prev, 2, r, v), the tie-break used to pick
// round leaders among the neighbors.
func priority(slotIndex uint64, prev ids.Value, round uint32, v ids.NodeID) uint64 {
	return hashHelper(slotIndex, prev, domainPriority, round, v)
}
