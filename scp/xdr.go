package scp

import (
	"encoding/binary"

	"github.com/bosagora/agora/ids"
)

// encodeArgs is the deterministic, length-prefixed, fixed-field-order
// binary encoder used only to build the byte string that hashHelper
// hashes (scp/hash.go). It is explicitly not bit-exact with real
// Stellar XDR: spec.md §6 permits any equivalent encoding for a core
// that never needs to interoperate with a live Stellar/Agora network,
// which this one doesn't (see DESIGN.md).
func encodeArgs(slotIndex uint64, prev ids.Value, domain byte, round uint32, node ids.NodeID) []byte {
	buf := make([]byte, 0, 8+8+len(prev)+1+4+8)
	buf = appendUint64(buf, slotIndex)
	buf = appendUint64(buf, uint64(len(prev)))
	buf = append(buf, prev...)
	buf = append(buf, domain)
	buf = appendUint32(buf, round)
	buf = appendUint64(buf, uint64(node))
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
