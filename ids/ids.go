// Package ids holds the primitive identity types shared by every other
// package in this module (qset, bitset, scp, qintersection). Keeping them
// in one leaf package avoids import cycles between the packages that all
// need to talk about "a node" or "a hash".
package ids

import "fmt"

// NodeID is an opaque public identity. Following the Agora variant of the
// original C++ source, it is a compact uint64 rather than a 32-byte
// public key, which gives equality, hashing, and total order for free
// and keeps the BitSet-indexed graph code in bitset/ and qintersection/
// simple.
type NodeID uint64

// String renders the NodeID in hex, for logging.
func (n NodeID) String() string {
	return fmt.Sprintf("%016x", uint64(n))
}

// Hash is a 64-byte opaque digest, matching the Agora variant's Hash type.
type Hash [64]byte

// String renders the first 8 bytes of the hash in hex, for logging.
func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:8])
}

// Signature is a 64-byte opaque signature, matching the Agora variant.
type Signature [64]byte

// Value is an opaque, immutable byte string nominated and balloted on by
// the protocol. The core never interprets its contents; validation,
// comparison, and combination are delegated to the host via scp.Driver.
type Value []byte

// Equal reports whether two values have identical bytes.
func (v Value) Equal(o Value) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders a value as its raw string form, for logging.
func (v Value) String() string {
	return string(v)
}
