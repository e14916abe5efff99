// Package util carries the small ambient helpers the SCP core and its
// tests lean on: logging, a reference signer, and test-loop sizing.
// None of this is part of the consensus algorithm itself.
package util

import (
	"bytes"
	"crypto"
	"crypto/rand"

	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/sha3"
)

// KeyPair is a reference ed25519 signer, used only by the test driver in
// scp/testdriver_test.go. Production hosts supply their own signer via the
// scp.Driver interface; the core never constructs a KeyPair itself.
type KeyPair struct {
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// NewKeyPair generates a key pair at random.
func NewKeyPair() *KeyPair {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return &KeyPair{publicKey: pub, privateKey: priv}
}

// NewKeyPairFromSecretPhrase derives a deterministic key pair from a
// passphrase, for use in repeatable tests. The SHA3-512 of the phrase is
// the entropy source; ed25519 key generation reads its first 32 bytes as
// the seed.
func NewKeyPairFromSecretPhrase(phrase string) *KeyPair {
	h := sha3.New512()
	h.Write([]byte(phrase))
	seed := h.Sum(nil)
	pub, priv, err := ed25519.GenerateKey(bytes.NewReader(seed))
	if err != nil {
		panic(err)
	}
	return &KeyPair{publicKey: pub, privateKey: priv}
}

// Public returns the raw public key bytes.
func (kp *KeyPair) Public() ed25519.PublicKey {
	return kp.publicKey
}

// Sign signs a message, returning a 64-byte ed25519 signature.
func (kp *KeyPair) Sign(message []byte) [64]byte {
	sig, err := kp.privateKey.Sign(rand.Reader, message, crypto.Hash(0))
	if err != nil {
		panic(err)
	}
	var out [64]byte
	copy(out[:], sig)
	return out
}

// Verify checks an ed25519 signature against a raw 32-byte public key.
func Verify(publicKey [32]byte, message []byte, signature [64]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(publicKey[:]), message, signature[:])
}
