// Package identity derives ledger addresses from ed25519 keys and signs
// access challenges on behalf of an owner.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// AddressFromPublicKey derives the hex ledger address: the last 20 bytes
// of the Keccak-256 digest of the public key, 0x-prefixed.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:])
}

// LocalSigner holds an in-process ed25519 key. It is meant for tests,
// tooling, and single-operator deployments; production custody sits
// behind the same Signer interface.
type LocalSigner struct {
	priv ed25519.PrivateKey
	addr string
}

// NewLocalSigner generates a fresh keypair.
func NewLocalSigner() (*LocalSigner, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return &LocalSigner{priv: priv, addr: AddressFromPublicKey(pub)}, nil
}

// FromSeed builds a deterministic signer from a 32-byte seed.
func FromSeed(seed []byte) (*LocalSigner, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &LocalSigner{priv: priv, addr: AddressFromPublicKey(pub)}, nil
}

// Address returns the signer's ledger address.
func (s *LocalSigner) Address() string { return s.addr }

// Sign signs the message with the held key.
func (s *LocalSigner) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

// PublicKey exposes the verification key for the address.
func (s *LocalSigner) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}
