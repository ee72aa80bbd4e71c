// Package secretvault wraps the external identity and secure-storage
// collaborators. The delegation-token format and the node wire protocol are
// vendor-owned; everything here treats them as opaque request/response
// functions with JSON bodies.
package secretvault

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidPrivateKey is returned when an imported key cannot be parsed.
var ErrInvalidPrivateKey = errors.New("invalid private key")

// didPrefix is the DID method prefix for identities on the storage network.
const didPrefix = "did:nil:"

// Keypair is the vendor identity: a signing key and the DID derived from its
// public half. Implementations must never write the private key to durable
// storage themselves.
type Keypair interface {
	// DID returns the decentralized identifier derived from the public key.
	DID() string

	// PrivateKeyHex returns the hex-encoded raw private key, for
	// encryption-at-rest by the key vault.
	PrivateKeyHex() string

	// Sign signs a message with the private key.
	Sign(message []byte) []byte
}

type keypair struct {
	priv ed25519.PrivateKey
	did  string
}

// Generate creates a fresh keypair.
func Generate() (Keypair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return fromSeed(seed), nil
}

// FromHex reconstructs a keypair from a hex-encoded 32-byte private key, as
// produced by PrivateKeyHex or pasted by the user on import.
func FromHex(privHex string) (Keypair, error) {
	seed, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidPrivateKey, ed25519.SeedSize, len(seed))
	}
	return fromSeed(seed), nil
}

func fromSeed(seed []byte) Keypair {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &keypair{
		priv: priv,
		did:  didPrefix + hex.EncodeToString(pub),
	}
}

func (k *keypair) DID() string { return k.did }

func (k *keypair) PrivateKeyHex() string {
	return hex.EncodeToString(k.priv.Seed())
}

func (k *keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}
