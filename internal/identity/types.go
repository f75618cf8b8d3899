package identity

import (
	"crypto/ecdsa"
	"errors"
)

var (
	ErrKeyDerivation   = errors.New("signing key is malformed")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidBackup   = errors.New("identity backup is invalid")
)

// SigningKey wraps the P-256 keypair that anchors a user account. It is
// created at account creation or import, held for the session, and never
// transmitted.
type SigningKey struct {
	priv *ecdsa.PrivateKey
}

// ECDHKeyPair is the secp256k1 key-agreement pair derived from the signing
// key. Public keys travel as compressed-point hex.
type ECDHKeyPair struct {
	Pub  string
	priv []byte
}

// PrivateKey returns the raw scalar for key agreement. Callers must not log
// or persist it outside the secure store.
func (k ECDHKeyPair) PrivateKey() []byte {
	return append([]byte(nil), k.priv...)
}

// ZkIdentity is the deterministic anonymous identity: the commitment is the
// group-tree leaf, the nullifier and trapdoor are the proving secrets. All
// three are 32-byte values in hex. Never logged, never sent in cleartext.
type ZkIdentity struct {
	Nullifier  string
	Trapdoor   string
	Commitment string
}

// Identity is the closed set of ways a user can authorize a message. Every
// authorization decision point switches over all three variants and treats
// anything else as an error, so a new variant cannot be silently skipped.
type Identity interface {
	identityVariant()
}

// Wallet posts pseudonymously: messages carry the address and a direct
// signature from the signing key.
type Wallet struct {
	Address string
	Key     *SigningKey
}

// GroupMember posts anonymously with an externally issued zk identity
// (for example an attestation-service group).
type GroupMember struct {
	GroupID string
	Zk      ZkIdentity
}

// DeterministicSeed posts anonymously with the zk identity derived from the
// user's own signing key, against a custom group.
type DeterministicSeed struct {
	GroupID string
	Zk      ZkIdentity
}

func (Wallet) identityVariant()            {}
func (GroupMember) identityVariant()       {}
func (DeterministicSeed) identityVariant() {}
