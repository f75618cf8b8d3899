package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Fixed domain strings signed to seed each derived identity. The exact bytes
// are an interop contract: the same signing key must reconstruct the same
// derived material on any device.
const (
	seedMessageECDH = "signing for ecdh - 0"
	seedMessageZk   = "signing for zk identity - 0"

	tagNullifier = "identity_nullifier"
	tagTrapdoor  = "identity_trapdoor"
)

// DeriveECDHKeyPair deterministically expands the signing key into a
// secp256k1 key-agreement pair: sign a fixed domain string, hash the
// signature to a 256-bit seed, and interpret the seed as the private scalar.
func DeriveECDHKeyPair(key *SigningKey) (ECDHKeyPair, error) {
	seed, err := deriveSeed(key, seedMessageECDH)
	if err != nil {
		return ECDHKeyPair{}, err
	}
	priv := secp256k1.PrivKeyFromBytes(seed)
	pub := priv.PubKey().SerializeCompressed()
	return ECDHKeyPair{
		Pub:  hex.EncodeToString(pub),
		priv: priv.Serialize(),
	}, nil
}

// DeriveZkIdentity deterministically reconstructs the anonymous identity
// from the signing key alone. Referential transparency is the contract
// here: no randomness anywhere, so the user can regenerate the identical
// identity on a new device without ever storing it.
func DeriveZkIdentity(key *SigningKey) (ZkIdentity, error) {
	seed, err := deriveSeed(key, seedMessageZk)
	if err != nil {
		return ZkIdentity{}, err
	}
	nullifier := taggedHash(seed, tagNullifier)
	trapdoor := taggedHash(seed, tagTrapdoor)
	commitment := sha256.Sum256(append(nullifier, trapdoor...))
	return ZkIdentity{
		Nullifier:  hex.EncodeToString(nullifier),
		Trapdoor:   hex.EncodeToString(trapdoor),
		Commitment: hex.EncodeToString(commitment[:]),
	}, nil
}

func deriveSeed(key *SigningKey, domain string) ([]byte, error) {
	sig, err := key.Sign([]byte(domain))
	if err != nil {
		return nil, err
	}
	seed := sha256.Sum256(sig)
	return seed[:], nil
}

func taggedHash(seed []byte, tag string) []byte {
	h := sha256.New()
	h.Write(seed)
	h.Write([]byte(tag))
	return h.Sum(nil)
}
