package identity

import (
	"crypto/sha256"
	"math/big"

	"github.com/mr-tron/base58"
)

const backupVersion = 0x01

// ExportBackup serializes the signing key as a compact base58 string with a
// version byte and a 4-byte checksum, suitable for a paper or password
// manager backup. The derived ECDH and zk identities are intentionally not
// included: they are reconstructed from the signing key on import.
func ExportBackup(key *SigningKey) (string, error) {
	if key == nil || key.priv == nil {
		return "", ErrKeyDerivation
	}
	payload := make([]byte, 1+32)
	payload[0] = backupVersion
	key.priv.D.FillBytes(payload[1:])
	sum := sha256.Sum256(payload)
	return base58.Encode(append(payload, sum[:4]...)), nil
}

// ImportBackup restores a signing key exported by ExportBackup.
func ImportBackup(encoded string) (*SigningKey, error) {
	raw, err := base58.Decode(encoded)
	if err != nil || len(raw) != 1+32+4 {
		return nil, ErrInvalidBackup
	}
	payload, checksum := raw[:33], raw[33:]
	if payload[0] != backupVersion {
		return nil, ErrInvalidBackup
	}
	sum := sha256.Sum256(payload)
	for i := 0; i < 4; i++ {
		if sum[i] != checksum[i] {
			return nil, ErrInvalidBackup
		}
	}
	return signingKeyFromScalar(new(big.Int).SetBytes(payload[1:]))
}
