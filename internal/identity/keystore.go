package identity

import (
	"zkchat/go-client/internal/securestore"
)

// keystoreRecord is the sealed on-disk shape. Only the signing scalar is
// stored; everything else is re-derived on load.
type keystoreRecord struct {
	Version int    `json:"version"`
	Scalar  string `json:"scalar"`
}

const keystoreVersion = 1

// SaveKeystore seals the signing key to path under the passphrase.
func SaveKeystore(path, passphrase string, key *SigningKey) error {
	if key == nil || key.priv == nil {
		return ErrKeyDerivation
	}
	record := keystoreRecord{Version: keystoreVersion, Scalar: key.ExportHex()}
	return securestore.WriteEncryptedJSON(path, passphrase, record)
}

// LoadKeystore restores a signing key sealed by SaveKeystore.
func LoadKeystore(path, passphrase string) (*SigningKey, error) {
	var record keystoreRecord
	if err := securestore.ReadDecryptedJSON(path, passphrase, &record); err != nil {
		return nil, err
	}
	if record.Version != keystoreVersion {
		return nil, ErrInvalidBackup
	}
	return ImportSigningKeyHex(record.Scalar)
}
