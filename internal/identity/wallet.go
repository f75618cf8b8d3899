package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math/big"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfoSigning = "zkchat/identity/signing/v1"

// NewAccount creates a fresh account: a BIP-39 mnemonic the user keeps, and
// the P-256 signing key derived from it.
func NewAccount() (string, *SigningKey, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, err
	}
	key, err := ImportAccount(mnemonic)
	if err != nil {
		return "", nil, err
	}
	return mnemonic, key, nil
}

// ImportAccount rebuilds the signing key from a mnemonic. The same mnemonic
// always yields the same key.
func ImportAccount(mnemonic string) (*SigningKey, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seedBytes := bip39.NewSeed(mnemonic, "")
	scalar, err := hkdfExpand(seedBytes, hkdfInfoSigning, 32)
	if err != nil {
		return nil, err
	}
	return signingKeyFromScalar(new(big.Int).SetBytes(scalar))
}

// ImportSigningKeyHex restores a signing key from its raw scalar in hex.
func ImportSigningKeyHex(privHex string) (*SigningKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(privHex))
	if err != nil || len(raw) == 0 || len(raw) > 32 {
		return nil, ErrKeyDerivation
	}
	return signingKeyFromScalar(new(big.Int).SetBytes(raw))
}

// Address is the short public handle for the pseudonymous path: the last 20
// bytes of the SHA-256 of the uncompressed public point, 0x-prefixed.
func (k *SigningKey) Address() string {
	if k == nil || k.priv == nil {
		return ""
	}
	raw := elliptic.Marshal(k.priv.Curve, k.priv.PublicKey.X, k.priv.PublicKey.Y)
	sum := sha256.Sum256(raw[1:])
	return "0x" + hex.EncodeToString(sum[12:])
}

// ExportHex returns the raw private scalar in hex for backup flows.
func (k *SigningKey) ExportHex() string {
	if k == nil || k.priv == nil {
		return ""
	}
	out := make([]byte, 32)
	k.priv.D.FillBytes(out)
	return hex.EncodeToString(out)
}

func signingKeyFromScalar(d *big.Int) (*SigningKey, error) {
	curve := elliptic.P256()
	n := curve.Params().N
	d = new(big.Int).Set(d)
	if d.Cmp(n) >= 0 {
		d.Mod(d, n)
	}
	if d.Sign() == 0 {
		return nil, ErrKeyDerivation
	}

	x, y, err := scalarBasePoint(d)
	if err != nil {
		return nil, ErrKeyDerivation
	}
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}
	return &SigningKey{priv: priv}, nil
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
