// Package chat implements end-to-end encrypted direct messaging: shared-key
// derivation, the message cipher, and the per-peer conversation store.
package chat

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrDecryptionFailed = errors.New("ciphertext could not be decrypted")
	ErrInvalidSharedKey = errors.New("shared key is malformed")
	ErrInvalidPeerKey   = errors.New("peer ecdh public key is malformed")
)

const hkdfInfoDM = "zkchat/dm/v1"

// DeriveSharedKey runs secp256k1 ECDH between the peer's compressed public
// key (hex) and our private scalar, returning the shared secret x coordinate
// in hex. Symmetric by construction: (A.pub, B.priv) and (B.pub, A.priv)
// agree.
func DeriveSharedKey(peerPubHex string, ownPriv []byte) (string, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(peerPubHex))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPeerKey, err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPeerKey, err)
	}
	if len(ownPriv) != 32 {
		return "", ErrInvalidSharedKey
	}
	priv := secp256k1.PrivKeyFromBytes(ownPriv)
	shared := secp256k1.GenerateSharedSecret(priv, pub)
	return hex.EncodeToString(shared), nil
}

// Cipher performs authenticated encryption of direct-message payloads with
// XChaCha20-Poly1305. The raw ECDH secret is used directly as key material
// for compatibility with previously stored ciphertexts; hardened mode runs
// it through HKDF first and should be preferred for new conversations.
type Cipher struct {
	harden bool
}

func NewCipher() *Cipher { return &Cipher{} }

func NewHardenedCipher() *Cipher { return &Cipher{harden: true} }

// Encrypt seals plaintext under the hex shared key, returning
// base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext, sharedKeyHex string) (string, error) {
	aead, err := c.aead(sharedKeyHex)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any authentication
// failure, malformed input, or empty result is ErrDecryptionFailed; callers
// mark the message with EncryptionError rather than dropping it.
func (c *Cipher) Decrypt(ciphertext, sharedKeyHex string) (string, error) {
	aead, err := c.aead(sharedKeyHex)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) <= chacha20poly1305.NonceSizeX {
		return "", ErrDecryptionFailed
	}
	nonce, sealed := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil || len(plain) == 0 {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

func (c *Cipher) aead(sharedKeyHex string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(strings.TrimSpace(sharedKeyHex))
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidSharedKey
	}
	if c.harden {
		expanded := make([]byte, chacha20poly1305.KeySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(hkdfInfoDM)), expanded); err != nil {
			return nil, err
		}
		key = expanded
	}
	return chacha20poly1305.NewX(key)
}
