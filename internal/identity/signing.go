package identity

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

// Identity material is regenerated from signatures over fixed domain
// strings, so signing here must be referentially transparent: the same key
// and message always produce the same signature. Nonces follow RFC 6979
// (HMAC-SHA256 construction) instead of the randomized reader the standard
// library uses.

// Sign produces a deterministic P-256 ECDSA signature over data, returned as
// the 64-byte big-endian r||s concatenation.
func (k *SigningKey) Sign(data []byte) ([]byte, error) {
	if k == nil || k.priv == nil || k.priv.D == nil || k.priv.D.Sign() == 0 {
		return nil, ErrKeyDerivation
	}
	curve := k.priv.Curve
	n := curve.Params().N
	if k.priv.D.Cmp(n) >= 0 {
		return nil, ErrKeyDerivation
	}

	digest := sha256.Sum256(data)
	h := hashToInt(digest[:], n)

	var r, s *big.Int
	generateNonces(k.priv.D, digest[:], n, func(kInt *big.Int) bool {
		x, _, err := scalarBasePoint(kInt)
		if err != nil {
			return false
		}
		r = new(big.Int).Mod(x, n)
		if r.Sign() == 0 {
			return false
		}
		kInv := new(big.Int).ModInverse(kInt, n)
		s = new(big.Int).Mul(k.priv.D, r)
		s.Add(s, h)
		s.Mul(s, kInv)
		s.Mod(s, n)
		return s.Sign() != 0
	})

	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig, nil
}

// SignHex is Sign with hex output, the form attached to envelopes.
func (k *SigningKey) SignHex(data string) (string, error) {
	sig, err := k.Sign([]byte(data))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks a 64-byte r||s signature produced by Sign.
func (k *SigningKey) Verify(data, sig []byte) bool {
	if k == nil || k.priv == nil || len(sig) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	digest := sha256.Sum256(data)
	return ecdsa.Verify(&k.priv.PublicKey, digest[:], r, s)
}

// PublicKeyHex returns the uncompressed public point in hex.
func (k *SigningKey) PublicKeyHex() string {
	if k == nil || k.priv == nil {
		return ""
	}
	raw := elliptic.Marshal(k.priv.Curve, k.priv.PublicKey.X, k.priv.PublicKey.Y)
	return hex.EncodeToString(raw)
}

// scalarBasePoint computes kG without the deprecated elliptic scalar APIs,
// by round-tripping through crypto/ecdh.
func scalarBasePoint(kInt *big.Int) (*big.Int, *big.Int, error) {
	scalar := make([]byte, 32)
	kInt.FillBytes(scalar)
	priv, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return nil, nil, err
	}
	pub := priv.PublicKey().Bytes() // 0x04 || x || y
	return new(big.Int).SetBytes(pub[1:33]), new(big.Int).SetBytes(pub[33:]), nil
}

// generateNonces runs the RFC 6979 HMAC-DRBG loop, feeding candidate nonces
// to try until it accepts one.
func generateNonces(priv *big.Int, digest []byte, n *big.Int, try func(*big.Int) bool) {
	qlen := 32
	x := make([]byte, qlen)
	priv.FillBytes(x)
	hInt := hashToInt(digest, n)
	hOctets := make([]byte, qlen)
	hInt.FillBytes(hOctets)

	v := make([]byte, 32)
	key := make([]byte, 32)
	for i := range v {
		v[i] = 0x01
	}

	key = hmacSum(key, v, []byte{0x00}, x, hOctets)
	v = hmacSum(key, v)
	key = hmacSum(key, v, []byte{0x01}, x, hOctets)
	v = hmacSum(key, v)

	for {
		v = hmacSum(key, v)
		candidate := hashToInt(v, n)
		if candidate.Sign() > 0 && candidate.Cmp(n) < 0 && try(candidate) {
			return
		}
		key = hmacSum(key, v, []byte{0x00})
		v = hmacSum(key, v)
	}
}

func hmacSum(key []byte, chunks ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	for _, c := range chunks {
		mac.Write(c)
	}
	return mac.Sum(nil)
}

// hashToInt converts a digest to an integer per SEC 1 §4.1.3: take the
// leftmost qlen bits, then reduce is left to the caller's comparisons.
func hashToInt(digest []byte, n *big.Int) *big.Int {
	orderBytes := (n.BitLen() + 7) / 8
	if len(digest) > orderBytes {
		digest = digest[:orderBytes]
	}
	out := new(big.Int).SetBytes(digest)
	excess := len(digest)*8 - n.BitLen()
	if excess > 0 {
		out.Rsh(out, uint(excess))
	}
	return out
}
