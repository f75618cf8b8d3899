package identity

import (
	"errors"
	"strings"
	"testing"
)

const testMnemonic = "legal winner thank year wave sausage worth useful legal winner thank year wave sausage worth useful legal winner thank year wave sausage worth title"

func testKey(t *testing.T) *SigningKey {
	t.Helper()
	key, err := ImportAccount(testMnemonic)
	if err != nil {
		t.Fatalf("ImportAccount: %v", err)
	}
	return key
}

func TestImportAccountDeterministic(t *testing.T) {
	a := testKey(t)
	b := testKey(t)
	if a.ExportHex() != b.ExportHex() {
		t.Fatal("same mnemonic produced different signing keys")
	}
	if a.Address() != b.Address() {
		t.Fatal("same mnemonic produced different addresses")
	}
	if !strings.HasPrefix(a.Address(), "0x") || len(a.Address()) != 2+40 {
		t.Fatalf("malformed address %q", a.Address())
	}
}

func TestImportAccountRejectsInvalidMnemonic(t *testing.T) {
	if _, err := ImportAccount("definitely not a valid phrase"); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("want ErrInvalidMnemonic, got %v", err)
	}
}

func TestSignDeterministic(t *testing.T) {
	key := testKey(t)
	msg := []byte("signing for zk identity - 0")

	sig1, err := key.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig2, err := key.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if string(sig1) != string(sig2) {
		t.Fatal("signatures over the same message differ")
	}
	if len(sig1) != 64 {
		t.Fatalf("signature length = %d, want 64", len(sig1))
	}
	if !key.Verify(msg, sig1) {
		t.Fatal("Verify rejected a valid signature")
	}
	if key.Verify([]byte("other message"), sig1) {
		t.Fatal("Verify accepted a signature over a different message")
	}
	sig1[10] ^= 0x01
	if key.Verify(msg, sig1) {
		t.Fatal("Verify accepted a corrupted signature")
	}
}

func TestDeriveECDHKeyPairDeterministic(t *testing.T) {
	key := testKey(t)
	a, err := DeriveECDHKeyPair(key)
	if err != nil {
		t.Fatalf("DeriveECDHKeyPair: %v", err)
	}
	b, err := DeriveECDHKeyPair(key)
	if err != nil {
		t.Fatalf("DeriveECDHKeyPair: %v", err)
	}
	if a.Pub != b.Pub {
		t.Fatal("same key produced different ECDH public keys")
	}
	// Compressed secp256k1 point: 33 bytes hex-encoded.
	if len(a.Pub) != 66 {
		t.Fatalf("ECDH pub length = %d, want 66", len(a.Pub))
	}
}

func TestDeriveZkIdentityDeterministic(t *testing.T) {
	key := testKey(t)
	a, err := DeriveZkIdentity(key)
	if err != nil {
		t.Fatalf("DeriveZkIdentity: %v", err)
	}
	b, err := DeriveZkIdentity(key)
	if err != nil {
		t.Fatalf("DeriveZkIdentity: %v", err)
	}
	if a != b {
		t.Fatal("same key produced different zk identities")
	}
	if a.Nullifier == a.Trapdoor {
		t.Fatal("nullifier and trapdoor collided")
	}
	if a.Commitment == "" {
		t.Fatal("empty commitment")
	}

	other, err := ImportSigningKeyHex("1111111111111111111111111111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("ImportSigningKeyHex: %v", err)
	}
	c, err := DeriveZkIdentity(other)
	if err != nil {
		t.Fatalf("DeriveZkIdentity: %v", err)
	}
	if c.Commitment == a.Commitment {
		t.Fatal("distinct keys produced the same commitment")
	}
}

func TestDerivedIdentitiesAreIndependent(t *testing.T) {
	key := testKey(t)
	pair, err := DeriveECDHKeyPair(key)
	if err != nil {
		t.Fatalf("DeriveECDHKeyPair: %v", err)
	}
	zk, err := DeriveZkIdentity(key)
	if err != nil {
		t.Fatalf("DeriveZkIdentity: %v", err)
	}
	if strings.Contains(pair.Pub, zk.Nullifier) || strings.Contains(pair.Pub, zk.Trapdoor) {
		t.Fatal("ECDH material overlaps zk material")
	}
}

func TestImportSigningKeyHexRoundTrip(t *testing.T) {
	key := testKey(t)
	restored, err := ImportSigningKeyHex(key.ExportHex())
	if err != nil {
		t.Fatalf("ImportSigningKeyHex: %v", err)
	}
	if restored.Address() != key.Address() {
		t.Fatal("restored key has a different address")
	}
}

func TestImportSigningKeyHexRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "zz", strings.Repeat("00", 33)} {
		if _, err := ImportSigningKeyHex(in); !errors.Is(err, ErrKeyDerivation) {
			t.Fatalf("ImportSigningKeyHex(%q): want ErrKeyDerivation, got %v", in, err)
		}
	}
	if _, err := ImportSigningKeyHex(strings.Repeat("00", 32)); !errors.Is(err, ErrKeyDerivation) {
		t.Fatalf("zero scalar: want ErrKeyDerivation, got %v", err)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	key := testKey(t)
	encoded, err := ExportBackup(key)
	if err != nil {
		t.Fatalf("ExportBackup: %v", err)
	}
	restored, err := ImportBackup(encoded)
	if err != nil {
		t.Fatalf("ImportBackup: %v", err)
	}
	if restored.ExportHex() != key.ExportHex() {
		t.Fatal("backup round-trip changed the signing key")
	}

	zkA, _ := DeriveZkIdentity(key)
	zkB, err := DeriveZkIdentity(restored)
	if err != nil {
		t.Fatalf("DeriveZkIdentity: %v", err)
	}
	if zkA != zkB {
		t.Fatal("restored key derives a different zk identity")
	}
}

func TestImportBackupRejectsTampered(t *testing.T) {
	key := testKey(t)
	encoded, err := ExportBackup(key)
	if err != nil {
		t.Fatalf("ExportBackup: %v", err)
	}
	for _, in := range []string{"", "abc", encoded[:len(encoded)-2]} {
		if _, err := ImportBackup(in); !errors.Is(err, ErrInvalidBackup) {
			t.Fatalf("ImportBackup(%q): want ErrInvalidBackup, got %v", in, err)
		}
	}
}

func TestNewAccountProducesImportableMnemonic(t *testing.T) {
	mnemonic, key, err := NewAccount()
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	if len(strings.Fields(mnemonic)) != 24 {
		t.Fatalf("mnemonic has %d words, want 24", len(strings.Fields(mnemonic)))
	}
	restored, err := ImportAccount(mnemonic)
	if err != nil {
		t.Fatalf("ImportAccount: %v", err)
	}
	if restored.Address() != key.Address() {
		t.Fatal("mnemonic did not restore the same account")
	}
}
