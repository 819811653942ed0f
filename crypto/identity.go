package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the size of all public keys, secret keys, and key seeds in bytes.
const KeySize = 32

// Identity holds the two keypairs that make up a messenger identity: an
// X25519 keypair for the message key exchange and an Ed25519 keypair for
// envelope signatures. Both are generated together and never rotated within
// a session; the agent process is their sole owner.
type Identity struct {
	EncryptPK [KeySize]byte
	EncryptSK [KeySize]byte
	SignPK    [KeySize]byte
	SignSK    [KeySize]byte // Ed25519 seed
}

// GenerateIdentity creates a fresh identity with random encryption and
// signing keypairs.
func GenerateIdentity() (*Identity, error) {
	logrus.WithFields(logrus.Fields{
		"function": "GenerateIdentity",
	}).Info("Generating new identity")

	var encryptSK [KeySize]byte
	if _, err := rand.Read(encryptSK[:]); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}

	encryptPK, err := curve25519.X25519(encryptSK[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption public key: %w", err)
	}

	signPK, signSK, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	id := &Identity{EncryptSK: encryptSK}
	copy(id.EncryptPK[:], encryptPK)
	copy(id.SignPK[:], signPK)
	copy(id.SignSK[:], signSK.Seed())

	logrus.WithFields(logrus.Fields{
		"function":   "GenerateIdentity",
		"encrypt_pk": fmt.Sprintf("%x", id.EncryptPK[:8]),
		"sign_pk":    fmt.Sprintf("%x", id.SignPK[:8]),
	}).Info("Identity generated successfully")

	return id, nil
}

// IdentityFromKeys reconstructs an identity from its four raw keys, for
// example when loading a persisted keypair document.
func IdentityFromKeys(encryptPK, encryptSK, signPK, signSK []byte) (*Identity, error) {
	for _, k := range [][]byte{encryptPK, encryptSK, signPK, signSK} {
		if len(k) != KeySize {
			return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(k), KeySize)
		}
	}

	id := &Identity{}
	copy(id.EncryptPK[:], encryptPK)
	copy(id.EncryptSK[:], encryptSK)
	copy(id.SignPK[:], signPK)
	copy(id.SignSK[:], signSK)

	if isZeroKey(id.EncryptSK) || isZeroKey(id.SignSK) {
		return nil, errors.New("invalid identity: zero secret key")
	}

	return id, nil
}

// EncryptPKHex returns the hex encoding of the encryption public key. This is
// the value peers exchange in contact cards and the input to ConversationID.
func (id *Identity) EncryptPKHex() string {
	return ToHex(id.EncryptPK[:])
}

// SignPKHex returns the hex encoding of the signing public key.
func (id *Identity) SignPKHex() string {
	return ToHex(id.SignPK[:])
}

// isZeroKey checks if a key consists of all zeros.
func isZeroKey(key [KeySize]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
