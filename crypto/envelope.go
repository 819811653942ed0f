package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the XChaCha20-Poly1305 nonce size in bytes.
const NonceSize = chacha20poly1305.NonceSizeX

// Envelope wire layout, outermost first:
//
//	sender_sign_pk (32) ‖ signature (64) ‖ sender_encrypt_pk (32) ‖ nonce (24) ‖ ciphertext+tag
//
// The sender's encryption public key travels inside the signed region so the
// recipient can redo the key exchange without an out-of-band lookup, and the
// signing public key travels in the clear so the recipient knows which key
// verifies the signature.

// Seal encrypts plaintext for recipientPK and wraps it in a signed envelope
// from the given identity. Every call generates a fresh random nonce, so
// sealing is never deterministic.
func Seal(plaintext []byte, recipientPK [KeySize]byte, id *Identity) ([]byte, error) {
	logrus.WithFields(logrus.Fields{
		"function":         "Seal",
		"recipient_prefix": fmt.Sprintf("%x", recipientPK[:8]),
		"plaintext_len":    len(plaintext),
	}).Debug("Sealing envelope")

	sharedSecret, err := DeriveSharedSecret(recipientPK, id.EncryptSK)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(sharedSecret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// sealed = nonce ‖ ciphertext+tag
	sealed := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	copy(sealed, nonce[:])
	sealed = aead.Seal(sealed, nonce[:], plaintext, nil)

	// toSign = sender_encrypt_pk ‖ sealed
	toSign := make([]byte, 0, KeySize+len(sealed))
	toSign = append(toSign, id.EncryptPK[:]...)
	toSign = append(toSign, sealed...)

	signed, err := Sign(toSign, id.SignSK)
	if err != nil {
		return nil, fmt.Errorf("failed to sign envelope: %w", err)
	}

	// envelope = sender_sign_pk ‖ signature ‖ toSign
	envelope := make([]byte, 0, KeySize+len(signed))
	envelope = append(envelope, id.SignPK[:]...)
	envelope = append(envelope, signed...)
	return envelope, nil
}

// Open verifies and decrypts an envelope addressed to the local identity.
//
// It fails with ErrOwnMessage when the envelope was sealed by the local
// identity itself; callers must treat that as skip-and-keep, never as a
// crypto failure. All other failures are terminal for the single envelope.
func Open(envelope []byte, id *Identity) ([]byte, error) {
	if len(envelope) < KeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrEnvelopeTooShort, len(envelope))
	}

	var senderSignPK [KeySize]byte
	copy(senderSignPK[:], envelope[:KeySize])

	// Own envelopes cannot be decrypted (the key exchange ran against the
	// recipient's key) and must stay on the relay for the counterpart.
	if senderSignPK == id.SignPK {
		return nil, ErrOwnMessage
	}

	payload, err := VerifySigned(envelope[KeySize:], senderSignPK)
	if err != nil {
		return nil, err
	}

	if len(payload) < KeySize+NonceSize {
		return nil, fmt.Errorf("%w: signed payload is %d bytes", ErrEnvelopeTooShort, len(payload))
	}

	var senderEncryptPK [KeySize]byte
	copy(senderEncryptPK[:], payload[:KeySize])
	sealed := payload[KeySize:]

	sharedSecret, err := DeriveSharedSecret(senderEncryptPK, id.EncryptSK)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(sharedSecret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":      "Open",
			"sender_prefix": fmt.Sprintf("%x", senderSignPK[:8]),
		}).Debug("Envelope decryption failed")
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// SenderSignPK extracts the sender's signing public key from an envelope
// without verifying it. Useful for logging and diagnostics only.
func SenderSignPK(envelope []byte) ([KeySize]byte, error) {
	var pk [KeySize]byte
	if len(envelope) < KeySize {
		return pk, fmt.Errorf("%w: %d bytes", ErrEnvelopeTooShort, len(envelope))
	}
	copy(pk[:], envelope[:KeySize])
	return pk, nil
}
