package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// SignatureSize is the size of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Sign creates an Ed25519 signature over message and returns the combined
// form signature ‖ message. The combined layout matches what the envelope
// embeds and what VerifySigned expects.
func Sign(message []byte, signSK [KeySize]byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, errors.New("empty message")
	}

	// Ed25519 private keys are 64 bytes; expand from the stored 32-byte seed.
	privateKey := ed25519.NewKeyFromSeed(signSK[:])
	signature := ed25519.Sign(privateKey, message)

	signed := make([]byte, 0, SignatureSize+len(message))
	signed = append(signed, signature...)
	signed = append(signed, message...)
	return signed, nil
}

// VerifySigned checks the signature ‖ message combined form against the
// signer's public key and returns the original message on success.
func VerifySigned(signed []byte, signPK [KeySize]byte) ([]byte, error) {
	if len(signed) < SignatureSize {
		return nil, fmt.Errorf("%w: signed message is %d bytes", ErrEnvelopeTooShort, len(signed))
	}

	signature := signed[:SignatureSize]
	message := signed[SignatureSize:]

	if !ed25519.Verify(signPK[:], message, signature) {
		return nil, ErrSignatureInvalid
	}

	return message, nil
}
