package crypto

import "errors"

// Sentinel errors returned by envelope operations. The delivery engine
// selects blob disposition with errors.Is against these values, so they
// must stay distinct.
var (
	// ErrOwnMessage reports that an envelope was sealed by the local
	// identity itself. It is a routing condition, not a failure: the blob
	// must be left on the relay for its actual recipient.
	ErrOwnMessage = errors.New("skipping own message")

	// ErrSignatureInvalid reports that the Ed25519 signature over the
	// envelope payload did not verify.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrDecryptionFailed reports an AEAD authentication failure while
	// opening the sealed body.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrEnvelopeTooShort reports an envelope (or one of its nested
	// layers) shorter than its fixed-size header.
	ErrEnvelopeTooShort = errors.New("envelope too short")

	// ErrInvalidKey reports a key of the wrong length.
	ErrInvalidKey = errors.New("invalid key length")
)
