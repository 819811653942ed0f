package crypto

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

// DeriveSharedSecret computes a shared secret between two parties using
// Elliptic Curve Diffie-Hellman (ECDH) on Curve25519. The raw X25519 output
// is used directly as the AEAD key, so both sides derive the identical
// envelope key without negotiation.
func DeriveSharedSecret(peerPublicKey, privateKey [KeySize]byte) ([KeySize]byte, error) {
	logrus.WithFields(logrus.Fields{
		"function":        "DeriveSharedSecret",
		"peer_key_prefix": fmt.Sprintf("%x", peerPublicKey[:8]),
	}).Debug("Computing shared secret using ECDH")

	sharedSecret, err := curve25519.X25519(privateKey[:], peerPublicKey[:])
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DeriveSharedSecret",
			"error":    err.Error(),
		}).Error("X25519 computation failed")
		return [KeySize]byte{}, fmt.Errorf("failed to compute shared secret: %w", err)
	}

	var result [KeySize]byte
	copy(result[:], sharedSecret)

	// Wipe the intermediate copy; the caller owns the returned array.
	for i := range sharedSecret {
		sharedSecret[i] = 0
	}

	return result, nil
}
