package crypto

import (
	"encoding/hex"
	"fmt"
)

// ToHex converts bytes to their lowercase hex string form.
func ToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// FromHex decodes a hex string to bytes.
func FromHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// FromHexKey decodes a hex string that must encode exactly one 32-byte key.
func FromHexKey(s string) ([KeySize]byte, error) {
	var key [KeySize]byte
	b, err := FromHex(s)
	if err != nil {
		return key, err
	}
	if len(b) != KeySize {
		return key, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(b), KeySize)
	}
	copy(key[:], b)
	return key, nil
}
