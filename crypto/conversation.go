package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// ConversationIDSize is the size of a conversation id in raw bytes (it is
// transported hex-encoded, so the string form is twice as long).
const ConversationIDSize = 16

// ConversationID derives the deterministic queue id shared by two parties
// from their encryption public keys in hex form. The keys are sorted
// lexicographically before hashing, so both parties derive the identical id
// regardless of argument order and with no shared secret negotiation.
func ConversationID(pk1Hex, pk2Hex string) string {
	minPK, maxPK := pk1Hex, pk2Hex
	if pk2Hex < pk1Hex {
		minPK, maxPK = pk2Hex, pk1Hex
	}

	hash := sha256.Sum256([]byte(minPK + maxPK))
	return hex.EncodeToString(hash[:ConversationIDSize])
}
