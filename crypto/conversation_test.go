package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationIDSymmetry(t *testing.T) {
	alice, err := GenerateIdentity()
	require.NoError(t, err)
	bob, err := GenerateIdentity()
	require.NoError(t, err)

	forward := ConversationID(alice.EncryptPKHex(), bob.EncryptPKHex())
	reverse := ConversationID(bob.EncryptPKHex(), alice.EncryptPKHex())

	assert.Equal(t, forward, reverse, "queue id must not depend on argument order")
	assert.Len(t, forward, ConversationIDSize*2, "hex form of the first 16 hash bytes")
}

func TestConversationIDDistinct(t *testing.T) {
	alice, err := GenerateIdentity()
	require.NoError(t, err)
	bob, err := GenerateIdentity()
	require.NoError(t, err)
	carol, err := GenerateIdentity()
	require.NoError(t, err)

	ab := ConversationID(alice.EncryptPKHex(), bob.EncryptPKHex())
	ac := ConversationID(alice.EncryptPKHex(), carol.EncryptPKHex())
	bc := ConversationID(bob.EncryptPKHex(), carol.EncryptPKHex())

	assert.NotEqual(t, ab, ac)
	assert.NotEqual(t, ab, bc)
	assert.NotEqual(t, ac, bc)
}

func TestConversationIDKnownValue(t *testing.T) {
	// SHA-256("aabb")[:16], pinned so every implementation
	// interoperating over the same relay computes identical queue ids.
	got := ConversationID("bb", "aa")
	assert.Equal(t, "486b34250bd4400c0aa90516fce9a9c0", got)
	assert.Equal(t, got, ConversationID("aa", "bb"))
}
