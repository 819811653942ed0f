package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIdentity(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)
	require.NotNil(t, id)

	assert.False(t, isZeroKey(id.EncryptPK), "zero encryption public key")
	assert.False(t, isZeroKey(id.EncryptSK), "zero encryption secret key")
	assert.False(t, isZeroKey(id.SignPK), "zero signing public key")
	assert.False(t, isZeroKey(id.SignSK), "zero signing seed")

	other, err := GenerateIdentity()
	require.NoError(t, err)
	assert.False(t, bytes.Equal(id.EncryptPK[:], other.EncryptPK[:]),
		"two generations produced identical encryption keys")
}

func TestIdentityFromKeysRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	loaded, err := IdentityFromKeys(id.EncryptPK[:], id.EncryptSK[:], id.SignPK[:], id.SignSK[:])
	require.NoError(t, err)
	assert.Equal(t, id, loaded)

	// A reconstructed identity must produce envelopes the original can
	// relate to: same public keys, working key exchange.
	peer, err := GenerateIdentity()
	require.NoError(t, err)
	envelope, err := Seal([]byte("from restored identity"), peer.EncryptPK, loaded)
	require.NoError(t, err)
	plaintext, err := Open(envelope, peer)
	require.NoError(t, err)
	assert.Equal(t, []byte("from restored identity"), plaintext)
}

func TestIdentityFromKeysRejectsBadLengths(t *testing.T) {
	good := make([]byte, KeySize)
	good[0] = 1

	cases := []struct {
		name string
		keys [4][]byte
	}{
		{"short encrypt pk", [4][]byte{make([]byte, 16), good, good, good}},
		{"long encrypt sk", [4][]byte{good, make([]byte, 64), good, good}},
		{"nil sign pk", [4][]byte{good, good, nil, good}},
		{"empty sign sk", [4][]byte{good, good, good, {}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := IdentityFromKeys(tc.keys[0], tc.keys[1], tc.keys[2], tc.keys[3])
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestFromHexKey(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	key, err := FromHexKey(id.EncryptPKHex())
	require.NoError(t, err)
	assert.Equal(t, id.EncryptPK, key)

	_, err = FromHexKey("not hex at all")
	assert.Error(t, err)

	_, err = FromHexKey("aabb")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
