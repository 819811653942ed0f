package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	message := []byte("I am Alice")
	signed, err := Sign(message, id.SignSK)
	require.NoError(t, err)
	require.Len(t, signed, SignatureSize+len(message))

	verified, err := VerifySigned(signed, id.SignPK)
	require.NoError(t, err)
	assert.Equal(t, message, verified)
}

func TestVerifySignedRejectsWrongKey(t *testing.T) {
	alice, err := GenerateIdentity()
	require.NoError(t, err)
	mallory, err := GenerateIdentity()
	require.NoError(t, err)

	signed, err := Sign([]byte("claims to be alice"), alice.SignSK)
	require.NoError(t, err)

	_, err = VerifySigned(signed, mallory.SignPK)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifySignedRejectsShortInput(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	_, err = VerifySigned(make([]byte, SignatureSize-1), id.SignPK)
	assert.ErrorIs(t, err, ErrEnvelopeTooShort)
}

func TestSignRejectsEmptyMessage(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	_, err = Sign(nil, id.SignSK)
	assert.Error(t, err)
}
