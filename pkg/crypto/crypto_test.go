package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := Encrypt("session-cookie-value", "passphrase")
	require.NoError(t, err)
	assert.NotEqual(t, "session-cookie-value", encrypted)

	decrypted, err := Decrypt(encrypted, "passphrase")
	require.NoError(t, err)
	assert.Equal(t, "session-cookie-value", decrypted)
}

func TestEncryptProducesFreshCiphertext(t *testing.T) {
	a, err := Encrypt("same input", "key")
	require.NoError(t, err)
	b, err := Encrypt("same input", "key")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := Encrypt("secret", "right")
	require.NoError(t, err)

	_, err = Decrypt(encrypted, "wrong")
	assert.Error(t, err)
}

func TestDecryptMalformedInput(t *testing.T) {
	_, err := Decrypt("not base64!!!", "key")
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=", "key")
	assert.Error(t, err)
}
