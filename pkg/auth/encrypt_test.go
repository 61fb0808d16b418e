package auth

import (
	"testing"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintexts := [][]byte{
		[]byte("JBSWY3DPEHPK3PXP"),
		[]byte(""),
		[]byte("données élève — 学習記録"),
		make([]byte, 4096),
	}

	for _, plaintext := range plaintexts {
		secret, err := Encrypt(plaintext, "correct horse battery")
		require.NoError(t, err)
		assert.Len(t, secret.Salt, 16)
		assert.Len(t, secret.IV, 12)

		decrypted, err := Decrypt(secret, "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestDecrypt_WrongPassword(t *testing.T) {
	secret, err := Encrypt([]byte("sensitive"), "right password")
	require.NoError(t, err)

	_, err = Decrypt(secret, "wrong password")
	var derr *models.DecryptionError
	assert.ErrorAs(t, err, &derr)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	secret, err := Encrypt([]byte("sensitive"), "password")
	require.NoError(t, err)

	secret.Ciphertext[0] ^= 0x01

	// Tampering and a wrong password are indistinguishable to the caller.
	_, err = Decrypt(secret, "password")
	var derr *models.DecryptionError
	assert.ErrorAs(t, err, &derr)
}

func TestEncrypt_FreshSaltAndNonce(t *testing.T) {
	first, err := Encrypt([]byte("same plaintext"), "password")
	require.NoError(t, err)
	second, err := Encrypt([]byte("same plaintext"), "password")
	require.NoError(t, err)

	assert.NotEqual(t, first.Salt, second.Salt)
	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}
