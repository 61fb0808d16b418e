package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/lanternworks/lantern-core/internal/models"
	"golang.org/x/crypto/pbkdf2"
)

// Password-based encryption parameters.
const (
	PBKDF2Iterations = 100_000
	pbkdf2KeyLength  = 32
	encryptSaltLen   = 16
	gcmNonceLen      = 12
)

// EncryptedSecret is a password-encrypted envelope. All three parts are
// required to decrypt; none is secret on its own.
type EncryptedSecret struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

// Encrypt derives a key from the password with PBKDF2-SHA256 and seals the
// plaintext with AES-256-GCM under a fresh salt and nonce.
func Encrypt(plaintext []byte, password string) (*EncryptedSecret, error) {
	salt := make([]byte, encryptSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	iv := make([]byte, gcmNonceLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	return &EncryptedSecret{
		Ciphertext: gcm.Seal(nil, iv, plaintext, nil),
		IV:         iv,
		Salt:       salt,
	}, nil
}

// Decrypt opens the envelope. Failure is reported as an opaque
// DecryptionError: a wrong password and a tampered ciphertext are
// indistinguishable, so decryption cannot act as a password oracle.
func Decrypt(secret *EncryptedSecret, password string) ([]byte, error) {
	gcm, err := newGCM(password, secret.Salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, secret.IV, secret.Ciphertext, nil)
	if err != nil {
		return nil, &models.DecryptionError{}
	}

	return plaintext, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, pbkdf2KeyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
