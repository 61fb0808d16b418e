package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// totpPeriod is the RFC 6238 time step; with ±1 step skew the acceptance
// window is 90 seconds, which is also the replay horizon.
const totpPeriod = 30

// TOTPManager handles TOTP enrollment, secret encryption, and validation
type TOTPManager struct {
	deviceKey []byte // 32-byte AES-256 key
	issuer    string
}

// NewTOTPManager creates a new TOTP manager.
// deviceKey must be exactly 32 bytes for AES-256.
func NewTOTPManager(deviceKey []byte, issuer string) (*TOTPManager, error) {
	if len(deviceKey) != 32 {
		return nil, fmt.Errorf("device key must be exactly 32 bytes, got %d", len(deviceKey))
	}

	return &TOTPManager{deviceKey: deviceKey, issuer: issuer}, nil
}

// Enrollment is the output of a TOTP enrollment: the encrypted secret for
// storage plus a QR data URL for pairing an authenticator app.
type Enrollment struct {
	EncryptedSecret []byte
	Nonce           []byte
	Secret          string
	QRDataURL       string
}

// Enroll generates a fresh secret, encrypts it under the device key, and
// renders the provisioning QR code.
func (tm *TOTPManager) Enroll(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountName,
		SecretSize:  32,
		Period:      totpPeriod,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	encrypted, nonce, err := tm.EncryptSecret([]byte(key.Secret()))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	qr, err := qrcode.New(key.URL(), qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(200)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &Enrollment{
		EncryptedSecret: encrypted,
		Nonce:           nonce,
		Secret:          key.Secret(),
		QRDataURL:       "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// EncryptSecret encrypts a TOTP secret using AES-256-GCM.
// Returns: (encryptedBytes, nonce, error)
func (tm *TOTPManager) EncryptSecret(secret []byte) ([]byte, []byte, error) {
	gcm, err := tm.gcm()
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, secret, nil), nonce, nil
}

// DecryptSecret decrypts a stored TOTP secret
func (tm *TOTPManager) DecryptSecret(encrypted, nonce []byte) ([]byte, error) {
	gcm, err := tm.gcm()
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return plaintext, nil
}

// Validate checks a code against the decrypted secret, allowing ±1 time
// step for clock drift and rejecting reuse inside the replay horizon.
func (tm *TOTPManager) Validate(secret []byte, code string, lastUsedAt *time.Time, now time.Time) (bool, error) {
	valid, err := totp.ValidateCustom(code, string(secret), now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate TOTP: %w", err)
	}
	if !valid {
		return false, nil
	}

	if lastUsedAt != nil && now.Sub(*lastUsedAt) < 3*totpPeriod*time.Second {
		return false, fmt.Errorf("code replay detected")
	}

	return true, nil
}

func (tm *TOTPManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(tm.deviceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
