package auth

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// totpStorageInfo namespaces the TOTP storage key within the master key,
// keeping it distinct from the ledger signing keys.
const totpStorageInfo = "lantern-core/totp-storage"

// DeriveTOTPStorageKey derives the 32-byte AES key that encrypts TOTP
// secrets at rest from the device master key.
func DeriveTOTPStorageKey(masterKey []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, masterKey, nil, []byte(totpStorageInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive TOTP storage key: %w", err)
	}
	return key, nil
}
