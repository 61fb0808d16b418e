package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lanternworks/lantern-core/internal/models"
)

// Charset: A-Z 2-9 excluding 0/O/1/I/L, which are ambiguous when read off
// a printed sheet.
const recoveryCharset = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// RecoveryCodeLength is the number of charset characters per code,
// displayed as XXXX-XXXX.
const RecoveryCodeLength = 8

// GenerateRecoveryCodes generates count single-use codes in display form.
func GenerateRecoveryCodes(count int) ([]string, error) {
	codes := make([]string, count)
	for i := 0; i < count; i++ {
		code := make([]byte, RecoveryCodeLength)
		for j := range code {
			b := make([]byte, 1)
			if _, err := rand.Read(b); err != nil {
				return nil, fmt.Errorf("failed to generate random byte: %w", err)
			}
			code[j] = recoveryCharset[b[0]%byte(len(recoveryCharset))]
		}
		codes[i] = string(code[:4]) + "-" + string(code[4:])
	}
	return codes, nil
}

// NewRecoveryCodeSalt returns a fresh hex salt. Each code is salted
// independently so stored hashes cannot be cross-checked.
func NewRecoveryCodeSalt() (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// HashRecoveryCode hashes a normalized code with its salt.
func HashRecoveryCode(code, salt string) string {
	sum := sha256.Sum256([]byte(NormalizeRecoveryCode(code) + ":" + salt))
	return hex.EncodeToString(sum[:])
}

// NormalizeRecoveryCode strips the display hyphen and upcases.
func NormalizeRecoveryCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, "-", ""))
}

// ValidateRecoveryCode rejects malformed codes before any hashing happens.
func ValidateRecoveryCode(code string) error {
	normalized := NormalizeRecoveryCode(code)
	if len(normalized) != RecoveryCodeLength {
		return models.NewValidationError("recovery code", "must be 8 characters")
	}
	for i := 0; i < len(normalized); i++ {
		if !strings.ContainsRune(recoveryCharset, rune(normalized[i])) {
			return models.NewValidationError("recovery code", "contains an invalid character")
		}
	}
	return nil
}

// FindRecoveryCode scans the unused codes for a match. Every unused code
// is compared in constant time and the scan never exits early, so the
// response does not reveal which codes were tried. Returns the index of
// the matched code, or -1 when none matches.
func FindRecoveryCode(code string, stored []models.RecoveryCode) (int, error) {
	if err := ValidateRecoveryCode(code); err != nil {
		return -1, err
	}

	matched := -1
	for i := range stored {
		if stored[i].Used {
			continue
		}
		candidate := []byte(HashRecoveryCode(code, stored[i].Salt))
		if subtle.ConstantTimeCompare(candidate, []byte(stored[i].CodeHash)) == 1 && matched == -1 {
			matched = i
		}
	}
	return matched, nil
}
