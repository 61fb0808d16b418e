package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/lanternworks/lantern-core/internal/models"
)

// Pattern shape bounds: a pattern is an ordered visit of cells on a 3x3
// grid, each cell at most once.
const (
	PatternMinPoints = 4
	PatternMaxPoints = 9
	patternMaxCell   = 8
)

// ValidatePattern rejects malformed patterns before any hashing happens.
func ValidatePattern(pattern []int) error {
	if len(pattern) < PatternMinPoints {
		return models.NewValidationError("pattern", fmt.Sprintf("must have at least %d points", PatternMinPoints))
	}
	if len(pattern) > PatternMaxPoints {
		return models.NewValidationError("pattern", fmt.Sprintf("must have at most %d points", PatternMaxPoints))
	}

	seen := make(map[int]bool, len(pattern))
	for _, cell := range pattern {
		if cell < 0 || cell > patternMaxCell {
			return models.NewValidationError("pattern", "point out of range")
		}
		if seen[cell] {
			return models.NewValidationError("pattern", "duplicate points are not allowed")
		}
		seen[cell] = true
	}

	return nil
}

// CreatePatternVerifier hashes the pattern with a fresh salt, bound to the
// user id. Returns the hex hash and hex salt.
func CreatePatternVerifier(pattern []int, userID string) (hash, salt string, err error) {
	if err := ValidatePattern(pattern); err != nil {
		return "", "", err
	}

	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt = hex.EncodeToString(saltBytes)

	return hashPattern(pattern, salt, userID), salt, nil
}

// VerifyPattern re-validates the candidate's shape, then compares digests
// with a length-checked constant-time comparison. Shape failures surface
// as a ValidationError and must not be counted as failed attempts.
func VerifyPattern(pattern []int, userID, salt, storedHash string) (bool, error) {
	if err := ValidatePattern(pattern); err != nil {
		return false, err
	}

	stored, err := hex.DecodeString(storedHash)
	if err != nil {
		return false, fmt.Errorf("invalid stored pattern hash")
	}
	candidate, err := hex.DecodeString(hashPattern(pattern, salt, userID))
	if err != nil {
		return false, fmt.Errorf("failed to encode candidate pattern")
	}

	// ConstantTimeCompare is the XOR-accumulate comparison: it checks
	// lengths first and never short-circuits on the first differing byte.
	return subtle.ConstantTimeCompare(candidate, stored) == 1, nil
}

func hashPattern(pattern []int, salt, userID string) string {
	points := make([]string, len(pattern))
	for i, cell := range pattern {
		points[i] = strconv.Itoa(cell)
	}
	sum := sha256.Sum256([]byte(strings.Join(points, ",") + ":" + salt + ":" + userID))
	return hex.EncodeToString(sum[:])
}
