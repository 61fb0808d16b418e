package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for PIN verifiers. The memory cost is deliberately
// high (≈100 ms per derivation) so a stolen verifier resists offline
// guessing of the small PIN space.
const (
	Argon2Memory      = 64 * 1024 // KiB
	Argon2Iterations  = 3
	Argon2Parallelism = 1
	Argon2KeyLength   = 32
	Argon2SaltLength  = 16
)

// Anti-DoS ceilings for verifier parameters accepted during verification.
// A crafted verifier must not be able to make Verify allocate gigabytes.
const (
	argon2MaxMemory     = 256 * 1024
	argon2MaxIterations = 16
)

// CreatePINVerifier derives an argon2id verifier over "pin:userId" and
// returns it PHC-encoded. Binding the user id into the input means a
// verifier cannot be reused to test the same PIN against a different user.
func CreatePINVerifier(pin, userID string) (string, error) {
	salt := make([]byte, Argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	input := pin + ":" + userID
	hash := argon2.IDKey([]byte(input), salt, Argon2Iterations, Argon2Memory, Argon2Parallelism, Argon2KeyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Iterations, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	return encoded, nil
}

// VerifyPIN re-derives the candidate against the stored verifier's own
// parameters and compares in constant time. It never compares hash strings
// directly.
func VerifyPIN(pin, userID, encoded string) (bool, error) {
	salt, hash, memory, iterations, parallelism, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	input := pin + ":" + userID
	candidate := argon2.IDKey([]byte(input), salt, iterations, memory, parallelism, uint32(len(hash)))

	return subtle.ConstantTimeCompare(candidate, hash) == 1, nil
}

// decodePHC strictly parses a PHC argon2id string and enforces parameter
// bounds before any derivation happens.
func decodePHC(encoded string) (salt, hash []byte, memory, iterations uint32, parallelism uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, fmt.Errorf("invalid argon2id verifier format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, fmt.Errorf("unsupported argon2 version")
	}

	var p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &p); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("invalid argon2 parameters")
	}
	if memory == 0 || memory > argon2MaxMemory || iterations == 0 || iterations > argon2MaxIterations || p == 0 || p > 8 {
		return nil, nil, 0, 0, 0, fmt.Errorf("argon2 parameters out of bounds")
	}
	parallelism = uint8(p)

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return nil, nil, 0, 0, 0, fmt.Errorf("invalid verifier salt")
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) < 16 {
		return nil, nil, 0, 0, 0, fmt.Errorf("invalid verifier hash")
	}

	return salt, hash, memory, iterations, parallelism, nil
}
