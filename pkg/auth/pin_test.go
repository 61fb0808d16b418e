package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndVerifyPINVerifier(t *testing.T) {
	userID := "3f1d9a2e-0000-4000-8000-000000000001"

	verifier, err := CreatePINVerifier("174952", userID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(verifier, "$argon2id$v=19$m=65536,t=3,p=1$"))

	ok, err := VerifyPIN("174952", userID, verifier)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPIN("174953", userID, verifier)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPIN_BoundToUser(t *testing.T) {
	verifier, err := CreatePINVerifier("174952", "user-a")
	require.NoError(t, err)

	// The same PIN under a different user id must not verify.
	ok, err := VerifyPIN("174952", "user-b", verifier)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreatePINVerifier_FreshSaltPerCall(t *testing.T) {
	first, err := CreatePINVerifier("174952", "user-a")
	require.NoError(t, err)
	second, err := CreatePINVerifier("174952", "user-a")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyPIN_RejectsMalformedVerifier(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"not phc":           "plainhash",
		"wrong algorithm":   "$argon2i$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2E$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		"wrong version":     "$argon2id$v=16$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2E$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		"bad params":        "$argon2id$v=19$m=what$c2FsdHNhbHRzYWx0c2E$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		"short salt":        "$argon2id$v=19$m=65536,t=3,p=1$c2E$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		"short hash":        "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2E$aGFzaA",
		"bad base64":        "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
	}

	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := VerifyPIN("174952", "user-a", encoded)
			assert.Error(t, err)
		})
	}
}

func TestVerifyPIN_RejectsOversizedParameters(t *testing.T) {
	// A crafted verifier demanding gigabytes of memory must be refused
	// before any derivation happens.
	cases := []string{
		"$argon2id$v=19$m=1048576,t=3,p=1$c2FsdHNhbHRzYWx0c2E$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		"$argon2id$v=19$m=65536,t=64,p=1$c2FsdHNhbHRzYWx0c2E$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		"$argon2id$v=19$m=65536,t=3,p=32$c2FsdHNhbHRzYWx0c2E$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		"$argon2id$v=19$m=0,t=3,p=1$c2FsdHNhbHRzYWx0c2E$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
	}

	for _, encoded := range cases {
		_, err := VerifyPIN("174952", "user-a", encoded)
		assert.Error(t, err, "verifier %q should be rejected", encoded)
	}
}
