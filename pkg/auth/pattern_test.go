package auth

import (
	"testing"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePattern(t *testing.T) {
	assert.NoError(t, ValidatePattern([]int{0, 4, 8, 5}))
	assert.NoError(t, ValidatePattern([]int{0, 1, 2, 3, 4, 5, 6, 7, 8}))

	var verr *models.ValidationError
	assert.ErrorAs(t, ValidatePattern([]int{0, 4, 8}), &verr)
	assert.ErrorAs(t, ValidatePattern([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 0}), &verr)
	assert.ErrorAs(t, ValidatePattern([]int{0, 4, 8, 9}), &verr)
	assert.ErrorAs(t, ValidatePattern([]int{0, 4, 8, -1}), &verr)
	assert.ErrorAs(t, ValidatePattern([]int{0, 4, 8, 4}), &verr)
	assert.ErrorAs(t, ValidatePattern(nil), &verr)
}

func TestCreateAndVerifyPatternVerifier(t *testing.T) {
	userID := "user-a"

	hash, salt, err := CreatePatternVerifier([]int{0, 4, 8, 5}, userID)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEmpty(t, salt)

	ok, err := VerifyPattern([]int{0, 4, 8, 5}, userID, salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPattern([]int{1, 2, 5, 8}, userID, salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	// Order matters: the same cells in a different visit order are a
	// different pattern.
	ok, err = VerifyPattern([]int{5, 8, 4, 0}, userID, salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPattern_BoundToUser(t *testing.T) {
	hash, salt, err := CreatePatternVerifier([]int{0, 4, 8, 5}, "user-a")
	require.NoError(t, err)

	ok, err := VerifyPattern([]int{0, 4, 8, 5}, "user-b", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPattern_MalformedCandidate(t *testing.T) {
	hash, salt, err := CreatePatternVerifier([]int{0, 4, 8, 5}, "user-a")
	require.NoError(t, err)

	// Malformed candidates are validation errors, never a panic and never
	// a counted attempt.
	var verr *models.ValidationError

	_, err = VerifyPattern([]int{0, 1}, "user-a", salt, hash)
	assert.ErrorAs(t, err, &verr)

	_, err = VerifyPattern([]int{0, 1, 2, 9}, "user-a", salt, hash)
	assert.ErrorAs(t, err, &verr)

	_, err = VerifyPattern([]int{0, 1, 2, 2}, "user-a", salt, hash)
	assert.ErrorAs(t, err, &verr)
}

func TestVerifyPattern_CorruptStoredHash(t *testing.T) {
	_, err := VerifyPattern([]int{0, 4, 8, 5}, "user-a", "00ff", "not-hex")
	assert.Error(t, err)
}
