package auth

import (
	"testing"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes(8)
	require.NoError(t, err)
	require.Len(t, codes, 8)

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.Regexp(t, `^[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{4}-[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{4}$`, code)
		assert.NoError(t, ValidateRecoveryCode(code))
		seen[code] = true
	}
	assert.Len(t, seen, 8, "codes should be unique")
}

func TestNormalizeRecoveryCode(t *testing.T) {
	assert.Equal(t, "ABCD2345", NormalizeRecoveryCode("abcd-2345"))
	assert.Equal(t, "ABCD2345", NormalizeRecoveryCode("ABCD2345"))
}

func TestValidateRecoveryCode(t *testing.T) {
	assert.NoError(t, ValidateRecoveryCode("ABCD-2345"))
	assert.NoError(t, ValidateRecoveryCode("abcd2345"))

	var verr *models.ValidationError
	assert.ErrorAs(t, ValidateRecoveryCode("ABCD-234"), &verr)
	assert.ErrorAs(t, ValidateRecoveryCode(""), &verr)
	// 0, O, 1, I, L are excluded from the charset.
	assert.ErrorAs(t, ValidateRecoveryCode("ABC0-2345"), &verr)
	assert.ErrorAs(t, ValidateRecoveryCode("ABCI-2345"), &verr)
}

func TestHashRecoveryCode_SaltAndNormalization(t *testing.T) {
	assert.Equal(t, HashRecoveryCode("ABCD-2345", "salt1"), HashRecoveryCode("abcd2345", "salt1"))
	assert.NotEqual(t, HashRecoveryCode("ABCD-2345", "salt1"), HashRecoveryCode("ABCD-2345", "salt2"))
}

func TestFindRecoveryCode(t *testing.T) {
	codes, err := GenerateRecoveryCodes(4)
	require.NoError(t, err)

	stored := make([]models.RecoveryCode, len(codes))
	for i, code := range codes {
		salt, err := NewRecoveryCodeSalt()
		require.NoError(t, err)
		stored[i] = models.RecoveryCode{
			ID:       uuid.New(),
			CodeHash: HashRecoveryCode(code, salt),
			Salt:     salt,
		}
	}

	idx, err := FindRecoveryCode(codes[2], stored)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	// Case and hyphen-insensitive lookup.
	idx, err = FindRecoveryCode(NormalizeRecoveryCode(codes[2]), stored)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	idx, err = FindRecoveryCode("ZZZZ-ZZZZ", stored)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}

func TestFindRecoveryCode_SkipsUsed(t *testing.T) {
	codes, err := GenerateRecoveryCodes(2)
	require.NoError(t, err)

	salt, err := NewRecoveryCodeSalt()
	require.NoError(t, err)
	stored := []models.RecoveryCode{
		{ID: uuid.New(), CodeHash: HashRecoveryCode(codes[0], salt), Salt: salt, Used: true},
	}

	idx, err := FindRecoveryCode(codes[0], stored)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}

func TestFindRecoveryCode_MalformedInput(t *testing.T) {
	_, err := FindRecoveryCode("short", nil)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}
