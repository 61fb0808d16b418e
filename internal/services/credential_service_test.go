package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/lanternworks/lantern-core/internal/auth"
	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentialTestEnv struct {
	svc      *CredentialService
	credRepo *mockCredentialRepo
	profiles *mockProfileRepo
	advance  func(time.Duration)
}

func newCredentialTestEnv(t *testing.T) *credentialTestEnv {
	t.Helper()

	totpMgr, err := auth.NewTOTPManager(bytes.Repeat([]byte{0x2a}, 32), "Lantern")
	require.NoError(t, err)

	credRepo := newMockCredentialRepo()
	profiles := newMockProfileRepo()
	audit := NewAuditService(newMockAuditLogRepo(), testLogger())

	svc := NewCredentialService(credRepo, profiles, totpMgr, audit, testLogger())
	now, advance := fixedClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc.now = now

	return &credentialTestEnv{svc: svc, credRepo: credRepo, profiles: profiles, advance: advance}
}

func TestEnrollPIN_RejectsWeakPIN(t *testing.T) {
	env := newCredentialTestEnv(t)

	for _, pin := range []string{"123456", "111111", "000000", "1234", "12345a", "987654"} {
		_, err := env.svc.EnrollPIN(context.Background(), uuid.New(), pin)
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr, "pin %q should be rejected", pin)
	}
}

func TestEnrollPIN_RejectsBirthYear(t *testing.T) {
	env := newCredentialTestEnv(t)

	_, err := env.svc.EnrollPIN(context.Background(), uuid.New(), "201254")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pin", verr.Field)
}

func TestEnrollAndVerifyPIN(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	cred, err := env.svc.EnrollPIN(context.Background(), userID, "174952")
	require.NoError(t, err)
	assert.Equal(t, cred.IssuedAt.Add(models.CredentialLifetime), cred.ExpiresAt)
	assert.False(t, cred.RequiresMFA())

	ok, err := env.svc.VerifyPIN(context.Background(), userID, "174952")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.svc.VerifyPIN(context.Background(), userID, "638194")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnrollPIN_ReplacementKeepsSecondFactors(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	_, err := env.svc.EnrollPIN(context.Background(), userID, "174952")
	require.NoError(t, err)
	require.NoError(t, env.svc.EnrollPattern(context.Background(), userID, []int{0, 4, 8, 5}))

	// PIN reset replaces the row; the pattern enrollment survives.
	cred, err := env.svc.EnrollPIN(context.Background(), userID, "638194")
	require.NoError(t, err)
	assert.True(t, cred.HasPattern())

	ok, err := env.svc.VerifyPattern(context.Background(), userID, []int{0, 4, 8, 5})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.svc.VerifyPIN(context.Background(), userID, "638194")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPattern(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	_, err := env.svc.EnrollPIN(context.Background(), userID, "174952")
	require.NoError(t, err)
	require.NoError(t, env.svc.EnrollPattern(context.Background(), userID, []int{0, 4, 8, 5}))

	ok, err := env.svc.VerifyPattern(context.Background(), userID, []int{1, 2, 5, 8})
	require.NoError(t, err)
	assert.False(t, ok)

	// Shape violations are validation errors, not failed verifications.
	_, err = env.svc.VerifyPattern(context.Background(), userID, []int{0, 1})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.VerifyPattern(context.Background(), userID, []int{0, 1, 2, 9})
	assert.ErrorAs(t, err, &verr)
}

func TestVerifyPattern_NotEnrolled(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	_, err := env.svc.EnrollPIN(context.Background(), userID, "174952")
	require.NoError(t, err)

	_, err = env.svc.VerifyPattern(context.Background(), userID, []int{0, 4, 8, 5})
	assert.ErrorIs(t, err, models.ErrMFANotConfigured)
}

func TestEnrollAndVerifyTOTP(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	_, err := env.svc.EnrollPIN(context.Background(), userID, "174952")
	require.NoError(t, err)

	enrollment, err := env.svc.EnrollTOTP(context.Background(), userID, "amara")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.QRDataURL, "data:image/png;base64,")

	code, err := totp.GenerateCodeCustom(enrollment.Secret, env.svc.now(), totp.ValidateOpts{
		Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)

	ok, err := env.svc.VerifyTOTP(context.Background(), userID, code)
	require.NoError(t, err)
	assert.True(t, ok)

	// Reuse inside the replay horizon is rejected even though the code is
	// still arithmetically valid.
	env.advance(10 * time.Second)
	_, err = env.svc.VerifyTOTP(context.Background(), userID, code)
	assert.Error(t, err)
}

func TestVerifyTOTP_NotEnrolled(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	_, err := env.svc.EnrollPIN(context.Background(), userID, "174952")
	require.NoError(t, err)

	_, err = env.svc.VerifyTOTP(context.Background(), userID, "123456")
	assert.ErrorIs(t, err, models.ErrMFANotConfigured)
}

func TestRecoveryCodes(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	codes, err := env.svc.GenerateRecoveryCodes(context.Background(), userID, 8)
	require.NoError(t, err)
	require.Len(t, codes, 8)
	for _, code := range codes {
		assert.Regexp(t, `^[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{4}-[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{4}$`, code)
	}

	ok, err := env.svc.RedeemRecoveryCode(context.Background(), userID, codes[2])
	require.NoError(t, err)
	assert.True(t, ok)

	// Single use.
	ok, err = env.svc.RedeemRecoveryCode(context.Background(), userID, codes[2])
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.svc.RedeemRecoveryCode(context.Background(), userID, "ZZZZ-ZZZZ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetCredentialStatus_Bands(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	_, err := env.svc.EnrollPIN(context.Background(), userID, "174952")
	require.NoError(t, err)

	status, err := env.svc.GetCredentialStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusValid, status.Band)
	assert.Empty(t, status.Message)

	// 3 days remaining.
	env.advance(42 * 24 * time.Hour)
	status, err = env.svc.GetCredentialStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusWarning, status.Band)
	assert.Equal(t, 3, status.DaysRemaining)
	assert.Contains(t, status.Message, "3 days")

	// 3 days past expiry.
	env.advance(6 * 24 * time.Hour)
	status, err = env.svc.GetCredentialStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusReadOnly, status.Band)

	// 10 days past expiry.
	env.advance(7 * 24 * time.Hour)
	status, err = env.svc.GetCredentialStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusLocked, status.Band)

	// 20 days past expiry.
	env.advance(10 * 24 * time.Hour)
	status, err = env.svc.GetCredentialStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusArchived, status.Band)
}

func TestCleanupExpiredCredentials_ArchivesProfiles(t *testing.T) {
	env := newCredentialTestEnv(t)
	userID := uuid.New()

	require.NoError(t, env.profiles.Create(context.Background(), &models.Profile{
		ID:          userID,
		DisplayName: "Amara",
		Status:      models.ProfileStatusActive,
		CreatedAt:   env.svc.now(),
	}))

	_, err := env.svc.EnrollPIN(context.Background(), userID, "174952")
	require.NoError(t, err)

	// Not yet past the locked band: nothing to archive.
	env.advance(50 * 24 * time.Hour)
	archived, err := env.svc.CleanupExpiredCredentials(context.Background())
	require.NoError(t, err)
	assert.Zero(t, archived)

	env.advance(12 * 24 * time.Hour)
	archived, err = env.svc.CleanupExpiredCredentials(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, archived)

	profile, err := env.profiles.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.ProfileStatusArchived, profile.Status)
	require.NotNil(t, profile.ArchivedAt)
}
