package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lanternworks/lantern-core/internal/auth"
	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/lanternworks/lantern-core/internal/repositories"
	pkgauth "github.com/lanternworks/lantern-core/pkg/auth"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// CredentialService owns verifier lifecycle: PIN and pattern enrollment
// and verification, TOTP enrollment, recovery codes, and expiry bands.
//
// Argon2id derivations are memory-hard on purpose (≈100 ms, 64 MiB); they
// run through a weighted semaphore on a separate goroutine so the caller's
// event loop is never the one burning that budget, and at most one
// derivation holds the memory at a time. In-flight derivations always run
// to completion; there is no cancellation.
type CredentialService struct {
	credRepo    repositories.CredentialRepository
	profileRepo repositories.ProfileRepository
	totp        *auth.TOTPManager
	audit       *AuditService
	logger      *slog.Logger
	hashSem     *semaphore.Weighted
	now         func() time.Time
}

// NewCredentialService creates a new credential service
func NewCredentialService(
	credRepo repositories.CredentialRepository,
	profileRepo repositories.ProfileRepository,
	totp *auth.TOTPManager,
	audit *AuditService,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		credRepo:    credRepo,
		profileRepo: profileRepo,
		totp:        totp,
		audit:       audit,
		logger:      logger,
		hashSem:     semaphore.NewWeighted(1),
		now:         time.Now,
	}
}

// EnrollPIN validates the PIN against the policy blocklists, derives a
// fresh verifier, and replaces the stored credential. Existing pattern and
// TOTP enrollments carry over to the replacement row.
func (s *CredentialService) EnrollPIN(ctx context.Context, userID uuid.UUID, pin string) (*models.Credential, error) {
	if err := pkgauth.ValidatePIN(pin); err != nil {
		return nil, err
	}

	verifier, err := s.hashPIN(ctx, pin, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to derive PIN verifier: %w", err)
	}

	now := s.now()
	cred := &models.Credential{
		ID:          uuid.New(),
		UserID:      userID,
		PINVerifier: verifier,
		IssuedAt:    now,
		ExpiresAt:   now.Add(models.CredentialLifetime),
	}

	if existing, err := s.credRepo.GetByUserID(ctx, userID); err == nil {
		cred.PatternHash = existing.PatternHash
		cred.PatternSalt = existing.PatternSalt
		cred.PatternPointCount = existing.PatternPointCount
		cred.TOTPSecret = existing.TOTPSecret
		cred.TOTPNonce = existing.TOTPNonce
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if err := s.credRepo.Replace(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pin credential enrolled", slog.Any("user_id", userID))

	return cred, nil
}

// VerifyPIN checks a candidate PIN against the stored verifier.
func (s *CredentialService) VerifyPIN(ctx context.Context, userID uuid.UUID, pin string) (bool, error) {
	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}

	return s.verifyPIN(ctx, pin, userID.String(), cred.PINVerifier)
}

// EnrollPattern validates the pattern shape and replaces the credential
// with one carrying the new pattern verifier.
func (s *CredentialService) EnrollPattern(ctx context.Context, userID uuid.UUID, pattern []int) error {
	hash, salt, err := pkgauth.CreatePatternVerifier(pattern, userID.String())
	if err != nil {
		return err
	}

	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	replacement := *cred
	replacement.ID = uuid.New()
	replacement.PatternHash = hash
	replacement.PatternSalt = salt
	replacement.PatternPointCount = len(pattern)

	if err := s.credRepo.Replace(ctx, &replacement); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "pattern credential enrolled",
		slog.Any("user_id", userID),
		slog.Int("points", len(pattern)))

	return nil
}

// VerifyPattern checks a candidate pattern. Shape violations surface as a
// ValidationError before any hashing; they are not failed attempts.
func (s *CredentialService) VerifyPattern(ctx context.Context, userID uuid.UUID, pattern []int) (bool, error) {
	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !cred.HasPattern() {
		return false, models.ErrMFANotConfigured
	}

	return pkgauth.VerifyPattern(pattern, userID.String(), cred.PatternSalt, cred.PatternHash)
}

// EnrollTOTP generates a TOTP secret, stores it encrypted under the device
// key, and returns the provisioning QR for the authenticator app.
func (s *CredentialService) EnrollTOTP(ctx context.Context, userID uuid.UUID, accountName string) (*auth.Enrollment, error) {
	enrollment, err := s.totp.Enroll(accountName)
	if err != nil {
		return nil, err
	}

	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	replacement := *cred
	replacement.ID = uuid.New()
	replacement.TOTPSecret = enrollment.EncryptedSecret
	replacement.TOTPNonce = enrollment.Nonce
	replacement.TOTPLastUsedAt = nil

	if err := s.credRepo.Replace(ctx, &replacement); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "totp credential enrolled", slog.Any("user_id", userID))

	return enrollment, nil
}

// VerifyTOTP checks a candidate code against the decrypted secret.
func (s *CredentialService) VerifyTOTP(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !cred.HasTOTP() {
		return false, models.ErrMFANotConfigured
	}

	secret, err := s.totp.DecryptSecret(cred.TOTPSecret, cred.TOTPNonce)
	if err != nil {
		return false, err
	}

	now := s.now()
	ok, err := s.totp.Validate(secret, code, cred.TOTPLastUsedAt, now)
	if err != nil || !ok {
		return false, err
	}

	if err := s.credRepo.SetTOTPLastUsed(ctx, userID, now); err != nil {
		return false, err
	}

	return true, nil
}

// GenerateRecoveryCodes mints a fresh batch of single-use codes, replacing
// any previous batch, and returns the display forms exactly once.
func (s *CredentialService) GenerateRecoveryCodes(ctx context.Context, userID uuid.UUID, count int) ([]string, error) {
	codes, err := pkgauth.GenerateRecoveryCodes(count)
	if err != nil {
		return nil, err
	}

	stored := make([]*models.RecoveryCode, len(codes))
	for i, code := range codes {
		salt, err := pkgauth.NewRecoveryCodeSalt()
		if err != nil {
			return nil, err
		}
		stored[i] = &models.RecoveryCode{
			ID:       uuid.New(),
			UserID:   userID,
			CodeHash: pkgauth.HashRecoveryCode(code, salt),
			Salt:     salt,
		}
	}

	if err := s.credRepo.ReplaceRecoveryCodes(ctx, userID, stored); err != nil {
		return nil, err
	}

	return codes, nil
}

// RedeemRecoveryCode consumes a matching unused code. The scan is constant
// time across every unused code and the response never reveals which codes
// were compared.
func (s *CredentialService) RedeemRecoveryCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	stored, err := s.credRepo.ListRecoveryCodes(ctx, userID)
	if err != nil {
		return false, err
	}

	idx, err := pkgauth.FindRecoveryCode(code, stored)
	if err != nil {
		return false, err
	}
	if idx < 0 {
		return false, nil
	}

	if err := s.credRepo.MarkRecoveryCodeUsed(ctx, stored[idx].ID, s.now()); err != nil {
		return false, err
	}

	return true, nil
}

// GetCredentialStatus reports the advisory expiry band for the user's
// credential at the current instant.
func (s *CredentialService) GetCredentialStatus(ctx context.Context, userID uuid.UUID) (*models.CredentialStatus, error) {
	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := cred.Status(s.now())
	return &status, nil
}

// CleanupExpiredCredentials archives profiles whose credential aged past
// the locked band. Archiving never deletes progress data: archived
// profiles stay eligible for sync.
func (s *CredentialService) CleanupExpiredCredentials(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-15 * 24 * time.Hour)

	expired, err := s.credRepo.ListExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var archived int64
	for _, cred := range expired {
		if err := s.profileRepo.Archive(ctx, cred.UserID, s.now()); err != nil {
			s.logger.ErrorContext(ctx, "failed to archive profile",
				slog.Any("user_id", cred.UserID),
				slog.Any("error", err))
			continue
		}
		archived++
	}

	if archived > 0 {
		s.logger.InfoContext(ctx, "archived profiles with long-expired credentials",
			slog.Int64("count", archived))
	}

	return archived, nil
}

// hashPIN runs the argon2id derivation off the calling goroutine, bounded
// by the semaphore.
func (s *CredentialService) hashPIN(ctx context.Context, pin, userID string) (string, error) {
	if err := s.hashSem.Acquire(ctx, 1); err != nil {
		return "", err
	}

	type result struct {
		verifier string
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		defer s.hashSem.Release(1)
		v, err := pkgauth.CreatePINVerifier(pin, userID)
		ch <- result{v, err}
	}()

	r := <-ch
	return r.verifier, r.err
}

func (s *CredentialService) verifyPIN(ctx context.Context, pin, userID, verifier string) (bool, error) {
	if err := s.hashSem.Acquire(ctx, 1); err != nil {
		return false, err
	}

	type result struct {
		ok  bool
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer s.hashSem.Release(1)
		ok, err := pkgauth.VerifyPIN(pin, userID, verifier)
		ch <- result{ok, err}
	}()

	r := <-ch
	return r.ok, r.err
}
