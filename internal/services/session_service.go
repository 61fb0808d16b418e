package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lanternworks/lantern-core/internal/auth"
	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/lanternworks/lantern-core/internal/repositories"
	"github.com/google/uuid"
)

// SessionService drives the session state machine:
//
//	Unauthenticated -> (PIN ok, no MFA)            -> Authenticated
//	Unauthenticated -> (PIN ok, MFA configured)    -> PendingMFA -> (MFA ok) -> Authenticated
//	Authenticated   -> (idle/duration/hidden trip) -> Locked -> (PIN re-entry) -> Authenticated
//	Authenticated/Locked -> (logout, expiry sweep) -> Ended (terminal)
//
// Session rows encode the states with two fields: Locked is IsActive=false
// with ExpiresAt in the future; Ended is IsActive=false with ExpiresAt in
// the past (EndSession forces ExpiresAt to now). Unlock refuses expired
// sessions, which is what makes Ended terminal.
type SessionService struct {
	sessionRepo repositories.SessionRepository
	credRepo    repositories.CredentialRepository
	creds       *CredentialService
	lockout     *LockoutService
	audit       *AuditService
	timing      *auth.TimingDelay
	logger      *slog.Logger
	now         func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	sessionRepo repositories.SessionRepository,
	credRepo repositories.CredentialRepository,
	creds *CredentialService,
	lockout *LockoutService,
	audit *AuditService,
	timing *auth.TimingDelay,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		credRepo:    credRepo,
		creds:       creds,
		lockout:     lockout,
		audit:       audit,
		timing:      timing,
		logger:      logger,
		now:         time.Now,
	}
}

// LoginResult reports the outcome of a PIN login attempt. A wrong PIN is
// not an error: the result carries the remaining-attempts or lockout
// information the UI shows.
type LoginResult struct {
	OK                bool
	Session           *models.Session
	RequiresMFA       bool
	RemainingAttempts int
	LockedUntil       *time.Time
}

// MFAResult reports the outcome of a second-factor verification.
type MFAResult struct {
	OK                bool
	Session           *models.Session
	RemainingAttempts int
	LockedUntil       *time.Time
}

// AttemptPINLogin verifies the primary credential and creates a session.
// Refused outright with a LockoutError while the PIN context is locked;
// the lockout counter is not touched during the refusal.
func (s *SessionService) AttemptPINLogin(ctx context.Context, userID uuid.UUID, pin string) (*LoginResult, error) {
	start := s.now()

	status, err := s.lockout.GetLockoutStatus(ctx, userID, models.AttemptContextPIN)
	if err != nil {
		return nil, err
	}
	if status.IsLocked {
		return nil, &models.LockoutError{Context: models.AttemptContextPIN, LockedUntil: *status.LockedUntil}
	}

	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.creds.verifyPIN(ctx, pin, userID.String(), cred.PINVerifier)
	if err != nil {
		return nil, err
	}
	s.timing.WaitFrom(start, ok)

	if !ok {
		return s.recordPINFailure(ctx, userID)
	}

	if err := s.lockout.ResetFailedAttempts(ctx, userID, models.AttemptContextPIN); err != nil {
		return nil, err
	}

	now := s.now()
	requiresMFA := cred.RequiresMFA()
	session := &models.Session{
		ID:             uuid.New(),
		UserID:         userID,
		PINVerified:    true,
		MFAVerified:    !requiresMFA,
		CreatedAt:      now,
		ExpiresAt:      now.Add(models.SessionMaxDuration),
		LastActivityAt: now,
		IsActive:       true,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, userID, models.AuditEventSessionCreated, models.AuditDetails{
		"session_id":   session.ID.String(),
		"requires_mfa": requiresMFA,
	})
	s.logger.InfoContext(ctx, "session created",
		slog.Any("user_id", userID),
		slog.Any("session_id", session.ID),
		slog.Bool("requires_mfa", requiresMFA))

	return &LoginResult{OK: true, Session: session, RequiresMFA: requiresMFA}, nil
}

// VerifyPatternMFA verifies the pattern second factor for a pending
// session. Shape violations surface as a ValidationError and are not
// counted as failed attempts.
func (s *SessionService) VerifyPatternMFA(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, pattern []int) (*MFAResult, error) {
	return s.verifyMFA(ctx, userID, sessionID, models.MFAMethodPattern, func() (bool, error) {
		return s.creds.VerifyPattern(ctx, userID, pattern)
	})
}

// VerifyTOTPMFA verifies a TOTP code for a pending session.
func (s *SessionService) VerifyTOTPMFA(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, code string) (*MFAResult, error) {
	return s.verifyMFA(ctx, userID, sessionID, models.MFAMethodTOTP, func() (bool, error) {
		return s.creds.VerifyTOTP(ctx, userID, code)
	})
}

func (s *SessionService) verifyMFA(ctx context.Context, userID, sessionID uuid.UUID, method string, verify func() (bool, error)) (*MFAResult, error) {
	status, err := s.lockout.GetLockoutStatus(ctx, userID, models.AttemptContextMFA)
	if err != nil {
		return nil, err
	}
	if status.IsLocked {
		return nil, &models.LockoutError{Context: models.AttemptContextMFA, LockedUntil: *status.LockedUntil}
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID || !session.PINVerified {
		return nil, models.ErrSessionNotActive
	}
	if !session.IsActive || session.IsExpired(s.now()) {
		return nil, models.ErrSessionExpired
	}

	ok, err := verify()
	if err != nil {
		return nil, err
	}

	if !ok {
		res, err := s.lockout.RecordFailedAttempt(ctx, userID, models.AttemptContextMFA)
		if err != nil {
			return nil, err
		}
		s.audit.Log(ctx, userID, models.AuditEventMFAFailed, models.AuditDetails{
			"session_id": sessionID.String(),
			"method":     method,
		})
		if res.IsLocked {
			s.audit.Log(ctx, userID, models.AuditEventAccountLocked, models.AuditDetails{
				"context":      string(models.AttemptContextMFA),
				"locked_until": res.LockoutUntil.Format(time.RFC3339),
			})
		}
		return &MFAResult{OK: false, RemainingAttempts: res.RemainingAttempts, LockedUntil: res.LockoutUntil}, nil
	}

	if err := s.lockout.ResetFailedAttempts(ctx, userID, models.AttemptContextMFA); err != nil {
		return nil, err
	}

	session.MFAVerified = true
	session.MFAMethod = method
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, userID, models.AuditEventMFAVerified, models.AuditDetails{
		"session_id": sessionID.String(),
		"method":     method,
	})

	return &MFAResult{OK: true, Session: session}, nil
}

// ShouldLockSession reports whether the session must transition to Locked.
// Pure predicate; the caller evaluates it on activity and visibility
// events, there are no background timers.
func (s *SessionService) ShouldLockSession(session *models.Session) bool {
	return session.ShouldLock(s.now())
}

// IsSessionExpired reports whether the session passed its hard expiry.
func (s *SessionService) IsSessionExpired(session *models.Session) bool {
	return session.IsExpired(s.now())
}

// TouchActivity records user activity on the session, coalesced to one
// storage write per ActivityWriteInterval.
func (s *SessionService) TouchActivity(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsActive {
		return models.ErrSessionNotActive
	}

	now := s.now()
	if now.Sub(session.LastActivityAt) < models.ActivityWriteInterval {
		return nil
	}

	return s.sessionRepo.SetActivity(ctx, sessionID, now)
}

// SetHidden tracks tab visibility; the hidden timestamp feeds the
// tab-hidden auto-lock predicate.
func (s *SessionService) SetHidden(ctx context.Context, sessionID uuid.UUID, hidden bool) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if hidden {
		now := s.now()
		session.HiddenAt = &now
	} else {
		session.HiddenAt = nil
	}

	return s.sessionRepo.Update(ctx, session)
}

// LockSession transitions Authenticated -> Locked.
func (s *SessionService) LockSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsActive {
		return models.ErrSessionNotActive
	}

	session.IsActive = false
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return err
	}

	s.audit.Log(ctx, session.UserID, models.AuditEventSessionLocked, models.AuditDetails{
		"session_id": sessionID.String(),
	})

	return nil
}

// UnlockSession transitions Locked -> Authenticated on successful PIN
// re-entry. The PIN lockout context gates re-entry attempts exactly like
// login.
func (s *SessionService) UnlockSession(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, pin string) (*LoginResult, error) {
	status, err := s.lockout.GetLockoutStatus(ctx, userID, models.AttemptContextPIN)
	if err != nil {
		return nil, err
	}
	if status.IsLocked {
		return nil, &models.LockoutError{Context: models.AttemptContextPIN, LockedUntil: *status.LockedUntil}
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, models.ErrSessionNotActive
	}
	if session.IsExpired(s.now()) {
		return nil, models.ErrSessionExpired
	}

	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.creds.verifyPIN(ctx, pin, userID.String(), cred.PINVerifier)
	if err != nil {
		return nil, err
	}

	if !ok {
		return s.recordPINFailure(ctx, userID)
	}

	if err := s.lockout.ResetFailedAttempts(ctx, userID, models.AttemptContextPIN); err != nil {
		return nil, err
	}

	session.IsActive = true
	session.LastActivityAt = s.now()
	session.HiddenAt = nil
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, userID, models.AuditEventSessionUnlocked, models.AuditDetails{
		"session_id": sessionID.String(),
	})

	return &LoginResult{OK: true, Session: session}, nil
}

// EndSession transitions to Ended, the terminal state.
func (s *SessionService) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	session.IsActive = false
	session.ExpiresAt = s.now()
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return err
	}

	s.audit.Log(ctx, session.UserID, models.AuditEventSessionEnded, models.AuditDetails{
		"session_id": sessionID.String(),
	})

	return nil
}

// Logout is an explicit user sign-out: the session ends and a logout
// event is recorded alongside session_ended.
func (s *SessionService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.EndSession(ctx, sessionID); err != nil {
		return err
	}

	s.audit.Log(ctx, session.UserID, models.AuditEventLogout, models.AuditDetails{
		"session_id": sessionID.String(),
	})

	return nil
}

// GetActiveSession returns the most recent active session for the user.
func (s *SessionService) GetActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	return s.sessionRepo.GetActiveByUserID(ctx, userID)
}

// ClearUserSessions ends every active session for the user.
func (s *SessionService) ClearUserSessions(ctx context.Context, userID uuid.UUID) error {
	ended, err := s.sessionRepo.EndAllForUser(ctx, userID)
	if err != nil {
		return err
	}

	if ended > 0 {
		s.audit.Log(ctx, userID, models.AuditEventSessionEnded, models.AuditDetails{
			"ended_count": ended,
		})
	}

	return nil
}

// CleanupExpiredSessions is an idempotent sweep that ends sessions past
// their hard expiry.
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	ended, err := s.sessionRepo.EndExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}

	if ended > 0 {
		s.logger.InfoContext(ctx, "expired session sweep completed", slog.Int64("ended", ended))
	}

	return ended, nil
}

func (s *SessionService) recordPINFailure(ctx context.Context, userID uuid.UUID) (*LoginResult, error) {
	res, err := s.lockout.RecordFailedAttempt(ctx, userID, models.AttemptContextPIN)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, userID, models.AuditEventPINFailed, nil)
	if res.IsLocked {
		s.audit.Log(ctx, userID, models.AuditEventAccountLocked, models.AuditDetails{
			"context":      string(models.AttemptContextPIN),
			"locked_until": res.LockoutUntil.Format(time.RFC3339),
		})
	}

	return &LoginResult{OK: false, RemainingAttempts: res.RemainingAttempts, LockedUntil: res.LockoutUntil}, nil
}
