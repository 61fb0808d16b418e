package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lanternworks/lantern-core/internal/database"
	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
)

// CredentialRepository defines credential persistence operations. A reset
// replaces the stored credential row rather than mutating it in place.
type CredentialRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Credential, error)
	Replace(ctx context.Context, cred *models.Credential) error
	SetTOTPLastUsed(ctx context.Context, userID uuid.UUID, at time.Time) error
	ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]*models.Credential, error)

	ReplaceRecoveryCodes(ctx context.Context, userID uuid.UUID, codes []*models.RecoveryCode) error
	ListRecoveryCodes(ctx context.Context, userID uuid.UUID) ([]models.RecoveryCode, error)
	MarkRecoveryCodeUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type credentialRepoImpl struct {
	db *database.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *database.DB) CredentialRepository {
	return &credentialRepoImpl{db: db}
}

func (r *credentialRepoImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Credential, error) {
	query := `
		SELECT id, user_id, pin_verifier, pattern_hash, pattern_salt, pattern_point_count,
		       totp_secret, totp_nonce, totp_last_used_at, issued_at, expires_at
		FROM credentials WHERE user_id = ?
	`

	var c models.Credential
	var lastUsed sql.NullTime
	err := r.db.SQL.QueryRowContext(ctx, query, userID.String()).Scan(
		&c.ID, &c.UserID, &c.PINVerifier, &c.PatternHash, &c.PatternSalt, &c.PatternPointCount,
		&c.TOTPSecret, &c.TOTPNonce, &lastUsed, &c.IssuedAt, &c.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapStorageError(err)
	}
	if lastUsed.Valid {
		c.TOTPLastUsedAt = &lastUsed.Time
	}

	return &c, nil
}

// Replace swaps the user's credential for a new row atomically.
func (r *credentialRepoImpl) Replace(ctx context.Context, cred *models.Credential) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE user_id = ?`, cred.UserID.String()); err != nil {
			return fmt.Errorf("failed to remove previous credential: %w", database.MapStorageError(err))
		}

		query := `
			INSERT INTO credentials
				(id, user_id, pin_verifier, pattern_hash, pattern_salt, pattern_point_count,
				 totp_secret, totp_nonce, totp_last_used_at, issued_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			cred.ID.String(), cred.UserID.String(), cred.PINVerifier,
			cred.PatternHash, cred.PatternSalt, cred.PatternPointCount,
			cred.TOTPSecret, cred.TOTPNonce, cred.TOTPLastUsedAt,
			cred.IssuedAt, cred.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to store credential: %w", database.MapStorageError(err))
		}
		return nil
	})
}

func (r *credentialRepoImpl) SetTOTPLastUsed(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE credentials SET totp_last_used_at = ? WHERE user_id = ?`, at, userID.String())
	if err != nil {
		return fmt.Errorf("failed to record totp use: %w", database.MapStorageError(err))
	}
	return nil
}

func (r *credentialRepoImpl) ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]*models.Credential, error) {
	query := `
		SELECT id, user_id, pin_verifier, pattern_hash, pattern_salt, pattern_point_count,
		       totp_secret, totp_nonce, totp_last_used_at, issued_at, expires_at
		FROM credentials WHERE expires_at < ?
	`

	rows, err := r.db.SQL.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired credentials: %w", database.MapStorageError(err))
	}
	defer rows.Close()

	creds := make([]*models.Credential, 0)
	for rows.Next() {
		var c models.Credential
		var lastUsed sql.NullTime
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.PINVerifier, &c.PatternHash, &c.PatternSalt, &c.PatternPointCount,
			&c.TOTPSecret, &c.TOTPNonce, &lastUsed, &c.IssuedAt, &c.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		if lastUsed.Valid {
			c.TOTPLastUsedAt = &lastUsed.Time
		}
		creds = append(creds, &c)
	}

	return creds, rows.Err()
}

// ReplaceRecoveryCodes discards any previous batch and stores the new one.
func (r *credentialRepoImpl) ReplaceRecoveryCodes(ctx context.Context, userID uuid.UUID, codes []*models.RecoveryCode) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE user_id = ?`, userID.String()); err != nil {
			return fmt.Errorf("failed to clear recovery codes: %w", database.MapStorageError(err))
		}

		for _, code := range codes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO recovery_codes (id, user_id, code_hash, salt, used) VALUES (?, ?, ?, ?, 0)`,
				code.ID.String(), userID.String(), code.CodeHash, code.Salt)
			if err != nil {
				return fmt.Errorf("failed to store recovery code: %w", database.MapStorageError(err))
			}
		}
		return nil
	})
}

func (r *credentialRepoImpl) ListRecoveryCodes(ctx context.Context, userID uuid.UUID) ([]models.RecoveryCode, error) {
	query := `
		SELECT id, user_id, code_hash, salt, used, used_at
		FROM recovery_codes WHERE user_id = ? ORDER BY id
	`

	rows, err := r.db.SQL.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery codes: %w", database.MapStorageError(err))
	}
	defer rows.Close()

	codes := make([]models.RecoveryCode, 0)
	for rows.Next() {
		var c models.RecoveryCode
		var usedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.Salt, &c.Used, &usedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recovery code: %w", err)
		}
		if usedAt.Valid {
			c.UsedAt = &usedAt.Time
		}
		codes = append(codes, c)
	}

	return codes, rows.Err()
}

func (r *credentialRepoImpl) MarkRecoveryCodeUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE recovery_codes SET used = 1, used_at = ? WHERE id = ? AND used = 0`, at, id.String())
	if err != nil {
		return fmt.Errorf("failed to mark recovery code used: %w", database.MapStorageError(err))
	}
	return nil
}
