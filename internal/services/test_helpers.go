package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
)

// In-memory repository fakes for service tests. They mimic storage
// round-trips: getters return copies, so a service must call the update
// method for a mutation to stick.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns a now-func pinned to t plus whatever offset the
// returned advance func has accumulated.
func fixedClock(t time.Time) (now func() time.Time, advance func(d time.Duration)) {
	current := t
	return func() time.Time { return current },
		func(d time.Duration) { current = current.Add(d) }
}

type mockProfileRepo struct {
	profiles map[uuid.UUID]*models.Profile
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[uuid.UUID]*models.Profile)}
}

func (m *mockProfileRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileRepo) Create(_ context.Context, profile *models.Profile) error {
	if _, ok := m.profiles[profile.ID]; ok {
		return models.ErrConflict
	}
	cp := *profile
	m.profiles[profile.ID] = &cp
	return nil
}

func (m *mockProfileRepo) Archive(_ context.Context, id uuid.UUID, at time.Time) error {
	p, ok := m.profiles[id]
	if !ok {
		return nil
	}
	p.Status = models.ProfileStatusArchived
	p.ArchivedAt = &at
	return nil
}

type mockCredentialRepo struct {
	creds    map[uuid.UUID]*models.Credential
	recovery map[uuid.UUID][]models.RecoveryCode
}

func newMockCredentialRepo() *mockCredentialRepo {
	return &mockCredentialRepo{
		creds:    make(map[uuid.UUID]*models.Credential),
		recovery: make(map[uuid.UUID][]models.RecoveryCode),
	}
}

func (m *mockCredentialRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Credential, error) {
	c, ok := m.creds[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCredentialRepo) Replace(_ context.Context, cred *models.Credential) error {
	cp := *cred
	m.creds[cred.UserID] = &cp
	return nil
}

func (m *mockCredentialRepo) SetTOTPLastUsed(_ context.Context, userID uuid.UUID, at time.Time) error {
	c, ok := m.creds[userID]
	if !ok {
		return models.ErrNotFound
	}
	c.TOTPLastUsedAt = &at
	return nil
}

func (m *mockCredentialRepo) ListExpiredBefore(_ context.Context, cutoff time.Time) ([]*models.Credential, error) {
	expired := make([]*models.Credential, 0)
	for _, c := range m.creds {
		if c.ExpiresAt.Before(cutoff) {
			cp := *c
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}

func (m *mockCredentialRepo) ReplaceRecoveryCodes(_ context.Context, userID uuid.UUID, codes []*models.RecoveryCode) error {
	stored := make([]models.RecoveryCode, len(codes))
	for i, c := range codes {
		stored[i] = *c
	}
	m.recovery[userID] = stored
	return nil
}

func (m *mockCredentialRepo) ListRecoveryCodes(_ context.Context, userID uuid.UUID) ([]models.RecoveryCode, error) {
	codes := make([]models.RecoveryCode, len(m.recovery[userID]))
	copy(codes, m.recovery[userID])
	return codes, nil
}

func (m *mockCredentialRepo) MarkRecoveryCodeUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	for userID, codes := range m.recovery {
		for i := range codes {
			if codes[i].ID == id && !codes[i].Used {
				m.recovery[userID][i].Used = true
				m.recovery[userID][i].UsedAt = &at
				return nil
			}
		}
	}
	return nil
}

type mockSessionRepo struct {
	sessions map[uuid.UUID]*models.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[uuid.UUID]*models.Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, session *models.Session) error {
	if _, ok := m.sessions[session.ID]; ok {
		return models.ErrConflict
	}
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionRepo) GetActiveByUserID(_ context.Context, userID uuid.UUID) (*models.Session, error) {
	var newest *models.Session
	for _, s := range m.sessions {
		if s.UserID != userID || !s.IsActive {
			continue
		}
		if newest == nil || s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	if newest == nil {
		return nil, models.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *mockSessionRepo) Update(_ context.Context, session *models.Session) error {
	if _, ok := m.sessions[session.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *mockSessionRepo) SetActivity(_ context.Context, id uuid.UUID, at time.Time) error {
	s, ok := m.sessions[id]
	if !ok {
		return models.ErrNotFound
	}
	s.LastActivityAt = at
	return nil
}

func (m *mockSessionRepo) EndAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) EndExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, s := range m.sessions {
		if s.IsActive && s.ExpiresAt.Before(now) {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

type lockoutKey struct {
	userID  uuid.UUID
	context models.AttemptContext
}

type mockLockoutRepo struct {
	states map[lockoutKey]*models.LockoutState
}

func newMockLockoutRepo() *mockLockoutRepo {
	return &mockLockoutRepo{states: make(map[lockoutKey]*models.LockoutState)}
}

func (m *mockLockoutRepo) Get(_ context.Context, userID uuid.UUID, context_ models.AttemptContext) (*models.LockoutState, error) {
	s, ok := m.states[lockoutKey{userID, context_}]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockLockoutRepo) Mutate(_ context.Context, userID uuid.UUID, context_ models.AttemptContext,
	fn func(state *models.LockoutState)) (*models.LockoutState, error) {

	key := lockoutKey{userID, context_}
	state, ok := m.states[key]
	if !ok {
		state = &models.LockoutState{UserID: userID, Context: context_}
	}

	cp := *state
	fn(&cp)
	m.states[key] = &cp

	out := cp
	return &out, nil
}

type mockProgressRepo struct {
	records map[uuid.UUID][]*models.ProgressRecord
	outbox  *mockOutboxRepo
}

func newMockProgressRepo(outbox *mockOutboxRepo) *mockProgressRepo {
	return &mockProgressRepo{
		records: make(map[uuid.UUID][]*models.ProgressRecord),
		outbox:  outbox,
	}
}

func (m *mockProgressRepo) Append(ctx context.Context, userID uuid.UUID,
	build func(last *models.ProgressRecord) (*models.ProgressRecord, *models.SyncOutboxEntry, error)) (*models.ProgressRecord, error) {

	var last *models.ProgressRecord
	if records := m.records[userID]; len(records) > 0 {
		cp := *records[len(records)-1]
		last = &cp
	}

	rec, outbox, err := build(last)
	if err != nil {
		return nil, err
	}

	cp := *rec
	m.records[userID] = append(m.records[userID], &cp)
	if outbox != nil && m.outbox != nil {
		if err := m.outbox.Enqueue(ctx, outbox); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (m *mockProgressRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.ProgressRecord, error) {
	records := make([]*models.ProgressRecord, 0, len(m.records[userID]))
	for _, r := range m.records[userID] {
		cp := *r
		records = append(records, &cp)
	}
	return records, nil
}

func (m *mockProgressRepo) ListByUserAndCourse(_ context.Context, userID uuid.UUID, courseID string) ([]*models.ProgressRecord, error) {
	records := make([]*models.ProgressRecord, 0)
	for _, r := range m.records[userID] {
		if r.CourseID == courseID {
			cp := *r
			records = append(records, &cp)
		}
	}
	return records, nil
}

// tamper rewrites a stored record in place, bypassing the append-only
// surface, to simulate on-disk modification.
func (m *mockProgressRepo) tamper(userID uuid.UUID, seq int64, mutate func(*models.ProgressRecord)) {
	for _, r := range m.records[userID] {
		if r.SequenceNumber == seq {
			mutate(r)
			return
		}
	}
}

type mockQuizAttemptRepo struct {
	records []*models.QuizAttemptRecord
	outbox  *mockOutboxRepo
}

func newMockQuizAttemptRepo(outbox *mockOutboxRepo) *mockQuizAttemptRepo {
	return &mockQuizAttemptRepo{outbox: outbox}
}

func (m *mockQuizAttemptRepo) Create(ctx context.Context, rec *models.QuizAttemptRecord, outbox *models.SyncOutboxEntry) error {
	for _, existing := range m.records {
		if existing.AttemptID == rec.AttemptID {
			return models.ErrConflict
		}
	}
	cp := *rec
	m.records = append(m.records, &cp)
	if outbox != nil && m.outbox != nil {
		return m.outbox.Enqueue(ctx, outbox)
	}
	return nil
}

func (m *mockQuizAttemptRepo) GetByAttemptID(_ context.Context, attemptID uuid.UUID) (*models.QuizAttemptRecord, error) {
	for _, r := range m.records {
		if r.AttemptID == attemptID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *mockQuizAttemptRepo) ListByUserAndCourse(_ context.Context, userID uuid.UUID, courseID string) ([]*models.QuizAttemptRecord, error) {
	records := make([]*models.QuizAttemptRecord, 0)
	for _, r := range m.records {
		if r.UserID == userID && r.CourseID == courseID {
			cp := *r
			records = append(records, &cp)
		}
	}
	return records, nil
}

type mockOutboxRepo struct {
	entries []*models.SyncOutboxEntry
}

func newMockOutboxRepo() *mockOutboxRepo {
	return &mockOutboxRepo{}
}

func (m *mockOutboxRepo) Enqueue(_ context.Context, entry *models.SyncOutboxEntry) error {
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockOutboxRepo) ListPending(_ context.Context, limit int) ([]*models.SyncOutboxEntry, error) {
	pending := make([]*models.SyncOutboxEntry, 0)
	for _, e := range m.entries {
		if e.SentAt == nil {
			cp := *e
			pending = append(pending, &cp)
			if len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (m *mockOutboxRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	for _, e := range m.entries {
		if e.ID == id && e.SentAt == nil {
			e.SentAt = &at
			return nil
		}
	}
	return nil
}

type mockAuditLogRepo struct {
	entries []*models.AuditLog
	failAll bool
}

func newMockAuditLogRepo() *mockAuditLogRepo {
	return &mockAuditLogRepo{}
}

func (m *mockAuditLogRepo) Append(_ context.Context, entry *models.AuditLog) error {
	if m.failAll {
		return errors.New("audit storage unavailable")
	}
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockAuditLogRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	logs := make([]*models.AuditLog, 0)
	for i := len(m.entries) - 1; i >= 0 && len(logs) < limit; i-- {
		if m.entries[i].UserID == userID {
			cp := *m.entries[i]
			logs = append(logs, &cp)
		}
	}
	return logs, nil
}

func (m *mockAuditLogRepo) eventTypes(userID uuid.UUID) []string {
	types := make([]string, 0)
	for _, e := range m.entries {
		if e.UserID == userID {
			types = append(types, e.EventType)
		}
	}
	return types
}
