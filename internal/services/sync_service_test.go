package services

import (
	"context"
	"testing"
	"time"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSyncService(t *testing.T) (*SyncService, *mockOutboxRepo) {
	t.Helper()
	repo := newMockOutboxRepo()
	svc := NewSyncService(repo, testLogger())
	now, _ := fixedClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc.now = now
	return svc, repo
}

func TestSyncEnqueueAndDrain(t *testing.T) {
	svc, _ := newTestSyncService(t)
	userID := uuid.New()

	first, err := svc.Enqueue(context.Background(), userID, models.SyncKindProgress, []byte(`{"seq":1}`))
	require.NoError(t, err)
	second, err := svc.Enqueue(context.Background(), userID, models.SyncKindQuizAttempt, []byte(`{"quiz":"q1"}`))
	require.NoError(t, err)

	pending, err := svc.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)

	require.NoError(t, svc.MarkSent(context.Background(), first.ID))

	pending, err = svc.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestSyncEnqueue_UnknownKind(t *testing.T) {
	svc, _ := newTestSyncService(t)

	_, err := svc.Enqueue(context.Background(), uuid.New(), "telemetry", []byte(`{}`))
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSyncMarkSent_Idempotent(t *testing.T) {
	svc, _ := newTestSyncService(t)

	entry, err := svc.Enqueue(context.Background(), uuid.New(), models.SyncKindProgress, []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, svc.MarkSent(context.Background(), entry.ID))
	require.NoError(t, svc.MarkSent(context.Background(), entry.ID))

	pending, err := svc.ListPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncListPending_Limit(t *testing.T) {
	svc, _ := newTestSyncService(t)
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := svc.Enqueue(context.Background(), userID, models.SyncKindProgress, []byte(`{}`))
		require.NoError(t, err)
	}

	pending, err := svc.ListPending(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestAuditLogIsBestEffort(t *testing.T) {
	repo := newMockAuditLogRepo()
	repo.failAll = true
	svc := NewAuditService(repo, testLogger())

	// Must not panic or surface the storage failure.
	svc.Log(context.Background(), uuid.New(), models.AuditEventPINFailed, nil)
	assert.Empty(t, repo.entries)
}
