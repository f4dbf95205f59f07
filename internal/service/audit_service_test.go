package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"paylor/internal/adapter/storage/memory"
	"paylor/internal/core/domain"
	"paylor/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestAuditService_Log_Persists(t *testing.T) {
	store := memory.NewStore()
	svc := NewAuditService(store.Audit, newTestLogger())

	merchantID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	svc.Log(ctx, &domain.AuditLog{
		MerchantID:   &merchantID,
		Action:       domain.AuditActionInitiatePayment,
		ResourceType: "payment_intent",
		ResourceID:   uuid.NewString(),
		IPAddress:    "127.0.0.1",
	})
	cancel() // request finished before the write
	svc.Wait()

	entries := store.Audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditActionInitiatePayment, entries[0].Action)
	assert.NotEqual(t, uuid.Nil, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(repo, newTestLogger())

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionLogin, ResourceType: "session"})
	svc.Wait()
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionLogin, ResourceType: "session"})
	svc.Wait()
}
