package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, 8, newTestLogger())

	var persisted *domain.AuditLog
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, log *domain.AuditLog) error {
			persisted = log
			return nil
		},
	)

	userID := uuid.New()
	svc.Log(context.Background(), &domain.AuditLog{
		UserID:       &userID,
		Action:       domain.AuditActionTransfer,
		ResourceType: "transaction",
		ResourceID:   uuid.NewString(),
		IPAddress:    "127.0.0.1",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))

	require.NotNil(t, persisted)
	assert.Equal(t, domain.AuditActionTransfer, persisted.Action)
	assert.NotEqual(t, uuid.Nil, persisted.ID)
	assert.False(t, persisted.CreatedAt.IsZero())
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, 8, newTestLogger())

	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down")).Times(2)

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionLogin})
	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionLogin})

	require.NoError(t, svc.Close(context.Background()))
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, 0, newTestLogger())

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionLogin, ResourceType: "session"})
	require.NoError(t, svc.Close(context.Background()))
}

func TestAuditService_Log_AfterClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := NewAuditService(mocks.NewMockAuditRepository(ctrl), 1, newTestLogger())
	require.NoError(t, svc.Close(context.Background()))

	// Dropped without reaching the repository.
	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionOpenAccount})
	require.NoError(t, svc.Close(context.Background()))
}
