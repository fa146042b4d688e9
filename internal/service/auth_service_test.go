package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
	"agile-bank/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAuthService(t *testing.T) (
	*AuthServiceImpl,
	*mocks.MockUserRepository,
	*mocks.MockHashService,
	*mocks.MockTokenService,
	*gomock.Controller,
) {
	ctrl := gomock.NewController(t)
	userRepo := mocks.NewMockUserRepository(ctrl)
	hashSvc := mocks.NewMockHashService(ctrl)
	tokenSvc := mocks.NewMockTokenService(ctrl)

	svc := NewAuthService(userRepo, hashSvc, tokenSvc)
	return svc, userRepo, hashSvc, tokenSvc, ctrl
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, userRepo, hashSvc, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	req := ports.RegisterRequest{Username: "  Teller_01 ", Password: "StrongP@ss123"}

	userRepo.EXPECT().GetByUsername(ctx, "teller_01").Return(nil, nil)
	hashSvc.EXPECT().Hash(req.Password).Return("$argon2id$hashed", nil)
	userRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	user, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "teller_01", user.Username)
	assert.Equal(t, "$argon2id$hashed", user.PasswordHash)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	svc, userRepo, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	userRepo.EXPECT().GetByUsername(gomock.Any(), "taken").Return(&domain.User{ID: uuid.New()}, nil)

	_, err := svc.Register(context.Background(), ports.RegisterRequest{Username: "taken", Password: "x"})
	assertAppError(t, err, "AUTH_002")
}

func TestAuthService_Register_HashError(t *testing.T) {
	svc, userRepo, hashSvc, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	userRepo.EXPECT().GetByUsername(gomock.Any(), "u").Return(nil, nil)
	hashSvc.EXPECT().Hash("p").Return("", errors.New("entropy"))

	_, err := svc.Register(context.Background(), ports.RegisterRequest{Username: "u", Password: "p"})
	assertAppError(t, err, "SYS_001")
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, userRepo, hashSvc, tokenSvc, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Username: "teller", PasswordHash: "$hash"}
	expiry := time.Now().Add(time.Hour)

	userRepo.EXPECT().GetByUsername(ctx, "teller").Return(user, nil)
	hashSvc.EXPECT().Verify("secret", "$hash").Return(true, nil)
	tokenSvc.EXPECT().Generate(user.ID, "teller").Return("jwt-token", expiry, nil)

	token, exp, err := svc.Login(ctx, "Teller", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, exp)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	svc, userRepo, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	userRepo.EXPECT().GetByUsername(gomock.Any(), "ghost").Return(nil, nil)

	_, _, err := svc.Login(context.Background(), "ghost", "x")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, userRepo, hashSvc, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	userRepo.EXPECT().GetByUsername(gomock.Any(), "teller").Return(&domain.User{PasswordHash: "$hash"}, nil)
	hashSvc.EXPECT().Verify("wrong", "$hash").Return(false, nil)

	_, _, err := svc.Login(context.Background(), "teller", "wrong")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_RepoError(t *testing.T) {
	svc, userRepo, _, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	userRepo.EXPECT().GetByUsername(gomock.Any(), "teller").Return(nil, errors.New("db down"))

	_, _, err := svc.Login(context.Background(), "teller", "x")
	assertAppError(t, err, "SYS_001")
}

func TestAuthService_Register_LostRace(t *testing.T) {
	svc, userRepo, hashSvc, _, ctrl := setupAuthService(t)
	defer ctrl.Finish()

	userRepo.EXPECT().GetByUsername(gomock.Any(), "teller").Return(nil, nil)
	hashSvc.EXPECT().Hash("p").Return("$hash", nil)
	userRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(fmt.Errorf("insert user: %w", domain.ErrUsernameTaken))

	_, err := svc.Register(context.Background(), ports.RegisterRequest{Username: "teller", Password: "p"})
	assertAppError(t, err, "AUTH_002")
}
