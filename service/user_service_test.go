package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"valera/models"
)

func TestUserService_GetOrCreateUser_ExistingUser(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockBalanceHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, mockBalanceHistoryRepo, nil, nil)

	service := NewUserService(mockFactory, 10)

	existingUser := &models.User{
		TelegramID: 123456,
		Name:       "testuser",
		Balance:    50,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	// No Commit() expected since user exists and no changes are made

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(existingUser, nil)

	user, err := service.GetOrCreateUser(ctx, 123456, "testuser", nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, existingUser, user)

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockBalanceHistoryRepo.AssertNotCalled(t, "Record")
}

func TestUserService_GetOrCreateUser_NewUser(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockBalanceHistoryRepo := new(MockBalanceHistoryRepository)
	mockEventBus := new(MockEventPublisher)

	mockUoW.SetRepositories(mockUserRepo, nil, mockBalanceHistoryRepo, nil, mockEventBus)
	mockEventBus.On("Publish", mock.Anything).Return()

	service := NewUserService(mockFactory, 10)

	referrerID := int64(777)
	newUser := &models.User{
		TelegramID: 123456,
		Name:       "newuser",
		Balance:    10,
		ReferrerID: &referrerID,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(nil, nil)
	mockUserRepo.On("Create", ctx, int64(123456), "newuser", (*string)(nil), &referrerID, int64(10)).Return(newUser, nil)

	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TelegramID == 123456 &&
			h.BalanceBefore == 0 &&
			h.BalanceAfter == 10 &&
			h.ChangeAmount == 10 &&
			h.TransactionType == models.TransactionTypeInitial
	})).Return(nil)

	user, err := service.GetOrCreateUser(ctx, 123456, "newuser", nil, &referrerID)

	assert.NoError(t, err)
	assert.Equal(t, newUser, user)

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockBalanceHistoryRepo.AssertExpectations(t)
}

func TestUserService_GetOrCreateUser_DropsSelfReferrer(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockBalanceHistoryRepo := new(MockBalanceHistoryRepository)
	mockEventBus := new(MockEventPublisher)

	mockUoW.SetRepositories(mockUserRepo, nil, mockBalanceHistoryRepo, nil, mockEventBus)
	mockEventBus.On("Publish", mock.Anything).Return()

	service := NewUserService(mockFactory, 10)

	newUser := &models.User{TelegramID: 123456, Name: "selfref", Balance: 10}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(nil, nil)
	// Referrer equal to the user's own id is stored as no referrer
	mockUserRepo.On("Create", ctx, int64(123456), "selfref", (*string)(nil), (*int64)(nil), int64(10)).Return(newUser, nil)

	mockBalanceHistoryRepo.On("Record", ctx, mock.Anything).Return(nil)

	selfID := int64(123456)
	user, err := service.GetOrCreateUser(ctx, 123456, "selfref", nil, &selfID)

	assert.NoError(t, err)
	assert.Equal(t, newUser, user)
	mockUserRepo.AssertExpectations(t)
}

func TestUserService_GetOrCreateUser_CreateFails(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockBalanceHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, mockBalanceHistoryRepo, nil, nil)

	service := NewUserService(mockFactory, 10)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(nil, nil)
	mockUserRepo.On("Create", ctx, int64(123456), "failuser", (*string)(nil), (*int64)(nil), int64(10)).Return(nil, errors.New("database error"))

	user, err := service.GetOrCreateUser(ctx, 123456, "failuser", nil, nil)

	assert.Error(t, err)
	assert.Nil(t, user)
	assert.Contains(t, err.Error(), "failed to create user")

	mockBalanceHistoryRepo.AssertNotCalled(t, "Record")
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestUserService_RegisterReferral_Success(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockReferralRepo := new(MockReferralRepository)

	mockUoW.SetRepositories(mockUserRepo, mockReferralRepo, nil, nil, nil)

	service := NewUserService(mockFactory, 10)

	inviter := &models.User{TelegramID: 777, Name: "inviter", Balance: 20}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(777)).Return(inviter, nil)
	mockReferralRepo.On("Create", ctx, int64(777), int64(123456)).Return(nil)
	mockUserRepo.On("SetReferrer", ctx, int64(123456), int64(777)).Return(nil)

	err := service.RegisterReferral(ctx, 777, 123456)

	assert.NoError(t, err)
	mockReferralRepo.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
}

func TestUserService_RegisterReferral_SelfReferral(t *testing.T) {
	ctx := context.Background()

	mockFactory := new(MockUnitOfWorkFactory)
	service := NewUserService(mockFactory, 10)

	err := service.RegisterReferral(ctx, 123456, 123456)

	assert.ErrorIs(t, err, ErrSelfReferral)
	mockFactory.AssertNotCalled(t, "Create")
}

func TestUserService_RegisterReferral_UnknownInviter(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockReferralRepo := new(MockReferralRepository)

	mockUoW.SetRepositories(mockUserRepo, mockReferralRepo, nil, nil, nil)

	service := NewUserService(mockFactory, 10)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(777)).Return(nil, nil)

	err := service.RegisterReferral(ctx, 777, 123456)

	assert.ErrorIs(t, err, ErrUnknownInviter)
	mockReferralRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserService_RegisterReferral_DuplicateInvitee(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockReferralRepo := new(MockReferralRepository)

	mockUoW.SetRepositories(mockUserRepo, mockReferralRepo, nil, nil, nil)

	service := NewUserService(mockFactory, 10)

	inviter := &models.User{TelegramID: 777, Name: "inviter", Balance: 20}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(777)).Return(inviter, nil)
	mockReferralRepo.On("Create", ctx, int64(777), int64(123456)).Return(ErrDuplicateReferral)

	err := service.RegisterReferral(ctx, 777, 123456)

	assert.ErrorIs(t, err, ErrDuplicateReferral)
	mockUserRepo.AssertNotCalled(t, "SetReferrer", mock.Anything, mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}
