package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"valera/models"
)

func generationFixture() (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockUserRepository, *MockBalanceHistoryRepository, *MockEventPublisher, *MockCompleter, GenerationService) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockBalanceHistoryRepo := new(MockBalanceHistoryRepository)
	mockEventBus := new(MockEventPublisher)
	mockCompleter := new(MockCompleter)

	mockUoW.SetRepositories(mockUserRepo, nil, mockBalanceHistoryRepo, nil, mockEventBus)
	mockEventBus.On("Publish", mock.Anything).Return()

	svc := NewGenerationService(mockFactory, mockCompleter, GenerationConfig{
		GenerateCost: 1,
		RefBonus:     10,
	})

	return mockUoW, mockFactory, mockUserRepo, mockBalanceHistoryRepo, mockEventBus, mockCompleter, svc
}

func TestGenerationService_HandleGeneration_Success(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockBalanceHistoryRepo, _, mockCompleter, svc := generationFixture()

	user := &models.User{
		TelegramID:   123456,
		Name:         "testuser",
		Balance:      5,
		HasGenerated: true,
	}

	request := []*schema.Message{schema.UserMessage("привет")}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(user, nil)
	mockUserRepo.On("AdjustBalance", ctx, int64(123456), int64(-1)).Return(nil)
	// Already generated before: the flip is lost and no bonus moves
	mockUserRepo.On("MarkGenerated", ctx, int64(123456)).Return(false, nil)

	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TelegramID == 123456 &&
			h.BalanceBefore == 5 &&
			h.BalanceAfter == 4 &&
			h.ChangeAmount == -1 &&
			h.TransactionType == models.TransactionTypeGenerate
	})).Return(nil)

	mockCompleter.On("Complete", ctx, request).Return("вот мой совет", nil)

	reply, err := svc.HandleGeneration(ctx, 123456, models.ActionConversation, request)

	assert.NoError(t, err)
	assert.Equal(t, "вот мой совет", reply)

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockBalanceHistoryRepo.AssertExpectations(t)
	mockCompleter.AssertExpectations(t)
	mockUserRepo.AssertNotCalled(t, "GetReferrer", ctx, int64(123456))
}

func TestGenerationService_HandleGeneration_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockBalanceHistoryRepo, _, mockCompleter, svc := generationFixture()

	user := &models.User{
		TelegramID: 123456,
		Name:       "pooruser",
		Balance:    0,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(user, nil)

	reply, err := svc.HandleGeneration(ctx, 123456, models.ActionConversation, []*schema.Message{schema.UserMessage("привет")})

	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, reply)

	mockCompleter.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	mockUserRepo.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything)
	mockBalanceHistoryRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestGenerationService_HandleGeneration_CompletionFails_Refunds(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockBalanceHistoryRepo, _, mockCompleter, svc := generationFixture()

	// Balance of exactly one token: the failed call must leave it untouched
	userBeforeDebit := &models.User{TelegramID: 123456, Name: "edgeuser", Balance: 1}
	userAfterDebit := &models.User{TelegramID: 123456, Name: "edgeuser", Balance: 0}

	request := []*schema.Message{schema.UserMessage("привет")}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(userBeforeDebit, nil).Once()
	mockUserRepo.On("AdjustBalance", ctx, int64(123456), int64(-1)).Return(nil).Once()
	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(userAfterDebit, nil).Once()
	mockUserRepo.On("AdjustBalance", ctx, int64(123456), int64(1)).Return(nil).Once()

	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeGenerate &&
			h.BalanceBefore == 1 && h.BalanceAfter == 0 && h.ChangeAmount == -1
	})).Return(nil).Once()
	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeRefund &&
			h.BalanceBefore == 0 && h.BalanceAfter == 1 && h.ChangeAmount == 1
	})).Return(nil).Once()

	mockCompleter.On("Complete", ctx, request).Return("", errors.New("model unavailable"))

	reply, err := svc.HandleGeneration(ctx, 123456, models.ActionTopics, request)

	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.Empty(t, reply)

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockBalanceHistoryRepo.AssertExpectations(t)
	mockCompleter.AssertExpectations(t)
	mockUserRepo.AssertNotCalled(t, "MarkGenerated", mock.Anything, mock.Anything)
}

func TestGenerationService_HandleGeneration_SettlementFailureKeepsReply(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockBalanceHistoryRepo, _, mockCompleter, svc := generationFixture()

	user := &models.User{TelegramID: 123456, Name: "testuser", Balance: 5}
	request := []*schema.Message{schema.UserMessage("привет")}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(user, nil)
	mockUserRepo.On("AdjustBalance", ctx, int64(123456), int64(-1)).Return(nil)
	mockUserRepo.On("MarkGenerated", ctx, int64(123456)).Return(false, errors.New("connection reset"))

	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeGenerate
	})).Return(nil)

	mockCompleter.On("Complete", ctx, request).Return("готовый ответ", nil)

	reply, err := svc.HandleGeneration(ctx, 123456, models.ActionConversation, request)

	// The completion succeeded: the user keeps the answer they paid for
	assert.NoError(t, err)
	assert.Equal(t, "готовый ответ", reply)

	// No refund moves; the debit stands against the delivered reply
	mockUserRepo.AssertNotCalled(t, "AdjustBalance", ctx, int64(123456), int64(1))
	mockBalanceHistoryRepo.AssertNotCalled(t, "Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeRefund
	}))
	mockUserRepo.AssertExpectations(t)
	mockCompleter.AssertExpectations(t)
}

func TestGenerationService_HandleGeneration_FirstGeneration_CreditsBothSides(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockBalanceHistoryRepo, _, mockCompleter, svc := generationFixture()

	inviterID := int64(777)
	invitee := &models.User{TelegramID: 123456, Name: "invitee", Balance: 5, ReferrerID: &inviterID}
	inviter := &models.User{TelegramID: 777, Name: "inviter", Balance: 20}

	request := []*schema.Message{schema.UserMessage("привет")}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(invitee, nil)
	mockUserRepo.On("GetByTelegramID", ctx, int64(777)).Return(inviter, nil)
	mockUserRepo.On("AdjustBalance", ctx, int64(123456), int64(-1)).Return(nil)
	mockUserRepo.On("MarkGenerated", ctx, int64(123456)).Return(true, nil)
	mockUserRepo.On("GetReferrer", ctx, int64(123456)).Return(&inviterID, nil)
	mockUserRepo.On("AdjustBalance", ctx, int64(777), int64(10)).Return(nil)
	mockUserRepo.On("AdjustBalance", ctx, int64(123456), int64(10)).Return(nil)

	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeGenerate
	})).Return(nil)
	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeReferralBonus &&
			h.TelegramID == 777 &&
			h.BalanceBefore == 20 && h.BalanceAfter == 30
	})).Return(nil).Once()
	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeReferralBonus &&
			h.TelegramID == 123456 &&
			h.BalanceBefore == 5 && h.BalanceAfter == 15
	})).Return(nil).Once()

	mockCompleter.On("Complete", ctx, request).Return("разбор готов", nil)

	reply, err := svc.HandleGeneration(ctx, 123456, models.ActionGirlProfile, request)

	assert.NoError(t, err)
	assert.Equal(t, "разбор готов", reply)

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockBalanceHistoryRepo.AssertExpectations(t)
	mockCompleter.AssertExpectations(t)
}

func TestGenerationService_HandleGeneration_FirstGeneration_NoReferrer(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockBalanceHistoryRepo, _, mockCompleter, svc := generationFixture()

	user := &models.User{TelegramID: 123456, Name: "solo", Balance: 3}
	request := []*schema.Message{schema.UserMessage("привет")}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByTelegramID", ctx, int64(123456)).Return(user, nil)
	mockUserRepo.On("AdjustBalance", ctx, int64(123456), int64(-1)).Return(nil)
	mockUserRepo.On("MarkGenerated", ctx, int64(123456)).Return(true, nil)
	mockUserRepo.On("GetReferrer", ctx, int64(123456)).Return(nil, nil)

	mockBalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeGenerate
	})).Return(nil)

	mockCompleter.On("Complete", ctx, request).Return("ответ", nil)

	reply, err := svc.HandleGeneration(ctx, 123456, models.ActionMyProfile, request)

	assert.NoError(t, err)
	assert.Equal(t, "ответ", reply)

	mockUserRepo.AssertExpectations(t)
	mockUserRepo.AssertNotCalled(t, "AdjustBalance", ctx, mock.Anything, int64(10))
	mockBalanceHistoryRepo.AssertExpectations(t)
}
