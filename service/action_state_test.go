package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"valera/models"
)

func TestActionStateService_SetAndConsume(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStateStore)
	svc := NewActionStateService(mockStore)

	mockStore.On("Set", ctx, "action:123", "conversation", 30*time.Minute).Return(nil)
	mockStore.On("GetDelete", ctx, "action:123").Return("conversation", true, nil)

	err := svc.Set(ctx, 123, models.ActionConversation)
	assert.NoError(t, err)

	kind, err := svc.Consume(ctx, 123)
	assert.NoError(t, err)
	assert.Equal(t, models.ActionConversation, kind)

	mockStore.AssertExpectations(t)
}

func TestActionStateService_ConsumeEmptySlot(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStateStore)
	svc := NewActionStateService(mockStore)

	mockStore.On("GetDelete", ctx, "action:123").Return("", false, nil)

	kind, err := svc.Consume(ctx, 123)

	assert.NoError(t, err)
	assert.Equal(t, models.ActionNone, kind)
}

func TestActionStateService_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStateStore)
	svc := NewActionStateService(mockStore)

	mockStore.On("Set", ctx, "action:123", "girl_profile", 30*time.Minute).Return(nil)
	mockStore.On("Set", ctx, "action:123", "topics", 30*time.Minute).Return(nil)

	assert.NoError(t, svc.Set(ctx, 123, models.ActionGirlProfile))
	assert.NoError(t, svc.Set(ctx, 123, models.ActionTopics))

	mockStore.AssertExpectations(t)
}
