package service

import (
	"context"
	"fmt"
	"time"

	"valera/models"
)

// Pending actions are a short-lived UI affordance; if the user walks away the
// slot simply expires.
const actionTTL = 30 * time.Minute

type actionStateService struct {
	store StateStore
}

// NewActionStateService creates a new action state service
func NewActionStateService(store StateStore) ActionStateService {
	return &actionStateService{store: store}
}

func actionKey(telegramID int64) string {
	return fmt.Sprintf("action:%d", telegramID)
}

// Set overwrites the pending mode for a user. Last write wins; there is no queue.
func (s *actionStateService) Set(ctx context.Context, telegramID int64, kind models.ActionKind) error {
	if err := s.store.Set(ctx, actionKey(telegramID), string(kind), actionTTL); err != nil {
		return fmt.Errorf("failed to set pending action for user %d: %w", telegramID, err)
	}
	return nil
}

// Consume returns the pending mode and atomically clears the slot, so a
// second consume before the next selection yields ActionNone.
func (s *actionStateService) Consume(ctx context.Context, telegramID int64) (models.ActionKind, error) {
	value, ok, err := s.store.GetDelete(ctx, actionKey(telegramID))
	if err != nil {
		return models.ActionNone, fmt.Errorf("failed to consume pending action for user %d: %w", telegramID, err)
	}
	if !ok {
		return models.ActionNone, nil
	}
	return models.ActionKind(value), nil
}
