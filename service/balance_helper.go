package service

import (
	"context"
	"fmt"

	"valera/events"
	"valera/models"
)

// RecordBalanceChange records a balance history entry and emits the matching
// event. This is the single entry point for all balance changes in the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed to the main bus only after the transaction commits.
	uow.EventBus().Publish(events.BalanceChangeEvent{
		TelegramID:      history.TelegramID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	if history.TransactionType == models.TransactionTypeInitial {
		if name, ok := history.TransactionMetadata["name"].(string); ok {
			uow.EventBus().Publish(events.UserCreatedEvent{
				TelegramID:     history.TelegramID,
				Name:           name,
				InitialBalance: history.BalanceAfter,
			})
		}
	}

	return nil
}
