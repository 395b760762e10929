package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"valera/events"
	"valera/models"
)

type paymentService struct {
	uowFactory UnitOfWorkFactory
}

// NewPaymentService creates a new payment service
func NewPaymentService(uowFactory UnitOfWorkFactory) PaymentService {
	return &paymentService{uowFactory: uowFactory}
}

// Settle credits a completed payment to the user's balance. The provider
// charge id acts as the idempotency key: replaying the same successful
// payment update yields ErrDuplicatePayment and no second credit.
func (s *paymentService) Settle(ctx context.Context, telegramID int64, chargeID, payload string) (*models.Payment, error) {
	amount, tokens, err := models.ParseInvoicePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	// The payload round-trips through the client, so only catalog offers
	// are honored even after the provider confirmed the charge.
	if _, ok := models.FindOffer(amount, tokens); !ok {
		return nil, fmt.Errorf("%w: %d_%d", ErrUnknownOffer, amount, tokens)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	payment := &models.Payment{
		ChargeID:   chargeID,
		TelegramID: telegramID,
		AmountPaid: amount,
		Tokens:     tokens,
	}
	if err := uow.PaymentRepository().Record(ctx, payment); err != nil {
		return nil, err
	}

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", telegramID)
	}

	if err := uow.UserRepository().AdjustBalance(ctx, telegramID, tokens); err != nil {
		return nil, fmt.Errorf("failed to credit purchased tokens: %w", err)
	}

	history := &models.BalanceHistory{
		TelegramID:      telegramID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    user.Balance + tokens,
		ChangeAmount:    tokens,
		TransactionType: models.TransactionTypePurchase,
		TransactionMetadata: map[string]any{
			"charge_id":   chargeID,
			"amount_paid": amount,
		},
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	uow.EventBus().Publish(events.PaymentSettledEvent{
		TelegramID: telegramID,
		ChargeID:   chargeID,
		AmountPaid: amount,
		Tokens:     tokens,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	log.WithFields(log.Fields{
		"telegramID": telegramID,
		"chargeID":   chargeID,
		"tokens":     tokens,
	}).Info("Payment settled")

	return payment, nil
}
