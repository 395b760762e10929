package service

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"

	"valera/events"
	"valera/models"
)

// GenerationConfig holds the billing tunables
type GenerationConfig struct {
	GenerateCost int64
	RefBonus     int64
}

type generationService struct {
	uowFactory UnitOfWorkFactory
	completer  Completer
	cfg        GenerationConfig
}

// NewGenerationService creates a new generation service
func NewGenerationService(uowFactory UnitOfWorkFactory, completer Completer, cfg GenerationConfig) GenerationService {
	return &generationService{
		uowFactory: uowFactory,
		completer:  completer,
		cfg:        cfg,
	}
}

// HandleGeneration runs the billing state machine for one admitted request:
// Debited -> {Completed, Refunded}. The debit lands before the completion
// call so concurrent requests cannot spend against an unsettled balance
// check; a failed call credits the cost back, leaving a net delta of zero.
func (s *generationService) HandleGeneration(ctx context.Context, telegramID int64, action models.ActionKind, request []*schema.Message) (string, error) {
	if err := s.debit(ctx, telegramID); err != nil {
		return "", err
	}

	reply, err := s.completer.Complete(ctx, request)
	if err != nil {
		log.WithFields(log.Fields{
			"telegramID": telegramID,
			"action":     action,
		}).WithError(err).Warn("Completion failed, refunding")

		if refundErr := s.refund(ctx, telegramID, action); refundErr != nil {
			// The user already paid; losing the refund is the one outcome we
			// must not swallow silently.
			return "", fmt.Errorf("refund after failed completion: %w", refundErr)
		}
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	if err := s.settleFirstGeneration(ctx, telegramID, action); err != nil {
		// The reply is already paid for; the flag never flipped, so the
		// bonus retries on the next successful generation.
		log.WithFields(log.Fields{
			"telegramID": telegramID,
			"action":     action,
		}).WithError(err).Error("Failed to settle first generation")
	}

	return reply, nil
}

// debit atomically deducts the generation cost ahead of the completion call
func (s *generationService) debit(ctx context.Context, telegramID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", telegramID)
	}
	if user.Balance < s.cfg.GenerateCost {
		return ErrInsufficientBalance
	}

	if err := uow.UserRepository().AdjustBalance(ctx, telegramID, -s.cfg.GenerateCost); err != nil {
		return fmt.Errorf("failed to debit generation cost: %w", err)
	}

	history := &models.BalanceHistory{
		TelegramID:      telegramID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    user.Balance - s.cfg.GenerateCost,
		ChangeAmount:    -s.cfg.GenerateCost,
		TransactionType: models.TransactionTypeGenerate,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return fmt.Errorf("failed to record debit: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit debit: %w", err)
	}

	return nil
}

// refund credits the generation cost back after a failed completion
func (s *generationService) refund(ctx context.Context, telegramID int64, action models.ActionKind) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", telegramID)
	}

	if err := uow.UserRepository().AdjustBalance(ctx, telegramID, s.cfg.GenerateCost); err != nil {
		return fmt.Errorf("failed to refund generation cost: %w", err)
	}

	history := &models.BalanceHistory{
		TelegramID:      telegramID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    user.Balance + s.cfg.GenerateCost,
		ChangeAmount:    s.cfg.GenerateCost,
		TransactionType: models.TransactionTypeRefund,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return fmt.Errorf("failed to record refund: %w", err)
	}

	uow.EventBus().Publish(events.GenerationDoneEvent{
		TelegramID: telegramID,
		Action:     action,
		Refunded:   true,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit refund: %w", err)
	}

	return nil
}

// settleFirstGeneration flips the one-way has_generated flag and, if this
// caller won the flip and a referrer exists, credits the referral bonus to
// both sides. The flip is atomic at the storage layer, so the bonus can be
// granted at most once per user.
func (s *generationService) settleFirstGeneration(ctx context.Context, telegramID int64, action models.ActionKind) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	won, err := uow.UserRepository().MarkGenerated(ctx, telegramID)
	if err != nil {
		return fmt.Errorf("failed to mark first generation: %w", err)
	}

	if won {
		referrerID, err := uow.UserRepository().GetReferrer(ctx, telegramID)
		if err != nil {
			return fmt.Errorf("failed to look up referrer: %w", err)
		}
		if referrerID != nil {
			if err := s.creditReferralBonus(ctx, uow, *referrerID, telegramID); err != nil {
				return err
			}
		}
	}

	uow.EventBus().Publish(events.GenerationDoneEvent{
		TelegramID: telegramID,
		Action:     action,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	return nil
}

func (s *generationService) creditReferralBonus(ctx context.Context, uow UnitOfWork, inviterID, inviteeID int64) error {
	for _, id := range []int64{inviterID, inviteeID} {
		user, err := uow.UserRepository().GetByTelegramID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get bonus recipient %d: %w", id, err)
		}
		if user == nil {
			log.WithField("telegramID", id).Warn("Referral bonus recipient missing, skipping")
			continue
		}

		if err := uow.UserRepository().AdjustBalance(ctx, id, s.cfg.RefBonus); err != nil {
			return fmt.Errorf("failed to credit referral bonus to %d: %w", id, err)
		}

		history := &models.BalanceHistory{
			TelegramID:      id,
			BalanceBefore:   user.Balance,
			BalanceAfter:    user.Balance + s.cfg.RefBonus,
			ChangeAmount:    s.cfg.RefBonus,
			TransactionType: models.TransactionTypeReferralBonus,
			TransactionMetadata: map[string]any{
				"inviter_id": inviterID,
				"invitee_id": inviteeID,
			},
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return fmt.Errorf("failed to record referral bonus: %w", err)
		}
	}

	uow.EventBus().Publish(events.ReferralBonusEvent{
		InviterID: inviterID,
		InviteeID: inviteeID,
		Bonus:     s.cfg.RefBonus,
	})

	return nil
}
