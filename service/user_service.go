package service

import (
	"context"
	"fmt"

	"valera/models"
)

type userService struct {
	uowFactory UnitOfWorkFactory
	startBonus int64
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, startBonus int64) UserService {
	return &userService{
		uowFactory: uowFactory,
		startBonus: startBonus,
	}
}

// GetOrCreateUser retrieves an existing user or creates a new one with the
// start bonus. A referrer id equal to the user's own id is dropped.
func (s *userService) GetOrCreateUser(ctx context.Context, telegramID int64, name string, username *string, referrerID *int64) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	if referrerID != nil && *referrerID == telegramID {
		referrerID = nil
	}

	user, err = uow.UserRepository().Create(ctx, telegramID, name, username, referrerID, s.startBonus)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	history := &models.BalanceHistory{
		TelegramID:      telegramID,
		BalanceBefore:   0,
		BalanceAfter:    s.startBonus,
		ChangeAmount:    s.startBonus,
		TransactionType: models.TransactionTypeInitial,
		TransactionMetadata: map[string]any{
			"name": name,
		},
	}

	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record initial balance: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

// RegisterReferral records an inviter->invitee edge. The inviter must exist,
// self-referrals are rejected, and the edge is refused when the invitee
// already participates in a referral on either side or the inviter is itself
// someone's invitee. No tokens move here: the bonus is deferred to the
// invitee's first successful generation.
func (s *userService) RegisterReferral(ctx context.Context, inviterID, inviteeID int64) error {
	if inviterID == inviteeID {
		return ErrSelfReferral
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	inviter, err := uow.UserRepository().GetByTelegramID(ctx, inviterID)
	if err != nil {
		return fmt.Errorf("failed to get inviter: %w", err)
	}
	if inviter == nil {
		return ErrUnknownInviter
	}

	if err := uow.ReferralRepository().Create(ctx, inviterID, inviteeID); err != nil {
		return err
	}

	// Keep the denormalized referrer column aligned with the edge so the
	// billing path can resolve the bonus recipient with one lookup.
	if err := uow.UserRepository().SetReferrer(ctx, inviteeID, inviterID); err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetBalance returns the current token balance for a user
func (s *userService) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return 0, fmt.Errorf("user %d not found", telegramID)
	}

	return user.Balance, nil
}
