package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"valera/database"
	"valera/models"
	"valera/service"
)

// ReferralRepository implements the service.ReferralRepository interface
type ReferralRepository struct {
	q queryable
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *database.DB) *ReferralRepository {
	return &ReferralRepository{q: db.Pool}
}

// newReferralRepositoryWithTx creates a new referral repository with a transaction
func newReferralRepositoryWithTx(tx queryable) *ReferralRepository {
	return &ReferralRepository{q: tx}
}

// Create inserts an inviter->invitee edge. Self-referrals are rejected, as is
// any edge whose invitee already participates in a referral on either side or
// whose inviter is already someone's invitee; both return
// service.ErrDuplicateReferral.
func (r *ReferralRepository) Create(ctx context.Context, inviterID, inviteeID int64) error {
	if inviterID == inviteeID {
		return service.ErrSelfReferral
	}

	guard := `
		SELECT EXISTS (
			SELECT 1 FROM referrals
			WHERE invitee_id = $1 OR inviter_id = $1 OR invitee_id = $2
		)
	`

	var taken bool
	if err := r.q.QueryRow(ctx, guard, inviteeID, inviterID).Scan(&taken); err != nil {
		return fmt.Errorf("failed to check existing referrals for %d -> %d: %w", inviterID, inviteeID, err)
	}
	if taken {
		return service.ErrDuplicateReferral
	}

	query := `
		INSERT INTO referrals (inviter_id, invitee_id)
		VALUES ($1, $2)
	`

	if _, err := r.q.Exec(ctx, query, inviterID, inviteeID); err != nil {
		return fmt.Errorf("failed to create referral %d -> %d: %w", inviterID, inviteeID, err)
	}

	return nil
}

// GetByParticipant returns any edge in which the user appears as inviter or
// invitee, or nil if none exists.
func (r *ReferralRepository) GetByParticipant(ctx context.Context, telegramID int64) (*models.Referral, error) {
	query := `
		SELECT id, inviter_id, invitee_id, created_at
		FROM referrals
		WHERE invitee_id = $1 OR inviter_id = $1
		LIMIT 1
	`

	var referral models.Referral
	err := r.q.QueryRow(ctx, query, telegramID).Scan(
		&referral.ID,
		&referral.InviterID,
		&referral.InviteeID,
		&referral.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral for user %d: %w", telegramID, err)
	}

	return &referral, nil
}

// CountByInviter returns how many users an inviter has referred
func (r *ReferralRepository) CountByInviter(ctx context.Context, inviterID int64) (int64, error) {
	query := `
		SELECT COUNT(*) FROM referrals WHERE inviter_id = $1
	`

	var count int64
	if err := r.q.QueryRow(ctx, query, inviterID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count referrals for inviter %d: %w", inviterID, err)
	}

	return count, nil
}
