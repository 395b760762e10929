package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"valera/database"
	"valera/models"
)

// UserRepository implements the service.UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByTelegramID retrieves a user by their Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
		SELECT telegram_id, name, username, balance, referrer_id, has_generated, created_at, updated_at
		FROM users
		WHERE telegram_id = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, telegramID).Scan(
		&user.TelegramID,
		&user.Name,
		&user.Username,
		&user.Balance,
		&user.ReferrerID,
		&user.HasGenerated,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram ID %d: %w", telegramID, err)
	}

	return &user, nil
}

// Create creates a new user with the initial balance. The insert is idempotent
// against the primary key: if the user already exists the existing row is
// returned unchanged.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, name string, username *string, referrerID *int64, initialBalance int64) (*models.User, error) {
	query := `
		INSERT INTO users (telegram_id, name, username, balance, referrer_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, telegramID, name, username, initialBalance, referrerID); err != nil {
		return nil, fmt.Errorf("failed to create user with telegram ID %d: %w", telegramID, err)
	}

	user, err := r.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d missing after insert", telegramID)
	}
	return user, nil
}

// AdjustBalance changes a user's balance by delta atomically. Delta may be
// negative; the mutation is a single read-modify-write statement so
// concurrent requests cannot lose updates.
func (r *UserRepository) AdjustBalance(ctx context.Context, telegramID int64, delta int64) error {
	query := `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE telegram_id = $2
	`

	result, err := r.q.Exec(ctx, query, delta, telegramID)
	if err != nil {
		return fmt.Errorf("failed to adjust balance for user %d: %w", telegramID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user with telegram ID %d not found", telegramID)
	}

	return nil
}

// MarkGenerated flips has_generated from false to true and reports whether
// this caller performed the flip. Only one caller ever wins, so the referral
// bonus cannot be distributed twice even under concurrent first requests.
func (r *UserRepository) MarkGenerated(ctx context.Context, telegramID int64) (bool, error) {
	query := `
		UPDATE users
		SET has_generated = TRUE, updated_at = NOW()
		WHERE telegram_id = $1 AND has_generated = FALSE
	`

	result, err := r.q.Exec(ctx, query, telegramID)
	if err != nil {
		return false, fmt.Errorf("failed to mark user %d as generated: %w", telegramID, err)
	}

	return result.RowsAffected() > 0, nil
}

// SetReferrer assigns referrer_id only when it is currently NULL. Referrers
// are immutable once set.
func (r *UserRepository) SetReferrer(ctx context.Context, telegramID, referrerID int64) error {
	query := `
		UPDATE users
		SET referrer_id = $1, updated_at = NOW()
		WHERE telegram_id = $2 AND referrer_id IS NULL
	`

	if _, err := r.q.Exec(ctx, query, referrerID, telegramID); err != nil {
		return fmt.Errorf("failed to set referrer for user %d: %w", telegramID, err)
	}

	return nil
}

// GetReferrer returns the referrer id for a user, or nil if none is set
func (r *UserRepository) GetReferrer(ctx context.Context, telegramID int64) (*int64, error) {
	query := `
		SELECT referrer_id FROM users WHERE telegram_id = $1
	`

	var referrerID *int64
	err := r.q.QueryRow(ctx, query, telegramID).Scan(&referrerID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referrer for user %d: %w", telegramID, err)
	}

	return referrerID, nil
}
