package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"valera/database"
	"valera/models"
	"valera/service"
)

// PaymentRepository implements the service.PaymentRepository interface
type PaymentRepository struct {
	q queryable
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{q: db.Pool}
}

// newPaymentRepositoryWithTx creates a new payment repository with a transaction
func newPaymentRepositoryWithTx(tx queryable) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Record inserts a settled payment keyed by the provider charge id. A second
// delivery of the same charge id returns service.ErrDuplicatePayment, which
// keeps settlement idempotent.
func (r *PaymentRepository) Record(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (charge_id, telegram_id, amount_paid, tokens)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		payment.ChargeID,
		payment.TelegramID,
		payment.AmountPaid,
		payment.Tokens,
	).Scan(&payment.ID, &payment.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrDuplicatePayment
		}
		return fmt.Errorf("failed to record payment %s: %w", payment.ChargeID, err)
	}

	return nil
}
