package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valera/models"
	"valera/repository/testutil"
	"valera/service"
)

func TestPaymentRepository_Record(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewPaymentRepository(testDB.DB)
	ctx := context.Background()

	createTestUser(t, ctx, users, 100, "buyer")

	t.Run("successful record", func(t *testing.T) {
		payment := &models.Payment{
			ChargeID:   "charge-001",
			TelegramID: 100,
			AmountPaid: 759,
			Tokens:     100,
		}

		err := repo.Record(ctx, payment)
		require.NoError(t, err)
		assert.NotZero(t, payment.ID)
		assert.False(t, payment.CreatedAt.IsZero())
	})

	t.Run("duplicate charge id", func(t *testing.T) {
		// Telegram may redeliver a successful payment update; the second
		// insert of the same charge id must not succeed
		payment := &models.Payment{
			ChargeID:   "charge-001",
			TelegramID: 100,
			AmountPaid: 759,
			Tokens:     100,
		}

		err := repo.Record(ctx, payment)
		assert.ErrorIs(t, err, service.ErrDuplicatePayment)
	})

	t.Run("distinct charge id for same user", func(t *testing.T) {
		payment := &models.Payment{
			ChargeID:   "charge-002",
			TelegramID: 100,
			AmountPaid: 199,
			Tokens:     25,
		}

		err := repo.Record(ctx, payment)
		require.NoError(t, err)
		assert.NotZero(t, payment.ID)
	})
}
